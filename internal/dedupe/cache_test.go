// ABOUTME: Tests for the seen-key cache: duplicate detection and eviction.

package dedupe

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckAndMark_FirstSightIsNotDuplicate(t *testing.T) {
	c := New(8)

	assert.False(t, c.CheckAndMark("msg-1"))
	assert.True(t, c.CheckAndMark("msg-1"))
	assert.False(t, c.CheckAndMark("msg-2"))
}

func TestCheckAndMark_EvictsOldestAtCapacity(t *testing.T) {
	c := New(2)

	assert.False(t, c.CheckAndMark("a"))
	assert.False(t, c.CheckAndMark("b"))
	assert.False(t, c.CheckAndMark("c")) // evicts a
	assert.Equal(t, 2, c.Len())

	assert.False(t, c.CheckAndMark("a")) // forgotten, counts as new
	assert.True(t, c.CheckAndMark("c"))
}

func TestCheckAndMark_DuplicateRefreshesRecency(t *testing.T) {
	c := New(2)

	c.CheckAndMark("a")
	c.CheckAndMark("b")
	c.CheckAndMark("a") // a is now the most recent
	c.CheckAndMark("c") // should evict b, not a

	assert.True(t, c.CheckAndMark("a"))
	assert.False(t, c.CheckAndMark("b"))
}

func TestCheckAndMark_ConcurrentMarksSeeOneWinner(t *testing.T) {
	c := New(64)

	var wg sync.WaitGroup
	var mu sync.Mutex
	firsts := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !c.CheckAndMark("contested") {
				mu.Lock()
				firsts++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, firsts)
}

func TestLen_TracksDistinctKeys(t *testing.T) {
	c := New(16)
	for i := 0; i < 5; i++ {
		c.CheckAndMark(fmt.Sprintf("key-%d", i))
	}
	c.CheckAndMark("key-0")
	assert.Equal(t, 5, c.Len())
}
