// ABOUTME: Response admission policy deciding whether an agent reply is broadcast.
// ABOUTME: Permissive by default; an optional strict variant adds phrase/length/table checks.

package chat

import (
	"regexp"
	"strings"

	"github.com/agoradev/agora/internal/agent"
)

// SilenceSentinel is the literal token an agent emits to mean "intentionally
// not replying". It is part of the prompt protocol and must stay a string
// contract: any reply containing it is suppressed before broadcast.
const SilenceSentinel = "non666non"

// Filter decides whether a generated reply is worth broadcasting.
type Filter interface {
	Acceptable(res agent.Result) bool
}

// PermissiveFilter rejects only soft failures, blank replies, and replies
// carrying the silence sentinel. The design deliberately favors broadcasting
// a marginal reply over suppressing a legitimate one.
type PermissiveFilter struct{}

func (PermissiveFilter) Acceptable(res agent.Result) bool {
	if res.Soft {
		return false
	}
	if strings.TrimSpace(res.Text) == "" {
		return false
	}
	if strings.Contains(res.Text, SilenceSentinel) {
		return false
	}
	return true
}

// markdownTable matches a pipe-delimited header row followed by a separator
// row, the usual shape of a markdown table.
var markdownTable = regexp.MustCompile(`(?m)^\s*\|.+\n\s*\|\s*-+`)

// StrictFilter layers extra rejection rules on top of the permissive policy:
// banned phrases, a minimum trimmed length, and markdown tables. It is a
// configuration point, not the documented default.
type StrictFilter struct {
	MinLength      int
	BannedPatterns []*regexp.Regexp
	RejectTables   bool
}

// NewStrictFilter builds a strict filter from pattern strings. Invalid
// patterns are skipped.
func NewStrictFilter(minLength int, patterns []string, rejectTables bool) *StrictFilter {
	f := &StrictFilter{MinLength: minLength, RejectTables: rejectTables}
	for _, p := range patterns {
		if re, err := regexp.Compile("(?i)" + p); err == nil {
			f.BannedPatterns = append(f.BannedPatterns, re)
		}
	}
	return f
}

func (f *StrictFilter) Acceptable(res agent.Result) bool {
	if !(PermissiveFilter{}).Acceptable(res) {
		return false
	}
	if f.MinLength > 0 && len(strings.TrimSpace(res.Text)) < f.MinLength {
		return false
	}
	for _, re := range f.BannedPatterns {
		if re.MatchString(res.Text) {
			return false
		}
	}
	if f.RejectTables && markdownTable.MatchString(res.Text) {
		return false
	}
	return true
}
