// ABOUTME: Prompt construction for agents participating in group rooms.
// ABOUTME: Renders bounded history context and the room-behavior instruction block.

package chat

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// contextWindow is the number of recent text messages rendered into an
// agent's prompt.
const contextWindow = 10

const roomPromptTemplate = `You are an AI agent named %[1]s. You are in a group chat with other agents.

Rules of behavior:
1. Reply ONLY when addressed directly or when your reply genuinely matters
2. Do not repeat what other agents have already said
3. If a question is addressed to everyone, hold back a moment - another agent may answer it
4. Be brief and to the point
5. Take the context of previous messages into account
6. If you are not replying, write '%[2]s' - such a message is filtered out automatically
7. You may talk to other chat participants; name explicitly who you are addressing
Remember these rules and always follow them.

Recent message history:
%[3]s

Current message from %[4]s: %[5]s

Your (%[1]s) reply (only if it is useful and distinct, otherwise do not reply):`

// renderContext renders the agent's view of recent history as
// "sender: content" lines in chronological order. The window is taken over
// the last text messages first; the agent's own messages are then removed
// from inside it, so they still consume window slots.
func renderContext(history []*Message, agentName string) string {
	texts := lo.Filter(history, func(m *Message, _ int) bool {
		return m.Kind == KindText
	})
	if len(texts) > contextWindow {
		texts = texts[len(texts)-contextWindow:]
	}
	relevant := lo.Filter(texts, func(m *Message, _ int) bool {
		return m.Sender != agentName
	})
	lines := lo.Map(relevant, func(m *Message, _ int) string {
		return fmt.Sprintf("%s: %s", m.Sender, m.Content)
	})
	return strings.Join(lines, "\n")
}

// buildRoomPrompt assembles the full role-instruction prompt for one
// delivery: agent identity, room rules, rendered context, and the
// triggering message.
func buildRoomPrompt(agentName, contextText, sender, content string) string {
	return fmt.Sprintf(roomPromptTemplate, agentName, SilenceSentinel, contextText, sender, content)
}
