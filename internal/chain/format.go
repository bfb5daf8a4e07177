package chain

import (
	"strings"
	"unicode"

	"kbot/internal/llm"
	"kbot/internal/platform"
)

// Formatter turns chain messages into transcript turns. Messages by BotID
// become assistant turns; everything else is a user turn with its leading
// bot mention and command token removed.
type Formatter struct {
	BotID      string
	BotMention string
	Sigil      string
}

func (f Formatter) Format(messages []platform.Message) []llm.Message {
	out := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		role := llm.RoleUser
		text := m.Content
		if m.AuthorID == f.BotID {
			role = llm.RoleAssistant
		} else {
			text = f.Strip(text)
		}
		// A reply holding only a mention and a bare command has nothing left.
		if strings.TrimSpace(text) == "" {
			continue
		}
		out = append(out, llm.Message{Role: role, Content: text})
	}
	return out
}

// Strip removes one leading bot mention, then one leading command token.
// A command token with nothing after it leaves an empty string.
func (f Formatter) Strip(content string) string {
	text := strings.TrimSpace(content)
	if f.BotMention != "" && strings.HasPrefix(text, f.BotMention) {
		text = strings.TrimSpace(text[len(f.BotMention):])
	}
	if f.Sigil != "" && strings.HasPrefix(text, f.Sigil) {
		i := strings.IndexFunc(text, unicode.IsSpace)
		if i < 0 {
			return ""
		}
		text = strings.TrimSpace(text[i:])
	}
	return text
}
