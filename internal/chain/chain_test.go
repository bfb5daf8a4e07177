package chain

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kbot/internal/llm"
	"kbot/internal/platform"
)

type fakeFetcher struct {
	msgs  map[string]platform.Message
	calls int
	err   error
}

func (f *fakeFetcher) FetchMessage(_ context.Context, _, id string) (platform.Message, error) {
	f.calls++
	if f.err != nil {
		return platform.Message{}, f.err
	}
	m, ok := f.msgs[id]
	if !ok {
		return platform.Message{}, platform.ErrNotFound
	}
	return m, nil
}

// linearChain builds messages 1..n where message i replies to i-1.
func linearChain(n int) *fakeFetcher {
	f := &fakeFetcher{msgs: make(map[string]platform.Message)}
	for i := 1; i <= n; i++ {
		m := platform.Message{ID: strconv.Itoa(i), ChannelID: "c", AuthorID: "u", Content: "m" + strconv.Itoa(i)}
		if i > 1 {
			m.ReplyTo = strconv.Itoa(i - 1)
		}
		f.msgs[m.ID] = m
	}
	return f
}

func ids(msgs []platform.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestResolve_BoundedOldestFirst(t *testing.T) {
	f := linearChain(15)
	r := NewResolver(f, DefaultMaxDepth, zerolog.Nop())

	got := r.Resolve(context.Background(), "c", "15")
	require.Len(t, got, 10)
	assert.Equal(t, []string{"6", "7", "8", "9", "10", "11", "12", "13", "14", "15"}, ids(got))
	assert.Equal(t, 10, f.calls)
}

func TestResolve_ShortChain(t *testing.T) {
	r := NewResolver(linearChain(3), DefaultMaxDepth, zerolog.Nop())
	assert.Equal(t, []string{"1", "2", "3"}, ids(r.Resolve(context.Background(), "c", "3")))
}

func TestResolve_PartialChainOnMissingMessage(t *testing.T) {
	f := linearChain(6)
	delete(f.msgs, "4") // third message from the start of the walk
	r := NewResolver(f, DefaultMaxDepth, zerolog.Nop())

	got := r.Resolve(context.Background(), "c", "6")
	assert.Equal(t, []string{"5", "6"}, ids(got))
}

func TestResolve_TransportError(t *testing.T) {
	f := &fakeFetcher{err: errors.New("connection reset")}
	r := NewResolver(f, DefaultMaxDepth, zerolog.Nop())
	assert.Empty(t, r.Resolve(context.Background(), "c", "1"))
}

func TestFormat_RolesAndStripping(t *testing.T) {
	f := Formatter{BotID: "bot", BotMention: "@kbot", Sigil: "!k"}
	msgs := []platform.Message{
		{AuthorID: "u", Content: "!k hello"},
		{AuthorID: "bot", Content: "Hi! How can I help?"},
		{AuthorID: "u", Content: "!k"},
		{AuthorID: "u", Content: "@kbot !kask   tell me more"},
		{AuthorID: "u", Content: "@kbot"},
		{AuthorID: "u", Content: "plain follow-up"},
		{AuthorID: "bot", Content: "   "},
	}

	got := f.Format(msgs)
	assert.Equal(t, []llm.Message{
		{Role: llm.RoleUser, Content: "hello"},
		{Role: llm.RoleAssistant, Content: "Hi! How can I help?"},
		{Role: llm.RoleUser, Content: "tell me more"},
		{Role: llm.RoleUser, Content: "plain follow-up"},
	}, got)
}

func TestStrip(t *testing.T) {
	f := Formatter{BotMention: "@kbot", Sigil: "!k"}
	assert.Equal(t, "hello", f.Strip("!k hello"))
	assert.Equal(t, "", f.Strip("!k"))
	assert.Equal(t, "", f.Strip("!kask"))
	assert.Equal(t, "what is go", f.Strip("@kbot what is go"))
	assert.Equal(t, "multi\nline", f.Strip("!kask\nmulti\nline"))
}
