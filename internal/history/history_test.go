package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kbot/internal/llm"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newManager(t *testing.T, max int, timeout time.Duration) (*Manager, *clock, string) {
	t.Helper()
	dir := t.TempDir()
	c := &clock{t: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	m := NewManager(Options{Dir: dir, MaxHistory: max, Timeout: timeout, Now: c.now, Logger: zerolog.Nop()})
	return m, c, dir
}

func archives(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if !os.IsNotExist(err) {
		require.NoError(t, err)
	}
	var out []string
	for _, e := range entries {
		out = append(out, e.Name())
	}
	return out
}

func TestAppendGetClear(t *testing.T) {
	m, _, dir := newManager(t, 10, time.Hour)

	m.Append("a", llm.Message{Role: llm.RoleUser, Content: "hello"}, llm.Message{Role: llm.RoleAssistant, Content: "hi"})
	m.Append("b", llm.Message{Role: llm.RoleUser, Content: "foo"})

	msgsA := m.Get("a")
	require.Len(t, msgsA, 2)
	require.Len(t, m.Get("b"), 1)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "hello"}, msgsA[0])

	// returned slice is a copy
	msgsA[0].Content = "mutated"
	assert.Equal(t, "hello", m.Get("a")[0].Content)

	assert.True(t, m.Clear("a"))
	assert.False(t, m.Clear("a"), "second clear is a no-op")
	assert.Empty(t, m.Get("a"))
	assert.Len(t, m.Get("b"), 1)
	assert.Len(t, archives(t, dir), 1)
}

func TestOverflowKeepsTwiceMaxAndArchivesOnce(t *testing.T) {
	m, _, dir := newManager(t, 3, time.Hour)
	for i := 0; i < 7; i++ {
		m.Append("c", llm.Message{Role: llm.RoleUser, Content: fmt.Sprintf("m%d", i)})
	}

	got := m.Get("c")
	require.Len(t, got, 6)
	assert.Equal(t, "m1", got[0].Content)
	assert.Equal(t, "m6", got[5].Content)

	files := archives(t, dir)
	require.Equal(t, []string{"c_20240501_100000.json"}, files)
	raw, err := os.ReadFile(filepath.Join(dir, files[0]))
	require.NoError(t, err)
	var a archive
	require.NoError(t, json.Unmarshal(raw, &a))
	assert.Equal(t, "c", a.ChannelID)
	assert.Len(t, a.Messages, 7, "archive holds the full history")
}

func TestIdleSessionsExpire(t *testing.T) {
	m, c, dir := newManager(t, 10, time.Hour)
	m.Append("old", llm.Message{Role: llm.RoleUser, Content: "x"})
	c.t = c.t.Add(30 * time.Minute)
	m.Append("fresh", llm.Message{Role: llm.RoleUser, Content: "y"})

	c.t = c.t.Add(31 * time.Minute)
	assert.Empty(t, m.Get("old"))
	assert.Len(t, m.Get("fresh"), 1)
	assert.Equal(t, 1, m.Len())
	assert.Len(t, archives(t, dir), 1)

	c.t = c.t.Add(2 * time.Hour)
	assert.Equal(t, 1, m.Sweep())
}

func TestArchiveNamesDoNotCollide(t *testing.T) {
	m, _, dir := newManager(t, 10, time.Hour)
	m.Append("c", llm.Message{Role: llm.RoleUser, Content: "one"})
	m.Clear("c")
	m.Append("c", llm.Message{Role: llm.RoleUser, Content: "two"})
	m.Clear("c")

	assert.Len(t, archives(t, dir), 2)
}

func TestArchiveFailureStillTruncates(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	// Dir is a regular file, so every archive write fails.
	m := NewManager(Options{Dir: blocker, MaxHistory: 1, Timeout: time.Hour, Logger: zerolog.Nop()})
	for i := 0; i < 5; i++ {
		m.Append("c", llm.Message{Role: llm.RoleUser, Content: "x"})
	}
	assert.Len(t, m.Get("c"), 2)
}
