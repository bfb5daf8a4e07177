package prompts

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T, path string) (*Registry, *time.Time) {
	t.Helper()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := Open(Options{Path: path, Now: func() time.Time { return now }, Logger: zerolog.Nop()})
	return r, &now
}

func TestRegistry_CreateUseReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "system_prompts", "prompts.json")
	r, now := newRegistry(t, path)

	require.NoError(t, r.Create("pirate", "Talk like a pirate."))
	created := *now
	*now = now.Add(time.Hour)
	require.NoError(t, r.Create("pirate", "Talk like a polite pirate."))
	require.NoError(t, r.Use("pirate"))

	p, err := r.Get("pirate")
	require.NoError(t, err)
	assert.Equal(t, "Talk like a polite pirate.", p.Content)
	assert.Equal(t, created, p.CreatedAt)
	assert.Equal(t, *now, p.UpdatedAt)

	reloaded, _ := newRegistry(t, path)
	name, content, ok := reloaded.Active()
	require.True(t, ok)
	assert.Equal(t, "pirate", name)
	assert.Equal(t, "Talk like a polite pirate.", content)
}

func TestRegistry_DeleteActiveClearsPointer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.json")
	r, _ := newRegistry(t, path)
	require.NoError(t, r.Create("a", "first"))
	require.NoError(t, r.Create("b", "second"))
	require.NoError(t, r.Use("a"))

	require.NoError(t, r.Delete("a"))
	_, _, ok := r.Active()
	assert.False(t, ok)

	reloaded, _ := newRegistry(t, path)
	_, _, ok = reloaded.Active()
	assert.False(t, ok)
	list := reloaded.List()
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].Name)
}

func TestRegistry_Errors(t *testing.T) {
	r, _ := newRegistry(t, filepath.Join(t.TempDir(), "prompts.json"))

	assert.True(t, errors.Is(r.Use("ghost"), ErrNotFound))
	assert.True(t, errors.Is(r.Delete("ghost"), ErrNotFound))
	_, err := r.Get("ghost")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(r.Create(" ", "x"), ErrInvalid))
	assert.True(t, errors.Is(r.Create("x", ""), ErrInvalid))
}

func TestRegistry_ListSortedWithActiveMarker(t *testing.T) {
	r, _ := newRegistry(t, filepath.Join(t.TempDir(), "prompts.json"))
	require.NoError(t, r.Create("zeta", "z"))
	require.NoError(t, r.Create("alpha", "a"))
	require.NoError(t, r.Use("zeta"))

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Name)
	assert.False(t, list[0].Active)
	assert.Equal(t, "zeta", list[1].Name)
	assert.True(t, list[1].Active)

	require.NoError(t, r.ClearActive())
	_, _, ok := r.Active()
	assert.False(t, ok)
}

func TestOpen_DanglingActiveAndCorruptFile(t *testing.T) {
	dir := t.TempDir()
	dangling := filepath.Join(dir, "dangling.json")
	require.NoError(t, os.WriteFile(dangling, []byte(`{"prompts":{"a":{"content":"x"}},"active_prompt":"gone"}`), 0o644))
	r, _ := newRegistry(t, dangling)
	_, _, ok := r.Active()
	assert.False(t, ok)
	assert.Len(t, r.List(), 1)

	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte(`{"prompts":`), 0o644))
	r, _ = newRegistry(t, corrupt)
	assert.Empty(t, r.List())
}
