package llm

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kbot/internal/config"
)

func TestDefaultCatalog_ResolveAndRates(t *testing.T) {
	c := DefaultCatalog()
	require.NoError(t, c.Validate())

	model, err := c.Resolve("kask-haiku")
	require.NoError(t, err)
	assert.Equal(t, ModelHaiku3, model)

	r, err := c.RatesFor(ModelHaiku3)
	require.NoError(t, err)
	assert.Equal(t, Rates{InputPer1K: 0.00025, OutputPer1K: 0.00025}, r)

	_, err = c.Resolve("kask-gpt")
	assert.True(t, errors.Is(err, ErrUnknownModel))
	_, err = c.RatesFor("gpt-4")
	assert.True(t, errors.Is(err, ErrUnknownModel))

	assert.Equal(t, []string{ModelHaiku35, ModelHaiku3, ModelOpus3, ModelSonnet3}, c.Models())
}

func TestLoadCatalog_YAML(t *testing.T) {
	p := filepath.Join(t.TempDir(), "catalog.yaml")
	body := `
aliases:
  kask: claude-sonnet-4-5
  kask-haiku: claude-haiku-4-5
rates:
  claude-sonnet-4-5: {input_per_1k: 0.003, output_per_1k: 0.015}
  claude-haiku-4-5: {input_per_1k: 0.001, output_per_1k: 0.005}
`
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))

	c, err := LoadCatalog(p)
	require.NoError(t, err)
	assert.Equal(t, DefaultAlias, c.DefaultAlias)
	model, err := c.Resolve("kask")
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-5", model)
}

func TestLoadCatalog_AliasWithoutRates(t *testing.T) {
	p := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(p, []byte("aliases:\n  kask: nowhere\n"), 0o644))
	_, err := LoadCatalog(p)
	assert.True(t, errors.Is(err, ErrUnknownModel))
}

func TestCatalogFromConfig_EnvRates(t *testing.T) {
	cfg := &config.Config{
		Haiku35PromptCost: 0.002, Haiku35CompletionCost: 0.01,
		HaikuPromptCost: 0.00025, HaikuCompletionCost: 0.00025,
	}
	c, err := CatalogFromConfig(cfg)
	require.NoError(t, err)
	r, err := c.RatesFor(ModelHaiku35)
	require.NoError(t, err)
	assert.Equal(t, 0.002, r.InputPer1K)
	assert.Equal(t, 0.01, r.OutputPer1K)
}
