package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("OWNER_ID", "42")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
}

func TestNew_Defaults(t *testing.T) {
	setRequired(t)
	cfg, err := New()
	require.NoError(t, err)

	assert.EqualValues(t, 42, cfg.OwnerID)
	assert.Equal(t, "!k", cfg.CommandPrefix)
	assert.Equal(t, 2000, cfg.MessageLimit)
	assert.Equal(t, 10, cfg.MaxHistory)
	assert.Equal(t, time.Hour, cfg.IdleTimeout())
	assert.Equal(t, 30*time.Second, cfg.CompletionTimeout)
	assert.Equal(t, 2, cfg.CompletionRetries)
	assert.InDelta(t, 0.7, cfg.Temperature, 1e-6)
	assert.Equal(t, 0.00025, cfg.HaikuPromptCost)
	assert.Equal(t, 0.005, cfg.Haiku35CompletionCost)
	assert.Equal(t, filepath.Join("data", "stats", "all_stats.json"), cfg.StatsFile())
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("OWNER_ID", "42")
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := New()
	assert.Error(t, err)
}

func TestNew_MissingToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("OWNER_ID", "42")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	_, err := New()
	assert.Error(t, err)
}

func TestNew_YandexProvider(t *testing.T) {
	setRequired(t)
	t.Setenv("LLM_PROVIDER", "yandex")
	_, err := New()
	require.Error(t, err)

	t.Setenv("YANDEX_OAUTH_TOKEN", "oauth")
	t.Setenv("YANDEX_FOLDER_ID", "folder")
	_, err = New()
	assert.NoError(t, err)
}
