package llm

import (
	"fmt"

	"github.com/rs/zerolog"

	"kbot/internal/config"
)

// NewClient creates the completion client for the configured provider.
func NewClient(cfg *config.Config, log zerolog.Logger) (Client, error) {
	switch cfg.LLMProvider {
	case config.ProviderAnthropic:
		return NewOpenAI(cfg.AnthropicAPIKey, cfg.AnthropicBaseURL, cfg.CompletionTimeout, cfg.CompletionRetries, log), nil
	case config.ProviderYandex:
		return NewYandex(cfg.YandexOAuthToken, cfg.YandexFolderID, cfg.CompletionTimeout, cfg.CompletionRetries, log)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.LLMProvider)
	}
}

// CatalogFromConfig loads MODEL_CATALOG_PATH when set, otherwise the built-in
// table priced with the per-model env rates.
func CatalogFromConfig(cfg *config.Config) (*Catalog, error) {
	if cfg.ModelCatalogPath != "" {
		return LoadCatalog(cfg.ModelCatalogPath)
	}
	c := DefaultCatalog()
	c.Rates[ModelHaiku35] = Rates{InputPer1K: cfg.Haiku35PromptCost, OutputPer1K: cfg.Haiku35CompletionCost}
	c.Rates[ModelHaiku3] = Rates{InputPer1K: cfg.HaikuPromptCost, OutputPer1K: cfg.HaikuCompletionCost}
	c.Rates[ModelSonnet3] = Rates{InputPer1K: cfg.SonnetPromptCost, OutputPer1K: cfg.SonnetCompletionCost}
	c.Rates[ModelOpus3] = Rates{InputPer1K: cfg.OpusPromptCost, OutputPer1K: cfg.OpusCompletionCost}
	return c, nil
}
