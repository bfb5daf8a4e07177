package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v6"
)

type LLMProvider string

const (
	ProviderAnthropic LLMProvider = "anthropic"
	ProviderYandex    LLMProvider = "yandex"
)

type Config struct {
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN,required,notEmpty"`
	OwnerID          int64  `env:"OWNER_ID,required"`
	OwnerUsername    string `env:"OWNER_USERNAME"`

	// LLM settings
	LLMProvider       LLMProvider   `env:"LLM_PROVIDER" envDefault:"anthropic"`
	AnthropicAPIKey   string        `env:"ANTHROPIC_API_KEY"`
	AnthropicBaseURL  string        `env:"ANTHROPIC_BASE_URL" envDefault:"https://api.anthropic.com/v1/"`
	YandexOAuthToken  string        `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID    string        `env:"YANDEX_FOLDER_ID"`
	CompletionTimeout time.Duration `env:"COMPLETION_TIMEOUT" envDefault:"30s"`
	CompletionRetries int           `env:"COMPLETION_RETRIES" envDefault:"2"`
	MaxTokens         int           `env:"MAX_TOKENS" envDefault:"1000"`
	Temperature       float32       `env:"TEMPERATURE" envDefault:"0.7"`

	// Model catalog: a YAML file replaces the built-in table entirely.
	ModelCatalogPath string `env:"MODEL_CATALOG_PATH"`

	// Per-1K token rates for the built-in table
	Haiku35PromptCost     float64 `env:"HAIKU_3_5_PROMPT_COST" envDefault:"0.001"`
	Haiku35CompletionCost float64 `env:"HAIKU_3_5_COMPLETION_COST" envDefault:"0.005"`
	HaikuPromptCost       float64 `env:"HAIKU_PROMPT_COST" envDefault:"0.00025"`
	HaikuCompletionCost   float64 `env:"HAIKU_COMPLETION_COST" envDefault:"0.00025"`
	SonnetPromptCost      float64 `env:"SONNET_PROMPT_COST" envDefault:"0.003"`
	SonnetCompletionCost  float64 `env:"SONNET_COMPLETION_COST" envDefault:"0.003"`
	OpusPromptCost        float64 `env:"OPUS_PROMPT_COST" envDefault:"0.008"`
	OpusCompletionCost    float64 `env:"OPUS_COMPLETION_COST" envDefault:"0.008"`

	// Chat surface
	CommandPrefix    string `env:"COMMAND_PREFIX" envDefault:"!k"`
	MessageLimit     int    `env:"MESSAGE_LIMIT" envDefault:"2000"`
	MessageCacheSize int    `env:"MESSAGE_CACHE_SIZE" envDefault:"5000"`

	// Conversation sessions
	MaxHistory          int  `env:"MAX_HISTORY" envDefault:"10"`
	ConversationTimeout int  `env:"CONVERSATION_TIMEOUT" envDefault:"3600"` // seconds
	SessionContext      bool `env:"SESSION_CONTEXT" envDefault:"false"`

	// Storage
	DataDir string `env:"DATA_DIR" envDefault:"data"`

	// Operations
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty   bool   `env:"LOG_PRETTY" envDefault:"false"`
	MetricsAddr string `env:"METRICS_ADDR"`
	ReportCron  string `env:"REPORT_CRON" envDefault:"0 21 * * *"`
}

// New reads the configuration from the environment and validates it.
func New() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the bot cannot start with.
func (c *Config) Validate() error {
	if c.TelegramBotToken == "" || c.OwnerID == 0 {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN and OWNER_ID are required")
	}
	switch c.LLMProvider {
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for provider %q", c.LLMProvider)
		}
	case ProviderYandex:
		if c.YandexOAuthToken == "" || c.YandexFolderID == "" {
			return fmt.Errorf("YANDEX_OAUTH_TOKEN and YANDEX_FOLDER_ID are required for provider %q", c.LLMProvider)
		}
	default:
		return fmt.Errorf("unknown llm provider: %s", c.LLMProvider)
	}
	if c.CommandPrefix == "" {
		return fmt.Errorf("COMMAND_PREFIX must not be empty")
	}
	if c.MessageLimit <= 0 || c.MaxHistory <= 0 || c.ConversationTimeout <= 0 {
		return fmt.Errorf("MESSAGE_LIMIT, MAX_HISTORY and CONVERSATION_TIMEOUT must be positive")
	}
	if c.CompletionRetries < 0 {
		return fmt.Errorf("COMPLETION_RETRIES must not be negative")
	}
	return nil
}

func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.ConversationTimeout) * time.Second
}

func (c *Config) ConversationsDir() string { return filepath.Join(c.DataDir, "conversations") }
func (c *Config) StatsFile() string        { return filepath.Join(c.DataDir, "stats", "all_stats.json") }
func (c *Config) ReportsDir() string       { return filepath.Join(c.DataDir, "reports") }
func (c *Config) PromptsFile() string {
	return filepath.Join(c.DataDir, "system_prompts", "prompts.json")
}
