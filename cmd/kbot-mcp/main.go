// Command kbot-mcp exposes the bot's usage ledger and system prompts to MCP
// clients over stdio.
package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/pflag"

	"kbot/internal/config"
	"kbot/internal/logger"
)

func main() {
	envFile := pflag.String("env-file", ".env", "dotenv file loaded before reading the environment")
	dataDir := pflag.String("data-dir", "", "bot data directory, overrides DATA_DIR")
	pflag.Parse()

	// stdout carries the protocol
	log := logger.New(logger.Config{Level: os.Getenv("LOG_LEVEL"), Output: os.Stderr})
	if err := godotenv.Load(*envFile); err != nil {
		log.Debug().Err(err).Str("file", *envFile).Msg("dotenv file not loaded")
	}

	cfg := &config.Config{DataDir: os.Getenv("DATA_DIR")}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	tools := &toolServer{cfg: cfg, log: log}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "kbot-mcp",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "usage_report",
		Description: "Returns the bot's usage and cost report for a period (day, week or all)",
	}, tools.UsageReport)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_prompts",
		Description: "Lists the bot's system prompts and marks the active one",
	}, tools.ListPrompts)

	log.Info().Str("data_dir", cfg.DataDir).Msg("kbot-mcp serving on stdio")
	if err := server.Run(context.Background(), mcp.NewStdioTransport()); err != nil {
		log.Fatal().Err(err).Msg("mcp server failed")
	}
}
