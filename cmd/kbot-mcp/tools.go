package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"kbot/internal/analytics"
	"kbot/internal/config"
	"kbot/internal/prompts"
)

type UsageReportParams struct {
	Period string `json:"period,omitempty" mcp:"report period: day, week or all (default day)"`
}

type ListPromptsParams struct{}

// toolServer reads the bot's data files on every call so it always sees the
// state the running bot last persisted. It never writes.
type toolServer struct {
	cfg *config.Config
	log zerolog.Logger
}

func (s *toolServer) UsageReport(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[UsageReportParams]) (*mcp.CallToolResultFor[any], error) {
	period, err := analytics.ParsePeriod(params.Arguments.Period)
	if err != nil {
		return errorResult(fmt.Sprintf("❌ %v", err)), nil
	}
	ledger := analytics.Open(analytics.Options{StatsFile: s.cfg.StatsFile(), Logger: s.log})
	summary, ok := ledger.Summarize(period)
	if !ok {
		return textResult(analytics.NoStatistics), nil
	}
	return textResult(analytics.RenderReport(summary)), nil
}

func (s *toolServer) ListPrompts(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[ListPromptsParams]) (*mcp.CallToolResultFor[any], error) {
	registry := prompts.Open(prompts.Options{Path: s.cfg.PromptsFile(), Logger: s.log})
	entries := registry.List()
	if len(entries) == 0 {
		return textResult("No system prompts defined."), nil
	}
	var b strings.Builder
	for _, e := range entries {
		marker := " "
		if e.Active {
			marker = "*"
		}
		fmt.Fprintf(&b, "%s %s (updated %s)\n%s\n\n", marker, e.Name, e.UpdatedAt.Format("2006-01-02"), e.Content)
	}
	return textResult(strings.TrimRight(b.String(), "\n")), nil
}

func textResult(text string) *mcp.CallToolResultFor[any] {
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(text string) *mcp.CallToolResultFor[any] {
	return &mcp.CallToolResultFor[any]{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
