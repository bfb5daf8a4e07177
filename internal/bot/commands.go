package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"kbot/internal/analytics"
	"kbot/internal/dispatch"
	"kbot/internal/llm"
	"kbot/internal/platform"
	"kbot/internal/prompts"
)

var modelWords = map[string]bool{"haiku": true, "sonnet": true, "opus": true}

// ask answers a direct question, or continues the thread when msg is a reply.
func (b *Bot) ask(ctx context.Context, msg platform.Message, args string) {
	alias, text, modelGiven := parseAsk(args)

	if msg.ReplyTo != "" {
		b.askContextual(ctx, msg, alias, text)
		return
	}
	if args == "" {
		b.send(ctx, msg.ChannelID, askUsage(b.sigil), "")
		return
	}
	if modelGiven && text == "" {
		b.send(ctx, msg.ChannelID, fmt.Sprintf("Please provide a message with %sask", b.sigil), "")
		return
	}

	var transcript []llm.Message
	if b.sessionContext {
		transcript = b.sessions.Get(msg.ChannelID)
	}
	transcript = append(transcript, llm.Message{Role: llm.RoleUser, Content: text})
	b.complete(ctx, msg, transcript, alias, text)
}

// askContextual rebuilds the replied-to chain and sends it, followed by the
// command's own text when there is any.
func (b *Bot) askContextual(ctx context.Context, msg platform.Message, alias, text string) {
	msgs := b.resolver.Resolve(ctx, msg.ChannelID, msg.ReplyTo)
	b.metrics.Chain(len(msgs))
	transcript := b.formatter.Format(msgs)
	if text != "" {
		transcript = append(transcript, llm.Message{Role: llm.RoleUser, Content: text})
	}
	zerolog.Ctx(ctx).Debug().Int("chain", len(msgs)).Int("turns", len(transcript)).Msg("contextual ask")
	if len(transcript) == 0 {
		b.send(ctx, msg.ChannelID, emptyChainText, msg.ID)
		return
	}

	userTurn := text
	if userTurn == "" {
		if last := transcript[len(transcript)-1]; last.Role == llm.RoleUser {
			userTurn = last.Content
		}
	}
	b.complete(ctx, msg, transcript, alias, userTurn)
}

// parseAsk splits "[model] message". An unknown first word starts the
// message.
func parseAsk(args string) (alias, text string, modelGiven bool) {
	first, rest := splitFirst(args)
	if w := strings.ToLower(first); modelWords[w] {
		return llm.DefaultAlias + "-" + w, rest, true
	}
	return llm.DefaultAlias, strings.TrimSpace(args), false
}

func (b *Bot) complete(ctx context.Context, msg platform.Message, transcript []llm.Message, alias, userTurn string) {
	log := zerolog.Ctx(ctx)
	waitID := b.send(ctx, msg.ChannelID, waitText, "")

	res, err := b.dispatcher.Complete(ctx, transcript, alias)
	if err != nil {
		log.Error().Err(err).Str("alias", alias).Msg("completion failed")
		text := apologyText
		if errors.Is(err, llm.ErrUnknownModel) {
			text = unknownModel
		}
		b.edit(ctx, msg.ChannelID, waitID, text)
		return
	}
	b.edit(ctx, msg.ChannelID, waitID, fmt.Sprintf("⌛ Response generated in %.2fs", res.Duration.Seconds()))

	if _, err := b.ledger.Track(res.Model, res.InputTokens, res.OutputTokens); err != nil {
		log.Warn().Err(err).Str("model", res.Model).Msg("usage not tracked")
	}

	turns := make([]llm.Message, 0, 2)
	if userTurn != "" {
		turns = append(turns, llm.Message{Role: llm.RoleUser, Content: userTurn})
	}
	b.sessions.Append(msg.ChannelID, append(turns, llm.Message{Role: llm.RoleAssistant, Content: res.Text})...)

	if res.PromptName != "" {
		b.send(ctx, msg.ChannelID, fmt.Sprintf("🔧 Prompt: `%s`", res.PromptName), "")
	}
	text := res.Text
	if strings.TrimSpace(text) == "" {
		text = "(empty response)"
	}
	b.sendChunks(ctx, msg.ChannelID, text, msg.ID, b.messageLimit)
}

func (b *Bot) stats(ctx context.Context, msg platform.Message, args string) {
	first, _ := splitFirst(args)
	period, err := analytics.ParsePeriod(first)
	if err != nil {
		b.send(ctx, msg.ChannelID, fmt.Sprintf("Usage: %sstats [day|week|all]", b.sigil), "")
		return
	}
	report := b.ledger.Report(period)
	for _, chunk := range dispatch.Chunk(report, statsChunk) {
		b.send(ctx, msg.ChannelID, "```md\n"+chunk+"\n```", "")
	}
}

func (b *Bot) export(ctx context.Context, msg platform.Message) {
	path, err := b.ledger.Export("", "")
	switch {
	case errors.Is(err, analytics.ErrNoData):
		b.send(ctx, msg.ChannelID, noExportText, "")
		return
	case err != nil:
		zerolog.Ctx(ctx).Error().Err(err).Msg("export stats")
		b.send(ctx, msg.ChannelID, exportErrText, "")
		return
	}
	if err := b.platform.SendFile(ctx, msg.ChannelID, path, "Here is the statistics export:"); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("path", path).Msg("upload export")
		b.send(ctx, msg.ChannelID, exportErrText, "")
	}
}

func (b *Bot) clear(ctx context.Context, msg platform.Message) {
	existed := b.sessions.Clear(msg.ChannelID)
	zerolog.Ctx(ctx).Info().Bool("existed", existed).Msg("session cleared")
	b.send(ctx, msg.ChannelID, clearedText, "")
}

func (b *Bot) sys(ctx context.Context, msg platform.Message, args string) {
	action, rest := splitFirst(args)
	name, content := splitFirst(rest)
	ch := msg.ChannelID

	switch strings.ToLower(action) {
	case "":
		b.send(ctx, ch, sysHelp(b.sigil), "")
	case "list":
		entries := b.prompts.List()
		if len(entries) == 0 {
			b.send(ctx, ch, "No system prompts defined.", "")
			return
		}
		var sb strings.Builder
		sb.WriteString("**Available system prompts:**\n\n")
		for _, e := range entries {
			marker := "  "
			if e.Active {
				marker = "✅ "
			}
			fmt.Fprintf(&sb, "%s`%s`\n  Created: %s\n  Updated: %s\n\n", marker, e.Name,
				e.CreatedAt.Format("02/01/2006"), e.UpdatedAt.Format("02/01/2006"))
		}
		b.sendChunks(ctx, ch, strings.TrimRight(sb.String(), "\n"), "", b.messageLimit)
	case "show":
		if name == "" {
			b.send(ctx, ch, "❌ Please give the name of the prompt to show.", "")
			return
		}
		p, err := b.prompts.Get(name)
		if err != nil {
			b.send(ctx, ch, fmt.Sprintf("❌ Prompt '%s' not found.", name), "")
			return
		}
		text := fmt.Sprintf("**System prompt: %s**\n\n```\n%s\n```\nCreated: %s\nUpdated: %s",
			name, p.Content, p.CreatedAt.Format("02/01/2006"), p.UpdatedAt.Format("02/01/2006"))
		b.sendChunks(ctx, ch, text, "", b.messageLimit)
	case "create":
		if name == "" || content == "" {
			b.send(ctx, ch, "❌ Please give a name and a content for the prompt.", "")
			return
		}
		if err := b.prompts.Create(name, content); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("prompt", name).Msg("create prompt")
			b.send(ctx, ch, "❌ Could not save the system prompt.", "")
			return
		}
		b.send(ctx, ch, fmt.Sprintf("✅ System prompt '%s' saved.", name), "")
	case "use":
		if name == "" {
			b.send(ctx, ch, "❌ Please give the name of the prompt to use.", "")
			return
		}
		if err := b.prompts.Use(name); err != nil {
			b.promptError(ctx, ch, name, err)
			return
		}
		b.send(ctx, ch, fmt.Sprintf("✅ System prompt '%s' activated.", name), "")
	case "clear":
		if err := b.prompts.ClearActive(); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("clear active prompt")
		}
		b.send(ctx, ch, "✅ No system prompt is active anymore.", "")
	case "delete":
		if name == "" {
			b.send(ctx, ch, "❌ Please give the name of the prompt to delete.", "")
			return
		}
		if err := b.prompts.Delete(name); err != nil {
			b.promptError(ctx, ch, name, err)
			return
		}
		b.send(ctx, ch, fmt.Sprintf("✅ System prompt '%s' deleted.", name), "")
	default:
		b.send(ctx, ch, fmt.Sprintf("❌ Unknown action '%s'.\n\n%s", action, sysHelp(b.sigil)), "")
	}
}

func (b *Bot) promptError(ctx context.Context, channelID, name string, err error) {
	if errors.Is(err, prompts.ErrNotFound) {
		b.send(ctx, channelID, fmt.Sprintf("❌ Prompt '%s' not found.", name), "")
		return
	}
	zerolog.Ctx(ctx).Error().Err(err).Str("prompt", name).Msg("update prompt registry")
	b.send(ctx, channelID, "❌ Could not save the system prompt.", "")
}

func (b *Bot) test(ctx context.Context, msg platform.Message) {
	const layout = "15:04:05.000"
	res, err := b.dispatcher.Ping(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("latency test")
		b.send(ctx, msg.ChannelID, fmt.Sprintf("```\nLatency test:\nRequest   : %s\nStatus    : KO (request failed)\n```",
			res.Sent.Format(layout)), "")
		return
	}
	if _, err := b.ledger.Track(res.Model, res.Result.InputTokens, res.Result.OutputTokens); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("model", res.Model).Msg("usage not tracked")
	}
	status := "KO"
	if res.OK {
		status = "OK"
	}
	b.send(ctx, msg.ChannelID, fmt.Sprintf("```\nLatency test:\nModel     : %s\nRequest   : %s\nResponse  : %s\nDuration  : %dms\nStatus    : %s\n```",
		res.Model, res.Sent.Format(layout), res.Received.Format(layout), res.Received.Sub(res.Sent).Milliseconds(), status), "")
}
