// Package bot routes owner commands to the stores and the completion
// dispatcher and delivers the replies.
package bot

import (
	"context"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"kbot/internal/analytics"
	"kbot/internal/auth"
	"kbot/internal/chain"
	"kbot/internal/dispatch"
	"kbot/internal/history"
	"kbot/internal/metrics"
	"kbot/internal/platform"
	"kbot/internal/prompts"
)

// Command names, without the sigil.
const (
	cmdAsk    = "ask"
	cmdStats  = "stats"
	cmdExport = "export"
	cmdClear  = "clear"
	cmdHelp   = "help"
	cmdSys    = "sys"
	cmdTest   = "test"
)

type Options struct {
	Platform   platform.Platform
	Gate       *auth.Gate
	Resolver   *chain.Resolver
	Dispatcher *dispatch.Dispatcher
	Ledger     *analytics.Ledger
	Sessions   *history.Manager
	Prompts    *prompts.Registry

	Sigil        string
	MessageLimit int
	// SessionContext feeds the channel's live session into direct asks.
	SessionContext bool

	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

type Bot struct {
	platform   platform.Platform
	gate       *auth.Gate
	resolver   *chain.Resolver
	formatter  chain.Formatter
	dispatcher *dispatch.Dispatcher
	ledger     *analytics.Ledger
	sessions   *history.Manager
	prompts    *prompts.Registry

	sigil          string
	messageLimit   int
	sessionContext bool

	locks   *channelLocks
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func New(opts Options) *Bot {
	b := &Bot{
		platform:       opts.Platform,
		gate:           opts.Gate,
		resolver:       opts.Resolver,
		dispatcher:     opts.Dispatcher,
		ledger:         opts.Ledger,
		sessions:       opts.Sessions,
		prompts:        opts.Prompts,
		sigil:          opts.Sigil,
		messageLimit:   opts.MessageLimit,
		sessionContext: opts.SessionContext,
		locks:          newChannelLocks(),
		log:            opts.Logger,
		metrics:        opts.Metrics,
	}
	if b.sigil == "" {
		b.sigil = "!k"
	}
	if b.messageLimit <= 0 {
		b.messageLimit = 2000
	}
	b.formatter = chain.Formatter{
		BotID:      opts.Platform.BotID(),
		BotMention: opts.Platform.BotMention(),
		Sigil:      b.sigil,
	}
	return b
}

type command struct {
	name string
	args string
}

// Handle processes one inbound message. It is safe to call from many
// goroutines; messages of the same channel are handled one at a time.
func (b *Bot) Handle(ctx context.Context, msg platform.Message) {
	log := b.log.With().
		Str("request_id", uuid.NewString()).
		Str("channel", msg.ChannelID).
		Str("message", msg.ID).
		Logger()
	ctx = log.WithContext(ctx)

	cmd, invoked := b.parse(msg)
	decision := b.gate.Check(msg, invoked)
	b.metrics.Event(decision.String())
	switch decision {
	case auth.Ignore:
		return
	case auth.Refuse:
		log.Warn().Str("author", msg.AuthorID).Msg("unauthorized invocation")
		b.send(ctx, msg.ChannelID, refusalText(b.platform.Mention(b.gate.OwnerID())), "")
		return
	}

	unlock := b.locks.Lock(msg.ChannelID)
	defer unlock()

	log.Info().Str("command", cmd.name).Bool("reply", msg.ReplyTo != "").Msg("command received")
	b.metrics.Command(cmd.name)

	switch cmd.name {
	case cmdAsk:
		b.ask(ctx, msg, cmd.args)
	case cmdStats:
		b.stats(ctx, msg, cmd.args)
	case cmdExport:
		b.export(ctx, msg)
	case cmdClear:
		b.clear(ctx, msg)
	case cmdHelp:
		b.send(ctx, msg.ChannelID, helpText(b.sigil), "")
	case cmdSys:
		b.sys(ctx, msg, cmd.args)
	case cmdTest:
		b.test(ctx, msg)
	default:
		// any other sigil token in a reply continues the thread
		if msg.ReplyTo != "" {
			b.ask(ctx, msg, cmd.args)
			return
		}
		b.send(ctx, msg.ChannelID, unknownCommand(b.sigil), "")
	}
}

// parse extracts the command. invoked is true when the message carries the
// sigil or addresses the bot; a bare mention is an ask.
func (b *Bot) parse(msg platform.Message) (command, bool) {
	text := strings.TrimSpace(msg.Content)
	mentioned := msg.MentionsBot
	if m := b.platform.BotMention(); m != "" && strings.HasPrefix(text, m) {
		mentioned = true
		text = strings.TrimSpace(text[len(m):])
	}
	if strings.HasPrefix(text, b.sigil) {
		token, rest := splitFirst(text)
		name := strings.ToLower(strings.TrimPrefix(token, b.sigil))
		return command{name: name, args: rest}, true
	}
	if mentioned {
		return command{name: cmdAsk, args: text}, true
	}
	return command{}, false
}

// splitFirst splits s at its first whitespace run. rest keeps its inner
// formatting but loses surrounding space.
func splitFirst(s string) (first, rest string) {
	s = strings.TrimSpace(s)
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}

func (b *Bot) send(ctx context.Context, channelID, text, replyTo string) string {
	id, err := b.platform.Send(ctx, platform.Outgoing{ChannelID: channelID, Text: text, ReplyTo: replyTo})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("send message")
	}
	return id
}

func (b *Bot) edit(ctx context.Context, channelID, messageID, text string) {
	if messageID == "" {
		b.send(ctx, channelID, text, "")
		return
	}
	if err := b.platform.Edit(ctx, channelID, messageID, text); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("edit message")
	}
}

// sendChunks delivers text in pieces of at most limit characters. The first
// piece replies to replyTo so later replies can continue the chain.
func (b *Bot) sendChunks(ctx context.Context, channelID, text, replyTo string, limit int) {
	for i, chunk := range dispatch.Chunk(text, limit) {
		to := ""
		if i == 0 {
			to = replyTo
		}
		b.send(ctx, channelID, chunk, to)
	}
}
