// Package telegram adapts the Telegram Bot API to the platform interface.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"kbot/internal/platform"
)

const defaultCacheSize = 5000

// Handler receives every inbound message on its own goroutine.
type Handler func(ctx context.Context, msg platform.Message)

type Options struct {
	OwnerID       string
	OwnerUsername string
	CacheSize     int
	Logger        zerolog.Logger
}

type Adapter struct {
	api   *tgbotapi.BotAPI
	s     sender
	self  tgbotapi.User
	cache *messageCache

	ownerID       string
	ownerUsername string

	mu        sync.Mutex
	usernames map[string]string

	wg  sync.WaitGroup
	log zerolog.Logger
}

func New(botToken string, opts Options) (*Adapter, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("connect telegram: %w", err)
	}
	a := newAdapter(botAPISender{api: api}, api.Self, opts)
	a.api = api
	a.log.Info().Str("username", api.Self.UserName).Int64("id", api.Self.ID).Msg("telegram authorized")
	return a, nil
}

func newAdapter(s sender, self tgbotapi.User, opts Options) *Adapter {
	size := opts.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	return &Adapter{
		s:             s,
		self:          self,
		cache:         newMessageCache(size),
		ownerID:       opts.OwnerID,
		ownerUsername: strings.TrimPrefix(opts.OwnerUsername, "@"),
		usernames:     make(map[string]string),
		log:           opts.Logger,
	}
}

// Run long-polls updates until ctx is done, then waits for running handlers.
func (a *Adapter) Run(ctx context.Context, h Handler) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := a.api.GetUpdatesChan(u)
	defer a.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			a.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			a.dispatch(ctx, update.Message, h)
		}
	}
}

func (a *Adapter) dispatch(ctx context.Context, m *tgbotapi.Message, h Handler) {
	msg := a.observe(m)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				a.log.Error().Interface("panic", r).Str("message", msg.ID).Msg("handler panicked")
			}
		}()
		h(ctx, msg)
	}()
}

// observe converts m and caches it together with the message it replies to.
func (a *Adapter) observe(m *tgbotapi.Message) platform.Message {
	if m.ReplyToMessage != nil {
		a.cache.addIfAbsent(a.convert(m.ReplyToMessage))
	}
	msg := a.convert(m)
	a.cache.add(msg)
	return msg
}

func (a *Adapter) convert(m *tgbotapi.Message) platform.Message {
	msg := platform.Message{
		ID:      strconv.Itoa(m.MessageID),
		Content: m.Text,
	}
	if msg.Content == "" {
		msg.Content = m.Caption
	}
	if m.Chat != nil {
		msg.ChannelID = strconv.FormatInt(m.Chat.ID, 10)
	}
	if m.From != nil {
		msg.AuthorID = strconv.FormatInt(m.From.ID, 10)
		if m.From.UserName != "" {
			a.mu.Lock()
			a.usernames[msg.AuthorID] = m.From.UserName
			a.mu.Unlock()
		}
	}
	if m.ReplyToMessage != nil {
		msg.ReplyTo = strconv.Itoa(m.ReplyToMessage.MessageID)
	}
	if a.self.UserName != "" {
		msg.MentionsBot = strings.Contains(strings.ToLower(msg.Content), strings.ToLower(a.BotMention()))
	}
	return msg
}

func (a *Adapter) Send(_ context.Context, out platform.Outgoing) (string, error) {
	chatID, err := strconv.ParseInt(out.ChannelID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("chat id %q: %w", out.ChannelID, err)
	}
	cfg := tgbotapi.NewMessage(chatID, out.Text)
	if out.ReplyTo != "" {
		if id, err := strconv.Atoi(out.ReplyTo); err == nil {
			cfg.ReplyToMessageID = id
			cfg.AllowSendingWithoutReply = true
		}
	}
	sent, err := a.s.Send(cfg)
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	msg := a.convert(&sent)
	if msg.ChannelID == "" {
		msg.ChannelID = out.ChannelID
	}
	if msg.AuthorID == "" {
		msg.AuthorID = a.BotID()
	}
	if msg.ReplyTo == "" {
		msg.ReplyTo = out.ReplyTo
	}
	a.cache.add(msg)
	return msg.ID, nil
}

func (a *Adapter) Edit(_ context.Context, channelID, messageID, text string) error {
	chatID, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return fmt.Errorf("chat id %q: %w", channelID, err)
	}
	id, err := strconv.Atoi(messageID)
	if err != nil {
		return fmt.Errorf("message id %q: %w", messageID, err)
	}
	if _, err := a.s.Send(tgbotapi.NewEditMessageText(chatID, id, text)); err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	a.cache.setText(channelID, messageID, text)
	return nil
}

func (a *Adapter) SendFile(_ context.Context, channelID, path, caption string) error {
	chatID, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return fmt.Errorf("chat id %q: %w", channelID, err)
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	doc.Caption = caption
	if _, err := a.s.Send(doc); err != nil {
		return fmt.Errorf("send document: %w", err)
	}
	return nil
}

func (a *Adapter) FetchMessage(_ context.Context, channelID, messageID string) (platform.Message, error) {
	m, ok := a.cache.get(channelID, messageID)
	if !ok {
		return platform.Message{}, fmt.Errorf("%s/%s: %w", channelID, messageID, platform.ErrNotFound)
	}
	return m, nil
}

func (a *Adapter) BotID() string { return strconv.FormatInt(a.self.ID, 10) }

func (a *Adapter) BotMention() string {
	if a.self.UserName == "" {
		return ""
	}
	return "@" + a.self.UserName
}

// Mention returns "@username" for users the adapter has seen, or the
// configured owner username. It is empty when no username is known.
func (a *Adapter) Mention(userID string) string {
	a.mu.Lock()
	name, ok := a.usernames[userID]
	a.mu.Unlock()
	if ok {
		return "@" + name
	}
	if userID == a.ownerID && a.ownerUsername != "" {
		return "@" + a.ownerUsername
	}
	return ""
}
