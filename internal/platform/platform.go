// Package platform describes what the bot needs from a chat platform. Gateways
// (Telegram today) translate their native types into these.
package platform

import (
	"context"
	"errors"
)

// ErrNotFound is returned by FetchMessage when the message is unknown.
var ErrNotFound = errors.New("message not found")

// Message is an inbound or fetched chat message. It is never mutated by the bot.
type Message struct {
	ID        string
	AuthorID  string
	ChannelID string
	Content   string
	// ReplyTo is the ID of the message this one answers, empty when none.
	ReplyTo string

	MentionsBot      bool
	MentionsEveryone bool
	// RoleMentions are the mention tokens of the channel's roles.
	RoleMentions []string
}

// Outgoing is a text message to deliver.
type Outgoing struct {
	ChannelID string
	Text      string
	ReplyTo   string
}

type Platform interface {
	Send(ctx context.Context, out Outgoing) (string, error)
	Edit(ctx context.Context, channelID, messageID, text string) error
	SendFile(ctx context.Context, channelID, path, caption string) error
	FetchMessage(ctx context.Context, channelID, messageID string) (Message, error)

	BotID() string
	// BotMention is the token users type to address the bot.
	BotMention() string
	// Mention renders a mention of userID suitable for message text.
	Mention(userID string) string
}
