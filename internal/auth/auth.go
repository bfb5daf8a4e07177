// Package auth decides whether an inbound message may drive the bot.
// Only one operator, the owner, is ever allowed.
package auth

import (
	"strings"

	"kbot/internal/platform"
)

type Decision int

const (
	// Ignore means no reply and no further processing.
	Ignore Decision = iota
	Allow
	// Refuse means a single refusal is sent and nothing else happens.
	Refuse
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Refuse:
		return "refuse"
	default:
		return "ignore"
	}
}

type Gate struct {
	ownerID string
	botID   string
}

func NewGate(ownerID, botID string) *Gate {
	return &Gate{ownerID: ownerID, botID: botID}
}

func (g *Gate) OwnerID() string { return g.ownerID }

// Check classifies msg. invoked reports whether the message carries the
// command sigil or addresses the bot directly.
func (g *Gate) Check(msg platform.Message, invoked bool) Decision {
	if msg.AuthorID == g.botID {
		return Ignore
	}
	if msg.MentionsEveryone {
		return Ignore
	}
	for _, role := range msg.RoleMentions {
		if role != "" && strings.Contains(msg.Content, role) {
			return Ignore
		}
	}
	if !invoked {
		return Ignore
	}
	if msg.AuthorID != g.ownerID {
		return Refuse
	}
	return Allow
}
