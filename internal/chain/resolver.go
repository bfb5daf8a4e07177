// Package chain rebuilds a conversation from a platform reply chain and
// turns it into completion transcript turns.
package chain

import (
	"context"

	"github.com/rs/zerolog"

	"kbot/internal/platform"
)

// DefaultMaxDepth bounds how many messages a chain walk collects.
const DefaultMaxDepth = 10

type Fetcher interface {
	FetchMessage(ctx context.Context, channelID, messageID string) (platform.Message, error)
}

type Resolver struct {
	fetcher  Fetcher
	maxDepth int
	log      zerolog.Logger
}

func NewResolver(f Fetcher, maxDepth int, log zerolog.Logger) *Resolver {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Resolver{fetcher: f, maxDepth: maxDepth, log: log}
}

// Resolve walks reply links backward from startID and returns the collected
// messages oldest first. A failed fetch ends the walk; whatever was fetched
// before it is returned.
func (r *Resolver) Resolve(ctx context.Context, channelID, startID string) []platform.Message {
	var walked []platform.Message
	current := startID
	for current != "" && len(walked) < r.maxDepth {
		msg, err := r.fetcher.FetchMessage(ctx, channelID, current)
		if err != nil {
			r.log.Warn().Err(err).Str("channel", channelID).Str("message", current).Int("collected", len(walked)).
				Msg("chain walk stopped")
			break
		}
		r.log.Debug().Str("message", msg.ID).Str("author", msg.AuthorID).Str("reply_to", msg.ReplyTo).Msg("chain link")
		walked = append(walked, msg)
		current = msg.ReplyTo
	}

	out := make([]platform.Message, len(walked))
	for i, m := range walked {
		out[len(walked)-1-i] = m
	}
	return out
}
