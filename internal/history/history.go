// Package history keeps the live conversation of every channel and archives
// sessions that overflow, expire or are cleared.
package history

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"kbot/internal/llm"
	"kbot/internal/metrics"
	"kbot/internal/storage"
)

const archiveLayout = "20060102_150405"

// Archive reasons.
const (
	ReasonOverflow = "overflow"
	ReasonIdle     = "idle"
	ReasonCleared  = "cleared"
	ReasonShutdown = "shutdown"
)

type session struct {
	turns        []llm.Message
	lastActivity time.Time
}

// archive is the on-disk form of an archived session.
type archive struct {
	ChannelID string        `json:"channel_id"`
	Timestamp time.Time     `json:"timestamp"`
	Messages  []llm.Message `json:"messages"`
}

type Options struct {
	Dir        string
	MaxHistory int
	Timeout    time.Duration
	Now        func() time.Time
	Logger     zerolog.Logger
	Metrics    *metrics.Metrics
}

// Manager holds at most 2*MaxHistory turns per channel. Sessions idle for
// longer than Timeout are archived and dropped on the next Get or Append.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*session

	dir     string
	max     int
	timeout time.Duration
	now     func() time.Time
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func NewManager(opts Options) *Manager {
	m := &Manager{
		sessions: make(map[string]*session),
		dir:      opts.Dir,
		max:      opts.MaxHistory,
		timeout:  opts.Timeout,
		now:      opts.Now,
		log:      opts.Logger,
		metrics:  opts.Metrics,
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.max <= 0 {
		m.max = 10
	}
	return m
}

// Get returns a copy of the channel's turns, oldest first.
func (m *Manager) Get(channelID string) []llm.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked()
	s, ok := m.sessions[channelID]
	if !ok {
		return nil
	}
	out := make([]llm.Message, len(s.turns))
	copy(out, s.turns)
	return out
}

// Append adds turns to the channel's session, creating it if needed.
func (m *Manager) Append(channelID string, turns ...llm.Message) {
	if len(turns) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked()

	s, ok := m.sessions[channelID]
	if !ok {
		s = &session{}
		m.sessions[channelID] = s
	}
	s.turns = append(s.turns, turns...)
	s.lastActivity = m.now()

	if limit := 2 * m.max; len(s.turns) > limit {
		m.archiveLocked(channelID, s.turns, ReasonOverflow)
		kept := make([]llm.Message, limit)
		copy(kept, s.turns[len(s.turns)-limit:])
		s.turns = kept
	}
	m.metrics.Sessions(len(m.sessions))
}

// Clear archives the channel's session and drops it. It reports whether a
// session existed.
func (m *Manager) Clear(channelID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[channelID]
	if !ok {
		return false
	}
	m.archiveLocked(channelID, s.turns, ReasonCleared)
	delete(m.sessions, channelID)
	m.metrics.Sessions(len(m.sessions))
	return true
}

// Sweep archives and drops idle sessions, returning how many were removed.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked()
}

// Flush archives every live session. Sessions stay in memory.
func (m *Manager) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		m.archiveLocked(id, s.turns, ReasonShutdown)
	}
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) sweepLocked() int {
	if m.timeout <= 0 {
		return 0
	}
	now := m.now()
	removed := 0
	for id, s := range m.sessions {
		if now.Sub(s.lastActivity) <= m.timeout {
			continue
		}
		m.archiveLocked(id, s.turns, ReasonIdle)
		delete(m.sessions, id)
		removed++
	}
	if removed > 0 {
		m.log.Debug().Int("expired", removed).Int("live", len(m.sessions)).Msg("swept idle sessions")
		m.metrics.Sessions(len(m.sessions))
	}
	return removed
}

// archiveLocked writes turns to a new archive file. Failures are logged and
// never stop the caller from evicting or truncating.
func (m *Manager) archiveLocked(channelID string, turns []llm.Message, reason string) {
	if len(turns) == 0 || m.dir == "" {
		return
	}
	now := m.now()
	path := m.archivePath(channelID, now)
	err := storage.WriteJSON(path, archive{ChannelID: channelID, Timestamp: now.UTC(), Messages: turns})
	if err != nil {
		m.metrics.PersistenceFailure("sessions")
		m.log.Error().Err(err).Str("channel", channelID).Str("reason", reason).Msg("archive session")
		return
	}
	m.metrics.SessionArchived(reason, len(m.sessions))
	m.log.Info().Str("channel", channelID).Str("reason", reason).Int("turns", len(turns)).Str("file", path).Msg("session archived")
}

// archivePath picks a file name that does not exist yet; archives written
// within the same second get a numeric suffix.
func (m *Manager) archivePath(channelID string, at time.Time) string {
	base := fmt.Sprintf("%s_%s", channelID, at.Format(archiveLayout))
	path := filepath.Join(m.dir, base+".json")
	for n := 1; ; n++ {
		if _, err := os.Stat(path); err != nil {
			return path
		}
		path = filepath.Join(m.dir, fmt.Sprintf("%s_%d.json", base, n))
	}
}
