// Package prompts keeps the named system prompts and the one that is active.
package prompts

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"kbot/internal/metrics"
	"kbot/internal/storage"
)

var (
	ErrNotFound = errors.New("prompt not found")
	ErrInvalid  = errors.New("prompt name and content must not be empty")
)

type Prompt struct {
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Entry is a prompt together with its name, as returned by List.
type Entry struct {
	Name string
	Prompt
	Active bool
}

type document struct {
	Prompts      map[string]Prompt `json:"prompts"`
	ActivePrompt *string           `json:"active_prompt"`
}

type Options struct {
	Path    string
	Now     func() time.Time
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

// Registry is safe for concurrent use. Every mutation is persisted before it
// returns; a failed write leaves the in-memory state updated and is reported.
type Registry struct {
	mu      sync.RWMutex
	path    string
	prompts map[string]Prompt
	active  string
	now     func() time.Time
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// Open loads the registry file. A missing file yields an empty registry; a
// corrupt one is logged and treated as empty.
func Open(opts Options) *Registry {
	r := &Registry{
		path:    opts.Path,
		prompts: make(map[string]Prompt),
		now:     opts.Now,
		log:     opts.Logger,
		metrics: opts.Metrics,
	}
	if r.now == nil {
		r.now = time.Now
	}

	var doc document
	ok, err := storage.ReadJSON(r.path, &doc)
	switch {
	case err != nil:
		r.log.Error().Err(err).Str("path", r.path).Msg("prompt registry unreadable, starting empty")
		return r
	case !ok:
		return r
	}
	for name, p := range doc.Prompts {
		r.prompts[name] = p
	}
	if doc.ActivePrompt != nil {
		if _, exists := r.prompts[*doc.ActivePrompt]; exists {
			r.active = *doc.ActivePrompt
		} else {
			r.log.Warn().Str("prompt", *doc.ActivePrompt).Msg("active prompt missing, clearing")
		}
	}
	return r
}

// Create adds a prompt or replaces the content of an existing one.
func (r *Registry) Create(name, content string) error {
	name = strings.TrimSpace(name)
	content = strings.TrimSpace(content)
	if name == "" || content == "" {
		return ErrInvalid
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now().UTC()
	p, exists := r.prompts[name]
	if !exists {
		p.CreatedAt = now
	}
	p.Content = content
	p.UpdatedAt = now
	r.prompts[name] = p
	return r.saveLocked()
}

// Delete removes a prompt, clearing the active pointer if it referenced it.
func (r *Registry) Delete(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.prompts[name]; !ok {
		return fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	delete(r.prompts, name)
	if r.active == name {
		r.active = ""
	}
	return r.saveLocked()
}

func (r *Registry) Get(name string) (Prompt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.prompts[name]
	if !ok {
		return Prompt{}, fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	return p, nil
}

// List returns every prompt sorted by name.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.prompts))
	for name, p := range r.prompts {
		out = append(out, Entry{Name: name, Prompt: p, Active: name == r.active})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) Use(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.prompts[name]; !ok {
		return fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	r.active = name
	return r.saveLocked()
}

func (r *Registry) ClearActive() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = ""
	return r.saveLocked()
}

// Active returns the active prompt, if any.
func (r *Registry) Active() (name, content string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.active == "" {
		return "", "", false
	}
	return r.active, r.prompts[r.active].Content, true
}

func (r *Registry) saveLocked() error {
	doc := document{Prompts: r.prompts}
	if r.active != "" {
		active := r.active
		doc.ActivePrompt = &active
	}
	if err := storage.WriteJSON(r.path, doc); err != nil {
		r.metrics.PersistenceFailure("prompts")
		r.log.Error().Err(err).Str("path", r.path).Msg("save prompt registry")
		return err
	}
	return nil
}
