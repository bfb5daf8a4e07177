// Package dispatch sends transcripts to the completion provider.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"kbot/internal/llm"
	"kbot/internal/metrics"
)

var (
	ErrCompletion      = errors.New("completion failed")
	ErrEmptyTranscript = errors.New("empty transcript")
)

const (
	DefaultMaxTokens   = 1000
	DefaultTemperature = 0.7

	pingPrompt    = "Reply with OK."
	pingMaxTokens = 10
)

// ActivePrompter reports the active system prompt, if any.
type ActivePrompter interface {
	Active() (name, content string, ok bool)
}

type Result struct {
	Text         string
	Model        string
	PromptName   string
	InputTokens  int
	OutputTokens int
	Duration     time.Duration
}

type Options struct {
	Client    llm.Client
	Catalog   *llm.Catalog
	Prompts   ActivePrompter
	MaxTokens int
	// Temperature defaults to DefaultTemperature when nil. Zero is a valid
	// setting.
	Temperature *float32
	Logger      zerolog.Logger
	Metrics     *metrics.Metrics
}

type Dispatcher struct {
	client      llm.Client
	catalog     *llm.Catalog
	prompts     ActivePrompter
	maxTokens   int
	temperature float32
	log         zerolog.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

func New(opts Options) *Dispatcher {
	d := &Dispatcher{
		client:      opts.Client,
		catalog:     opts.Catalog,
		prompts:     opts.Prompts,
		maxTokens:   opts.MaxTokens,
		temperature: DefaultTemperature,
		log:         opts.Logger,
		metrics:     opts.Metrics,
		now:         time.Now,
	}
	if d.catalog == nil {
		d.catalog = llm.DefaultCatalog()
	}
	if d.maxTokens <= 0 {
		d.maxTokens = DefaultMaxTokens
	}
	if opts.Temperature != nil {
		d.temperature = *opts.Temperature
	}
	return d
}

// Complete sends transcript to the model behind alias. When a system prompt
// is active it goes first as a system turn.
func (d *Dispatcher) Complete(ctx context.Context, transcript []llm.Message, alias string) (Result, error) {
	if len(transcript) == 0 {
		return Result{}, ErrEmptyTranscript
	}
	model, err := d.catalog.Resolve(alias)
	if err != nil {
		return Result{}, err
	}

	msgs := make([]llm.Message, 0, len(transcript)+1)
	var res Result
	if d.prompts != nil {
		if name, content, ok := d.prompts.Active(); ok {
			res.PromptName = name
			msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: content})
		}
	}
	msgs = append(msgs, transcript...)

	resp, dur, err := d.call(ctx, llm.Request{
		Model:       model,
		MaxTokens:   d.maxTokens,
		Temperature: d.temperature,
		Messages:    msgs,
	})
	if err != nil {
		return Result{}, err
	}
	res.Text = resp.Content
	res.Model = model
	res.InputTokens = resp.PromptTokens
	res.OutputTokens = resp.CompletionTokens
	res.Duration = dur
	zerolog.Ctx(ctx).Info().Str("model", model).Int("turns", len(msgs)).Str("prompt", res.PromptName).
		Int("input_tokens", res.InputTokens).Int("output_tokens", res.OutputTokens).Dur("duration", dur).
		Msg("completion done")
	return res, nil
}

// PingResult is the outcome of the latency self-test.
type PingResult struct {
	OK       bool
	Model    string
	Reply    string
	Sent     time.Time
	Received time.Time
	Result   Result
}

// Ping asks the default model for a fixed short answer at temperature zero.
func (d *Dispatcher) Ping(ctx context.Context) (PingResult, error) {
	model, err := d.catalog.Resolve(d.catalog.DefaultAlias)
	if err != nil {
		return PingResult{}, err
	}
	sent := d.now()
	resp, dur, err := d.call(ctx, llm.Request{
		Model:       model,
		MaxTokens:   pingMaxTokens,
		Temperature: 0,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: pingPrompt}},
	})
	if err != nil {
		return PingResult{Model: model, Sent: sent, Received: sent.Add(dur)}, err
	}
	reply := strings.TrimSpace(resp.Content)
	return PingResult{
		OK:       strings.ToUpper(strings.TrimRight(reply, ".!")) == "OK",
		Model:    model,
		Reply:    reply,
		Sent:     sent,
		Received: sent.Add(dur),
		Result: Result{
			Text:         resp.Content,
			Model:        model,
			InputTokens:  resp.PromptTokens,
			OutputTokens: resp.CompletionTokens,
			Duration:     dur,
		},
	}, nil
}

func (d *Dispatcher) call(ctx context.Context, req llm.Request) (llm.Response, time.Duration, error) {
	start := d.now()
	resp, err := d.client.Complete(ctx, req)
	dur := d.now().Sub(start)
	if err != nil {
		d.metrics.Completion(req.Model, "error", dur)
		return llm.Response{}, dur, fmt.Errorf("%w: %w", ErrCompletion, err)
	}
	d.metrics.Completion(req.Model, "ok", dur)
	return resp, dur, nil
}

// Chunk splits text into pieces of at most limit characters, in order.
func Chunk(text string, limit int) []string {
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return []string{text}
	}
	chunks := make([]string, 0, (len(runes)+limit-1)/limit)
	for start := 0; start < len(runes); start += limit {
		end := start + limit
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
