package llm

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Morwran/yagpt"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeYaGPT struct {
	calls atomic.Int32
	fn    func(ctx context.Context, call int32, m []yagpt.Message) (*yagpt.CompletionResponse, error)
}

func (f *fakeYaGPT) CompletionWithCtx(ctx context.Context, _ string, m []yagpt.Message) (*yagpt.CompletionResponse, error) {
	return f.fn(ctx, f.calls.Add(1), m)
}

func (f *fakeYaGPT) Completion(_ string, m []yagpt.Message) (*yagpt.CompletionResponse, error) {
	return f.CompletionWithCtx(context.Background(), "", m)
}

func newTestYandex(ya yagpt.YaGPTFace, timeout time.Duration, retries int) *YandexClient {
	c := newYandexClient(ya, "iam", timeout, retries, zerolog.Nop())
	c.policy.retryWait = time.Millisecond
	return c
}

func TestYandexClient_Complete(t *testing.T) {
	var got []yagpt.Message
	ya := &fakeYaGPT{fn: func(_ context.Context, _ int32, m []yagpt.Message) (*yagpt.CompletionResponse, error) {
		got = m
		return &yagpt.CompletionResponse{
			Alternatives: []yagpt.Alternative{{Message: yagpt.Message{Role: RoleAssistant, Content: "privet"}}},
			Usage:        yagpt.ContentUsage{InputTextTokens: 7, CompletionTokens: 2, TotalTokens: 9},
		}, nil
	}}

	resp, err := newTestYandex(ya, time.Second, 2).Complete(context.Background(), Request{
		Model:    ModelHaiku35,
		Messages: []Message{{Role: RoleSystem, Content: "be brief"}, {Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "privet", resp.Content)
	assert.Equal(t, ModelHaiku35, resp.Model)
	assert.Equal(t, 7, resp.PromptTokens)
	assert.Equal(t, 2, resp.CompletionTokens)
	assert.Equal(t, []yagpt.Message{{Role: RoleSystem, Content: "be brief"}, {Role: RoleUser, Content: "hi"}}, got)
}

func TestYandexClient_HangingCallTimesOut(t *testing.T) {
	ya := &fakeYaGPT{fn: func(ctx context.Context, _ int32, _ []yagpt.Message) (*yagpt.CompletionResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}

	done := make(chan error, 1)
	go func() {
		_, err := newTestYandex(ya, 20*time.Millisecond, 2).Complete(context.Background(), Request{
			Model:    ModelHaiku35,
			Messages: []Message{{Role: RoleUser, Content: "hi"}},
		})
		done <- err
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "Complete did not return after its attempts timed out")
	}
	assert.EqualValues(t, 3, ya.calls.Load())
}

func TestYandexClient_RetriesThenSucceeds(t *testing.T) {
	ya := &fakeYaGPT{fn: func(_ context.Context, call int32, _ []yagpt.Message) (*yagpt.CompletionResponse, error) {
		if call < 2 {
			return nil, status.Error(codes.Unavailable, "try later")
		}
		return &yagpt.CompletionResponse{Alternatives: []yagpt.Alternative{{Message: yagpt.Message{Content: "ok"}}}}, nil
	}}

	resp, err := newTestYandex(ya, time.Second, 2).Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.EqualValues(t, 2, ya.calls.Load())
}

func TestYandexClient_AuthErrorsAreNotRetried(t *testing.T) {
	ya := &fakeYaGPT{fn: func(context.Context, int32, []yagpt.Message) (*yagpt.CompletionResponse, error) {
		return nil, status.Error(codes.Unauthenticated, "bad iam token")
	}}

	_, err := newTestYandex(ya, time.Second, 2).Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	require.Error(t, err)
	assert.EqualValues(t, 1, ya.calls.Load())
}

func TestYandexClient_EmptyResponse(t *testing.T) {
	ya := &fakeYaGPT{fn: func(context.Context, int32, []yagpt.Message) (*yagpt.CompletionResponse, error) {
		return &yagpt.CompletionResponse{}, nil
	}}

	_, err := newTestYandex(ya, time.Second, 0).Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	require.ErrorIs(t, err, ErrEmptyResponse)
}
