package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/Morwran/yagpt"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// YandexClient serves completions from YandexGPT Lite. The model, token cap and
// temperature of a Request are not configurable through yagpt and are ignored.
type YandexClient struct {
	ya       yagpt.YaGPTFace
	iamToken string
	policy   retryPolicy
	log      zerolog.Logger
}

func NewYandex(oauthToken, folderID string, timeout time.Duration, retries int, log zerolog.Logger) (*YandexClient, error) {
	// Create IAM token from OAuth token
	iam, err := yagpt.NewYaIam(oauthToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init yandex iam: %w", err)
	}
	resp, err := iam.Create()
	if err != nil {
		return nil, fmt.Errorf("failed to create iam token: %w", err)
	}

	ya, err := yagpt.NewYagpt(folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to init yagpt: %w", err)
	}

	return newYandexClient(ya, resp.IamToken, timeout, retries, log), nil
}

func newYandexClient(ya yagpt.YaGPTFace, iamToken string, timeout time.Duration, retries int, log zerolog.Logger) *YandexClient {
	return &YandexClient{
		ya:       ya,
		iamToken: iamToken,
		policy: retryPolicy{
			timeout:   timeout,
			retries:   retries,
			retryWait: defaultRetryWait,
			retryable: yandexRetryable,
			log:       log,
		},
		log: log,
	}
}

func (c *YandexClient) Complete(ctx context.Context, req Request) (Response, error) {
	messages := make([]yagpt.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, yagpt.Message{Role: m.Role, Content: m.Content})
	}
	c.log.Debug().Str("requested_model", req.Model).Str("model", yagpt.YaModelLite).Msg("yagpt ignores model selection")

	var resp *yagpt.CompletionResponse
	err := c.policy.do(ctx, req.Model, func(ctx context.Context) error {
		r, err := c.ya.CompletionWithCtx(ctx, c.iamToken, messages)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return Response{}, fmt.Errorf("yagpt completion failed: %w", err)
	}
	if resp == nil || len(resp.Alternatives) == 0 {
		return Response{}, ErrEmptyResponse
	}
	out := Response{Content: resp.Alternatives[0].Message.Content, Model: req.Model}
	out.PromptTokens = int(resp.Usage.InputTextTokens)
	out.CompletionTokens = int(resp.Usage.CompletionTokens)
	out.TotalTokens = int(resp.Usage.TotalTokens)
	return out, nil
}

// yandexRetryable rejects gRPC statuses that no retry can fix.
func yandexRetryable(err error) bool {
	switch status.Code(err) {
	case codes.InvalidArgument, codes.Unauthenticated, codes.PermissionDenied,
		codes.NotFound, codes.FailedPrecondition:
		return false
	}
	return true
}
