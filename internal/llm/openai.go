package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

var ErrEmptyResponse = errors.New("completion returned no choices")

// OpenAIClient talks to any OpenAI-compatible chat completion endpoint,
// Anthropic's included.
type OpenAIClient struct {
	client *openai.Client
	policy retryPolicy
}

func NewOpenAI(apiKey, baseURL string, timeout time.Duration, retries int, log zerolog.Logger) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	config.HTTPClient = &http.Client{Timeout: timeout + 5*time.Second}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(config),
		policy: retryPolicy{
			timeout:   timeout,
			retries:   retries,
			retryWait: defaultRetryWait,
			retryable: retryable,
			log:       log,
		},
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Response, error) {
	oaMsgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		oaMsgs = append(oaMsgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	temperature := req.Temperature
	if temperature == 0 {
		// go-openai drops a zero temperature from the payload
		temperature = math.SmallestNonzeroFloat32
	}
	oaReq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    oaMsgs,
		MaxTokens:   req.MaxTokens,
		Temperature: temperature,
	}

	var resp openai.ChatCompletionResponse
	err := c.policy.do(ctx, req.Model, func(ctx context.Context) error {
		r, err := c.client.CreateChatCompletion(ctx, oaReq)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return Response{}, fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, ErrEmptyResponse
	}

	out := Response{
		Content: resp.Choices[0].Message.Content,
		Model:   req.Model,
	}
	out.PromptTokens = resp.Usage.PromptTokens
	out.CompletionTokens = resp.Usage.CompletionTokens
	out.TotalTokens = resp.Usage.TotalTokens
	return out, nil
}

// retryable reports whether another attempt could succeed. Credential and
// request-shape errors never will.
func retryable(err error) bool {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
		http.StatusNotFound, http.StatusUnprocessableEntity:
		return false
	}
	return true
}
