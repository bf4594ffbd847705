package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Client talks to an OpenAI-compatible chat-completions endpoint. Transient
// failures are retried with exponential backoff inside the client; capacity
// rejections surface as ErrCapacity so callers can switch to chunked calls.
type Client struct {
	api   *openai.Client
	model string
	log   *slog.Logger
}

const (
	maxAttempts = 5
	maxTokens   = 16384
)

func NewClient(baseURL, apiKey, model string, log *slog.Logger) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(cfg),
		model: model,
		log:   log,
	}
}

func (c *Client) CompleteJSON(ctx context.Context, system, user string) ([]byte, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		MaxTokens:   maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err == nil {
			if len(resp.Choices) == 0 {
				return nil, fmt.Errorf("empty oracle response")
			}
			content := resp.Choices[0].Message.Content
			return []byte(StripWrapping(content)), nil
		}

		lastErr = classify(err)
		if IsCapacity(lastErr) || !IsRetryable(lastErr) {
			return nil, lastErr
		}
		if attempt == maxAttempts-1 {
			break
		}
		wait := backoff(attempt)
		c.log.Warn("oracle call failed, retrying",
			"attempt", attempt+1, "wait", wait.String(), "error", lastErr)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("oracle call failed after %d attempts: %w", maxAttempts, lastErr)
}

// classify maps transport errors onto the package's error taxonomy.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if isCapacityAPIError(apiErr) {
			return fmt.Errorf("%s: %w", apiErr.Message, ErrCapacity)
		}
		if apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500 {
			return &RetryableError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
		}
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &RetryableError{Message: netErr.Error()}
	}
	return err
}

func isCapacityAPIError(apiErr *openai.APIError) bool {
	if code, ok := apiErr.Code.(string); ok && strings.Contains(code, "context_length") {
		return true
	}
	msg := strings.ToLower(apiErr.Message)
	return strings.Contains(msg, "context length") || strings.Contains(msg, "maximum context") ||
		strings.Contains(msg, "too many tokens")
}

// backoff returns the wait for attempt n (0-indexed) with jitter.
func backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int63n(int64(base) / 2))
	return base + jitter
}
