// Package openai generates answers through an OpenAI-compatible chat
// completion endpoint.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"ragqa/internal/contextutil"
	"ragqa/internal/domain"
	"ragqa/internal/generator"
)

const (
	DefaultBaseURL   = "https://api.siliconflow.cn/v1"
	DefaultModel     = "deepseek-ai/DeepSeek-V2.5"
	DefaultAPIKeyEnv = "DEEPSEEK_API_KEY"
)

// ErrMissingAPIKey is returned by NewClient when the key variable is unset.
var ErrMissingAPIKey = errors.New("missing API key")

// Config configures the chat-completion client.
type Config struct {
	BaseURL        string
	APIKeyEnv      string
	Model          string
	MaxTokens      int
	Temperature    float32
	SystemPrompt   string
	Timeout        time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// Client implements domain.Generator.
type Client struct {
	client       *goopenai.Client
	model        string
	maxTokens    int
	temperature  float32
	systemPrompt string
	maxRetries   int
	retryBase    time.Duration
	logger       *slog.Logger
}

// NewClient creates a client, reading the API key from cfg.APIKeyEnv.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = DefaultAPIKeyEnv
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("%w in env %s", ErrMissingAPIKey, cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	if cfg.Temperature < 0 {
		cfg.Temperature = 0.7
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = generator.DefaultSystemPrompt
	}
	t := cfg.Timeout
	if t == 0 {
		t = 60 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 200 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}

	oc := goopenai.DefaultConfig(key)
	oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	oc.HTTPClient = &http.Client{Timeout: t}
	return &Client{
		client:       goopenai.NewClientWithConfig(oc),
		model:        cfg.Model,
		maxTokens:    cfg.MaxTokens,
		temperature:  cfg.Temperature,
		systemPrompt: cfg.SystemPrompt,
		maxRetries:   cfg.MaxRetries,
		retryBase:    cfg.RetryBaseDelay,
		logger:       logger.With("component", "generator", "model", cfg.Model),
	}, nil
}

// Generate asks the model to answer question from chunks. Rate limits and
// server errors are retried with exponential backoff.
func (c *Client) Generate(ctx context.Context, question string, chunks []domain.Chunk) (string, error) {
	logger := contextutil.LoggerFromContextOr(ctx, c.logger)
	req := goopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: c.systemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: generator.UserPrompt(question, chunks)},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	for attempt := 0; ; attempt++ {
		start := time.Now()
		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err == nil {
			logger.Debug("chat completion finished", "attempt", attempt, "duration", time.Since(start))
			if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
				return "", &domain.GenerationError{Kind: domain.KindEmptyResponse, Err: errors.New("model returned no content")}
			}
			return resp.Choices[0].Message.Content, nil
		}

		genErr := classify(ctx, err)
		if attempt >= c.maxRetries || !retryable(err) {
			logger.Error("chat completion failed", "attempt", attempt, "kind", genErr.Kind, "error", err)
			return "", genErr
		}
		delay := retryDelay(c.retryBase, attempt)
		logger.Warn("chat completion failed, retrying", "attempt", attempt, "kind", genErr.Kind, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return "", classify(ctx, ctx.Err())
		case <-time.After(delay):
		}
	}
}

func statusCode(err error) int {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func retryable(err error) bool {
	code := statusCode(err)
	return code == http.StatusTooManyRequests || code >= 500
}

func classify(ctx context.Context, err error) *domain.GenerationError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &domain.GenerationError{Kind: domain.KindTimeout, Err: err}
	}
	if code := statusCode(err); code != 0 {
		return &domain.GenerationError{Kind: kindForStatus(code), Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &domain.GenerationError{Kind: domain.KindTimeout, Err: err}
	}
	if errors.As(err, &netErr) {
		return &domain.GenerationError{Kind: domain.KindNetwork, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &domain.GenerationError{Kind: domain.KindNetwork, Err: err}
	}
	return &domain.GenerationError{Kind: domain.KindAPI, Err: err}
}

func kindForStatus(code int) string {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return domain.KindAuthentication
	case code == http.StatusTooManyRequests:
		return domain.KindRateLimit
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return domain.KindTimeout
	case code == http.StatusServiceUnavailable:
		return domain.KindUnavailable
	default:
		return domain.KindAPI
	}
}

func retryDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second || d <= 0 {
		d = 5 * time.Second
	}
	return d
}
