package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

const defaultBaseURL = "https://openrouter.ai/api/v1"

// Config configures the OpenRouter client.
type Config struct {
	APIKey           string
	BaseURL          string
	Referer          string
	Title            string
	Timeout          time.Duration
	MaxRetries       int
	BreakerThreshold uint32
	BreakerCooldown  time.Duration
}

// OpenRouterClient calls the OpenRouter chat completions API with retries
// and a circuit breaker per model.
type OpenRouterClient struct {
	config *Config
	client *http.Client
	logger Logger
	sleep  func(ctx context.Context, d time.Duration)

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[*Response]
}

func NewOpenRouterClient(config *Config, log Logger) *OpenRouterClient {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.BreakerThreshold == 0 {
		config.BreakerThreshold = 5
	}
	if config.BreakerCooldown == 0 {
		config.BreakerCooldown = 30 * time.Second
	}
	return &OpenRouterClient{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		logger: log.With(map[string]interface{}{
			"component": "openrouter",
		}),
		sleep:    sleepContext,
		breakers: make(map[string]*gobreaker.CircuitBreaker[*Response]),
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

// Complete implements Backend.
func (c *OpenRouterClient) Complete(ctx context.Context, req Request) (*Response, error) {
	if c.config.APIKey == "" {
		return nil, &ClassifiedError{Kind: KindAuth, Message: "OpenRouter API key is not configured"}
	}

	cb := c.breaker(req.Model)
	resp, err := cb.Execute(func() (*Response, error) {
		resp, err := c.completeWithRetry(ctx, req)
		var ce *ClassifiedError
		if err != nil && ctx.Err() != nil && errors.As(err, &ce) {
			ce.Canceled = true
		}
		return resp, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &ClassifiedError{
			Kind:    KindOverloaded,
			Message: fmt.Sprintf("circuit breaker open for model %s", req.Model),
		}
	}
	return resp, err
}

func (c *OpenRouterClient) completeWithRetry(ctx context.Context, req Request) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoff(attempt)
			var ce *ClassifiedError
			if errors.As(lastErr, &ce) && ce.RetryAfter > 0 {
				delay = ce.RetryAfter
			}
			c.logger.Warn("retrying completion", map[string]interface{}{
				"model":   req.Model,
				"attempt": attempt,
				"delay":   delay.String(),
				"error":   lastErr.Error(),
			})
			c.sleep(ctx, delay)
			if ctx.Err() != nil {
				return nil, classifyTransportError(ctx, ctx.Err())
			}
		}

		resp, err := c.do(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var ce *ClassifiedError
		if !errors.As(err, &ce) || !ce.Retryable() || ctx.Err() != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// backoff doubles from 100ms with jitter in [0.5, 1.5).
func backoff(attempt int) time.Duration {
	base := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
	return time.Duration(float64(base) * (0.5 + rand.Float64()))
}

func (c *OpenRouterClient) do(ctx context.Context, req Request) (*Response, error) {
	payload := chatRequest{
		Model: req.Model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Temperature: req.Temperature,
	}
	if req.JSONMode {
		payload.ResponseFormat = map[string]string{"type": "json_object"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	if c.config.Referer != "" {
		httpReq.Header.Set("HTTP-Referer", c.config.Referer)
	}
	if c.config.Title != "" {
		httpReq.Header.Set("X-Title", c.config.Title)
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(httpResp)
	}

	var cr chatResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&cr); err != nil {
		return nil, &ClassifiedError{Kind: KindMalformed, StatusCode: httpResp.StatusCode, Message: err.Error()}
	}
	if len(cr.Choices) == 0 {
		return nil, &ClassifiedError{Kind: KindMalformed, StatusCode: httpResp.StatusCode, Message: "response contains no choices"}
	}

	model := cr.Model
	if model == "" {
		model = req.Model
	}
	return &Response{
		Content: cr.Choices[0].Message.Content,
		Model:   model,
		Usage:   cr.Usage,
	}, nil
}

func (c *OpenRouterClient) breaker(model string) *gobreaker.CircuitBreaker[*Response] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cb, ok := c.breakers[model]; ok {
		return cb
	}

	threshold := c.config.BreakerThreshold
	cb := gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:        "openrouter-" + model,
		MaxRequests: 1,
		Timeout:     c.config.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state change", map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
		// Caller mistakes do not indicate an unhealthy provider.
		IsSuccessful: func(err error) bool {
			// gobreaker has no neutral outcome; caller cancellations count
			// as successes so they never trip the shared breaker.
			var ce *ClassifiedError
			if errors.As(err, &ce) && ce.Canceled {
				return true
			}
			switch KindOf(err) {
			case KindAuth, KindNotFound, KindBadRequest:
				return true
			}
			return err == nil
		},
	})
	c.breakers[model] = cb
	return cb
}
