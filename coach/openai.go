package coach

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

const (
	// DefaultURL is the chat completions endpoint.
	DefaultURL = "https://api.openai.com/v1/chat/completions"

	systemPrompt = "You are a trading discipline coach. Analyze violations and provide a single " +
		"paragraph of behavioral coaching focused on improving trading discipline. " +
		"Be specific, actionable, and encouraging."
)

// Config configures the OpenAI coach.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration

	// FailureThreshold consecutive failures open the breaker for Cooldown.
	FailureThreshold uint32
	Cooldown         time.Duration
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		BaseURL:          DefaultURL,
		Model:            "gpt-4o-mini",
		MaxTokens:        200,
		Temperature:      0.7,
		Timeout:          30 * time.Second,
		FailureThreshold: 3,
		Cooldown:         time.Minute,
	}
}

// OpenAI asks an OpenAI chat model for coaching. The circuit breaker lives
// on the client, so reuse one client for all calls that should share it.
type OpenAI struct {
	cfg        Config
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// NewOpenAI builds a coach. Zero fields in cfg take DefaultConfig values.
func NewOpenAI(cfg Config) *OpenAI {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = def.Cooldown
	}

	threshold := cfg.FailureThreshold
	return &OpenAI{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "openai-coach",
			Timeout: cfg.Cooldown,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= threshold
			},
		}),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Summarize implements Coach.
func (c *OpenAI) Summarize(ctx context.Context, in Input) (string, error) {
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("%w: OPENAI_API_KEY not set", ErrUnavailable)
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.complete(ctx, in)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

// State reports the breaker state, for diagnostics.
func (c *OpenAI) State() string {
	return c.breaker.State().String()
}

func (c *OpenAI) complete(ctx context.Context, in Input) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: Prompt(in)},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("openai http %d", resp.StatusCode)
	}

	var r chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", fmt.Errorf("openai response: %w", err)
	}
	if len(r.Choices) == 0 {
		return "", errors.New("openai response: no choices")
	}
	return strings.TrimSpace(r.Choices[0].Message.Content), nil
}
