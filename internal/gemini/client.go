// Package gemini wraps the genai SDK as a plain text generator.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/rewired-gh/lottoracle/internal/logger"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

// ErrEmptyResponse is returned when the model answers without any text.
var ErrEmptyResponse = errors.New("gemini: empty response")

// contentGenerator is the subset of *genai.Models the client uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config holds the generation settings.
type Config struct {
	APIKey          string
	Model           string
	Temperature     float32
	MaxOutputTokens int32
	// Timeout bounds one Generate call including retries. Zero means none.
	Timeout         time.Duration
	MaxRetries      int
	RetryDelayBase  time.Duration
	RequestsPerMin  int
}

// Client generates free text from a prompt.
type Client struct {
	models         contentGenerator
	model          string
	genConfig      *genai.GenerateContentConfig
	limiter        *rate.Limiter
	timeout        time.Duration
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a client for the Gemini API backend.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return newClient(cli.Models, cfg), nil
}

func newClient(models contentGenerator, cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = 2 * time.Second
	}

	limit := rate.Inf
	if cfg.RequestsPerMin > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMin))
	}

	genCfg := &genai.GenerateContentConfig{}
	if cfg.Temperature > 0 {
		t := cfg.Temperature
		genCfg.Temperature = &t
	}
	if cfg.MaxOutputTokens > 0 {
		genCfg.MaxOutputTokens = cfg.MaxOutputTokens
	}

	return &Client{
		models:         models,
		model:          cfg.Model,
		genConfig:      genCfg,
		limiter:        rate.NewLimiter(limit, 1),
		timeout:        cfg.Timeout,
		maxRetries:     cfg.MaxRetries,
		retryDelayBase: cfg.RetryDelayBase,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Generate sends prompt as a single user turn and returns the concatenated
// text of the first candidate. Errors and empty answers are retried with an
// exponential backoff.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	contents := []*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: prompt}}}}
	logger.Debug("Gemini request to %s: %d bytes", c.model, len(prompt))

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}

		resp, err := c.models.GenerateContent(ctx, c.model, contents, c.genConfig)
		if err != nil {
			lastErr = err
		} else if text := responseText(resp); text == "" {
			lastErr = ErrEmptyResponse
		} else {
			return text, nil
		}
		logger.Warn("Gemini attempt %d/%d failed: %v", attempt+1, c.maxRetries, lastErr)

		if attempt == c.maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.retryDelayBase * time.Duration(1<<attempt)):
		}
	}

	return "", fmt.Errorf("generation failed after %d attempts: %w", c.maxRetries, lastErr)
}

// responseText joins the non-thought text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	content := resp.Candidates[0].Content
	if content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	return strings.TrimSpace(sb.String())
}
