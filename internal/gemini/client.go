// Package gemini analyzes receipt images with the Google Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// DefaultModel is the Gemini model used for receipt analysis.
const DefaultModel = "gemini-2.5-flash"

// DefaultRateLimit allows one request per two seconds with a burst of five,
// inside the free-tier quota.
var DefaultRateLimit = rate.Every(2 * time.Second)

const defaultBurst = 5

// ErrMissingAPIKey is returned by NewClient for an empty key.
var ErrMissingAPIKey = errors.New("gemini API key is required")

// ContentGenerator is the slice of the genai API the client uses, so tests
// can run without network access.
type ContentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

type modelsAdapter struct {
	models *genai.Models
}

func (m *modelsAdapter) GenerateContent(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	resp, err := m.models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("genai.GenerateContent: %w", err)
	}
	return resp, nil
}

// Client talks to Gemini.
type Client struct {
	generator ContentGenerator
	model     string
	limiter   *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithModel overrides DefaultModel.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithRateLimit replaces the request limiter. rate.Inf disables limiting.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(limit, burst)
	}
}

// NewClient creates a client for the Gemini API backend.
func NewClient(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return NewClientWithGenerator(&modelsAdapter{models: client.Models}, opts...), nil
}

// NewClientWithGenerator creates a Client over any ContentGenerator.
func NewClientWithGenerator(generator ContentGenerator, opts ...Option) *Client {
	c := &Client{
		generator: generator,
		model:     DefaultModel,
		limiter:   rate.NewLimiter(DefaultRateLimit, defaultBurst),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the model name requests are sent to.
func (c *Client) Model() string {
	return c.model
}
