// Package openai implements ai.Provider on top of OpenAI-compatible chat completion APIs
// such as Mistral and OpenRouter.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hyperjump/kurabe/internal/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	temperature     = 0.1
	maxAnswerTokens = 10
)

// Config describes one chat completion endpoint.
type Config struct {
	Name              string
	BaseURL           string
	Model             string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	Headers           map[string]string
	PromptChars       int
}

// Validate checks that the endpoint can be called.
func (c *Config) Validate() error {
	if c.Name == "" {
		return errors.New("provider name is required")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("provider %s: base URL is required", c.Name)
	}
	if c.Model == "" {
		return fmt.Errorf("provider %s: model is required", c.Name)
	}
	if c.APIKey == "" {
		return fmt.Errorf("provider %s: API key is required", c.Name)
	}
	return nil
}

// Provider asks a chat model for a bare similarity number.
type Provider struct {
	name        string
	client      llms.Model
	limiter     *rate.Limiter
	timeout     time.Duration
	promptChars int
	logger      *zap.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets a logger for request diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// New creates a Provider for cfg. httpClient may be nil to use http.DefaultClient's transport.
func New(cfg Config, httpClient *http.Client, opts ...Option) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if len(cfg.Headers) > 0 {
		base := httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		clone := *httpClient
		clone.Transport = &headerTransport{base: base, headers: cfg.Headers}
		httpClient = &clone
	}

	client, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
		openai.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", cfg.Name, err)
	}

	rps := cfg.RequestsPerSecond
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	p := &Provider{
		name:        cfg.Name,
		client:      client,
		limiter:     rate.NewLimiter(limit, burst),
		timeout:     timeout,
		promptChars: cfg.PromptChars,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Name returns the configured provider name.
func (p *Provider) Name() string { return p.name }

// Compare sends both text prefixes to the model and parses its answer. The call, including
// time spent waiting for the rate limiter, is bounded by the provider timeout.
func (p *Provider) Compare(ctx context.Context, textA, textB string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.limiter.Wait(ctx); err != nil {
		return 0, ai.Unavailable(p.name, fmt.Errorf("rate limit wait: %w", err))
	}

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, ai.SystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, ai.BuildPrompt(textA, textB, p.promptChars)),
	}
	start := time.Now()
	resp, err := p.client.GenerateContent(ctx, content,
		llms.WithTemperature(temperature),
		llms.WithMaxTokens(maxAnswerTokens),
		openai.WithLegacyMaxTokensField(),
	)
	if err != nil {
		return 0, ai.Unavailable(p.name, err)
	}
	if len(resp.Choices) == 0 {
		return 0, ai.Unavailable(p.name, errors.New("no choices in response"))
	}

	score, err := ai.ParseScore(resp.Choices[0].Content)
	if err != nil {
		return 0, ai.Unavailable(p.name, err)
	}
	p.logger.Debug("provider answered",
		zap.String("provider", p.name),
		zap.Float64("score", score),
		zap.Duration("took", time.Since(start)))
	return score, nil
}

// headerTransport adds fixed headers to every request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}
