// Package mock provides test doubles for ai.Provider.
package mock

import (
	"context"
	"sync"

	"github.com/hyperjump/kurabe/internal/ai"
)

// Provider is a test double for ai.Provider. When CompareFunc is nil it returns Score.
type Provider struct {
	ProviderName string
	Score        float64
	Err          error

	// CompareFunc is called by Compare if set.
	CompareFunc func(ctx context.Context, textA, textB string) (float64, error)

	mu    sync.Mutex
	calls int
}

// NewProvider returns a provider that always answers score.
func NewProvider(name string, score float64) *Provider {
	return &Provider{ProviderName: name, Score: score}
}

// NewFailingProvider returns a provider that always fails with err wrapped as unavailable.
func NewFailingProvider(name string, err error) *Provider {
	return &Provider{ProviderName: name, Err: err}
}

// Name returns ProviderName.
func (p *Provider) Name() string { return p.ProviderName }

// Compare records the call and returns the configured answer.
func (p *Provider) Compare(ctx context.Context, textA, textB string) (float64, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	if p.CompareFunc != nil {
		return p.CompareFunc(ctx, textA, textB)
	}
	if p.Err != nil {
		return 0, ai.Unavailable(p.ProviderName, p.Err)
	}
	return p.Score, nil
}

// CallCount returns how many times Compare was called.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
