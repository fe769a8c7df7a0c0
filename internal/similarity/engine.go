// Package similarity scores document pairs through an ordered chain of methods:
// exact hash, AI providers in order, TF-IDF cosine, then word-set Jaccard.
package similarity

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/kurabe/internal/ai"
	"github.com/hyperjump/kurabe/internal/models"
	"go.uber.org/zap"
)

// Text is one side of a comparison: normalized content plus its content hash.
type Text struct {
	Content string
	Hash    string
}

// Result is the outcome of one comparison. Method tags the step that produced Overall;
// Provider is set only when Method is models.MethodAI.
type Result struct {
	Overall           float64
	AI                *float64
	Traditional       *float64
	Method            models.Method
	Provider          string
	TraditionalMethod models.Method
	Exact             bool
}

// Detail returns the provenance record stored with a match.
func (r Result) Detail() models.MatchDetail {
	return models.MatchDetail{
		Method:            r.Method,
		ExactDuplicate:    r.Exact,
		Provider:          r.Provider,
		TraditionalMethod: r.TraditionalMethod,
	}
}

// Engine runs the similarity chain. Safe for concurrent use when its providers are.
type Engine struct {
	providers   []ai.Provider
	tfidf       *TFIDF
	maxFeatures int
	logger      *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets a logger for provider fallbacks.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithMaxFeatures caps the TF-IDF vocabulary size.
func WithMaxFeatures(n int) EngineOption {
	return func(e *Engine) { e.maxFeatures = n }
}

// NewEngine returns an Engine that consults providers in the given order. Nil providers
// are skipped, so a disabled provider can be passed as nil.
func NewEngine(providers []ai.Provider, opts ...EngineOption) (*Engine, error) {
	e := &Engine{maxFeatures: DefaultMaxFeatures, logger: zap.NewNop()}
	for _, p := range providers {
		if p != nil {
			e.providers = append(e.providers, p)
		}
	}
	for _, opt := range opts {
		opt(e)
	}
	tfidf, err := NewTFIDF(e.maxFeatures)
	if err != nil {
		return nil, fmt.Errorf("build tf-idf: %w", err)
	}
	e.tfidf = tfidf
	return e, nil
}

// Score compares a and b. It never fails: each unavailable method falls through to the next,
// and the lexical method always produces a value.
func (e *Engine) Score(ctx context.Context, a, b Text) Result {
	if a.Hash != "" && a.Hash == b.Hash {
		one := 1.0
		return Result{
			Overall:           1.0,
			AI:                &one,
			Traditional:       &one,
			Method:            models.MethodHash,
			TraditionalMethod: models.MethodHash,
			Exact:             true,
		}
	}

	trad, tradMethod := e.traditional(a.Content, b.Content)

	for _, p := range e.providers {
		score, err := p.Compare(ctx, a.Content, b.Content)
		if err != nil {
			e.logger.Warn("similarity provider unavailable, falling back",
				zap.String("provider", p.Name()),
				zap.Error(err))
			continue
		}
		return Result{
			Overall:           score,
			AI:                &score,
			Traditional:       &trad,
			Method:            models.MethodAI,
			Provider:          p.Name(),
			TraditionalMethod: tradMethod,
		}
	}

	return Result{
		Overall:           trad,
		Traditional:       &trad,
		Method:            tradMethod,
		TraditionalMethod: tradMethod,
	}
}

// traditional computes the local score: TF-IDF cosine, or Jaccard when TF-IDF is degenerate.
func (e *Engine) traditional(textA, textB string) (float64, models.Method) {
	score, err := e.tfidf.Similarity(textA, textB)
	if err == nil {
		return score, models.MethodStatistical
	}
	if !errors.Is(err, ErrEmptyVocabulary) {
		e.logger.Warn("tf-idf failed, using word overlap", zap.Error(err))
	}
	return Jaccard(textA, textB), models.MethodLexical
}
