// Package scan compares a new document against the stored corpus and records the result.
package scan

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/kurabe/internal/extract"
	"github.com/hyperjump/kurabe/internal/ingest"
	"github.com/hyperjump/kurabe/internal/match"
	"github.com/hyperjump/kurabe/internal/models"
	"github.com/hyperjump/kurabe/internal/similarity"
	"github.com/hyperjump/kurabe/internal/storage"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// DefaultTopK bounds the matches listed in a scan summary.
const DefaultTopK = 5

// Comparer scores a pair of texts. *similarity.Engine implements it.
type Comparer interface {
	Score(ctx context.Context, a, b similarity.Text) similarity.Result
}

// Scanner runs scans. It is safe for concurrent use; comparisons from all scans share one
// bounded worker pool.
type Scanner struct {
	store     storage.Storage
	comparer  Comparer
	ingester  *ingest.Ingester
	pool      *ants.Pool
	workers   int
	threshold float64
	topK      int
	now       func() time.Time
	logger    *zap.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scanner) { s.logger = l }
}

// WithThreshold sets the minimum score reported and persisted as a match.
func WithThreshold(t float64) Option {
	return func(s *Scanner) { s.threshold = t }
}

// WithTopK sets how many matches a scan summary lists.
func WithTopK(k int) Option {
	return func(s *Scanner) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithWorkers sets the number of concurrent comparisons.
func WithWorkers(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithIngester sets the ingester used by SubmitScan.
func WithIngester(in *ingest.Ingester) Option {
	return func(s *Scanner) { s.ingester = in }
}

// WithClock overrides the time source for scan logs.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) { s.now = now }
}

// NewScanner creates a Scanner. Call Release when done to stop the worker pool.
func NewScanner(store storage.Storage, comparer Comparer, opts ...Option) (*Scanner, error) {
	if store == nil {
		return nil, errors.New("scanner requires storage")
	}
	if comparer == nil {
		return nil, errors.New("scanner requires a comparer")
	}
	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}
	s := &Scanner{
		store:     store,
		comparer:  comparer,
		workers:   workers,
		threshold: match.DefaultThreshold,
		topK:      DefaultTopK,
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ingester == nil {
		s.ingester = ingest.NewIngester(nil, ingest.WithLogger(s.logger))
	}
	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	s.pool = pool
	return s, nil
}

// Release stops the worker pool.
func (s *Scanner) Release() {
	s.pool.Release()
}

// SubmitScan parses upload into a new document owned by userID, compares it against every
// stored document and commits the result. It returns ErrInsufficientCredits, an
// *extract.ParseError, a *PersistenceError, or an error wrapping ErrScanFailure.
func (s *Scanner) SubmitScan(ctx context.Context, upload *models.Upload, userID string) (*models.ScanResult, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
		}
		return nil, fmt.Errorf("%w: load user: %w", ErrScanFailure, err)
	}
	if user.Credits <= 0 {
		return nil, ErrInsufficientCredits
	}

	doc, err := s.ingester.Build(upload, user.ID)
	if err != nil {
		var pe *extract.ParseError
		if errors.As(err, &pe) {
			return nil, pe
		}
		return nil, fmt.Errorf("%w: ingest: %w", ErrScanFailure, err)
	}

	corpus, err := s.store.ListCorpus(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: load corpus: %w", ErrScanFailure, err)
	}
	return s.Scan(ctx, doc, corpus, user)
}

// comparison is one corpus member's outcome. ok is false when the comparison failed.
type comparison struct {
	doc    *models.Document
	result similarity.Result
	ok     bool
}

// Scan compares doc against corpus on behalf of user, then stores doc, every match at or
// above the threshold, and one scan log, and charges one credit, all together. doc itself
// is skipped if present in corpus.
func (s *Scanner) Scan(ctx context.Context, doc *models.Document, corpus []*models.Document, user *models.User) (*models.ScanResult, error) {
	if user.Credits <= 0 {
		return nil, ErrInsufficientCredits
	}

	start := s.now()
	results := s.compareAll(ctx, doc, corpus)

	var matches []comparison
	for _, r := range results {
		if r.ok && match.IsMatch(r.result.Overall, s.threshold) {
			matches = append(matches, r)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].result.Overall > matches[j].result.Overall
	})

	scanID := uuid.New().String()
	inputs := make([]*models.MatchInput, len(matches))
	for i, m := range matches {
		inputs[i] = &models.MatchInput{
			SourceID:         doc.ID,
			MatchedID:        m.doc.ID,
			OverallScore:     m.result.Overall,
			AIScore:          m.result.AI,
			TraditionalScore: m.result.Traditional,
			Detail:           m.result.Detail(),
			ScanID:           scanID,
		}
	}

	top := matches
	if len(top) > s.topK {
		top = top[:s.topK]
	}
	topMatches := make([]models.TopMatch, len(top))
	for i, m := range top {
		topMatches[i] = models.TopMatch{
			DocumentID: m.doc.ID,
			Title:      m.doc.Title,
			Score:      m.result.Overall,
			Tier:       match.Classify(m.result.Overall),
		}
	}
	best := 0.0
	if len(matches) > 0 {
		best = matches[0].result.Overall
	}

	log := &models.ScanLog{
		ID:           scanID,
		UserID:       user.ID,
		DocumentID:   doc.ID,
		TopMatches:   topMatches,
		OverallScore: best,
		MatchesFound: len(matches),
		CreatedAt:    s.now(),
	}
	remaining, err := s.store.CommitScan(ctx, &storage.ScanCommit{Document: doc, Log: log, Matches: inputs})
	if err != nil {
		if errors.Is(err, storage.ErrInsufficientCredits) {
			return nil, ErrInsufficientCredits
		}
		return nil, &PersistenceError{Op: "commit scan", Err: err}
	}

	s.logger.Info("scan completed",
		zap.String("scan_id", scanID),
		zap.String("document_id", doc.ID),
		zap.String("user_id", user.ID),
		zap.Int("compared", len(results)),
		zap.Int("matches", len(matches)),
		zap.Float64("best", best),
		zap.Duration("took", s.now().Sub(start)))

	return &models.ScanResult{
		ScanLogID:    scanID,
		DocumentID:   doc.ID,
		MatchesFound: len(matches),
		TopMatches:   topMatches,
		Credits:      remaining,
	}, nil
}

// compareAll scores doc against each corpus member on the worker pool. Results are indexed
// by corpus position, so their order never depends on completion order.
func (s *Scanner) compareAll(ctx context.Context, doc *models.Document, corpus []*models.Document) []comparison {
	results := make([]comparison, len(corpus))
	newText := similarity.Text{Content: doc.Content, Hash: doc.ContentHash}

	var wg sync.WaitGroup
	for i, other := range corpus {
		results[i] = comparison{doc: other}
		if other.ID == doc.ID {
			continue
		}
		i, other := i, other
		task := func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					s.logger.Warn("pair comparison failed",
						zap.String("document_id", doc.ID),
						zap.String("other_id", other.ID),
						zap.Any("panic", r))
				}
			}()
			res := s.comparer.Score(ctx, newText, similarity.Text{Content: other.Content, Hash: other.ContentHash})
			results[i].result = res
			results[i].ok = true
		}
		wg.Add(1)
		if err := s.pool.Submit(task); err != nil {
			wg.Done()
			s.logger.Warn("pair comparison not scheduled",
				zap.String("document_id", doc.ID),
				zap.String("other_id", other.ID),
				zap.Error(err))
		}
	}
	wg.Wait()
	return results
}
