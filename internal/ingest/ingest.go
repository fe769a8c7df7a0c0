// Package ingest turns raw uploads into corpus documents.
package ingest

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/kurabe/internal/extract"
	"github.com/hyperjump/kurabe/internal/models"
	"go.uber.org/zap"
)

// Parser extracts text from raw bytes for a file extension.
type Parser interface {
	Parse(content []byte, ext string) (string, error)
}

// Ingester builds Documents from uploads. It does not persist anything.
type Ingester struct {
	parser Parser
	now    func() time.Time
	logger *zap.Logger
}

// IngesterOption configures an Ingester.
type IngesterOption func(*Ingester)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) IngesterOption {
	return func(in *Ingester) { in.logger = l }
}

// WithClock overrides the time source used for CreatedAt/UpdatedAt.
func WithClock(now func() time.Time) IngesterOption {
	return func(in *Ingester) { in.now = now }
}

// NewIngester returns an Ingester. When parser is nil the default extractor is used.
func NewIngester(parser Parser, opts ...IngesterOption) *Ingester {
	if parser == nil {
		parser = extract.NewExtractor()
	}
	in := &Ingester{parser: parser, now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Build parses upload and returns a new Document owned by ownerID with a fresh ID.
// Parse failures are returned as *extract.ParseError.
func (in *Ingester) Build(upload *models.Upload, ownerID string) (*models.Document, error) {
	ext := strings.ToLower(filepath.Ext(upload.Filename))
	text, err := in.parser.Parse(upload.Content, ext)
	if err != nil {
		var pe *extract.ParseError
		if !errors.As(err, &pe) {
			err = &extract.ParseError{Ext: ext, Reason: "could not read file", Err: err}
		}
		return nil, err
	}
	content := Preprocess(text)
	if content == "" {
		return nil, &extract.ParseError{Ext: ext, Reason: "no text could be extracted", Err: extract.ErrNoText}
	}

	now := in.now().UTC()
	doc := &models.Document{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Title:       filepath.Base(upload.Filename),
		Content:     content,
		ContentHash: ContentHash(content),
		FileType:    strings.TrimPrefix(ext, "."),
		FileSize:    int64(len(upload.Content)),
		WordCount:   WordCount(content),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	in.logger.Debug("document built",
		zap.String("id", doc.ID),
		zap.String("title", doc.Title),
		zap.Int("words", doc.WordCount))
	return doc, nil
}
