// Package storage defines the persistence interface for documents, users, matches, and scan logs.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hyperjump/kurabe/internal/models"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientCredits is returned by CommitScan when the user has no credit left to charge.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrSelfMatch is returned when a match pairs a document with itself.
	ErrSelfMatch = errors.New("a document cannot match itself")
)

// ScanCommit is everything a successful scan writes. CommitScan applies it atomically.
type ScanCommit struct {
	Document *models.Document
	Log      *models.ScanLog
	Matches  []*models.MatchInput
}

// Stats holds record counts.
type Stats struct {
	Documents int64 `json:"documents"`
	Matches   int64 `json:"matches"`
	ScanLogs  int64 `json:"scan_logs"`
	Users     int64 `json:"users"`
}

// Storage defines persistence operations.
type Storage interface {
	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	ResetCreditsIfDue(ctx context.Context, userID string, allowance int, interval time.Duration, now time.Time) (*models.User, bool, error)

	// Document operations
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error)
	ListCorpus(ctx context.Context, excludeID string) ([]*models.Document, error)

	// Match operations
	UpsertMatch(ctx context.Context, in *models.MatchInput) (*models.Match, error)
	GetMatch(ctx context.Context, docA, docB string) (*models.Match, error)
	ListMatchesForDocument(ctx context.Context, docID string, minScore float64) ([]*models.RelatedDocument, error)

	// Scan operations
	CommitScan(ctx context.Context, commit *ScanCommit) (int, error)
	GetScanLog(ctx context.Context, id string) (*models.ScanLog, error)
	ListScanLogs(ctx context.Context, userID string, limit int) ([]*models.ScanLog, error)

	// Stats
	Stats(ctx context.Context) (*Stats, error)

	Close() error
}
