package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperjump/kurabe/internal/extract"
	"github.com/hyperjump/kurabe/internal/models"
	"go.uber.org/zap"
)

const (
	processedDir = "processed"
	failedDir    = "failed"
)

// SubmitFunc submits one upload as a scan.
type SubmitFunc func(ctx context.Context, upload *models.Upload) (*models.ScanResult, error)

// Inbox submits dropped files and moves each one out of the inbox afterwards, into
// "processed" on success or "failed" when the file itself was rejected. Files that failed
// for other reasons (e.g. no credits left) stay in place to be retried.
type Inbox struct {
	submit SubmitFunc
	logger *zap.Logger
}

// NewInbox returns an Inbox that hands files to submit.
func NewInbox(submit SubmitFunc, logger *zap.Logger) *Inbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inbox{submit: submit, logger: logger}
}

// Process reads path, submits it, and files it away according to the outcome.
func (in *Inbox) Process(ctx context.Context, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	res, err := in.submit(ctx, &models.Upload{Filename: filepath.Base(path), Content: content})
	if err != nil {
		var pe *extract.ParseError
		if errors.As(err, &pe) {
			in.logger.Warn("inbox file rejected", zap.String("path", path), zap.Error(err))
			return moveInto(path, failedDir)
		}
		in.logger.Warn("inbox scan failed", zap.String("path", path), zap.Error(err))
		return err
	}

	in.logger.Info("inbox file scanned",
		zap.String("path", path),
		zap.String("scan_id", res.ScanLogID),
		zap.Int("matches", res.MatchesFound))
	return moveInto(path, processedDir)
}

func moveInto(path, sub string) error {
	dir := filepath.Join(filepath.Dir(path), sub)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.Rename(path, filepath.Join(dir, filepath.Base(path)))
}
