package scan

import (
	"errors"
	"fmt"

	"github.com/hyperjump/kurabe/internal/storage"
)

var (
	// ErrInsufficientCredits is returned when the user cannot pay for a scan. Nothing is written.
	ErrInsufficientCredits = storage.ErrInsufficientCredits

	// ErrScanFailure wraps unexpected failures that are neither user input nor persistence errors.
	ErrScanFailure = errors.New("scan failed")

	// ErrUserNotFound is returned when the requesting user does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// PersistenceError reports that the scan's durable record could not be written. The scan is
// rolled back as a whole and no credit is charged.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist scan: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
