package extract

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFormat is returned for file extensions the extractor cannot read.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ErrNoText is returned when a file parses but yields no text.
var ErrNoText = errors.New("no text content")

// ParseError reports an upload that could not be turned into text. It is user-correctable:
// the caller should resubmit a different file.
type ParseError struct {
	Ext    string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("could not process %s file: %s: %v", e.Ext, e.Reason, e.Err)
	}
	return fmt.Sprintf("could not process %s file: %s", e.Ext, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

func parseErr(ext, reason string, err error) *ParseError {
	return &ParseError{Ext: ext, Reason: reason, Err: err}
}
