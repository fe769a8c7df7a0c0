package extract

import (
	"errors"
	"unicode/utf8"
)

var errInvalidUTF8 = errors.New("text is not valid UTF-8")

// extractPlain returns content as string. Content must be valid UTF-8.
func extractPlain(content []byte) (string, error) {
	if !utf8.Valid(content) {
		return "", errInvalidUTF8
	}
	return string(content), nil
}
