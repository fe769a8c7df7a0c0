// Package extract provides text extraction from uploaded document formats.
package extract

import "strings"

// SupportedExtensions lists the extensions Parse accepts, with the leading dot.
var SupportedExtensions = []string{".txt", ".md", ".pdf", ".docx", ".doc", ".xlsx"}

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Parse extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf") and is matched case-insensitively.
// Every failure, including empty input and formats that yield no text, is a *ParseError.
func (e *Extractor) Parse(content []byte, ext string) (string, error) {
	ext = strings.ToLower(ext)
	if !Supported(ext) {
		return "", parseErr(ext, "extension not supported", ErrUnsupportedFormat)
	}
	if len(content) == 0 {
		return "", parseErr(ext, "file is empty", ErrNoText)
	}

	var (
		text string
		err  error
	)
	switch ext {
	case ".pdf":
		text, err = extractPDF(content)
	case ".docx", ".doc":
		text, err = extractDOCX(content)
	case ".xlsx":
		text, err = extractExcel(content)
	default:
		text, err = extractPlain(content)
	}
	if err != nil {
		return "", parseErr(ext, "could not read file", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", parseErr(ext, "no text could be extracted", ErrNoText)
	}
	return text, nil
}

// Supported reports whether ext (with leading dot, any case) can be parsed.
func Supported(ext string) bool {
	ext = strings.ToLower(ext)
	for _, s := range SupportedExtensions {
		if s == ext {
			return true
		}
	}
	return false
}
