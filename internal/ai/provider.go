// Package ai defines the contract for external semantic-similarity providers.
package ai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hyperjump/kurabe/pkg/utils"
)

// ErrProviderUnavailable marks any provider failure: transport error, timeout, non-200
// status, empty response, or an answer that is not a bare number. Callers fall through
// to the next method instead of surfacing it.
var ErrProviderUnavailable = errors.New("similarity provider unavailable")

// Provider scores the semantic similarity of two texts.
// Implementations must be safe for concurrent use.
type Provider interface {
	// Name identifies the provider in match provenance and logs.
	Name() string

	// Compare returns a similarity in [0, 1]. Any failure wraps ErrProviderUnavailable.
	Compare(ctx context.Context, textA, textB string) (float64, error)
}

// SystemPrompt is sent as the system message of every comparison request.
const SystemPrompt = "You are an expert at semantic text comparison. Always return only a number between 0 and 1."

// DefaultPromptChars bounds how much of each text is sent to a provider.
const DefaultPromptChars = 1500

const promptTemplate = `Compare the semantic similarity between these two texts and return a similarity score between 0 and 1.
- Score 1.0 means the texts are semantically identical or extremely similar
- Score 0.0 means the texts are completely different
- Score 0.7-0.9 means high similarity (same topic, similar content)
- Score 0.4-0.6 means moderate similarity (related topics)
- Score 0.1-0.3 means low similarity (few common elements)

Return ONLY the similarity score as a number between 0 and 1, no other text.

Text 1:
%s

Text 2:
%s

Similarity score:`

// BuildPrompt returns the user message comparing the first maxChars characters of each text.
func BuildPrompt(textA, textB string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultPromptChars
	}
	return fmt.Sprintf(promptTemplate, utils.Prefix(textA, maxChars), utils.Prefix(textB, maxChars))
}

// ParseScore parses a provider answer as a bare float and clips it to [0, 1].
func ParseScore(answer string) (float64, error) {
	s := strings.TrimSpace(answer)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: non-numeric response %q", ErrProviderUnavailable, utils.Truncate(s, 40))
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: non-finite response %q", ErrProviderUnavailable, s)
	}
	return utils.Clamp01(v), nil
}

// Unavailable wraps err so it matches ErrProviderUnavailable, tagging it with the provider name.
func Unavailable(name string, err error) error {
	if errors.Is(err, ErrProviderUnavailable) {
		return fmt.Errorf("%s: %w", name, err)
	}
	return fmt.Errorf("%s: %w: %w", name, ErrProviderUnavailable, err)
}
