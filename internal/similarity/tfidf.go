package similarity

import (
	"errors"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/length"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/token/stop"
	unicodetok "github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/hyperjump/kurabe/pkg/utils"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrEmptyVocabulary is returned when neither text has a term left after analysis.
var ErrEmptyVocabulary = errors.New("empty vocabulary: texts contain only stop words or no words")

// DefaultMaxFeatures caps the vocabulary to the most frequent terms.
const DefaultMaxFeatures = 5000

// TFIDF computes cosine similarity of unigram+bigram TF-IDF vectors fitted on the
// two compared texts. Safe for concurrent use.
type TFIDF struct {
	maxFeatures int
	tokenizer   analysis.Tokenizer
	filters     []analysis.TokenFilter
}

// NewTFIDF returns a TFIDF with English stop words removed. maxFeatures <= 0 uses
// DefaultMaxFeatures.
func NewTFIDF(maxFeatures int) (*TFIDF, error) {
	if maxFeatures <= 0 {
		maxFeatures = DefaultMaxFeatures
	}
	stopWords := analysis.NewTokenMap()
	if err := stopWords.LoadBytes(en.EnglishStopWords); err != nil {
		return nil, err
	}
	return &TFIDF{
		maxFeatures: maxFeatures,
		tokenizer:   unicodetok.NewUnicodeTokenizer(),
		filters: []analysis.TokenFilter{
			lowercase.NewLowerCaseFilter(),
			length.NewLengthFilter(2, -1),
			stop.NewStopTokensFilter(stopWords),
		},
	}, nil
}

// Similarity returns the cosine of the two TF-IDF vectors, clipped to [0, 1].
// It returns ErrEmptyVocabulary when no term survives analysis in either text.
func (t *TFIDF) Similarity(textA, textB string) (float64, error) {
	docs := [2]map[string]int{t.termCounts(textA), t.termCounts(textB)}

	vocab := t.vocabulary(docs)
	if len(vocab) == 0 {
		return 0, ErrEmptyVocabulary
	}

	n := float64(len(docs))
	var vecs [2][]float64
	for d := range docs {
		vecs[d] = make([]float64, len(vocab))
	}
	for i, term := range vocab {
		df := 0
		for d := range docs {
			if docs[d][term] > 0 {
				df++
			}
		}
		idf := math.Log((1+n)/(1+float64(df))) + 1
		for d := range docs {
			vecs[d][i] = float64(docs[d][term]) * idf
		}
	}
	utils.NormalizeL2(vecs[0])
	utils.NormalizeL2(vecs[1])
	return utils.Clamp01(utils.Dot(vecs[0], vecs[1])), nil
}

// vocabulary returns up to maxFeatures terms ordered by total frequency, then alphabetically.
func (t *TFIDF) vocabulary(docs [2]map[string]int) []string {
	total := make(map[string]int)
	for _, counts := range docs {
		for term, c := range counts {
			total[term] += c
		}
	}
	terms := make([]string, 0, len(total))
	for term := range total {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if total[terms[i]] != total[terms[j]] {
			return total[terms[i]] > total[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > t.maxFeatures {
		terms = terms[:t.maxFeatures]
	}
	return terms
}

// termCounts analyzes text into unigrams and bigrams of adjacent surviving tokens.
func (t *TFIDF) termCounts(text string) map[string]int {
	tokens := t.tokenizer.Tokenize([]byte(stripAccents(text)))
	for _, f := range t.filters {
		tokens = f.Filter(tokens)
	}
	counts := make(map[string]int, len(tokens)*2)
	prev := ""
	for _, tok := range tokens {
		term := string(tok.Term)
		if !isWordTerm(term) {
			prev = ""
			continue
		}
		counts[term]++
		if prev != "" {
			counts[prev+" "+term]++
		}
		prev = term
	}
	return counts
}

// stripAccents decomposes text and drops combining marks, so "café" becomes "cafe".
// A chain keeps state between calls, so each call builds its own.
func stripAccents(text string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return out
}

// isWordTerm reports whether term contains at least one letter or digit; punctuation-only
// tokens carry no meaning for comparison.
func isWordTerm(term string) bool {
	return strings.IndexFunc(term, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsNumber(r)
	}) >= 0
}
