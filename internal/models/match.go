package models

import "time"

// Tier is the discrete classification of a similarity score.
type Tier string

const (
	TierExact  Tier = "exact"
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// Method names the step of the similarity chain that produced an overall score.
type Method string

const (
	MethodHash        Method = "hash"
	MethodAI          Method = "ai"
	MethodStatistical Method = "statistical"
	MethodLexical     Method = "lexical"
)

// MatchDetail records the provenance of a match score.
type MatchDetail struct {
	Method         Method `json:"match_method"`
	ExactDuplicate bool   `json:"exact_duplicate"`
	// Provider is set when Method is MethodAI.
	Provider string `json:"ai_method,omitempty"`
	// TraditionalMethod is the local method behind TraditionalScore.
	TraditionalMethod Method `json:"traditional_method,omitempty"`
}

// Match is the similarity relationship between an unordered pair of documents.
// SourceID is always the lexically smaller of the two document IDs.
type Match struct {
	ID               string      `json:"id" db:"id"`
	SourceID         string      `json:"source_document_id" db:"source_id"`
	MatchedID        string      `json:"matched_document_id" db:"matched_id"`
	OverallScore     float64     `json:"similarity_score" db:"overall_score"`
	AIScore          *float64    `json:"ai_similarity_score,omitempty" db:"ai_score"`
	TraditionalScore *float64    `json:"traditional_similarity_score,omitempty" db:"traditional_score"`
	Tier             Tier        `json:"match_type" db:"tier"`
	Detail           MatchDetail `json:"match_details" db:"detail"`
	ScanID           string      `json:"scan_id" db:"scan_id"`
	CreatedAt        time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at" db:"updated_at"`
}

// Other returns the ID on the opposite side of the pair from docID.
func (m *Match) Other(docID string) string {
	if m.SourceID == docID {
		return m.MatchedID
	}
	return m.SourceID
}

// MatchInput carries the fields written by a match upsert. The pair may be given in either order.
type MatchInput struct {
	SourceID         string
	MatchedID        string
	OverallScore     float64
	AIScore          *float64
	TraditionalScore *float64
	Detail           MatchDetail
	ScanID           string
}

// RelatedDocument is a stored match seen from one document: the other side plus the match.
type RelatedDocument struct {
	Document *Document `json:"document"`
	Match    *Match    `json:"match"`
}

// PairKey returns the canonical (low, high) ordering of an unordered document pair.
func PairKey(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}
