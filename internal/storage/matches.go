package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/kurabe/internal/match"
	"github.com/hyperjump/kurabe/internal/models"
)

const matchColumns = `m.id, m.source_id, m.matched_id, m.overall_score, m.ai_score, m.traditional_score,
	m.tier, m.detail, m.scan_id, m.created_at, m.updated_at`

// UpsertMatch stores the match for an unordered document pair. The pair is canonicalized so
// the smaller ID is the source; an existing row for the pair keeps its ID and CreatedAt and
// has its scores, tier, detail, scan and UpdatedAt overwritten.
func (s *SQLiteStorage) UpsertMatch(ctx context.Context, in *models.MatchInput) (*models.Match, error) {
	if err := upsertMatch(ctx, s.db, in, time.Now()); err != nil {
		return nil, err
	}
	return s.GetMatch(ctx, in.SourceID, in.MatchedID)
}

func upsertMatch(ctx context.Context, ex execer, in *models.MatchInput, now time.Time) error {
	if in.SourceID == in.MatchedID {
		return fmt.Errorf("upsert match %s: %w", in.SourceID, ErrSelfMatch)
	}
	src, dst := models.PairKey(in.SourceID, in.MatchedID)
	detail, err := json.Marshal(in.Detail)
	if err != nil {
		return fmt.Errorf("failed to marshal match detail: %w", err)
	}
	now = now.UTC()
	_, err = ex.ExecContext(ctx,
		`INSERT INTO matches (id, source_id, matched_id, overall_score, ai_score, traditional_score,
			tier, detail, scan_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (source_id, matched_id) DO UPDATE SET
			overall_score = excluded.overall_score,
			ai_score = excluded.ai_score,
			traditional_score = excluded.traditional_score,
			tier = excluded.tier,
			detail = excluded.detail,
			scan_id = excluded.scan_id,
			updated_at = excluded.updated_at`,
		uuid.New().String(), src, dst, in.OverallScore, nullFloat(in.AIScore), nullFloat(in.TraditionalScore),
		string(match.Classify(in.OverallScore)), string(detail), in.ScanID, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert match %s/%s: %w", src, dst, err)
	}
	return nil
}

// GetMatch returns the match for the unordered pair (docA, docB).
func (s *SQLiteStorage) GetMatch(ctx context.Context, docA, docB string) (*models.Match, error) {
	src, dst := models.PairKey(docA, docB)
	m, err := scanMatch(s.db.QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM matches m WHERE m.source_id = ? AND m.matched_id = ?`, src, dst))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("match %s/%s: %w", src, dst, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListMatchesForDocument returns every stored match involving docID with a score of at least
// minScore, paired with the document on the other side, best first.
func (s *SQLiteStorage) ListMatchesForDocument(ctx context.Context, docID string, minScore float64) ([]*models.RelatedDocument, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+matchColumns+`,
			d.id, d.owner_id, d.title, d.content, d.content_hash, d.file_type, d.file_size, d.word_count,
			d.created_at, d.updated_at
		 FROM matches m
		 JOIN documents d ON d.id = CASE WHEN m.source_id = ? THEN m.matched_id ELSE m.source_id END
		 WHERE (m.source_id = ? OR m.matched_id = ?) AND m.overall_score >= ?
		 ORDER BY m.overall_score DESC, m.updated_at DESC`,
		docID, docID, docID, minScore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var related []*models.RelatedDocument
	for rows.Next() {
		var (
			m        models.Match
			doc      models.Document
			ai, trad sql.NullFloat64
			detail   string
			scanID   sql.NullString
			fileType sql.NullString
		)
		err := rows.Scan(&m.ID, &m.SourceID, &m.MatchedID, &m.OverallScore, &ai, &trad,
			&m.Tier, &detail, &scanID, &m.CreatedAt, &m.UpdatedAt,
			&doc.ID, &doc.OwnerID, &doc.Title, &doc.Content, &doc.ContentHash, &fileType,
			&doc.FileSize, &doc.WordCount, &doc.CreatedAt, &doc.UpdatedAt)
		if err != nil {
			return nil, err
		}
		if err := fillMatch(&m, ai, trad, detail, scanID); err != nil {
			return nil, err
		}
		doc.FileType = fileType.String
		related = append(related, &models.RelatedDocument{Document: &doc, Match: &m})
	}
	return related, rows.Err()
}

func scanMatch(row rowScanner) (*models.Match, error) {
	var (
		m        models.Match
		ai, trad sql.NullFloat64
		detail   string
		scanID   sql.NullString
	)
	err := row.Scan(&m.ID, &m.SourceID, &m.MatchedID, &m.OverallScore, &ai, &trad,
		&m.Tier, &detail, &scanID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := fillMatch(&m, ai, trad, detail, scanID); err != nil {
		return nil, err
	}
	return &m, nil
}

func fillMatch(m *models.Match, ai, trad sql.NullFloat64, detail string, scanID sql.NullString) error {
	if ai.Valid {
		v := ai.Float64
		m.AIScore = &v
	}
	if trad.Valid {
		v := trad.Float64
		m.TraditionalScore = &v
	}
	m.ScanID = scanID.String
	if err := json.Unmarshal([]byte(detail), &m.Detail); err != nil {
		return fmt.Errorf("failed to unmarshal match detail: %w", err)
	}
	return nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
