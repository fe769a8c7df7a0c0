package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/kurabe/internal/models"
)

const scanLogColumns = `id, user_id, document_id, top_matches, overall_score, matches_found, created_at`

// CommitScan writes the scanned document (unless it is already stored), its matches and scan log, and charges the user one
// credit, all in one transaction. If the user has no credit left the transaction is rolled
// back and ErrInsufficientCredits is returned; on any error nothing is written.
// It returns the user's remaining balance.
func (s *SQLiteStorage) CommitScan(ctx context.Context, c *ScanCommit) (int, error) {
	if c.Document == nil || c.Log == nil {
		return 0, errors.New("scan commit requires a document and a scan log")
	}
	var remaining int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertDocument(ctx, tx, c.Document, keepExisting); err != nil {
			return err
		}
		if err := insertScanLog(ctx, tx, c.Log); err != nil {
			return err
		}
		now := time.Now()
		for _, m := range c.Matches {
			if err := upsertMatch(ctx, tx, m, now); err != nil {
				return err
			}
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE users SET credits = credits - 1 WHERE id = ? AND credits > 0`, c.Log.UserID)
		if err != nil {
			return fmt.Errorf("charge credit: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("charge credit: %w", err)
		}
		if n == 0 {
			return ErrInsufficientCredits
		}
		return tx.QueryRowContext(ctx, `SELECT credits FROM users WHERE id = ?`, c.Log.UserID).Scan(&remaining)
	})
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

func insertScanLog(ctx context.Context, ex execer, log *models.ScanLog) error {
	top := log.TopMatches
	if top == nil {
		top = []models.TopMatch{}
	}
	topJSON, err := json.Marshal(top)
	if err != nil {
		return fmt.Errorf("failed to marshal top matches: %w", err)
	}
	_, err = ex.ExecContext(ctx,
		`INSERT INTO scan_logs (`+scanLogColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.UserID, log.DocumentID, string(topJSON), log.OverallScore, log.MatchesFound,
		log.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert scan log %s: %w", log.ID, err)
	}
	return nil
}

// GetScanLog returns a scan log by ID.
func (s *SQLiteStorage) GetScanLog(ctx context.Context, id string) (*models.ScanLog, error) {
	log, err := scanScanLog(s.db.QueryRowContext(ctx,
		`SELECT `+scanLogColumns+` FROM scan_logs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scan log %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return log, nil
}

// ListScanLogs returns a user's scan logs, newest first. limit <= 0 returns all.
func (s *SQLiteStorage) ListScanLogs(ctx context.Context, userID string, limit int) ([]*models.ScanLog, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scanLogColumns+` FROM scan_logs WHERE user_id = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*models.ScanLog
	for rows.Next() {
		l, err := scanScanLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func scanScanLog(row rowScanner) (*models.ScanLog, error) {
	var (
		l       models.ScanLog
		topJSON string
	)
	err := row.Scan(&l.ID, &l.UserID, &l.DocumentID, &topJSON, &l.OverallScore, &l.MatchesFound, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(topJSON), &l.TopMatches); err != nil {
		return nil, fmt.Errorf("failed to unmarshal top matches: %w", err)
	}
	return &l, nil
}
