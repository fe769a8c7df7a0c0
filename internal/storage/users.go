package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/kurabe/internal/models"
)

const userColumns = `id, username, credits, total_credits_granted, last_credit_reset, created_at`

// CreateUser inserts a user.
func (s *SQLiteStorage) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.Credits, user.TotalCreditsGranted,
		user.LastCreditReset.UTC(), user.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert user %s: %w", user.Username, err)
	}
	return nil
}

// GetUser returns a user by ID.
func (s *SQLiteStorage) GetUser(ctx context.Context, id string) (*models.User, error) {
	return getUser(ctx, s.db, id)
}

func getUser(ctx context.Context, ex execer, id string) (*models.User, error) {
	user, err := scanUser(ex.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// ListUsers returns all users ordered by creation time.
func (s *SQLiteStorage) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ResetCreditsIfDue sets the user's balance to allowance when at least interval has passed
// since the last reset. It reports whether a reset happened; calling it again within the
// same interval is a no-op.
func (s *SQLiteStorage) ResetCreditsIfDue(ctx context.Context, userID string, allowance int, interval time.Duration, now time.Time) (*models.User, bool, error) {
	var (
		user  *models.User
		reset bool
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		u, err := getUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		user = u
		if now.Before(u.LastCreditReset.Add(interval)) {
			return nil
		}
		now = now.UTC()
		_, err = tx.ExecContext(ctx,
			`UPDATE users SET credits = ?, total_credits_granted = total_credits_granted + ?, last_credit_reset = ?
			 WHERE id = ?`,
			allowance, allowance, now, userID)
		if err != nil {
			return fmt.Errorf("reset credits for %s: %w", userID, err)
		}
		user.Credits = allowance
		user.TotalCreditsGranted += allowance
		user.LastCreditReset = now
		reset = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return user, reset, nil
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Username, &u.Credits, &u.TotalCreditsGranted, &u.LastCreditReset, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}
