// Package credits grants users their periodic scan allowance.
package credits

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/kurabe/internal/models"
	"github.com/hyperjump/kurabe/internal/storage"
	"go.uber.org/zap"
)

// Resetter restores user balances to the allowance once per interval.
type Resetter struct {
	store     storage.Storage
	allowance int
	interval  time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// Option configures a Resetter.
type Option func(*Resetter)

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resetter) { r.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Resetter) { r.now = now }
}

// NewResetter creates a Resetter granting allowance credits every interval.
func NewResetter(store storage.Storage, allowance int, interval time.Duration, opts ...Option) (*Resetter, error) {
	if store == nil {
		return nil, errors.New("resetter requires storage")
	}
	if allowance < 0 {
		return nil, fmt.Errorf("allowance must be non-negative, got %d", allowance)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", interval)
	}
	r := &Resetter{
		store:     store,
		allowance: allowance,
		interval:  interval,
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// ResetIfDue resets one user's balance if their interval has elapsed.
func (r *Resetter) ResetIfDue(ctx context.Context, userID string) (*models.User, bool, error) {
	user, reset, err := r.store.ResetCreditsIfDue(ctx, userID, r.allowance, r.interval, r.now())
	if err != nil {
		return nil, false, err
	}
	if reset {
		r.logger.Info("credits reset", zap.String("user_id", userID), zap.Int("credits", user.Credits))
	}
	return user, reset, nil
}

// ResetAllDue resets every user whose interval has elapsed and returns how many were reset.
// A failure for one user is logged and does not stop the others.
func (r *Resetter) ResetAllDue(ctx context.Context) (int, error) {
	users, err := r.store.ListUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}
	n := 0
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		_, reset, err := r.ResetIfDue(ctx, u.ID)
		if err != nil {
			r.logger.Warn("credit reset failed", zap.String("user_id", u.ID), zap.Error(err))
			continue
		}
		if reset {
			n++
		}
	}
	return n, nil
}

// Run calls ResetAllDue immediately and then every checkInterval until ctx is done.
func (r *Resetter) Run(ctx context.Context, checkInterval time.Duration) {
	if checkInterval <= 0 {
		checkInterval = time.Hour
	}
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()
	for {
		if n, err := r.ResetAllDue(ctx); err != nil && ctx.Err() == nil {
			r.logger.Warn("credit reset sweep failed", zap.Error(err))
		} else if n > 0 {
			r.logger.Debug("credit reset sweep", zap.Int("reset", n))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProvisionUser creates a user holding a full allowance.
func (r *Resetter) ProvisionUser(ctx context.Context, username string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.New("username is required")
	}
	now := r.now().UTC()
	user := &models.User{
		ID:                  uuid.New().String(),
		Username:            username,
		Credits:             r.allowance,
		TotalCreditsGranted: r.allowance,
		LastCreditReset:     now,
		CreatedAt:           now,
	}
	if err := r.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	r.logger.Info("user created", zap.String("user_id", user.ID), zap.String("username", username))
	return user, nil
}
