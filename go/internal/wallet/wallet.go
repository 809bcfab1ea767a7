// Package wallet owns the single balance adjustment primitive. Every money
// movement in the system goes through Adjust: one guarded UPDATE plus a
// journal row under one transaction, keyed so replays are no-ops. Callers
// never read a balance and write it back.
package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/kdev47/stakehouse/go/internal/models"
	"github.com/kdev47/stakehouse/go/internal/sqlutil"
)

// ErrInsufficientFunds is returned when a debit would take the balance
// below zero. Nothing is written.
var ErrInsufficientFunds = errors.New("wallet: insufficient funds")

// Repository implements the adjustment procedure on Postgres.
type Repository struct {
	db     sqlutil.Beginner
	logger zerolog.Logger
}

func NewRepository(db sqlutil.Beginner, logger zerolog.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger.With().Str("component", "wallet").Logger(),
	}
}

// Adjust moves amount onto the user's balance. The journal insert claims the
// idempotency key; if the key is already claimed the call returns nil without
// touching the balance. Debits that would overdraw fail the whole
// transaction. Negative amounts also accrue the wagered stat.
func (r *Repository) Adjust(ctx context.Context, userID uuid.UUID, amount float64, idempotencyKey, reason string) error {
	err := sqlutil.Run(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO balance_adjustments (id, idempotency_key, user_id, amount, reason)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (idempotency_key) DO NOTHING`,
			uuid.New(), idempotencyKey, userID, amount, reason)
		if err != nil {
			return fmt.Errorf("failed to record adjustment: %w", err)
		}
		if tag.RowsAffected() == 0 {
			// Key already claimed: the prior call did the work.
			r.logger.Debug().Str("key", idempotencyKey).Msg("repeated adjustment key, no-op")
			return nil
		}

		tag, err = tx.Exec(ctx, `
			WITH updated AS (
				UPDATE profiles SET
					balance = balance + $2,
					wagered = wagered + GREATEST(-$2, 0),
					games_played = games_played + CASE WHEN $2 < 0 THEN 1 ELSE 0 END
				WHERE id = $1 AND balance + $2 >= 0
				RETURNING balance
			)
			UPDATE balance_adjustments
			SET balance_after = (SELECT balance FROM updated)
			WHERE idempotency_key = $3 AND EXISTS (SELECT 1 FROM updated)`,
			userID, amount, idempotencyKey)
		if err != nil {
			return fmt.Errorf("failed to adjust balance: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: user %s, amount %v", ErrInsufficientFunds, userID, amount)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.Info().
		Str("user_id", userID.String()).
		Float64("amount", amount).
		Str("reason", reason).
		Msg("balance adjusted")
	return nil
}

// GetBalance reads the current balance.
func (r *Repository) GetBalance(ctx context.Context, userID uuid.UUID) (float64, error) {
	var balance float64
	err := sqlutil.Run(ctx, r.db, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `SELECT balance FROM profiles WHERE id = $1`, userID).Scan(&balance)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// ListAdjustments returns the user's journal rows, newest first.
func (r *Repository) ListAdjustments(ctx context.Context, userID uuid.UUID, limit int32) ([]models.BalanceAdjustment, error) {
	var out []models.BalanceAdjustment
	err := sqlutil.Run(ctx, r.db, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, idempotency_key, user_id, amount, balance_after, reason, created_at
			FROM balance_adjustments
			WHERE user_id = $1
			ORDER BY created_at DESC
			LIMIT $2`, userID, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var adj models.BalanceAdjustment
			if err := rows.Scan(&adj.ID, &adj.IdempotencyKey, &adj.UserID, &adj.Amount,
				&adj.BalanceAfter, &adj.Reason, &adj.CreatedAt); err != nil {
				return err
			}
			out = append(out, adj)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list adjustments: %w", err)
	}
	return out, nil
}
