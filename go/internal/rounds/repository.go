package rounds

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kdev47/stakehouse/go/internal/models"
)

// DB defines what the repository needs from the database layer; *pgxpool.Pool
// satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// ErrNotFound is returned when a round or bet does not exist.
var ErrNotFound = errors.New("rounds: not found")

// Repository implements round and bet data access on Postgres.
type Repository struct {
	db DB
}

func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

const roundColumns = `id, game_type, status, created_at, started_at, ended_at,
	server_seed, client_seed, nonce, winning_number, crash_point, next_deadline`

func scanRound(row pgx.Row) (*models.Round, error) {
	var r models.Round
	err := row.Scan(&r.ID, &r.GameType, &r.Status, &r.CreatedAt, &r.StartedAt,
		&r.EndedAt, &r.ServerSeed, &r.ClientSeed, &r.Nonce, &r.WinningNumber,
		&r.CrashPoint, &r.NextDeadline)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *Repository) CreateRound(ctx context.Context, req CreateRoundRequest) (*models.Round, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO rounds (id, game_type, status, server_seed, client_seed, nonce, next_deadline)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+roundColumns,
		req.ID, req.GameType, req.Status, req.ServerSeed, req.ClientSeed, req.Nonce, req.NextDeadline)
	round, err := scanRound(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create round: %w", err)
	}
	return round, nil
}

func (r *Repository) GetRound(ctx context.Context, id uuid.UUID) (*models.Round, error) {
	row := r.db.QueryRow(ctx, `SELECT `+roundColumns+` FROM rounds WHERE id = $1`, id)
	round, err := scanRound(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get round: %w", err)
	}
	return round, nil
}

// GetLatestRound returns the most recently created round for a game, the one
// the synchronizer treats as current.
func (r *Repository) GetLatestRound(ctx context.Context, gameType models.GameType) (*models.Round, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+roundColumns+` FROM rounds
		WHERE game_type = $1
		ORDER BY created_at DESC
		LIMIT 1`, gameType)
	round, err := scanRound(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get latest round: %w", err)
	}
	return round, nil
}

// ListRecentRounds returns the latest terminal rounds for history display,
// newest first.
func (r *Repository) ListRecentRounds(ctx context.Context, gameType models.GameType, limit int32) ([]models.Round, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+roundColumns+` FROM rounds
		WHERE game_type = $1 AND status IN ('ENDED', 'CRASHED')
		ORDER BY created_at DESC
		LIMIT $2`, gameType, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent rounds: %w", err)
	}
	defer rows.Close()

	var out []models.Round
	for rows.Next() {
		round, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan round: %w", err)
		}
		out = append(out, *round)
	}
	return out, rows.Err()
}

// UpdateRound advances a round's phase. Outcome and timestamp columns only
// move from null, so a replayed update cannot rewrite them.
func (r *Repository) UpdateRound(ctx context.Context, id uuid.UUID, req UpdateRoundRequest) (*models.Round, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE rounds SET
			status = $2,
			started_at = COALESCE(started_at, $3),
			ended_at = COALESCE(ended_at, $4),
			winning_number = COALESCE(winning_number, $5),
			crash_point = COALESCE(crash_point, $6),
			next_deadline = $7
		WHERE id = $1
		RETURNING `+roundColumns,
		id, req.Status, req.StartedAt, req.EndedAt, req.WinningNumber, req.CrashPoint, req.NextDeadline)
	round, err := scanRound(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update round: %w", err)
	}
	return round, nil
}

// FetchNextDeadline returns the earliest pending deadline across live rounds,
// or ErrNotFound when no round is waiting.
func (r *Repository) FetchNextDeadline(ctx context.Context) (*NextDeadline, error) {
	var nd NextDeadline
	err := r.db.QueryRow(ctx, `
		SELECT id, next_deadline FROM rounds
		WHERE next_deadline IS NOT NULL AND status NOT IN ('ENDED', 'CRASHED')
		ORDER BY next_deadline ASC
		LIMIT 1`).Scan(&nd.RoundID, &nd.Deadline)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch next deadline: %w", err)
	}
	return &nd, nil
}

// FetchRoundsDue returns live rounds whose deadline has passed.
func (r *Repository) FetchRoundsDue(ctx context.Context, limit int32) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id FROM rounds
		WHERE next_deadline IS NOT NULL AND next_deadline <= now()
			AND status NOT IN ('ENDED', 'CRASHED')
		ORDER BY next_deadline ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch due rounds: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan round id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const betColumns = `id, user_id, round_id, bet_amount, created_at, bet_type,
	number, auto_cashout_at, profit, cashout_multiplier`

func scanBet(row pgx.Row) (*models.Bet, error) {
	var b models.Bet
	err := row.Scan(&b.ID, &b.UserID, &b.RoundID, &b.Amount, &b.PlacedAt,
		&b.Kind, &b.Number, &b.AutoCashoutAt, &b.Profit, &b.CashoutMultiplier)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *Repository) InsertBet(ctx context.Context, req PlaceBetRequest) (*models.Bet, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO bets (id, user_id, round_id, bet_amount, bet_type, number, auto_cashout_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+betColumns,
		req.ID, req.UserID, req.RoundID, req.Amount, req.Kind, req.Number, req.AutoCashoutAt)
	bet, err := scanBet(row)
	if err != nil {
		return nil, fmt.Errorf("failed to insert bet: %w", err)
	}
	return bet, nil
}

func (r *Repository) ListBetsByRound(ctx context.Context, roundID uuid.UUID) ([]models.Bet, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+betColumns+` FROM bets
		WHERE round_id = $1
		ORDER BY created_at ASC`, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bets: %w", err)
	}
	defer rows.Close()

	var out []models.Bet
	for rows.Next() {
		bet, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bet: %w", err)
		}
		out = append(out, *bet)
	}
	return out, rows.Err()
}

// DeleteLastBet removes and returns the user's most recent bet in a round.
func (r *Repository) DeleteLastBet(ctx context.Context, userID, roundID uuid.UUID) (*models.Bet, error) {
	row := r.db.QueryRow(ctx, `
		DELETE FROM bets WHERE id = (
			SELECT id FROM bets
			WHERE user_id = $1 AND round_id = $2
			ORDER BY created_at DESC
			LIMIT 1
		)
		RETURNING `+betColumns, userID, roundID)
	bet, err := scanBet(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to delete last bet: %w", err)
	}
	return bet, nil
}

// DeleteUserBets removes and returns all of the user's bets in a round.
func (r *Repository) DeleteUserBets(ctx context.Context, userID, roundID uuid.UUID) ([]models.Bet, error) {
	rows, err := r.db.Query(ctx, `
		DELETE FROM bets
		WHERE user_id = $1 AND round_id = $2
		RETURNING `+betColumns, userID, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to clear bets: %w", err)
	}
	defer rows.Close()

	var out []models.Bet
	for rows.Next() {
		bet, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bet: %w", err)
		}
		out = append(out, *bet)
	}
	return out, rows.Err()
}

// RecordCashout writes a crash bet's cashout multiplier once; a second
// cashout on the same bet affects no rows.
func (r *Repository) RecordCashout(ctx context.Context, betID uuid.UUID, multiplier float64) (*models.Bet, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE bets SET cashout_multiplier = $2
		WHERE id = $1 AND cashout_multiplier IS NULL AND profit IS NULL
		RETURNING `+betColumns, betID, multiplier)
	bet, err := scanBet(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to record cashout: %w", err)
	}
	return bet, nil
}

// SettleBets writes each bet's profit in one batch. The profit guard makes
// the write idempotent: a replayed settlement affects no rows.
func (r *Repository) SettleBets(ctx context.Context, settlements []BetSettlement) error {
	if len(settlements) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, s := range settlements {
		batch.Queue(`UPDATE bets SET profit = $2 WHERE id = $1 AND profit IS NULL`, s.BetID, s.Profit)
	}
	results := r.db.SendBatch(ctx, batch)
	defer results.Close()
	for range settlements {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to settle bets: %w", err)
		}
	}
	return nil
}
