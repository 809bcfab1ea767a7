package outbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB defines what the repository needs from the database layer; *pgxpool.Pool
// and pgx.Tx both satisfy it, so inserts can ride the mutating transaction.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var ErrNotFound = errors.New("outbox: event not found or already sent")

type Repository struct {
	db DB
}

func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

// Insert records a change event. A trigger on the outbox table raises the
// NOTIFY that wakes the listener.
func (r *Repository) Insert(ctx context.Context, roundID uuid.UUID, gameType, eventType string, payload []byte) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO round_outbox (id, round_id, game_type, event_type, payload)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.New(), roundID, gameType, eventType, payload)
	if err != nil {
		return fmt.Errorf("failed to insert %s outbox event: %w", eventType, err)
	}
	return nil
}

const eventColumns = `id, round_id, game_type, event_type, payload, created_at, sent_at`

func scanEvent(row pgx.Row) (*Event, error) {
	var e Event
	err := row.Scan(&e.ID, &e.RoundID, &e.GameType, &e.EventType, &e.Payload, &e.CreatedAt, &e.SentAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// FetchByID returns one unsent event.
func (r *Repository) FetchByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+eventColumns+` FROM round_outbox
		WHERE id = $1 AND sent_at IS NULL`, id)
	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to fetch outbox event: %w", err)
	}
	return event, nil
}

// FetchUnsent returns unsent events oldest first, for the fallback sweep.
func (r *Repository) FetchUnsent(ctx context.Context, limit int32) ([]Event, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+eventColumns+` FROM round_outbox
		WHERE sent_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		out = append(out, *event)
	}
	return out, rows.Err()
}

// MarkSent stamps the event as published.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		UPDATE round_outbox SET sent_at = now()
		WHERE id = $1 AND sent_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event as sent: %w", err)
	}
	return nil
}
