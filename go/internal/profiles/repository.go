// Package profiles serves user display data and fairness seeds: the
// synchronizer enriches incoming bets with username and avatar, and the
// games read the player's client seed and nonce. Lookups go through a
// TTL cache since every bet event hits them.
package profiles

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kdev47/stakehouse/go/internal/models"
)

// ErrNotFound is returned when no profile exists for the id.
var ErrNotFound = errors.New("profiles: not found")

// DB defines what the repository needs from the database layer; *pgxpool.Pool
// satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository implements profile data access on Postgres.
type Repository struct {
	db DB
}

func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

const profileColumns = `id, username, avatar_url, balance, wagered, games_played, client_seed, created_at`

func (r *Repository) GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var p models.Profile
	err := r.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id).
		Scan(&p.ID, &p.Username, &p.AvatarURL, &p.Balance, &p.Wagered,
			&p.GamesPlayed, &p.ClientSeed, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &p, nil
}

// UpdateClientSeed rotates the user's client seed for future rounds. Seeds
// already consumed by settled rounds stay verifiable against the old value.
func (r *Repository) UpdateClientSeed(ctx context.Context, id uuid.UUID, seed string) error {
	if seed == "" {
		return fmt.Errorf("profiles: client seed must not be empty")
	}
	tag, err := r.db.Exec(ctx, `UPDATE profiles SET client_seed = $2 WHERE id = $1`, id, seed)
	if err != nil {
		return fmt.Errorf("failed to update client seed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
