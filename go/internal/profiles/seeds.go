package profiles

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SeedSource hands out fairness inputs for the single-pass games: the active
// server seed plus the user's client seed and next nonce. The nonce bump is
// a single UPDATE, so concurrent plays never share a tuple.
type SeedSource struct {
	db         DB
	serverSeed string
}

func NewSeedSource(db DB, serverSeed string) (*SeedSource, error) {
	if serverSeed == "" {
		return nil, errors.New("profiles: server seed must not be empty")
	}
	return &SeedSource{db: db, serverSeed: serverSeed}, nil
}

// NextSeedTuple consumes and returns the user's next nonce alongside both
// seeds.
func (s *SeedSource) NextSeedTuple(ctx context.Context, userID uuid.UUID) (string, string, int64, error) {
	var clientSeed string
	var nonce int64
	err := s.db.QueryRow(ctx, `
		UPDATE profiles SET nonce = nonce + 1
		WHERE id = $1
		RETURNING client_seed, nonce - 1`, userID).Scan(&clientSeed, &nonce)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", 0, ErrNotFound
	}
	if err != nil {
		return "", "", 0, fmt.Errorf("failed to consume nonce: %w", err)
	}
	return s.serverSeed, clientSeed, nonce, nil
}
