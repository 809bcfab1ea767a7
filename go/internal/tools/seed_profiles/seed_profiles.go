package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kdev47/stakehouse/go/internal/dbconfig"
)

// Profile mirrors the JSON snapshot of demo accounts.
type Profile struct {
	ID         string  `json:"id"`
	Username   string  `json:"username"`
	AvatarURL  string  `json:"avatar_url"`
	Balance    float64 `json:"balance"`
	ClientSeed string  `json:"client_seed"`
}

func main() {
	// 1) Load the JSON snapshot
	path := "go/internal/assets/profiles.json"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read JSON: %v\n", err)
		os.Exit(1)
	}
	var profiles []Profile
	if err := json.Unmarshal(data, &profiles); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal JSON: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect using shared dbconfig
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(context.Background(), cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 3) Insert and count. Existing accounts are left alone so reseeding
	// never resets a live balance.
	var (
		total    = len(profiles)
		inserted int
		skipped  int
		errs     int
	)

	for _, p := range profiles {
		cmdTag, err := pool.Exec(context.Background(), `
            INSERT INTO profiles (
              id, username, avatar_url, balance, wagered,
              games_played, client_seed, nonce
            ) VALUES (
              $1,$2,$3,$4,0,0,$5,0
            )
            ON CONFLICT (id) DO NOTHING
        `,
			p.ID, p.Username, p.AvatarURL, p.Balance, p.ClientSeed,
		)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error inserting profile %s: %v\n", p.ID, err)
			errs++
			continue
		}
		if cmdTag.RowsAffected() == 1 {
			inserted++
		} else {
			skipped++
		}
	}

	// 4) Print summary
	fmt.Printf(
		"Profiles seed complete: %d total, %d inserted, %d skipped, %d errors\n",
		total, inserted, skipped, errs,
	)
}
