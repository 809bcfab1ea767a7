package croupier

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/kdev47/stakehouse/go/internal/models"
	"github.com/kdev47/stakehouse/go/internal/outbox"
	"github.com/kdev47/stakehouse/go/internal/rounds"
	"github.com/kdev47/stakehouse/go/internal/sqlutil"
)

// RoundStore defines what the croupier needs from the rounds repository.
type RoundStore interface {
	GetRound(ctx context.Context, id uuid.UUID) (*models.Round, error)
	GetLatestRound(ctx context.Context, gameType models.GameType) (*models.Round, error)
	CreateRound(ctx context.Context, req rounds.CreateRoundRequest) (*models.Round, error)
	UpdateRound(ctx context.Context, id uuid.UUID, req rounds.UpdateRoundRequest) (*models.Round, error)
	FetchNextDeadline(ctx context.Context) (*rounds.NextDeadline, error)
	FetchRoundsDue(ctx context.Context, limit int32) ([]uuid.UUID, error)
	ListBetsByRound(ctx context.Context, roundID uuid.UUID) ([]models.Bet, error)
	RecordCashout(ctx context.Context, betID uuid.UUID, multiplier float64) (*models.Bet, error)
}

// Settler writes round settlements. *rounds.App satisfies it.
type Settler interface {
	SettleRound(ctx context.Context, round *models.Round) error
}

// Outbox records change events alongside the row mutations they describe.
type Outbox interface {
	Insert(ctx context.Context, roundID uuid.UUID, gameType, eventType string, payload []byte) error
}

// Tx runs fn against transactional views of the round store and the outbox,
// so a phase's row mutation and its change event commit or roll back together.
type Tx interface {
	InTx(ctx context.Context, fn func(store RoundStore, outbox Outbox) error) error
}

// PgTx binds both repositories to one database transaction per InTx call.
type PgTx struct {
	db sqlutil.Beginner
}

func NewPgTx(db sqlutil.Beginner) *PgTx {
	return &PgTx{db: db}
}

func (p *PgTx) InTx(ctx context.Context, fn func(store RoundStore, ob Outbox) error) error {
	return sqlutil.Run(ctx, p.db, func(tx pgx.Tx) error {
		return fn(rounds.NewRepository(tx), outbox.NewRepository(tx))
	})
}

type Config struct {
	Games      []models.GameType
	BatchSize  int32 // how many due rounds to claim at once
	NumWorkers int
	ClientSeed string // public seed half mixed into every round
}

func DefaultConfig() Config {
	return Config{
		Games:      []models.GameType{models.GameTypeRoulette, models.GameTypeCrash},
		BatchSize:  10,
		NumWorkers: 4,
		ClientSeed: "stakehouse-public",
	}
}

// Croupier is the authoritative round driver. It sleeps until the earliest
// phase deadline, claims due rounds and advances each through its lifecycle:
// derive the outcome, settle the bets, spawn the successor.
type Croupier struct {
	store      RoundStore
	settler    Settler
	tx         Tx
	cfg        Config
	clock      clockwork.Clock
	wakeCh     chan struct{}
	instanceID string // unique ID for this croupier instance

	workCh chan uuid.UUID

	// Track in-flight work to prevent duplicate processing
	inFlight   map[uuid.UUID]bool
	inFlightMu sync.Mutex

	// One-shot intermission timers, keyed by the terminal round they follow
	activeTimers   map[uuid.UUID]clockwork.Timer
	activeTimersMu sync.Mutex
}

func New(store RoundStore, settler Settler, tx Tx, cfg Config) *Croupier {
	return &Croupier{
		store:      store,
		settler:    settler,
		tx:         tx,
		cfg:        cfg,
		clock:      clockwork.NewRealClock(),
		wakeCh:     make(chan struct{}, 1),
		instanceID: uuid.New().String()[:8], // short ID for logging
		workCh:     make(chan uuid.UUID, cfg.NumWorkers*2),
		inFlight:   make(map[uuid.UUID]bool),

		activeTimers: make(map[uuid.UUID]clockwork.Timer),
	}
}

// Run starts the worker pool and loops forever, sleeping until the next
// deadline and firing phase advances.
func (c *Croupier) Run(ctx context.Context) error {
	log.Info().Str("instance", c.instanceID).Int("workers", c.cfg.NumWorkers).Msg("croupier started")

	var wg sync.WaitGroup
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	for i := 0; i < c.cfg.NumWorkers; i++ {
		wg.Add(1)
		go c.worker(workerCtx, &wg, i)
	}

	defer func() {
		log.Info().Str("instance", c.instanceID).Msg("shutting down workers")
		cancelWorkers()
		close(c.workCh)
		wg.Wait()
		log.Info().Str("instance", c.instanceID).Msg("all workers shut down")
	}()

	if err := c.ensureLiveRounds(ctx); err != nil {
		return err
	}

	timer := c.clock.NewTimer(0)
	defer timer.Stop()

	const idlePollDuration = 5 * time.Second
	retryCount := 0
	const maxRetries = 3

	for {
		select {
		case <-c.wakeCh:
			log.Debug().Str("instance", c.instanceID).Msg("drained wake channel")
		default:
		}

		nd, err := c.store.FetchNextDeadline(ctx)
		if err != nil && !errors.Is(err, rounds.ErrNotFound) {
			retryCount++
			if retryCount <= maxRetries {
				log.Error().
					Err(err).
					Int("retry", retryCount).
					Str("instance", c.instanceID).
					Msg("error fetching next deadline, retrying")
				timer.Reset(time.Second * time.Duration(retryCount))
				select {
				case <-timer.Chan():
					continue
				case <-ctx.Done():
					return nil
				}
			}
			log.Error().Err(err).Str("instance", c.instanceID).Msg("error fetching next deadline after retries")
			return err
		}
		retryCount = 0

		if nd == nil || nd.Deadline == nil {
			// Every live round is mid-intermission; its timer will wake us.
			timer.Reset(idlePollDuration)
			select {
			case <-timer.Chan():
				continue
			case <-ctx.Done():
				log.Info().Str("instance", c.instanceID).Msg("shutdown during idle")
				return nil
			case <-c.wakeCh:
				log.Debug().Str("instance", c.instanceID).Msg("woken up from idle")
				continue
			}
		}

		wait := nd.Deadline.Sub(c.clock.Now())
		if wait > 0 {
			timer.Reset(wait)
			select {
			case <-timer.Chan():
				log.Debug().Str("instance", c.instanceID).Msg("timer fired, fetching due rounds")
			case <-ctx.Done():
				log.Info().Str("instance", c.instanceID).Msg("shutdown during wait")
				return nil
			case <-c.wakeCh:
				log.Debug().Str("instance", c.instanceID).Msg("woken up early, new sooner deadline")
				continue
			}
		}

		due, err := c.store.FetchRoundsDue(ctx, c.cfg.BatchSize)
		if err != nil {
			log.Error().Err(err).Str("instance", c.instanceID).Msg("error fetching due rounds")
			timer.Reset(time.Second)
			select {
			case <-timer.Chan():
				continue
			case <-ctx.Done():
				return nil
			}
		}

		for _, roundID := range due {
			if !c.enqueue(ctx, roundID) {
				log.Info().Str("instance", c.instanceID).Msg("shutdown while queueing due rounds")
				return nil
			}
		}
	}
}

// enqueue hands a round to the worker pool once; a round already in flight
// is skipped. Returns false only on shutdown.
func (c *Croupier) enqueue(ctx context.Context, roundID uuid.UUID) bool {
	c.inFlightMu.Lock()
	if c.inFlight[roundID] {
		c.inFlightMu.Unlock()
		log.Debug().Str("round_id", roundID.String()).Str("instance", c.instanceID).Msg("skipping round already in flight")
		return true
	}
	c.inFlight[roundID] = true
	c.inFlightMu.Unlock()

	select {
	case <-ctx.Done():
		c.inFlightMu.Lock()
		delete(c.inFlight, roundID)
		c.inFlightMu.Unlock()
		return false
	case c.workCh <- roundID:
		log.Debug().Str("round_id", roundID.String()).Str("instance", c.instanceID).Msg("queued round for worker")
		return true
	}
}

// worker processes round phase advances from the work channel
func (c *Croupier) worker(ctx context.Context, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			log.Info().
				Str("instance", c.instanceID).
				Int("worker_id", workerID).
				Msg("worker shutting down")
			return
		case roundID, ok := <-c.workCh:
			if !ok {
				return
			}

			if err := c.advance(ctx, roundID); err != nil {
				log.Error().
					Err(err).
					Str("round_id", roundID.String()).
					Str("instance", c.instanceID).
					Int("worker_id", workerID).
					Msg("worker advance failed")
			}

			// Clean up in-flight tracking regardless of success/failure
			c.inFlightMu.Lock()
			delete(c.inFlight, roundID)
			c.inFlightMu.Unlock()
		}
	}
}

// ensureLiveRounds opens a fresh round for any configured game whose latest
// round is missing or already terminal, so a cold start always has something
// to drive.
func (c *Croupier) ensureLiveRounds(ctx context.Context) error {
	for _, game := range c.cfg.Games {
		latest, err := c.store.GetLatestRound(ctx, game)
		if err != nil && !errors.Is(err, rounds.ErrNotFound) {
			return err
		}
		if latest != nil && !latest.Status.IsTerminal() {
			continue
		}
		var nonce int64
		if latest != nil {
			nonce = latest.Nonce + 1
		}
		if _, err := c.openRound(ctx, game, nonce); err != nil {
			return err
		}
	}
	return nil
}

// wake nudges the scheduler in case a new deadline is sooner than the one it
// sleeps on.
func (c *Croupier) wake() {
	select {
	case c.wakeCh <- struct{}{}:
	default:
	}
}

// newServerSeed draws the secret seed half for one round.
func newServerSeed() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
