// Package ledger holds the client projection of the active round's bet set.
// It is a pure in-memory structure: the synchronizer feeds it row events, the
// betting UI and the settlement reconciler read snapshots from it.
package ledger

import (
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/kdev47/stakehouse/go/internal/models"
)

// Ledger is the set of bets for the active round, own and others', keyed by
// bet id. Safe for concurrent use.
type Ledger struct {
	mu   sync.RWMutex
	bets map[uuid.UUID]models.Bet
	seq  map[uuid.UUID]int // insertion order for stable snapshots
	next int
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{
		bets: make(map[uuid.UUID]models.Bet),
		seq:  make(map[uuid.UUID]int),
	}
}

// ApplyInsert adds a bet, or replaces it in place if the id is already held
// (streamed inserts can race a refetch).
func (l *Ledger) ApplyInsert(b models.Bet) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.bets[b.ID]; !ok {
		l.seq[b.ID] = l.next
		l.next++
	}
	l.bets[b.ID] = b
}

// ApplyUpdate merges an updated row by id; an update for an unseen id is
// treated as an insert.
func (l *Ledger) ApplyUpdate(b models.Bet) {
	l.ApplyInsert(b)
}

// ApplyDelete removes a bet by id. Unknown ids are ignored.
func (l *Ledger) ApplyDelete(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.bets, id)
	delete(l.seq, id)
}

// Clear discards every entry. Called when a new round id is observed.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bets = make(map[uuid.UUID]models.Bet)
	l.seq = make(map[uuid.UUID]int)
	l.next = 0
}

// Replace swaps the entire content for a freshly fetched bet set (terminal
// refetch, reconnect).
func (l *Ledger) Replace(bets []models.Bet) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bets = make(map[uuid.UUID]models.Bet, len(bets))
	l.seq = make(map[uuid.UUID]int, len(bets))
	l.next = 0
	for _, b := range bets {
		l.bets[b.ID] = b
		l.seq[b.ID] = l.next
		l.next++
	}
}

// Snapshot returns all bets in insertion order.
func (l *Ledger) Snapshot() []models.Bet {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.Bet, 0, len(l.bets))
	for _, b := range l.bets {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		return l.seq[out[i].ID] < l.seq[out[j].ID]
	})
	return out
}

// ForUser returns the given user's bets in insertion order.
func (l *Ledger) ForUser(userID uuid.UUID) []models.Bet {
	var out []models.Bet
	for _, b := range l.Snapshot() {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out
}

// KindTotal is the aggregate stake on one bet kind; entries underneath stay
// distinct bets.
type KindTotal struct {
	Total float64
	Bets  []models.Bet
}

// TotalsByKind groups the snapshot by wager kind for the betting table
// display. Straight number bets group per number.
func (l *Ledger) TotalsByKind() map[string]KindTotal {
	out := make(map[string]KindTotal)
	for _, b := range l.Snapshot() {
		key := kindKey(b)
		kt := out[key]
		kt.Total += b.Amount
		kt.Bets = append(kt.Bets, b)
		out[key] = kt
	}
	return out
}

// UserTotalsByKind is TotalsByKind restricted to one user.
func (l *Ledger) UserTotalsByKind(userID uuid.UUID) map[string]KindTotal {
	out := make(map[string]KindTotal)
	for _, b := range l.ForUser(userID) {
		key := kindKey(b)
		kt := out[key]
		kt.Total += b.Amount
		kt.Bets = append(kt.Bets, b)
		out[key] = kt
	}
	return out
}

// Len returns the number of held bets.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.bets)
}

func kindKey(b models.Bet) string {
	if b.Kind == models.BetKindNumber && b.Number != nil {
		return string(b.Kind) + "_" + strconv.Itoa(*b.Number)
	}
	return string(b.Kind)
}
