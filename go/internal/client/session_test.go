package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/kdev47/stakehouse/go/internal/events"
	"github.com/kdev47/stakehouse/go/internal/models"
)

func TestHTTPStateSourceFetchesSnapshot(t *testing.T) {
	roundID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := fmt.Sprintf("/api/games/%s/state", models.GameTypeRoulette)
		if r.URL.Path != want {
			t.Errorf("path = %s, want %s", r.URL.Path, want)
		}
		json.NewEncoder(w).Encode(bettingSnap(roundID))
	}))
	defer srv.Close()

	src := NewHTTPStateSource(srv.URL)
	snap, err := src.GetGameState(context.Background(), models.GameTypeRoulette)
	if err != nil {
		t.Fatalf("GetGameState: %v", err)
	}
	if snap.Round == nil || snap.Round.ID != roundID {
		t.Errorf("snapshot round = %v, want %s", snap.Round, roundID)
	}
}

func TestHTTPStateSourceRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := NewHTTPStateSource(srv.URL).GetGameState(context.Background(), models.GameTypeRoulette); err == nil {
		t.Error("expected an error for a non-200 state response")
	}
}

func TestUserBetTotalsGroupsOwnChips(t *testing.T) {
	userID := uuid.New()
	other := uuid.New()
	roundID := uuid.New()
	s, feed, _ := testSynchronizer(userID, bettingSnap(roundID))
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	seventeen := 17
	for _, b := range []models.Bet{
		{ID: uuid.New(), UserID: userID, RoundID: roundID, Amount: 10, Kind: models.BetKindRed},
		{ID: uuid.New(), UserID: userID, RoundID: roundID, Amount: 15, Kind: models.BetKindRed},
		{ID: uuid.New(), UserID: userID, RoundID: roundID, Amount: 5, Kind: models.BetKindNumber, Number: &seventeen},
		{ID: uuid.New(), UserID: other, RoundID: roundID, Amount: 50, Kind: models.BetKindRed},
	} {
		feed.push(t, events.TypeBetInsert, events.BetPayload{Bet: b})
	}

	totals := s.UserBetTotals(userID)
	if len(totals) != 2 {
		t.Fatalf("totals cover %d kinds, want 2", len(totals))
	}
	if got := totals[string(models.BetKindRed)].Total; got != 25 {
		t.Errorf("red total = %v, want 25 without the other user's chips", got)
	}
	if got := totals["NUMBER_17"].Total; got != 5 {
		t.Errorf("straight 17 total = %v, want 5", got)
	}
}

func TestJoinedSettledSurfacesToView(t *testing.T) {
	userID := uuid.New()
	roundID := uuid.New()
	n := 11
	snap := bettingSnap(roundID)
	snap.Round.Status = models.RoundStatusEnded
	snap.Round.WinningNumber = &n

	s, _, _ := testSynchronizer(userID, snap)
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !s.JoinedSettled() {
		t.Error("joining a settled round must be reported so the resolve animation is skipped")
	}
}
