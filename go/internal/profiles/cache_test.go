package profiles

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/kdev47/stakehouse/go/internal/models"
)

type countingGetter struct {
	calls int
	fail  error
}

func (g *countingGetter) GetProfile(_ context.Context, id uuid.UUID) (*models.Profile, error) {
	g.calls++
	if g.fail != nil {
		return nil, g.fail
	}
	return &models.Profile{ID: id, Username: "player"}, nil
}

func TestCacheServesWithinTTL(t *testing.T) {
	getter := &countingGetter{}
	clock := clockwork.NewFakeClock()
	cache := NewCache(getter, time.Minute, clock)
	id := uuid.New()

	for i := 0; i < 3; i++ {
		p, err := cache.GetProfile(context.Background(), id)
		if err != nil {
			t.Fatal(err)
		}
		if p.Username != "player" {
			t.Fatalf("username = %q", p.Username)
		}
	}
	if getter.calls != 1 {
		t.Errorf("source hit %d times within TTL, want 1", getter.calls)
	}
}

func TestCacheRefetchesPastTTL(t *testing.T) {
	getter := &countingGetter{}
	clock := clockwork.NewFakeClock()
	cache := NewCache(getter, time.Minute, clock)
	id := uuid.New()

	if _, err := cache.GetProfile(context.Background(), id); err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Minute + time.Second)
	if _, err := cache.GetProfile(context.Background(), id); err != nil {
		t.Fatal(err)
	}
	if getter.calls != 2 {
		t.Errorf("source hit %d times across TTL, want 2", getter.calls)
	}
}

func TestCacheInvalidate(t *testing.T) {
	getter := &countingGetter{}
	clock := clockwork.NewFakeClock()
	cache := NewCache(getter, time.Minute, clock)
	id := uuid.New()

	if _, err := cache.GetProfile(context.Background(), id); err != nil {
		t.Fatal(err)
	}
	cache.Invalidate(id)
	if _, err := cache.GetProfile(context.Background(), id); err != nil {
		t.Fatal(err)
	}
	if getter.calls != 2 {
		t.Errorf("source hit %d times after invalidate, want 2", getter.calls)
	}
}

func TestCacheDoesNotCacheErrors(t *testing.T) {
	getter := &countingGetter{fail: ErrNotFound}
	clock := clockwork.NewFakeClock()
	cache := NewCache(getter, time.Minute, clock)
	id := uuid.New()

	if _, err := cache.GetProfile(context.Background(), id); err == nil {
		t.Fatal("expected lookup error")
	}
	getter.fail = nil
	if _, err := cache.GetProfile(context.Background(), id); err != nil {
		t.Fatalf("recovered lookup failed: %v", err)
	}
	if getter.calls != 2 {
		t.Errorf("source hit %d times, want 2 (errors not cached)", getter.calls)
	}
}
