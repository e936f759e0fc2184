package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/listingforge-backend/pkg/redis"
)

// DefaultGuardTTL covers Stripe's three-day retry schedule with margin.
const DefaultGuardTTL = 7 * 24 * time.Hour

// IdempotencyGuard short-circuits redelivered events before they reach the
// ledger. The durable dedupe lives in the grant events table, so losing a mark
// costs one extra no-op transaction, never a double grant.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
	now   func() time.Time
}

// NewIdempotencyGuard builds a guard. A zero ttl selects DefaultGuardTTL so marks
// never live forever in redis.
func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if ttl == 0 {
		ttl = DefaultGuardTTL
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
		now:   time.Now,
	}, nil
}

// CheckAndMark reports whether eventID was already seen, marking it otherwise.
// The mark records the event type and when it was first received.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, eventID, eventType string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	mark := fmt.Sprintf("%s@%s", eventType, g.now().UTC().Format(time.RFC3339))
	set, err := g.store.SetNX(ctx, g.key(eventID), mark, g.ttl)
	if err != nil {
		return false, fmt.Errorf("mark stripe event %s: %w", eventID, err)
	}
	return !set, nil
}

// Delete clears the mark so a failed event can be retried by Stripe.
func (g *IdempotencyGuard) Delete(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	return g.store.Del(ctx, g.key(eventID))
}

func (g *IdempotencyGuard) key(eventID string) string {
	return g.store.IdempotencyKey(g.scope, eventID)
}
