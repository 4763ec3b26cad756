// Package cache persists the hot-set snapshot to Redis so a restarted
// process can warm-start from the last known quotes instead of the static
// fallback when the upstream feed is down.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/models"
)

const hotSetKey = "market:hotset"

type SnapshotStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSnapshotStore(client *redis.Client, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{client: client, ttl: ttl}
}

// SaveHotSet mirrors the current snapshot. Best effort; the in-process hot
// set is authoritative and a failed mirror only costs warm-start quality.
func (s *SnapshotStore) SaveHotSet(ctx context.Context, quotes []models.PriceQuote) error {
	data, err := json.Marshal(quotes)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, hotSetKey, data, s.ttl).Err()
}

// LoadHotSet returns the mirrored snapshot, nil without error when none
// exists.
func (s *SnapshotStore) LoadHotSet(ctx context.Context) ([]models.PriceQuote, error) {
	data, err := s.client.Get(ctx, hotSetKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var quotes []models.PriceQuote
	if err := json.Unmarshal(data, &quotes); err != nil {
		return nil, err
	}
	return quotes, nil
}
