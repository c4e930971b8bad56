package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/clinic-booking/internal/booking"
)

const slotVersionKey = "slots:available:version"

// SlotCache stores available-slot listings under a version counter. Invalidate bumps the
// counter, so every entry written before it becomes unreachable at once.
type SlotCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSlotCache(client *redis.Client, ttl time.Duration) *SlotCache {
	return &SlotCache{client: client, ttl: ttl}
}

func slotListKey(version int64) string {
	return fmt.Sprintf("slots:available:v%d", version)
}

func (c *SlotCache) Available(ctx context.Context) ([]booking.Slot, int64, bool, error) {
	version, err := c.client.Get(ctx, slotVersionKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, false, fmt.Errorf("read slot cache version: %w", err)
	}

	raw, err := c.client.Get(ctx, slotListKey(version)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, version, false, nil
	}
	if err != nil {
		return nil, version, false, fmt.Errorf("read slot cache: %w", err)
	}

	var slots []booking.Slot
	if err := json.Unmarshal(raw, &slots); err != nil {
		return nil, version, false, fmt.Errorf("decode slot cache: %w", err)
	}
	return slots, version, true, nil
}

func (c *SlotCache) StoreAvailable(ctx context.Context, version int64, slots []booking.Slot) error {
	raw, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("encode slot cache: %w", err)
	}
	if err := c.client.Set(ctx, slotListKey(version), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("write slot cache: %w", err)
	}
	return nil
}

// Invalidate bumps the version. If that fails it still tries to drop the current entry, and
// reports the failure either way.
func (c *SlotCache) Invalidate(ctx context.Context) error {
	err := c.client.Incr(ctx, slotVersionKey).Err()
	if err == nil {
		return nil
	}

	version, gerr := c.client.Get(ctx, slotVersionKey).Int64()
	if gerr == nil || errors.Is(gerr, redis.Nil) {
		_ = c.client.Del(ctx, slotListKey(version)).Err()
	}
	return fmt.Errorf("bump slot cache version: %w", err)
}

func (c *SlotCache) TTL() time.Duration {
	return c.ttl
}

var _ booking.SlotCache = (*SlotCache)(nil)
