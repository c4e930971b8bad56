package booking

import (
	"context"
	"time"
)

// SlotCache holds the most recent available-slot listing. Implementations version their
// entries: Invalidate moves to a new version, so an entry computed before a booking can never
// be served after it.
type SlotCache interface {
	// Available returns the cached listing for the current version. On a miss it still returns
	// the version the caller should store its freshly computed listing under.
	Available(ctx context.Context) (slots []Slot, version int64, ok bool, err error)
	StoreAvailable(ctx context.Context, version int64, slots []Slot) error
	Invalidate(ctx context.Context) error
	// TTL bounds how long an entry written before a failed Invalidate can still be served.
	TTL() time.Duration
}

// NopSlotCache never hits.
type NopSlotCache struct{}

func (NopSlotCache) Available(context.Context) ([]Slot, int64, bool, error) {
	return nil, 0, false, nil
}

func (NopSlotCache) StoreAvailable(context.Context, int64, []Slot) error { return nil }

func (NopSlotCache) Invalidate(context.Context) error { return nil }

func (NopSlotCache) TTL() time.Duration { return 0 }
