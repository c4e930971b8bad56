package booking

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-booking/internal/auth"
)

type Service struct {
	repo    Repository
	cache   SlotCache
	horizon time.Duration
	log     *zap.Logger
	now     func() time.Time

	// unix nanos; while now is before it, listings skip the cache because an invalidate failed
	bypassUntil atomic.Int64
}

func NewService(repo Repository, cache SlotCache, horizon time.Duration, log *zap.Logger) *Service {
	if cache == nil {
		cache = NopSlotCache{}
	}
	return &Service{
		repo:    repo,
		cache:   cache,
		horizon: horizon,
		log:     log,
		now:     time.Now,
	}
}

// ListAvailable returns unbooked slots starting within the horizon, earliest first.
// The listing is optimistic: a slot may be taken before the caller tries to book it.
func (s *Service) ListAvailable(ctx context.Context) ([]Slot, error) {
	now := s.now()
	until := now.Add(s.horizon)

	if now.UnixNano() < s.bypassUntil.Load() {
		slotListings.WithLabelValues("bypass").Inc()
		return s.listFromStore(ctx, now, until)
	}

	cached, version, ok, err := s.cache.Available(ctx)
	if err != nil {
		s.log.Warn("slot cache read failed", zap.Error(err))
	} else if ok {
		slotListings.WithLabelValues("hit").Inc()
		return window(cached, now, until), nil
	}
	slotListings.WithLabelValues("miss").Inc()

	slots, err := s.listFromStore(ctx, now, until)
	if err != nil {
		return nil, err
	}

	if err := s.cache.StoreAvailable(ctx, version, slots); err != nil {
		s.log.Warn("slot cache write failed", zap.Error(err))
	}
	return slots, nil
}

func (s *Service) listFromStore(ctx context.Context, now, until time.Time) ([]Slot, error) {
	slots, err := s.repo.ListAvailableSlots(ctx, now, until)
	if err != nil {
		return nil, fmt.Errorf("%w: list available slots: %w", ErrStorageUnavailable, err)
	}
	if slots == nil {
		slots = []Slot{}
	}
	return slots, nil
}

// Book reserves slotID for userID. Exactly one of any number of concurrent calls for the same
// slot succeeds; the rest get ErrSlotAlreadyBooked.
func (s *Service) Book(ctx context.Context, userID, slotID uuid.UUID) (*Booking, error) {
	b, err := s.repo.CreateBooking(ctx, userID, slotID)
	if err != nil {
		switch {
		case errors.Is(err, ErrSlotAlreadyBooked):
			bookingAttempts.WithLabelValues(outcomeAlreadyBooked).Inc()
			return nil, err
		case errors.Is(err, ErrSlotNotFound):
			bookingAttempts.WithLabelValues(outcomeSlotNotFound).Inc()
			return nil, err
		case errors.Is(err, auth.ErrUserNotFound):
			bookingAttempts.WithLabelValues(outcomeError).Inc()
			return nil, err
		default:
			bookingAttempts.WithLabelValues(outcomeError).Inc()
			return nil, fmt.Errorf("%w: create booking: %w", ErrStorageUnavailable, err)
		}
	}
	bookingAttempts.WithLabelValues(outcomeCreated).Inc()

	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warn("slot cache invalidate failed", zap.Stringer("slot_id", slotID), zap.Error(err))
		s.bypassUntil.Store(s.now().Add(s.cache.TTL()).UnixNano())
	}

	// the booking is committed at this point; a failed display join must not turn it into an error
	if slot, err := s.repo.GetSlotByID(ctx, slotID); err != nil {
		s.log.Error("load booked slot", zap.Stringer("booking_id", b.ID), zap.Error(err))
	} else {
		b.Slot = slot
	}

	s.log.Info("slot booked",
		zap.Stringer("booking_id", b.ID),
		zap.Stringer("slot_id", slotID),
		zap.Stringer("user_id", userID),
	)
	return b, nil
}

// MyBookings lists the user's bookings with their slots, earliest slot first.
func (s *Service) MyBookings(ctx context.Context, userID uuid.UUID) ([]Booking, error) {
	out, err := s.repo.ListBookingsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list bookings by user: %w", ErrStorageUnavailable, err)
	}
	return out, nil
}

// AllBookings lists every booking with its user and slot, earliest slot first.
func (s *Service) AllBookings(ctx context.Context) ([]Booking, error) {
	out, err := s.repo.ListAllBookings(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list all bookings: %w", ErrStorageUnavailable, err)
	}
	return out, nil
}

func window(slots []Slot, from, until time.Time) []Slot {
	out := make([]Slot, 0, len(slots))
	for _, sl := range slots {
		if !sl.StartAt.Before(from) && sl.StartAt.Before(until) {
			out = append(out, sl)
		}
	}
	return out
}
