package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSlotNotFound       = errors.New("slot not found")
	ErrSlotAlreadyBooked  = errors.New("this slot is no longer available")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error)

	// Slots in [from, to) that have no booking, earliest first.
	ListAvailableSlots(ctx context.Context, from, to time.Time) ([]Slot, error)

	// CreateBooking is a single unconditional insert. The store decides who wins a race:
	// losers get ErrSlotAlreadyBooked, an unknown slot gets ErrSlotNotFound.
	CreateBooking(ctx context.Context, userID, slotID uuid.UUID) (*Booking, error)

	// Listings come back with Slot (and for ListAllBookings, User) populated, ordered by slot start.
	ListBookingsByUser(ctx context.Context, userID uuid.UUID) ([]Booking, error)
	ListAllBookings(ctx context.Context) ([]Booking, error)
}
