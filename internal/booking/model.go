package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/auth"
)

// Slot is a bookable half-hour interval.
type Slot struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	StartAt   time.Time `gorm:"not null;uniqueIndex:idx_slots_start_at;check:end_at > start_at"`
	EndAt     time.Time `gorm:"not null"`
	CreatedAt time.Time
}

// Booking assigns one user to one slot. The unique index on SlotID is what keeps a slot
// from ever being booked twice.
type Booking struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index:idx_bookings_user_id"`
	SlotID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_bookings_slot_id"`
	CreatedAt time.Time

	// Populated by list queries; Slot is also set on the result of Service.Book.
	User *auth.User `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Slot *Slot      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}
