package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hackgods/clinic-booking/internal/auth"
	"github.com/hackgods/clinic-booking/internal/db"
)

// Constraint names as created by AutoMigrate for the Booking model.
const (
	slotUniqueIndex = "idx_bookings_slot_id"
	slotForeignKey  = "fk_bookings_slot"
	userForeignKey  = "fk_bookings_user"
)

type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(gdb *gorm.DB) *GormRepository {
	return &GormRepository{db: gdb}
}

func (r *GormRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	var s Slot
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *GormRepository) ListAvailableSlots(ctx context.Context, from, to time.Time) ([]Slot, error) {
	var slots []Slot
	err := r.db.WithContext(ctx).
		Where("start_at >= ? AND start_at < ?", from, to).
		Where("NOT EXISTS (SELECT 1 FROM bookings b WHERE b.slot_id = slots.id)").
		Order("start_at ASC").
		Find(&slots).Error
	if err != nil {
		return nil, err
	}
	return slots, nil
}

func (r *GormRepository) CreateBooking(ctx context.Context, userID, slotID uuid.UUID) (*Booking, error) {
	b := &Booking{
		ID:     uuid.New(),
		UserID: userID,
		SlotID: slotID,
	}

	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(b).Error
	switch {
	case err == nil:
		return b, nil
	case db.IsUniqueViolation(err, slotUniqueIndex):
		return nil, ErrSlotAlreadyBooked
	case db.IsForeignKeyViolation(err, slotForeignKey):
		return nil, ErrSlotNotFound
	case db.IsForeignKeyViolation(err, userForeignKey):
		return nil, auth.ErrUserNotFound
	default:
		return nil, fmt.Errorf("insert booking: %w", err)
	}
}

func (r *GormRepository) ListBookingsByUser(ctx context.Context, userID uuid.UUID) ([]Booking, error) {
	var out []Booking
	err := r.db.WithContext(ctx).
		Joins("JOIN slots ON slots.id = bookings.slot_id").
		Where("bookings.user_id = ?", userID).
		Order("slots.start_at ASC").
		Preload("Slot").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormRepository) ListAllBookings(ctx context.Context) ([]Booking, error) {
	var out []Booking
	err := r.db.WithContext(ctx).
		Joins("JOIN slots ON slots.id = bookings.slot_id").
		Order("slots.start_at ASC").
		Preload("Slot").
		Preload("User", func(tx *gorm.DB) *gorm.DB {
			return tx.Select("id", "name", "email")
		}).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
