package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hackgods/clinic-booking/internal/auth"
	"github.com/hackgods/clinic-booking/internal/booking"
	redisclient "github.com/hackgods/clinic-booking/internal/redis"
)

const reseedLockName = "reseed-slots"

var slotsReseeded = promauto.NewCounter(prometheus.CounterOpts{
	Name: "booking_slots_reseeded_total",
	Help: "Slots inserted by reseed runs",
})

type Options struct {
	Days          int
	Location      *time.Location
	AdminEmail    string
	AdminPassword string
	BcryptCost    int
}

type Seeder struct {
	db     *gorm.DB
	users  auth.UserRepository
	locker redisclient.Locker
	cache  booking.SlotCache
	opts   Options
	log    *zap.Logger
}

func New(gdb *gorm.DB, users auth.UserRepository, locker redisclient.Locker, cache booking.SlotCache, opts Options, log *zap.Logger) *Seeder {
	if opts.Days <= 0 {
		opts.Days = DefaultDays
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if locker == nil {
		locker = redisclient.LocalLocker{}
	}
	if cache == nil {
		cache = booking.NopSlotCache{}
	}
	return &Seeder{db: gdb, users: users, locker: locker, cache: cache, opts: opts, log: log}
}

// EnsureAdmin creates the configured admin account if no user holds that email yet.
// An existing account is left exactly as it is.
func (s *Seeder) EnsureAdmin(ctx context.Context) error {
	if s.opts.AdminEmail == "" || s.opts.AdminPassword == "" {
		return errors.New("admin email and password are required")
	}
	hash, err := auth.HashPassword(s.opts.AdminPassword, s.opts.BcryptCost)
	if err != nil {
		return err
	}

	created, err := s.users.EnsureUser(ctx, &auth.User{
		Name:         "Admin",
		Email:        s.opts.AdminEmail,
		PasswordHash: hash,
		Role:         auth.RoleAdmin,
	})
	if err != nil {
		return err
	}
	if created {
		s.log.Info("admin user created", zap.String("email", s.opts.AdminEmail))
	} else {
		s.log.Info("admin user already present", zap.String("email", s.opts.AdminEmail))
	}
	return nil
}

// ReseedSlots replaces every unbooked slot with a freshly generated horizon starting at now's
// calendar day. Booked slots and their bookings are kept; generated slots that collide with them
// are skipped. Returns the number of slots inserted.
func (s *Seeder) ReseedSlots(ctx context.Context, now time.Time) (int, error) {
	var inserted int
	err := s.locker.WithLock(ctx, reseedLockName, func(ctx context.Context) error {
		slots := GenerateSlots(now, s.opts.Days, s.opts.Location)

		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			del := tx.Where("NOT EXISTS (SELECT 1 FROM bookings b WHERE b.slot_id = slots.id)").
				Delete(&booking.Slot{})
			if del.Error != nil {
				return fmt.Errorf("delete unbooked slots: %w", del.Error)
			}
			s.log.Info("old slots deleted", zap.Int64("count", del.RowsAffected))

			ins := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "start_at"}},
				DoNothing: true,
			}).CreateInBatches(slots, 500)
			if ins.Error != nil {
				return fmt.Errorf("insert slots: %w", ins.Error)
			}
			inserted = int(ins.RowsAffected)
			return nil
		})
	})
	if err != nil {
		return 0, err
	}

	slotsReseeded.Add(float64(inserted))
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warn("slot cache invalidate failed", zap.Error(err))
	}
	s.log.Info("slots seeded", zap.Int("inserted", inserted), zap.Int("days", s.opts.Days))
	return inserted, nil
}

// SeedDemoPatients registers count fake patient accounts sharing one password.
func (s *Seeder) SeedDemoPatients(ctx context.Context, count int, password string) ([]string, error) {
	hash, err := auth.HashPassword(password, s.opts.BcryptCost)
	if err != nil {
		return nil, err
	}

	emails := make([]string, 0, count)
	for i := 0; i < count; i++ {
		u := &auth.User{
			Name:         gofakeit.Name(),
			Email:        gofakeit.Email(),
			PasswordHash: hash,
			Role:         auth.RolePatient,
		}
		created, err := s.users.EnsureUser(ctx, u)
		if err != nil {
			return emails, fmt.Errorf("seed patient %d: %w", i, err)
		}
		if created {
			emails = append(emails, u.Email)
		}
	}
	s.log.Info("demo patients seeded", zap.Int("count", len(emails)))
	return emails, nil
}
