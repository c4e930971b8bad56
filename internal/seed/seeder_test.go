package seed_test

import (
	"context"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-booking/internal/auth"
	"github.com/hackgods/clinic-booking/internal/booking"
	"github.com/hackgods/clinic-booking/internal/db/dbtest"
	"github.com/hackgods/clinic-booking/internal/seed"
)

// Reseeding deletes every unbooked slot, so it runs against a database no other package uses.
func TestReseedSlotsKeepsBookings(t *testing.T) {
	gdb := dbtest.OpenEnv(t, "TEST_POSTGRES_SEED_DSN", &auth.User{}, &booking.Slot{}, &booking.Booking{})
	ctx := context.Background()

	users := auth.NewGormUserRepository(gdb)
	s := seed.New(gdb, users, nil, nil, seed.Options{
		Days:          seed.DefaultDays,
		Location:      time.UTC,
		AdminEmail:    gofakeit.UUID() + "@admin.test",
		AdminPassword: "Password!",
		BcryptCost:    4,
	}, zap.NewNop())

	if err := s.EnsureAdmin(ctx); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	if err := s.EnsureAdmin(ctx); err != nil {
		t.Fatalf("ensure admin twice: %v", err)
	}

	// far future so the run does not fight with slots other tests create
	now := time.Date(2990, 3, 2, 8, 0, 0, 0, time.UTC)
	if _, err := s.ReseedSlots(ctx, now); err != nil {
		t.Fatalf("first reseed: %v", err)
	}

	var generated []booking.Slot
	from, to := now, now.Add(seed.DefaultDays*24*time.Hour)
	if err := gdb.Where("start_at >= ? AND start_at < ?", from, to).Order("start_at").Find(&generated).Error; err != nil {
		t.Fatalf("load slots: %v", err)
	}
	if len(generated) != 112 {
		t.Fatalf("expected 112 slots in the window, got %d", len(generated))
	}

	patient := auth.User{ID: uuid.New(), Name: "P", Email: gofakeit.UUID() + "@test.com", PasswordHash: "x", Role: auth.RolePatient}
	if err := gdb.Create(&patient).Error; err != nil {
		t.Fatalf("create patient: %v", err)
	}
	repo := booking.NewGormRepository(gdb)
	booked := generated[3]
	if _, err := repo.CreateBooking(ctx, patient.ID, booked.ID); err != nil {
		t.Fatalf("book: %v", err)
	}

	if _, err := s.ReseedSlots(ctx, now); err != nil {
		t.Fatalf("second reseed: %v", err)
	}

	var after []booking.Slot
	if err := gdb.Where("start_at >= ? AND start_at < ?", from, to).Order("start_at").Find(&after).Error; err != nil {
		t.Fatalf("reload slots: %v", err)
	}
	if len(after) != 112 {
		t.Fatalf("expected 112 slots after reseed, got %d", len(after))
	}
	var kept bool
	for _, sl := range after {
		if sl.ID == booked.ID {
			kept = true
		}
	}
	if !kept {
		t.Fatal("booked slot was replaced by reseed")
	}
}

func TestSeedDemoPatientsCanLogIn(t *testing.T) {
	gdb := dbtest.Open(t, &auth.User{}, &booking.Slot{}, &booking.Booking{})
	ctx := context.Background()

	users := auth.NewGormUserRepository(gdb)
	s := seed.New(gdb, users, nil, nil, seed.Options{BcryptCost: 4}, zap.NewNop())

	emails, err := s.SeedDemoPatients(ctx, 3, "demo-pass")
	if err != nil {
		t.Fatalf("seed patients: %v", err)
	}
	if len(emails) == 0 {
		t.Fatal("no patients created")
	}

	svc := auth.NewService(users, auth.NewTokenIssuer("seed-test", time.Hour), 4)
	res, err := svc.Login(ctx, emails[0], "demo-pass")
	if err != nil {
		t.Fatalf("login as %s: %v", emails[0], err)
	}
	if res.Role != auth.RolePatient {
		t.Errorf("role = %v, want patient", res.Role)
	}
}
