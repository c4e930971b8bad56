package auth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/hackgods/clinic-booking/internal/auth"
	"github.com/hackgods/clinic-booking/internal/db/dbtest"
)

func TestGormUserRepository(t *testing.T) {
	gdb := dbtest.Open(t, &auth.User{})
	repo := auth.NewGormUserRepository(gdb)
	ctx := context.Background()

	email := gofakeit.UUID() + "@Test.com"
	u := &auth.User{Name: gofakeit.Name(), Email: email, PasswordHash: "x"}
	if err := repo.Create(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.Role != auth.RolePatient {
		t.Errorf("default role = %v, want patient", u.Role)
	}

	got, err := repo.FindByEmail(ctx, email)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.ID != u.ID || got.Email != auth.NormalizeEmail(email) || got.Role != auth.RolePatient {
		t.Errorf("found %+v", got)
	}

	err = repo.Create(ctx, &auth.User{Name: "Dup", Email: email, PasswordHash: "y"})
	if !errors.Is(err, auth.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	if _, err := repo.FindByEmail(ctx, "missing-"+email); !errors.Is(err, auth.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestGormUserRepositoryEnsureUser(t *testing.T) {
	gdb := dbtest.Open(t, &auth.User{})
	repo := auth.NewGormUserRepository(gdb)
	ctx := context.Background()

	email := gofakeit.UUID() + "@admin.test"
	created, err := repo.EnsureUser(ctx, &auth.User{Name: "Admin", Email: email, PasswordHash: "a", Role: auth.RoleAdmin})
	if err != nil || !created {
		t.Fatalf("first ensure = %v, %v", created, err)
	}

	created, err = repo.EnsureUser(ctx, &auth.User{Name: "Other", Email: email, PasswordHash: "b", Role: auth.RolePatient})
	if err != nil || created {
		t.Fatalf("second ensure = %v, %v", created, err)
	}

	got, err := repo.FindByEmail(ctx, email)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Name != "Admin" || got.Role != auth.RoleAdmin {
		t.Errorf("existing user overwritten: %+v", got)
	}
}
