package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hackgods/clinic-booking/internal/db"
)

const emailIndex = "idx_users_email"

// UserRepository is the credential store.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	// EnsureUser inserts u unless a user with the same email exists. Existing rows are never touched.
	EnsureUser(ctx context.Context, u *User) (bool, error)
}

type GormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(gdb *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: gdb}
}

func (r *GormUserRepository) Create(ctx context.Context, u *User) error {
	prepareUser(u)
	err := r.db.WithContext(ctx).Create(u).Error
	if err != nil {
		if db.IsUniqueViolation(err, emailIndex) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := r.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).Take(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &u, nil
}

func (r *GormUserRepository) EnsureUser(ctx context.Context, u *User) (bool, error) {
	prepareUser(u)
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).
		Create(u)
	if res.Error != nil {
		return false, fmt.Errorf("ensure user: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func prepareUser(u *User) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if !u.Role.Valid() {
		u.Role = RolePatient
	}
	u.Email = NormalizeEmail(u.Email)
}

// NormalizeEmail is the form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
