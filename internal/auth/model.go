package auth

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name         string    `gorm:"not null"`
	Email        string    `gorm:"not null;uniqueIndex:idx_users_email"`
	PasswordHash string    `gorm:"not null"`
	Role         Role      `gorm:"type:varchar(16);not null"`
	CreatedAt    time.Time
}

// Identity is what a verified bearer token proves about its holder.
type Identity struct {
	UserID uuid.UUID
	Role   Role
}

type LoginResult struct {
	Token string
	Role  Role
}
