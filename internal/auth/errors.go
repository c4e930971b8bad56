package auth

import "errors"

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrDuplicateEmail     = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrMissingToken       = errors.New("authorization token required")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrForbidden          = errors.New("forbidden")
	ErrMissingConfig      = errors.New("token signing secret is not configured")
	ErrUserNotFound       = errors.New("user not found")
)
