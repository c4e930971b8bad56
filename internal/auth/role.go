package auth

import (
	"database/sql/driver"
	"fmt"
)

// Role is the closed set of user roles. The zero value is not a valid role.
type Role uint8

const (
	RolePatient Role = iota + 1
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RolePatient:
		return "patient"
	case RoleAdmin:
		return "admin"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleAdmin:
		return true
	default:
		return false
	}
}

func ParseRole(s string) (Role, error) {
	switch s {
	case "patient":
		return RolePatient, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid role %d", uint8(r))
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Value stores the role as its text form.
func (r Role) Value() (driver.Value, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid role %d", uint8(r))
	}
	return r.String(), nil
}

func (r *Role) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return r.UnmarshalText([]byte(v))
	case []byte:
		return r.UnmarshalText(v)
	default:
		return fmt.Errorf("scan role: unsupported type %T", src)
	}
}

// RequireRole fails with ErrForbidden unless actual is exactly the required role.
// An invalid required role fails closed.
func RequireRole(required, actual Role) error {
	switch required {
	case RolePatient, RoleAdmin:
	default:
		return fmt.Errorf("require %s: %w", required, ErrForbidden)
	}
	if actual != required {
		return ErrForbidden
	}
	return nil
}
