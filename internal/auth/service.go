package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

type Service struct {
	users      UserRepository
	tokens     *TokenIssuer
	bcryptCost int

	dummyOnce sync.Once
	dummyHash string
}

func NewService(users UserRepository, tokens *TokenIssuer, bcryptCost int) *Service {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		users:      users,
		tokens:     tokens,
		bcryptCost: bcryptCost,
	}
}

// Register creates a patient account.
func (s *Service) Register(ctx context.Context, name, email, password string) (*User, error) {
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)
	if name == "" || email == "" || strings.TrimSpace(password) == "" {
		return nil, fmt.Errorf("name, email and password are required: %w", ErrInvalidInput)
	}

	hash, err := HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	u := &User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         RolePatient,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// Login returns the same ErrInvalidCredentials for an unknown email and for a wrong password.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return LoginResult{}, fmt.Errorf("email and password are required: %w", ErrInvalidInput)
	}
	if !s.tokens.Configured() {
		return LoginResult{}, ErrMissingConfig
	}

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			return LoginResult{}, fmt.Errorf("load user: %w", err)
		}
		// same bcrypt cost as the found-user path
		CheckPassword(s.dummy(), password)
		return LoginResult{}, ErrInvalidCredentials
	}
	if !CheckPassword(u.PasswordHash, password) {
		return LoginResult{}, ErrInvalidCredentials
	}

	tok, err := s.tokens.Issue(Identity{UserID: u.ID, Role: u.Role})
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Token: tok, Role: u.Role}, nil
}

func (s *Service) Verify(_ context.Context, raw string) (Identity, error) {
	return s.tokens.Parse(raw)
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.bcryptCost)
		if err == nil {
			s.dummyHash = string(h)
		}
	})
	return s.dummyHash
}
