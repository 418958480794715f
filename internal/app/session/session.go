// Package session issues and checks bearer tokens.
package session

import (
	"context"
	"errors"
	"github.com/golang-jwt/jwt"
	"time"
	"townmarket/internal/app/model"
)

var ErrInvalidToken = errors.New("invalid token")

type Creator interface {
	// Create starts a session for u and returns its token
	Create(ctx context.Context, u *model.User) (string, error)
}

type Reader interface {
	// Read returns the user owning a live session token
	Read(ctx context.Context, token string) (*model.User, error)
}

type Manager interface {
	Creator
	Reader
}

type Claims struct {
	jwt.StandardClaims
}

type MemoryOption func(*Memory)

func WithIssuer(issuer string) MemoryOption {
	return func(m *Memory) {
		m.issuer = issuer
	}
}

func WithTokenLifetime(d time.Duration) MemoryOption {
	return func(m *Memory) {
		m.lifetime = d
	}
}

// WithClock replaces the time source used for expiry
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}
