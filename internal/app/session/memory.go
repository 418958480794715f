package session

import (
	"context"
	"fmt"
	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"sync"
	"time"
	"townmarket/internal/app/logger"
	"townmarket/internal/app/model"
	"townmarket/internal/app/storage"
)

// session.Manager interface implementation
var _ Manager = (*Memory)(nil)

// Memory keeps live sessions in process. A token is valid while its
// session entry exists and has not expired.
type Memory struct {
	mu       sync.RWMutex
	issuer   string
	key      []byte
	lifetime time.Duration
	users    storage.UserRepository
	sessions map[string]entry
	now      func() time.Time
}

type entry struct {
	userID    string
	expiresAt time.Time
}

func (m *Memory) LoggerComponent() string {
	return "Session.Memory"
}

func NewMemory(secretKey string, users storage.UserRepository, opts ...MemoryOption) *Memory {
	m := &Memory{
		issuer:   "townmarket",
		key:      []byte(secretKey),
		lifetime: time.Hour,
		users:    users,
		sessions: make(map[string]entry),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Len returns the number of stored sessions, expired ones included
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Create method of session.Creator implementation
func (m *Memory) Create(ctx context.Context, u *model.User) (string, error) {
	log := logger.Get(ctx, m)

	id := uuid.New().String()
	now := m.now()
	exp := now.Add(m.lifetime)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        id,
			Subject:   u.ID,
			Issuer:    m.issuer,
			NotBefore: now.Unix(),
			ExpiresAt: exp.Unix(),
		},
	}).SignedString(m.key)
	if err != nil {
		log.Error().Err(err).Msg("Token signing failed")
		return "", fmt.Errorf("jwt encode: %w", err)
	}

	m.mu.Lock()
	swept := m.sweep(now)
	m.sessions[id] = entry{userID: u.ID, expiresAt: exp}
	m.mu.Unlock()

	log.Debug().Str("session_id", id).Str("user_id", u.ID).Int("expired_removed", swept).Msg("Session created")
	return token, nil
}

// sweep drops expired sessions, m.mu must be held for writing
func (m *Memory) sweep(now time.Time) int {
	n := 0
	for id, e := range m.sessions {
		if !e.expiresAt.After(now) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// Read method of session.Reader implementation
func (m *Memory) Read(ctx context.Context, token string) (*model.User, error) {
	log := logger.Get(ctx, m)

	c := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.key, nil
	})
	if err != nil || !parsed.Valid {
		log.Debug().Err(err).Msg("Token rejected")
		return nil, ErrInvalidToken
	}

	id := c.StandardClaims.Id
	m.mu.RLock()
	e, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		log.Debug().Str("session_id", id).Msg("Session not found")
		return nil, ErrInvalidToken
	}

	if !e.expiresAt.After(m.now()) {
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()

		log.Debug().Str("session_id", id).Str("user_id", e.userID).Msg("Session expired")
		return nil, ErrInvalidToken
	}

	u, err := m.users.Read(ctx, e.userID)
	if err != nil {
		log.Debug().Err(err).Str("user_id", e.userID).Msg("Session user lookup failed")
		return nil, ErrInvalidToken
	}

	return u, nil
}
