package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoSecret = errors.New("token: signing secret is not configured")

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Claims struct {
	UserID  string `json:"uid"`
	GuildID string `json:"gid"`
	jwt.RegisteredClaims
}

type Manager struct {
	secret []byte
	ttl    time.Duration
	clock  Clock
}

func NewManager(secret string, ttl time.Duration) (*Manager, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Manager{secret: []byte(secret), ttl: ttl, clock: realClock{}}, nil
}

func (m *Manager) WithClock(clock Clock) {
	m.clock = clock
}

func (m *Manager) TTL() time.Duration {
	return m.ttl
}

func (m *Manager) Mint(userID, guildID string) (string, error) {
	if userID == "" || guildID == "" {
		return "", fmt.Errorf("token: user and guild ids are required")
	}
	now := m.clock.Now()
	claims := Claims{
		UserID:  userID,
		GuildID: guildID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *Manager) Verify(tokenString string) (Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(tokenString, &claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Claims{}, err
	}
	if !parsed.Valid {
		return Claims{}, jwt.ErrTokenInvalidClaims
	}
	if claims.UserID == "" || claims.GuildID == "" {
		return Claims{}, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}
