// Package auth exchanges dashboard passcodes for short-lived signed session
// tokens so the passcode itself never has to be stored by the client.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Role string

const (
	RoleTickets     Role = "tickets"
	RoleCompetitors Role = "competitors"
)

var (
	ErrInvalidPasscode = errors.New("invalid passcode")
	ErrInvalidToken    = errors.New("invalid session token")
	ErrForbidden       = errors.New("session lacks required role")
)

const issuer = "amparena"

type Config struct {
	Secret              string
	TTL                 time.Duration
	TicketsPasscode     string
	CompetitorsPasscode string
}

type Claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

type Session struct {
	Token     string    `json:"token"`
	Role      Role      `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Manager struct {
	cfg Config
	now func() time.Time
}

func NewManager(cfg Config) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = 2 * time.Hour
	}

	return &Manager{cfg: cfg, now: time.Now}
}

// Login resolves the passcode to a role and issues a session for it. An
// empty configured passcode disables that role.
func (m *Manager) Login(passcode string) (Session, error) {
	const op = "auth.Manager.Login"

	role, ok := m.match(passcode)
	if !ok {
		return Session{}, fmt.Errorf("%s: %w", op, ErrInvalidPasscode)
	}

	now := m.now()
	exp := now.Add(m.cfg.TTL)

	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   string(role),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(m.cfg.Secret))
	if err != nil {
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}

	return Session{Token: token, Role: role, ExpiresAt: exp.UTC()}, nil
}

// Verify checks signature, expiry and that the session carries role.
func (m *Manager) Verify(token string, role Role) (*Claims, error) {
	const op = "auth.Manager.Verify"

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return []byte(m.cfg.Secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrInvalidToken, err)
	}

	if claims.Role != role {
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	return &claims, nil
}

func (m *Manager) match(passcode string) (Role, bool) {
	if passcode == "" {
		return "", false
	}

	if eq(passcode, m.cfg.TicketsPasscode) {
		return RoleTickets, true
	}

	if eq(passcode, m.cfg.CompetitorsPasscode) {
		return RoleCompetitors, true
	}

	return "", false
}

func eq(given, want string) bool {
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(given), []byte(want)) == 1
}
