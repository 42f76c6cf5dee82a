// Package auth gates the admin API behind a single configured account.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for an unknown username or a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Session is an authenticated login. Token is what the client presents on later requests.
type Session struct {
	ID        string    `json:"-"`
	Username  string    `json:"username"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Authenticator issues and checks sessions. Handlers depend on this, never on credentials storage.
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) (Session, error)
	Validate(token string) (Session, bool)
	Revoke(token string)
}

type claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenAuthenticator signs HS256 session tokens for one admin account.
type TokenAuthenticator struct {
	username     string
	passwordHash []byte
	secret       []byte
	ttl          time.Duration
	now          func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time
}

// NewTokenAuthenticator accepts either a bcrypt hash or a plain password; the hash wins when both are set.
func NewTokenAuthenticator(username, password, passwordHash, secret string, ttl time.Duration) (*TokenAuthenticator, error) {
	if username == "" {
		return nil, errors.New("admin username is required")
	}
	if secret == "" {
		return nil, errors.New("session secret is required")
	}
	hash := []byte(passwordHash)
	if len(hash) == 0 {
		if password == "" {
			return nil, errors.New("admin password or password hash is required")
		}
		var err error
		hash, err = bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash admin password: %w", err)
		}
	} else if _, err := bcrypt.Cost(hash); err != nil {
		return nil, fmt.Errorf("admin password hash: %w", err)
	}
	return &TokenAuthenticator{
		username:     username,
		passwordHash: hash,
		secret:       []byte(secret),
		ttl:          ttl,
		now:          time.Now,
		revoked:      make(map[string]time.Time),
	}, nil
}

func (a *TokenAuthenticator) Authenticate(ctx context.Context, creds Credentials) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	userOK := subtle.ConstantTimeCompare([]byte(creds.Username), []byte(a.username)) == 1
	// Always run bcrypt so a wrong username costs the same as a wrong password.
	passErr := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(creds.Password))
	if !userOK || passErr != nil {
		return Session{}, ErrInvalidCredentials
	}

	now := a.now()
	session := Session{
		ID:        uuid.NewString(),
		Username:  a.username,
		ExpiresAt: now.Add(a.ttl),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Username: session.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID,
			Subject:   session.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	})
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return Session{}, fmt.Errorf("sign session: %w", err)
	}
	session.Token = signed
	return session, nil
}

func (a *TokenAuthenticator) Validate(token string) (Session, bool) {
	c, ok := a.parse(token)
	if !ok {
		return Session{}, false
	}
	a.mu.Lock()
	_, revoked := a.revoked[c.ID]
	a.mu.Unlock()
	if revoked {
		return Session{}, false
	}
	return Session{ID: c.ID, Username: c.Username, Token: token, ExpiresAt: c.ExpiresAt.Time}, true
}

// Revoke invalidates token until it would have expired anyway.
func (a *TokenAuthenticator) Revoke(token string) {
	c, ok := a.parse(token)
	if !ok {
		return
	}
	now := a.now()
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, exp := range a.revoked {
		if exp.Before(now) {
			delete(a.revoked, id)
		}
	}
	a.revoked[c.ID] = c.ExpiresAt.Time
}

func (a *TokenAuthenticator) parse(token string) (*claims, bool) {
	if token == "" {
		return nil, false
	}
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil || !parsed.Valid {
		return nil, false
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || c.ID == "" || c.ExpiresAt == nil {
		return nil, false
	}
	return c, true
}
