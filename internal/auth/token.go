package auth

import (
	"crypto/rand"
	"errors"
	"strconv"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// TokenManager signs and checks session tokens. Tokens never leave the
// process; they let the access controller tell a session issued at login
// from a Session value assembled by hand.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager builds a new manager. An empty secret is replaced by 32
// random bytes, so tokens from one run are worthless in the next. A
// non-positive ttlMinutes issues tokens that last until logout or exit.
func NewTokenManager(secret string, ttlMinutes int) (*TokenManager, error) {
	if ttlMinutes < 0 {
		ttlMinutes = 0
	}
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
	}
	return &TokenManager{secret: key, ttl: time.Duration(ttlMinutes) * time.Minute, now: time.Now}, nil
}

// WithClock replaces the wall clock used to stamp and check tokens.
func (tm *TokenManager) WithClock(now func() time.Time) *TokenManager {
	if now != nil {
		tm.now = now
	}
	return tm
}

// Claims describes the token payload.
type Claims struct {
	SessionID string      `json:"sid"`
	Username  string      `json:"username"`
	Role      domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Issue signs a token for the session and stores it on the session.
func (tm *TokenManager) Issue(session *domain.Session) error {
	if session == nil {
		return errors.New("session required")
	}
	// Stamped from the clock Verify checks against, not from the session.
	issuedAt := tm.now()
	if session.IssuedAt.IsZero() {
		session.IssuedAt = issuedAt
	}
	claims := &Claims{
		SessionID: session.ID,
		Username:  session.Username,
		Role:      session.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  strconv.FormatInt(session.UserID, 10),
			ID:       session.ID,
			IssuedAt: jwt.NewNumericDate(issuedAt),
		},
	}
	if tm.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(issuedAt.Add(tm.ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return err
	}
	session.Token = signed
	return nil
}

// Verify checks the session's token signature and expiry and that its claims
// still describe the session.
func (tm *TokenManager) Verify(session *domain.Session) error {
	if session == nil || session.Token == "" {
		return errors.New("missing session token")
	}
	parsed, err := jwt.ParseWithClaims(session.Token, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	}, jwt.WithTimeFunc(tm.now))
	if err != nil {
		return err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return errors.New("invalid token claims")
	}
	if claims.SessionID != session.ID ||
		claims.Subject != strconv.FormatInt(session.UserID, 10) ||
		claims.Username != session.Username ||
		claims.Role != session.Role {
		return errors.New("token does not match session")
	}
	return nil
}
