// ABOUTME: Signed OAuth state tokens binding a consent flow to a chat user
// ABOUTME: HS256 JWTs carrying the account email, external user id and chat id

package credential

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultStateTTL bounds how long a consent link stays usable.
const DefaultStateTTL = 15 * time.Minute

// State errors
var (
	ErrInvalidState = errors.New("invalid oauth state")
	ErrExpiredState = errors.New("oauth state expired")
)

// State is the payload carried through the consent redirect.
type State struct {
	Email          string `json:"email"`
	ExternalUserID string `json:"uid"`
	ChatID         string `json:"cid,omitempty"`
}

type stateClaims struct {
	State
	jwt.RegisteredClaims
}

// StateSigner issues and verifies state tokens.
type StateSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewStateSigner creates a signer. ttl <= 0 selects DefaultStateTTL.
func NewStateSigner(secret []byte, ttl time.Duration) *StateSigner {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &StateSigner{secret: secret, ttl: ttl, now: time.Now}
}

// Sign returns a state token for st.
func (s *StateSigner) Sign(st State) (string, error) {
	now := s.now()
	claims := stateClaims{
		State: st,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks the signature and expiry and returns the payload.
func (s *StateSigner) Verify(token string) (*State, error) {
	var claims stateClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredState
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if !parsed.Valid || claims.Email == "" || claims.ExternalUserID == "" {
		return nil, ErrInvalidState
	}
	return &claims.State, nil
}
