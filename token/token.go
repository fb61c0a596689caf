// Package token issues and verifies the signed, time-boxed tokens mailed to
// new users to prove they control their email address.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is used when Issue is called with a non-positive ttl.
const DefaultTTL = time.Hour

type confirmClaims struct {
	jwt.RegisteredClaims
	ConfirmID uint `json:"confirm_id"`
}

// Issuer signs confirmation tokens with an HMAC secret. It holds no
// per-token state, so verification has no side effects.
type Issuer struct {
	secret []byte
	now    func() time.Time
}

type Option func(*Issuer)

// WithClock replaces time.Now, both when stamping and when checking expiry.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		i.now = now
	}
}

func NewIssuer(secret string, opts ...Option) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("token: empty signing secret")
	}
	i := &Issuer{secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Issue returns a token binding userID that expires ttl from now.
func (i *Issuer) Issue(userID uint, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := i.now()
	claims := confirmClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		ConfirmID: userID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// Verify reports whether tok is well formed, correctly signed, unexpired and
// bound to userID. It never returns an error: every failure is false.
func (i *Issuer) Verify(tok string, userID uint) bool {
	claims := &confirmClaims{}
	parsed, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !parsed.Valid {
		return false
	}
	return claims.ConfirmID != 0 && claims.ConfirmID == userID
}
