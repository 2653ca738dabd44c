package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Identity is the verified tuple the auth layer produces for every request
// and every session handshake.
type Identity struct {
	UserID      string
	DisplayName string
	Permissions []string
}

// Has reports whether the identity carries the permission.
func (i Identity) Has(permission string) bool {
	for _, p := range i.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// Claims is the JWT claim set issued by the auth service.
type Claims struct {
	DisplayName string   `json:"display_name"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks credential tokens (signature + expiry) and extracts the
// identity.
type Verifier struct {
	secret []byte
}

// NewVerifier constructs a Verifier over the shared HMAC secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates the token, returning the identity it carries.
func (v *Verifier) Verify(tokenStr string) (Identity, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{
		UserID:      claims.Subject,
		DisplayName: claims.DisplayName,
		Permissions: claims.Permissions,
	}, nil
}

// Issue signs a token for the identity; used by tests and local tooling.
func (v *Verifier) Issue(identity Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		DisplayName: identity.DisplayName,
		Permissions: identity.Permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
