// Package auth resolves the caller of a request to an identity. Issuing credentials and
// session management live elsewhere; this package only verifies them.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sailsteel/order-desk/internal/orders"
)

const CookieName = "auth_token"

type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Anonymous is the identity of an unauthenticated caller.
var Anonymous = Identity{ID: orders.AnonymousUser}

func (i Identity) IsAnonymous() bool { return i.ID == "" || i.ID == orders.AnonymousUser }

type Verifier interface {
	Verify(ctx context.Context, credential string) (Identity, bool)
}

type Claims struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// HMACVerifier accepts HS256 tokens signed with Secret.
type HMACVerifier struct {
	Secret []byte
}

func (v HMACVerifier) Verify(_ context.Context, credential string) (Identity, bool) {
	if credential == "" || len(v.Secret) == 0 {
		return Identity{}, false
	}
	var c Claims
	token, err := jwt.ParseWithClaims(credential, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid || c.ID == "" {
		return Identity{}, false
	}
	return Identity{ID: c.ID, Email: c.Email, Name: c.Name}, true
}

// Issue signs a token for id that expires after ttl.
func (v HMACVerifier) Issue(id Identity, ttl time.Duration) (string, error) {
	if len(v.Secret) == 0 {
		return "", errors.New("auth: empty secret")
	}
	now := time.Now()
	c := Claims{
		ID:    id.ID,
		Email: id.Email,
		Name:  id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(v.Secret)
}

// FromRequest checks the auth cookie, then a bearer header. Anything unverifiable is anonymous.
func FromRequest(r *http.Request, v Verifier) Identity {
	if v == nil {
		return Anonymous
	}
	for _, cred := range credentials(r) {
		if id, ok := v.Verify(r.Context(), cred); ok {
			return id
		}
	}
	return Anonymous
}

func credentials(r *http.Request) []string {
	var out []string
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		out = append(out, c.Value)
	}
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		out = append(out, parts[1])
	}
	return out
}
