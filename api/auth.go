/*
auth.go - PIN login, JWT sessions and role checks

PURPOSE:
  Users log in with their id and a numeric PIN (bcrypt hash in the users
  table) and receive an HS256 token. Every other API route requires the
  token; the claims become the ledger.Actor passed to the services.

ROLES:
  RequireRole is a coarse gate on route groups. The services still check
  the actor themselves, so a route without RequireRole is not a hole.

SEE ALSO:
  - cmd/seeduser: Creates users with hashed PINs
  - server.go: Where the middleware is mounted
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/warp/lavadero/ledger"
	"golang.org/x/crypto/bcrypt"
)

// Claims are the custom claims embedded in every access token.
type Claims struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) Actor() ledger.Actor {
	return ledger.Actor{ID: ledger.UserID(c.UserID), Name: c.Name, Role: ledger.Role(c.Role)}
}

// Auth issues and verifies session tokens.
type Auth struct {
	users  ledger.UserStore
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuth(users ledger.UserStore, secret string, ttl time.Duration) *Auth {
	return &Auth{users: users, secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Login checks the PIN of an active user and returns a signed token.
func (a *Auth) Login(ctx context.Context, id ledger.UserID, pin string) (string, time.Time, *ledger.User, error) {
	u, err := a.users.GetUser(ctx, id)
	if err != nil {
		return "", time.Time{}, nil, fmt.Errorf("load user: %w", err)
	}
	if u == nil || !u.Active {
		return "", time.Time{}, nil, ledger.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PinHash), []byte(pin)); err != nil {
		return "", time.Time{}, nil, ledger.ErrInvalidCredentials
	}

	token, exp, err := a.Issue(u.Actor())
	if err != nil {
		return "", time.Time{}, nil, err
	}
	return token, exp, u, nil
}

// Issue signs a token for actor.
func (a *Auth) Issue(actor ledger.Actor) (string, time.Time, error) {
	now := a.now()
	exp := now.Add(a.ttl)
	claims := &Claims{
		UserID: string(actor.ID),
		Name:   actor.Name,
		Role:   string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(actor.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Parse validates a token and returns its claims.
func (a *Auth) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, err
	}
	if !parsed.Valid || !ledger.Role(claims.Role).Valid() {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

type actorKey struct{}

// Middleware rejects requests without a valid Bearer token.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "Authentication required", nil)
			return
		}
		claims, err := a.Parse(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token", nil)
			return
		}
		ctx := context.WithValue(r.Context(), actorKey{}, claims.Actor())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects requests whose actor role is not in roles.
func RequireRole(roles ...ledger.Role) func(http.Handler) http.Handler {
	allowed := make(map[ledger.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFrom(r.Context())
			if !ok || !allowed[actor.Role] {
				writeError(w, http.StatusForbidden, "Insufficient permissions", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ActorFrom returns the session actor set by Middleware.
func ActorFrom(ctx context.Context) (ledger.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(ledger.Actor)
	return actor, ok
}

// HashPIN returns the bcrypt hash stored for a PIN.
func HashPIN(pin string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), 12)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
