// Package auth provides pass-through identity extraction: it verifies a
// bearer JWT issued by an external identity provider and attaches the
// actor's id/username to context.Context for the rest of the core to read.
// No role-based access control is implemented here — the spec's Non-goals
// exclude RBAC beyond this pass-through identity.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Actor is the identity carried through context.Context for one request.
type Actor struct {
	UserID   int
	Username string
}

type contextKey string

const actorContextKey contextKey = "editorial_core_actor"

var (
	ErrMissingToken = errors.New("auth: missing bearer token")
	ErrInvalidToken = errors.New("auth: invalid or expired token")
)

// Verifier validates bearer tokens and extracts the caller's identity.
type Verifier struct {
	secret []byte
}

// New constructs a Verifier from the configured JWT secret.
func New(jwtSecret string) *Verifier {
	if jwtSecret == "" {
		jwtSecret = "development-secret-key-change-in-production"
	}
	return &Verifier{secret: []byte(jwtSecret)}
}

// ParseActor verifies tokenString and extracts the Actor claims
// (user_id, username) without consulting any local user store — the
// token itself is the source of truth for identity.
func (v *Verifier) ParseActor(tokenString string) (Actor, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return Actor{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Actor{}, ErrInvalidToken
	}

	actor := Actor{}
	if id, ok := claims["user_id"].(float64); ok {
		actor.UserID = int(id)
	}
	if username, ok := claims["username"].(string); ok {
		actor.Username = username
	}
	return actor, nil
}

// Middleware extracts the "Authorization: Bearer <token>" header, verifies
// it, and attaches the resulting Actor to the request context. Requests
// without a valid token proceed with an empty Actor rather than being
// rejected — routes that require an authenticated actor check
// ActorFromContext themselves, keeping authorization decisions out of this
// package.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			next.ServeHTTP(w, r)
			return
		}

		actor, err := v.ParseActor(token)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := WithActor(r.Context(), actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithActor returns a copy of ctx carrying actor.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}

// ActorFromContext retrieves the Actor attached by Middleware, if any.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey).(Actor)
	return actor, ok
}
