package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestParseActorExtractsClaims(t *testing.T) {
	v := New("secret")
	token := signToken(t, "secret", jwt.MapClaims{
		"user_id": float64(42), "username": "editor1", "exp": time.Now().Add(time.Hour).Unix(),
	})

	actor, err := v.ParseActor(token)
	require.NoError(t, err)
	require.Equal(t, 42, actor.UserID)
	require.Equal(t, "editor1", actor.Username)
}

func TestParseActorRejectsWrongSecret(t *testing.T) {
	v := New("secret")
	token := signToken(t, "other-secret", jwt.MapClaims{"user_id": float64(1), "exp": time.Now().Add(time.Hour).Unix()})

	_, err := v.ParseActor(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddlewareAttachesActor(t *testing.T) {
	v := New("secret")
	token := signToken(t, "secret", jwt.MapClaims{"user_id": float64(7), "username": "chief", "exp": time.Now().Add(time.Hour).Unix()})

	var gotOK bool
	var gotActor Actor
	handler := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotActor, gotOK = ActorFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.True(t, gotOK)
	require.Equal(t, 7, gotActor.UserID)
	require.Equal(t, "chief", gotActor.Username)
}

func TestMiddlewarePassesThroughWithoutToken(t *testing.T) {
	v := New("secret")
	var gotOK bool
	handler := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, gotOK = ActorFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.False(t, gotOK)
}
