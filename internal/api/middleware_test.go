package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chatvault-backend/internal/auth"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func protectedEcho(t *testing.T, gotClientID *uuid.UUID) http.Handler {
	t.Helper()
	mw := JwtAuthMiddleware(testSecret)
	return mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.GetClientIDFromContext(r.Context())
		require.True(t, ok)
		*gotClientID = id
		w.WriteHeader(http.StatusOK)
	}))
}

func TestJwtAuthMiddlewareAcceptsValidToken(t *testing.T) {
	clientID := uuid.New()
	token, err := auth.NewAccessToken(clientID, testSecret, time.Hour)
	require.NoError(t, err)

	var got uuid.UUID
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/conversations", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	protectedEcho(t, &got).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, clientID, got)
}

func TestJwtAuthMiddlewareRejectsMissingHeader(t *testing.T) {
	var got uuid.UUID
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/conversations", nil)

	protectedEcho(t, &got).ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestJwtAuthMiddlewareRejectsMalformedHeader(t *testing.T) {
	var got uuid.UUID
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/conversations", nil)
	req.Header.Set("Authorization", "Token abc")

	protectedEcho(t, &got).ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestJwtAuthMiddlewareRejectsExpiredToken(t *testing.T) {
	token, err := auth.NewAccessToken(uuid.New(), testSecret, -time.Hour)
	require.NoError(t, err)

	var got uuid.UUID
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/conversations", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	protectedEcho(t, &got).ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Contains(t, rr.Body.String(), "expired")
}

func TestJwtAuthMiddlewareRejectsWrongSecret(t *testing.T) {
	token, err := auth.NewAccessToken(uuid.New(), "other-secret", time.Hour)
	require.NoError(t, err)

	var got uuid.UUID
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/conversations", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	protectedEcho(t, &got).ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}
