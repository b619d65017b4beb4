package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/casehub/backend/internal/infrastructure/auth"
	"github.com/casehub/backend/internal/infrastructure/config"
	"github.com/casehub/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService(expiration time.Duration) *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{
		Secret:                "test-secret-key-at-least-32-bytes-long",
		Issuer:                "casehub-test",
		AccessTokenExpiration: expiration,
	})
}

func newAuthRouter(svc *auth.JWTService, extra ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), JWTAuthMiddleware(DefaultJWTConfig(svc)))
	router.Use(extra...)
	handler := func(c *gin.Context) {
		c.String(http.StatusOK, GetActorID(c).String())
	}
	router.GET("/health", handler)
	router.GET("/api/v1/ledger/invoices", handler)
	return router
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) *dto.ErrorInfo {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	return resp.Error
}

func TestJWTAuthMiddleware(t *testing.T) {
	svc := newTestJWTService(time.Hour)
	router := newAuthRouter(svc)
	userID := uuid.New()

	t.Run("valid token sets the actor", func(t *testing.T) {
		token, err := svc.GenerateAccessToken(auth.GenerateTokenInput{UserID: userID, Username: "alice"})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/ledger/invoices", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+token.Token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, userID.String(), w.Body.String())
	})

	t.Run("missing header is rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ledger/invoices", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		info := decodeError(t, w)
		assert.Equal(t, dto.ErrCodeTokenInvalid, info.Code)
		assert.NotEmpty(t, info.RequestID)
	})

	t.Run("non bearer scheme is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/ledger/invoices", nil)
		req.Header.Set(AuthHeaderKey, "Basic dXNlcjpwYXNz")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("garbage token is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/ledger/invoices", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+"not.a.token")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, dto.ErrCodeTokenInvalid, decodeError(t, w).Code)
	})

	t.Run("skip paths pass without a token", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, uuid.Nil.String(), w.Body.String())
	})
}

func TestJWTAuthMiddleware_ExpiredToken(t *testing.T) {
	svc := newTestJWTService(-time.Minute)
	router := newAuthRouter(svc)

	token, err := svc.GenerateAccessToken(auth.GenerateTokenInput{UserID: uuid.New()})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ledger/invoices", nil)
	req.Header.Set(AuthHeaderKey, BearerPrefix+token.Token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, dto.ErrCodeTokenExpired, decodeError(t, w).Code)
}

func TestRequireRole(t *testing.T) {
	svc := newTestJWTService(time.Hour)
	router := newAuthRouter(svc, RequireRole("ledger_admin"))

	call := func(roles ...string) int {
		token, err := svc.GenerateAccessToken(auth.GenerateTokenInput{UserID: uuid.New(), Roles: roles})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/ledger/invoices", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+token.Token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, call("ledger_admin"))
	assert.Equal(t, http.StatusForbidden, call("viewer"))
}

func TestHeaderActorMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(HeaderActorMiddleware(), RequireRole("ledger_admin"))
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, GetActorID(c).String())
	})

	t.Run("valid header", func(t *testing.T) {
		actor := uuid.New()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(ActorHeader, actor.String())
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, actor.String(), w.Body.String())
	})

	t.Run("invalid header is anonymous", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(ActorHeader, "bob")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, uuid.Nil.String(), w.Body.String())
	})
}
