package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/skymarket/skymarket-backend/internal/models"
	"github.com/skymarket/skymarket-backend/pkg/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupAuthRouter(jwtService *jwt.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/protected", AuthMiddleware(jwtService), func(c *gin.Context) {
		userCtx := MustGetUserContext(c)
		c.JSON(http.StatusOK, models.DataEnvelope(gin.H{"user_id": userCtx.UserID}))
	})
	router.GET("/admin", AuthMiddleware(jwtService), RequireRole("admin"), func(c *gin.Context) {
		c.JSON(http.StatusOK, models.DataEnvelope(gin.H{"ok": true}))
	})
	return router
}

func decodeErrorEnvelope(t *testing.T, w *httptest.ResponseRecorder) *models.APIError {
	t.Helper()
	var envelope models.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope.Error
}

func TestAuthMiddleware(t *testing.T) {
	jwtService := jwt.NewService("test-secret", "test-refresh-secret", 1*time.Hour, 7*24*time.Hour)
	router := setupAuthRouter(jwtService)

	t.Run("Missing header", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		apiErr := decodeErrorEnvelope(t, w)
		require.NotNil(t, apiErr)
		assert.Equal(t, models.ErrAuthenticationRequired, apiErr.Code)
	})

	t.Run("Malformed header", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Token abc123")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		apiErr := decodeErrorEnvelope(t, w)
		require.NotNil(t, apiErr)
		assert.Equal(t, models.ErrAuthenticationRequired, apiErr.Code)
	})

	t.Run("Invalid token", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer not-a-real-token")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Expired token", func(t *testing.T) {
		expiredService := jwt.NewService("test-secret", "test-refresh-secret", -1*time.Minute, 7*24*time.Hour)
		token, err := expiredService.GenerateAccessToken(uuid.New(), "user@example.com", "consumer")
		require.NoError(t, err)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		apiErr := decodeErrorEnvelope(t, w)
		require.NotNil(t, apiErr)
		assert.Contains(t, apiErr.Message, "expired")
	})

	t.Run("Valid token", func(t *testing.T) {
		token, err := jwtService.GenerateAccessToken(uuid.New(), "user@example.com", "consumer")
		require.NoError(t, err)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRequireRole(t *testing.T) {
	jwtService := jwt.NewService("test-secret", "test-refresh-secret", 1*time.Hour, 7*24*time.Hour)
	router := setupAuthRouter(jwtService)

	t.Run("Role denied", func(t *testing.T) {
		token, err := jwtService.GenerateAccessToken(uuid.New(), "user@example.com", "consumer")
		require.NoError(t, err)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
		apiErr := decodeErrorEnvelope(t, w)
		require.NotNil(t, apiErr)
		assert.Equal(t, models.ErrAuthorizationDenied, apiErr.Code)
	})

	t.Run("Role allowed", func(t *testing.T) {
		token, err := jwtService.GenerateAccessToken(uuid.New(), "admin@example.com", "admin")
		require.NoError(t, err)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}
