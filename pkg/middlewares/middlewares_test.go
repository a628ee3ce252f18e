package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatline/pkg/consts"
	"chatline/utilities/jwt"
)

func newTestRouter(m *Middlewares) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/protected", m.ValidateToken, func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"handle": ctx.GetString(consts.UserHandle)})
	})
	return router
}

func TestValidateTokenAcceptsValidToken(t *testing.T) {
	m := NewMiddlewares()
	router := newTestRouter(m)

	token, _, err := jwt.GenerateJWT("alice", "user", "uuid-1", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-USER-HANDLE", "alice")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alice")

	// second request is served from the token cache
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestValidateTokenRejectsMissingHeaders(t *testing.T) {
	m := NewMiddlewares()
	router := newTestRouter(m)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer sometoken")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestValidateTokenRejectsWrongHandle(t *testing.T) {
	m := NewMiddlewares()
	router := newTestRouter(m)

	token, _, err := jwt.GenerateJWT("alice", "user", "uuid-1", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-USER-HANDLE", "mallory")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
