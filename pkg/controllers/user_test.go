package controllers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatline/config"
	"chatline/pkg/middlewares"
	"chatline/pkg/repo"
	"chatline/pkg/repo/driver/store"
	"chatline/pkg/usecases"
)

func newUserTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	require.NoError(t, config.LoadDefaults())
	conf := config.GetConfig()

	db := store.NewMemoryStore()
	t.Cleanup(func() { db.Close() })

	userRepo := repo.NewUserRepo(db, conf)
	userUseCases := usecases.NewUserUseCases(conf, userRepo)

	router := gin.New()
	api := router.Group(conf.Server.APIPrefix)
	NewUserController(api, userUseCases, middlewares.NewMiddlewares()).InitRoutes()
	return router
}

func TestSignupIssuesToken(t *testing.T) {
	router := newUserTestRouter(t)

	body := `{"username":"alice","email":"alice@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/user/signup", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "token")
}

func TestSignupRejectsBadHandle(t *testing.T) {
	router := newUserTestRouter(t)

	body := `{"username":"not a handle!"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/user/signup", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSignupRejectsTakenHandle(t *testing.T) {
	router := newUserTestRouter(t)

	body := `{"username":"alice"}`
	for i, wantStatus := range []int{http.StatusOK, http.StatusConflict} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/user/signup", strings.NewReader(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, wantStatus, w.Code, "request %d: %s", i, w.Body.String())
	}
}
