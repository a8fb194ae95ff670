package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alovak/mini-authorizer/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBasicAuth(t *testing.T) {
	creds, err := middleware.NewCredentials("username", "password", bcrypt.MinCost)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(middleware.BasicAuth("authorizer", creds))
	r.Get("/", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	t.Run("valid credentials", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.SetBasicAuth("username", "password")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("wrong password", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.SetBasicAuth("username", "invalidPassword")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusUnauthorized, w.Code)
		require.Contains(t, w.Header().Get("WWW-Authenticate"), "Basic")
	})

	t.Run("wrong user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.SetBasicAuth("invalidUser", "password")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("no credentials", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestNewCredentials_RequiresBoth(t *testing.T) {
	_, err := middleware.NewCredentials("", "password", bcrypt.MinCost)
	require.Error(t, err)
	_, err = middleware.NewCredentials("username", "", bcrypt.MinCost)
	require.Error(t, err)
}
