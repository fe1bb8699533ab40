package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhenando/maxsmile/internal/auth"
	"github.com/rhenando/maxsmile/internal/clinic"
	"github.com/rhenando/maxsmile/internal/config"
)

func newTestServer() *Server {
	return &Server{
		Cfg: &config.Config{},
		Dir: clinic.Default(),
		Log: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestGetBranches(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/branches", nil)
	rec := httptest.NewRecorder()
	s.GetBranches(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Branches []clinic.Branch `json:"branches"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Branches, 3)
	assert.Equal(t, "manila-main", resp.Branches[0].Slug)
}

func TestGetServicesCatalog(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/services", nil)
	rec := httptest.NewRecorder()
	s.GetServices(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Services []clinic.Service `json:"services"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Services, 16)
}

func TestLogoutClearsSessionCookies(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/api/admin/logout", nil)
	rec := httptest.NewRecorder()
	s.AdminLogout(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	for _, c := range cookies {
		assert.Contains(t, []string{auth.AccessCookieName, auth.RefreshCookieName}, c.Name)
		assert.Empty(t, c.Value)
		assert.Equal(t, -1, c.MaxAge)
		assert.True(t, c.HttpOnly)
	}
}

func TestAuthCookiePaths(t *testing.T) {
	rec := httptest.NewRecorder()
	setAuthCookies(rec, "access-token", "refresh-token", 15*time.Minute, time.Hour, true)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)

	byName := map[string]*http.Cookie{}
	for _, c := range cookies {
		byName[c.Name] = c
	}
	require.Contains(t, byName, auth.AccessCookieName)
	require.Contains(t, byName, auth.RefreshCookieName)

	assert.Equal(t, "/", byName[auth.AccessCookieName].Path)
	assert.Equal(t, "/api/admin", byName[auth.RefreshCookieName].Path)
	assert.True(t, byName[auth.AccessCookieName].Secure)
}
