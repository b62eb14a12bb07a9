package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/VeritasFi/aegis/internal/config"
)

func authTestRouter(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RoleAuthMiddleware(cfg))
	r.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"role": Role(c)})
	})
	r.POST("/oracle-only", RequireRoles(RoleOracle), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestRoleResolution(t *testing.T) {
	cfg := &config.Config{}
	cfg.Auth.RequireRoleKey = true
	cfg.Auth.OracleKey = "oracle-secret"
	cfg.Auth.KeeperKey = "keeper-secret"
	r := authTestRouter(cfg)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(HeaderRoleKey, "oracle-secret")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"role":"oracle"`)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(HeaderRoleKey, "wrong")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code, "missing key must fail when required")
}

func TestRoleGating(t *testing.T) {
	cfg := &config.Config{}
	cfg.Auth.RequireRoleKey = true
	cfg.Auth.OracleKey = "oracle-secret"
	cfg.Auth.KeeperKey = "keeper-secret"
	cfg.Auth.AdminKey = "admin-secret"
	r := authTestRouter(cfg)

	// keeper cannot hit an oracle-only route
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/oracle-only", nil)
	req.Header.Set(HeaderRoleKey, "keeper-secret")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/oracle-only", nil)
	req.Header.Set(HeaderRoleKey, "oracle-secret")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// admin passes every gate
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/oracle-only", nil)
	req.Header.Set(HeaderRoleKey, "admin-secret")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDevModeDefaultsToAdmin(t *testing.T) {
	cfg := &config.Config{}
	cfg.Auth.RequireRoleKey = false
	r := authTestRouter(cfg)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"role":"admin"`)
}
