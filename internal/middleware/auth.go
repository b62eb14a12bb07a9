package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/VeritasFi/aegis/internal/config"
)

const (
	HeaderRoleKey  = "X-Role-Key"
	ContextRoleKey = "role"
)

// Protocol roles as resolved from API keys. Read endpoints are open; every
// mutating route declares the roles allowed to call it.
const (
	RoleIssuer = "issuer"
	RoleOracle = "oracle"
	RoleKeeper = "keeper"
	RoleAdmin  = "admin"
	RoleVault  = "vault"
)

// RoleAuthMiddleware resolves the caller's role from the static key table.
// With require_role_key disabled and no header present the request proceeds
// as admin, which keeps local development usable.
func RoleAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	keys := map[string]string{}
	for role, key := range map[string]string{
		RoleIssuer: cfg.Auth.IssuerKey,
		RoleOracle: cfg.Auth.OracleKey,
		RoleKeeper: cfg.Auth.KeeperKey,
		RoleAdmin:  cfg.Auth.AdminKey,
		RoleVault:  cfg.Auth.VaultKey,
	} {
		if key != "" {
			keys[key] = role
		}
	}

	return func(c *gin.Context) {
		apiKey := c.GetHeader(HeaderRoleKey)
		if apiKey == "" {
			if !cfg.Auth.RequireRoleKey {
				c.Set(ContextRoleKey, RoleAdmin)
				c.Next()
				return
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing role key"})
			c.Abort()
			return
		}

		role, ok := keys[apiKey]
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid role key"})
			c.Abort()
			return
		}
		c.Set(ContextRoleKey, role)
		c.Next()
	}
}

// RequireRoles guards a route group against callers without one of the named
// roles. Admin always passes.
func RequireRoles(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles)+1)
	allowed[RoleAdmin] = true
	for _, r := range roles {
		allowed[r] = true
	}

	return func(c *gin.Context) {
		role := Role(c)
		if role == "" || !allowed[role] {
			c.JSON(http.StatusForbidden, gin.H{"error": "role not permitted for this operation", "role": role})
			c.Abort()
			return
		}
		c.Next()
	}
}

// Role returns the caller's resolved role, empty when unauthenticated.
func Role(c *gin.Context) string {
	if v, ok := c.Get(ContextRoleKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
