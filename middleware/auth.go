package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/loiht2/ai-vision-portal/security"
)

const (
	// SessionCookie holds the signed session token
	SessionCookie = "access_token"

	// Context keys
	IdentityKey = "identity"
)

// SessionMiddleware reads the session cookie and, when it verifies, stores the
// identity on the request context. It never rejects a request by itself.
func SessionMiddleware(issuer *security.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(SessionCookie)
		if err == nil && token != "" {
			if id, err := issuer.Parse(token); err == nil {
				c.Set(IdentityKey, id)
			}
		}
		c.Next()
	}
}

// RequireUser redirects anonymous page requests to /login
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetIdentity(c); !ok {
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireUserJSON answers 401 to anonymous API requests
func RequireUserJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetIdentity(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}
		c.Next()
	}
}

// GetIdentity retrieves the authenticated identity from Gin context
func GetIdentity(c *gin.Context) (security.Identity, bool) {
	v, exists := c.Get(IdentityKey)
	if !exists {
		return security.Identity{}, false
	}
	id, ok := v.(security.Identity)
	return id, ok
}

// SetSession issues a token for the identity and stores it in the session cookie
func SetSession(c *gin.Context, issuer *security.TokenIssuer, id security.Identity) error {
	token, err := issuer.Issue(id)
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, token, int(issuer.TTL()/time.Second), "/", "", false, true)
	return nil
}

// ClearSession removes the session cookie
func ClearSession(c *gin.Context) {
	c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
}

// CORSMiddleware allows the configured origins to call the JSON endpoints with credentials
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	for _, o := range allowedOrigins {
		if strings.TrimSpace(o) == "*" {
			// wildcard cannot be combined with credentials, reflect the origin instead
			cfg.AllowOriginFunc = func(string) bool { return true }
			return cors.New(cfg)
		}
	}
	cfg.AllowOrigins = allowedOrigins
	if len(cfg.AllowOrigins) == 0 {
		cfg.AllowOriginFunc = func(string) bool { return false }
	}
	return cors.New(cfg)
}
