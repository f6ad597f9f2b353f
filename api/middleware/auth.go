package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/webpeel/webpeel/config"
	"github.com/webpeel/webpeel/models"
)

// ContextKeyIdentity is the gin context key holding the caller identity
// (API key or JWT subject).
const ContextKeyIdentity = "identity"

// Auth validates either an API key (Authorization: Bearer wp_<key> or
// X-API-Key) or a session JWT signed with the configured secret.
func Auth(cfg config.AuthConfig) gin.HandlerFunc {
	keys := make(map[string]struct{}, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		keys[k] = struct{}{}
	}

	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.Set(ContextKeyIdentity, "anonymous")
			c.Next()
			return
		}

		token := c.GetHeader("X-API-Key")
		if token == "" {
			token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}
		token = strings.TrimSpace(token)
		if token == "" {
			abortAuth(c, "missing API key or token")
			return
		}

		if strings.HasPrefix(token, "wp_") {
			if _, ok := keys[token]; ok {
				c.Set(ContextKeyIdentity, token)
				c.Next()
				return
			}
			abortAuth(c, "invalid API key")
			return
		}

		if cfg.JWTSecret != "" {
			if sub, ok := verifyJWT(token, cfg.JWTSecret); ok {
				c.Set(ContextKeyIdentity, "jwt:"+sub)
				c.Next()
				return
			}
		}
		abortAuth(c, "invalid credentials")
	}
}

func verifyJWT(token, secret string) (string, bool) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		return "", false
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", false
	}
	return sub, true
}

func abortAuth(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorDetail{
		Code:      models.ErrCodeAuth,
		Message:   message,
		RequestID: GetRequestID(c),
	})
}

// Identity returns the caller identity set by Auth.
func Identity(c *gin.Context) string {
	if id, ok := c.Get(ContextKeyIdentity); ok {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return "anonymous"
}
