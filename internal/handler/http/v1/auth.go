package v1

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shenikar/transit_pulse/internal/config"
	"github.com/sirupsen/logrus"
)

const (
	apiKeyHeader  = "X-API-Key"
	actorIDHeader = "X-Actor-ID"
	userIDHeader  = "X-User-ID"

	actorIDContextKey = "actor_id"
)

// APIKeyAuthMiddleware - middleware для аутентификации операторов по API-ключу
func APIKeyAuthMiddleware(cfg *config.Config, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader(apiKeyHeader)
		if apiKey == "" {
			// Проверяем также заголовок Authorization: Bearer
			authHeader := c.GetHeader("Authorization")
			if authHeader != "" && strings.HasPrefix(authHeader, "Bearer ") {
				apiKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if apiKey == "" {
			log.Warn("API key missing from request")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "API key required"})
			return
		}

		if !validAPIKey(cfg.APIKeys, apiKey) {
			log.WithField("path", c.FullPath()).Warn("Invalid API key provided")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Invalid API key"})
			return
		}

		c.Next()
	}
}

// ActorMiddleware требует идентификатор оператора, от имени которого меняется статус
func ActorMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := strings.TrimSpace(c.GetHeader(actorIDHeader))
		if actorID == "" {
			log.Warn("Actor ID missing from operator request")
			c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: actorIDHeader + " header required"})
			return
		}
		c.Set(actorIDContextKey, actorID)
		c.Next()
	}
}

func validAPIKey(keys []string, apiKey string) bool {
	for _, key := range keys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1 {
			return true
		}
	}
	return false
}
