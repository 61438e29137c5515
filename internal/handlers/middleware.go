package handlers

import (
	"crypto/subtle"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/drogue-iot/drogue-postgresql-pusher/internal/config"
	"github.com/drogue-iot/drogue-postgresql-pusher/internal/models"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	authRealm       = "drogue-postgresql-pusher"
)

// RequestID assigns every request an ID, reusing one sent by the client.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// Authenticate accepts HTTP basic credentials when a username is configured
// and a bearer token when a token is configured. Either one is enough.
func Authenticate(auth config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if auth.Username != "" {
			if user, pass, ok := c.Request.BasicAuth(); ok && equal(user, auth.Username) && equal(pass, auth.Password) {
				c.Next()
				return
			}
		}
		if auth.Token != "" {
			if given, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok && equal(given, auth.Token) {
				c.Next()
				return
			}
		}

		log.Printf("[%s] Rejected unauthenticated request from %s", requestID(c), c.ClientIP())
		if auth.Username != "" {
			c.Header("WWW-Authenticate", `Basic realm="`+authRealm+`"`)
		} else {
			c.Header("WWW-Authenticate", `Bearer realm="`+authRealm+`"`)
		}
		RespondWithError(c, http.StatusUnauthorized, models.ErrorCodeUnauthorized, "Missing or invalid credentials", nil)
	}
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
