package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const ctxUserID = "userId"

var (
	errNoAuthHeader  = errors.New("missing Authorization header")
	errBadAuthHeader = errors.New("invalid Authorization header format")
)

// bearerToken extracts the token from "Authorization: Bearer <token>".
// present is false when the header is absent.
func bearerToken(c *gin.Context) (token string, present bool, err error) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		return "", false, errNoAuthHeader
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", true, errBadAuthHeader
	}
	return token, true, nil
}

// userIdMiddleware rejects requests without a valid operator token and stores
// the operator id under ctxUserID.
func (h *Handler) userIdMiddleware(c *gin.Context) {
	token, _, err := bearerToken(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	userID, err := h.services.ParseToken(token)
	if err != nil {
		if h.log != nil {
			h.log.Debugw("auth_token_rejected", "path", c.Request.URL.Path, "err", err)
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}
	c.Set(ctxUserID, userID)
	c.Next()
}

// requestLogger writes one structured line per request. Health probes and
// swagger assets are logged at debug.
func (h *Handler) requestLogger(c *gin.Context) {
	start := time.Now()
	c.Next()
	if h.log == nil {
		return
	}

	path := c.Request.URL.Path
	kv := []interface{}{
		"method", c.Request.Method,
		"path", path,
		"status", c.Writer.Status(),
		"latency", time.Since(start),
	}
	if uid, ok := c.Get(ctxUserID); ok {
		kv = append(kv, "user_id", uid)
	}
	if path == "/health" || strings.HasPrefix(path, "/swagger/") {
		h.log.Debugw("http_request", kv...)
		return
	}
	h.log.Infow("http_request", kv...)
}
