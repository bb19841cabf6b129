package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"gestentre/internal/models"
	"gestentre/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	userKey      = "user"
	requestIDKey = "request_id"

	requestIDHeader = "X-Request-ID"
)

type ctxKey struct{}

// UserFromContext returns the user the auth middleware resolved for this request.
func UserFromContext(ctx context.Context) (models.AuthUser, bool) {
	u, ok := ctx.Value(ctxKey{}).(models.AuthUser)
	return u, ok
}

// CurrentUser is the gin flavour of UserFromContext.
func CurrentUser(c *gin.Context) (models.AuthUser, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return models.AuthUser{}, false
	}
	u, ok := v.(models.AuthUser)
	return u, ok
}

// bearerToken returns "" unless the header is "Bearer <token>" with a non-empty token.
func bearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// AuthMiddleware rejects the request unless it carries a valid token for a
// user that is active right now. The user is looked up on every request.
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			h.metrics.AuthRejected("missing_token")
			newErrorResponse(c, http.StatusUnauthorized, service.MsgTokenRequired)

			return
		}

		user, err := h.serviceLayer.Authenticate(c.Request.Context(), token)
		if err != nil {
			h.metrics.AuthRejected(service.KindOf(err).String())

			status, msg := statusFor(err)
			newErrorResponse(c, status, msg)

			return
		}

		c.Set(userKey, user)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), ctxKey{}, user))

		c.Next()
	}
}

// LoginRateLimit shares one token bucket across all login attempts.
func LoginRateLimit(limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow() {
			newErrorResponse(c, http.StatusTooManyRequests, "too many login attempts, try again later")

			return
		}

		c.Next()
	}
}

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)

		c.Next()
	}
}

func (h *Handler) RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		status := c.Writer.Status()

		h.metrics.ObserveRequest(c.Request.Method, route, status, elapsed)

		h.log.Info("request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", status),
			slog.Duration("latency", elapsed),
			slog.String("request_id", c.GetString(requestIDKey)),
		)
	}
}

func (h *Handler) Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		h.log.Error("panic in handler",
			slog.Any("panic", recovered),
			slog.String("path", c.Request.URL.Path),
			slog.String("request_id", c.GetString(requestIDKey)),
		)

		newErrorResponse(c, http.StatusInternalServerError, service.MsgInternal)
	})
}

func CORS(origins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", requestIDHeader},
		ExposeHeaders:    []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
