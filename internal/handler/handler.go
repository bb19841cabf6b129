package handler

import (
	"log/slog"
	"net/http"
	"time"

	"gestentre/internal/metrics"
	"gestentre/internal/models"
	"gestentre/internal/service"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type Handler struct {
	serviceLayer   service.Service
	log            *slog.Logger
	metrics        *metrics.Metrics
	loginLimiter   *rate.Limiter
	allowedOrigins []string
}

type Options struct {
	LoginRate      float64
	LoginBurst     int
	AllowedOrigins []string
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User      models.AuthUser `json:"user"`
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
}

type healthResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// RouteMounter registers routes on the group that sits behind AuthMiddleware.
type RouteMounter func(protected *gin.RouterGroup)

func NewHandler(srvc service.Service, lgr *slog.Logger, m *metrics.Metrics, opts Options) *Handler {
	return &Handler{
		serviceLayer:   srvc,
		log:            lgr,
		metrics:        m,
		loginLimiter:   rate.NewLimiter(rate.Limit(opts.LoginRate), opts.LoginBurst),
		allowedOrigins: opts.AllowedOrigins,
	}
}

func (h *Handler) InitRoutes(mounts ...RouteMounter) *gin.Engine {
	router := gin.New()

	router.Use(RequestID(), h.RequestLogger(), h.Recovery())
	if len(h.allowedOrigins) > 0 {
		router.Use(CORS(h.allowedOrigins))
	}

	router.NoRoute(func(c *gin.Context) {
		newErrorResponse(c, http.StatusNotFound, "route not found")
	})

	router.GET("/metrics", gin.WrapH(h.metrics.Handler()))

	api := router.Group("/api")
	api.GET("/health", h.Health)

	auth := api.Group("/auth")
	{
		auth.POST("/login", LoginRateLimit(h.loginLimiter), h.Login)
	}

	protected := api.Group("")
	protected.Use(h.AuthMiddleware())
	{
		protected.GET("/auth/me", h.Me)
		protected.POST("/auth/logout", h.Logout)
	}
	for _, mount := range mounts {
		mount(protected)
	}

	return router
}

// POST /api/auth/login
func (h *Handler) Login(c *gin.Context) {
	const op = "handler.Login"

	log := h.log.With(slog.String("op", op))

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debug("failed to unmarshal login request", slog.Any("error", err))

		h.metrics.LoginOutcome("invalid_request")
		newErrorResponse(c, http.StatusBadRequest, service.MsgCredentialsRequired)

		return
	}

	result, err := h.serviceLayer.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		// the service has already logged server-side failures
		h.metrics.LoginOutcome(service.KindOf(err).String())
		status, msg := statusFor(err)
		newErrorResponse(c, status, msg)

		return
	}

	h.metrics.LoginOutcome("success")

	newSuccessResponse(c, loginResponse{
		User:      result.User,
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
	}, "login successful")
}

// GET /api/auth/me
func (h *Handler) Me(c *gin.Context) {
	const op = "handler.Me"

	user, ok := CurrentUser(c)
	if !ok {
		h.log.Error("no user in context", slog.String("op", op))

		newErrorResponse(c, http.StatusInternalServerError, service.MsgInternal)

		return
	}

	newSuccessResponse(c, user, "")
}

// POST /api/auth/logout
//
// Tokens are not tracked server-side, so there is nothing to invalidate: the
// client drops its token and it stays valid until it expires.
func (h *Handler) Logout(c *gin.Context) {
	const op = "handler.Logout"

	if user, ok := CurrentUser(c); ok {
		h.log.Info("user logout", slog.String("op", op), slog.Any("user_id", user.ID))
	}

	newSuccessResponse(c, nil, "logout successful")
}

// GET /api/health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{
		Success:   true,
		Message:   "gestentre API is up",
		Timestamp: time.Now().UTC(),
	})
}
