package httpgin

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/amparena/internal/auth"
	redisrepo "github.com/kirinyoku/amparena/internal/repository/redis"
	"github.com/kirinyoku/amparena/internal/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Options carries the optional pieces of the HTTP surface. Idempotency and
// Activity are nil when Redis is not configured.
type Options struct {
	Auth           *auth.Manager
	Idempotency    *redisrepo.IdempotencyStore
	Activity       *redisrepo.ActivityPubSub
	PublishableKey string
	// UploadsDir is served at UploadsPath when both are set.
	UploadsDir  string
	UploadsPath string
}

func NewRouter(
	svcs *service.Services,
	opts Options,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS(), MetricsMiddleware())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if opts.UploadsDir != "" && opts.UploadsPath != "" {
		r.Static(opts.UploadsPath, opts.UploadsDir)
	}

	api := r.Group("/api")

	// Public API
	api.GET("/stripe/config", handleStripeConfig(opts.PublishableKey))
	api.POST("/stripe/webhook", handleStripeWebhook(svcs, logger))

	api.POST("/tickets/purchase", handleCreateIntent(svcs))
	api.POST("/tickets/confirm", handleConfirmPurchase(svcs, opts.Idempotency))
	api.POST("/tickets/retrieve", handleRetrieveTickets(svcs))
	api.GET("/tickets/count", handleTicketCount(svcs))

	api.POST("/signup", handleSignup(svcs))
	api.GET("/count", handleSignupCount(svcs))

	api.POST("/competitors", handleRegisterCompetitor(svcs))
	api.GET("/competitors/:id", handleGetCompetitor(svcs))
	api.POST("/competitors/:id/upload", handleUploadFiles(svcs))

	api.POST("/admin/auth", handleAdminAuth(opts.Auth))

	// Admin API, tickets dashboard
	admin := api.Group("/admin", RequireRole(opts.Auth, auth.RoleTickets))
	{
		admin.GET("/tickets", handleListTickets(svcs))
		admin.POST("/tickets/:code/cancel", handleCancelTicket(svcs))
		admin.POST("/tickets/:code/resend", handleResendTicket(svcs))
		admin.GET("/signups", handleListSignups(svcs))
		admin.POST("/signups/notify", handleNotifySignups(svcs))
		admin.GET("/stream", handleActivityStream(opts.Activity))
	}

	// Admin API, competitors dashboard
	compAdmin := api.Group("/competitors", RequireRole(opts.Auth, auth.RoleCompetitors))
	{
		compAdmin.GET("", handleListCompetitors(svcs))
		compAdmin.PUT("/:id", handleUpdateCompetitor(svcs))
		compAdmin.DELETE("/:id", handleDeleteCompetitor(svcs))
	}

	return r
}

// --- Helpers ---

func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || v <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
