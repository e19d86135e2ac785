// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/pedalgo/pedalgo-backend/internal/bookingnum"
	"github.com/pedalgo/pedalgo-backend/internal/config"
	"github.com/pedalgo/pedalgo-backend/internal/database"
	"github.com/pedalgo/pedalgo-backend/internal/gateway"
	"github.com/pedalgo/pedalgo-backend/internal/handlers"
	"github.com/pedalgo/pedalgo-backend/internal/middleware"
	"github.com/pedalgo/pedalgo-backend/internal/services"
	"github.com/pedalgo/pedalgo-backend/internal/utils"
)

// Dependencies carries the process-lifetime resources the router wires
// into services. The notification service is constructed by the caller so
// its worker can be shut down after the HTTP server drains.
type Dependencies struct {
	DB            *gorm.DB
	Redis         *redis.Client
	Notifications *services.NotificationService
}

// Initialize wires services, handlers and routes. The payment service is
// returned alongside the engine so the caller can run the stale-session
// sweeper against the same instance the webhook handler uses.
func Initialize(cfg *config.Config, deps Dependencies) (*gin.Engine, *services.PaymentService) {
	db := deps.DB

	// Initialize services
	catalogService := services.NewCatalogService(db)
	numberGenerator := bookingnum.NewRedisGenerator(deps.Redis)
	bookingService := services.NewBookingService(db, cfg, catalogService, catalogService, numberGenerator, deps.Notifications)
	settlementService := services.NewSettlementService(db, services.NewRevenuePolicy(cfg.Settlement))
	stripeGateway := gateway.NewStripeGateway(cfg)
	paymentService := services.NewPaymentService(db, cfg, stripeGateway, bookingService, settlementService, deps.Notifications)

	// Initialize handlers
	bookingHandler := handlers.NewBookingHandler(bookingService)
	paymentHandler := handlers.NewPaymentHandler(paymentService)
	webhookHandler := handlers.NewWebhookHandler(stripeGateway, paymentService)
	partnerHandler := handlers.NewPartnerHandler(settlementService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	r.Use(middleware.I18nMiddleware())
	r.Use(middleware.GeneralRateLimit())
	r.Use(middleware.AuditLogMiddleware(db))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		status := "healthy"
		code := http.StatusOK
		if err := database.HealthCheck(db); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":  status,
			"version": "1.0.0",
		})
	})

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Booking routes
		bookings := v1.Group("/bookings")
		bookings.Use(middleware.AuthRequired())
		{
			bookings.POST("", middleware.BookingRateLimit(), bookingHandler.CreateBooking)
			bookings.GET("", bookingHandler.GetBookings)
			bookings.GET("/:id", bookingHandler.GetBooking)
			bookings.PUT("/:id/confirm", bookingHandler.ConfirmBooking)
			bookings.PUT("/:id/decline", bookingHandler.DeclineBooking)
			bookings.PUT("/:id/cancel", bookingHandler.CancelBooking)

			bookings.POST("/:id/payments/initial", paymentHandler.StartInitialPayment)
			bookings.POST("/:id/payments/remaining", paymentHandler.StartRemainingPayment)
		}

		// Bike availability probe for the booking form
		v1.GET("/bikes/:id/availability", middleware.OptionalAuth(), bookingHandler.CheckAvailability)

		// Payment routes
		payments := v1.Group("/payments")
		payments.Use(middleware.AuthRequired())
		{
			payments.GET("", paymentHandler.GetPaymentHistory)
			payments.GET("/:id", paymentHandler.GetPayment)
		}

		// Partner settlement routes
		partners := v1.Group("/partners")
		partners.Use(middleware.AuthRequired())
		{
			partners.GET("/:id/balance", partnerHandler.GetBalance)
			partners.GET("/:id/earnings", partnerHandler.GetEarnings)
			partners.GET("/:id/transactions", partnerHandler.GetTransactions)
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			admin.POST("/transactions/adjustments", partnerHandler.RecordAdjustment)
		}

		// Gateway callbacks: signature-verified, no JWT
		webhooks := v1.Group("/webhooks")
		webhooks.Use(middleware.WebhookRateLimit())
		{
			webhooks.POST("/stripe", webhookHandler.HandleStripeWebhook)
		}
	}

	return r, paymentService
}
