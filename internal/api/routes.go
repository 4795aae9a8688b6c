package api

import (
	"net/http" // HTTP status codes
	"time"     // CORS preflight cache

	"pharmacy_system/internal/cart"       // Redis carts
	"pharmacy_system/internal/config"     // Application configuration
	"pharmacy_system/internal/metrics"    // Prometheus collectors
	"pharmacy_system/internal/middleware" // Auth and metrics middleware
	"pharmacy_system/internal/notify"     // Auth emails
	"pharmacy_system/internal/storage"    // Upload storage
	"pharmacy_system/internal/workflow"   // Order and prescription workflows

	"github.com/gin-contrib/cors"                             // CORS middleware
	"github.com/gin-contrib/gzip"                             // Response compression
	"github.com/gin-gonic/gin"                                // Gin web framework
	"github.com/prometheus/client_golang/prometheus/promhttp" // Metrics endpoint
	"github.com/redis/go-redis/v9"                            // Redis client
	"gorm.io/gorm"                                            // GORM ORM library
)

// Deps are the shared services handed to the handlers
type Deps struct {
	DB       *gorm.DB          // Database
	Redis    *redis.Client     // Catalog cache
	Carts    *cart.Store       // Shopping carts
	Workflow *workflow.Service // Checkout and status workflows
	Store    storage.Store     // Uploaded files
	Mailer   notify.Sender     // Synchronous auth mail
	Metrics  *metrics.Manager  // Prometheus collectors, may be nil
	Config   *config.Config    // Application configuration
}

// ConfigRoutes registers middleware and every route on the router
func ConfigRoutes(router *gin.Engine, d Deps) {
	router.Use(cors.New(cors.Config{
		AllowOrigins:     d.Config.CORSOrigins,                                          // Browser front ends
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},  // Allowed verbs
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"}, // Allowed headers
		AllowCredentials: true,                                                          // Allow cookies
		MaxAge:           12 * time.Hour,                                                // Preflight cache
	}))
	router.Use(gzip.Gzip(gzip.BestSpeed))               // Gzip Compression
	router.Use(middleware.MetricsMiddleware(d.Metrics)) // Request latency

	if d.Metrics != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{})))
	}
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	secret := d.Config.JWTSecret // JWT signing key

	// Auth routes
	auth := router.Group("/auth")
	{
		auth.POST("/register", RegisterHandler(d.DB, d.Redis, d.Mailer, d.Config.AuthOTPTTL))
		auth.POST("/verify", VerifyRegistrationHandler(d.DB, d.Redis))
		auth.POST("/login", LoginHandler(d.DB, secret))
		auth.POST("/forgot-password", ForgotPasswordHandler(d.DB, d.Mailer, d.Config.AuthOTPTTL))
		auth.POST("/verify-reset", VerifyResetHandler(d.DB, d.Redis, secret))
		auth.POST("/reset-password", middleware.ResetTokenMiddleware(secret), ResetPasswordHandler(d.DB, d.Redis))
	}

	// Public catalog
	router.GET("/medicines", ListMedicinesHandler(d.DB, d.Redis))
	router.GET("/medicines/:id", GetMedicineHandler(d.DB))
	router.GET("/categories/:category", CategoryHandler(d.DB, d.Redis))
	router.GET("/offers", ListOffersHandler(d.DB, d.Redis))

	// Customer routes (protected by JWT)
	user := router.Group("")
	user.Use(middleware.JWTAuthMiddleware(secret), middleware.CustomerMiddleware(d.DB))
	{
		user.GET("/cart", GetCartHandler(d.DB, d.Carts))
		user.POST("/cart", AddToCartHandler(d.DB, d.Carts))
		user.PUT("/cart/:medicine_id", UpdateCartItemHandler(d.Carts))
		user.DELETE("/cart/:medicine_id", RemoveCartItemHandler(d.Carts))
		user.DELETE("/cart", ClearCartHandler(d.Carts))
		user.POST("/checkout", CheckoutHandler(d.Workflow, d.Store))
		user.GET("/my/orders", MyOrdersHandler(d.Workflow))
		user.POST("/prescriptions", UploadPrescriptionHandler(d.Workflow, d.Store))
	}

	// Doctor routes
	doctor := router.Group("/doctor")
	doctor.Use(middleware.JWTAuthMiddleware(secret), middleware.DoctorOnlyMiddleware(d.DB))
	{
		doctor.GET("/prescriptions", DoctorDashboardHandler(d.Workflow))
		doctor.POST("/prescriptions/:id/approve", DoctorApproveHandler(d.Workflow))
		doctor.POST("/prescriptions/:id/reject", DoctorRejectHandler(d.Workflow))
	}

	// Admin routes (protected, admin only)
	admin := router.Group("/admin")
	admin.Use(middleware.JWTAuthMiddleware(secret), middleware.AdminOnlyMiddleware(d.DB))
	{
		admin.GET("/dashboard", DashboardHandler(d.DB))
		admin.GET("/users", ListUsersHandler(d.DB, d.Redis))

		admin.POST("/medicines", CreateMedicineHandler(d.DB, d.Redis))
		admin.PUT("/medicines/:id", UpdateMedicineHandler(d.DB, d.Redis))
		admin.DELETE("/medicines/:id", DeleteMedicineHandler(d.DB, d.Redis))
		admin.POST("/medicines/bulk-delete", BulkDeleteMedicinesHandler(d.DB, d.Redis))
		admin.POST("/medicines/:id/image", UploadMedicineImageHandler(d.DB, d.Redis, d.Store))
		admin.GET("/medicines/export", ExportMedicinesHandler(d.DB))

		admin.POST("/offers", CreateOfferHandler(d.DB, d.Redis))
		admin.PUT("/offers/:id", UpdateOfferHandler(d.DB, d.Redis))
		admin.DELETE("/offers/:id", DeleteOfferHandler(d.DB, d.Redis))

		admin.GET("/orders", ListOrdersHandler(d.DB))
		admin.PUT("/orders/:id/status", UpdateOrderStatusHandler(d.Workflow))
		admin.POST("/orders/:id/confirm-otp", ConfirmOrderOTPHandler(d.Workflow))

		admin.GET("/prescriptions", ListPrescriptionsHandler(d.DB))
		admin.POST("/prescriptions", CreatePrescriptionHandler(d.Workflow))
		admin.GET("/prescriptions/queue", PrescriptionQueueHandler(d.Workflow))
		admin.GET("/prescriptions/export", ExportPrescriptionsHandler(d.DB))
		admin.POST("/prescriptions/:id/review", ReviewPrescriptionHandler(d.Workflow))
		admin.PUT("/prescriptions/:id/status", UpdatePrescriptionStatusHandler(d.Workflow))
		admin.POST("/prescriptions/:id/confirm-otp", ConfirmPrescriptionOTPHandler(d.Workflow))
	}
}
