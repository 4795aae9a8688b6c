package main

import (
	"context"   // context package is needed for Redis operations and shutdown
	"errors"    // For http.ErrServerClosed
	"net/http"  // HTTP server
	"os"        // For signal handling
	"os/signal" // For graceful shutdown
	"syscall"   // For SIGTERM
	"time"      // Shutdown timeout

	"pharmacy_system/internal/api"      // Custom package for API handlers
	"pharmacy_system/internal/cart"     // Redis carts
	"pharmacy_system/internal/config"   // Custom package for configuration
	"pharmacy_system/internal/db"       // Database connection and migration
	"pharmacy_system/internal/jobs"     // Scheduled reports
	"pharmacy_system/internal/metrics"  // Prometheus collectors
	"pharmacy_system/internal/notify"   // Email delivery
	"pharmacy_system/internal/storage"  // Upload storage
	"pharmacy_system/internal/workflow" // Order and prescription workflows

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/nats-io/nats.go"   // NATS connection
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration

	// Setup logger
	if cfg.IsProd {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}

	// Connect to the database and bring the schema up to date
	database, err := db.Open(cfg)
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}
	if err := db.Migrate(database); err != nil {
		logrus.Fatalf("failed to migrate DB: %v", err)
	}

	// Setup Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr, // Redis server address
		Password: cfg.RedisPass, // Redis password
		DB:       cfg.RedisDB,   // Redis database number
	})

	// Test Redis connection
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logrus.Fatalf("failed to connect to Redis: %v", err)
	}

	// Upload storage: object storage when configured, local disk otherwise
	var store storage.Store
	if cfg.MinioEndpoint != "" {
		store, err = storage.NewS3(context.Background(), cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	} else {
		store, err = storage.NewLocal(cfg.UploadDir)
	}
	if err != nil {
		logrus.Fatalf("failed to set up upload storage: %v", err)
	}

	// Mail sender; log only when SMTP is not configured
	var mailer notify.Sender
	mailer, err = notify.NewSMTPSender(notify.SMTPConfig{
		Host:       cfg.SMTPHost,
		Port:       cfg.SMTPPort,
		Username:   cfg.SMTPUsername,
		Password:   cfg.SMTPPassword,
		From:       cfg.SMTPSender,
		Encryption: cfg.SMTPEncryption,
	})
	if err != nil {
		logrus.WithError(err).Warn("SMTP not configured, emails will only be logged")
		mailer = notify.LogSender{}
	}

	m := metrics.New("pharmacy") // Prometheus collectors

	// Workflow notifications go through a retrying queue, fed by NATS when configured
	queue := notify.NewQueue(mailer, notify.QueueOptions{
		Observer: func(msg notify.Message, err error) { m.Notification(string(msg.Kind), err) },
	})
	var dispatcher notify.Dispatcher = queue
	var nc *nats.Conn // Set when notifications go through NATS
	if cfg.NATSURL != "" {
		if nc, err = notify.Connect(cfg.NATSURL); err != nil {
			logrus.Fatalf("failed to connect to NATS: %v", err)
		}
		if _, err := notify.Consume(nc, queue); err != nil {
			logrus.Fatalf("failed to subscribe to notifications: %v", err)
		}
		if dispatcher, err = notify.NewNATSDispatcher(nc); err != nil {
			logrus.Fatalf("failed to create NATS dispatcher: %v", err)
		}
	}

	carts := cart.NewStore(redisClient, cfg.CartTTL) // Shopping carts
	wf := workflow.New(database, dispatcher, carts, workflow.Options{
		AdminEmail:  cfg.AdminEmail,
		DeliveryTTL: cfg.DeliveryOTPTTL,
		Metrics:     m,
	})

	// Daily low stock report
	lowStock := &jobs.LowStockReport{DB: database, Notifier: dispatcher, AdminEmail: cfg.AdminEmail, Threshold: cfg.LowStockThreshold}
	scheduler, err := lowStock.Start(cfg.LowStockAt)
	if err != nil {
		logrus.Fatalf("failed to schedule low stock report: %v", err)
	}

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup Gin
	r := gin.Default() // Gin router instance

	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}
	if _, ok := store.(*storage.Local); ok {
		r.Static("/uploads", cfg.UploadDir) // Serve local uploads
	}

	api.ConfigRoutes(r, api.Deps{
		DB:       database,
		Redis:    redisClient,
		Carts:    carts,
		Workflow: wf,
		Store:    store,
		Mailer:   mailer,
		Metrics:  m,
		Config:   cfg,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logrus.Info("Server running on " + cfg.AppPort) // Log server start
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server failed: %v", err)
		}
	}()

	// Wait for an interrupt, then drain in-flight requests
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Server forced to shut down")
	}

	// Stop producers first, then flush NATS into the queue, then the queue itself
	scheduler.Stop()
	if nc != nil {
		if err := notify.DrainWait(nc, notify.DrainTimeout); err != nil {
			logrus.WithError(err).Error("Pending notifications may be lost")
		}
	}
	queue.Close() // Waits for queued messages to be sent
	logrus.Info("Notifications flushed")
}
