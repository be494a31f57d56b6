package main

import (
	"context"                        // context package is needed for Redis operations
	"net/http"                       // Outbound gateway client
	"survey_wallet/internal/api"     // Custom package for API handlers
	"survey_wallet/internal/config"  // Custom package for configuration
	"survey_wallet/internal/db"      // Database connection
	"survey_wallet/internal/ledger"  // Ledger store and idempotency guard
	"survey_wallet/internal/payment" // M-Pesa gateway and reconciliation
	"survey_wallet/internal/reward"  // Survey and video rewards

	"github.com/gin-gonic/gin"     // Gin web framework
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
	if cfg.JWTSecret == "" {
		logrus.Fatal("JWT_SECRET is not set")
	}

	// Connect to the database
	conn, err := db.Open(cfg.DSN())
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
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

	store := ledger.NewStore(conn)
	guard := ledger.NewGuard(redisClient, cfg.IdempotencyTTL)
	gateway := payment.NewMpesaClient(cfg.Mpesa, &http.Client{Timeout: cfg.GatewayTimeout})
	rewards := reward.NewService(store, guard, redisClient, reward.Policy{
		SurveyLimit: cfg.SurveyLimit,
		VideoLimit:  cfg.VideoLimit,
		SurveyUnit:  cfg.SurveyRewardUnit,
		VideoUnit:   cfg.VideoRewardUnit,
	})

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

	api.RegisterRoutes(r, api.Deps{
		DB:         conn,
		Redis:      redisClient,
		Store:      store,
		Initiator:  payment.NewInitiator(gateway, store, cfg.Mpesa.CallbackURL, cfg.GatewayTimeout),
		Reconciler: payment.NewReconciler(store, guard, redisClient),
		Rewards:    rewards,
		JWTSecret:  cfg.JWTSecret,
	})

	logrus.Info("Server running on " + cfg.AppPort) // Log server start
	if err := r.Run(":" + cfg.AppPort); err != nil {
		logrus.Fatalf("server stopped: %v", err)
	}
}
