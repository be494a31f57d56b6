package api

import (
	"survey_wallet/internal/ledger"     // Ledger store
	"survey_wallet/internal/middleware" // Auth middleware
	"survey_wallet/internal/payment"    // Gateway payments
	"survey_wallet/internal/reward"     // Reward accrual

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"gorm.io/gorm"                 // GORM ORM library
)

// Deps are the services the HTTP layer is built from
type Deps struct {
	DB         *gorm.DB
	Redis      *redis.Client // May be nil
	Store      *ledger.Store
	Initiator  *payment.Initiator
	Reconciler *payment.Reconciler
	Rewards    *reward.Service
	JWTSecret  string
}

// RegisterRoutes mounts every endpoint on r
func RegisterRoutes(r *gin.Engine, d Deps) {
	// Gateway callbacks are unauthenticated and always acknowledged
	r.POST("/payment-callback/:orderId", CallbackHandler(d.Reconciler))
	r.POST("/payment-result/:orderId", ResultHandler(d.Reconciler))

	api := r.Group("/api")

	// Auth routes
	api.POST("/auth/signup", SignupHandler(d.DB, d.JWTSecret)) // Registration endpoint
	api.POST("/auth/login", LoginHandler(d.DB, d.JWTSecret))   // Login endpoint

	// Everything else requires a token
	authed := api.Group("")
	authed.Use(middleware.JWTAuthMiddleware(d.JWTSecret))
	authed.GET("/wallet", GetWalletHandler(d.Store, d.Redis))
	authed.GET("/transactions/verify/:checkoutRequestId", VerifyHandler(d.Store))
	authed.POST("/mpesa/stkPush", DepositHandler(d.Store, d.Initiator))
	authed.POST("/mpesa/withdraw", WithdrawHandler(d.Store, d.Initiator))
	authed.POST("/mpesa/confirmPayment/:checkoutRequestId", ConfirmPaymentHandler(d.Initiator))
	authed.GET("/activity/survey", ListSurveysHandler(d.Rewards))

	// Per-user resources: owner or admin only
	owned := authed.Group("")
	owned.Use(middleware.OwnerOrAdminMiddleware())
	owned.GET("/transactions/all/:userId", GetTransactionHistoryHandler(d.Store, d.Redis))
	owned.GET("/activity/survey/:userId", AvailableSurveysHandler(d.Rewards))
	owned.POST("/activity/response/:userId", SubmitResponseHandler(d.Rewards))
	owned.POST("/activity/video/:userId", VideoWatchHandler(d.Rewards))
	owned.GET("/activity/limits/:userId", ActivityLimitsHandler(d.Rewards))

	// Admin routes (protected, admin only)
	admin := authed.Group("/admin")
	admin.Use(middleware.AdminOnlyMiddleware(d.DB))
	admin.GET("/users", ListUsersHandler(d.DB, d.Redis))               // List users endpoint
	admin.GET("/transactions", ListTransactionsHandler(d.DB, d.Redis)) // List transactions endpoint
}
