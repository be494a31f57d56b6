package api

import (
	"fmt"                               // Error wrapping
	"net/http"                          // HTTP status codes
	"strconv"                           // String conversion
	"survey_wallet/internal/domain"     // Importing domain models
	"survey_wallet/internal/ledger"     // Wallet and transaction reads
	"survey_wallet/internal/middleware" // Authenticated user lookup
	"survey_wallet/internal/payment"    // Gateway payments
	"survey_wallet/internal/utils"      // Utility functions

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/redis/go-redis/v9"  // Redis client
	"github.com/shopspring/decimal" // Exact decimal arithmetic for money
)

// PaymentRequest is the body of the deposit and withdrawal endpoints
type PaymentRequest struct {
	Amount  decimal.Decimal `json:"amount"`  // Whole currency units
	Phone   string          `json:"phone"`   // Defaults to the registered phone
	Remarks string          `json:"remarks"` // Withdrawal remarks
}

// GetWalletHandler returns wallet info for the authenticated user
func GetWalletHandler(store *ledger.Store, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := currentUser(c)
		if !exists {
			return
		}
		ctx := c.Request.Context()
		cacheKey := utils.WalletKey(userID)                       // Cache key for wallet
		var wallet domain.WalletView                              // Wallet struct to hold data
		found, err := utils.GetCache(ctx, rdb, cacheKey, &wallet) // Try to get from cache
		if err == nil && found {
			c.JSON(http.StatusOK, gin.H{"wallet": wallet, "cached": true})
			return
		}
		view, err := store.Wallet(ctx, userID)
		if err != nil {
			respondError(c, err)
			return
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, view, utils.CacheTTL)  // Cache the wallet
		c.JSON(http.StatusOK, gin.H{"wallet": view, "cached": false}) // Return wallet info
	}
}

// historyPage is the cached shape of a transaction history page
type historyPage struct {
	Transactions []domain.Transaction `json:"transactions"` // List of transactions
	Page         int                  `json:"page"`         // Current page
	PageSize     int                  `json:"page_size"`    // Page size
	Total        int64                `json:"total"`        // Total number of transactions
	TotalPages   int                  `json:"total_pages"`  // Total pages
}

// GetTransactionHistoryHandler returns a user's transactions, newest first
func GetTransactionHistoryHandler(store *ledger.Store, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := pathUserID(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		page, pageSize := pagination(c)
		cacheKey := utils.TxHistoryKey(userID, page, pageSize)
		var cached historyPage
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &cached); err == nil && found {
			c.JSON(http.StatusOK, gin.H{"data": cached, "cached": true})
			return
		}
		txs, total, err := store.UserTransactions(ctx, userID, page, pageSize)
		if err != nil {
			respondError(c, err)
			return
		}
		resp := historyPage{
			Transactions: txs,
			Page:         page,
			PageSize:     pageSize,
			Total:        total,
			TotalPages:   (int(total) + pageSize - 1) / pageSize, // Calculate total pages
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, utils.CacheTTL)
		c.JSON(http.StatusOK, gin.H{"data": resp, "cached": false})
	}
}

// DepositHandler starts an STK push for the authenticated user.
// The order id is the user id so the callback credits the caller.
func DepositHandler(store *ledger.Store, initiator *payment.Initiator) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := currentUser(c)
		if !exists {
			return
		}
		var req PaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		phone, err := phoneFor(c, store, userID, req.Phone)
		if err != nil {
			respondError(c, err)
			return
		}
		handle, err := initiator.InitiateDeposit(c.Request.Context(), req.Amount, phone, strconv.FormatUint(uint64(userID), 10))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "STK push sent", "data": handle})
	}
}

// WithdrawHandler starts a B2C payout from the authenticated user's wallet
func WithdrawHandler(store *ledger.Store, initiator *payment.Initiator) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := currentUser(c)
		if !exists {
			return
		}
		var req PaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		phone, err := phoneFor(c, store, userID, req.Phone)
		if err != nil {
			respondError(c, err)
			return
		}
		handle, err := initiator.InitiateWithdrawal(c.Request.Context(), userID, req.Amount, phone, req.Remarks)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Withdrawal submitted", "data": handle})
	}
}

// ConfirmPaymentHandler queries the gateway for the state of an STK push
func ConfirmPaymentHandler(initiator *payment.Initiator) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := initiator.ConfirmPayment(c.Request.Context(), c.Param("checkoutRequestId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": res})
	}
}

// VerifyHandler reports whether a payment attempt has settled. Users only see their own attempts.
func VerifyHandler(store *ledger.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := currentUser(c)
		if !exists {
			return
		}
		id := c.Param("checkoutRequestId")
		v, err := store.Verify(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		owner := v.Details.UserID
		if c.GetString(middleware.RoleKey) != domain.RoleAdmin && (owner == nil || *owner != userID) {
			// Answer as for a missing attempt
			respondError(c, fmt.Errorf("%w: transaction %s", domain.ErrNotFound, id))
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": v})
	}
}

// phoneFor picks the request phone or falls back to the user's registered phone
func phoneFor(c *gin.Context, store *ledger.Store, userID uint, phone string) (string, error) {
	if phone != "" {
		return phone, nil
	}
	user, err := store.FindUser(c.Request.Context(), userID)
	if err != nil {
		return "", err
	}
	return user.Phone, nil
}

// currentUser reads the authenticated user or answers 401
func currentUser(c *gin.Context) (uint, bool) {
	id, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return 0, false
	}
	return id, true
}
