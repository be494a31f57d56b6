package api

import (
	"net/http"                      // HTTP status codes
	"strconv"                       // String conversion
	"strings"                       // String manipulation
	"survey_wallet/internal/domain" // Importing domain models
	"survey_wallet/internal/utils"  // Utility functions
	"time"                          // Date filters

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/redis/go-redis/v9"  // Redis client
	"github.com/shopspring/decimal" // Exact decimal arithmetic for money
	"gorm.io/gorm"                  // GORM ORM library
)

// UserAdminResponse represents the user data returned to admin
type UserAdminResponse struct {
	ID               uint            `json:"id"`                 // User ID
	Email            string          `json:"email"`              // Email
	Name             string          `json:"name"`               // Display name
	Phone            string          `json:"phone"`              // Phone
	Role             string          `json:"role"`               // User role
	Active           bool            `json:"active"`             // Account enabled
	Level            int             `json:"level"`              // Reward level
	Wallet           decimal.Decimal `json:"wallet"`             // Balance
	SurveyCountTotal int             `json:"survey_count_total"` // Lifetime surveys
	VideoCountTotal  int             `json:"video_count_total"`  // Lifetime videos
}

// userPage is the cached shape of the admin user listing
type userPage struct {
	Users      []UserAdminResponse `json:"users"`       // List of users
	Page       int                 `json:"page"`        // Current page
	PageSize   int                 `json:"page_size"`   // Page size
	Total      int64               `json:"total"`       // Total number of users
	TotalPages int                 `json:"total_pages"` // Total pages
}

// ListUsersHandler returns all users with their wallet info
func ListUsersHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		page, pageSize := pagination(c)
		// Create a cache key based on pagination parameters
		cacheKey := "admin:users:page=" + strconv.Itoa(page) + ":size=" + strconv.Itoa(pageSize)
		var cached userPage
		// If cached data found, return it
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &cached); err == nil && found {
			c.JSON(http.StatusOK, gin.H{
				"users":       cached.Users,
				"page":        cached.Page,
				"page_size":   cached.PageSize,
				"total":       cached.Total,
				"total_pages": cached.TotalPages,
				"cached":      true, // Indicate response is from cache
			})
			return
		}
		var total int64 // Total user count
		if err := db.WithContext(ctx).Model(&domain.User{}).Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count users"})
			return
		}
		var users []domain.User // Slice to hold users
		if err := db.WithContext(ctx).Order("id").Offset((page - 1) * pageSize).Limit(pageSize).Find(&users).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
			return
		}
		resp := userPage{
			Users:      make([]UserAdminResponse, len(users)),
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: (int(total) + pageSize - 1) / pageSize, // Calculate total pages
		}
		// Map users to response format
		for i, u := range users {
			resp.Users[i] = UserAdminResponse{
				ID:               u.ID,
				Email:            u.Email,
				Name:             u.Name,
				Phone:            u.Phone,
				Role:             u.Role,
				Active:           u.Active,
				Level:            u.Level,
				Wallet:           u.Wallet,
				SurveyCountTotal: u.SurveyCountTotal,
				VideoCountTotal:  u.VideoCountTotal,
			}
		}
		// Cache the response for future requests
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, utils.CacheTTL)
		c.JSON(http.StatusOK, gin.H{
			"users":       resp.Users,
			"page":        resp.Page,
			"page_size":   resp.PageSize,
			"total":       resp.Total,
			"total_pages": resp.TotalPages,
			"cached":      false, // Indicate response is not from cache
		})
	}
}

// ListTransactionsHandler returns all transactions, with optional filtering by user, type, status, or date
func ListTransactionsHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		page, pageSize := pagination(c)
		// Build cache key from all query params
		var keyParts []string
		for _, k := range []string{"user_id", "type", "status", "from", "to"} {
			keyParts = append(keyParts, k+"="+c.Query(k))
		}
		keyParts = append(keyParts, "page="+strconv.Itoa(page), "page_size="+strconv.Itoa(pageSize))
		cacheKey := "admin:txs:" + strings.Join(keyParts, ":")
		var cached historyPage
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &cached); err == nil && found {
			c.JSON(http.StatusOK, gin.H{
				"transactions": cached.Transactions,
				"page":         cached.Page,
				"page_size":    cached.PageSize,
				"total":        cached.Total,
				"total_pages":  cached.TotalPages,
				"cached":       true,
			})
			return
		}
		query := db.WithContext(ctx).Model(&domain.Transaction{}) // Start building the query
		if userID := c.Query("user_id"); userID != "" {
			query = query.Where("user_id = ?", userID) // Filter by user ID
		}
		if txType := c.Query("type"); txType != "" {
			query = query.Where("type = ?", txType) // Filter by transaction type
		}
		if status := c.Query("status"); status != "" {
			query = query.Where("status = ?", status) // Filter by status
		}
		if from := c.Query("from"); from != "" {
			ms, ok := parseDateMillis(from, false)
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid from date"})
				return
			}
			query = query.Where("created_at >= ?", ms) // Filter by start date
		}
		if to := c.Query("to"); to != "" {
			ms, ok := parseDateMillis(to, true)
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid to date"})
				return
			}
			query = query.Where("created_at <= ?", ms) // Filter by end date
		}
		query = query.Session(&gorm.Session{})
		var total int64
		if err := query.Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count transactions"})
			return
		}
		var txs []domain.Transaction
		if err := query.Order("created_at desc").Order("id desc").Offset((page - 1) * pageSize).Limit(pageSize).Find(&txs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch transactions"})
			return
		}
		resp := historyPage{
			Transactions: txs,
			Page:         page,
			PageSize:     pageSize,
			Total:        total,
			TotalPages:   (int(total) + pageSize - 1) / pageSize,
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, utils.CacheTTL)
		c.JSON(http.StatusOK, gin.H{
			"transactions": resp.Transactions,
			"page":         resp.Page,
			"page_size":    resp.PageSize,
			"total":        resp.Total,
			"total_pages":  resp.TotalPages,
			"cached":       false,
		})
	}
}

// parseDateMillis accepts RFC 3339 or YYYY-MM-DD. A bare end date covers the whole day.
func parseDateMillis(s string, endOfDay bool) (int64, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UnixMilli(), true
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return 0, false
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Millisecond)
	}
	return t.UnixMilli(), true
}
