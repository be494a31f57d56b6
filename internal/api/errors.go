package api

import (
	"errors"                        // Error inspection
	"net/http"                      // HTTP status codes
	"strconv"                       // String conversion
	"survey_wallet/internal/domain" // Error taxonomy
	"survey_wallet/internal/reward" // Limit errors

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Structured logging
)

// statusFor maps a domain error to its HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrLimitReached):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrGateway):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as a JSON error body. Internal details never reach the client.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": err.Error()}
	switch status {
	case http.StatusBadGateway:
		body["error"] = "Payment gateway unavailable"
	case http.StatusInternalServerError:
		body["error"] = "Internal server error"
		logrus.WithFields(logrus.Fields{"path": c.FullPath(), "error": err}).Error("Request failed")
	}
	var limit *reward.LimitError
	if errors.As(err, &limit) {
		body["nextReset"] = limit.NextReset // When the allowance comes back
	}
	c.JSON(status, body)
}

// pagination reads page and page_size query parameters (defaults 1 and 20, max size 100)
func pagination(c *gin.Context) (int, int) {
	page := 1      // Default page
	pageSize := 20 // Default page size
	// If page exists in query
	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v // Set page if valid
		}
	}
	// If page_size exists in query
	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v // Set page size if valid
		}
	}
	return page, pageSize
}

// pathUserID parses the :userId path parameter
func pathUserID(c *gin.Context) (uint, bool) {
	v, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil || v == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return 0, false
	}
	return uint(v), true
}
