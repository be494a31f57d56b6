package api

import (
	"context"                        // Reconciliation context
	"errors"                         // Error inspection
	"net/http"                       // HTTP status codes
	"survey_wallet/internal/domain"  // Error taxonomy
	"survey_wallet/internal/payment" // Callback reconciliation

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Structured logging
)

// maxCallbackBytes bounds a gateway callback body
const maxCallbackBytes = 1 << 20

// reconcileFunc is HandleSTK or HandleB2C
type reconcileFunc func(ctx context.Context, orderID string, body []byte) (payment.Outcome, error)

// CallbackHandler receives STK push callbacks at /payment-callback/:orderId
func CallbackHandler(rec *payment.Reconciler) gin.HandlerFunc {
	return ackHandler("stk", rec.HandleSTK)
}

// ResultHandler receives B2C payout results at /payment-result/:orderId
func ResultHandler(rec *payment.Reconciler) gin.HandlerFunc {
	return ackHandler("b2c", rec.HandleB2C)
}

// ackHandler always acknowledges with ResultCode 0 so the gateway never retries
// into a state we have already settled or cannot parse.
func ackHandler(source string, handle reconcileFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID := c.Param("orderId")
		log := logrus.WithFields(logrus.Fields{"source": source, "order_id": orderID})
		body, err := readBody(c)
		if err != nil {
			log.WithError(err).Warn("Unreadable callback body")
		} else {
			outcome, err := handle(c.Request.Context(), orderID, body)
			switch {
			case err == nil:
				log.WithField("outcome", outcome).Debug("Callback handled")
			case errors.Is(err, domain.ErrValidation):
				log.WithError(err).Warn("Rejected malformed callback")
			default:
				log.WithError(err).Error("Callback not reconciled")
			}
		}
		c.JSON(http.StatusOK, gin.H{"ResultCode": payment.AckResultCode, "ResultDesc": payment.AckResultDesc})
	}
}

func readBody(c *gin.Context) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxCallbackBytes)
	return c.GetRawData()
}
