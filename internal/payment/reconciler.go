package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"survey_wallet/internal/domain"
	"survey_wallet/internal/ledger"
	"survey_wallet/internal/utils"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Outcome is how a callback ended
type Outcome string

// Reconciliation outcomes
const (
	OutcomeCommitted      Outcome = "committed"           // Success recorded and wallet moved
	OutcomeUnattributed   Outcome = "unattributed"        // Success recorded without an owning user
	OutcomeRecordedFailed Outcome = "recorded-failed"     // Failure recorded, wallet untouched
	OutcomeDuplicate      Outcome = "duplicate-discarded" // Attempt already settled, nothing changed
	OutcomeRejected       Outcome = "rejected"            // Payload could not be parsed
)

// AckResultCode and AckResultDesc form the only response the gateway ever receives
const (
	AckResultCode = 0
	AckResultDesc = "Success"
)

// Reconciler applies gateway callbacks to the ledger
type Reconciler struct {
	store *ledger.Store
	guard *ledger.Guard
	rdb   *redis.Client
}

// NewReconciler creates a reconciler. rdb may be nil.
func NewReconciler(store *ledger.Store, guard *ledger.Guard, rdb *redis.Client) *Reconciler {
	return &Reconciler{store: store, guard: guard, rdb: rdb}
}

// HandleSTK parses and reconciles an STK push callback
func (r *Reconciler) HandleSTK(ctx context.Context, orderID string, body []byte) (Outcome, error) {
	cb, err := ParseSTKCallback(body)
	if err != nil {
		return OutcomeRejected, err
	}
	return r.Reconcile(ctx, orderID, cb)
}

// HandleB2C parses and reconciles a payout result
func (r *Reconciler) HandleB2C(ctx context.Context, orderID string, body []byte) (Outcome, error) {
	cb, err := ParseB2CResult(body)
	if err != nil {
		return OutcomeRejected, err
	}
	return r.Reconcile(ctx, orderID, cb)
}

// Reconcile settles the transaction named by the callback and, on success,
// moves the owner's wallet in the same atomic unit. The settled-state check
// runs under the row lock, so concurrent deliveries credit at most once.
func (r *Reconciler) Reconcile(ctx context.Context, orderID string, cb *Callback) (Outcome, error) {
	log := logrus.WithFields(logrus.Fields{
		"order_id":            orderID,
		"checkout_request_id": cb.CheckoutRequestID,
		"result_code":         cb.Result.Code(),
	})
	if r.guard.Settled(ctx, cb.CheckoutRequestID) {
		log.Info("Duplicate callback discarded")
		return OutcomeDuplicate, nil
	}

	var (
		outcome Outcome
		settled *domain.Transaction
	)
	err := r.store.RunAtomically(ctx, func(tx *ledger.Tx) error {
		pending, err := r.guard.ClaimPayment(tx, cb.CheckoutRequestID)
		if err != nil {
			return err
		}
		txn := pending
		if txn == nil {
			txn = &domain.Transaction{
				CheckoutRequestID: cb.CheckoutRequestID,
				OrderID:           orderID,
				Type:              cb.Kind,
			}
		}
		if cb.MerchantRequestID != "" {
			txn.MerchantRequestID = cb.MerchantRequestID
		}
		txn.ResultCode = cb.Result.Code()
		txn.ResultDesc = cb.Result.Description()

		switch res := cb.Result.(type) {
		case Failure:
			txn.Status = domain.StatusFailed
			outcome = OutcomeRecordedFailed
			if txn.UserID == nil {
				user, err := resolveOwner(tx, orderID, nil)
				if err != nil {
					return err
				}
				if user != nil {
					txn.UserID = &user.ID
				}
			}
		case Success:
			if outcome, err = applySuccess(tx, orderID, txn, res); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: unknown callback result %T", domain.ErrValidation, cb.Result)
		}

		settled = txn
		if pending == nil {
			return tx.CreateTransaction(txn)
		}
		return tx.SettleTransaction(txn)
	})
	if errors.Is(err, domain.ErrConflict) {
		r.guard.MarkSettled(ctx, cb.CheckoutRequestID)
		log.Info("Duplicate callback discarded")
		return OutcomeDuplicate, nil
	}
	if err != nil {
		log.WithError(err).Error("Callback reconciliation failed")
		return "", err
	}

	r.guard.MarkSettled(ctx, cb.CheckoutRequestID)
	fields := logrus.Fields{
		"outcome": outcome,
		"type":    settled.Type,
		"status":  settled.Status,
	}
	if settled.Amount.Valid {
		fields["amount"] = settled.Amount.Decimal.String()
	}
	if settled.UserID != nil {
		fields["user_id"] = *settled.UserID
		if err := utils.InvalidateUser(ctx, r.rdb, *settled.UserID); err != nil {
			log.WithError(err).Warn("Failed to invalidate wallet cache")
		}
	}
	log.WithFields(fields).Info("Callback reconciled")
	return outcome, nil
}

func applySuccess(tx *ledger.Tx, orderID string, txn *domain.Transaction, res Success) (Outcome, error) {
	txn.Status = domain.StatusSuccess
	amount := txn.RequestedAmount
	if res.Amount != nil {
		amount = *res.Amount
	} else {
		logrus.WithField("checkout_request_id", txn.CheckoutRequestID).Warn("Callback carried no Amount, using requested amount")
	}
	txn.Amount = decimal.NewNullDecimal(amount)
	txn.ReceiptNumber = res.ReceiptNumber
	if res.PhoneNumber != nil {
		txn.PhoneNumber = *res.PhoneNumber
	}
	if res.TransactionDate != nil {
		txn.TransactionDate = *res.TransactionDate
	}

	user, err := resolveOwner(tx, orderID, txn.UserID)
	if err != nil {
		return "", err
	}
	if user == nil {
		txn.UserID = nil
		return OutcomeUnattributed, nil
	}
	if _, err := tx.Apply(user.ID, txn.Type, amount); err != nil {
		return "", err
	}
	txn.UserID = &user.ID
	return OutcomeCommitted, nil
}

// resolveOwner finds and locks the user a callback belongs to.
// A missing or malformed order id, or one naming no user, yields nil without error.
func resolveOwner(tx *ledger.Tx, orderID string, owner *uint) (*domain.User, error) {
	var id uint
	if owner != nil {
		id = *owner
	} else {
		parsed, ok := ParseUserID(orderID)
		if !ok {
			return nil, nil
		}
		id = parsed
	}
	user, err := tx.LockUser(id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return user, err
}

// ParseUserID accepts the positive decimal keys the store issues.
// Empty strings, "undefined" and any other shape are rejected.
func ParseUserID(s string) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, strconv.IntSize)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
