package payment

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"survey_wallet/internal/domain"
	"survey_wallet/internal/ledger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// phonePattern matches Safaricom MSISDNs in international form
var phonePattern = regexp.MustCompile(`^254[17][0-9]{8}$`)

// NormalizePhone turns 07XXXXXXXX, +2547XXXXXXXX and 2547XXXXXXXX into 2547XXXXXXXX
func NormalizePhone(raw string) (string, error) {
	p := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(raw))
	p = strings.TrimPrefix(p, "+")
	if len(p) == 10 && strings.HasPrefix(p, "0") {
		p = "254" + p[1:]
	}
	if !phonePattern.MatchString(p) {
		return "", fmt.Errorf("%w: malformed phone number %q", domain.ErrValidation, raw)
	}
	return p, nil
}

// Handle identifies a payment attempt accepted by the gateway
type Handle struct {
	MerchantRequestID   string `json:"merchantRequestId"`
	CheckoutRequestID   string `json:"checkoutRequestId"`
	ResponseDescription string `json:"responseDescription"`
	CustomerMessage     string `json:"customerMessage,omitempty"`
}

// Initiator starts gateway payments and pre-registers them as pending transactions
type Initiator struct {
	gateway     Gateway
	store       *ledger.Store
	callbackURL string
	timeout     time.Duration
}

// NewInitiator creates an initiator. callbackURL is the public base URL the gateway calls back.
func NewInitiator(gateway Gateway, store *ledger.Store, callbackURL string, timeout time.Duration) *Initiator {
	return &Initiator{
		gateway:     gateway,
		store:       store,
		callbackURL: strings.TrimRight(callbackURL, "/"),
		timeout:     timeout,
	}
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}
	if !amount.Equal(amount.Truncate(0)) {
		return fmt.Errorf("%w: amount must be a whole number", domain.ErrValidation)
	}
	return nil
}

// InitiateDeposit asks the gateway to collect amount from phone. orderID is
// echoed back in the callback address so the callback can be attributed.
// No ledger lock is held while the gateway call is in flight.
func (i *Initiator) InitiateDeposit(ctx context.Context, amount decimal.Decimal, phone, orderID string) (*Handle, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	msisdn, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", domain.ErrValidation)
	}

	callCtx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()
	resp, err := i.gateway.STKPush(callCtx, STKPushRequest{
		Amount:           amount,
		Phone:            msisdn,
		CallbackURL:      i.callbackURL + "/payment-callback/" + url.PathEscape(orderID),
		AccountReference: "Account deposit",
		Description:      "Online deposit",
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"order_id": orderID,
			"amount":   amount.String(),
			"error":    err.Error(),
		}).Error("Deposit initiation failed")
		return nil, err
	}

	i.registerPending(ctx, &domain.Transaction{
		OrderID:           orderID,
		MerchantRequestID: resp.MerchantRequestID,
		CheckoutRequestID: resp.CheckoutRequestID,
		RequestedAmount:   amount,
		PhoneNumber:       msisdn,
		Type:              domain.TypeDeposit,
		UserID:            i.ownerOf(ctx, orderID),
	})
	return &Handle{
		MerchantRequestID:   resp.MerchantRequestID,
		CheckoutRequestID:   resp.CheckoutRequestID,
		ResponseDescription: resp.ResponseDescription,
		CustomerMessage:     resp.CustomerMessage,
	}, nil
}

// InitiateWithdrawal pays amount out of the user's wallet to phone. The payout
// is reserved against the balance before the gateway is called and the wallet
// is debited only when the payout result arrives.
func (i *Initiator) InitiateWithdrawal(ctx context.Context, userID uint, amount decimal.Decimal, phone, remarks string) (*Handle, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	msisdn, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	if remarks == "" {
		remarks = "Wallet withdrawal"
	}

	orderID := strconv.FormatUint(uint64(userID), 10)
	reserved := &domain.Transaction{
		OrderID:           orderID,
		CheckoutRequestID: "B2C_" + uuid.NewString(),
		RequestedAmount:   amount,
		PhoneNumber:       msisdn,
		UserID:            &userID,
	}
	if err := i.store.ReserveWithdrawal(ctx, reserved); err != nil {
		return nil, err
	}
	log := logrus.WithFields(logrus.Fields{
		"user_id":        userID,
		"amount":         amount.String(),
		"transaction_id": reserved.ID,
	})

	callCtx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()
	resp, err := i.gateway.B2C(callCtx, B2CRequest{
		Amount:     amount,
		Phone:      msisdn,
		Remarks:    remarks,
		ResultURL:  i.callbackURL + "/payment-result/" + orderID,
		TimeoutURL: i.callbackURL + "/payment-result/" + orderID,
	})
	if err != nil {
		log.WithError(err).Error("Withdrawal initiation failed")
		i.release(ctx, reserved.ID, "Payout request was not accepted")
		return nil, err
	}

	if err := i.store.AssignGatewayIDs(ctx, reserved.ID, resp.OriginatorConversationID, resp.ConversationID); err != nil {
		// The result callback records the payout under the gateway id by itself.
		log.WithError(err).Warn("Could not attach gateway ids to reserved withdrawal")
		i.release(ctx, reserved.ID, "Superseded by gateway record")
	} else {
		log.WithField("checkout_request_id", resp.ConversationID).Info("Payment initiated")
	}
	return &Handle{
		MerchantRequestID:   resp.OriginatorConversationID,
		CheckoutRequestID:   resp.ConversationID,
		ResponseDescription: resp.ResponseDescription,
	}, nil
}

// release frees a reservation whose payout will never settle under its row
func (i *Initiator) release(ctx context.Context, id uint, desc string) {
	if err := i.store.FailPending(ctx, id, desc); err != nil {
		logrus.WithFields(logrus.Fields{
			"transaction_id": id,
			"error":          err.Error(),
		}).Error("Could not release withdrawal reservation")
	}
}

// ConfirmPayment asks the gateway directly for the state of an STK push
func (i *Initiator) ConfirmPayment(ctx context.Context, checkoutRequestID string) (*STKQueryResponse, error) {
	if strings.TrimSpace(checkoutRequestID) == "" {
		return nil, fmt.Errorf("%w: checkout request id is required", domain.ErrValidation)
	}
	callCtx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()
	return i.gateway.STKQuery(callCtx, checkoutRequestID)
}

// ownerOf returns the user an order id names, or nil when it names none
func (i *Initiator) ownerOf(ctx context.Context, orderID string) *uint {
	id, ok := ParseUserID(orderID)
	if !ok {
		return nil
	}
	if _, err := i.store.FindUser(ctx, id); err != nil {
		return nil
	}
	return &id
}

// registerPending records the attempt. Failure here is not fatal: the reconciler
// creates the row itself when the callback finds none.
func (i *Initiator) registerPending(ctx context.Context, txn *domain.Transaction) {
	log := logrus.WithFields(logrus.Fields{
		"order_id":            txn.OrderID,
		"checkout_request_id": txn.CheckoutRequestID,
		"amount":              txn.RequestedAmount.String(),
		"type":                txn.Type,
	})
	if err := i.store.RegisterPending(ctx, txn); err != nil {
		log.WithError(err).Warn("Could not pre-register pending transaction")
		return
	}
	log.Info("Payment initiated")
}
