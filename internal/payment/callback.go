package payment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"survey_wallet/internal/domain"

	"github.com/shopspring/decimal"
)

// Callback is a gateway notification parsed once at the boundary.
// Result is either Success or Failure.
type Callback struct {
	MerchantRequestID string
	CheckoutRequestID string
	Kind              domain.TransactionType // Used when no pending row says otherwise
	Result            Result
}

// Result is the outcome carried by a callback
type Result interface {
	Code() int
	Description() string
}

// Success is a settled payment. Metadata fields are nil when the gateway omitted them.
type Success struct {
	Desc            string
	Amount          *decimal.Decimal
	ReceiptNumber   *string
	PhoneNumber     *string
	TransactionDate *string
}

// Code is always zero for a success
func (Success) Code() int { return 0 }

// Description returns the gateway's result description
func (s Success) Description() string { return s.Desc }

// Failure is a payment the gateway did not complete
type Failure struct {
	ResultCode int
	Desc       string
}

// Code returns the gateway result code
func (f Failure) Code() int { return f.ResultCode }

// Description returns the gateway's result description
func (f Failure) Description() string { return f.Desc }

type metadataItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value"`
}

type stkCallbackEnvelope struct {
	Body *struct {
		StkCallback *struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        *int   `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  *struct {
				Item []metadataItem `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// ParseSTKCallback parses an STK push callback body
func ParseSTKCallback(body []byte) (*Callback, error) {
	var env stkCallbackEnvelope
	if err := decode(body, &env); err != nil {
		return nil, err
	}
	if env.Body == nil || env.Body.StkCallback == nil {
		return nil, fmt.Errorf("%w: missing Body.stkCallback", domain.ErrValidation)
	}
	cb := env.Body.StkCallback
	if cb.CheckoutRequestID == "" {
		return nil, fmt.Errorf("%w: missing CheckoutRequestID", domain.ErrValidation)
	}
	if cb.ResultCode == nil {
		return nil, fmt.Errorf("%w: missing ResultCode", domain.ErrValidation)
	}

	out := &Callback{
		MerchantRequestID: cb.MerchantRequestID,
		CheckoutRequestID: cb.CheckoutRequestID,
		Kind:              domain.TypeDeposit,
	}
	if *cb.ResultCode != 0 {
		out.Result = Failure{ResultCode: *cb.ResultCode, Desc: cb.ResultDesc}
		return out, nil
	}

	meta := map[string]any{}
	if cb.CallbackMetadata != nil {
		for _, item := range cb.CallbackMetadata.Item {
			meta[item.Name] = item.Value
		}
	}
	out.Result = Success{
		Desc:            cb.ResultDesc,
		Amount:          amountOf(meta["Amount"]),
		ReceiptNumber:   stringOf(meta["MpesaReceiptNumber"]),
		PhoneNumber:     stringOf(meta["PhoneNumber"]),
		TransactionDate: stringOf(meta["TransactionDate"]),
	}
	return out, nil
}

type resultParameter struct {
	Key   string `json:"Key"`
	Value any    `json:"Value"`
}

type b2cResultEnvelope struct {
	Result *struct {
		ResultType               int    `json:"ResultType"`
		ResultCode               *int   `json:"ResultCode"`
		ResultDesc               string `json:"ResultDesc"`
		OriginatorConversationID string `json:"OriginatorConversationID"`
		ConversationID           string `json:"ConversationID"`
		TransactionID            string `json:"TransactionID"`
		ResultParameters         *struct {
			ResultParameter []resultParameter `json:"ResultParameter"`
		} `json:"ResultParameters"`
	} `json:"Result"`
}

// ParseB2CResult parses a business-to-customer payout result body.
// The gateway ConversationID plays the role of the checkout request id.
func ParseB2CResult(body []byte) (*Callback, error) {
	var env b2cResultEnvelope
	if err := decode(body, &env); err != nil {
		return nil, err
	}
	res := env.Result
	if res == nil {
		return nil, fmt.Errorf("%w: missing Result", domain.ErrValidation)
	}
	if res.ConversationID == "" {
		return nil, fmt.Errorf("%w: missing ConversationID", domain.ErrValidation)
	}
	if res.ResultCode == nil {
		return nil, fmt.Errorf("%w: missing ResultCode", domain.ErrValidation)
	}

	out := &Callback{
		MerchantRequestID: res.OriginatorConversationID,
		CheckoutRequestID: res.ConversationID,
		Kind:              domain.TypeWithdrawal,
	}
	if *res.ResultCode != 0 {
		out.Result = Failure{ResultCode: *res.ResultCode, Desc: res.ResultDesc}
		return out, nil
	}

	params := map[string]any{}
	if res.ResultParameters != nil {
		for _, p := range res.ResultParameters.ResultParameter {
			params[p.Key] = p.Value
		}
	}
	success := Success{
		Desc:            res.ResultDesc,
		Amount:          amountOf(params["TransactionAmount"]),
		ReceiptNumber:   stringOf(params["TransactionReceipt"]),
		TransactionDate: stringOf(params["TransactionCompletedDateTime"]),
	}
	if success.ReceiptNumber == nil && res.TransactionID != "" {
		success.ReceiptNumber = &res.TransactionID
	}
	// ReceiverPartyPublicName looks like "254708374149 - John Doe"
	if name := stringOf(params["ReceiverPartyPublicName"]); name != nil {
		phone := strings.TrimSpace(strings.SplitN(*name, "-", 2)[0])
		success.PhoneNumber = &phone
	}
	out.Result = success
	return out, nil
}

func decode(body []byte, dest any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber() // Keep phone numbers and dates exact
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("%w: malformed callback: %v", domain.ErrValidation, err)
	}
	return nil
}

func stringOf(v any) *string {
	var s string
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		s = val
	case json.Number:
		s = val.String()
	default:
		s = fmt.Sprint(val)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func amountOf(v any) *decimal.Decimal {
	s := stringOf(v)
	if s == nil {
		return nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil || d.IsNegative() {
		return nil
	}
	return &d
}
