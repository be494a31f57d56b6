package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"survey_wallet/internal/config"
	"survey_wallet/internal/domain"

	"github.com/shopspring/decimal"
)

// Gateway is the outbound side of the mobile-money provider
type Gateway interface {
	STKPush(ctx context.Context, req STKPushRequest) (*STKPushResponse, error)
	STKQuery(ctx context.Context, checkoutRequestID string) (*STKQueryResponse, error)
	B2C(ctx context.Context, req B2CRequest) (*B2CResponse, error)
}

// STKPushRequest asks the customer's phone to approve a payment
type STKPushRequest struct {
	Amount           decimal.Decimal
	Phone            string
	CallbackURL      string
	AccountReference string
	Description      string
}

// STKPushResponse is the gateway's synchronous acceptance of an STK push
type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// STKQueryResponse is the gateway's view of an STK push
type STKQueryResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResultCode          string `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
}

// B2CRequest pays money out to a customer
type B2CRequest struct {
	Amount     decimal.Decimal
	Phone      string
	Remarks    string
	ResultURL  string
	TimeoutURL string
}

// B2CResponse is the gateway's synchronous acceptance of a payout
type B2CResponse struct {
	ConversationID           string `json:"ConversationID"`
	OriginatorConversationID string `json:"OriginatorConversationID"`
	ResponseCode             string `json:"ResponseCode"`
	ResponseDescription      string `json:"ResponseDescription"`
}

// eat is East Africa Time, the zone the gateway expects timestamps in
var eat = time.FixedZone("EAT", 3*60*60)

// MpesaClient talks to the M-Pesa Daraja API
type MpesaClient struct {
	cfg    config.MpesaConfig
	http   *http.Client
	tokens *TokenSource
	now    func() time.Time
}

// NewMpesaClient creates a Daraja client. The http client's timeout bounds every call.
func NewMpesaClient(cfg config.MpesaConfig, httpClient *http.Client) *MpesaClient {
	c := &MpesaClient{
		cfg:  cfg,
		http: httpClient,
		now:  time.Now,
	}
	c.tokens = NewTokenSource(c.fetchToken)
	return c
}

// fetchToken runs the OAuth client-credentials grant
func (c *MpesaClient) fetchToken(ctx context.Context) (string, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)
	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("%w: token request: %v", domain.ErrGateway, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", 0, fmt.Errorf("%w: token request status %d: %s", domain.ErrGateway, resp.StatusCode, body)
	}
	var result struct {
		AccessToken string      `json:"access_token"`
		ExpiresIn   json.Number `json:"expires_in"` // Sent as a quoted number
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", 0, fmt.Errorf("%w: token response: %v", domain.ErrGateway, err)
	}
	if result.AccessToken == "" {
		return "", 0, fmt.Errorf("%w: empty access token", domain.ErrGateway)
	}
	seconds, err := result.ExpiresIn.Int64()
	if err != nil || seconds <= 0 {
		seconds = 3599
	}
	return result.AccessToken, time.Duration(seconds) * time.Second, nil
}

// password is base64(shortCode + passKey + timestamp)
func (c *MpesaClient) password(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(c.cfg.ShortCode + c.cfg.PassKey + timestamp))
}

// Timestamp formats t the way the gateway expects, YYYYMMDDHHMMSS in EAT
func Timestamp(t time.Time) string {
	return t.In(eat).Format("20060102150405")
}

// STKPush starts a customer-approved deposit
func (c *MpesaClient) STKPush(ctx context.Context, in STKPushRequest) (*STKPushResponse, error) {
	ts := Timestamp(c.now())
	payload := map[string]any{
		"BusinessShortCode": c.cfg.ShortCode,
		"Password":          c.password(ts),
		"Timestamp":         ts,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            in.Amount.IntPart(),
		"PartyA":            in.Phone,
		"PartyB":            c.cfg.ShortCode,
		"PhoneNumber":       in.Phone,
		"CallBackURL":       in.CallbackURL,
		"AccountReference":  in.AccountReference,
		"TransactionDesc":   in.Description,
	}
	var out STKPushResponse
	if err := c.post(ctx, "/mpesa/stkpush/v1/processrequest", payload, &out); err != nil {
		return nil, err
	}
	if out.ResponseCode != "0" || out.CheckoutRequestID == "" {
		return nil, fmt.Errorf("%w: stk push rejected: %s %s", domain.ErrGateway, out.ResponseCode, out.ResponseDescription)
	}
	return &out, nil
}

// STKQuery asks the gateway for the state of an STK push
func (c *MpesaClient) STKQuery(ctx context.Context, checkoutRequestID string) (*STKQueryResponse, error) {
	ts := Timestamp(c.now())
	payload := map[string]any{
		"BusinessShortCode": c.cfg.ShortCode,
		"Password":          c.password(ts),
		"Timestamp":         ts,
		"CheckoutRequestID": checkoutRequestID,
	}
	var out STKQueryResponse
	if err := c.post(ctx, "/mpesa/stkpushquery/v1/query", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// B2C starts a payout to a customer
func (c *MpesaClient) B2C(ctx context.Context, in B2CRequest) (*B2CResponse, error) {
	payload := map[string]any{
		"InitiatorName":      c.cfg.InitiatorName,
		"SecurityCredential": c.cfg.SecurityCredential,
		"CommandID":          "BusinessPayment",
		"Amount":             in.Amount.IntPart(),
		"PartyA":             c.cfg.ShortCode,
		"PartyB":             in.Phone,
		"Remarks":            in.Remarks,
		"QueueTimeOutURL":    in.TimeoutURL,
		"ResultURL":          in.ResultURL,
		"Occasion":           "Payment",
	}
	var out B2CResponse
	if err := c.post(ctx, "/mpesa/b2c/v1/paymentrequest", payload, &out); err != nil {
		return nil, err
	}
	if out.ResponseCode != "0" || out.ConversationID == "" {
		return nil, fmt.Errorf("%w: payout rejected: %s %s", domain.ErrGateway, out.ResponseCode, out.ResponseDescription)
	}
	return &out, nil
}

func (c *MpesaClient) post(ctx context.Context, path string, payload, dest any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrGateway, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode == http.StatusUnauthorized {
		c.tokens.Invalidate()
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s status %s: %s", domain.ErrGateway, path, strconv.Itoa(resp.StatusCode), strings.TrimSpace(string(raw)))
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("%w: %s response: %v", domain.ErrGateway, path, err)
	}
	return nil
}
