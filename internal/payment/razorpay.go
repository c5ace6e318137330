// Package payment creates Razorpay orders and verifies checkout signatures.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	razorpay "github.com/razorpay/razorpay-go"
	rzperrors "github.com/razorpay/razorpay-go/errors"
)

const DefaultCurrency = "INR"

var ErrInvalidSignature = errors.New("Invalid signature.")

// Razorpay error classes, as reported in error.internal_error_code.
const (
	CodeBadRequest = "BAD_REQUEST_ERROR"
	CodeGateway    = "GATEWAY_ERROR"
	CodeServer     = "SERVER_ERROR"
)

// GatewayError is a non-2xx answer from Razorpay.
type GatewayError struct {
	Status      int
	Code        string
	Description string
}

func (e *GatewayError) Error() string {
	if e.Description != "" {
		return e.Description
	}
	return fmt.Sprintf("razorpay: %s", e.Code)
}

func (e *GatewayError) StatusCode() int { return e.Status }

type OrderRequest struct {
	// Amount is in major units (rupees); it is sent to the gateway in paise.
	Amount   float64
	Currency string
	Receipt  string
}

type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt,omitempty"`
	Status   string `json:"status,omitempty"`
}

type Client struct {
	rzp       *razorpay.Client
	keyID     string
	keySecret string
}

// NewClient wraps the Razorpay SDK. An empty baseURL keeps the SDK default and a
// nil hc keeps the SDK's own HTTP client.
func NewClient(baseURL, keyID, keySecret string, hc *http.Client) *Client {
	rzp := razorpay.NewClient(keyID, keySecret)
	if baseURL = strings.TrimRight(baseURL, "/"); baseURL != "" {
		rzp.Request.BaseURL = baseURL
	}
	if hc != nil {
		rzp.Request.HTTPClient = hc
	}
	rzp.SetUserAgent("lustra-api")

	return &Client{rzp: rzp, keyID: keyID, keySecret: keySecret}
}

// KeyID is the public key embedded in the checkout page.
func (c *Client) KeyID() string { return c.keyID }

// ToPaise converts a major-unit amount to the smallest currency unit.
func ToPaise(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

type createResult struct {
	body map[string]interface{}
	err  error
}

// CreateOrder opens an auto-captured order. The SDK call is not context aware, so
// a cancelled ctx returns early and the in-flight request finishes on its own timeout.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	currency := req.Currency
	if currency == "" {
		currency = DefaultCurrency
	}

	data := map[string]interface{}{
		"amount":          ToPaise(req.Amount),
		"currency":        currency,
		"receipt":         req.Receipt,
		"payment_capture": 1,
	}

	done := make(chan createResult, 1)
	go func() {
		body, err := c.rzp.Order.Create(data, nil)
		done <- createResult{body: body, err: err}
	}()

	var res createResult
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-done:
	}
	if res.err != nil {
		return nil, gatewayError(res.err)
	}

	raw, err := json.Marshal(res.body)
	if err != nil {
		return nil, err
	}
	var order Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, fmt.Errorf("decode order: %w", err)
	}
	if order.ID == "" {
		return nil, &GatewayError{Status: http.StatusBadGateway, Code: CodeGateway, Description: "razorpay: order without id"}
	}
	return &order, nil
}

// gatewayError maps the SDK's error classes onto GatewayError. Transport failures
// are wrapped unchanged.
func gatewayError(err error) error {
	var (
		badReq  *rzperrors.BadRequestError
		gateway *rzperrors.GatewayError
		server  *rzperrors.ServerError
	)
	switch {
	case errors.As(err, &badReq):
		return &GatewayError{Status: http.StatusBadRequest, Code: CodeBadRequest, Description: badReq.Message}
	case errors.As(err, &gateway):
		return &GatewayError{Status: http.StatusBadGateway, Code: CodeGateway, Description: gateway.Message}
	case errors.As(err, &server):
		return &GatewayError{Status: http.StatusInternalServerError, Code: CodeServer, Description: server.Message}
	default:
		return fmt.Errorf("razorpay request: %w", err)
	}
}

// Sign returns the hex HMAC-SHA256 of "orderID|paymentID" under the key secret.
func (c *Client) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(c.keySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a checkout callback in constant time.
func (c *Client) VerifySignature(orderID, paymentID, signature string) error {
	want := c.Sign(orderID, paymentID)
	if !hmac.Equal([]byte(want), []byte(strings.ToLower(signature))) {
		return ErrInvalidSignature
	}
	return nil
}
