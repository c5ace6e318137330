package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/dedezza1D/lustra/internal/payment"
)

type createOrderRequest struct {
	Amount   float64 `json:"amount" validate:"gt=0"`
	Currency string  `json:"currency"`
	Receipt  string  `json:"receipt" validate:"required"`
}

type createOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type verifyPaymentRequest struct {
	OrderID   string `json:"razorpay_order_id" validate:"required"`
	PaymentID string `json:"razorpay_payment_id" validate:"required"`
	Signature string `json:"razorpay_signature" validate:"required"`
}

type verifyPaymentResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "Missing required fields: amount and receipt are required", err.Error())
		return
	}
	if req.Currency == "" {
		req.Currency = "INR"
	}

	order, err := s.deps.Payments.CreateOrder(r.Context(), payment.OrderRequest{
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
	})
	if err != nil {
		s.logger.Error("create order failed", zap.String("receipt", req.Receipt), zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "Failed to create order", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, createOrderResponse{
		ID:       order.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
	})
}

func (s *Server) handlePaymentVerification(w http.ResponseWriter, r *http.Request) {
	var req verifyPaymentRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, verifyPaymentResponse{Status: "error", Message: "Missing required fields."})
		return
	}

	if err := s.deps.Payments.VerifySignature(req.OrderID, req.PaymentID, req.Signature); err != nil {
		if !errors.Is(err, payment.ErrInvalidSignature) {
			s.logger.Error("verify payment failed", zap.String("order_id", req.OrderID), zap.Error(err))
		}
		writeJSON(w, http.StatusBadRequest, verifyPaymentResponse{Status: "error", Message: payment.ErrInvalidSignature.Error()})
		return
	}

	s.logger.Info("payment verified", zap.String("order_id", req.OrderID), zap.String("payment_id", req.PaymentID))
	writeJSON(w, http.StatusOK, verifyPaymentResponse{Status: "success", Message: "Payment verified."})
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	orderID := strings.TrimSpace(mux.Vars(r)["orderId"])
	if orderID == "" {
		writeErr(w, http.StatusBadRequest, "order id is required", "")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := payment.RenderCheckout(w, payment.NewCheckoutPage(s.deps.Payments.KeyID(), orderID)); err != nil {
		s.logger.Error("render checkout failed", zap.String("order_id", orderID), zap.Error(err))
	}
}
