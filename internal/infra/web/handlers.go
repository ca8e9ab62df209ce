package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"ridehail-backoffice/internal/domain"
	"ridehail-backoffice/internal/infra/logging"
)

type checkoutRequest struct {
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Currency    string `json:"currency" validate:"omitempty,len=3"`
	Description string `json:"description"`
}

type checkoutResponse struct {
	Success              bool   `json:"success"`
	PaymentTransactionID string `json:"paymentTransactionId"`
	RedirectURL          string `json:"redirectUrl"`
	Amount               int64  `json:"amount"`
	Currency             string `json:"currency"`
	Status               string `json:"status"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "", "")
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error(), "")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error(), "")
		return
	}

	p, redirectURL, err := s.payUC.Initiate(r.Context(), id.UserID, req.Amount, req.Currency, req.Description)
	if err != nil {
		s.writeDomainError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, checkoutResponse{
		Success:              true,
		PaymentTransactionID: p.ID,
		RedirectURL:          redirectURL,
		Amount:               p.Amount,
		Currency:             p.Currency,
		Status:               "PENDING",
	})
}

type confirmRequest struct {
	TransactionID    string `json:"transactionId" validate:"required"`
	SubscriptionType string `json:"subscriptionType" validate:"required,oneof=driver_monthly rider_monthly"`
}

type confirmResponse struct {
	Success              bool   `json:"success"`
	AlreadyProcessed     bool   `json:"alreadyProcessed,omitempty"`
	PaymentTransactionID string `json:"paymentTransactionId"`
	SubscriptionID       string `json:"subscriptionId"`
	Amount               int64  `json:"amount,omitempty"`
	Currency             string `json:"currency,omitempty"`
	Status               string `json:"status"`
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "", "")
		return
	}

	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error(), "")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error(), "")
		return
	}

	out, err := s.payUC.Confirm(r.Context(), id.UserID, req.TransactionID, req.SubscriptionType)
	if err != nil {
		s.writeDomainError(r.Context(), w, err)
		return
	}

	resp := confirmResponse{
		Success:              true,
		AlreadyProcessed:     out.AlreadyProcessed,
		PaymentTransactionID: out.Payment.ID,
		SubscriptionID:       out.SubscriptionID,
		Status:               "completed",
	}
	if !out.AlreadyProcessed {
		resp.Amount = out.Payment.Amount
		resp.Currency = out.Payment.Currency
	}
	writeJSON(w, http.StatusOK, resp)
}

type subscriptionResponse struct {
	Active         bool   `json:"active"`
	SubscriptionID string `json:"subscriptionId,omitempty"`
	PlanType       string `json:"planType,omitempty"`
	StartAt        string `json:"startAt,omitempty"`
	EndAt          string `json:"endAt,omitempty"`
}

// handleSubscription reports whether the caller currently holds an unexpired
// access window.
func (s *Server) handleSubscription(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "", "")
		return
	}

	sub, err := s.payUC.ActiveSubscription(r.Context(), id.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusOK, subscriptionResponse{Active: false})
			return
		}
		s.writeDomainError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, subscriptionResponse{
		Active:         true,
		SubscriptionID: sub.ID,
		PlanType:       sub.PlanType,
		StartAt:        sub.StartAt.UTC().Format(time.RFC3339),
		EndAt:          sub.EndAt.UTC().Format(time.RFC3339),
	})
}

type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, details, code string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code, Details: details})
}

// writeDomainError maps domain errors onto the HTTP taxonomy. Top-level
// messages are stable documented strings; raw detail stays in "details".
func (s *Server) writeDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, "invalid request", err.Error(), "")
	case errors.Is(err, domain.ErrGatewayLookup):
		writeError(w, http.StatusBadRequest, "transaction could not be verified with the payment provider", err.Error(), "")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized", "", "")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found", err.Error(), "")
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "transaction already claimed by another account", "", "")
	case errors.Is(err, domain.ErrAmountMismatch):
		writeError(w, http.StatusUnprocessableEntity, "paid amount does not match the subscription price", err.Error(), "AMOUNT_MISMATCH")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "too many confirmation attempts", "", "")
	case errors.Is(err, domain.ErrGatewayUnavailable):
		logging.With(ctx, s.log).Error().Err(err).Msg("payment gateway unavailable")
		writeError(w, http.StatusInternalServerError, "payment provider is unavailable, retry later", "", "")
	case errors.Is(err, domain.ErrPriceNotConfigured):
		logging.With(ctx, s.log).Error().Err(err).Msg("pricing misconfiguration")
		writeError(w, http.StatusInternalServerError, "subscription pricing is not configured", "", "")
	default:
		logging.With(ctx, s.log).Error().Err(err).Msg("unexpected error")
		writeError(w, http.StatusInternalServerError, "internal server error", "", "")
	}
}
