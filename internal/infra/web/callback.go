package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"ridehail-backoffice/internal/domain"
	"ridehail-backoffice/internal/domain/model"
	"ridehail-backoffice/internal/infra/logging"
	"ridehail-backoffice/internal/infra/metrics"
	"ridehail-backoffice/internal/usecase"
)

// callbackPayload is the decrypted token body the gateway posts back after
// checkout. Field casing follows the gateway's wire format.
type callbackPayload struct {
	MerchantTxID  string `json:"merchantTransactionId"`
	GatewayTxID   string `json:"transactionId"`
	ResultCode    string `json:"ResultCode"`
	ResultMessage string `json:"ResultMessage"`
	HTMLResponse  string `json:"htmlResponse,omitempty"`
}

// handleCallback is the gateway-facing result endpoint. The gateway delivers
// at least once and may use GET or POST, so the token is accepted from the
// query string or the form body.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		_ = r.ParseForm()
		token = r.PostFormValue("TOKEN")
	}
	if token == "" {
		metrics.IncCallback("bad_token")
		writeError(w, http.StatusBadRequest, "missing callback token", "", "")
		return
	}

	var payload callbackPayload
	if err := s.codec.DecryptToken(token, &payload); err != nil {
		metrics.IncCallback("bad_token")
		s.log.Warn().Err(err).Msg("undecryptable callback token")
		writeError(w, http.StatusBadRequest, "invalid callback token", "", "")
		return
	}
	if payload.MerchantTxID == "" {
		metrics.IncCallback("bad_token")
		writeError(w, http.StatusBadRequest, "invalid callback token", "callback token has no merchant transaction id", "")
		return
	}

	ctx := logging.WithPaymentID(r.Context(), payload.MerchantTxID)
	log := logging.With(ctx, s.log)

	// Audit first, reconcile second. The log write is best effort; a broken
	// audit table must not block payment finalization.
	raw, _ := json.Marshal(payload)
	if err := s.webhooks.Append(ctx, nil, &model.WebhookLog{
		ID:            uuid.NewString(),
		MerchantTxID:  payload.MerchantTxID,
		GatewayTxID:   payload.GatewayTxID,
		ResultCode:    payload.ResultCode,
		ResultMessage: payload.ResultMessage,
		RawPayload:    raw,
		ReceivedAt:    time.Now(),
	}); err != nil {
		metrics.IncWebhookLogFailure()
		log.Error().Err(err).Msg("webhook audit write failed")
	}

	out, err := s.payUC.Reconcile(ctx, usecase.ReconcileInput{
		MerchantTxID:  payload.MerchantTxID,
		GatewayTxID:   payload.GatewayTxID,
		ResultCode:    payload.ResultCode,
		ResultMessage: payload.ResultMessage,
		Raw:           raw,
		Source:        "callback",
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.IncCallback("unknown_transaction")
			s.redirectFailure(w, r, payload, "unknown transaction")
			return
		}
		metrics.IncCallback("error")
		// A plain 500 instead of a redirect: the gateway redelivers on
		// non-2xx, which is the right outcome for a transient failure here.
		log.Error().Err(err).Msg("callback reconciliation failed")
		writeError(w, http.StatusInternalServerError, "internal server error", "", "")
		return
	}

	if out.Payment.Status == model.PaymentStatusCompleted {
		metrics.IncCallback("success")
		q := url.Values{}
		q.Set("transactionId", payload.GatewayTxID)
		q.Set("paymentId", payload.MerchantTxID)
		http.Redirect(w, r, s.redirects.Success+"?"+q.Encode(), http.StatusSeeOther)
		return
	}

	metrics.IncCallback("failure")
	s.redirectFailure(w, r, payload, out.FailureReason)
}

func (s *Server) redirectFailure(w http.ResponseWriter, r *http.Request, payload callbackPayload, reason string) {
	q := url.Values{}
	q.Set("transactionId", payload.GatewayTxID)
	q.Set("paymentId", payload.MerchantTxID)
	if reason != "" {
		q.Set("reason", reason)
	}
	http.Redirect(w, r, s.redirects.Failure+"?"+q.Encode(), http.StatusSeeOther)
}
