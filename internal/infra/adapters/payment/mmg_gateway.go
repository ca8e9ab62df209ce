// File: internal/infra/adapters/payment/mmg_gateway.go
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ridehail-backoffice/internal/config"
	"ridehail-backoffice/internal/domain"
	"ridehail-backoffice/internal/domain/ports/adapter"
	"ridehail-backoffice/internal/infra/metrics"
	"ridehail-backoffice/internal/infra/security"
)

var _ adapter.PaymentGateway = (*MMGGateway)(nil)

// tokenExpiryBuffer is subtracted from the gateway's reported expires_in so
// a token is never presented right at its expiry edge.
const tokenExpiryBuffer = 30 * time.Second

// MMGGateway talks to the MMG payment provider: password-grant session
// tokens (cached), transaction lookup by id, and checkout URL construction.
type MMGGateway struct {
	cfg    config.MMGConfig
	codec  *security.Codec
	client *http.Client

	mu      sync.Mutex
	token   string
	expires time.Time
}

func NewMMGGateway(cfg config.MMGConfig, codec *security.Codec) (*MMGGateway, error) {
	if cfg.MerchantID == "" {
		return nil, fmt.Errorf("mmg merchant id empty")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid mmg base url: %w", err)
	}
	return &MMGGateway{
		cfg:    cfg,
		codec:  codec,
		client: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (g *MMGGateway) Name() string { return "mmg" }

// SessionToken returns the cached token while it is still inside the expiry
// buffer, otherwise re-authenticates. Concurrent refreshes may both hit the
// login endpoint; tokens are fungible so last writer wins.
func (g *MMGGateway) SessionToken(ctx context.Context) (string, error) {
	g.mu.Lock()
	if g.token != "" && time.Now().Before(g.expires) {
		tok := g.token
		g.mu.Unlock()
		return tok, nil
	}
	g.mu.Unlock()

	tok, expiresIn, err := g.login(ctx)
	if err != nil {
		return "", err
	}

	g.mu.Lock()
	g.token = tok
	g.expires = time.Now().Add(time.Duration(expiresIn)*time.Second - tokenExpiryBuffer)
	g.mu.Unlock()

	metrics.IncGatewayTokenRefresh()
	return tok, nil
}

func (g *MMGGateway) login(ctx context.Context) (string, int64, error) {
	if g.cfg.Username == "" || g.cfg.Password == "" || g.cfg.APIKey == "" {
		return "", 0, fmt.Errorf("%w: mmg credentials not configured", domain.ErrGatewayAuth)
	}

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("api_key", g.cfg.APIKey)
	form.Set("username", g.cfg.Username)
	form.Set("password", g.cfg.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", domain.ErrGatewayAuth, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", domain.ErrGatewayAuth, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", 0, fmt.Errorf("%w: login http %d: %s", domain.ErrGatewayAuth, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
		TokenType   string `json:"token_type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", 0, fmt.Errorf("%w: decode login response: %v", domain.ErrGatewayAuth, err)
	}
	if out.AccessToken == "" {
		return "", 0, fmt.Errorf("%w: empty access_token", domain.ErrGatewayAuth)
	}
	return out.AccessToken, out.ExpiresIn, nil
}

// LookupTransaction fetches a transaction record by gateway id. A record in
// any state other than "successful" is a lookup failure: the caller must not
// activate on it.
func (g *MMGGateway) LookupTransaction(ctx context.Context, transactionID string) (*adapter.LookupResult, error) {
	tok, err := g.SessionToken(ctx)
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/merchant/transactions/%s", g.cfg.BaseURL, url.PathEscape(transactionID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayLookup, err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("X-Api-Key", g.cfg.APIKey)
	req.Header.Set("X-Merchant-Id", g.cfg.MerchantID)
	req.Header.Set("X-Merchant-Key", g.cfg.MerchantKey)
	req.Header.Set("X-Merchant-Secret", g.cfg.MerchantSecret)
	req.Header.Set("X-Correlation-Id", uuid.NewString())

	resp, err := g.client.Do(req)
	if err != nil {
		metrics.IncGatewayLookup("unavailable")
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		metrics.IncGatewayLookup("unavailable")
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrGatewayUnavailable, err)
	}
	// A 5xx is the gateway failing, not an answer about the transaction.
	if resp.StatusCode >= 500 {
		metrics.IncGatewayLookup("unavailable")
		return nil, fmt.Errorf("%w: lookup http %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.IncGatewayLookup("http_error")
		return nil, fmt.Errorf("%w: lookup http %d", domain.ErrGatewayLookup, resp.StatusCode)
	}

	var out struct {
		TransactionID        string `json:"transactionId"`
		Amount               string `json:"amount"`
		Currency             string `json:"currency"`
		TransactionStatus    string `json:"transactionStatus"`
		TransactionReference string `json:"transactionReference"`
		Receipt              string `json:"receipt"`
		CreationDate         string `json:"creationDate"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		metrics.IncGatewayLookup("decode_error")
		return nil, fmt.Errorf("%w: decode lookup response: %v", domain.ErrGatewayLookup, err)
	}
	if !strings.EqualFold(out.TransactionStatus, "successful") {
		metrics.IncGatewayLookup("not_successful")
		return nil, fmt.Errorf("%w: transaction status %q", domain.ErrGatewayLookup, out.TransactionStatus)
	}
	amount, err := decimal.NewFromString(out.Amount)
	if err != nil {
		metrics.IncGatewayLookup("decode_error")
		return nil, fmt.Errorf("%w: bad amount %q", domain.ErrGatewayLookup, out.Amount)
	}

	var created time.Time
	if out.CreationDate != "" {
		if t, err := time.Parse(time.RFC3339, out.CreationDate); err == nil {
			created = t
		}
	}

	metrics.IncGatewayLookup("ok")
	return &adapter.LookupResult{
		TransactionID: out.TransactionID,
		Amount:        amount,
		Currency:      out.Currency,
		Status:        out.TransactionStatus,
		Reference:     out.TransactionReference,
		Receipt:       out.Receipt,
		CreatedAt:     created,
		Raw:           raw,
	}, nil
}

// CheckoutURL encrypts the payload with the gateway public key and formats
// the redirect URL the client completes payment at.
func (g *MMGGateway) CheckoutURL(payload adapter.CheckoutPayload) (string, error) {
	if payload.MerchantID == "" {
		payload.MerchantID = g.cfg.MerchantID
	}
	tok, err := g.codec.EncryptToken(payload)
	if err != nil {
		return "", fmt.Errorf("encrypt checkout payload: %w", err)
	}
	q := url.Values{}
	q.Set("token", tok)
	q.Set("merchantId", g.cfg.MerchantID)
	return g.cfg.CheckoutURL + "?" + q.Encode(), nil
}
