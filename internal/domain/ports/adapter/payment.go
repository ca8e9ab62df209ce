package adapter

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// CheckoutPayload is the provider-specific payload encrypted into the
// redirect token. MerchantTxID is our PaymentTransaction id; the gateway
// echoes it back on the callback so the attempt can be located.
type CheckoutPayload struct {
	MerchantTxID string `json:"merchantTransactionId"`
	MerchantID   string `json:"merchantId"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Description  string `json:"description"`
}

// LookupResult is the transaction record returned by the gateway's
// lookup-by-id endpoint. Raw preserves the unparsed body for audit.
type LookupResult struct {
	TransactionID string
	Amount        decimal.Decimal
	Currency      string
	Status        string
	Reference     string
	Receipt       string
	CreatedAt     time.Time
	Raw           []byte
}

// PaymentGateway is the outbound port to the payment provider.
type PaymentGateway interface {
	Name() string

	// SessionToken returns a cached, unexpired session token, refreshing it
	// against the provider's login endpoint when needed.
	SessionToken(ctx context.Context) (string, error)

	// LookupTransaction fetches a transaction by gateway id. A transaction
	// that exists but is not in "successful" state is a lookup failure:
	// callers must not proceed to activation.
	LookupTransaction(ctx context.Context, transactionID string) (*LookupResult, error)

	// CheckoutURL encrypts the payload and formats the redirect URL the
	// client is sent to for out-of-band payment.
	CheckoutURL(payload CheckoutPayload) (string, error)
}
