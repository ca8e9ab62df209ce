package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"   // redirected to gateway; awaiting callback or confirmation
	PaymentStatusCompleted PaymentStatus = "completed" // gateway reported success and subscription was granted
	PaymentStatusFailed    PaymentStatus = "failed"    // gateway reported a non-zero result code
)

// PaymentTransaction records one attempt to pay for a subscription.
// Its ID doubles as the merchant-side correlation id handed to the gateway,
// so inbound callbacks can be matched back to the originating attempt.
type PaymentTransaction struct {
	ID             string // ULID; merchant correlation id
	UserID         string
	Amount         int64 // whole GYD, integer to avoid float errors
	Currency       string
	Method         string        // e.g. "mmg"
	Status         PaymentStatus // see constants above
	GatewayTxID    *string       // gateway transaction id, nil until reported
	GatewayRef     *string       // gateway reference / receipt
	InitiatedAt    time.Time
	CompletedAt    *time.Time // set on terminal transition
	RawResponse    []byte     // opaque gateway payload kept for audit/dispute
	SubscriptionID *string    // set when a subscription was granted
	ErrorMessage   *string    // gateway failure message, if any
	Description    string
}

// Terminal reports whether no further status transition is allowed.
func (p *PaymentTransaction) Terminal() bool {
	return p.Status == PaymentStatusCompleted || p.Status == PaymentStatusFailed
}
