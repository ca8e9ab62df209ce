package model

import "time"

type SubscriptionStatus string

const (
	SubscriptionStatusActive SubscriptionStatus = "active"
)

// SubscriptionWindow is the fixed access window granted per successful
// payment. Not negotiable by input.
const SubscriptionWindow = 30 * 24 * time.Hour

// Subscription is a granted access window, created exactly once per
// successful reconciliation and never mutated by this core afterwards.
type Subscription struct {
	ID         string // ULID
	UserID     string
	Role       Role // role snapshot at grant time
	PlanType   string
	Amount     int64
	Currency   string
	StartAt    time.Time
	EndAt      time.Time // StartAt + SubscriptionWindow
	Status     SubscriptionStatus
	Method     string
	PaymentRef string // gateway transaction id
	PaidAt     time.Time
}
