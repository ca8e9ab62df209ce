package model

import "time"

// WebhookLog is an append-only audit row for every inbound gateway callback,
// written regardless of the reconciliation outcome. Never read back by the
// reconciliation logic.
type WebhookLog struct {
	ID            string // UUID
	MerchantTxID  string
	GatewayTxID   string
	ResultCode    string
	ResultMessage string
	RawPayload    []byte
	ReceivedAt    time.Time
}
