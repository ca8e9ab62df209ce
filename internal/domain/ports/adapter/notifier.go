package adapter

import "context"

// Notifier is the outbound port for push notifications. Delivery, batching
// and retries belong to the implementation; this core only fires and logs.
type Notifier interface {
	Send(ctx context.Context, userIDs []string, title, body string) error
}

// NoopNotifier discards notifications. Used in tests and when no push
// provider is configured.
type NoopNotifier struct{}

var _ Notifier = (*NoopNotifier)(nil)

func (NoopNotifier) Send(ctx context.Context, userIDs []string, title, body string) error {
	return nil
}
