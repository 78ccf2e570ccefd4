package services

import "context"

// Notifier delivers a push notification to one recipient. Delivery is
// at-least-once, best-effort: implementations return an error for
// logging but callers never let a failed send block a state transition.
type Notifier interface {
	Send(ctx context.Context, recipientID, title, body string, data map[string]string) error
}
