// Package notifier defines the outbound contract used after a successful
// persist. Providers are external collaborators; delivery is synchronous
// and best-effort within the request's lifetime.
package notifier

import "context"

// Message is the provider-agnostic payload of one notification.
type Message struct {
	Subject   string
	Body      string
	FromName  string
	FromEmail string
	ToName    string
	ToEmail   string
}

// Notifier delivers a message to an external service. A failure must be
// convertible into a chained, human-readable error.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Subscriber adds an address to an external mailing list, carrying any
// additional submitted fields as merge variables.
type Subscriber interface {
	Subscribe(ctx context.Context, email string, mergeVars map[string]string) error
}
