// Package publisher defines the event publishing abstraction used to
// announce pipeline milestones, plus the event payloads themselves.
package publisher

import "context"

// Publisher sends one event payload to a topic and returns the broker's
// message id.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}
