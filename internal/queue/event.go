// Package queue defines message payloads exchanged over the message broker.
package queue

// NotificationQueue is the durable queue carrying outbound
// notifications from the scheduling engine to the delivery consumer.
const NotificationQueue = "shift.notifications"

// NotificationEvent is an email-like message emitted by the engine on
// shift publish and on commitment status changes.  Delivery is
// fire-and-forget: the consumer records it, and a lost or failed
// notification never affects the state transition that produced it.
type NotificationEvent struct {
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
	SentAt     string   `json:"sent_at"`
}
