// Package queue defines the auth events exchanged over RabbitMQ and the
// publisher and consumer that move them.
package queue

import "time"

// AuthEventsQueue is the durable queue every auth event is routed to.
const AuthEventsQueue = "auth.events"

// EventType names what happened to an account.
type EventType string

const (
	EventUserRegistered         EventType = "user.registered"
	EventPasswordResetRequested EventType = "password.reset_requested"
	EventPasswordChanged        EventType = "password.changed"
)

// Event is published after an account changes state. It carries enough for
// downstream consumers (mail delivery, audit) to act without querying the
// primary database. ResetToken is only set on password.reset_requested.
type Event struct {
	Type       EventType  `json:"type"`
	UserID     uint64     `json:"user_id"`
	Email      string     `json:"email"`
	ResetToken string     `json:"reset_token,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}
