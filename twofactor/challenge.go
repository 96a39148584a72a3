// Package twofactor implements the client side of the platform's second
// factor verification: the challenge state machine, the push-approval
// poller, and the resend-code throttle.
package twofactor

import "time"

// Kind distinguishes how a challenge is resolved: a code typed in from an
// email, or an approval action on a separate registered device.
type Kind string

const (
	KindEmailCode    Kind = "email-code"
	KindPushApproval Kind = "push-approval"
)

// Status is the lifecycle state of a challenge. Transitions only move
// forward out of StatusPending; there is no way back from a terminal state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

// Challenge is one in-flight second-factor verification.
type Challenge struct {
	// RequestID identifies the challenge on the server. Only push-approval
	// challenges carry one; email-code challenges are keyed by email alone.
	RequestID string
	Email     string
	Kind      Kind
	CreatedAt time.Time
	Status    Status
}
