package login

import "github.com/pkg/errors"

// Error values surfaced by the coordinator. Validation errors never reach
// the network; everything the server rejects during credential submission is
// folded into ErrLoginFailed with the server's message attached.
var (
	// ErrLoginFailed is the single failure signal for credential submission:
	// invalid credentials, transport failure, and malformed responses are
	// reported identically, per the platform's UX contract.
	ErrLoginFailed = errors.New("login failed")

	// ErrValidation marks locally rejected input; no network call was made.
	ErrValidation = errors.New("validation failed")

	// ErrNoChallenge is returned when a code/resend/approval operation is
	// invoked without a matching challenge in flight.
	ErrNoChallenge = errors.New("no two-factor challenge in progress")

	// ErrResendThrottled is returned while the resend countdown is running.
	ErrResendThrottled = errors.New("resend is cooling down")

	// ErrApprovalRejected is returned when the push challenge was rejected
	// on the registered device.
	ErrApprovalRejected = errors.New("login request was rejected")

	// ErrApprovalTimedOut is returned when the polling deadline passed with
	// the challenge still pending.
	ErrApprovalTimedOut = errors.New("login request timed out")

	// ErrApprovalCancelled is returned when the challenge was cancelled
	// before resolving.
	ErrApprovalCancelled = errors.New("login request was cancelled")

	// ErrApprovalUnavailable is returned when polling aborted because the
	// platform stayed unreachable past the consecutive-error cap.
	ErrApprovalUnavailable = errors.New("could not reach the platform to check approval")
)
