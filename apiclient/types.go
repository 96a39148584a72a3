package apiclient

import "github.com/hauswerk/go-admin-auth/session"

// ApprovalStatus is the server-reported state of a push-approval challenge.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// LoginRequest carries the credentials for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the three-way login answer: a full session (token + user),
// or a two-factor demand, or an error message. The server decides which
// fields are present.
type LoginResponse struct {
	AccessToken         string        `json:"access_token,omitempty"`
	User                *session.User `json:"user,omitempty"`
	RequiresTwoFactor   bool          `json:"requiresTwoFactor,omitempty"`
	UsePushNotification bool          `json:"usePushNotification,omitempty"`
	RequestID           string        `json:"requestId,omitempty"`
	Message             string        `json:"message,omitempty"`
}

// Authenticated reports whether the response carries a complete session.
// Partial presence (token without user or vice versa) counts as not
// authenticated.
func (r *LoginResponse) Authenticated() bool {
	return r.AccessToken != "" && r.User != nil && r.User.ID != ""
}

// VerifyCodeRequest carries the emailed code for POST /auth/verify-2fa.
type VerifyCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// VerifyCodeResponse is returned on successful code verification.
type VerifyCodeResponse struct {
	AccessToken string        `json:"access_token"`
	User        *session.User `json:"user"`
}

// StatusRequest identifies the push challenge for POST /auth/check-2fa-status.
type StatusRequest struct {
	Email     string `json:"email"`
	RequestID string `json:"requestId"`
}

// StatusResponse reports the challenge status. Token and user are only
// populated once the status is approved.
type StatusResponse struct {
	Status      ApprovalStatus `json:"status"`
	AccessToken string         `json:"access_token,omitempty"`
	User        *session.User  `json:"user,omitempty"`
}

// ResendRequest asks the server to send a fresh code for POST /auth/resend-code.
type ResendRequest struct {
	Email string `json:"email"`
}

// ResendResponse acknowledges a resend.
type ResendResponse struct {
	Message string `json:"message"`
}
