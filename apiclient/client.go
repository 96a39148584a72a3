package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	loginPath      = "/auth/login"
	verifyCodePath = "/auth/verify-2fa"
	checkStatus    = "/auth/check-2fa-status"
	resendCodePath = "/auth/resend-code"

	defaultRequestTimeout = 15 * time.Second
)

// Client calls the platform's authentication endpoints. It owns no flow
// state; the login coordinator and the approval poller drive it.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// Option modifies the Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client (primarily for testing).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the client's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// New creates a Client for the platform at baseURL.
func New(baseURL string, options ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("[apiclient.New] baseURL is required")
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		log:        zerolog.Nop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Login submits credentials and returns the server's three-way answer.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var resp LoginResponse
	if err := c.postJSON(ctx, loginPath, LoginRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, errors.Wrap(err, "[Client.Login]")
	}
	return &resp, nil
}

// VerifyCode submits an emailed code for an email-code challenge.
func (c *Client) VerifyCode(ctx context.Context, email, code string) (*VerifyCodeResponse, error) {
	var resp VerifyCodeResponse
	if err := c.postJSON(ctx, verifyCodePath, VerifyCodeRequest{Email: email, Code: code}, &resp); err != nil {
		return nil, errors.Wrap(err, "[Client.VerifyCode]")
	}
	return &resp, nil
}

// CheckApprovalStatus queries the state of a push-approval challenge.
func (c *Client) CheckApprovalStatus(ctx context.Context, email, requestID string) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.postJSON(ctx, checkStatus, StatusRequest{Email: email, RequestID: requestID}, &resp); err != nil {
		return nil, errors.Wrap(err, "[Client.CheckApprovalStatus]")
	}
	return &resp, nil
}

// ResendCode asks the server to deliver a fresh code for an email-code
// challenge.
func (c *Client) ResendCode(ctx context.Context, email string) (*ResendResponse, error) {
	var resp ResendResponse
	if err := c.postJSON(ctx, resendCodePath, ResendRequest{Email: email}, &resp); err != nil {
		return nil, errors.Wrap(err, "[Client.ResendCode]")
	}
	return &resp, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug().Str("path", path).Err(err).Msg("request failed")
		return errors.Wrapf(ErrTransport, "%s: %v", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.log.Debug().
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(started)).
		Msg("platform request")

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Wrapf(ErrTransport, "%s: reading response: %v", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: serverMessage(raw)}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrapf(err, "%s: malformed response", path)
	}
	return nil
}

// serverMessage pulls the conventional {"message": "..."} field out of an
// error body, tolerating bodies that are not JSON at all.
func serverMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	return body.Message
}
