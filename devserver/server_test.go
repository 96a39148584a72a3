package devserver_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/hauswerk/go-admin-auth/apiclient"
	"github.com/hauswerk/go-admin-auth/devserver"
	"github.com/hauswerk/go-admin-auth/internal/config"
	"github.com/hauswerk/go-admin-auth/login"
	"github.com/hauswerk/go-admin-auth/session/storefakes"
	"github.com/hauswerk/go-admin-auth/twofactor"
)

// capturingSender records issued codes instead of mailing them.
type capturingSender struct {
	mu    sync.Mutex
	codes map[string]string
}

func (cs *capturingSender) SendCode(email, code string) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.codes[email] = code
	return nil
}

func (cs *capturingSender) lastCode(email string) string {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.codes[email]
}

type integrationFixture struct {
	srv    *httptest.Server
	sender *capturingSender
	store  *storefakes.FakeStore
	coord  *login.Coordinator
}

func setupIntegration(t *testing.T) *integrationFixture {
	t.Helper()

	cfg := &config.Config{Env: "DEV", JWTSecret: "test-secret"}
	sender := &capturingSender{codes: make(map[string]string)}

	server, err := devserver.New(cfg, zerolog.Nop(), devserver.WithCodeSender(sender))
	require.NoError(t, err)

	srv := httptest.NewServer(server)
	t.Cleanup(srv.Close)

	client, err := apiclient.New(srv.URL)
	require.NoError(t, err)

	poller, err := twofactor.NewPoller(client,
		twofactor.WithInterval(10*time.Millisecond),
		twofactor.WithTimeout(5*time.Second),
	)
	require.NoError(t, err)

	store := storefakes.NewFakeStore()
	coord, err := login.NewCoordinator(client, store, login.WithPoller(poller))
	require.NoError(t, err)

	return &integrationFixture{srv: srv, sender: sender, store: store, coord: coord}
}

func TestIntegration_DirectLogin(t *testing.T) {
	f := setupIntegration(t)

	result, err := f.coord.SubmitCredentials(context.Background(), "concierge@hauswerk.dev", "concierge123")
	require.NoError(t, err)
	require.NotNil(t, result.Session)
	require.Equal(t, "u-concierge", result.Session.User.ID)
	require.NotEmpty(t, result.Session.Token)

	stored, err := f.store.Get()
	require.NoError(t, err)
	require.Equal(t, result.Session.Token, stored.Token)
}

func TestIntegration_InvalidCredentials(t *testing.T) {
	f := setupIntegration(t)

	_, err := f.coord.SubmitCredentials(context.Background(), "concierge@hauswerk.dev", "wrong-password")
	require.ErrorIs(t, err, login.ErrLoginFailed)
	require.Contains(t, err.Error(), "invalid credentials")
}

func TestIntegration_EmailCodeFlow(t *testing.T) {
	f := setupIntegration(t)

	result, err := f.coord.SubmitCredentials(context.Background(), "manager@hauswerk.dev", "manager123")
	require.NoError(t, err)
	require.Equal(t, twofactor.KindEmailCode, result.Challenge.Kind)

	code := f.sender.lastCode("manager@hauswerk.dev")
	require.Len(t, code, 6)

	s, err := f.coord.SubmitCode(context.Background(), code)
	require.NoError(t, err)
	require.Equal(t, "u-manager", s.User.ID)

	// A consumed code cannot be replayed; the challenge is gone anyway.
	_, err = f.coord.SubmitCode(context.Background(), code)
	require.ErrorIs(t, err, login.ErrNoChallenge)
}

func TestIntegration_EmailCodeResend(t *testing.T) {
	f := setupIntegration(t)

	_, err := f.coord.SubmitCredentials(context.Background(), "manager@hauswerk.dev", "manager123")
	require.NoError(t, err)

	first := f.sender.lastCode("manager@hauswerk.dev")

	msg, err := f.coord.ResendCode(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, msg)

	second := f.sender.lastCode("manager@hauswerk.dev")
	require.Len(t, second, 6)

	// The first code is superseded.
	if first != second {
		_, err = f.coord.SubmitCode(context.Background(), first)
		require.Error(t, err)
	}

	s, err := f.coord.SubmitCode(context.Background(), second)
	require.NoError(t, err)
	require.Equal(t, "u-manager", s.User.ID)
}

func TestIntegration_WrongCodeKeepsChallenge(t *testing.T) {
	f := setupIntegration(t)

	_, err := f.coord.SubmitCredentials(context.Background(), "manager@hauswerk.dev", "manager123")
	require.NoError(t, err)

	_, err = f.coord.SubmitCode(context.Background(), "000000")
	if err == nil {
		// One-in-a-million collision with the issued code.
		t.Skip("generated code happened to be 000000")
	}
	require.Contains(t, err.Error(), "invalid or expired code")
	require.Equal(t, twofactor.PhaseAwaitingCode, f.coord.State().Phase)

	s, err := f.coord.SubmitCode(context.Background(), f.sender.lastCode("manager@hauswerk.dev"))
	require.NoError(t, err)
	require.Equal(t, "u-manager", s.User.ID)
}

func resolveChallenge(t *testing.T, baseURL, requestID, action string) {
	t.Helper()

	url := fmt.Sprintf("%s/admin/challenges/%s/%s", baseURL, requestID, action)
	resp, err := http.Post(url, "application/json", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestIntegration_PushApprovalFlow(t *testing.T) {
	f := setupIntegration(t)

	result, err := f.coord.SubmitCredentials(context.Background(), "admin@hauswerk.dev", "admin123")
	require.NoError(t, err)
	require.Equal(t, twofactor.KindPushApproval, result.Challenge.Kind)
	require.NotEmpty(t, result.Challenge.RequestID)

	// The "registered device" approves shortly after a few pending polls.
	go func() {
		time.Sleep(50 * time.Millisecond)
		resolveChallenge(t, f.srv.URL, result.Challenge.RequestID, "approve")
	}()

	s, err := f.coord.AwaitApproval(context.Background())
	require.NoError(t, err)
	require.Equal(t, "u-admin", s.User.ID)
	require.NotEmpty(t, s.Token)

	stored, err := f.store.Get()
	require.NoError(t, err)
	require.Equal(t, s.Token, stored.Token)
}

func TestIntegration_PushRejectedFlow(t *testing.T) {
	f := setupIntegration(t)

	result, err := f.coord.SubmitCredentials(context.Background(), "admin@hauswerk.dev", "admin123")
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		resolveChallenge(t, f.srv.URL, result.Challenge.RequestID, "reject")
	}()

	_, err = f.coord.AwaitApproval(context.Background())
	require.ErrorIs(t, err, login.ErrApprovalRejected)
	require.True(t, f.coord.State().RejectedNotice)
	require.Zero(t, f.store.SetCalls)
}

func TestIntegration_ResolveIsFirstWriterWins(t *testing.T) {
	cfg := &config.Config{Env: "DEV", JWTSecret: "test-secret"}
	server, err := devserver.New(cfg, zerolog.Nop())
	require.NoError(t, err)

	srv := httptest.NewServer(server)
	t.Cleanup(srv.Close)

	client, err := apiclient.New(srv.URL)
	require.NoError(t, err)

	resp, err := client.Login(context.Background(), "admin@hauswerk.dev", "admin123")
	require.NoError(t, err)

	resolveChallenge(t, srv.URL, resp.RequestID, "approve")

	// A second resolution must not overwrite the first.
	url := fmt.Sprintf("%s/admin/challenges/%s/reject", srv.URL, resp.RequestID)
	rejectResp, err := http.Post(url, "application/json", nil)
	require.NoError(t, err)
	defer func() { _ = rejectResp.Body.Close() }()
	require.Equal(t, http.StatusNotFound, rejectResp.StatusCode)

	status, err := client.CheckApprovalStatus(context.Background(), "admin@hauswerk.dev", resp.RequestID)
	require.NoError(t, err)
	require.Equal(t, apiclient.ApprovalApproved, status.Status)
}
