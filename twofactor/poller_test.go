package twofactor_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hauswerk/go-admin-auth/apiclient"
	"github.com/hauswerk/go-admin-auth/twofactor"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// scriptedChecker plays back a fixed sequence of status answers, then keeps
// repeating the last one. A nil entry simulates a transport error.
type scriptedChecker struct {
	mu      sync.Mutex
	script  []checkResult
	calls   int
	blockCh chan struct{} // when set, checks block until the channel closes
}

type checkResult struct {
	status apiclient.ApprovalStatus
	err    error
}

func (sc *scriptedChecker) CheckApprovalStatus(ctx context.Context, email, requestID string) (*apiclient.StatusResponse, error) {
	sc.mu.Lock()
	idx := sc.calls
	if idx >= len(sc.script) {
		idx = len(sc.script) - 1
	}
	result := sc.script[idx]
	sc.calls++
	block := sc.blockCh
	sc.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if result.err != nil {
		return nil, result.err
	}
	return &apiclient.StatusResponse{Status: result.status}, nil
}

func (sc *scriptedChecker) callCount() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.calls
}

func pending() checkResult {
	return checkResult{status: apiclient.ApprovalPending}
}

func newTestPoller(t *testing.T, checker twofactor.StatusChecker, options ...twofactor.PollerOption) *twofactor.Poller {
	t.Helper()

	defaults := []twofactor.PollerOption{
		twofactor.WithInterval(5 * time.Millisecond),
		twofactor.WithTimeout(time.Second),
	}
	p, err := twofactor.NewPoller(checker, append(defaults, options...)...)
	require.NoError(t, err)
	return p
}

func awaitOutcome(t *testing.T, h *twofactor.Handle) (twofactor.Outcome, bool) {
	t.Helper()

	select {
	case outcome, ok := <-h.Outcome():
		return outcome, ok
	case <-time.After(5 * time.Second):
		t.Fatal("no outcome within deadline")
		return "", false
	}
}

func TestPoller_ApprovedOnThirdCheck(t *testing.T) {
	checker := &scriptedChecker{script: []checkResult{
		pending(),
		pending(),
		{status: apiclient.ApprovalApproved},
	}}

	h := newTestPoller(t, checker).Start(context.Background(), "admin@example.com", "r1")

	outcome, ok := awaitOutcome(t, h)
	require.True(t, ok)
	require.Equal(t, twofactor.OutcomeApproved, outcome)

	// Channel closes after the single delivery: exactly once, structurally.
	_, open := <-h.Outcome()
	require.False(t, open)

	<-h.Done()
	require.Equal(t, 3, checker.callCount())
}

func TestPoller_Rejected(t *testing.T) {
	checker := &scriptedChecker{script: []checkResult{
		pending(),
		{status: apiclient.ApprovalRejected},
	}}

	h := newTestPoller(t, checker).Start(context.Background(), "admin@example.com", "r1")

	outcome, ok := awaitOutcome(t, h)
	require.True(t, ok)
	require.Equal(t, twofactor.OutcomeRejected, outcome)
}

func TestPoller_Timeout(t *testing.T) {
	checker := &scriptedChecker{script: []checkResult{pending()}}

	p, err := twofactor.NewPoller(checker,
		twofactor.WithInterval(5*time.Millisecond),
		twofactor.WithTimeout(40*time.Millisecond),
	)
	require.NoError(t, err)

	h := p.Start(context.Background(), "admin@example.com", "r1")

	outcome, ok := awaitOutcome(t, h)
	require.True(t, ok)
	require.Equal(t, twofactor.OutcomeTimedOut, outcome)

	<-h.Done()
	// No further checks once the deadline has fired.
	settledCalls := checker.callCount()
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, settledCalls, checker.callCount())
}

func TestPoller_TransportErrorsAreNotTerminal(t *testing.T) {
	checker := &scriptedChecker{script: []checkResult{
		{err: errors.New("connection refused")},
		{err: errors.New("connection refused")},
		{status: apiclient.ApprovalApproved},
	}}

	h := newTestPoller(t, checker).Start(context.Background(), "admin@example.com", "r1")

	outcome, ok := awaitOutcome(t, h)
	require.True(t, ok)
	require.Equal(t, twofactor.OutcomeApproved, outcome)

	<-h.Done()

	var observed int
	for range h.Errors() {
		observed++
	}
	require.Equal(t, 2, observed)
}

func TestPoller_ConsecutiveErrorCap(t *testing.T) {
	checker := &scriptedChecker{script: []checkResult{{err: errors.New("unreachable")}}}

	p, err := twofactor.NewPoller(checker,
		twofactor.WithInterval(2*time.Millisecond),
		twofactor.WithTimeout(10*time.Second),
		twofactor.WithErrorLimit(3),
	)
	require.NoError(t, err)

	h := p.Start(context.Background(), "admin@example.com", "r1")

	outcome, ok := awaitOutcome(t, h)
	require.True(t, ok)
	require.Equal(t, twofactor.OutcomeFailed, outcome)

	<-h.Done()
	require.Equal(t, 3, checker.callCount())
}

func TestPoller_CancelSuppressesLateResponse(t *testing.T) {
	block := make(chan struct{})
	checker := &scriptedChecker{
		script:  []checkResult{{status: apiclient.ApprovalApproved}},
		blockCh: block,
	}

	h := newTestPoller(t, checker).Start(context.Background(), "admin@example.com", "r1")

	// Wait for the first check to be in flight, then cancel underneath it.
	require.Eventually(t, func() bool { return checker.callCount() > 0 }, time.Second, time.Millisecond)
	h.Cancel()
	close(block)

	_, ok := awaitOutcome(t, h)
	require.False(t, ok, "cancelled session must not deliver an outcome")
	<-h.Done()
}

func TestPoller_DoubleCancelIsIdempotent(t *testing.T) {
	checker := &scriptedChecker{script: []checkResult{pending()}}

	h := newTestPoller(t, checker).Start(context.Background(), "admin@example.com", "r1")

	h.Cancel()
	h.Cancel()

	_, ok := awaitOutcome(t, h)
	require.False(t, ok)
	<-h.Done()
}

func TestPoller_ParentContextCancellation(t *testing.T) {
	checker := &scriptedChecker{script: []checkResult{pending()}}

	ctx, cancel := context.WithCancel(context.Background())
	h := newTestPoller(t, checker).Start(ctx, "admin@example.com", "r1")

	cancel()

	_, ok := awaitOutcome(t, h)
	require.False(t, ok)
	<-h.Done()
}

func TestNewPoller_Misconfiguration(t *testing.T) {
	checker := &scriptedChecker{script: []checkResult{pending()}}

	tests := []struct {
		name    string
		options []twofactor.PollerOption
	}{
		{
			name:    "interval equals timeout",
			options: []twofactor.PollerOption{twofactor.WithInterval(time.Second), twofactor.WithTimeout(time.Second)},
		},
		{
			name:    "interval above timeout",
			options: []twofactor.PollerOption{twofactor.WithInterval(2 * time.Second), twofactor.WithTimeout(time.Second)},
		},
		{
			name:    "zero interval",
			options: []twofactor.PollerOption{twofactor.WithInterval(0)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := twofactor.NewPoller(checker, tt.options...)
			require.Error(t, err)
		})
	}
}

func TestNewPoller_RequiresChecker(t *testing.T) {
	_, err := twofactor.NewPoller(nil)
	require.Error(t, err)
}
