package twofactor

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/hauswerk/go-admin-auth/apiclient"
)

// Outcome is the single terminal result of one polling session.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
	OutcomeTimedOut Outcome = "timed-out"

	// OutcomeFailed is reached only when the consecutive-error cap trips;
	// see WithErrorLimit.
	OutcomeFailed Outcome = "failed"
)

const (
	defaultInterval   = 2 * time.Second
	defaultTimeout    = 120 * time.Second
	defaultErrorLimit = 10
)

// StatusChecker is the slice of the platform client the poller needs.
type StatusChecker interface {
	CheckApprovalStatus(ctx context.Context, email, requestID string) (*apiclient.StatusResponse, error)
}

// Poller repeatedly checks a push-approval challenge until the server
// reports a terminal status or the deadline passes. Checks are issued
// strictly serially: the next check is scheduled only once the previous
// one has settled, so a slow response can never race a later one.
type Poller struct {
	checker    StatusChecker
	interval   time.Duration
	timeout    time.Duration
	errorLimit int
	log        zerolog.Logger
}

// PollerOption modifies a Poller.
type PollerOption func(*Poller)

// WithInterval sets the polling period (default 2s).
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		p.interval = d
	}
}

// WithTimeout sets the absolute polling deadline (default 120s).
func WithTimeout(d time.Duration) PollerOption {
	return func(p *Poller) {
		p.timeout = d
	}
}

// WithErrorLimit caps consecutive transport errors before the session aborts
// with OutcomeFailed. Zero disables the cap, restoring poll-until-deadline
// behaviour against an unreachable server.
func WithErrorLimit(n int) PollerOption {
	return func(p *Poller) {
		p.errorLimit = n
	}
}

// WithPollerLogger sets the poller's logger.
func WithPollerLogger(log zerolog.Logger) PollerOption {
	return func(p *Poller) {
		p.log = log
	}
}

// NewPoller creates a Poller. The interval must be positive and strictly
// smaller than the timeout, otherwise no check would ever run.
func NewPoller(checker StatusChecker, options ...PollerOption) (*Poller, error) {
	if checker == nil {
		return nil, errors.New("[NewPoller] checker is required")
	}

	p := &Poller{
		checker:    checker,
		interval:   defaultInterval,
		timeout:    defaultTimeout,
		errorLimit: defaultErrorLimit,
		log:        zerolog.Nop(),
	}
	for _, opt := range options {
		opt(p)
	}

	if p.interval <= 0 {
		return nil, errors.New("[NewPoller] interval must be positive")
	}
	if p.interval >= p.timeout {
		return nil, errors.New("[NewPoller] interval must be smaller than timeout")
	}
	return p, nil
}

// Handle is one running polling session. Exactly one value is ever sent on
// Outcome(); Cancel() suppresses delivery entirely, including for a check
// whose response is already in flight.
type Handle struct {
	mu      sync.Mutex
	settled bool

	outcomeCh chan Outcome
	errCh     chan error
	stop      context.CancelFunc
	done      chan struct{}
}

// Outcome delivers the terminal result. The channel is closed after the
// single send, or without a send when the session was cancelled.
func (h *Handle) Outcome() <-chan Outcome {
	return h.outcomeCh
}

// Errors is the side channel for non-terminal transport errors observed
// between checks. It is closed when the session ends. Receiving from it is
// optional; sends never block the polling loop.
func (h *Handle) Errors() <-chan error {
	return h.errCh
}

// Cancel stops the session. It is idempotent and safe to call concurrently
// with a check in flight: once Cancel returns, no outcome will be delivered.
func (h *Handle) Cancel() {
	h.settle(nil)
}

// Done is closed once the polling goroutine has fully exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// settle delivers the terminal outcome, or cancels when outcome is nil.
// First caller wins; every later call is a no-op.
func (h *Handle) settle(outcome *Outcome) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.settled {
		return
	}
	h.settled = true
	if outcome != nil {
		h.outcomeCh <- *outcome
	}
	close(h.outcomeCh)
	h.stop()
}

// Start begins polling the challenge identified by requestID and email. The
// parent context bounds the whole session; cancelling it is equivalent to
// calling Cancel on the handle.
func (p *Poller) Start(ctx context.Context, email, requestID string) *Handle {
	ctx, cancel := context.WithCancel(ctx)

	h := &Handle{
		outcomeCh: make(chan Outcome, 1),
		errCh:     make(chan error, 16),
		stop:      cancel,
		done:      make(chan struct{}),
	}

	go p.run(ctx, h, email, requestID)
	return h
}

func (p *Poller) run(ctx context.Context, h *Handle, email, requestID string) {
	defer close(h.done)
	defer close(h.errCh)
	defer h.stop()

	deadline := time.NewTimer(p.timeout)
	defer deadline.Stop()

	tick := time.NewTimer(p.interval)
	defer tick.Stop()

	consecutiveErrs := 0

	for {
		select {
		case <-ctx.Done():
			// Cancelled: mark settled so no outcome can be delivered later.
			h.settle(nil)
			return

		case <-deadline.C:
			p.log.Debug().Str("request_id", requestID).Msg("approval polling deadline reached")
			h.settle(outcomePtr(OutcomeTimedOut))
			return

		case <-tick.C:
			status, err := p.check(ctx, email, requestID)
			if err != nil {
				if ctx.Err() != nil {
					h.settle(nil)
					return
				}
				consecutiveErrs++
				p.log.Debug().Err(err).Int("consecutive", consecutiveErrs).Msg("approval check failed")
				select {
				case h.errCh <- err:
				default:
				}
				if p.errorLimit > 0 && consecutiveErrs >= p.errorLimit {
					h.settle(outcomePtr(OutcomeFailed))
					return
				}
				tick.Reset(p.interval)
				continue
			}

			consecutiveErrs = 0
			switch status {
			case apiclient.ApprovalApproved:
				h.settle(outcomePtr(OutcomeApproved))
				return
			case apiclient.ApprovalRejected:
				h.settle(outcomePtr(OutcomeRejected))
				return
			default:
				tick.Reset(p.interval)
			}
		}
	}
}

func (p *Poller) check(ctx context.Context, email, requestID string) (apiclient.ApprovalStatus, error) {
	// Each check gets its own deadline so one hung request cannot absorb the
	// whole polling window.
	checkCtx, cancel := context.WithTimeout(ctx, p.interval*2)
	defer cancel()

	resp, err := p.checker.CheckApprovalStatus(checkCtx, email, requestID)
	if err != nil {
		return "", err
	}
	return resp.Status, nil
}

func outcomePtr(o Outcome) *Outcome {
	return &o
}
