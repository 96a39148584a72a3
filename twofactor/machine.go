package twofactor

// Phase is where the login flow currently stands with respect to the second
// factor. PhaseNone is the zero value, so State{} is the initial state; it
// doubles as the rest state after any resolution.
type Phase string

const (
	PhaseNone             Phase = ""
	PhaseAwaitingCode     Phase = "awaiting-code"
	PhaseAwaitingApproval Phase = "awaiting-approval"
)

// State is the full two-factor flow state. It is a value; Reduce never
// mutates its input.
type State struct {
	Phase     Phase
	Challenge *Challenge

	// RejectedNotice is set when a push approval was rejected and the user
	// has not yet seen the notice. It self-clears via EventNoticeShown.
	RejectedNotice bool
}

// Event is something that happened to the flow. The set is closed; the
// rendering layer subscribes to the resulting State and never drives
// transitions directly.
type Event interface {
	isEvent()
}

// EventChallengeIssued enters the waiting phase matching the challenge kind.
type EventChallengeIssued struct {
	Challenge Challenge
}

// EventCodeVerified resolves an email-code challenge successfully.
type EventCodeVerified struct{}

// EventCodeRejected records a failed code attempt. The challenge stays
// pending and the user may retry.
type EventCodeRejected struct{}

// EventApprovalGranted resolves a push challenge as approved.
type EventApprovalGranted struct{}

// EventApprovalRejected resolves a push challenge as rejected. A one-shot
// notice is raised for the user.
type EventApprovalRejected struct{}

// EventApprovalTimedOut resolves a push challenge silently after the
// polling deadline.
type EventApprovalTimedOut struct{}

// EventCancelled is the user abandoning the challenge ("back to login").
type EventCancelled struct{}

// EventNoticeShown clears the rejected notice once it has been displayed.
type EventNoticeShown struct{}

func (EventChallengeIssued) isEvent()  {}
func (EventCodeVerified) isEvent()     {}
func (EventCodeRejected) isEvent()     {}
func (EventApprovalGranted) isEvent()  {}
func (EventApprovalRejected) isEvent() {}
func (EventApprovalTimedOut) isEvent() {}
func (EventCancelled) isEvent()        {}
func (EventNoticeShown) isEvent()      {}

// Reduce applies an event to a state and returns the next state. Events that
// make no sense in the current phase are ignored, which is what makes the
// machine forward-only: once a challenge has resolved to PhaseNone, stale
// poller or code results cannot re-enter a waiting phase.
func Reduce(s State, e Event) State {
	switch ev := e.(type) {
	case EventChallengeIssued:
		if s.Phase != PhaseNone {
			return s
		}
		next := s
		challenge := ev.Challenge
		challenge.Status = StatusPending
		next.Challenge = &challenge
		if challenge.Kind == KindPushApproval {
			next.Phase = PhaseAwaitingApproval
		} else {
			next.Phase = PhaseAwaitingCode
		}
		return next

	case EventCodeVerified:
		if s.Phase != PhaseAwaitingCode {
			return s
		}
		return resolved(s, false)

	case EventCodeRejected:
		// Resubmission does not change state.
		return s

	case EventApprovalGranted:
		if s.Phase != PhaseAwaitingApproval {
			return s
		}
		return resolved(s, false)

	case EventApprovalRejected:
		if s.Phase != PhaseAwaitingApproval {
			return s
		}
		return resolved(s, true)

	case EventApprovalTimedOut:
		if s.Phase != PhaseAwaitingApproval {
			return s
		}
		return resolved(s, false)

	case EventCancelled:
		if s.Phase == PhaseNone {
			return s
		}
		return resolved(s, false)

	case EventNoticeShown:
		next := s
		next.RejectedNotice = false
		return next
	}
	return s
}

func resolved(s State, notice bool) State {
	return State{
		Phase:          PhaseNone,
		Challenge:      nil,
		RejectedNotice: s.RejectedNotice || notice,
	}
}
