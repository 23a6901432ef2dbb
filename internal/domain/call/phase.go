package call

import "persona-call-golang/constants"

// Phase is the call experience state. Monotonic; conversation is
// terminal once entered.
type Phase string

const (
	PhaseConnecting   Phase = constants.CallPhaseConnecting
	PhaseLoadingVideo Phase = constants.CallPhaseLoadingVideo
	PhasePlayingVideo Phase = constants.CallPhasePlayingVideo
	PhaseConversation Phase = constants.CallPhaseConversation
)

func (p Phase) String() string {
	return string(p)
}

// Readiness reflects backend availability as seen by the poller.
type Readiness string

const (
	ReadinessChecking     Readiness = constants.ReadinessChecking
	ReadinessReady        Readiness = constants.ReadinessReady
	ReadinessInitializing Readiness = constants.ReadinessInitializing
	ReadinessError        Readiness = constants.ReadinessError
)

func (r Readiness) String() string {
	return string(r)
}
