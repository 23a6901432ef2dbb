package constants

// Session status values owned by the voice session controller.
const (
	SessionStatusIdle       = "idle"
	SessionStatusListening  = "listening"
	SessionStatusSpeaking   = "speaking"
	SessionStatusProcessing = "processing"
	SessionStatusError      = "error"
)

// Call phases owned by the call flow orchestrator.
const (
	CallPhaseConnecting   = "connecting"
	CallPhaseLoadingVideo = "loading-video"
	CallPhasePlayingVideo = "playing-video"
	CallPhaseConversation = "conversation"
)

// System readiness as reported by readiness polling.
const (
	ReadinessChecking     = "checking"
	ReadinessReady        = "ready"
	ReadinessInitializing = "initializing"
	ReadinessError        = "error"
)

// Backend status strings on the wire.
const (
	BackendStatusReady        = "ready"
	BackendStatusInProgress   = "in_progress"
	BackendStatusSuccess      = "success"
	BackendStatusError        = "error"
	BackendStatusInitializing = "initializing"
)

// Chat message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Conversation input modes.
const (
	InputModeVoice = "voice"
	InputModeText  = "text"
)
