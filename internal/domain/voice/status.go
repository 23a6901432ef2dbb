package voice

import "persona-call-golang/constants"

// Status is the voice session state. Exactly one value at a time,
// owned by the Controller.
type Status string

const (
	StatusIdle       Status = constants.SessionStatusIdle
	StatusListening  Status = constants.SessionStatusListening
	StatusSpeaking   Status = constants.SessionStatusSpeaking
	StatusProcessing Status = constants.SessionStatusProcessing
	StatusError      Status = constants.SessionStatusError
)

func (s Status) String() string {
	return string(s)
}

// busy reports whether a new recording may not start in this state.
func (s Status) busy() bool {
	return s == StatusListening || s == StatusSpeaking || s == StatusProcessing
}
