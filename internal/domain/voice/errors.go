package voice

import "fmt"

// DeviceError reports a microphone that is unavailable or denied.
type DeviceError struct {
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("microphone access failed: %v", e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// PlaybackError reports a failure to decode or play synthesized audio.
type PlaybackError struct {
	Err error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("audio playback failed: %v", e.Err)
}

func (e *PlaybackError) Unwrap() error {
	return e.Err
}
