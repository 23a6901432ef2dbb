package voice

import (
	"context"
	"io"
)

// CaptureConfig describes the PCM stream a capture device produces.
type CaptureConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string // capture backend hint, e.g. pulse/alsa/avfoundation
	InputDevice string
}

func (c CaptureConfig) withDefaults() CaptureConfig {
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.Channels <= 0 {
		c.Channels = 1
	}
	return c
}

// Capture acquires the microphone. At most one CaptureSession may be
// open at a time; the Controller enforces this.
type Capture interface {
	Start(ctx context.Context, cfg CaptureConfig) (CaptureSession, error)
}

// CaptureSession streams raw s16le PCM until stopped. Stop releases the
// underlying device and makes Read return io.EOF.
type CaptureSession interface {
	io.Reader
	Stop() error
}
