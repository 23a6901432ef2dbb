package voice

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"sync"

	"persona-call-golang/constants"
	"persona-call-golang/internal/domain/rag"
	log "persona-call-golang/logger"
)

// Backend is the slice of the remote client the controller needs.
type Backend interface {
	SendAudio(ctx context.Context, wavData []byte) (*rag.Response, error)
}

var ErrControllerClosed = errors.New("voice controller closed")

// Controller owns the recording/processing/speaking state machine. It
// mediates between the capture device and the backend and exposes the
// recognized text, the answer text and the error message as
// most-recent-value slots. Consumers that need history must persist
// values themselves before the next exchange.
type Controller struct {
	mu         sync.Mutex
	status     Status
	errMsg     string
	recognized string
	answer     string

	backend    Backend
	capture    Capture
	player     Player
	captureCfg CaptureConfig

	recording *activeRecording
	playGen   int
	closed    bool

	ctx    context.Context
	cancel context.CancelFunc

	onStatus     func(Status)
	onRecognized func(string)
	onAnswer     func(string)
	onError      func(string)
}

type ControllerOption func(*Controller)

func WithCaptureConfig(cfg CaptureConfig) ControllerOption {
	return func(c *Controller) {
		c.captureCfg = cfg
	}
}

func WithOnStatusChange(f func(Status)) ControllerOption {
	return func(c *Controller) {
		c.onStatus = f
	}
}

func WithOnRecognizedText(f func(string)) ControllerOption {
	return func(c *Controller) {
		c.onRecognized = f
	}
}

func WithOnAnswerText(f func(string)) ControllerOption {
	return func(c *Controller) {
		c.onAnswer = f
	}
}

func WithOnError(f func(string)) ControllerOption {
	return func(c *Controller) {
		c.onError = f
	}
}

func NewController(pctx context.Context, backend Backend, capture Capture, player Player, opts ...ControllerOption) *Controller {
	ctx, cancel := context.WithCancel(pctx)
	c := &Controller{
		status:     StatusIdle,
		backend:    backend,
		capture:    capture,
		player:     player,
		captureCfg: CaptureConfig{}.withDefaults(),
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type activeRecording struct {
	session CaptureSession
	buf     bytes.Buffer
	done    chan struct{}
}

// pump drains the capture session into the buffer until the device is
// stopped. The buffer may only be read after done is closed.
func (r *activeRecording) pump() {
	defer close(r.done)
	chunk := make([]byte, 4096)
	for {
		n, err := r.session.Read(chunk)
		if n > 0 {
			r.buf.Write(chunk[:n])
		}
		if err != nil {
			if err != io.EOF {
				log.Debugf("capture read ended: %v", err)
			}
			return
		}
	}
}

// StartRecording acquires the microphone and begins buffering audio.
// It is a no-op while a recording, a backend call, or a playback is in
// progress. A previous error state is cleared.
func (c *Controller) StartRecording(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrControllerClosed
	}
	if c.status.busy() {
		c.mu.Unlock()
		return nil
	}
	c.errMsg = ""
	c.recognized = ""
	c.answer = ""
	c.status = StatusListening
	c.mu.Unlock()
	c.emitStatus(StatusListening)

	session, err := c.capture.Start(ctx, c.captureCfg)
	if err != nil {
		devErr := &DeviceError{Err: err}
		c.fail(devErr)
		return devErr
	}

	rec := &activeRecording{session: session, done: make(chan struct{})}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = session.Stop()
		return ErrControllerClosed
	}
	c.recording = rec
	c.mu.Unlock()

	go rec.pump()
	return nil
}

// StopRecording releases the device and finalizes the captured audio.
// An empty capture transitions straight back to idle without issuing a
// backend call.
func (c *Controller) StopRecording() {
	c.mu.Lock()
	rec := c.recording
	c.recording = nil
	c.mu.Unlock()
	if rec == nil {
		return
	}

	_ = rec.session.Stop()
	<-rec.done

	pcm := rec.buf.Bytes()
	if len(pcm) == 0 {
		c.setStatus(StatusIdle)
		return
	}

	c.setStatus(StatusProcessing)
	go c.processAudio(pcm)
}

func (c *Controller) processAudio(pcm []byte) {
	wavData, err := pcmToWav(pcm, c.captureCfg.SampleRate, c.captureCfg.Channels)
	if err != nil {
		c.fail(err)
		return
	}

	resp, err := c.backend.SendAudio(c.ctx, wavData)
	if err != nil {
		c.fail(err)
		return
	}

	switch resp.Status {
	case constants.BackendStatusSuccess:
		if resp.RecognizedText != "" {
			c.setRecognized(resp.RecognizedText)
		}
		if resp.Answer != "" {
			c.setAnswer(resp.Answer)
		}
		if resp.AudioBase64 != "" {
			_ = c.PlayAnswer(resp.AudioBase64)
		} else {
			c.setStatus(StatusIdle)
		}
	case constants.BackendStatusInitializing:
		c.fail(&rag.BackendNotReadyError{Message: resp.Message})
	default:
		msg := resp.Message
		if msg == "" {
			msg = "request processing failed"
		}
		c.fail(errors.New(msg))
	}
}

// PlayAnswer decodes base64 MP3 audio and plays it, replacing any
// playback already in progress.
func (c *Controller) PlayAnswer(audioBase64 string) error {
	data, err := base64.StdEncoding.DecodeString(audioBase64)
	if err != nil {
		perr := &PlaybackError{Err: err}
		c.fail(perr)
		return perr
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrControllerClosed
	}
	c.playGen++
	gen := c.playGen
	c.status = StatusSpeaking
	c.mu.Unlock()
	c.emitStatus(StatusSpeaking)

	err = c.player.Play(data, func(playErr error) {
		c.mu.Lock()
		if c.closed || gen != c.playGen {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
		if playErr != nil {
			c.fail(&PlaybackError{Err: playErr})
			return
		}
		c.setStatus(StatusIdle)
	})
	if err != nil {
		c.fail(err)
		return err
	}
	return nil
}

// SetMuted affects only playback output, never capture or backend calls.
func (c *Controller) SetMuted(muted bool) {
	c.player.SetMuted(muted)
}

func (c *Controller) ToggleMute() bool {
	muted := !c.player.Muted()
	c.player.SetMuted(muted)
	return muted
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Controller) RecognizedText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recognized
}

func (c *Controller) AnswerText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.answer
}

func (c *Controller) ErrMessage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

func (c *Controller) ClearError() {
	c.mu.Lock()
	c.errMsg = ""
	if c.status == StatusError {
		c.status = StatusIdle
	}
	c.mu.Unlock()
}

// Close stops any active recording, releases the capture device and
// the playback channel. Safe to call on every exit path.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	rec := c.recording
	c.recording = nil
	c.mu.Unlock()

	c.cancel()
	if rec != nil {
		_ = rec.session.Stop()
		<-rec.done
	}
	c.player.Stop()
	return c.player.Close()
}

func (c *Controller) setStatus(s Status) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.status = s
	c.mu.Unlock()
	c.emitStatus(s)
}

func (c *Controller) emitStatus(s Status) {
	if c.onStatus != nil {
		c.onStatus(s)
	}
}

func (c *Controller) setRecognized(text string) {
	c.mu.Lock()
	c.recognized = text
	cb := c.onRecognized
	c.mu.Unlock()
	if cb != nil {
		cb(text)
	}
}

func (c *Controller) setAnswer(text string) {
	c.mu.Lock()
	c.answer = text
	cb := c.onAnswer
	c.mu.Unlock()
	if cb != nil {
		cb(text)
	}
}

func (c *Controller) fail(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.errMsg = err.Error()
	c.status = StatusError
	cb := c.onError
	c.mu.Unlock()

	log.Warnf("voice session error: %v", err)
	c.emitStatus(StatusError)
	if cb != nil {
		cb(err.Error())
	}
}
