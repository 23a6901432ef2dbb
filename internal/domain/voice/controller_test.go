package voice

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persona-call-golang/internal/domain/rag"
)

type fakeCaptureSession struct {
	mu      sync.Mutex
	data    chan []byte
	pending []byte
	stopped bool
}

func newFakeCaptureSession() *fakeCaptureSession {
	return &fakeCaptureSession{data: make(chan []byte, 16)}
}

func (s *fakeCaptureSession) feed(chunk []byte) {
	s.data <- chunk
}

func (s *fakeCaptureSession) Read(p []byte) (int, error) {
	if len(s.pending) > 0 {
		n := copy(p, s.pending)
		s.pending = s.pending[n:]
		return n, nil
	}
	chunk, ok := <-s.data
	if !ok {
		return 0, io.EOF
	}
	n := copy(p, chunk)
	s.pending = chunk[n:]
	return n, nil
}

func (s *fakeCaptureSession) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		s.stopped = true
		close(s.data)
	}
	return nil
}

type fakeCapture struct {
	mu       sync.Mutex
	startErr error
	starts   int
	open     int
	session  *fakeCaptureSession
}

func (c *fakeCapture) Start(ctx context.Context, cfg CaptureConfig) (CaptureSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startErr != nil {
		return nil, c.startErr
	}
	c.starts++
	c.open++
	c.session = newFakeCaptureSession()
	return &countingSession{fakeCaptureSession: c.session, capture: c}, nil
}

func (c *fakeCapture) openSessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

type countingSession struct {
	*fakeCaptureSession
	capture *fakeCapture
	once    sync.Once
}

func (s *countingSession) Stop() error {
	s.once.Do(func() {
		s.capture.mu.Lock()
		s.capture.open--
		s.capture.mu.Unlock()
	})
	return s.fakeCaptureSession.Stop()
}

type fakePlayer struct {
	mu     sync.Mutex
	played [][]byte
	done   func(error)
	muted  bool
	closed bool
}

func (p *fakePlayer) Play(mp3Data []byte, done func(error)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.played = append(p.played, mp3Data)
	p.done = done
	return nil
}

func (p *fakePlayer) finish(err error) {
	p.mu.Lock()
	done := p.done
	p.done = nil
	p.mu.Unlock()
	if done != nil {
		done(err)
	}
}

func (p *fakePlayer) Stop() {
	p.mu.Lock()
	p.done = nil
	p.mu.Unlock()
}

func (p *fakePlayer) SetMuted(muted bool) {
	p.mu.Lock()
	p.muted = muted
	p.mu.Unlock()
}

func (p *fakePlayer) Muted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.muted
}

func (p *fakePlayer) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

type fakeBackend struct {
	mu    sync.Mutex
	calls int
	resp  *rag.Response
	err   error
	block chan struct{}
}

func (b *fakeBackend) SendAudio(ctx context.Context, wavData []byte) (*rag.Response, error) {
	b.mu.Lock()
	b.calls++
	block := b.block
	resp, err := b.resp, b.err
	b.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return resp, err
}

func (b *fakeBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

type controllerEnv struct {
	ctrl     *Controller
	capture  *fakeCapture
	player   *fakePlayer
	backend  *fakeBackend
	statuses chan Status
}

func newControllerEnv(t *testing.T, opts ...ControllerOption) *controllerEnv {
	t.Helper()
	env := &controllerEnv{
		capture:  &fakeCapture{},
		player:   &fakePlayer{},
		backend:  &fakeBackend{},
		statuses: make(chan Status, 32),
	}
	opts = append([]ControllerOption{
		WithOnStatusChange(func(s Status) { env.statuses <- s }),
	}, opts...)
	env.ctrl = NewController(context.Background(), env.backend, env.capture, env.player, opts...)
	t.Cleanup(func() { env.ctrl.Close() })
	return env
}

func (e *controllerEnv) waitStatus(t *testing.T, want Status) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-e.statuses:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for status %q, current %q", want, e.ctrl.Status())
		}
	}
}

func TestRecordingRoundTrip(t *testing.T) {
	env := newControllerEnv(t)
	env.backend.resp = &rag.Response{
		Status:         "success",
		RecognizedText: "what was the landing like",
		Answer:         "one small step",
	}

	require.NoError(t, env.ctrl.StartRecording(context.Background()))
	env.waitStatus(t, StatusListening)
	assert.Equal(t, 1, env.capture.openSessions())

	env.capture.session.feed([]byte{1, 2, 3, 4})
	env.ctrl.StopRecording()
	env.waitStatus(t, StatusProcessing)
	env.waitStatus(t, StatusIdle)

	assert.Equal(t, 1, env.backend.callCount())
	assert.Equal(t, 0, env.capture.openSessions())
	assert.Equal(t, "what was the landing like", env.ctrl.RecognizedText())
	assert.Equal(t, "one small step", env.ctrl.AnswerText())
	assert.Empty(t, env.ctrl.ErrMessage())
}

func TestStartWhileBusyIsNoop(t *testing.T) {
	env := newControllerEnv(t)
	env.backend.resp = &rag.Response{Status: "success"}
	env.backend.block = make(chan struct{})

	require.NoError(t, env.ctrl.StartRecording(context.Background()))
	env.waitStatus(t, StatusListening)

	// second start while listening must not touch the device
	require.NoError(t, env.ctrl.StartRecording(context.Background()))
	assert.Equal(t, 1, env.capture.starts)
	assert.Equal(t, StatusListening, env.ctrl.Status())

	env.capture.session.feed([]byte{9, 9})
	env.ctrl.StopRecording()
	env.waitStatus(t, StatusProcessing)

	// and the same while the backend call is in flight
	require.NoError(t, env.ctrl.StartRecording(context.Background()))
	assert.Equal(t, 1, env.capture.starts)
	assert.Equal(t, StatusProcessing, env.ctrl.Status())

	close(env.backend.block)
	env.waitStatus(t, StatusIdle)
}

func TestEmptyRecordingSkipsBackend(t *testing.T) {
	env := newControllerEnv(t)

	require.NoError(t, env.ctrl.StartRecording(context.Background()))
	env.waitStatus(t, StatusListening)

	env.ctrl.StopRecording()
	env.waitStatus(t, StatusIdle)

	assert.Equal(t, 0, env.backend.callCount())
	assert.Equal(t, 0, env.capture.openSessions())
	assert.Empty(t, env.ctrl.ErrMessage())
}

func TestStopWhileListeningReleasesDevice(t *testing.T) {
	env := newControllerEnv(t)

	require.NoError(t, env.ctrl.StartRecording(context.Background()))
	env.waitStatus(t, StatusListening)
	env.ctrl.StopRecording()
	env.waitStatus(t, StatusIdle)

	assert.Equal(t, 0, env.capture.openSessions())

	// a fresh recording can start immediately
	require.NoError(t, env.ctrl.StartRecording(context.Background()))
	env.waitStatus(t, StatusListening)
	assert.Equal(t, 2, env.capture.starts)
}

func TestDeviceAcquisitionFailure(t *testing.T) {
	env := newControllerEnv(t)
	env.capture.startErr = errors.New("device busy")

	err := env.ctrl.StartRecording(context.Background())
	require.Error(t, err)
	var devErr *DeviceError
	assert.ErrorAs(t, err, &devErr)

	env.waitStatus(t, StatusError)
	assert.NotEmpty(t, env.ctrl.ErrMessage())
	assert.Equal(t, 0, env.backend.callCount())

	// a later attempt clears the error state
	env.capture.startErr = nil
	require.NoError(t, env.ctrl.StartRecording(context.Background()))
	env.waitStatus(t, StatusListening)
	assert.Empty(t, env.ctrl.ErrMessage())
}

func TestBackendInitializing(t *testing.T) {
	env := newControllerEnv(t)
	env.backend.resp = &rag.Response{Status: "initializing", Message: "index is loading"}

	require.NoError(t, env.ctrl.StartRecording(context.Background()))
	env.waitStatus(t, StatusListening)
	env.capture.session.feed([]byte{1, 2})
	env.ctrl.StopRecording()

	env.waitStatus(t, StatusError)
	assert.NotEmpty(t, env.ctrl.ErrMessage())
	assert.Contains(t, env.ctrl.ErrMessage(), "index is loading")
	// no recognized text or answer is surfaced in this case
	assert.Empty(t, env.ctrl.RecognizedText())
	assert.Empty(t, env.ctrl.AnswerText())
}

func TestBackendNetworkError(t *testing.T) {
	env := newControllerEnv(t)
	env.backend.err = &rag.NetworkError{Op: "speech-to-text", Timeout: true}

	require.NoError(t, env.ctrl.StartRecording(context.Background()))
	env.waitStatus(t, StatusListening)
	env.capture.session.feed([]byte{1})
	env.ctrl.StopRecording()

	env.waitStatus(t, StatusError)
	assert.NotEmpty(t, env.ctrl.ErrMessage())
}

func TestAnswerPlayback(t *testing.T) {
	env := newControllerEnv(t)
	audio := base64.StdEncoding.EncodeToString([]byte("mp3-bytes"))
	env.backend.resp = &rag.Response{
		Status:      "success",
		Answer:      "the eagle has landed",
		AudioBase64: audio,
	}

	require.NoError(t, env.ctrl.StartRecording(context.Background()))
	env.waitStatus(t, StatusListening)
	env.capture.session.feed([]byte{5, 6})
	env.ctrl.StopRecording()

	env.waitStatus(t, StatusSpeaking)
	env.player.mu.Lock()
	require.Len(t, env.player.played, 1)
	assert.Equal(t, []byte("mp3-bytes"), env.player.played[0])
	env.player.mu.Unlock()

	env.player.finish(nil)
	env.waitStatus(t, StatusIdle)
}

func TestNewPlaybackSupersedesPrevious(t *testing.T) {
	env := newControllerEnv(t)

	first := base64.StdEncoding.EncodeToString([]byte("first"))
	second := base64.StdEncoding.EncodeToString([]byte("second"))

	require.NoError(t, env.ctrl.PlayAnswer(first))
	env.waitStatus(t, StatusSpeaking)
	env.player.mu.Lock()
	staleDone := env.player.done
	env.player.mu.Unlock()

	require.NoError(t, env.ctrl.PlayAnswer(second))

	// the superseded playback completing must not change state
	staleDone(nil)
	assert.Equal(t, StatusSpeaking, env.ctrl.Status())

	env.player.finish(nil)
	env.waitStatus(t, StatusIdle)
}

func TestPlayAnswerRejectsBadBase64(t *testing.T) {
	env := newControllerEnv(t)

	err := env.ctrl.PlayAnswer("!!! not base64 !!!")
	require.Error(t, err)
	var perr *PlaybackError
	assert.ErrorAs(t, err, &perr)
	env.waitStatus(t, StatusError)
}

func TestMuteDoesNotInterruptCapture(t *testing.T) {
	env := newControllerEnv(t)

	require.NoError(t, env.ctrl.StartRecording(context.Background()))
	env.waitStatus(t, StatusListening)

	assert.True(t, env.ctrl.ToggleMute())
	assert.True(t, env.player.Muted())
	assert.Equal(t, StatusListening, env.ctrl.Status())
	assert.Equal(t, 1, env.capture.openSessions())

	assert.False(t, env.ctrl.ToggleMute())
	assert.False(t, env.player.Muted())
}

func TestCloseReleasesEverything(t *testing.T) {
	env := newControllerEnv(t)

	require.NoError(t, env.ctrl.StartRecording(context.Background()))
	env.waitStatus(t, StatusListening)

	require.NoError(t, env.ctrl.Close())
	assert.Equal(t, 0, env.capture.openSessions())
	assert.True(t, env.player.closed)

	assert.ErrorIs(t, env.ctrl.StartRecording(context.Background()), ErrControllerClosed)
	// Close is idempotent
	require.NoError(t, env.ctrl.Close())
}

func TestClearError(t *testing.T) {
	env := newControllerEnv(t)
	env.capture.startErr = errors.New("no such device")

	_ = env.ctrl.StartRecording(context.Background())
	env.waitStatus(t, StatusError)

	env.ctrl.ClearError()
	assert.Equal(t, StatusIdle, env.ctrl.Status())
	assert.Empty(t, env.ctrl.ErrMessage())
}
