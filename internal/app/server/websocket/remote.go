package websocket

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"sync"

	"persona-call-golang/internal/data/msg"
	"persona-call-golang/internal/domain/call"
	"persona-call-golang/internal/domain/voice"
)

// remoteCapture is the browser's microphone seen through the
// websocket: the client records PCM and streams it as binary frames.
type remoteCapture struct {
	mu     sync.Mutex
	active *remoteCaptureSession
}

func newRemoteCapture() *remoteCapture {
	return &remoteCapture{}
}

func (c *remoteCapture) Start(ctx context.Context, cfg voice.CaptureConfig) (voice.CaptureSession, error) {
	s := &remoteCaptureSession{data: make(chan []byte, 64)}
	c.mu.Lock()
	prev := c.active
	c.active = s
	c.mu.Unlock()
	if prev != nil {
		_ = prev.Stop()
	}
	return s, nil
}

// Feed delivers one binary audio frame to the active session. Frames
// arriving outside a recording are dropped.
func (c *remoteCapture) Feed(chunk []byte) {
	c.mu.Lock()
	s := c.active
	c.mu.Unlock()
	if s != nil {
		s.feed(chunk)
	}
}

type remoteCaptureSession struct {
	mu       sync.Mutex
	data     chan []byte
	leftover []byte
	closed   bool
}

func (s *remoteCaptureSession) feed(chunk []byte) {
	cp := make([]byte, len(chunk))
	copy(cp, chunk)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.data <- cp:
	default:
		// Consumer stalled; drop rather than block the read loop.
	}
}

func (s *remoteCaptureSession) Read(p []byte) (int, error) {
	if len(s.leftover) > 0 {
		n := copy(p, s.leftover)
		s.leftover = s.leftover[n:]
		return n, nil
	}
	chunk, ok := <-s.data
	if !ok {
		return 0, io.EOF
	}
	n := copy(p, chunk)
	if n < len(chunk) {
		s.leftover = chunk[n:]
	}
	return n, nil
}

func (s *remoteCaptureSession) Stop() error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.data)
	}
	s.mu.Unlock()
	return nil
}

// forwardPlayer ships synthesized answers to the browser for playback.
// Completion comes back as a playback_ended intent; starting a new
// playback silently supersedes the previous completion callback.
type forwardPlayer struct {
	mu    sync.Mutex
	send  func(*msg.ServerMessage)
	muted bool
	done  func(error)
}

func newForwardPlayer(send func(*msg.ServerMessage)) *forwardPlayer {
	return &forwardPlayer{send: send}
}

func (p *forwardPlayer) Play(mp3Data []byte, done func(err error)) error {
	p.mu.Lock()
	p.done = done
	muted := p.muted
	p.mu.Unlock()

	p.send(&msg.ServerMessage{
		Type:        msg.ServerMessageTypeAudio,
		AudioBase64: base64.StdEncoding.EncodeToString(mp3Data),
		Muted:       muted,
	})
	return nil
}

// PlaybackEnded resolves the pending playback, if still current.
func (p *forwardPlayer) PlaybackEnded() {
	p.mu.Lock()
	done := p.done
	p.done = nil
	p.mu.Unlock()
	if done != nil {
		done(nil)
	}
}

func (p *forwardPlayer) Stop() {
	p.mu.Lock()
	p.done = nil
	p.mu.Unlock()
}

func (p *forwardPlayer) SetMuted(muted bool) {
	p.mu.Lock()
	p.muted = muted
	p.mu.Unlock()
}

func (p *forwardPlayer) Muted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.muted
}

func (p *forwardPlayer) Close() error {
	p.Stop()
	return nil
}

// remoteVideo is the browser's intro-video element: load/play commands
// go out, media events come back as video_event intents.
type remoteVideo struct {
	mu      sync.Mutex
	send    func(*msg.ServerMessage)
	handler call.VideoHandler
}

func newRemoteVideo(send func(*msg.ServerMessage)) *remoteVideo {
	return &remoteVideo{send: send}
}

func (v *remoteVideo) Load(ref string, h call.VideoHandler) {
	v.mu.Lock()
	v.handler = h
	v.mu.Unlock()
	v.send(&msg.ServerMessage{
		Type:     msg.ServerMessageTypeVideoControl,
		Command:  msg.VideoControlLoad,
		VideoRef: ref,
	})
}

func (v *remoteVideo) Play() {
	v.send(&msg.ServerMessage{
		Type:    msg.ServerMessageTypeVideoControl,
		Command: msg.VideoControlPlay,
	})
}

func (v *remoteVideo) handleEvent(event string, progress float64) {
	v.mu.Lock()
	h := v.handler
	v.mu.Unlock()
	if h == nil {
		return
	}
	switch event {
	case msg.VideoEventProgress:
		h.VideoProgress(progress)
	case msg.VideoEventCanPlayThrough:
		h.VideoReady()
	case msg.VideoEventEnded:
		h.VideoEnded()
	case msg.VideoEventError:
		h.VideoError(errors.New("video load failed"))
	}
}
