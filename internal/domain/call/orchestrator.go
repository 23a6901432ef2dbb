package call

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"persona-call-golang/constants"
	"persona-call-golang/internal/domain/rag"
	"persona-call-golang/internal/domain/voice"
	log "persona-call-golang/logger"
)

// Backend is the slice of the remote client the orchestrator needs.
type Backend interface {
	GetStatus(ctx context.Context) (*rag.StatusResponse, error)
	Initialize(ctx context.Context) (*rag.InitializeResponse, error)
	AskQuestion(ctx context.Context, question string) (*rag.Response, error)
	GetSttLanguages(ctx context.Context) *rag.SttLanguages
	GetTtsVoices(ctx context.Context) *rag.TtsVoices
}

// VoiceSession is the slice of the voice controller the orchestrator
// drives.
type VoiceSession interface {
	StartRecording(ctx context.Context) error
	StopRecording()
	PlayAnswer(audioBase64 string) error
	SetMuted(muted bool)
	ToggleMute() bool
	Status() voice.Status
	Close() error
}

var (
	ErrTextPending  = errors.New("a text submission is already in flight")
	ErrNotReady     = errors.New("system is not ready")
	ErrEmptyMessage = errors.New("empty message")
	ErrCallEnded    = errors.New("call ended")
)

// Default timings, matching the web client's behavior.
const (
	defaultPollInterval   = 2 * time.Second
	defaultInitRecheck    = 1 * time.Second
	defaultVideoPlayDelay = 500 * time.Millisecond
	defaultAutoRecDelay   = 2 * time.Second
)

// Events are the orchestrator's outbound notifications. All callbacks
// are optional and called outside internal locks.
type Events struct {
	OnPhaseChange     func(Phase)
	OnReadinessChange func(readiness Readiness, errMsg string)
	OnMessage         func(ChatMessage)
	OnVideoProgress   func(percent float64)
}

// Orchestrator sequences one call: connecting, readiness polling, intro
// video, then the conversation. It merges voice-session events and
// typed text input into a single transcript.
type Orchestrator struct {
	mu sync.Mutex

	phase         Phase
	readiness     Readiness
	connectionErr string
	videoProgress float64
	mode          string
	textPending   bool
	ended         bool

	persona  string
	videoRef string

	backend   Backend
	voiceSess VoiceSession
	video     VideoSource
	scheduler Scheduler
	events    Events

	transcript *Transcript

	pollInterval   time.Duration
	initRecheck    time.Duration
	videoPlayDelay time.Duration
	autoRecDelay   time.Duration
	autoRecord     bool

	pollTimer   Timer
	videoTimer  Timer
	recordTimer Timer

	ctx    context.Context
	cancel context.CancelFunc
}

type Option func(*Orchestrator)

// WithScheduler injects a clock; tests use a fake one.
func WithScheduler(s Scheduler) Option {
	return func(o *Orchestrator) {
		o.scheduler = s
	}
}

func WithEvents(ev Events) Option {
	return func(o *Orchestrator) {
		o.events = ev
	}
}

// WithAutoRecord controls whether a recording is started automatically
// after the greeting. A failed auto-start surfaces the same device
// error as a manual one.
func WithAutoRecord(enabled bool) Option {
	return func(o *Orchestrator) {
		o.autoRecord = enabled
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.pollInterval = d
	}
}

func WithTimings(initRecheck, videoPlayDelay, autoRecDelay time.Duration) Option {
	return func(o *Orchestrator) {
		o.initRecheck = initRecheck
		o.videoPlayDelay = videoPlayDelay
		o.autoRecDelay = autoRecDelay
	}
}

func New(pctx context.Context, persona, videoRef string, backend Backend, voiceSess VoiceSession, video VideoSource, opts ...Option) *Orchestrator {
	ctx, cancel := context.WithCancel(pctx)
	o := &Orchestrator{
		phase:          PhaseConnecting,
		readiness:      ReadinessChecking,
		mode:           constants.InputModeVoice,
		persona:        persona,
		videoRef:       videoRef,
		backend:        backend,
		voiceSess:      voiceSess,
		video:          video,
		scheduler:      NewScheduler(),
		pollInterval:   defaultPollInterval,
		initRecheck:    defaultInitRecheck,
		videoPlayDelay: defaultVideoPlayDelay,
		autoRecDelay:   defaultAutoRecDelay,
		autoRecord:     true,
		ctx:            ctx,
		cancel:         cancel,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.transcript = NewTranscript(o.events.OnMessage)
	return o
}

// Start runs the first readiness check. Subsequent polls are scheduled
// strictly after the previous one resolves, so no two status requests
// are ever outstanding at once.
func (o *Orchestrator) Start() {
	o.checkSystemStatus()
}

func (o *Orchestrator) checkSystemStatus() {
	if o.isEnded() {
		return
	}
	o.setReadiness(ReadinessChecking, "")

	status, err := o.backend.GetStatus(o.ctx)
	if err != nil {
		o.setReadiness(ReadinessError, err.Error())
		return
	}

	switch status.Status {
	case constants.BackendStatusReady:
		o.setReadiness(ReadinessReady, "")
		o.mu.Lock()
		advance := o.phase == PhaseConnecting
		o.mu.Unlock()
		if advance {
			o.startVideoLoading()
		}
	case constants.BackendStatusInProgress:
		o.setReadiness(ReadinessInitializing, "")
		o.mu.Lock()
		if !o.ended {
			o.pollTimer = o.scheduler.AfterFunc(o.pollInterval, o.checkSystemStatus)
		}
		o.mu.Unlock()
	default:
		o.setReadiness(ReadinessError, "system is not ready")
	}
}

// RetryStatus re-polls readiness after an error.
func (o *Orchestrator) RetryStatus() {
	o.checkSystemStatus()
}

// InitializeSystem asks the backend to initialize, then re-checks
// readiness shortly after.
func (o *Orchestrator) InitializeSystem() {
	if o.isEnded() {
		return
	}
	o.setReadiness(ReadinessInitializing, "")

	if _, err := o.backend.Initialize(o.ctx); err != nil {
		o.setReadiness(ReadinessError, err.Error())
		return
	}
	o.mu.Lock()
	if !o.ended {
		o.pollTimer = o.scheduler.AfterFunc(o.initRecheck, o.checkSystemStatus)
	}
	o.mu.Unlock()
}

func (o *Orchestrator) startVideoLoading() {
	o.mu.Lock()
	if o.ended || o.phase != PhaseConnecting {
		o.mu.Unlock()
		return
	}
	o.phase = PhaseLoadingVideo
	o.videoProgress = 0
	o.mu.Unlock()
	o.emitPhase(PhaseLoadingVideo)

	o.video.Load(o.videoRef, o)
}

// VideoProgress implements VideoHandler.
func (o *Orchestrator) VideoProgress(percent float64) {
	o.mu.Lock()
	o.videoProgress = percent
	cb := o.events.OnVideoProgress
	o.mu.Unlock()
	if cb != nil {
		cb(percent)
	}
}

// VideoReady implements VideoHandler. Playback starts after a short
// delay for a smooth transition.
func (o *Orchestrator) VideoReady() {
	o.VideoProgress(100)
	o.mu.Lock()
	if o.ended || o.phase != PhaseLoadingVideo {
		o.mu.Unlock()
		return
	}
	o.videoTimer = o.scheduler.AfterFunc(o.videoPlayDelay, o.startVideoPlayback)
	o.mu.Unlock()
}

func (o *Orchestrator) startVideoPlayback() {
	o.mu.Lock()
	if o.ended || o.phase != PhaseLoadingVideo {
		o.mu.Unlock()
		return
	}
	o.phase = PhasePlayingVideo
	o.mu.Unlock()
	o.emitPhase(PhasePlayingVideo)
	o.video.Play()
}

// VideoEnded implements VideoHandler.
func (o *Orchestrator) VideoEnded() {
	o.enterConversation()
}

// VideoError implements VideoHandler. The video is cosmetic: on any
// load failure the call proceeds straight to the conversation, greeting
// included, with no error surfaced.
func (o *Orchestrator) VideoError(err error) {
	log.Warnf("intro video failed, skipping: %v", err)
	o.enterConversation()
}

func (o *Orchestrator) enterConversation() {
	o.mu.Lock()
	if o.ended || o.phase == PhaseConversation {
		o.mu.Unlock()
		return
	}
	o.phase = PhaseConversation
	autoRecord := o.autoRecord
	o.mu.Unlock()
	o.emitPhase(PhaseConversation)

	o.transcript.Append(constants.RoleAssistant, o.greeting(), false)

	if autoRecord {
		o.mu.Lock()
		if !o.ended {
			o.recordTimer = o.scheduler.AfterFunc(o.autoRecDelay, o.autoStartRecording)
		}
		o.mu.Unlock()
	}
}

func (o *Orchestrator) greeting() string {
	return fmt.Sprintf("I am %s. Ask me anything about space and my missions.", o.persona)
}

func (o *Orchestrator) autoStartRecording() {
	o.mu.Lock()
	ok := !o.ended && o.readiness == ReadinessReady && o.mode == constants.InputModeVoice
	o.mu.Unlock()
	if !ok {
		return
	}
	if err := o.voiceSess.StartRecording(o.ctx); err != nil {
		log.Warnf("auto record start failed: %v", err)
	}
}

// ToggleMicrophone starts or stops a recording during the conversation.
func (o *Orchestrator) ToggleMicrophone() {
	o.mu.Lock()
	ok := !o.ended && o.readiness == ReadinessReady && o.phase == PhaseConversation
	o.mu.Unlock()
	if !ok {
		return
	}
	if o.voiceSess.Status() == voice.StatusListening {
		o.voiceSess.StopRecording()
		return
	}
	_ = o.voiceSess.StartRecording(o.ctx)
}

// StopRecording stops an active recording, sending what was captured.
func (o *Orchestrator) StopRecording() {
	o.voiceSess.StopRecording()
}

// StartRecording starts a recording during the conversation.
func (o *Orchestrator) StartRecording() error {
	o.mu.Lock()
	ok := !o.ended && o.readiness == ReadinessReady && o.phase == PhaseConversation
	o.mu.Unlock()
	if !ok {
		return ErrNotReady
	}
	return o.voiceSess.StartRecording(o.ctx)
}

// HandleRecognizedText appends the user's recognized speech to the
// transcript. Wired to the voice controller's recognized-text event.
func (o *Orchestrator) HandleRecognizedText(text string) {
	if o.inConversation() && text != "" {
		o.transcript.Append(constants.RoleUser, text, true)
	}
}

// HandleAnswerText appends the assistant's spoken answer to the
// transcript. Wired to the voice controller's answer-text event.
func (o *Orchestrator) HandleAnswerText(text string) {
	if o.inConversation() && text != "" {
		o.transcript.Append(constants.RoleAssistant, text, true)
	}
}

// SendText submits a typed question. The user message is appended
// immediately; the assistant message is appended when the backend call
// resolves. Submissions are serialized: a second one is rejected while
// the first is in flight.
func (o *Orchestrator) SendText(text string) error {
	question := strings.TrimSpace(text)
	if question == "" {
		return ErrEmptyMessage
	}

	o.mu.Lock()
	if o.ended {
		o.mu.Unlock()
		return ErrCallEnded
	}
	if o.readiness != ReadinessReady {
		o.mu.Unlock()
		return ErrNotReady
	}
	if o.textPending {
		o.mu.Unlock()
		return ErrTextPending
	}
	o.textPending = true
	o.mu.Unlock()

	o.transcript.Append(constants.RoleUser, question, false)

	go o.processTextQuestion(question)
	return nil
}

func (o *Orchestrator) processTextQuestion(question string) {
	defer func() {
		o.mu.Lock()
		o.textPending = false
		o.mu.Unlock()
	}()

	resp, err := o.backend.AskQuestion(o.ctx, question)
	if err != nil {
		log.Warnf("text question failed: %v", err)
		o.transcript.Append(constants.RoleAssistant, "An error occurred while processing the question", false)
		return
	}

	if resp.Status == constants.BackendStatusSuccess && resp.Answer != "" {
		o.transcript.Append(constants.RoleAssistant, resp.Answer, false)
		if resp.AudioBase64 != "" {
			if err := o.voiceSess.PlayAnswer(resp.AudioBase64); err != nil {
				log.Warnf("answer playback failed: %v", err)
			}
		}
		return
	}

	fallback := resp.Message
	if fallback == "" {
		fallback = "Sorry, I could not get an answer"
	}
	o.transcript.Append(constants.RoleAssistant, fallback, false)
}

// SetMode switches between voice and text input. Switching to text
// stops any active recording; switching back to voice does not start
// one.
func (o *Orchestrator) SetMode(mode string) {
	if mode != constants.InputModeVoice && mode != constants.InputModeText {
		return
	}
	o.mu.Lock()
	changed := o.mode != mode
	o.mode = mode
	o.mu.Unlock()

	if changed && mode == constants.InputModeText && o.voiceSess.Status() == voice.StatusListening {
		o.voiceSess.StopRecording()
	}
}

func (o *Orchestrator) ToggleInputMode() string {
	o.mu.Lock()
	next := constants.InputModeText
	if o.mode == constants.InputModeText {
		next = constants.InputModeVoice
	}
	o.mu.Unlock()
	o.SetMode(next)
	return next
}

// ToggleMute flips the audible output of the current and next
// playbacks. Capture and backend calls are unaffected.
func (o *Orchestrator) ToggleMute() bool {
	return o.voiceSess.ToggleMute()
}

// Capabilities fetches the non-critical language and voice lists. Both
// degrade to unavailable rather than failing.
func (o *Orchestrator) Capabilities() (*rag.SttLanguages, *rag.TtsVoices) {
	return o.backend.GetSttLanguages(o.ctx), o.backend.GetTtsVoices(o.ctx)
}

// End tears the call down: timers stopped, recording stopped, capture
// device and playback released.
func (o *Orchestrator) End() {
	o.mu.Lock()
	if o.ended {
		o.mu.Unlock()
		return
	}
	o.ended = true
	timers := []Timer{o.pollTimer, o.videoTimer, o.recordTimer}
	o.mu.Unlock()

	for _, t := range timers {
		if t != nil {
			t.Stop()
		}
	}
	o.cancel()
	if err := o.voiceSess.Close(); err != nil {
		log.Warnf("voice session close: %v", err)
	}
}

func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

func (o *Orchestrator) Readiness() Readiness {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.readiness
}

func (o *Orchestrator) ConnectionError() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.connectionErr
}

func (o *Orchestrator) Mode() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.mode
}

func (o *Orchestrator) TextPending() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.textPending
}

func (o *Orchestrator) Persona() string {
	return o.persona
}

func (o *Orchestrator) Transcript() *Transcript {
	return o.transcript
}

// StatusMessage renders the user-facing line for the current state.
func (o *Orchestrator) StatusMessage() string {
	o.mu.Lock()
	phase := o.phase
	readiness := o.readiness
	connErr := o.connectionErr
	progress := o.videoProgress
	o.mu.Unlock()

	switch phase {
	case PhaseConnecting:
		if readiness == ReadinessError {
			if connErr != "" {
				return connErr
			}
			return "Connection error"
		}
		return "Connecting..."
	case PhaseLoadingVideo:
		return fmt.Sprintf("Loading video... %d%%", int(progress+0.5))
	case PhasePlayingVideo:
		return "Speaking..."
	case PhaseConversation:
		if o.voiceSess.Status() == voice.StatusListening {
			return "Listening..."
		}
		return "Ready to talk"
	default:
		return "Connecting..."
	}
}

func (o *Orchestrator) inConversation() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase == PhaseConversation && !o.ended
}

func (o *Orchestrator) isEnded() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ended
}

func (o *Orchestrator) setReadiness(r Readiness, errMsg string) {
	o.mu.Lock()
	o.readiness = r
	o.connectionErr = errMsg
	cb := o.events.OnReadinessChange
	o.mu.Unlock()
	if cb != nil {
		cb(r, errMsg)
	}
}

func (o *Orchestrator) emitPhase(p Phase) {
	if o.events.OnPhaseChange != nil {
		o.events.OnPhaseChange(p)
	}
}
