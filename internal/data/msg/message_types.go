package msg

import (
	"persona-call-golang/internal/domain/call"
	"persona-call-golang/internal/domain/rag"
)

// Client message types (browser -> server).
const (
	ClientMessageTypeStart         = "start"          // begin a call: persona + intro video ref
	ClientMessageTypeRecordStart   = "record_start"   // begin a voice recording
	ClientMessageTypeRecordStop    = "record_stop"    // finalize and send the recording
	ClientMessageTypeSendText      = "send_text"      // typed question
	ClientMessageTypeToggleMute    = "toggle_mute"    // mute/unmute playback
	ClientMessageTypeSetMode       = "set_mode"       // voice | text input mode
	ClientMessageTypeRetryStatus   = "retry_status"   // re-poll readiness after an error
	ClientMessageTypeInitialize    = "initialize"     // ask the backend to initialize
	ClientMessageTypeVideoEvent    = "video_event"    // intro-video element event
	ClientMessageTypePlaybackEnded = "playback_ended" // browser finished playing answer audio
	ClientMessageTypeUpdateAPIURL  = "update_api_url" // interactive backend address override
	ClientMessageTypeEnd           = "end"            // hang up
)

// Server message types (server -> browser).
const (
	ServerMessageTypePhase         = "phase"
	ServerMessageTypeSessionStatus = "session_status"
	ServerMessageTypeReadiness     = "readiness"
	ServerMessageTypeMessage       = "message"
	ServerMessageTypeAudio         = "audio"
	ServerMessageTypeVideoControl  = "video_control"
	ServerMessageTypeCapabilities  = "capabilities"
	ServerMessageTypeError         = "error"
	ServerMessageTypeGoodbye       = "goodbye"
)

// Video element events forwarded by the browser.
const (
	VideoEventProgress       = "progress"
	VideoEventCanPlayThrough = "canplaythrough"
	VideoEventEnded          = "ended"
	VideoEventError          = "error"
)

// Video control commands sent to the browser.
const (
	VideoControlLoad = "load"
	VideoControlPlay = "play"
)

// ClientMessage is one intent from the browser. Audio chunks travel as
// binary websocket frames, not as ClientMessages.
type ClientMessage struct {
	Type     string  `json:"type"`
	Persona  string  `json:"persona,omitempty"`
	Video    string  `json:"video,omitempty"`
	Text     string  `json:"text,omitempty"`
	Mode     string  `json:"mode,omitempty"`
	Event    string  `json:"event,omitempty"`
	Progress float64 `json:"progress,omitempty"`
	URL      string  `json:"url,omitempty"`
}

// ServerMessage is one event pushed to the browser.
type ServerMessage struct {
	Type         string            `json:"type"`
	CallID       string            `json:"call_id,omitempty"`
	Phase        string            `json:"phase,omitempty"`
	Status       string            `json:"status,omitempty"`
	Readiness    string            `json:"readiness,omitempty"`
	StatusText   string            `json:"status_text,omitempty"`
	Error        string            `json:"error,omitempty"`
	Message      *call.ChatMessage `json:"message,omitempty"`
	AudioBase64  string            `json:"audio_base64,omitempty"`
	Command      string            `json:"command,omitempty"`
	VideoRef     string            `json:"video_ref,omitempty"`
	Progress     float64           `json:"progress,omitempty"`
	Muted        bool              `json:"muted,omitempty"`
	SttLanguages *rag.SttLanguages `json:"stt_languages,omitempty"`
	TtsVoices    *rag.TtsVoices    `json:"tts_voices,omitempty"`
}
