package rag

// Response is the result of the /speech-to-text and /ask endpoints.
// Status is one of success|error|initializing.
type Response struct {
	Status         string   `json:"status"`
	RecognizedText string   `json:"recognized_text,omitempty"`
	Answer         string   `json:"answer,omitempty"`
	Citations      []string `json:"citations,omitempty"`
	AudioBase64    string   `json:"audio_base64,omitempty"`
	Message        string   `json:"message,omitempty"`
}

// StatusResponse is the result of the /status endpoint.
// Status is one of ready|in_progress|error.
type StatusResponse struct {
	Status       string `json:"status"`
	TtsAvailable bool   `json:"tts_available"`
	SttAvailable bool   `json:"stt_available"`
}

// InitializeResponse is the result of the /initialize endpoint.
type InitializeResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// SttLanguages lists the speech recognition languages the backend offers.
type SttLanguages struct {
	Available bool     `json:"available"`
	Languages []string `json:"languages"`
}

// TtsVoices lists synthesis voices per language.
type TtsVoices struct {
	Available bool                `json:"available"`
	Voices    map[string][]string `json:"voices"`
}

type askRequest struct {
	Question  string `json:"question"`
	EnableTts bool   `json:"enable_tts"`
}
