package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"sync"
	"time"

	log "persona-call-golang/logger"
)

// Per-operation timeouts, mirroring the backend's processing cost.
const (
	statusTimeout     = 10 * time.Second
	initializeTimeout = 30 * time.Second
	sendAudioTimeout  = 60 * time.Second
	askTimeout        = 30 * time.Second
)

// Shared HTTP client with a pooled transport.
var (
	httpClient     *http.Client
	httpClientOnce sync.Once
)

func getHTTPClient() *http.Client {
	httpClientOnce.Do(func() {
		transport := &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
		httpClient = &http.Client{
			Transport: transport,
		}
	})
	return httpClient
}

// Client wraps the question-answering backend's HTTP API. Construct it
// once and inject it; the base URL is fixed for the process lifetime
// except for an explicit UpdateBaseURL, which takes effect on the next
// call only.
type Client struct {
	mu        sync.RWMutex
	baseURL   string
	enableTts bool
	http      *http.Client
}

type ClientOption func(*Client)

// WithEnableTTS controls whether answers request synthesized audio.
func WithEnableTTS(enable bool) ClientOption {
	return func(c *Client) {
		c.enableTts = enable
	}
}

// WithHTTPClient overrides the pooled default, mainly for tests.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		c.http = h
	}
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:   baseURL,
		enableTts: true,
		http:      getHTTPClient(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the current backend address.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// UpdateBaseURL replaces the backend address for subsequent calls.
func (c *Client) UpdateBaseURL(baseURL string) {
	c.mu.Lock()
	c.baseURL = baseURL
	c.mu.Unlock()
	log.Infof("backend base URL updated to %s", baseURL)
}

// GetStatus checks backend readiness and capability flags.
func (c *Client) GetStatus(ctx context.Context) (*StatusResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL()+"/status", nil)
	if err != nil {
		return nil, &NetworkError{Op: "status", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	var out StatusResponse
	if err := c.do(req, "status", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Initialize asks the backend to (re)build its pipeline.
func (c *Client) Initialize(ctx context.Context) (*InitializeResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, initializeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL()+"/initialize", nil)
	if err != nil {
		return nil, &NetworkError{Op: "initialize", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	var out InitializeResponse
	if err := c.do(req, "initialize", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendAudio uploads one complete utterance as a WAV payload and returns
// the recognized text, the answer, and optionally synthesized audio.
func (c *Client) SendAudio(ctx context.Context, wavData []byte) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, sendAudioTimeout)
	defer cancel()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("audio", "audio.wav")
	if err != nil {
		return nil, &NetworkError{Op: "speech-to-text", Err: err}
	}
	if _, err := part.Write(wavData); err != nil {
		return nil, &NetworkError{Op: "speech-to-text", Err: err}
	}
	if err := writer.WriteField("enable_tts", fmt.Sprintf("%t", c.enableTts)); err != nil {
		return nil, &NetworkError{Op: "speech-to-text", Err: err}
	}
	if err := writer.Close(); err != nil {
		return nil, &NetworkError{Op: "speech-to-text", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL()+"/speech-to-text", &body)
	if err != nil {
		return nil, &NetworkError{Op: "speech-to-text", Err: err}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var out Response
	if err := c.do(req, "speech-to-text", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AskQuestion sends a typed question and returns the answer.
func (c *Client) AskQuestion(ctx context.Context, question string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, askTimeout)
	defer cancel()

	payload, err := json.Marshal(askRequest{Question: question, EnableTts: c.enableTts})
	if err != nil {
		return nil, &NetworkError{Op: "ask", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL()+"/ask", bytes.NewReader(payload))
	if err != nil {
		return nil, &NetworkError{Op: "ask", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	var out Response
	if err := c.do(req, "ask", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSttLanguages lists available recognition languages. Non-critical
// metadata: any failure degrades to an unavailable result.
func (c *Client) GetSttLanguages(ctx context.Context) *SttLanguages {
	unavailable := &SttLanguages{Available: false, Languages: []string{}}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL()+"/stt/languages", nil)
	if err != nil {
		return unavailable
	}
	var out SttLanguages
	if err := c.do(req, "stt/languages", &out); err != nil {
		log.Debugf("stt languages unavailable: %v", err)
		return unavailable
	}
	return &out
}

// GetTtsVoices lists available synthesis voices. Non-critical metadata:
// any failure degrades to an unavailable result.
func (c *Client) GetTtsVoices(ctx context.Context) *TtsVoices {
	unavailable := &TtsVoices{Available: false, Voices: map[string][]string{}}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL()+"/tts/voices", nil)
	if err != nil {
		return unavailable
	}
	var out TtsVoices
	if err := c.do(req, "tts/voices", &out); err != nil {
		log.Debugf("tts voices unavailable: %v", err)
		return unavailable
	}
	return &out
}

func (c *Client) do(req *http.Request, op string, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		var nerr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
			return &NetworkError{Op: op, Timeout: true, Err: err}
		}
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return &NetworkError{Op: op, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &NetworkError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
