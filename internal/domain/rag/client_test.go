package rag

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/status", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":        "ready",
			"tts_available": true,
			"stt_available": false,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	status, err := client.GetStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ready", status.Status)
	assert.True(t, status.TtsAvailable)
	assert.False(t, status.SttAvailable)
}

func TestGetStatusHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.GetStatus(context.Background())
	require.Error(t, err)

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, http.StatusBadGateway, netErr.StatusCode)
	assert.False(t, netErr.Timeout)
	assert.False(t, IsTimeout(err))
}

func TestGetStatusTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, WithHTTPClient(&http.Client{Timeout: 30 * time.Millisecond}))
	_, err := client.GetStatus(context.Background())
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.Contains(t, err.Error(), "exceeded waiting time")
}

func TestInitialize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/initialize", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{
			"status":  "in_progress",
			"message": "loading index",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	resp, err := client.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "in_progress", resp.Status)
	assert.Equal(t, "loading index", resp.Message)
}

func TestSendAudioMultipart(t *testing.T) {
	wavData := []byte("RIFFfakewav")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/speech-to-text", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		file, header, err := r.FormFile("audio")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "audio.wav", header.Filename)
		body, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, wavData, body)

		assert.Equal(t, "true", r.FormValue("enable_tts"))

		json.NewEncoder(w).Encode(map[string]string{
			"status":          "success",
			"recognized_text": "hello there",
			"answer":          "hi",
			"audio_base64":    "QUJD",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	resp, err := client.SendAudio(context.Background(), wavData)
	require.NoError(t, err)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "hello there", resp.RecognizedText)
	assert.Equal(t, "hi", resp.Answer)
	assert.Equal(t, "QUJD", resp.AudioBase64)
}

func TestAskQuestion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ask", r.URL.Path)
		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "who are you", req["question"])
		assert.Equal(t, false, req["enable_tts"])

		json.NewEncoder(w).Encode(map[string]string{
			"status": "success",
			"answer": "an astronaut",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, WithEnableTTS(false))
	resp, err := client.AskQuestion(context.Background(), "who are you")
	require.NoError(t, err)
	assert.Equal(t, "an astronaut", resp.Answer)
}

func TestCapabilitiesDegradeOnFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL)

	languages := client.GetSttLanguages(context.Background())
	require.NotNil(t, languages)
	assert.False(t, languages.Available)
	assert.Empty(t, languages.Languages)

	voices := client.GetTtsVoices(context.Background())
	require.NotNil(t, voices)
	assert.False(t, voices.Available)
	assert.Empty(t, voices.Voices)
}

func TestCapabilities(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/stt/languages":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"available": true,
				"languages": []string{"en-US", "ru-RU"},
			})
		case "/tts/voices":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"available": true,
				"voices":    map[string][]string{"en-US": {"voice-a"}},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL)
	languages := client.GetSttLanguages(context.Background())
	assert.True(t, languages.Available)
	assert.Equal(t, []string{"en-US", "ru-RU"}, languages.Languages)

	voices := client.GetTtsVoices(context.Background())
	assert.True(t, voices.Available)
	assert.Equal(t, []string{"voice-a"}, voices.Voices["en-US"])
}

func TestUpdateBaseURL(t *testing.T) {
	first := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "error"})
	}))
	defer first.Close()
	second := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	}))
	defer second.Close()

	client := NewClient(first.URL)
	status, err := client.GetStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "error", status.Status)

	client.UpdateBaseURL(second.URL)
	assert.Equal(t, second.URL, client.BaseURL())

	status, err = client.GetStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ready", status.Status)
}
