// Command call runs a persona call from the terminal: push-to-talk
// recording through ffmpeg, answer playback through the local speaker.
// Typed lines are sent as text questions; a bare Enter toggles the
// microphone.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	logrus "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"persona-call-golang/constants"
	"persona-call-golang/internal/config"
	"persona-call-golang/internal/domain/call"
	"persona-call-golang/internal/domain/rag"
	"persona-call-golang/internal/domain/voice"
	"persona-call-golang/logger"
)

func main() {
	backendURL := flag.String("backend", "", "backend base URL (overrides RAG_API_URL)")
	persona := flag.String("persona", "Neil Armstrong", "persona display name")
	device := flag.String("device", "default", "microphone device for ffmpeg")
	format := flag.String("format", "pulse", "ffmpeg input format (pulse/alsa/avfoundation)")
	flag.Parse()

	config.SetDefaults()
	logger.UseStdout()
	logger.SetLevel(logrus.WarnLevel)

	url := *backendURL
	if url == "" {
		url = config.BackendBaseURL()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := rag.NewClient(url, rag.WithEnableTTS(viper.GetBool("rag.enable_tts")))

	player, err := voice.NewBeepPlayer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "audio output unavailable: %v\n", err)
		os.Exit(1)
	}
	capture := voice.NewFFmpegCapture("")

	ctrl := voice.NewController(ctx, client, capture, player,
		voice.WithCaptureConfig(voice.CaptureConfig{
			SampleRate:  16000,
			Channels:    1,
			InputFormat: *format,
			InputDevice: *device,
		}),
		voice.WithOnStatusChange(func(s voice.Status) {
			if s == voice.StatusListening {
				fmt.Println("[recording... press Enter to stop]")
			}
		}),
	)

	orch := call.New(ctx, *persona, "", client, ctrl, call.NoVideo{},
		call.WithAutoRecord(false),
		call.WithEvents(call.Events{
			OnReadinessChange: func(r call.Readiness, errMsg string) {
				if errMsg != "" {
					fmt.Printf("[%s] %s\n", r, errMsg)
				} else {
					fmt.Printf("[%s]\n", r)
				}
			},
			OnMessage: func(m call.ChatMessage) {
				name := "you"
				if m.Role == constants.RoleAssistant {
					name = *persona
				}
				fmt.Printf("%s: %s\n", name, m.Content)
			},
		}),
	)
	defer orch.End()

	fmt.Printf("calling %s at %s\n", *persona, url)
	orch.Start()

	fmt.Println("Enter toggles the microphone, text lines are sent as questions, /quit hangs up.")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "/quit":
			return
		case line == "":
			orch.ToggleMicrophone()
		default:
			if err := orch.SendText(line); err != nil {
				fmt.Printf("[%v]\n", err)
			}
		}
	}
}
