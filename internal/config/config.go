package config

import (
	"os"

	"github.com/spf13/viper"
)

const defaultBackendURL = "http://localhost:8000"

// BackendBaseURL resolves the question-answering backend address:
// environment first, then config file, then the local default. Fixed
// at process start except for the interactive override on the client.
func BackendBaseURL() string {
	if url := os.Getenv("RAG_API_URL"); url != "" {
		return url
	}
	if url := viper.GetString("rag.base_url"); url != "" {
		return url
	}
	return defaultBackendURL
}

// SetDefaults installs config defaults shared by every entrypoint.
func SetDefaults() {
	viper.SetDefault("rag.enable_tts", true)
	viper.SetDefault("websocket.port", 8989)
	viper.SetDefault("call.auto_record", true)
	viper.SetDefault("redis.key_prefix", "persona_call")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.use_stdout", true)
}
