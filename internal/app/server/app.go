package server

import (
	"github.com/spf13/viper"

	appws "persona-call-golang/internal/app/server/websocket"
	"persona-call-golang/internal/config"
	redisdb "persona-call-golang/internal/db/redis"
	"persona-call-golang/internal/domain/history"
	"persona-call-golang/internal/domain/rag"
	log "persona-call-golang/logger"
)

// App composes the backend client, the optional history store and the
// websocket call gateway.
type App struct {
	wsServer *appws.Server
}

func NewApp() *App {
	ragClient := rag.NewClient(config.BackendBaseURL(),
		rag.WithEnableTTS(viper.GetBool("rag.enable_tts")))

	opts := []appws.ServerOption{
		appws.WithAutoRecord(viper.GetBool("call.auto_record")),
	}
	if viper.GetBool("redis.enable") {
		store := history.NewStore(redisdb.GetClient(), viper.GetString("redis.key_prefix"))
		opts = append(opts, appws.WithHistoryStore(store))
	}

	wsServer := appws.NewServer(viper.GetInt("websocket.port"), ragClient, opts...)
	return &App{wsServer: wsServer}
}

// Run starts the gateway in the background.
func (a *App) Run() {
	go func() {
		if err := a.wsServer.Start(); err != nil {
			log.Fatalf("call gateway failed: %v", err)
		}
	}()
}
