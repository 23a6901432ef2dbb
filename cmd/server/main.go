package main

import (
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/viper"

	"persona-call-golang/internal/app/server"
	log "persona-call-golang/logger"
)

func main() {
	configFile := flag.String("c", "config/config.json", "config file path")
	flag.Parse()

	if *configFile == "" {
		fmt.Println("config file path must not be empty")
		return
	}

	if err := Init(*configFile); err != nil {
		return
	}

	if viper.GetBool("server.pprof.enable") {
		pprofPort := viper.GetInt("server.pprof.port")
		go func() {
			log.Infof("pprof listening on port %d", pprofPort)
			if err := http.ListenAndServe(fmt.Sprintf(":%d", pprofPort), nil); err != nil {
				log.Errorf("pprof server failed: %v", err)
			}
		}()
	}

	appInstance := server.NewApp()
	appInstance.Run()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Info("server started, press Ctrl+C to exit")
	<-quit

	log.Info("shutting down")
}
