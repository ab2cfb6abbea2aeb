package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/framewire/websocket/internal/wsecho"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	flag.Parse()

	cfg := wsecho.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = wsecho.LoadConfig(*configPath)
		if err != nil {
			errLog := wsecho.NewLogger(os.Stderr, "info")
			errLog.Fatal().Err(err).Msg("failed to load config")
		}
	}

	log := wsecho.NewLogger(os.Stdout, cfg.LogLevel)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := wsecho.NewServer(cfg, log).ListenAndServe(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("echo server stopped")
	}
}
