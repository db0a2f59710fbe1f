package main

import (
	"context"
	"log"
	"os"

	"github.com/sparkly-dev/sparkly-server/internal/logging"
	"github.com/sparkly-dev/sparkly-server/internal/server"
	"github.com/sparkly-dev/sparkly-server/internal/server/config"
)

func main() {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)

	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer app.Close()

	app.Run(ctx)
}
