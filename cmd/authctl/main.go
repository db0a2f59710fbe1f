package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/sparkly-dev/sparkly-server/internal/cli"
	"github.com/sparkly-dev/sparkly-server/internal/flagx"
	"github.com/sparkly-dev/sparkly-server/internal/server/config"
	gs "github.com/sparkly-dev/sparkly-server/internal/server/grpc"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	conn, err := cli.Dial(cfg.EndpointAddrGRPC)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer conn.Close()

	app := cli.NewApp(gs.NewAuthClient(conn), os.Stdout)

	args := flagx.Positional(os.Args[1:], config.ValueFlags)
	if err := app.Run(context.Background(), args); err != nil {
		if !errors.Is(err, cli.ErrUsage) || len(args) > 0 {
			fmt.Fprintln(os.Stderr, err)
		}
		conn.Close()
		os.Exit(1)
	}
}
