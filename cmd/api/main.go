package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"gathering/internal/app/bootstrap"

	flag "github.com/spf13/pflag"
)

// API process entrypoint.
// Data flow:
// 1) Load config (.env, optional YAML file, environment).
// 2) Build app wiring (ports + adapters + use cases).
// 3) Serve HTTP and the live tally stream until interrupted.
func main() {
	var opts bootstrap.Options
	flag.StringVar(&opts.ConfigFile, "config", "", "path to a YAML config file (overrides CONFIG_FILE)")
	flag.StringVar(&opts.Addr, "addr", "", "listen address (overrides HTTP_PORT)")
	flag.Parse()

	app, err := bootstrap.BuildAPI(opts)
	if err != nil {
		log.Fatalf("bootstrap api failed: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("api shutdown close failed: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := app.Run(ctx); err != nil {
		log.Printf("gathering api stopped with error: %v", err)
	}
}
