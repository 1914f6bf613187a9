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

// Worker process entrypoint.
// Data flow:
// 1) Load config.
// 2) Build app wiring.
// 3) Run the scheduled deadline watcher. The API process relays the outbox.
func main() {
	var opts bootstrap.Options
	flag.StringVar(&opts.ConfigFile, "config", "", "path to a YAML config file (overrides CONFIG_FILE)")
	flag.Parse()

	app, err := bootstrap.BuildWorker(opts)
	if err != nil {
		log.Fatalf("bootstrap worker failed: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("worker shutdown close failed: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := app.Run(ctx); err != nil {
		log.Printf("gathering worker stopped with error: %v", err)
	}
}
