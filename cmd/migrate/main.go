package main

import (
	"context"
	"log"
	"time"

	"gathering/internal/app/bootstrap"

	flag "github.com/spf13/pflag"
)

func main() {
	var opts bootstrap.Options
	flag.StringVar(&opts.ConfigFile, "config", "", "path to a YAML config file (overrides CONFIG_FILE)")
	dryRun := flag.Bool("dry-run", false, "build the migration statements without executing them")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := bootstrap.Migrate(ctx, opts, *dryRun); err != nil {
		cancel()
		log.Fatalf("gathering migrate failed: %v", err)
	}
}
