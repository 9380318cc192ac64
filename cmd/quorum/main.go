package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	schedulercmd "github.com/quorumcal/quorum/internal/cmd/scheduler"
	"github.com/quorumcal/quorum/internal/platform/cmd"
	"github.com/quorumcal/quorum/internal/platform/config"
)

// main starts the scheduling tool server on stdio.
func main() {
	config.LoadDotEnv()

	var cfg schedulercmd.Config
	if err := cmd.ParseConfig(&cfg); err != nil {
		config.Exitf("parse config: %v", err)
	}
	log.SetPrefix("[quorum] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cmd.RunWithTelemetry(ctx, cmd.ServiceScheduler, func(ctx context.Context) error {
		return schedulercmd.Run(ctx, cfg)
	})
	if err != nil {
		config.Exitf("serve scheduler: %v", err)
	}
}
