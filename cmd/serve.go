package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/visionary/internal/metrics"
	"github.com/desertthunder/visionary/internal/server"
	"github.com/desertthunder/visionary/internal/shared"
)

// Serve runs the HTTP API until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	if r.metrics == nil {
		if r.metrics, err = metrics.New(); err != nil {
			return fmt.Errorf("failed to create metrics: %w", err)
		}
	}

	pipeline, err := r.newPipeline(cmd)
	if err != nil {
		return err
	}

	addr := cmd.String("addr")
	if addr == "" {
		addr = config.Server.Addr()
	}

	logger := shared.WithLogger(r.logger, "component", "server")
	handler := server.New(server.Opts{
		Pipeline:      pipeline,
		Metrics:       r.metrics,
		Logger:        logger,
		MaxImageBytes: config.Library.MaxImageBytes,
	})

	return server.ListenAndServe(ctx, addr, handler, logger)
}
