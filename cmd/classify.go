package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/visionary/internal/shared"
	"github.com/desertthunder/visionary/internal/tasks"
	"github.com/desertthunder/visionary/internal/ui"
)

// Classify files every photo given on the command line.
//
// Failures are reported per file and the command exits non-zero if any photo failed.
func (r *Runner) Classify(ctx context.Context, cmd *cli.Command) error {
	paths := cmd.Args().Slice()
	if len(paths) == 0 {
		return fmt.Errorf("%w: at least one image path is required", shared.ErrMissingArgument)
	}

	pipeline, err := r.newPipeline(cmd)
	if err != nil {
		return err
	}

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			r.logger.Debug(update.Message, "phase", update.Phase, "step", update.Step, "total", update.Total)
		}
	}()

	result := pipeline.BulkClassify(ctx, progressCh, paths, tasks.BulkOpts{
		NumWorkers: cmd.Int("workers"),
		RateLimit:  cmd.Float("rate"),
	})
	close(progressCh)
	<-done

	if cmd.Bool("json") {
		if err := r.writeJSON(result, cmd.Bool("pretty")); err != nil {
			return err
		}
	} else {
		r.writeBulkResult(result)
	}

	if result.Failed > 0 {
		return fmt.Errorf("%d of %d photos failed", result.Failed, result.Total)
	}
	return nil
}

func (r *Runner) writeBulkResult(result *tasks.BulkResult) {
	styles := ui.Styles()
	for _, fr := range result.Results {
		if fr.Error != nil {
			r.writePlain("%s %s: %s\n", styles.Error("✗"), fr.Path, fr.Message)
			continue
		}
		c := fr.Outcome.Classification
		r.writePlain("%s %s → %s %s\n", styles.OK("✓"), fr.Path, c.AlbumName(), styles.Badge(c.Confidence(), r.lowConfidence()))
	}
	r.writePlainln("Filed %d/%d photos", result.Succeeded, result.Total)
}
