package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/visionary/internal/formatter"
	"github.com/desertthunder/visionary/internal/models"
	"github.com/desertthunder/visionary/internal/shared"
	"github.com/desertthunder/visionary/internal/ui"
)

func (r *Runner) writeClassification(c *models.Classification) {
	styles := ui.Styles()
	r.writePlain("%s %s\n", styles.Title("Photo"), c.ID())
	r.writePlain("  album:      %s (%s)\n", c.AlbumName(), c.AlbumID())
	r.writePlain("  label:      %s %s\n", c.Label(), styles.Badge(c.Confidence(), r.lowConfidence()))
	r.writePlain("  classified: %s\n", c.Timestamp().Local().Format(time.DateTime))
	if at := c.CapturedAt(); at != nil {
		r.writePlain("  captured:   %s\n", at.Local().Format(time.DateTime))
	}
	if c.HasImage() {
		r.writePlain("  image:      %d bytes\n", len(c.Image()))
	} else {
		r.writePlain("  image:      %s\n", styles.Help("none"))
	}
}

// PhotosShow prints one classification.
func (r *Runner) PhotosShow(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}

	lib, err := r.openLibrary(cmd)
	if err != nil {
		return err
	}

	c, err := lib.GetClassification(id)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(c, cmd.Bool("pretty"))
	}
	r.writeClassification(c)
	return nil
}

// PhotosMove reassigns a photo to another album.
func (r *Runner) PhotosMove(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	albumID, err := requireArg(cmd, "album")
	if err != nil {
		return err
	}

	lib, err := r.openLibrary(cmd)
	if err != nil {
		return err
	}

	c, err := lib.MoveClassification(id, albumID)
	if err != nil {
		return err
	}
	r.logger.Info("photo moved", "id", c.ID(), "album", c.AlbumName())

	if cmd.Bool("json") {
		return r.writeJSON(c, cmd.Bool("pretty"))
	}
	return r.writePlain("%s Moved %s to %s\n", ui.Styles().OK("✓"), c.ID(), c.AlbumName())
}

// PhotosDelete deletes one photo.
func (r *Runner) PhotosDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}

	lib, err := r.openLibrary(cmd)
	if err != nil {
		return err
	}

	if err := lib.DeleteClassification(id); err != nil {
		return err
	}
	r.logger.Info("photo deleted", "id", id)
	return r.writePlain("%s Deleted photo %s\n", ui.Styles().OK("✓"), id)
}

// PhotosSimilar lists photos whose fingerprints are close to the given photo's.
func (r *Runner) PhotosSimilar(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}

	distance := cmd.Int("max-distance")
	if distance < 0 {
		return fmt.Errorf("%w: --max-distance must not be negative", shared.ErrInvalidArgument)
	}

	lib, err := r.openLibrary(cmd)
	if err != nil {
		return err
	}

	matches, err := lib.FindSimilar(id, distance)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(matches, cmd.Bool("pretty"))
	}

	if len(matches) == 0 {
		return r.writePlain("No photos within %d bits of %s\n", distance, id)
	}
	r.writePlainHeader(fmt.Sprintf("Similar to %s", id))
	for _, m := range matches {
		r.writePlain("%2d bits  %s  %s\n", m.Distance, m.Classification.ID(), m.Classification.AlbumName())
	}
	return nil
}

// PhotosImage writes a photo's stored bytes to a file.
func (r *Runner) PhotosImage(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}

	lib, err := r.openLibrary(cmd)
	if err != nil {
		return err
	}

	c, err := lib.GetClassification(id)
	if err != nil {
		return err
	}
	if !c.HasImage() {
		return fmt.Errorf("%w: photo %s has no stored image", shared.ErrNotFound, id)
	}

	path := cmd.String("output")
	if path == "" {
		path = c.ID() + formatter.ImageExtension(c.Image())
	}
	if err := os.WriteFile(path, c.Image(), 0644); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}

	return r.writePlain("%s Wrote %d bytes to %s\n", ui.Styles().OK("✓"), len(c.Image()), path)
}

// Purge permanently removes soft-deleted albums and photos.
func (r *Runner) Purge(ctx context.Context, cmd *cli.Command) error {
	lib, err := r.openLibrary(cmd)
	if err != nil {
		return err
	}

	result, err := lib.Purge()
	if err != nil {
		return err
	}
	r.logger.Info("purged deleted records", "albums", result.Albums, "classifications", result.Classifications)

	if cmd.Bool("json") {
		return r.writeJSON(result, cmd.Bool("pretty"))
	}
	return r.writePlain("%s Purged %d albums and %d photos\n", ui.Styles().OK("✓"), result.Albums, result.Classifications)
}
