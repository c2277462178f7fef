package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/visionary/internal/formatter"
	"github.com/desertthunder/visionary/internal/models"
	"github.com/desertthunder/visionary/internal/shared"
	"github.com/desertthunder/visionary/internal/ui"
)

func requireArg(cmd *cli.Command, name string) (string, error) {
	v := cmd.StringArg(name)
	if v == "" {
		return "", fmt.Errorf("%w: %s", shared.ErrMissingArgument, name)
	}
	return v, nil
}

// AlbumsList prints every live album with its photo count.
func (r *Runner) AlbumsList(ctx context.Context, cmd *cli.Command) error {
	lib, err := r.openLibrary(cmd)
	if err != nil {
		return err
	}

	albums, err := lib.ListAlbums()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		if albums == nil {
			albums = []*models.Album{}
		}
		return r.writeJSON(albums, cmd.Bool("pretty"))
	}

	if len(albums) == 0 {
		return r.writePlain("No albums yet. Run 'visionary classify FILE...' to file some photos.\n")
	}

	r.writePlainHeader(fmt.Sprintf("Albums (%d)", len(albums)))
	for _, a := range albums {
		r.writePlain("%-24s %4d photos  %s\n", ui.Styles().Title(a.Name()), a.PhotoCount(), ui.Styles().Help(a.ID()))
	}
	return nil
}

// AlbumsShow prints an album's photos in the requested order.
func (r *Runner) AlbumsShow(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}

	order, ok := models.ParseClassificationOrder(cmd.String("order"))
	if !ok {
		return fmt.Errorf("%w: --order must be confidence or timestamp", shared.ErrInvalidArgument)
	}

	lib, err := r.openLibrary(cmd)
	if err != nil {
		return err
	}

	album, err := lib.GetAlbum(id)
	if err != nil {
		return err
	}
	classifications, err := lib.ListClassifications(id, order)
	if err != nil {
		return err
	}
	album.SetClassifications(classifications)

	if cmd.Bool("json") {
		return r.writeJSON(album, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("%s (%d photos)", album.Name(), album.PhotoCount()))
	for i, c := range classifications {
		r.writePlain("%3d. %s %s  %s\n", i+1, c.ID(), ui.Styles().Badge(c.Confidence(), r.lowConfidence()), c.Timestamp().Local().Format(time.DateTime))
	}
	return nil
}

// AlbumsRename renames an album in place.
func (r *Runner) AlbumsRename(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	name, err := requireArg(cmd, "name")
	if err != nil {
		return err
	}

	lib, err := r.openLibrary(cmd)
	if err != nil {
		return err
	}

	album, err := lib.RenameAlbum(id, name)
	if err != nil {
		return err
	}
	r.logger.Info("album renamed", "id", album.ID(), "name", album.Name())

	if cmd.Bool("json") {
		return r.writeJSON(album, cmd.Bool("pretty"))
	}
	return r.writePlain("%s Renamed album to %s\n", ui.Styles().OK("✓"), album.Name())
}

// AlbumsDelete deletes an album together with its photos.
func (r *Runner) AlbumsDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}

	lib, err := r.openLibrary(cmd)
	if err != nil {
		return err
	}

	if err := lib.DeleteAlbum(id); err != nil {
		return err
	}
	r.logger.Info("album deleted", "id", id)
	return r.writePlain("%s Deleted album %s\n", ui.Styles().OK("✓"), id)
}

// AlbumsExport writes an album manifest, metadata and images into a directory.
func (r *Runner) AlbumsExport(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	lib, err := r.openLibrary(cmd)
	if err != nil {
		return err
	}

	album, err := lib.LoadAlbum(id)
	if err != nil {
		return err
	}

	result, err := formatter.WriteAlbumExport(album, cmd.String("output"), format)
	if err != nil {
		return err
	}
	r.logger.Info("album exported", "id", id, "dir", result.Directory, "images", len(result.Images))

	if cmd.Bool("json") {
		return r.writeJSON(result, cmd.Bool("pretty"))
	}
	r.writePlain("%s Exported %s to %s\n", ui.Styles().OK("✓"), album.Name(), result.Directory)
	r.writePlain("  manifest: %s\n", result.Manifest)
	r.writePlain("  metadata: %s\n", result.MetadataFile)
	r.writePlain("  images:   %d\n", len(result.Images))
	return nil
}
