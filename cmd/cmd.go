// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable debug logging",
		},
	}
}

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
			Value: true,
		},
	}
}

// setupCommand handles database setup and migrations.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config.toml populated with defaults",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Action: r.SetupRollback,
			},
			{
				Name:   "status",
				Usage:  "Show applied and pending migrations",
				Flags:  outputFlags(),
				Action: r.SetupStatus,
			},
		},
	}
}

// classifyCommand files one or more photos.
func classifyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "classify",
		Usage:     "Classify photos and file them into albums",
		ArgsUsage: "FILE...",
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "Concurrent classifications (max 8)",
				Value:   4,
			},
			&cli.FloatFlag{
				Name:  "rate",
				Usage: "Photos started per second, 0 for unlimited",
			},
		}, outputFlags()...),
		Action: r.Classify,
	}
}

// albumsCommand handles album operations.
func albumsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "albums",
		Aliases: []string{"album"},
		Usage:   "Album operations",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List albums",
				Flags:  outputFlags(),
				Action: r.AlbumsList,
			},
			{
				Name:      "show",
				Usage:     "Show an album's photos",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:  "order",
						Usage: "Sort by confidence or timestamp",
						Value: "confidence",
					},
				}, outputFlags()...),
				Action: r.AlbumsShow,
			},
			{
				Name:  "rename",
				Usage: "Rename an album",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
					&cli.StringArg{Name: "name"},
				},
				Flags:  outputFlags(),
				Action: r.AlbumsRename,
			},
			{
				Name:      "delete",
				Usage:     "Delete an album and its photos",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.AlbumsDelete,
			},
			{
				Name:      "export",
				Usage:     "Export an album manifest and its images to a directory",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Manifest format: csv, markdown or text",
						Value:   "csv",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory (default: album ID)",
					},
				}, outputFlags()...),
				Action: r.AlbumsExport,
			},
		},
	}
}

// photosCommand handles operations on single classifications.
func photosCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "photos",
		Aliases: []string{"photo"},
		Usage:   "Photo operations",
		Commands: []*cli.Command{
			{
				Name:      "show",
				Usage:     "Show a photo's classification",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     outputFlags(),
				Action:    r.PhotosShow,
			},
			{
				Name:  "move",
				Usage: "Move a photo to another album",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
					&cli.StringArg{Name: "album"},
				},
				Flags:  outputFlags(),
				Action: r.PhotosMove,
			},
			{
				Name:      "delete",
				Usage:     "Delete a photo",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.PhotosDelete,
			},
			{
				Name:      "similar",
				Usage:     "Find visually similar photos",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags: append([]cli.Flag{
					&cli.IntFlag{
						Name:    "max-distance",
						Aliases: []string{"d"},
						Usage:   "Maximum fingerprint distance in bits",
						Value:   10,
					},
				}, outputFlags()...),
				Action: r.PhotosSimilar,
			},
			{
				Name:      "image",
				Usage:     "Write a photo's stored image to a file",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file (default: {id}.jpg)",
					},
				},
				Action: r.PhotosImage,
			},
		},
	}
}

// purgeCommand hard-deletes soft-deleted records.
func purgeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "purge",
		Usage:  "Permanently remove deleted albums and photos",
		Flags:  outputFlags(),
		Action: r.Purge,
	}
}

// serveCommand runs the HTTP API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the photo library HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (default: server.host:server.port from config)",
			},
		},
		Action: r.Serve,
	}
}
