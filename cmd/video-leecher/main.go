package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/alanbriolat/video-leecher/async"
	"github.com/alanbriolat/video-leecher/internal/config"
	_ "github.com/alanbriolat/video-leecher/providers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("can't load configuration: %v", err)
	}

	zapConfig := zap.NewDevelopmentConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logger, err := zapConfig.Build()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()
	zap.RedirectStdLog(logger)
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := newApp(cfg)
	result := async.Run(func() error { return app.RunContext(ctx, os.Args) })

	select {
	case err = <-result:
	case <-ctx.Done():
		stop()
		logger.Info("Exiting gracefully...")
		err = <-result
	}
	if err != nil {
		logger.Fatal(err.Error())
	}
}

func newApp(cfg *config.Config) *cli.App {
	searchFlags := []cli.Flag{
		&cli.StringFlag{
			Name:  "channel",
			Usage: "list the catalogue's videos for `CHANNEL`",
		},
		&cli.StringSliceFlag{
			Name:  "url",
			Usage: "resolve `URL` with the video providers (repeatable)",
		},
		&cli.StringSliceFlag{
			Name:  "id",
			Usage: "look up video `ID` in the catalogue (repeatable)",
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "return at most `N` videos from a channel search (default from preferences)",
		},
	}

	return &cli.App{
		Name:  "video-leecher",
		Usage: "search for videos and queue them for download",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "catalog",
				Value:       cfg.CatalogFile,
				Usage:       "use video catalogue at `FILE`",
				Destination: &cfg.CatalogFile,
			},
			&cli.StringFlag{
				Name:        "database",
				Value:       cfg.DatabaseFile,
				Usage:       "keep preferences and download queue in `FILE`",
				Destination: &cfg.DatabaseFile,
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "import",
				Usage:     "add videos from a JSON file to the catalogue",
				ArgsUsage: "FILE...",
				Action:    withServices(cfg, importVideos),
			},
			{
				Name:   "search",
				Usage:  "search for videos",
				Flags:  searchFlags,
				Action: withServices(cfg, searchVideos),
			},
			{
				Name:   "download-all",
				Usage:  "queue every video found by a search",
				Flags:  searchFlags,
				Action: withServices(cfg, downloadAll),
			},
			{
				Name:      "download",
				Usage:     "review and queue a single video",
				ArgsUsage: "ID",
				Flags:     searchFlags,
				Action:    withServices(cfg, downloadOne),
			},
			{
				Name:      "view",
				Usage:     "open a video's page or stream",
				ArgsUsage: "ID",
				Flags:     searchFlags,
				Action:    withServices(cfg, viewVideo),
			},
			{
				Name:  "prefs",
				Usage: "show or change preferences",
				Subcommands: []*cli.Command{
					{
						Name:   "show",
						Usage:  "print the current preferences",
						Action: withServices(cfg, showPreferences),
					},
					{
						Name:      "set",
						Usage:     "change one preference",
						ArgsUsage: "KEY VALUE",
						Action:    withServices(cfg, setPreference),
					},
				},
			},
			{
				Name:  "favourites",
				Usage: "manage favourite channels",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "print favourite channels",
						Action: withServices(cfg, listFavourites),
					},
					{
						Name:      "add",
						Usage:     "add a favourite channel",
						ArgsUsage: "CHANNEL",
						Action:    withServices(cfg, addFavourite),
					},
					{
						Name:      "remove",
						Usage:     "remove a favourite channel",
						ArgsUsage: "CHANNEL",
						Action:    withServices(cfg, removeFavourite),
					},
				},
			},
			{
				Name:  "queue",
				Usage: "manage the download queue",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "print queued downloads",
						Action: withServices(cfg, listQueue),
					},
					{
						Name:   "run",
						Usage:  "download everything that isn't complete",
						Action: withServices(cfg, runQueue),
					},
					{
						Name:      "remove",
						Usage:     "remove a download from the queue",
						ArgsUsage: "DOWNLOAD_ID",
						Action:    withServices(cfg, removeFromQueue),
					},
				},
			},
		},
		HideHelpCommand: true,
	}
}
