package main

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	"github.com/alanbriolat/video-leecher"
	"github.com/alanbriolat/video-leecher/internal/boltdb"
	"github.com/alanbriolat/video-leecher/internal/catalog"
	"github.com/alanbriolat/video-leecher/internal/config"
	"github.com/alanbriolat/video-leecher/internal/console"
	"github.com/alanbriolat/video-leecher/internal/platform"
	"github.com/alanbriolat/video-leecher/internal/prefs"
	"github.com/alanbriolat/video-leecher/internal/search"
	"github.com/alanbriolat/video-leecher/internal/session"
	"github.com/alanbriolat/video-leecher/internal/viewmodel"
)

// services is everything a command might need, opened for the duration of one command.
type services struct {
	config  *config.Config
	db      boltdb.Database
	catalog *catalog.Catalog
	prefs   *prefs.Service
	session *session.Session
	source  *search.Source
	console *console.Console
	results *viewmodel.SearchResults
	closers []func()
}

func withServices(cfg *config.Config, action func(c *cli.Context, s *services) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		s, err := openServices(c, cfg)
		if err != nil {
			return err
		}
		defer s.close()
		return action(c, s)
	}
}

func openServices(c *cli.Context, cfg *config.Config) (_ *services, err error) {
	s := &services{config: cfg}
	defer func() {
		if err != nil {
			s.close()
		}
	}()

	if s.db, err = boltdb.New(cfg.DatabaseFile); err != nil {
		return nil, err
	}
	s.closers = append(s.closers, func() { _ = s.db.Close() })

	if s.catalog, err = catalog.Open(cfg.CatalogFile); err != nil {
		return nil, err
	}
	s.closers = append(s.closers, s.catalog.Close)

	if s.prefs, err = prefs.New(s.db, video_leecher.DefaultPreferences(cfg.DownloadFolder)); err != nil {
		return nil, err
	}

	fs := afero.NewOsFs()
	if s.session, err = session.New(session.Config{
		Database:               s.db,
		Fs:                     fs,
		MaxRetryTime:           cfg.MaxRetryTime,
		ProgressUpdateInterval: cfg.ProgressUpdateInterval,
	}, c.Context); err != nil {
		return nil, err
	}
	s.closers = append(s.closers, s.session.Close)

	s.source = search.New(search.Config{
		Catalog:      s.catalog,
		Resolver:     &video_leecher.DefaultProviderRegistry,
		Queue:        s.session,
		AuthCacheTTL: cfg.AuthCacheTTL,
	})
	s.closers = append(s.closers, s.source.Close)

	s.console = console.New(os.Stdin, os.Stdout, s.source)
	if s.results, err = viewmodel.New(viewmodel.Config{
		Source:    s.source,
		Prefs:     s.prefs,
		Fs:        fs,
		Dialogs:   s.console,
		Navigator: s.console,
		Notifier:  s.console,
		Launcher:  platform.NewLauncher(),
	}); err != nil {
		return nil, fmt.Errorf("failed to create search results: %w", err)
	}
	s.closers = append(s.closers, s.results.Close)
	return s, nil
}

// close shuts everything down in the reverse order it was opened.
func (s *services) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

func requireArgs(c *cli.Context, n int) error {
	if c.NArg() != n {
		return fmt.Errorf("%v: expected %d arguments, got %d", c.Command.Name, n, c.NArg())
	}
	return nil
}
