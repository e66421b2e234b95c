// Package viewmodel is the presentation logic behind the search results screen.
package viewmodel

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/alanbriolat/video-leecher"
	"github.com/alanbriolat/video-leecher/internal/dispatch"
	"github.com/alanbriolat/video-leecher/internal/pubsub"
	"github.com/alanbriolat/video-leecher/internal/reconcile"
	"github.com/alanbriolat/video-leecher/internal/search"
	"github.com/alanbriolat/video-leecher/internal/sync_"
)

type VideoSource interface {
	// Videos returns the current results in display order.
	Videos() []*video_leecher.Video
	Find(id video_leecher.VideoID) *video_leecher.Video
	AuthInfo(ctx context.Context, id video_leecher.VideoID) (video_leecher.AuthInfo, error)
	Enqueue(ctx context.Context, job *video_leecher.DownloadJob) error
	Subscribe() (pubsub.ReceiverCloser[search.Event], error)
}

type Navigator interface {
	// ShowDownload lets the user review a single download before it is queued.
	ShowDownload(ctx context.Context, job *video_leecher.DownloadJob) error
	ShowSearch(ctx context.Context) error
}

type Launcher interface {
	// Open hands a URL to the system's default handler.
	Open(ctx context.Context, url string) error
	// OpenWith runs program with the URL as its only argument.
	OpenWith(ctx context.Context, program string, url string) error
}

type Config struct {
	Source    VideoSource
	Prefs     reconcile.PreferencesService
	Filenames video_leecher.FilenameService
	Fs        afero.Fs
	Dialogs   reconcile.Dialogs
	Navigator Navigator
	Notifier  reconcile.Notifier
	Launcher  Launcher
}

// A MenuCommand is an entry in the screen's menu.
type MenuCommand struct {
	Label string
	Icon  string
	Run   func(ctx context.Context) error
}

type SearchResults struct {
	config     Config
	dispatcher *dispatch.Dispatcher
	reconciler *reconcile.Reconciler
	scroll     *sync_.Mutexed[int]
	events     pubsub.Publisher[search.Event]
	sourceSub  pubsub.ReceiverCloser[search.Event]
	forwarded  chan struct{}
	log        *zap.SugaredLogger
}

func New(config Config) (*SearchResults, error) {
	if config.Filenames == nil {
		config.Filenames = video_leecher.NewFilenameService()
	}
	if config.Fs == nil {
		config.Fs = afero.NewOsFs()
	}
	sub, err := config.Source.Subscribe()
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to search results: %w", err)
	}
	vm := &SearchResults{
		config:     config,
		dispatcher: dispatch.New(),
		reconciler: reconcile.New(reconcile.Config{
			Auth:      config.Source,
			Prefs:     config.Prefs,
			Filenames: config.Filenames,
			Queue:     config.Source,
			Fs:        config.Fs,
			Dialogs:   config.Dialogs,
			Notifier:  config.Notifier,
		}),
		scroll:    sync_.NewMutexed(0),
		events:    pubsub.NewPublisher[search.Event](),
		sourceSub: sub,
		forwarded: make(chan struct{}),
		log:       zap.S().Named("viewmodel"),
	}
	go vm.forward()
	return vm, nil
}

// forward passes on every event from the video source, resetting the scroll position whenever the results change.
func (vm *SearchResults) forward() {
	defer close(vm.forwarded)
	for e := range vm.sourceSub.Receive() {
		if _, ok := e.(search.VideosChanged); ok {
			vm.scroll.Set(0)
		}
		vm.events.Send(e)
	}
}

func (vm *SearchResults) Subscribe() (pubsub.ReceiverCloser[search.Event], error) {
	return vm.events.Subscribe()
}

// Close waits for any running command and stops forwarding events. The video source is not closed.
func (vm *SearchResults) Close() {
	vm.dispatcher.Close()
	vm.sourceSub.Close()
	<-vm.forwarded
	vm.events.Close()
}

func (vm *SearchResults) Videos() []*video_leecher.Video {
	return vm.config.Source.Videos()
}

func (vm *SearchResults) ScrollPosition() int {
	return vm.scroll.Get()
}

func (vm *SearchResults) SetScrollPosition(position int) {
	vm.scroll.Set(position)
}

func (vm *SearchResults) Menu() []MenuCommand {
	return []MenuCommand{
		{Label: "New Search", Icon: "Search", Run: vm.ShowSearch},
		{Label: "Download All", Icon: "Download", Run: vm.DownloadAll},
	}
}

// exec runs f on the dispatcher, showing any error it returns.
func (vm *SearchResults) exec(ctx context.Context, name string, f dispatch.Func) error {
	err := vm.dispatcher.Exec(ctx, name, f)
	if err != nil {
		vm.config.Dialogs.ShowError(ctx, err)
	}
	return err
}

// View opens a video's page, in the external player if one is configured. Unknown videos are ignored.
func (vm *SearchResults) View(ctx context.Context, id video_leecher.VideoID) error {
	return vm.exec(ctx, "view", func(ctx context.Context) error {
		video := vm.find(id)
		if video == nil || !video.HasAbsoluteURL() {
			return nil
		}
		log := vm.log.With("video_id", id, "url", video.URL)
		prefs := vm.config.Prefs.Current()
		if prefs.MiscUseExternalPlayer {
			log.Infow("opening in external player", "player", prefs.MiscExternalPlayer)
			return vm.config.Launcher.OpenWith(ctx, prefs.MiscExternalPlayer, video.URL)
		}
		log.Info("opening")
		return vm.config.Launcher.Open(ctx, video.URL)
	})
}

// Download prepares a single video's download job and shows it to the user.
func (vm *SearchResults) Download(ctx context.Context, id video_leecher.VideoID) error {
	return vm.exec(ctx, "download", func(ctx context.Context) error {
		video := vm.find(id)
		if video == nil {
			return nil
		}
		auth, err := vm.config.Source.AuthInfo(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get auth info for %v: %w", id, err)
		}
		if !auth.Downloadable() {
			return vm.config.Dialogs.ShowNotice(ctx, reconcile.CaptionSubOnly, reconcile.MessageSubOnly)
		}
		prefs := vm.config.Prefs.Current()
		favourite := vm.config.Prefs.IsChannelInFavourites(video.Channel)
		job, err := video_leecher.NewDownloadJob(&prefs, favourite, vm.config.Filenames, video, auth)
		if err != nil {
			return fmt.Errorf("failed to prepare download of %v: %w", id, err)
		}
		return vm.config.Navigator.ShowDownload(ctx, job)
	})
}

// DownloadAll queues every current result. The reconciler shows its own errors, so they aren't shown twice.
func (vm *SearchResults) DownloadAll(ctx context.Context) error {
	ran := false
	err := vm.dispatcher.Exec(ctx, "download all", func(ctx context.Context) error {
		ran = true
		_, err := vm.reconciler.Run(ctx, vm.config.Source.Videos())
		return err
	})
	if err != nil && !ran {
		vm.config.Dialogs.ShowError(ctx, err)
	}
	return err
}

func (vm *SearchResults) ShowSearch(ctx context.Context) error {
	return vm.exec(ctx, "show search", vm.config.Navigator.ShowSearch)
}

func (vm *SearchResults) find(id video_leecher.VideoID) *video_leecher.Video {
	if strings.TrimSpace(string(id)) == "" {
		return nil
	}
	return vm.config.Source.Find(id)
}
