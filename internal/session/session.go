// Package session is the download queue: jobs are added to it, persisted, and downloaded on request.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/alanbriolat/video-leecher"
	"github.com/alanbriolat/video-leecher/internal/pubsub"
	"github.com/alanbriolat/video-leecher/internal/sync_"
)

var (
	ErrDuplicateDownload = errors.New("duplicate download ID")
	ErrSessionClosed     = errors.New("session closed")
	ErrUnknownDownload   = errors.New("unknown download")
)

type Config struct {
	Database   Database
	Fs         afero.Fs
	HTTPClient *http.Client
	// How long to keep retrying a failing request before giving up on a download.
	MaxRetryTime time.Duration
	// Minimum interval between DownloadUpdated events from progress updates.
	ProgressUpdateInterval time.Duration
}

var DefaultConfig = Config{
	Database:               NilDatabase{},
	Fs:                     afero.NewOsFs(),
	HTTPClient:             http.DefaultClient,
	MaxRetryTime:           2 * time.Minute,
	ProgressUpdateInterval: 500 * time.Millisecond,
}

type downloadsByID = map[DownloadID]*Download

type Session struct {
	config    Config
	ctx       context.Context
	ctxCancel context.CancelFunc
	log       *zap.SugaredLogger

	downloads *sync_.RWMutexed[downloadsByID]
	events    pubsub.Publisher[Event]
}

// New creates a Session, restoring any downloads from the database. Zero fields of config take their value from
// DefaultConfig.
func New(config Config, ctx context.Context) (*Session, error) {
	if config.Database == nil {
		config.Database = DefaultConfig.Database
	}
	if config.Fs == nil {
		config.Fs = DefaultConfig.Fs
	}
	if config.HTTPClient == nil {
		config.HTTPClient = DefaultConfig.HTTPClient
	}
	if config.MaxRetryTime <= 0 {
		config.MaxRetryTime = DefaultConfig.MaxRetryTime
	}
	if config.ProgressUpdateInterval <= 0 {
		config.ProgressUpdateInterval = DefaultConfig.ProgressUpdateInterval
	}
	stored, err := config.Database.ListDownloads()
	if err != nil {
		return nil, fmt.Errorf("failed to load downloads: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		config:    config,
		ctx:       ctx,
		ctxCancel: cancel,
		log:       zap.S().Named("session"),

		downloads: sync_.NewRWMutexed(make(downloadsByID)),
		events:    pubsub.NewPublisher[Event](),
	}
	for _, state := range stored {
		// Anything that was running when the process stopped needs to start again
		state.Status = state.Status.NonRunning()
		if _, err := s.insertDownload(DownloadState{DownloadPersistentState: state}); err != nil {
			s.Close()
			return nil, err
		}
	}
	s.log.Debugf("restored %d downloads", len(stored))
	return s, nil
}

func (s *Session) Subscribe() (pubsub.ReceiverCloser[Event], error) {
	return s.events.Subscribe()
}

// SubscribeProgress subscribes to the events of running downloads, leaving out downloads being added or removed.
func (s *Session) SubscribeProgress() (pubsub.ReceiverCloser[Event], error) {
	return s.events.SubscribeFiltered(isProgress)
}

func isProgress(e Event) bool {
	switch e.(type) {
	case DownloadStarted, DownloadUpdated, DownloadStopped, DownloadComplete:
		return true
	default:
		return false
	}
}

// Enqueue adds a job to the queue. The same job may be queued more than once.
func (s *Session) Enqueue(_ context.Context, job *video_leecher.DownloadJob) error {
	_, err := s.AddDownload(job)
	return err
}

func (s *Session) AddDownload(job *video_leecher.DownloadJob) (*Download, error) {
	if s.ctx.Err() != nil {
		return nil, ErrSessionClosed
	}
	ds := DownloadState{}
	ds.ID = NewDownloadID()
	ds.Job = *job
	ds.Status = DownloadStatusQueued
	ds.AddedAt = time.Now()
	return s.insertDownload(ds)
}

func (s *Session) insertDownload(ds DownloadState) (*Download, error) {
	d := newDownload(s, ds)
	err := s.downloads.Locked(func(downloads *downloadsByID) error {
		if *downloads == nil {
			return ErrSessionClosed
		} else if _, ok := (*downloads)[d.ID]; ok {
			return ErrDuplicateDownload
		}
		(*downloads)[d.ID] = d
		return nil
	})
	if err == nil {
		err = s.config.Database.WriteDownload(&ds.DownloadPersistentState)
		if err != nil {
			_ = s.downloads.Locked(func(downloads *downloadsByID) error {
				delete(*downloads, d.ID)
				return nil
			})
		}
	}
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to add download: %w", err)
	}
	if err := d.events.AddSubscriber(s.events, false); err != nil {
		return nil, err
	}
	s.log.Debugf("download added: %v", d)
	s.events.Send(DownloadAdded{downloadEvent{d}})
	return d, nil
}

// RemoveDownload stops and forgets a download. The file, if any, is left alone.
func (s *Session) RemoveDownload(id DownloadID) error {
	var d *Download
	_ = s.downloads.Locked(func(downloads *downloadsByID) error {
		d = (*downloads)[id]
		delete(*downloads, id)
		return nil
	})
	if d == nil {
		return fmt.Errorf("%w: %v", ErrUnknownDownload, id)
	}
	d.Close()
	state := d.state.DownloadPersistentState
	if err := s.config.Database.DeleteDownload(&state); err != nil {
		return fmt.Errorf("failed to delete download: %w", err)
	}
	s.log.Debugf("download removed: %v", d)
	s.events.Send(DownloadRemoved{downloadEvent{d}})
	return nil
}

// ListDownloads returns all downloads, oldest first.
func (s *Session) ListDownloads() []*Download {
	var list []*Download
	_ = s.downloads.RLocked(func(downloads *downloadsByID) error {
		list = make([]*Download, 0, len(*downloads))
		for _, d := range *downloads {
			list = append(list, d)
		}
		return nil
	})
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].state.AddedAt.Before(list[j].state.AddedAt)
	})
	return list
}

func (s *Session) GetDownload(id DownloadID) (d *Download) {
	_ = s.downloads.RLocked(func(downloads *downloadsByID) error {
		d = (*downloads)[id]
		return nil
	})
	return d
}

// RunQueue downloads everything that isn't complete yet, one at a time and oldest first. A failed download doesn't
// stop the rest; all failures are returned together.
func (s *Session) RunQueue(ctx context.Context) error {
	var result error
	for _, d := range s.ListDownloads() {
		state, err := d.State()
		if err != nil {
			continue
		} else if state.Status == DownloadStatusComplete {
			continue
		}
		d.Start()
		// Start has been handled by the time State responds, so this tells us whether it started
		if state, err := d.State(); err != nil || state.Status != DownloadStatusDownloading {
			continue
		}
		select {
		case <-d.Stopped():
		case <-ctx.Done():
			d.Stop()
			<-d.Stopped()
			return multierror.Append(result, ctx.Err())
		}
		if state, err := d.State(); err == nil && state.Status == DownloadStatusError {
			result = multierror.Append(result, fmt.Errorf("%v: %v", d.ID, state.Error))
		}
	}
	return result
}

func (s *Session) Close() {
	s.ctxCancel()
	downloads := s.downloads.Swap(nil)
	var wg sync.WaitGroup
	wg.Add(len(downloads))
	for _, d := range downloads {
		go func(d *Download) {
			d.Close()
			wg.Done()
		}(d)
	}
	wg.Wait()
	s.events.Close()
}
