package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alanbriolat/video-leecher"
	"github.com/alanbriolat/video-leecher/generic"
	"github.com/alanbriolat/video-leecher/internal/lpc"
	"github.com/alanbriolat/video-leecher/internal/pubsub"
	"github.com/alanbriolat/video-leecher/internal/sync_"
)

var (
	ErrDownloadClosed = errors.New("download closed")
)

type DownloadID string

func NewDownloadID() DownloadID {
	return DownloadID(generic.Unwrap(uuid.NewRandom()).String())
}

type DownloadStatus string

const (
	DownloadStatusUndefined   DownloadStatus = ""
	DownloadStatusQueued      DownloadStatus = "queued"
	DownloadStatusDownloading DownloadStatus = "downloading"
	DownloadStatusComplete    DownloadStatus = "complete"
	DownloadStatusError       DownloadStatus = "error"
)

// IsRunning returns true if the status is one where some active process should be updating the download.
func (s DownloadStatus) IsRunning() bool {
	return s == DownloadStatusDownloading
}

// NonRunning returns the status to resume from after an interruption, which is the same status if IsRunning is
// already false.
func (s DownloadStatus) NonRunning() DownloadStatus {
	if s.IsRunning() {
		return DownloadStatusQueued
	}
	return s
}

// DownloadPersistentState is the part of a download's state that survives a restart.
type DownloadPersistentState struct {
	ID      DownloadID                `json:"id"`
	Job     video_leecher.DownloadJob `json:"job"`
	AddedAt time.Time                 `json:"added_at"`
	Status  DownloadStatus            `json:"status"`
	Error   string                    `json:"error,omitempty"`
}

type DownloadState struct {
	DownloadPersistentState
	Downloaded int64
	Expected   int64
}

func (s *DownloadState) persistentChanged(o *DownloadState) bool {
	return s.Status != o.Status || s.Error != o.Error
}

func (s *DownloadState) changed(o *DownloadState) bool {
	return s.persistentChanged(o) || s.Downloaded != o.Downloaded || s.Expected != o.Expected
}

type stateCommand = lpc.Command[generic.Void, DownloadState]

type Download struct {
	ID DownloadID

	state     DownloadState
	session   *Session
	ctx       context.Context
	ctxCancel context.CancelFunc
	log       *zap.SugaredLogger

	events pubsub.Publisher[Event]

	running      sync_.Event
	stopped      sync_.Event
	complete     sync_.Event
	done         chan struct{}
	startCommand chan struct{}
	stopCommand  chan struct{}
	stateCommand chan *stateCommand

	// Only set while running
	fetchCancel context.CancelFunc
	fetchDone   chan error
	downloaded  atomic.Int64
	expected    atomic.Int64
}

func newDownload(session *Session, state DownloadState) *Download {
	ctx, cancel := context.WithCancel(session.ctx)
	d := &Download{
		ID:        state.ID,
		state:     state,
		session:   session,
		ctx:       ctx,
		ctxCancel: cancel,
		log:       zap.S().Named("download").With("download_id", state.ID),

		events: pubsub.NewPublisher[Event](),

		done:         make(chan struct{}),
		startCommand: make(chan struct{}),
		stopCommand:  make(chan struct{}),
		stateCommand: make(chan *stateCommand),
	}
	if state.Status == DownloadStatusComplete {
		d.complete.Set()
	}
	go d.run()
	return d
}

func (d *Download) String() string {
	return fmt.Sprintf("Download{ID:%q, Video:%q, Path:%q}", d.ID, d.state.Job.Video.ID, d.state.Job.FullPath())
}

// Subscribe to events about only this download.
func (d *Download) Subscribe() (pubsub.ReceiverCloser[Event], error) {
	return d.events.Subscribe()
}
