// Package reconcile adds a whole list of videos to the download queue, deciding what to do about files that already
// exist.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/alanbriolat/video-leecher"
)

var (
	ErrPanic = errors.New("bulk download panicked")
)

type AuthLookup interface {
	AuthInfo(ctx context.Context, id video_leecher.VideoID) (video_leecher.AuthInfo, error)
}

type PreferencesService interface {
	// Current returns a copy of the current preferences.
	Current() video_leecher.Preferences
	IsChannelInFavourites(channel string) bool
}

type Enqueuer interface {
	Enqueue(ctx context.Context, job *video_leecher.DownloadJob) error
}

type Config struct {
	Auth      AuthLookup
	Prefs     PreferencesService
	Filenames video_leecher.FilenameService
	Queue     Enqueuer
	Fs        afero.Fs
	Dialogs   Dialogs
	Notifier  Notifier
}

type Reconciler struct {
	config Config
	log    *zap.SugaredLogger
}

func New(config Config) *Reconciler {
	if config.Fs == nil {
		config.Fs = afero.NewOsFs()
	}
	if config.Filenames == nil {
		config.Filenames = video_leecher.NewFilenameService()
	}
	return &Reconciler{
		config: config,
		log:    zap.S().Named("reconcile"),
	}
}

// Run adds every video in the list to the download queue, in order. Sub-only videos the user can't download are
// reported and left out. When a destination file already exists, the user is asked whether to overwrite it; on the
// second such file they may instead decide for all the remaining ones.
//
// Whatever happens, the summary of what was done is sent to the Notifier exactly once. If anything fails, the rest of
// the list is abandoned, the error is shown, and the partial summary is returned along with the error.
func (r *Reconciler) Run(ctx context.Context, videos []*video_leecher.Video) (summary Summary, err error) {
	log := r.log.With("videos", len(videos))
	s := &state{}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, p)
		}
		summary = s.Summary
		if err != nil {
			log.Errorw("bulk download failed", "error", err, "added", s.Added, "skipped", s.Skipped, "overwritten", s.Overwritten)
			r.config.Dialogs.ShowError(ctx, err)
		} else {
			log.Infow("bulk download finished", "added", s.Added, "skipped", s.Skipped, "overwritten", s.Overwritten)
		}
		r.config.Notifier.Notify(summary.Message())
	}()

	prefs := r.config.Prefs.Current()
	for _, video := range videos {
		if err := ctx.Err(); err != nil {
			return s.Summary, err
		}
		stop, err := r.reconcile(ctx, s, &prefs, video)
		if err != nil {
			return s.Summary, err
		} else if stop {
			log.Info("bulk download cancelled")
			break
		}
	}
	return s.Summary, nil
}

// reconcile handles one video, returning true if the rest of the list should be abandoned.
func (r *Reconciler) reconcile(ctx context.Context, s *state, prefs *video_leecher.Preferences, video *video_leecher.Video) (bool, error) {
	if video == nil {
		return false, nil
	}
	log := r.log.With("video_id", video.ID)

	auth, err := r.config.Auth.AuthInfo(ctx, video.ID)
	if err != nil {
		return false, fmt.Errorf("failed to get auth info for %v: %w", video.ID, err)
	}
	if !auth.Downloadable() {
		log.Info("skipping sub-only video")
		return false, r.config.Dialogs.ShowNotice(ctx, CaptionSubOnly, SubOnlyMessage(video.Title))
	}

	favourite := r.config.Prefs.IsChannelInFavourites(video.Channel)
	job, err := video_leecher.NewDownloadJob(prefs, favourite, r.config.Filenames, video, auth)
	if err != nil {
		return false, fmt.Errorf("failed to prepare download of %v: %w", video.ID, err)
	}

	exists, err := afero.Exists(r.config.Fs, job.FullPath())
	if err != nil {
		return false, fmt.Errorf("failed to check %v: %w", job.FullPath(), err)
	} else if !exists {
		return false, r.add(ctx, s, job, false)
	}

	s.collisions++
	if s.collisions == 2 {
		answer, err := r.config.Dialogs.Ask(ctx, CaptionDownload, messageMultiple)
		if err != nil {
			return false, err
		}
		log.Debugw("existing files decision", "answer", answer)
		switch answer {
		case AnswerYes:
			s.overrideAll = true
		case AnswerNo:
			s.skipAll = true
		case AnswerCancel, AnswerOK, AnswerNone:
		default:
			return false, fmt.Errorf("%w: %v", ErrUnknownAnswer, answer)
		}
	}

	if s.skipAll {
		s.Skipped++
		return false, nil
	}
	if s.overrideAll {
		return false, r.add(ctx, s, job, true)
	}

	answer, err := r.config.Dialogs.Ask(ctx, CaptionDownload, fmt.Sprintf(messageExisting, job.FullPath()))
	if err != nil {
		return false, err
	}
	switch answer {
	case AnswerYes, AnswerOK, AnswerNone:
		return false, r.add(ctx, s, job, true)
	case AnswerNo:
		s.Skipped++
		return false, nil
	case AnswerCancel:
		return true, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrUnknownAnswer, answer)
	}
}

func (r *Reconciler) add(ctx context.Context, s *state, job *video_leecher.DownloadJob, overwrite bool) error {
	if err := r.config.Queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue %v: %w", job.Video.ID, err)
	}
	s.Added++
	if overwrite {
		s.Overwritten++
	}
	return nil
}
