package session

import (
	"context"
	"errors"
	"time"

	"github.com/alanbriolat/video-leecher"
)

func (d *Download) run() {
	d.stopped.Set()
	defer close(d.done)

	var ticker *time.Ticker
	var tick <-chan time.Time
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		select {
		case <-d.ctx.Done():
			d.close()
			return
		case cmd := <-d.stateCommand:
			_ = cmd.Respond(d.state)
		case <-d.startCommand:
			if d.start() {
				ticker = time.NewTicker(d.session.config.ProgressUpdateInterval)
				tick = ticker.C
			}
		case <-d.stopCommand:
			if d.fetchCancel != nil {
				d.fetchCancel()
			}
		case <-tick:
			d.updateProgress()
		case err := <-d.fetchDone:
			ticker.Stop()
			ticker, tick = nil, nil
			d.finish(err)
		}
	}
}

func (d *Download) close() {
	if d.fetchCancel != nil {
		d.fetchCancel()
		d.finish(<-d.fetchDone)
	}
	d.events.Close()
}

// start begins fetching the file in the background, returning false if there was nothing to do.
func (d *Download) start() bool {
	if d.state.Status == DownloadStatusComplete || !d.stopped.Clear() {
		return false
	}
	d.running.Set()
	job := d.state.Job
	d.log.Infof("starting download of %v to %v", job.Video.ID, job.FullPath())

	ctx, cancel := context.WithCancel(d.ctx)
	d.fetchCancel = cancel
	d.fetchDone = make(chan error, 1)
	d.downloaded.Store(0)
	d.expected.Store(0)
	config := d.session.config
	download, err := video_leecher.NewDownloadBuilder().
		WithContext(video_leecher.WithLogger(ctx, d.log.Desugar())).
		WithFs(config.Fs).
		WithHTTPClient(config.HTTPClient).
		WithMaxRetryTime(config.MaxRetryTime).
		WithProgressCallback(func(downloaded int64, expected int64) {
			d.downloaded.Store(downloaded)
			d.expected.Store(expected)
		}).
		Build()
	if err != nil {
		d.fetchDone <- err
	} else {
		go func() {
			d.fetchDone <- download.SaveURL(job.FullPath(), job.Quality.URL)
		}()
	}

	d.updateState(func(ds *DownloadState) {
		ds.Status = DownloadStatusDownloading
		ds.Error = ""
		ds.Downloaded, ds.Expected = 0, 0
	})
	d.events.Send(DownloadStarted{downloadEvent{d}})
	return true
}

func (d *Download) finish(err error) {
	d.fetchCancel()
	d.fetchCancel, d.fetchDone = nil, nil
	d.updateProgress()

	switch {
	case err == nil:
		d.log.Infof("download complete: %v", d.state.Job.FullPath())
		d.updateState(func(ds *DownloadState) { ds.Status = DownloadStatusComplete })
		d.complete.Set()
		d.events.Send(DownloadComplete{downloadEvent{d}, d.state.Job.FullPath()})
	case errors.Is(err, context.Canceled):
		d.log.Info("download stopped")
		d.updateState(func(ds *DownloadState) { ds.Status = DownloadStatusQueued })
		err = nil
	default:
		d.log.Warnf("download failed: %v", err)
		d.updateState(func(ds *DownloadState) {
			ds.Status = DownloadStatusError
			ds.Error = err.Error()
		})
	}
	d.running.Clear()
	d.stopped.Set()
	d.events.Send(DownloadStopped{downloadEvent{d}, err})
}

func (d *Download) updateProgress() {
	d.updateState(func(ds *DownloadState) {
		ds.Downloaded = d.downloaded.Load()
		ds.Expected = d.expected.Load()
	})
}

func (d *Download) updateState(f func(ds *DownloadState)) {
	old := d.state
	f(&d.state)
	if d.state.persistentChanged(&old) {
		if err := d.session.config.Database.WriteDownload(&d.state.DownloadPersistentState); err != nil {
			d.log.Errorf("failed to persist download state: %v", err)
		}
	}
	if d.state.changed(&old) {
		d.events.Send(DownloadUpdated{downloadEvent{d}, old, d.state})
	}
}
