package video_leecher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/afero"
)

const partialSuffix = ".part"

type Download interface {
	// AddDownloadedBytes increases how many bytes have been successfully downloaded so far.
	AddDownloadedBytes(n int64)

	// AddExpectedBytes increases how many bytes are expected to be downloaded.
	AddExpectedBytes(n int64)

	// Cancel the Download, stopping any in-progress I/O activity.
	Cancel()

	// Context is the cancellable context of this Download.
	Context() context.Context

	// Progress returns the downloaded and expected bytes of the download.
	Progress() (int64, int64)

	// SaveStream writes the stream to targetPath, replacing any existing file only once the stream is complete.
	SaveStream(targetPath string, stream io.Reader) error

	// SaveURL makes a GET request to the URL (retrying transient failures) and saves the response like SaveStream.
	SaveURL(targetPath string, url string) error

	// Write will ignore the data but will send the byte count to AddDownloadedBytes. Allows progress tracking using
	// io.MultiWriter (but ensure the Download is the last writer to avoid counting failed writes).
	Write(p []byte) (n int, err error)
}

type download struct {
	ctx              context.Context
	cancel           context.CancelFunc
	fs               afero.Fs
	client           *http.Client
	newBackOff       func() backoff.BackOff
	progressCallback func(int64, int64)
	expectedBytes    int64
	downloadedBytes  int64
}

func (d *download) AddDownloadedBytes(n int64) {
	d.downloadedBytes += n
	if d.progressCallback != nil {
		d.progressCallback(d.Progress())
	}
}

func (d *download) AddExpectedBytes(n int64) {
	d.expectedBytes += n
	if d.progressCallback != nil {
		d.progressCallback(d.Progress())
	}
}

func (d *download) Cancel() {
	d.cancel()
}

func (d *download) Context() context.Context {
	return d.ctx
}

func (d *download) Progress() (int64, int64) {
	return d.downloadedBytes, d.expectedBytes
}

func (d *download) SaveStream(targetPath string, stream io.Reader) error {
	if err := d.fs.MkdirAll(filepath.Dir(targetPath), 0775); err != nil {
		return fmt.Errorf("failed to create target dir: %w", err)
	}
	partPath := targetPath + partialSuffix
	f, err := d.fs.Create(partPath)
	if err != nil {
		return fmt.Errorf("failed to open target file: %w", err)
	}
	_, err = io.Copy(io.MultiWriter(f, d), &readerContext{ctx: d.ctx, r: stream})
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = d.fs.Remove(partPath)
		if ctxErr := d.ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return fmt.Errorf("failed to save stream: %w", err)
	}
	if err := d.fs.Rename(partPath, targetPath); err != nil {
		return fmt.Errorf("failed to move completed file into place: %w", err)
	}
	return nil
}

func (d *download) SaveURL(targetPath string, url string) error {
	var resp *http.Response
	operation := func() error {
		req, err := http.NewRequestWithContext(d.ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		r, err := d.client.Do(req)
		if err != nil {
			if d.ctx.Err() != nil {
				return backoff.Permanent(d.ctx.Err())
			}
			return err
		}
		if r.StatusCode >= 500 {
			r.Body.Close()
			return fmt.Errorf("server error: %v", r.Status)
		} else if r.StatusCode >= 400 {
			r.Body.Close()
			return backoff.Permanent(fmt.Errorf("request failed: %v", r.Status))
		}
		resp = r
		return nil
	}
	if err := backoff.Retry(operation, backoff.WithContext(d.newBackOff(), d.ctx)); err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.ContentLength > 0 {
		d.AddExpectedBytes(resp.ContentLength)
	}
	return d.SaveStream(targetPath, resp.Body)
}

func (d *download) Write(p []byte) (n int, err error) {
	n = len(p)
	d.AddDownloadedBytes(int64(n))
	return n, nil
}

type DownloadBuilder interface {
	Build() (Download, error)
	WithContext(ctx context.Context) DownloadBuilder
	WithFs(fs afero.Fs) DownloadBuilder
	WithHTTPClient(client *http.Client) DownloadBuilder
	WithMaxRetryTime(d time.Duration) DownloadBuilder
	WithProgressCallback(f func(downloaded int64, expected int64)) DownloadBuilder
}

type downloadBuilder struct {
	ctx              context.Context
	fs               afero.Fs
	client           *http.Client
	maxRetryTime     time.Duration
	progressCallback func(int64, int64)
}

func NewDownloadBuilder() DownloadBuilder {
	return &downloadBuilder{
		ctx:          context.Background(),
		fs:           afero.NewOsFs(),
		client:       http.DefaultClient,
		maxRetryTime: 2 * time.Minute,
	}
}

func (b *downloadBuilder) Build() (Download, error) {
	if b.fs == nil {
		return nil, fmt.Errorf("no filesystem")
	}
	maxRetryTime := b.maxRetryTime
	d := download{
		fs:               b.fs,
		client:           b.client,
		progressCallback: b.progressCallback,
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.MaxElapsedTime = maxRetryTime
			return bo
		},
	}
	d.ctx, d.cancel = context.WithCancel(b.ctx)
	return &d, nil
}

func (b *downloadBuilder) WithContext(ctx context.Context) DownloadBuilder {
	b.ctx = ctx
	return b
}

func (b *downloadBuilder) WithFs(fs afero.Fs) DownloadBuilder {
	b.fs = fs
	return b
}

func (b *downloadBuilder) WithHTTPClient(client *http.Client) DownloadBuilder {
	b.client = client
	return b
}

func (b *downloadBuilder) WithMaxRetryTime(d time.Duration) DownloadBuilder {
	b.maxRetryTime = d
	return b
}

func (b *downloadBuilder) WithProgressCallback(f func(int64, int64)) DownloadBuilder {
	b.progressCallback = f
	return b
}
