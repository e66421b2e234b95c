// Package raw resolves direct links to video files.
package raw

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/alanbriolat/video-leecher"
	"github.com/alanbriolat/video-leecher/generic"
	"github.com/alanbriolat/video-leecher/util"
)

type Config struct {
	Protocols  generic.Set[string]
	Extensions generic.Set[string]
	Client     *http.Client
}

func NewConfig() Config {
	return Config{
		Protocols: generic.NewSet(
			"http",
			"https",
		),
		Extensions: generic.NewSet(
			"flv",
			"m4v",
			"mkv",
			"mp4",
			"ts",
			"webm",
		),
		Client: http.DefaultClient,
	}
}

func (c Config) Match(s string) (video_leecher.Source, error) {
	parsedURL, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	if !c.Protocols.Contains(parsedURL.Scheme) {
		return nil, fmt.Errorf("unknown URL scheme %v", parsedURL.Scheme)
	}
	filename, err := util.FilenameFromURL(parsedURL)
	if err != nil {
		return nil, err
	}
	stem, extension := util.SplitExtension(filename)
	if extension == "" {
		return nil, fmt.Errorf("no file extension found")
	}
	if !c.Extensions.Contains(extension) {
		return nil, fmt.Errorf("unknown file extension %v", extension)
	}
	return &source{
		client:    c.Client,
		url:       parsedURL,
		stem:      stem,
		extension: extension,
	}, nil
}

func (c Config) Provider() video_leecher.Provider {
	return video_leecher.Provider{
		Name:  "raw",
		Match: c.Match,
	}
}

type source struct {
	client    *http.Client
	url       *url.URL
	stem      string
	extension string
}

func (s *source) URL() string {
	return s.url.String()
}

func (s *source) String() string {
	return s.URL()
}

// Resolve checks the file is reachable with a HEAD request. There is no metadata beyond the URL itself, so the
// video is named after the file and attributed to the host; the ID is stable for the same URL.
func (s *source) Resolve(ctx context.Context) (*video_leecher.Video, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.URL(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("request failed: %v", resp.Status)
	}
	recordedAt := time.Now()
	if lastModified, err := http.ParseTime(resp.Header.Get("Last-Modified")); err == nil {
		recordedAt = lastModified
	}
	return &video_leecher.Video{
		ID:         video_leecher.VideoID(uuid.NewSHA1(uuid.NameSpaceURL, []byte(s.URL())).String()),
		Title:      s.stem,
		Channel:    s.url.Hostname(),
		URL:        s.URL(),
		RecordedAt: recordedAt.UTC(),
		Qualities: []video_leecher.Quality{
			{ID: "source", Name: s.extension, URL: s.URL()},
		},
	}, nil
}

func init() {
	video_leecher.DefaultProviderRegistry.MustAdd(
		NewConfig().Provider().WithPriority(video_leecher.PriorityLowest),
	)
}
