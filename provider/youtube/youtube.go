// Package youtube resolves YouTube video links.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/kkdai/youtube/v2"
	"go.uber.org/zap"

	"github.com/alanbriolat/video-leecher"
)

var (
	ErrNoFormats = errors.New("no downloadable formats with audio")
)

type source struct {
	client  *youtube.Client
	videoID string
}

func (s *source) URL() string {
	return fmt.Sprintf("https://www.youtube.com/watch?v=%s", s.videoID)
}

func (s *source) String() string {
	return s.URL()
}

func (s *source) Resolve(ctx context.Context) (*video_leecher.Video, error) {
	details, err := s.client.GetVideoContext(ctx, s.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to get video info: %w", err)
	}
	qualities := s.qualities(ctx, details)
	if len(qualities) == 0 {
		return nil, ErrNoFormats
	}
	return &video_leecher.Video{
		ID:         video_leecher.VideoID(details.ID),
		Title:      details.Title,
		Channel:    details.Author,
		URL:        s.URL(),
		RecordedAt: details.PublishDate,
		Length:     details.Duration,
		Qualities:  qualities,
	}, nil
}

// qualities lists the formats that have audio, highest bitrate first, leaving out any whose stream URL can't be found.
func (s *source) qualities(ctx context.Context, details *youtube.Video) []video_leecher.Quality {
	log := zap.S().Named("youtube").With("video_id", details.ID)
	formats := details.Formats.WithAudioChannels()
	sort.SliceStable(formats, func(i, j int) bool {
		return formats[i].Bitrate > formats[j].Bitrate
	})
	qualities := make([]video_leecher.Quality, 0, len(formats))
	for i := range formats {
		format := &formats[i]
		streamURL := format.URL
		if streamURL == "" {
			var err error
			if streamURL, err = s.client.GetStreamURLContext(ctx, details, format); err != nil {
				log.Debugf("skipping format %v: %v", format.ItagNo, err)
				continue
			}
		}
		name := format.QualityLabel
		if name == "" {
			name = format.Quality
		}
		if mimeType := strings.SplitN(format.MimeType, ";", 2)[0]; mimeType != "" {
			name = fmt.Sprintf("%v (%v)", name, mimeType)
		}
		qualities = append(qualities, video_leecher.Quality{
			ID:   fmt.Sprint(format.ItagNo),
			Name: name,
			URL:  streamURL,
		})
	}
	return qualities
}

type Config struct {
	Client *youtube.Client
}

func (c Config) Match(s string) (video_leecher.Source, error) {
	if parsedURL, err := url.Parse(s); err != nil {
		return nil, err
	} else if videoID, err := extractVideoID(parsedURL); err != nil {
		return nil, err
	} else {
		return &source{client: c.Client, videoID: videoID}, nil
	}
}

func New() video_leecher.Provider {
	c := Config{Client: &youtube.Client{}}
	return video_leecher.Provider{Name: "youtube", Match: c.Match}
}

// Extract video ID from YouTube URL.
//
// Allowed URL formats:
//
//	http(s?)://(www|m).youtube.com/(watch|details)?v={VIDEO_ID}
//	http(s?)://(www|m).youtube.com/(v|shorts)/{VIDEO_ID}
//	http(s?)://youtu.be/{VIDEO_ID}
func extractVideoID(u *url.URL) (string, error) {
	var id string
	switch u.Hostname() {
	case "www.youtube.com", "youtube.com", "m.youtube.com":
		if strings.HasPrefix(u.Path, "/v/") || strings.HasPrefix(u.Path, "/shorts/") {
			id = strings.SplitN(u.Path, "/", 4)[2]
		} else if u.Path == "/watch" || u.Path == "/details" {
			if !u.Query().Has("v") {
				return "", fmt.Errorf("missing ?v= query parameter")
			}
			id = u.Query().Get("v")
		}
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
	default:
		return "", fmt.Errorf("unrecognised hostname")
	}
	if id == "" {
		return "", fmt.Errorf("could not extract video ID")
	}
	return id, nil
}

func init() {
	video_leecher.DefaultProviderRegistry.MustAdd(New())
}
