// Package search holds the current list of search results and the services that act on it.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/hashicorp/go-multierror"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/alanbriolat/video-leecher"
	"github.com/alanbriolat/video-leecher/internal/catalog"
	"github.com/alanbriolat/video-leecher/internal/pubsub"
	"github.com/alanbriolat/video-leecher/internal/sync_"
)

var (
	ErrEmptyQuery = errors.New("empty search query")
)

type Catalog interface {
	Remember(ctx context.Context, videos ...*video_leecher.Video) error
	ByChannel(ctx context.Context, channel string, limit int) ([]*video_leecher.Video, error)
	ByIDs(ctx context.Context, ids []video_leecher.VideoID) ([]*video_leecher.Video, error)
	Channels(ctx context.Context) ([]string, error)
	AuthInfo(ctx context.Context, id video_leecher.VideoID) (video_leecher.AuthInfo, error)
}

type Resolver interface {
	Resolve(ctx context.Context, url string) (*video_leecher.Video, error)
}

type Queue interface {
	Enqueue(ctx context.Context, job *video_leecher.DownloadJob) error
}

type QueryType int

const (
	QueryChannel QueryType = iota
	QueryURLs
	QueryIDs
)

type Query struct {
	Type    QueryType
	Channel string
	URLs    []string
	IDs     []video_leecher.VideoID
	// Maximum number of results for a channel search.
	Limit int
}

func (q Query) String() string {
	switch q.Type {
	case QueryChannel:
		return fmt.Sprintf("channel %q", q.Channel)
	case QueryURLs:
		return fmt.Sprintf("URLs %v", strings.Join(q.URLs, ", "))
	default:
		return fmt.Sprintf("IDs %v", q.IDs)
	}
}

type Result struct {
	Videos []*video_leecher.Video
	// Suggestion is the closest known channel name, when a channel search found nothing.
	Suggestion string
	// Failures has an error for each URL that couldn't be resolved.
	Failures error
}

type Event interface{}

// VideosChanged is sent whenever the result list is replaced.
type VideosChanged struct {
	Query  Query
	Videos []*video_leecher.Video
}

type Config struct {
	Catalog  Catalog
	Resolver Resolver
	Queue    Queue
	// How long auth lookups are remembered.
	AuthCacheTTL time.Duration
}

type Source struct {
	config    Config
	videos    *sync_.RWMutexed[[]*video_leecher.Video]
	authCache *cache.Cache
	events    pubsub.Publisher[Event]
	log       *zap.SugaredLogger
}

func New(config Config) *Source {
	if config.AuthCacheTTL <= 0 {
		config.AuthCacheTTL = 5 * time.Minute
	}
	return &Source{
		config:    config,
		videos:    sync_.NewRWMutexed[[]*video_leecher.Video](nil),
		authCache: cache.New(config.AuthCacheTTL, 2*config.AuthCacheTTL),
		events:    pubsub.NewPublisher[Event](),
		log:       zap.S().Named("search"),
	}
}

func (s *Source) Subscribe() (pubsub.ReceiverCloser[Event], error) {
	return s.events.Subscribe()
}

func (s *Source) Close() {
	s.events.Close()
}

// Videos returns the current results in order. The slice belongs to the caller, the videos don't.
func (s *Source) Videos() []*video_leecher.Video {
	current := s.videos.Get()
	videos := make([]*video_leecher.Video, len(current))
	copy(videos, current)
	return videos
}

// Find returns the current result with the given ID, or nil.
func (s *Source) Find(id video_leecher.VideoID) *video_leecher.Video {
	var found *video_leecher.Video
	_ = s.videos.RLocked(func(videos *[]*video_leecher.Video) error {
		for _, v := range *videos {
			if v != nil && v.ID == id {
				found = v
				break
			}
		}
		return nil
	})
	return found
}

// Search replaces the current results with those of the query.
func (s *Source) Search(ctx context.Context, q Query) (*Result, error) {
	log := s.log.With("query", q.String())
	var result *Result
	var err error
	switch q.Type {
	case QueryChannel:
		result, err = s.searchChannel(ctx, q)
	case QueryURLs:
		result, err = s.searchURLs(ctx, q)
	case QueryIDs:
		result, err = s.searchIDs(ctx, q)
	default:
		err = fmt.Errorf("unknown query type %d", q.Type)
	}
	if err != nil {
		log.Warnf("search failed: %v", err)
		return nil, err
	}
	log.Infof("found %d videos", len(result.Videos))
	s.setVideos(q, result.Videos)
	return result, nil
}

func (s *Source) searchChannel(ctx context.Context, q Query) (*Result, error) {
	channel := strings.TrimSpace(q.Channel)
	if channel == "" {
		return nil, ErrEmptyQuery
	}
	videos, err := s.config.Catalog.ByChannel(ctx, channel, q.Limit)
	if err != nil {
		return nil, err
	}
	result := &Result{Videos: videos}
	if len(videos) == 0 {
		channels, err := s.config.Catalog.Channels(ctx)
		if err != nil {
			return nil, err
		}
		result.Suggestion = closestChannel(channel, channels)
	}
	return result, nil
}

func (s *Source) searchURLs(ctx context.Context, q Query) (*Result, error) {
	if len(q.URLs) == 0 {
		return nil, ErrEmptyQuery
	}
	result := &Result{}
	for _, u := range q.URLs {
		v, err := s.config.Resolver.Resolve(ctx, u)
		if err != nil {
			result.Failures = multierror.Append(result.Failures, fmt.Errorf("%v: %w", u, err))
			continue
		}
		result.Videos = append(result.Videos, v)
	}
	// So they can be found by ID later
	if err := s.config.Catalog.Remember(ctx, result.Videos...); err != nil {
		s.log.Warnf("failed to add resolved videos to catalogue: %v", err)
	}
	return result, nil
}

func (s *Source) searchIDs(ctx context.Context, q Query) (*Result, error) {
	if len(q.IDs) == 0 {
		return nil, ErrEmptyQuery
	}
	videos, err := s.config.Catalog.ByIDs(ctx, q.IDs)
	if err != nil {
		return nil, err
	}
	return &Result{Videos: videos}, nil
}

func (s *Source) setVideos(q Query, videos []*video_leecher.Video) {
	s.videos.Set(videos)
	s.events.Send(VideosChanged{Query: q, Videos: videos})
}

// AuthInfo looks up whether a video may be downloaded. Videos the catalogue doesn't know about are public.
func (s *Source) AuthInfo(ctx context.Context, id video_leecher.VideoID) (video_leecher.AuthInfo, error) {
	if cached, ok := s.authCache.Get(string(id)); ok {
		return cached.(video_leecher.AuthInfo), nil
	}
	auth, err := s.config.Catalog.AuthInfo(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		auth, err = video_leecher.AuthInfo{}, nil
	}
	if err != nil {
		return video_leecher.AuthInfo{}, err
	}
	s.authCache.SetDefault(string(id), auth)
	return auth, nil
}

func (s *Source) Enqueue(ctx context.Context, job *video_leecher.DownloadJob) error {
	return s.config.Queue.Enqueue(ctx, job)
}

// closestChannel returns the known channel nearest in spelling to the search, or "" if none is reasonably close.
func closestChannel(search string, channels []string) string {
	folded := cases.Fold().String(search)
	best, bestDistance := "", len(folded)/2+1
	for _, c := range channels {
		if d := levenshtein.ComputeDistance(folded, cases.Fold().String(c)); d < bestDistance {
			best, bestDistance = c, d
		}
	}
	return best
}
