package search

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	assert_ "github.com/stretchr/testify/assert"
	require_ "github.com/stretchr/testify/require"

	"github.com/alanbriolat/video-leecher"
	"github.com/alanbriolat/video-leecher/internal/catalog"
)

type fakeCatalog struct {
	videos     []*video_leecher.Video
	auth       map[video_leecher.VideoID]video_leecher.AuthInfo
	authCalls  int
	remembered []*video_leecher.Video
}

func (c *fakeCatalog) Remember(_ context.Context, videos ...*video_leecher.Video) error {
	c.remembered = append(c.remembered, videos...)
	return nil
}

func (c *fakeCatalog) ByChannel(_ context.Context, channel string, limit int) ([]*video_leecher.Video, error) {
	var found []*video_leecher.Video
	for _, v := range c.videos {
		if v.Channel == channel && len(found) < limit {
			found = append(found, v)
		}
	}
	return found, nil
}

func (c *fakeCatalog) ByIDs(_ context.Context, ids []video_leecher.VideoID) ([]*video_leecher.Video, error) {
	var found []*video_leecher.Video
	for _, id := range ids {
		for _, v := range c.videos {
			if v.ID == id {
				found = append(found, v)
			}
		}
	}
	return found, nil
}

func (c *fakeCatalog) Channels(_ context.Context) ([]string, error) {
	return []string{"speedrunner", "cooking_with_bob", "a"}, nil
}

func (c *fakeCatalog) AuthInfo(_ context.Context, id video_leecher.VideoID) (video_leecher.AuthInfo, error) {
	c.authCalls++
	if id == "broken" {
		return video_leecher.AuthInfo{}, errors.New("database locked")
	}
	if auth, ok := c.auth[id]; ok {
		return auth, nil
	}
	return video_leecher.AuthInfo{}, fmt.Errorf("%w: %v", catalog.ErrNotFound, id)
}

type fakeResolver struct{}

func (fakeResolver) Resolve(_ context.Context, url string) (*video_leecher.Video, error) {
	if url == "bad" {
		return nil, video_leecher.ErrNoMatch
	}
	return &video_leecher.Video{ID: video_leecher.VideoID("r-" + url), URL: url}, nil
}

type fakeQueue struct {
	jobs []*video_leecher.DownloadJob
}

func (q *fakeQueue) Enqueue(_ context.Context, job *video_leecher.DownloadJob) error {
	q.jobs = append(q.jobs, job)
	return nil
}

func newSource() (*Source, *fakeCatalog, *fakeQueue) {
	c := &fakeCatalog{
		videos: []*video_leecher.Video{
			{ID: "s1", Channel: "speedrunner"},
			{ID: "s2", Channel: "speedrunner"},
			{ID: "c1", Channel: "cooking_with_bob"},
		},
		auth: map[video_leecher.VideoID]video_leecher.AuthInfo{
			"s1": {SubOnly: true},
		},
	}
	q := &fakeQueue{}
	return New(Config{Catalog: c, Resolver: fakeResolver{}, Queue: q, AuthCacheTTL: time.Minute}), c, q
}

func ids(videos []*video_leecher.Video) []video_leecher.VideoID {
	var list []video_leecher.VideoID
	for _, v := range videos {
		list = append(list, v.ID)
	}
	return list
}

func TestSource_SearchChannel(t *testing.T) {
	assert := assert_.New(t)
	s, _, _ := newSource()
	defer s.Close()
	events, err := s.Subscribe()
	require_.NoError(t, err)
	defer events.Close()

	result, err := s.Search(context.Background(), Query{Type: QueryChannel, Channel: "speedrunner", Limit: 10})
	assert.Nil(err)
	assert.Equal([]video_leecher.VideoID{"s1", "s2"}, ids(result.Videos))
	assert.Equal("", result.Suggestion)
	assert.Equal([]video_leecher.VideoID{"s1", "s2"}, ids(s.Videos()))
	e := <-events.Receive()
	if changed, ok := e.(VideosChanged); assert.True(ok) {
		assert.Equal([]video_leecher.VideoID{"s1", "s2"}, ids(changed.Videos))
	}

	result, err = s.Search(context.Background(), Query{Type: QueryChannel, Channel: "speedruner", Limit: 10})
	assert.Nil(err)
	assert.Empty(result.Videos)
	assert.Equal("speedrunner", result.Suggestion)
	assert.Empty(s.Videos())
	<-events.Receive()

	result, err = s.Search(context.Background(), Query{Type: QueryChannel, Channel: "zzzzzzzzzz", Limit: 10})
	assert.Nil(err)
	assert.Equal("", result.Suggestion)
	<-events.Receive()

	_, err = s.Search(context.Background(), Query{Type: QueryChannel, Channel: "  "})
	assert.ErrorIs(err, ErrEmptyQuery)
}

func TestSource_SearchURLs(t *testing.T) {
	assert := assert_.New(t)
	s, c, _ := newSource()
	defer s.Close()

	result, err := s.Search(context.Background(), Query{Type: QueryURLs, URLs: []string{"one", "bad", "two"}})
	assert.Nil(err)
	assert.Equal([]video_leecher.VideoID{"r-one", "r-two"}, ids(result.Videos))
	assert.ErrorIs(result.Failures, video_leecher.ErrNoMatch)
	assert.ErrorContains(result.Failures, "bad")
	assert.Len(c.remembered, 2)

	_, err = s.Search(context.Background(), Query{Type: QueryURLs})
	assert.ErrorIs(err, ErrEmptyQuery)
}

func TestSource_SearchURLs_KeepsAuthInfo(t *testing.T) {
	assert := assert_.New(t)
	ctx := context.Background()
	c, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.sqlite3"))
	require_.NoError(t, err)
	defer c.Close()
	require_.NoError(t, c.Import(ctx, catalog.Entry{
		Video:    video_leecher.Video{ID: "r-one", Title: "Members only", Channel: "chan", URL: "old"},
		AuthInfo: video_leecher.AuthInfo{SubOnly: true},
	}))
	s := New(Config{Catalog: c, Resolver: fakeResolver{}, Queue: &fakeQueue{}})
	defer s.Close()

	_, err = s.Search(ctx, Query{Type: QueryURLs, URLs: []string{"one", "two"}})
	assert.Nil(err)

	// The video is refreshed from the resolver, but is still sub-only
	v, err := c.ByID(ctx, "r-one")
	require_.NoError(t, err)
	assert.Equal("one", v.URL)
	auth, err := s.AuthInfo(ctx, "r-one")
	assert.Nil(err)
	assert.Equal(video_leecher.AuthInfo{SubOnly: true}, auth)
	assert.False(auth.Downloadable())

	// A newly found video is public
	auth, err = c.AuthInfo(ctx, "r-two")
	assert.Nil(err)
	assert.True(auth.Downloadable())
}

func TestSource_SearchIDs(t *testing.T) {
	assert := assert_.New(t)
	s, _, _ := newSource()
	defer s.Close()

	result, err := s.Search(context.Background(), Query{Type: QueryIDs, IDs: []video_leecher.VideoID{"c1", "s2"}})
	assert.Nil(err)
	assert.Equal([]video_leecher.VideoID{"c1", "s2"}, ids(result.Videos))
	assert.Equal(video_leecher.VideoID("s2"), s.Find("s2").ID)
	assert.Nil(s.Find("s1"))
}

func TestSource_VideosIsCopy(t *testing.T) {
	assert := assert_.New(t)
	s, _, _ := newSource()
	defer s.Close()
	_, err := s.Search(context.Background(), Query{Type: QueryIDs, IDs: []video_leecher.VideoID{"c1", "s2"}})
	require_.NoError(t, err)

	videos := s.Videos()
	videos[0] = nil
	assert.Equal([]video_leecher.VideoID{"c1", "s2"}, ids(s.Videos()))
}

func TestSource_AuthInfo(t *testing.T) {
	assert := assert_.New(t)
	s, c, _ := newSource()
	defer s.Close()
	ctx := context.Background()

	auth, err := s.AuthInfo(ctx, "s1")
	assert.Nil(err)
	assert.False(auth.Downloadable())
	_, _ = s.AuthInfo(ctx, "s1")
	assert.Equal(1, c.authCalls)

	auth, err = s.AuthInfo(ctx, "unknown")
	assert.Nil(err)
	assert.True(auth.Downloadable())

	_, err = s.AuthInfo(ctx, "broken")
	assert.NotNil(err)
}

func TestSource_Enqueue(t *testing.T) {
	assert := assert_.New(t)
	s, _, q := newSource()
	defer s.Close()

	job := &video_leecher.DownloadJob{Filename: "x.mp4"}
	assert.Nil(s.Enqueue(context.Background(), job))
	assert.Equal([]*video_leecher.DownloadJob{job}, q.jobs)
}

func TestClosestChannel(t *testing.T) {
	assert := assert_.New(t)
	channels := []string{"Speedrunner", "Cooking"}
	assert.Equal("Speedrunner", closestChannel("SPEEDRUNER", channels))
	assert.Equal("Cooking", closestChannel("cookin", channels))
	assert.Equal("", closestChannel("completely different", channels))
	assert.Equal("", closestChannel("x", nil))
}
