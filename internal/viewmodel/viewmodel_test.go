package viewmodel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
	assert_ "github.com/stretchr/testify/assert"
	require_ "github.com/stretchr/testify/require"

	"github.com/alanbriolat/video-leecher"
	"github.com/alanbriolat/video-leecher/internal/pubsub"
	"github.com/alanbriolat/video-leecher/internal/reconcile"
	"github.com/alanbriolat/video-leecher/internal/search"
)

type fakeSource struct {
	videos []*video_leecher.Video
	auth   map[video_leecher.VideoID]video_leecher.AuthInfo
	jobs   []*video_leecher.DownloadJob
	events pubsub.Publisher[search.Event]
}

func (s *fakeSource) Videos() []*video_leecher.Video {
	return append([]*video_leecher.Video(nil), s.videos...)
}

func (s *fakeSource) Find(id video_leecher.VideoID) *video_leecher.Video {
	for _, v := range s.videos {
		if v.ID == id {
			return v
		}
	}
	return nil
}

func (s *fakeSource) AuthInfo(_ context.Context, id video_leecher.VideoID) (video_leecher.AuthInfo, error) {
	return s.auth[id], nil
}

func (s *fakeSource) Enqueue(_ context.Context, job *video_leecher.DownloadJob) error {
	s.jobs = append(s.jobs, job)
	return nil
}

func (s *fakeSource) Subscribe() (pubsub.ReceiverCloser[search.Event], error) {
	return s.events.Subscribe()
}

type fakePrefs struct {
	prefs video_leecher.Preferences
}

func (p *fakePrefs) Current() video_leecher.Preferences {
	return p.prefs.Clone()
}

func (p *fakePrefs) IsChannelInFavourites(string) bool {
	return false
}

type fakeDialogs struct {
	answers []reconcile.Answer
	asked   []string
	notices []string
	errors  []error
}

func (d *fakeDialogs) Ask(_ context.Context, _ string, message string) (reconcile.Answer, error) {
	d.asked = append(d.asked, message)
	if len(d.answers) == 0 {
		return reconcile.AnswerNone, nil
	}
	a := d.answers[0]
	d.answers = d.answers[1:]
	return a, nil
}

func (d *fakeDialogs) ShowNotice(_ context.Context, caption string, message string) error {
	d.notices = append(d.notices, caption+": "+message)
	return nil
}

func (d *fakeDialogs) ShowError(_ context.Context, err error) {
	d.errors = append(d.errors, err)
}

type fakeNavigator struct {
	jobs     []*video_leecher.DownloadJob
	searches int
	err      error
}

func (n *fakeNavigator) ShowDownload(_ context.Context, job *video_leecher.DownloadJob) error {
	n.jobs = append(n.jobs, job)
	return n.err
}

func (n *fakeNavigator) ShowSearch(context.Context) error {
	n.searches++
	return n.err
}

type fakeNotifier struct {
	messages []string
}

func (n *fakeNotifier) Notify(message string) {
	n.messages = append(n.messages, message)
}

type fakeLauncher struct {
	opened []string
}

func (l *fakeLauncher) Open(_ context.Context, url string) error {
	l.opened = append(l.opened, url)
	return nil
}

func (l *fakeLauncher) OpenWith(_ context.Context, program string, url string) error {
	l.opened = append(l.opened, program+" "+url)
	return nil
}

type fixture struct {
	vm        *SearchResults
	source    *fakeSource
	prefs     *fakePrefs
	dialogs   *fakeDialogs
	navigator *fakeNavigator
	notifier  *fakeNotifier
	launcher  *fakeLauncher
	fs        afero.Fs
}

func video(id string) *video_leecher.Video {
	return &video_leecher.Video{
		ID:        video_leecher.VideoID(id),
		Title:     "Title " + id,
		Channel:   "channel",
		URL:       "https://example.com/videos/" + id,
		Qualities: []video_leecher.Quality{{ID: "source", URL: "https://cdn.example.com/" + id}},
	}
}

func newFixture(t *testing.T, videos ...*video_leecher.Video) *fixture {
	prefs := video_leecher.DefaultPreferences("/downloads")
	prefs.DownloadFilename = "{{ .ID }}"
	f := &fixture{
		source: &fakeSource{
			videos: videos,
			auth:   make(map[video_leecher.VideoID]video_leecher.AuthInfo),
			events: pubsub.NewPublisher[search.Event](),
		},
		prefs:     &fakePrefs{prefs: prefs},
		dialogs:   &fakeDialogs{},
		navigator: &fakeNavigator{},
		notifier:  &fakeNotifier{},
		launcher:  &fakeLauncher{},
		fs:        afero.NewMemMapFs(),
	}
	vm, err := New(Config{
		Source:    f.source,
		Prefs:     f.prefs,
		Fs:        f.fs,
		Dialogs:   f.dialogs,
		Navigator: f.navigator,
		Notifier:  f.notifier,
		Launcher:  f.launcher,
	})
	require_.NoError(t, err)
	f.vm = vm
	t.Cleanup(func() {
		vm.Close()
		f.source.events.Close()
	})
	return f
}

func TestSearchResults_View(t *testing.T) {
	assert := assert_.New(t)
	noURL := video("nourl")
	noURL.URL = "relative/path"
	f := newFixture(t, video("a"), noURL)
	ctx := context.Background()

	assert.Nil(f.vm.View(ctx, "a"))
	assert.Equal([]string{"https://example.com/videos/a"}, f.launcher.opened)

	// Nothing happens for blank, unknown or unopenable videos
	assert.Nil(f.vm.View(ctx, ""))
	assert.Nil(f.vm.View(ctx, "  "))
	assert.Nil(f.vm.View(ctx, "missing"))
	assert.Nil(f.vm.View(ctx, "nourl"))
	assert.Len(f.launcher.opened, 1)

	f.prefs.prefs.MiscUseExternalPlayer = true
	f.prefs.prefs.MiscExternalPlayer = "/usr/bin/mpv"
	assert.Nil(f.vm.View(ctx, "a"))
	assert.Equal("/usr/bin/mpv https://example.com/videos/a", f.launcher.opened[1])
	assert.Empty(f.dialogs.errors)
}

func TestSearchResults_Download(t *testing.T) {
	assert := assert_.New(t)
	f := newFixture(t, video("a"), video("sub"), video("noq"))
	f.source.auth["sub"] = video_leecher.AuthInfo{SubOnly: true}
	f.source.videos[2].Qualities = nil
	ctx := context.Background()

	assert.Nil(f.vm.Download(ctx, "a"))
	if assert.Len(f.navigator.jobs, 1) {
		assert.Equal("/downloads/a.mp4", f.navigator.jobs[0].FullPath())
	}
	// Single downloads are only shown, not queued
	assert.Empty(f.source.jobs)

	assert.Nil(f.vm.Download(ctx, "sub"))
	assert.Equal([]string{reconcile.CaptionSubOnly + ": " + reconcile.MessageSubOnly}, f.dialogs.notices)
	assert.Len(f.navigator.jobs, 1)

	assert.Nil(f.vm.Download(ctx, "missing"))
	assert.Len(f.navigator.jobs, 1)

	err := f.vm.Download(ctx, "noq")
	assert.ErrorIs(err, video_leecher.ErrNoQualities)
	if assert.Len(f.dialogs.errors, 1) {
		assert.ErrorIs(f.dialogs.errors[0], video_leecher.ErrNoQualities)
	}
}

func TestSearchResults_DownloadAll(t *testing.T) {
	assert := assert_.New(t)
	f := newFixture(t, video("a"), video("b"), video("c"))
	require_.NoError(t, afero.WriteFile(f.fs, "/downloads/b.mp4", []byte("x"), 0644))
	f.dialogs.answers = []reconcile.Answer{reconcile.AnswerNo}

	assert.Nil(f.vm.DownloadAll(context.Background()))
	assert.Len(f.source.jobs, 2)
	assert.Equal([]string{"2 Downloads added, 1 existing files have been skipped"}, f.notifier.messages)
	assert.Empty(f.dialogs.errors)
}

func TestSearchResults_Menu(t *testing.T) {
	assert := assert_.New(t)
	f := newFixture(t, video("a"))
	ctx := context.Background()

	menu := f.vm.Menu()
	if assert.Len(menu, 2) {
		assert.Equal("New Search", menu[0].Label)
		assert.Equal("Search", menu[0].Icon)
		assert.Equal("Download All", menu[1].Label)
		assert.Equal("Download", menu[1].Icon)

		assert.Nil(menu[0].Run(ctx))
		assert.Equal(1, f.navigator.searches)
		assert.Nil(menu[1].Run(ctx))
		assert.Len(f.source.jobs, 1)
	}
}

func TestSearchResults_ShowSearchError(t *testing.T) {
	assert := assert_.New(t)
	f := newFixture(t)
	f.navigator.err = errors.New("no window")

	assert.NotNil(f.vm.ShowSearch(context.Background()))
	assert.Len(f.dialogs.errors, 1)
}

func TestSearchResults_ScrollReset(t *testing.T) {
	assert := assert_.New(t)
	f := newFixture(t, video("a"))
	events, err := f.vm.Subscribe()
	require_.NoError(t, err)
	defer events.Close()

	f.vm.SetScrollPosition(42)
	assert.Equal(42, f.vm.ScrollPosition())

	f.source.events.Send(search.VideosChanged{})
	select {
	case e := <-events.Receive():
		assert.IsType(search.VideosChanged{}, e)
	case <-time.After(time.Second):
		assert.FailNow("no event forwarded")
	}
	assert.Equal(0, f.vm.ScrollPosition())
}

func TestSearchResults_Closed(t *testing.T) {
	assert := assert_.New(t)
	f := newFixture(t, video("a"))
	f.vm.Close()

	assert.NotNil(f.vm.DownloadAll(context.Background()))
	assert.Empty(f.notifier.messages)
	assert.Len(f.dialogs.errors, 1)
}
