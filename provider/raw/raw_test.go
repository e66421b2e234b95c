package raw

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

func TestConfig_Match(t *testing.T) {
	assert := assert_.New(t)
	c := NewConfig()

	source, err := c.Match("https://example.com/path/to/Some%20Video.MP4")
	assert.Nil(err)
	if assert.NotNil(source) {
		assert.Equal("https://example.com/path/to/Some%20Video.MP4", source.URL())
	}

	for _, input := range []string{
		"ftp://example.com/video.mp4",
		"https://example.com/video.txt",
		"https://example.com/video",
		"https://example.com/",
	} {
		source, err := c.Match(input)
		assert.NotNil(err, input)
		assert.Nil(source, input)
	}
}

func TestSource_Resolve(t *testing.T) {
	assert := assert_.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(http.MethodHead, r.Method)
		if r.URL.Path == "/missing.mp4" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Last-Modified", "Wed, 21 Oct 2015 07:28:00 GMT")
	}))
	defer server.Close()

	c := NewConfig()
	c.Client = server.Client()

	source, err := c.Match(server.URL + "/videos/clip.webm")
	assert.Nil(err)
	video, err := source.Resolve(context.Background())
	assert.Nil(err)
	if assert.NotNil(video) {
		assert.Equal("clip", video.Title)
		assert.Equal("127.0.0.1", video.Channel)
		assert.Equal(2015, video.RecordedAt.Year())
		assert.True(video.HasAbsoluteURL())
		quality, err := video.DefaultQuality()
		assert.Nil(err)
		assert.Equal(server.URL+"/videos/clip.webm", quality.URL)
	}

	// Same URL, same ID
	again, err := source.Resolve(context.Background())
	assert.Nil(err)
	assert.Equal(video.ID, again.ID)

	source, err = c.Match(server.URL + "/missing.mp4")
	assert.Nil(err)
	_, err = source.Resolve(context.Background())
	assert.ErrorContains(err, "404")
}
