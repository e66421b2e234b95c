package youtube

import (
	"net/url"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

func TestExtractVideoID(t *testing.T) {
	assert := assert_.New(t)

	for _, input := range []string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://m.youtube.com/watch?v=dQw4w9WgXcQ&t=10",
		"http://youtube.com/details?v=dQw4w9WgXcQ",
		"https://www.youtube.com/v/dQw4w9WgXcQ",
		"https://www.youtube.com/shorts/dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ",
	} {
		u, err := url.Parse(input)
		assert.Nil(err)
		id, err := extractVideoID(u)
		assert.Nil(err, input)
		assert.Equal("dQw4w9WgXcQ", id, input)
	}

	for _, input := range []string{
		"https://www.youtube.com/watch",
		"https://www.youtube.com/",
		"https://youtu.be/",
		"https://example.com/watch?v=dQw4w9WgXcQ",
	} {
		u, err := url.Parse(input)
		assert.Nil(err)
		_, err = extractVideoID(u)
		assert.NotNil(err, input)
	}
}

func TestMatch(t *testing.T) {
	assert := assert_.New(t)
	p := New()
	assert.Equal("youtube", p.Name)

	source, err := p.Match("https://youtu.be/dQw4w9WgXcQ")
	assert.Nil(err)
	if assert.NotNil(source) {
		assert.Equal("https://www.youtube.com/watch?v=dQw4w9WgXcQ", source.URL())
	}

	source, err = p.Match("https://example.com/video.mp4")
	assert.NotNil(err)
	assert.Nil(source)
}
