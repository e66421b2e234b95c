package video_leecher

import (
	"testing"
	"time"

	assert_ "github.com/stretchr/testify/assert"
)

func TestFilenameService_SubstituteWildcards(t *testing.T) {
	assert := assert_.New(t)
	s := NewFilenameService()
	v := &Video{
		ID:         "v123",
		Title:      "Speedrun: any% / glitchless?",
		Channel:    "Runner",
		RecordedAt: time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC),
	}

	name, err := s.SubstituteWildcards(DefaultFilenameTemplate, v)
	assert.Nil(err)
	assert.Equal("20210304_v123_Speedrun_ any% _ glitchless_", name)

	name, err = s.SubstituteWildcards("{{ lower .Channel }}-{{ time .RecordedAt }}", v)
	assert.Nil(err)
	assert.Equal("runner-050607", name)

	_, err = s.SubstituteWildcards("{{ .Nope }}", v)
	assert.NotNil(err)
	_, err = s.SubstituteWildcards("{{ .ID", v)
	assert.NotNil(err)
	_, err = s.SubstituteWildcards("{{ .Game }}", v)
	assert.NotNil(err, "empty filename")
	_, err = s.SubstituteWildcards(DefaultFilenameTemplate, nil)
	assert.ErrorIs(err, ErrNoVideo)
}

func TestFilenameService_EnsureExtension(t *testing.T) {
	assert := assert_.New(t)
	s := NewFilenameService()

	assert.Equal("video.mp4", s.EnsureExtension("video", false))
	assert.Equal("video.ts", s.EnsureExtension("video", true))
	assert.Equal("video.mp4", s.EnsureExtension("video.ts", false))
	assert.Equal("video.ts", s.EnsureExtension("video.MP4", true))
	assert.Equal("video.mkv.mp4", s.EnsureExtension("video.mkv", false))
}

func TestSanitizeFilename(t *testing.T) {
	assert := assert_.New(t)

	assert.Equal("a_b_c", SanitizeFilename(`a/b\c`))
	assert.Equal("title", SanitizeFilename(" title. "))
	assert.Equal("tab", SanitizeFilename("t\tab"))
}
