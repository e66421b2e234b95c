package video_leecher

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

var (
	ErrNoQualities = errors.New("video has no quality variants")
)

type VideoID string

// A Quality is one downloadable variant of a Video.
type Quality struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

func (q Quality) String() string {
	if q.Name != "" {
		return q.Name
	}
	return q.ID
}

type Video struct {
	ID         VideoID       `json:"id"`
	Title      string        `json:"title"`
	Channel    string        `json:"channel"`
	Game       string        `json:"game,omitempty"`
	URL        string        `json:"url"`
	RecordedAt time.Time     `json:"recorded_at"`
	Length     time.Duration `json:"length"`
	// Qualities are ordered best first; the first entry is the default.
	Qualities []Quality `json:"qualities"`
}

// DefaultQuality returns the first (highest) quality variant.
func (v *Video) DefaultQuality() (Quality, error) {
	if len(v.Qualities) == 0 {
		return Quality{}, fmt.Errorf("%v: %w", v.ID, ErrNoQualities)
	}
	return v.Qualities[0], nil
}

// HasAbsoluteURL is true if the video URL can be handed to a player or browser.
func (v *Video) HasAbsoluteURL() bool {
	if v.URL == "" {
		return false
	}
	u, err := url.Parse(v.URL)
	return err == nil && u.IsAbs()
}

func (v *Video) String() string {
	return fmt.Sprintf("Video{ID:%q, Channel:%q, Title:%q}", v.ID, v.Channel, v.Title)
}

// AuthInfo describes whether the current user may download a video.
type AuthInfo struct {
	Privileged bool `json:"privileged"`
	SubOnly    bool `json:"sub_only"`
}

// Downloadable is false only for subscriber-only videos the user has no privilege for.
func (a AuthInfo) Downloadable() bool {
	return !a.SubOnly || a.Privileged
}
