// Package prefs owns the user's preferences: loading, validating, saving and answering questions about them.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/r3labs/diff/v3"
	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/alanbriolat/video-leecher"
	"github.com/alanbriolat/video-leecher/internal/sync_"
)

var (
	ErrUnknownKey   = errors.New("unknown preference")
	ErrInvalidValue = errors.New("invalid preference value")
)

// A Store persists preferences. LoadPreferences returns nil (and no error) if nothing has been saved yet.
type Store interface {
	LoadPreferences() (*video_leecher.Preferences, error)
	SavePreferences(*video_leecher.Preferences) error
}

type Service struct {
	store   Store
	current *sync_.RWMutexed[video_leecher.Preferences]
	log     *zap.SugaredLogger
}

// New loads the stored preferences, using defaults if there are none yet.
func New(store Store, defaults video_leecher.Preferences) (*Service, error) {
	p, err := store.LoadPreferences()
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}
	if p == nil {
		p = &defaults
	}
	return &Service{
		store:   store,
		current: sync_.NewRWMutexed(p.Clone()),
		log:     zap.S().Named("prefs"),
	}, nil
}

// Current returns a copy of the current preferences, unaffected by later changes.
func (s *Service) Current() video_leecher.Preferences {
	var p video_leecher.Preferences
	_ = s.current.RLocked(func(current *video_leecher.Preferences) error {
		p = current.Clone()
		return nil
	})
	return p
}

// Save replaces the current preferences, if they are valid.
func (s *Service) Save(p video_leecher.Preferences) error {
	return s.update(func(current *video_leecher.Preferences) error {
		*current = p.Clone()
		return nil
	})
}

// update applies f to a copy of the current preferences, then validates and stores the result.
func (s *Service) update(f func(*video_leecher.Preferences) error) error {
	return s.current.Locked(func(current *video_leecher.Preferences) error {
		updated := current.Clone()
		if err := f(&updated); err != nil {
			return err
		}
		if err := updated.Validate(); err != nil {
			return fmt.Errorf("invalid preferences: %w", err)
		}
		changes, err := diff.Diff(*current, updated)
		if err != nil {
			return fmt.Errorf("failed to compare preferences: %w", err)
		}
		if len(changes) == 0 {
			return nil
		}
		if err := s.store.SavePreferences(&updated); err != nil {
			return fmt.Errorf("failed to save preferences: %w", err)
		}
		for _, change := range changes {
			s.log.Infow("preference changed", "path", strings.Join(change.Path, "."), "type", change.Type, "from", change.From, "to", change.To)
		}
		*current = updated
		return nil
	})
}

func (s *Service) IsChannelInFavourites(channel string) bool {
	found := false
	_ = s.current.RLocked(func(current *video_leecher.Preferences) error {
		found = indexOfChannel(current.SearchFavouriteChannels, channel) >= 0
		return nil
	})
	return found
}

func (s *Service) AddFavourite(channel string) error {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return fmt.Errorf("%w: empty channel name", ErrInvalidValue)
	}
	return s.update(func(p *video_leecher.Preferences) error {
		if indexOfChannel(p.SearchFavouriteChannels, channel) < 0 {
			p.SearchFavouriteChannels = append(p.SearchFavouriteChannels, channel)
			sort.Strings(p.SearchFavouriteChannels)
		}
		return nil
	})
}

func (s *Service) RemoveFavourite(channel string) error {
	return s.update(func(p *video_leecher.Preferences) error {
		if i := indexOfChannel(p.SearchFavouriteChannels, channel); i >= 0 {
			p.SearchFavouriteChannels = append(p.SearchFavouriteChannels[:i], p.SearchFavouriteChannels[i+1:]...)
		}
		return nil
	})
}

// Set changes a single preference by its JSON name, parsing value according to the preference's type. List values
// are comma-separated.
func (s *Service) Set(key string, value string) error {
	return s.update(func(p *video_leecher.Preferences) error {
		fields := make(map[string]interface{})
		if err := roundTrip(p, &fields); err != nil {
			return err
		}
		old, ok := fields[key]
		if !ok {
			return fmt.Errorf("%w: %v", ErrUnknownKey, key)
		}
		switch old.(type) {
		case bool:
			b, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("%w: %v: %v", ErrInvalidValue, key, err)
			}
			fields[key] = b
		case float64:
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("%w: %v: %v", ErrInvalidValue, key, err)
			}
			fields[key] = n
		case []interface{}, nil:
			var list []string
			for _, item := range strings.Split(value, ",") {
				if item = strings.TrimSpace(item); item != "" {
					list = append(list, item)
				}
			}
			fields[key] = list
		default:
			fields[key] = value
		}
		return roundTrip(fields, p)
	})
}

// Keys lists the names accepted by Set.
func Keys() []string {
	fields := make(map[string]interface{})
	_ = roundTrip(video_leecher.Preferences{}, &fields)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func roundTrip(from interface{}, to interface{}) error {
	data, err := json.Marshal(from)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, to)
}

func indexOfChannel(channels []string, channel string) int {
	folded := cases.Fold().String(strings.TrimSpace(channel))
	for i, c := range channels {
		if cases.Fold().String(c) == folded {
			return i
		}
	}
	return -1
}
