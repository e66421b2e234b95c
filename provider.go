package video_leecher

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/alanbriolat/video-leecher/generic"
)

var (
	ErrDuplicateProvider = errors.New("duplicate provider name")
	ErrInvalidProvider   = errors.New("invalid provider")
	ErrNoMatch           = errors.New("no provider matched the input")
	ErrUnknownProvider   = errors.New("unknown provider")
)

var (
	PriorityHighest int16 = math.MinInt16
	PriorityDefault int16 = 0
	PriorityLowest  int16 = math.MaxInt16
)

// A Source is a video location that a Provider recognised, but that hasn't been looked up yet.
type Source interface {
	// URL should return the canonical URL for this source.
	URL() string
	// Resolve fetches the video metadata, including its available qualities.
	Resolve(ctx context.Context) (*Video, error)
}

type MatchFunc = func(string) (Source, error)

// A Provider matches any URL it knows how to handle, giving a Source that can be resolved into a Video.
type Provider struct {
	Name  string
	Match MatchFunc
	// Priority of the matcher, lower (including negative) means matching earlier.
	Priority int16
}

func (p Provider) WithPriority(priority int16) Provider {
	p.Priority = priority
	return p
}

// A Match is the result of a Provider successfully matching a URL.
type Match struct {
	ProviderName string
	Source       Source
}

// A ProviderRegistry is a collection of Provider instances which can be used to try to match URLs.
type ProviderRegistry struct {
	mu          sync.RWMutex
	providers   []*Provider
	providerMap map[string]*Provider
}

// Add registers a Provider. Provider.Name and Provider.Match must be set, and Provider.Name must be unique.
func (r *ProviderRegistry) Add(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.providerMap == nil {
		r.providerMap = make(map[string]*Provider)
	}
	if p.Name == "" || p.Match == nil {
		return ErrInvalidProvider
	}
	if _, ok := r.providerMap[p.Name]; ok {
		return ErrDuplicateProvider
	}
	r.providerMap[p.Name] = &p
	r.providers = append(r.providers, r.providerMap[p.Name])
	r.sortByPriority()
	return nil
}

// MustAdd wraps Add but panics if there is an error.
func (r *ProviderRegistry) MustAdd(p Provider) {
	generic.Unwrap_(r.Add(p))
}

// List returns the names of registered providers in priority order.
func (r *ProviderRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for _, p := range r.providers {
		names = append(names, p.Name)
	}
	return names
}

// Match a string against each Provider in priority order. If none match, the error wraps ErrNoMatch and includes
// each provider's reason.
func (r *ProviderRegistry) Match(s string) (*Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result error = ErrNoMatch
	for _, p := range r.providers {
		if source, err := p.Match(s); source != nil && err == nil {
			return &Match{ProviderName: p.Name, Source: source}, nil
		} else if err != nil {
			result = multierror.Append(result, multierror.Prefix(err, fmt.Sprintf("[%v]", p.Name)))
		}
	}
	return nil, result
}

// MatchWith will attempt to match a string against a specific provider.
func (r *ProviderRegistry) MatchWith(name string, s string) (*Match, error) {
	r.mu.RLock()
	p, ok := r.providerMap[name]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownProvider
	}
	source, err := p.Match(s)
	if source == nil || err != nil {
		return nil, fmt.Errorf("[%v] %w", p.Name, ErrNoMatch)
	}
	return &Match{ProviderName: p.Name, Source: source}, nil
}

// Resolve matches the URL and resolves it into a Video.
func (r *ProviderRegistry) Resolve(ctx context.Context, s string) (*Video, error) {
	match, err := r.Match(s)
	if err != nil {
		return nil, err
	}
	video, err := match.Source.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("[%v] failed to resolve %v: %w", match.ProviderName, match.Source.URL(), err)
	}
	return video, nil
}

// SetPriority adjusts the priority of a named Provider.
func (r *ProviderRegistry) SetPriority(name string, priority int16) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.providerMap[name]; ok {
		p.Priority = priority
		r.sortByPriority()
		return nil
	}
	return ErrUnknownProvider
}

func (r *ProviderRegistry) sortByPriority() {
	sort.SliceStable(r.providers, func(i, j int) bool {
		return r.providers[i].Priority < r.providers[j].Priority
	})
}

var DefaultProviderRegistry ProviderRegistry
