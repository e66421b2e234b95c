package video_leecher

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"text/template"
	"time"
)

const (
	ExtensionConverted = ".mp4"
	ExtensionRaw       = ".ts"
)

var knownExtensions = []string{ExtensionConverted, ExtensionRaw}

var (
	ErrNoVideo = errors.New("no video")
)

type FilenameService interface {
	// SubstituteWildcards renders the filename template for a video, giving a name without path separators.
	SubstituteWildcards(tmpl string, video *Video) (string, error)
	// EnsureExtension makes sure the filename ends with the extension matching the conversion setting.
	EnsureExtension(filename string, disableConversion bool) string
}

type filenameService struct {
	mu    sync.Mutex
	funcs template.FuncMap
	cache map[string]*template.Template
}

func NewFilenameService() FilenameService {
	return &filenameService{
		funcs: template.FuncMap{
			"date":  func(t time.Time) string { return t.Format("20060102") },
			"time":  func(t time.Time) string { return t.Format("150405") },
			"lower": strings.ToLower,
			"upper": strings.ToUpper,
		},
		cache: make(map[string]*template.Template),
	}
}

func (s *filenameService) SubstituteWildcards(tmpl string, video *Video) (string, error) {
	if video == nil {
		return "", ErrNoVideo
	}
	t, err := s.parse(tmpl)
	if err != nil {
		return "", err
	}
	builder := strings.Builder{}
	if err := t.Execute(&builder, video); err != nil {
		return "", fmt.Errorf("failed to render filename: %w", err)
	}
	name := SanitizeFilename(builder.String())
	if name == "" {
		return "", fmt.Errorf("filename template %q gave an empty filename", tmpl)
	}
	return name, nil
}

func (s *filenameService) parse(tmpl string) (*template.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.cache[tmpl]; ok {
		return t, nil
	}
	t, err := template.New("filename").Funcs(s.funcs).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("invalid filename template: %w", err)
	}
	s.cache[tmpl] = t
	return t, nil
}

func (s *filenameService) EnsureExtension(filename string, disableConversion bool) string {
	want := ExtensionConverted
	if disableConversion {
		want = ExtensionRaw
	}
	ext := filepath.Ext(filename)
	for _, known := range knownExtensions {
		if strings.EqualFold(ext, known) {
			filename = strings.TrimSuffix(filename, ext)
			break
		}
	}
	return filename + want
}

// SanitizeFilename replaces characters that aren't valid in filenames on common platforms.
func SanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r < 0x20:
			return -1
		case strings.ContainsRune(`<>:"/\|?*`, r):
			return '_'
		default:
			return r
		}
	}, name)
	return strings.Trim(name, " .")
}
