package util

import (
	"errors"
	"net/url"
	"path"
	"strings"
)

var (
	ErrNoFilename = errors.New("cannot extract valid filename")
)

// FilenameFromURL gives the last path element of the URL, if it looks like a filename.
func FilenameFromURL(u *url.URL) (string, error) {
	if u == nil {
		return "", ErrNoFilename
	}
	trimmed := strings.Trim(u.Path, "/")
	if trimmed == "" {
		return "", ErrNoFilename
	}
	filename := path.Base(trimmed)
	// Not ".", "..", "..." etc.
	if strings.Trim(filename, ".") == "" {
		return "", ErrNoFilename
	}
	return filename, nil
}

// SplitExtension splits a filename into its stem and its lowercased extension without the dot.
func SplitExtension(filename string) (string, string) {
	ext := path.Ext(filename)
	if ext == "" || ext == filename {
		return filename, ""
	}
	return strings.TrimSuffix(filename, ext), strings.ToLower(strings.TrimPrefix(ext, "."))
}
