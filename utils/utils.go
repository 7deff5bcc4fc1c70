package utils

import (
	"errors"
	"net/url"
	"path"
	"strings"
)

const (
	// ErrBadPath constant is returned when a Dropbox path is not absolute
	ErrBadPath = "dropbox path is invalid - must include leading slash and may not include trailing slash"
	// ErrBadSharedLink constant is returned when a shared link is not a valid absolute URL
	ErrBadSharedLink = "shared link is invalid - must be an absolute http(s) url"
)

// ValidatePath ensures that a Dropbox path has a leading slash but not a trailing slash.
// The root namespace itself ("/") is not a valid file path.
func ValidatePath(name string) error {
	if name == "" || name == "/" || !strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") {
		return errors.New(ErrBadPath)
	}
	return nil
}

// ValidateSharedLink ensures that a shared link is an absolute http or https URL.
func ValidateSharedLink(link string) error {
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New(ErrBadSharedLink)
	}
	return nil
}

// EnsureLeadingSlash adds a leading slash if needed.
func EnsureLeadingSlash(name string) string {
	if strings.HasPrefix(name, "/") {
		return name
	}
	return "/" + name
}

// RemoveTrailingSlash removes trailing slash, if any
func RemoveTrailingSlash(name string) string {
	return strings.TrimRight(name, "/")
}

// SharedLinkName returns the base name of the file a shared link points to,
// with any query string (?dl=0 and friends) stripped. Used to pick a local
// filename when none is given.
func SharedLinkName(link string) (string, error) {
	if err := ValidateSharedLink(link); err != nil {
		return "", err
	}
	u, err := url.Parse(link)
	if err != nil {
		return "", err
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return "", errors.New(ErrBadSharedLink)
	}
	return name, nil
}
