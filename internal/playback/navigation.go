package playback

import (
	"net/url"
	"strings"
)

// HomeLocation is where Stop sends the host.
const HomeLocation = "/"

// watchPath is the host's playable view.
const watchPath = "/watch"

// WatchLocation returns the host location that plays contentID.
func WatchLocation(contentID string) string {
	return watchPath + "?v=" + url.QueryEscape(contentID)
}

// ParseLocation reports whether location is the playable view and, if so,
// which content it shows. Both plain paths and hash-routed URLs
// ("https://host/tv#/watch?v=abc") are understood.
func ParseLocation(location string) (contentID string, playable bool) {
	u, err := url.Parse(strings.TrimSpace(location))
	if err != nil {
		return "", false
	}

	path, query := u.Path, u.RawQuery
	if strings.HasPrefix(u.Fragment, "/") {
		frag, err := url.Parse(u.Fragment)
		if err != nil {
			return "", false
		}
		path, query = frag.Path, frag.RawQuery
	}

	if strings.TrimSuffix(path, "/") != watchPath {
		return "", false
	}

	values, err := url.ParseQuery(query)
	if err != nil {
		return "", false
	}
	id := strings.TrimSpace(values.Get("v"))
	if id == "" {
		return "", false
	}
	return id, true
}
