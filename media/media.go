package media

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

const (
	// PlaceholderTitle is used when no usable title could be resolved.
	PlaceholderTitle = "audio_baixado"
	maxTitleRunes    = 200
)

var (
	ErrMissingURL      = errors.New("missing url")
	ErrNotYouTube      = errors.New("url is not a youtube url")
	ErrInvalidVideoURL = errors.New("invalid youtube video url")
)

var (
	youtubeHostPattern  = regexp.MustCompile(`youtube\.com|youtu\.be`)
	youtubeVideoPattern = regexp.MustCompile(`youtube\.com/watch|youtu\.be/`)
	forbiddenTitleChars = regexp.MustCompile(`[<>:"|?*\\/]`)
)

type Request struct {
	URL        string
	IsPlaylist bool
}

// Classify validates raw and tells whether it names a single video or a playlist.
func Classify(raw string) (*Request, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrMissingURL
	}

	if !youtubeHostPattern.MatchString(raw) {
		return nil, ErrNotYouTube
	}

	isPlaylist := strings.Contains(raw, "list=") || strings.Contains(raw, "playlist")
	if !isPlaylist && !youtubeVideoPattern.MatchString(raw) {
		return nil, ErrInvalidVideoURL
	}

	return &Request{URL: raw, IsPlaylist: isPlaylist}, nil
}

// SanitizeTitle makes title safe to use as a file name.
func SanitizeTitle(title string) string {
	title = forbiddenTitleChars.ReplaceAllString(title, "")
	title = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, title)
	if runes := []rune(title); len(runes) > maxTitleRunes {
		title = string(runes[:maxTitleRunes])
	}
	if strings.TrimSpace(title) == "" {
		return PlaceholderTitle
	}
	return title
}

type Entry struct {
	ID    string
	Title string
}

// URL returns the watch URL of e. Entries listed with a full URL as ID are
// returned as is.
func (e Entry) URL() string {
	if strings.HasPrefix(e.ID, "http://") || strings.HasPrefix(e.ID, "https://") {
		return e.ID
	}
	return WatchURL(e.ID)
}

func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(id)
}
