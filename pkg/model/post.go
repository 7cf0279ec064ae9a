package model

import (
	"path"
	"strings"
)

var videoExtensions = map[string]struct{}{
	".mp4": {}, ".mov": {}, ".webm": {}, ".m4v": {}, ".ogv": {},
}

// MediaRef points at one image or video attached to a post.
type MediaRef struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

// IsVideo guesses the media kind by the file extension of its name or URL.
func (m MediaRef) IsVideo() bool {
	for _, candidate := range []string{m.Name, m.URL} {
		if i := strings.IndexAny(candidate, "?#"); i >= 0 {
			candidate = candidate[:i]
		}
		if _, ok := videoExtensions[strings.ToLower(path.Ext(candidate))]; ok {
			return true
		}
	}
	return false
}

// Post is one row of the remote database.
type Post struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	PublishDate string     `json:"publishDate,omitempty"`
	Platform    string     `json:"platform,omitempty"`
	Status      string     `json:"status,omitempty"`
	Images      []MediaRef `json:"images"`
	Videos      []MediaRef `json:"videos"`
}

// Cover returns the first image, or the first video when the post has no images.
func (p Post) Cover() (MediaRef, bool) {
	if len(p.Images) > 0 {
		return p.Images[0], true
	}
	if len(p.Videos) > 0 {
		return p.Videos[0], true
	}
	return MediaRef{}, false
}

// Matches reports whether the post passes the given filters (case-insensitive, unset matches all).
func (p Post) Matches(f Filters) bool {
	f = f.Normalize()
	if !f.IsAll(f.Platform) && !strings.EqualFold(p.Platform, f.Platform) {
		return false
	}
	if !f.IsAll(f.Status) && !strings.EqualFold(p.Status, f.Status) {
		return false
	}
	return true
}
