// Package imageutil builds image URLs and display strings for project and blog
// cards.
package imageutil

import (
	"net/url"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	DefaultWidth   = 400
	DefaultQuality = 75
)

const fallbackURL = "https://images.unsplash.com/photo-1518770660439-4636190af475?ixlib=rb-4.0.3&auto=format&fit=crop&w=800&q=80"

// Fallback is the image shown for a project that has none.
func Fallback() string {
	return fallbackURL
}

// Optimized asks the image CDN for a resized, recompressed variant of src.
// Existing w, q and auto parameters are replaced. Relative URLs (uploads served
// by this site) and unparsable input come back unchanged.
func Optimized(src string, width, quality int) string {
	if src == "" {
		return fallbackURL
	}
	u, err := url.Parse(src)
	if err != nil || !u.IsAbs() {
		return src
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	q := u.Query()
	q.Set("w", strconv.Itoa(width))
	q.Set("q", strconv.Itoa(quality))
	q.Set("auto", "format")
	u.RawQuery = q.Encode()
	return u.String()
}

// Card is Optimized with the sizes used by list cards.
func Card(src string) string {
	return Optimized(src, DefaultWidth, DefaultQuality)
}

// Date formats a publish date the way blog cards show it: "Dec 10, 2023".
func Date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 2006")
}

// Ago renders t relative to now, e.g. "3 days ago".
func Ago(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return humanize.Time(t)
}
