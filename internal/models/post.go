package models

import "time"

// Platform is where a blog post is published.
type Platform string

const (
	PlatformMedium   Platform = "medium"
	PlatformSubstack Platform = "substack"
	PlatformOther    Platform = "other"
)

// Valid reports whether p is a known platform.
func (p Platform) Valid() bool {
	switch p {
	case PlatformMedium, PlatformSubstack, PlatformOther:
		return true
	}
	return false
}

// Post links to an article published elsewhere. Posts are shown newest first.
type Post struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	Platform    Platform  `json:"platform"`
	PublishedAt time.Time `json:"date" yaml:"date"`
	ImageURL    string    `json:"image,omitempty" yaml:"image"`
	Clicks      int       `json:"clicks" yaml:"-"`
	UserID      string    `json:"user_id,omitempty" yaml:"-"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
}

func (p Post) Key() string   { return p.ID }
func (p Post) Group() string { return string(p.Platform) }

func (p Post) WithKey(id string) Post {
	p.ID = id
	return p
}
