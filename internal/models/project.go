// Package models holds the rows the site stores and renders.
package models

import "time"

// Project is a portfolio entry.
type Project struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	ImageURL    string    `json:"image,omitempty" yaml:"image"`
	Alt         string    `json:"alt,omitempty" yaml:"alt"`
	GithubURL   string    `json:"github_url,omitempty" yaml:"github_url"`
	UserID      string    `json:"user_id,omitempty" yaml:"-"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
}

func (p Project) Key() string   { return p.ID }
func (p Project) Group() string { return p.Category }

func (p Project) WithKey(id string) Project {
	p.ID = id
	return p
}

// AltText falls back to the title when no alt text was given.
func (p Project) AltText() string {
	if p.Alt != "" {
		return p.Alt
	}
	return p.Title
}
