// Package content holds the static parts of the site (about, timeline, skills,
// contact details) and the demo projects and posts shown when the database has
// none.
package content

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Zachkp/folio/internal/models"
)

//go:embed default.yaml
var defaultYAML []byte

type Site struct {
	Meta       Meta             `yaml:"site"`
	About      string           `yaml:"about"`
	Experience []Entry          `yaml:"experience"`
	Education  []Entry          `yaml:"education"`
	Skills     []string         `yaml:"skills"`
	Contact    Contact          `yaml:"contact"`
	Projects   []models.Project `yaml:"projects"`
	Posts      []models.Post    `yaml:"posts"`
}

type Meta struct {
	Name    string `yaml:"name"`
	Title   string `yaml:"title"`
	Tagline string `yaml:"tagline"`
}

// Entry is one item of the experience or education timeline.
type Entry struct {
	Title        string   `yaml:"title"`
	Organization string   `yaml:"organization"`
	Start        string   `yaml:"start"`
	End          string   `yaml:"end"`
	Logo         string   `yaml:"logo"`
	Bullets      []string `yaml:"bullets"`
}

type Contact struct {
	Email    string `yaml:"email"`
	Location string `yaml:"location"`
	Links    []Link `yaml:"links"`
}

type Link struct {
	Label string `yaml:"label"`
	URL   string `yaml:"url"`
}

// Default returns the embedded site content.
func Default() *Site {
	s, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("content: embedded default.yaml: %v", err))
	}
	return s
}

// Load reads path, or the embedded default when path is empty.
func Load(path string) (*Site, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and checks site content. Demo items without an id get a
// stable "demo-<n>" id.
func Parse(data []byte) (*Site, error) {
	var s Site
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse content: %w", err)
	}
	if strings.TrimSpace(s.Meta.Name) == "" {
		return nil, errors.New("site.name is required")
	}
	for i := range s.Projects {
		if s.Projects[i].ID == "" {
			s.Projects[i].ID = fmt.Sprintf("demo-project-%d", i+1)
		}
		if s.Projects[i].Title == "" || s.Projects[i].Category == "" {
			return nil, fmt.Errorf("projects[%d]: title and category are required", i)
		}
	}
	for i := range s.Posts {
		if s.Posts[i].ID == "" {
			s.Posts[i].ID = fmt.Sprintf("demo-post-%d", i+1)
		}
		if !s.Posts[i].Platform.Valid() {
			return nil, fmt.Errorf("posts[%d]: unknown platform %q", i, s.Posts[i].Platform)
		}
	}
	return &s, nil
}
