package models

import "time"

// VisitorMetric is one tracked page view. The client IP is stored hashed.
type VisitorMetric struct {
	ID        int       `json:"id"`
	HashedIP  string    `json:"hashed_ip"`
	UserAgent string    `json:"user_agent"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}

// SectionStat counts impressions of one page section.
type SectionStat struct {
	Section     string `json:"section"`
	Impressions int64  `json:"impressions"`
}

// PostStat is a blog post ranked by click-throughs.
type PostStat struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	URL    string `json:"url"`
	Clicks int    `json:"clicks"`
}

// AdminStats is everything shown on the admin dashboard.
type AdminStats struct {
	TotalVisitors    int64           `json:"total_visitors"`
	UniqueVisitors   int64           `json:"unique_visitors"`
	VisitorsToday    int64           `json:"visitors_today"`
	VisitorsThisWeek int64           `json:"visitors_this_week"`
	TotalProjects    int64           `json:"total_projects"`
	TotalPosts       int64           `json:"total_posts"`
	TotalClicks      int64           `json:"total_clicks"`
	Sections         []SectionStat   `json:"sections"`
	TopPosts         []PostStat      `json:"top_posts"`
	RecentVisitors   []VisitorMetric `json:"recent_visitors"`
}
