package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Zachkp/folio/internal/database"
	"github.com/Zachkp/folio/internal/models"
	"github.com/Zachkp/folio/internal/repository"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestAdmin(t *testing.T) *admin {
	t.Helper()
	db, err := database.Open(database.Memory)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return newAdmin(nil,
		repository.NewSQLiteAnalyticsRepo(db),
		repository.NewSQLiteProjectRepo(db),
		repository.NewSQLitePostRepo(db))
}

func TestHashIP(t *testing.T) {
	a := newTestAdmin(t)
	h1 := a.hashIP("203.0.113.7")
	if len(h1) != 16 {
		t.Fatalf("expected 16 hex chars, got %q", h1)
	}
	if a.hashIP("203.0.113.7") != h1 {
		t.Fatal("hash must be stable for the same IP")
	}
	if a.hashIP("203.0.113.8") == h1 {
		t.Fatal("different IPs must not collide")
	}

	b := newTestAdmin(t)
	if b.hashIP("203.0.113.7") == h1 {
		t.Fatal("hash must depend on the salt")
	}
}

func TestVisitorTracking(t *testing.T) {
	a := newTestAdmin(t)
	r := gin.New()
	r.Use(a.visitorTrackingMiddleware())
	r.GET("/*path", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(path string, header ...string) {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		for i := 0; i+1 < len(header); i += 2 {
			req.Header.Set(header[i], header[i+1])
		}
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	send("/")
	send("/static/css/site.css")
	send("/admin/dashboard")
	send("/reveal/abc")
	send("/", "DNT", "1")
	send("/portfolio", "HX-Request", "true")

	var visits []models.VisitorMetric
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		visits, _ = a.analytics.RecentVisitors(context.Background(), 10)
		if len(visits) > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	visits, _ = a.analytics.RecentVisitors(context.Background(), 10)
	if len(visits) != 1 || visits[0].Path != "/" {
		t.Fatalf("expected only the home page visit, got %+v", visits)
	}
	if visits[0].HashedIP == "192.0.2.1" || len(visits[0].HashedIP) != 16 {
		t.Fatalf("IP must be stored hashed, got %q", visits[0].HashedIP)
	}
}

func TestAdminStatsAndCleanup(t *testing.T) {
	a := newTestAdmin(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	for _, v := range []models.VisitorMetric{
		{HashedIP: "a", Path: "/", Timestamp: now.Add(-time.Hour)},
		{HashedIP: "b", Path: "/", Timestamp: now.AddDate(0, 0, -3)},
		{HashedIP: "b", Path: "/", Timestamp: now.AddDate(-2, 0, 0)},
	} {
		if err := a.analytics.RecordVisit(ctx, v); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := a.posts.Create(ctx, models.Post{ID: "p", Title: "P", URL: "https://x.example", Platform: models.PlatformMedium, PublishedAt: now}); err != nil {
		t.Fatal(err)
	}
	_ = a.posts.IncrementClicks(ctx, "p")

	stats, err := a.getAdminStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalVisitors != 3 || stats.UniqueVisitors != 2 || stats.VisitorsThisWeek != 2 {
		t.Fatalf("unexpected visitor stats %+v", stats)
	}
	if stats.TotalPosts != 1 || stats.TotalClicks != 1 || len(stats.TopPosts) != 1 {
		t.Fatalf("unexpected post stats %+v", stats)
	}

	a.cleanupOldVisitorData(ctx)
	stats, _ = a.getAdminStats(ctx)
	if stats.TotalVisitors != 2 {
		t.Fatalf("expected the two-year-old visit purged, got %d", stats.TotalVisitors)
	}
}
