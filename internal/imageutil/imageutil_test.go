package imageutil

import (
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestOptimizedAddsParams(t *testing.T) {
	got := Optimized("https://images.example.com/a.jpg", 400, 75)
	u, err := url.Parse(got)
	if err != nil {
		t.Fatal(err)
	}
	q := u.Query()
	if q.Get("w") != "400" || q.Get("q") != "75" || q.Get("auto") != "format" {
		t.Fatalf("unexpected query %q", u.RawQuery)
	}
}

func TestOptimizedReplacesExistingParams(t *testing.T) {
	got := Optimized(Fallback(), 200, 50)
	u, _ := url.Parse(got)
	q := u.Query()
	if q.Get("w") != "200" || q.Get("q") != "50" {
		t.Fatalf("expected overridden size, got %q", u.RawQuery)
	}
	if q.Get("fit") != "crop" || q.Get("ixlib") == "" {
		t.Fatalf("other params must survive, got %q", u.RawQuery)
	}
	if strings.Count(got, "w=") != 1 {
		t.Fatalf("duplicate width param in %s", got)
	}
}

func TestOptimizedEdgeCases(t *testing.T) {
	if Optimized("", 400, 75) != Fallback() {
		t.Fatal("empty src should use the fallback image")
	}
	if got := Optimized("/uploads/projects/x.png", 400, 75); got != "/uploads/projects/x.png" {
		t.Fatalf("relative url changed: %s", got)
	}
	u, _ := url.Parse(Optimized("https://x.example/a.png", 0, 500))
	if u.Query().Get("w") != "400" || u.Query().Get("q") != "75" {
		t.Fatalf("bad sizes should fall back to defaults, got %q", u.RawQuery)
	}
}

func TestDateAndAgo(t *testing.T) {
	d := time.Date(2023, 12, 10, 0, 0, 0, 0, time.UTC)
	if Date(d) != "Dec 10, 2023" {
		t.Fatalf("unexpected date %q", Date(d))
	}
	if Date(time.Time{}) != "" || Ago(time.Time{}) != "" {
		t.Fatal("zero time should render empty")
	}
	if got := Ago(time.Now().Add(-72 * time.Hour)); got != "3 days ago" {
		t.Fatalf("unexpected relative time %q", got)
	}
}
