// admin.go - privacy-conscious visitor tracking and the owner's dashboard
package main

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Zachkp/folio/internal/handlers"
	"github.com/Zachkp/folio/internal/models"
	"github.com/Zachkp/folio/internal/repository"
)

// retention is how long visit records are kept.
const retention = 12 * 30 * 24 * time.Hour

type admin struct {
	h         *handlers.Handler
	analytics repository.AnalyticsRepository
	projects  repository.ProjectRepository
	posts     repository.PostRepository
	salt      string
	now       func() time.Time
}

func newAdmin(h *handlers.Handler, analytics repository.AnalyticsRepository, projects repository.ProjectRepository, posts repository.PostRepository) *admin {
	log.Println("Privacy: Visitor tracking enabled with hashed IP addresses")
	return &admin{
		h:         h,
		analytics: analytics,
		projects:  projects,
		posts:     posts,
		salt:      generateSalt(),
		now:       time.Now,
	}
}

func generateSalt() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		log.Fatal("Failed to generate hashing salt:", err)
	}
	return hex.EncodeToString(b)
}

// Hash IP address for privacy compliance (consistent per IP until restart)
func (a *admin) hashIP(ip string) string {
	hash := sha256.New()
	hash.Write([]byte(ip + a.salt))
	return hex.EncodeToString(hash.Sum(nil))[:16]
}

var untrackedPrefixes = []string{
	"/static/", "/images/", "/uploads/", "/admin/", "/api/", "/reveal/",
	"/favicon", "/privacy", "/ws", "/healthz",
}

// Privacy-conscious visitor tracking middleware. Only full page loads count;
// HTMX fragments and beacons are part of a visit already recorded.
func (a *admin) visitorTrackingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if c.Request.Method != http.MethodGet || c.GetHeader("HX-Request") == "true" {
			c.Next()
			return
		}
		for _, p := range untrackedPrefixes {
			if strings.HasPrefix(path, p) {
				c.Next()
				return
			}
		}

		// Respect Do Not Track header
		if c.GetHeader("DNT") == "1" {
			c.Next()
			return
		}

		v := models.VisitorMetric{
			HashedIP:  a.hashIP(c.ClientIP()),
			UserAgent: c.GetHeader("User-Agent"),
			Path:      path,
			Timestamp: a.now().UTC(),
		}
		go func() {
			if err := a.analytics.RecordVisit(context.Background(), v); err != nil {
				log.Printf("Error recording visitor: %v", err)
			}
		}()
		c.Next()
	}
}

// Cleanup old visitor data for privacy compliance
func (a *admin) cleanupOldVisitorData(ctx context.Context) {
	n, err := a.analytics.PurgeVisitorsBefore(ctx, a.now().Add(-retention))
	if err != nil {
		log.Printf("Error cleaning up old visitor data: %v", err)
		return
	}
	if n > 0 {
		log.Printf("Privacy cleanup: Removed %d visitor records older than 12 months", n)
	}
}

// Get comprehensive admin statistics
func (a *admin) getAdminStats(ctx context.Context) (*models.AdminStats, error) {
	stats := &models.AdminStats{}
	var err error

	stats.TotalVisitors, stats.UniqueVisitors, stats.VisitorsToday, stats.VisitorsThisWeek, err = a.analytics.VisitorCounts(ctx, a.now())
	if err != nil {
		return nil, err
	}
	if stats.TotalProjects, err = a.projects.Count(ctx); err != nil {
		return nil, err
	}
	if stats.TotalPosts, err = a.posts.Count(ctx); err != nil {
		return nil, err
	}
	if stats.TotalClicks, err = a.posts.TotalClicks(ctx); err != nil {
		return nil, err
	}
	if stats.Sections, err = a.analytics.SectionImpressions(ctx); err != nil {
		return nil, err
	}
	if stats.TopPosts, err = a.posts.TopByClicks(ctx, 10); err != nil {
		return nil, err
	}
	if stats.RecentVisitors, err = a.analytics.RecentVisitors(ctx, 50); err != nil {
		return nil, err
	}
	return stats, nil
}

type dashboardPage struct {
	handlers.Page
	Stats *models.AdminStats
}

type visitorsPage struct {
	handlers.Page
	Visitors []models.VisitorMetric
}

// Setup all admin routes. They share the site's owner session.
func (a *admin) setupAdminRoutes(r *gin.Engine, require gin.HandlerFunc) {
	r.GET("/privacy", func(c *gin.Context) {
		c.HTML(http.StatusOK, "privacy.html", a.h.Page(c, "Privacy Policy"))
	})

	adminGroup := r.Group("/admin", require)

	adminGroup.GET("/dashboard", func(c *gin.Context) {
		stats, err := a.getAdminStats(c.Request.Context())
		if err != nil {
			log.Printf("Error loading admin stats: %v", err)
			a.h.RenderError(c, http.StatusInternalServerError, "Error", "Failed to load statistics")
			return
		}
		c.HTML(http.StatusOK, "admin-dashboard.html", dashboardPage{Page: a.h.Page(c, "Dashboard"), Stats: stats})
	})

	// Admin API endpoints for HTMX/AJAX
	adminGroup.GET("/api/stats", func(c *gin.Context) {
		stats, err := a.getAdminStats(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	})

	adminGroup.GET("/visitors", func(c *gin.Context) {
		visitors, err := a.analytics.RecentVisitors(c.Request.Context(), 200)
		if err != nil {
			log.Printf("Error loading visitors: %v", err)
			a.h.RenderError(c, http.StatusInternalServerError, "Error", "Failed to load visitors")
			return
		}
		c.HTML(http.StatusOK, "admin-visitors.html", visitorsPage{Page: a.h.Page(c, "Visitors"), Visitors: visitors})
	})

	adminGroup.POST("/privacy/cleanup", func(c *gin.Context) {
		go a.cleanupOldVisitorData(context.Background())
		c.JSON(http.StatusOK, gin.H{"message": "Privacy cleanup initiated"})
	})

	// Admin statistics export (for backups or analysis)
	adminGroup.GET("/export/stats", func(c *gin.Context) {
		stats, err := a.getAdminStats(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Header("Content-Disposition", "attachment; filename=admin-stats.json")
		log.Printf("Admin stats exported by %s", a.hashIP(c.ClientIP()))
		c.JSON(http.StatusOK, stats)
	})
}
