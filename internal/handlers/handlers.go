// Package handlers is the HTTP surface of the site: full pages, HTMX
// fragments and the small JSON API behind the owner forms.
package handlers

import (
	"html"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"

	"github.com/Zachkp/folio/internal/auth"
	"github.com/Zachkp/folio/internal/collection"
	"github.com/Zachkp/folio/internal/contact"
	"github.com/Zachkp/folio/internal/content"
	"github.com/Zachkp/folio/internal/imageutil"
	"github.com/Zachkp/folio/internal/models"
	"github.com/Zachkp/folio/internal/notify"
	"github.com/Zachkp/folio/internal/profile"
	"github.com/Zachkp/folio/internal/repository"
	"github.com/Zachkp/folio/internal/reveal"
	"github.com/Zachkp/folio/internal/storage"
	"github.com/Zachkp/folio/internal/ws"
	"github.com/Zachkp/folio/web"
)

// Deps is everything the handlers talk to. Hub may be nil, in which case the
// /ws endpoint is not registered and clients fall back to polling.
type Deps struct {
	Content   *content.Loader
	Portfolio *collection.Store[models.Project]
	Blog      *collection.Store[models.Post]
	Posts     repository.PostRepository
	Tracker   *reveal.Tracker
	Auth      *auth.Context
	Limiter   *auth.Limiter
	Profiles  *profile.Service
	Bucket    storage.Bucket
	Inbox     *notify.Inbox
	Sink      notify.Sink
	Hub       *ws.Hub
	Mail      contact.Sender
	Origins   []string

	// ClientKey turns a client IP into the key used for rate limiting and
	// logging. Defaults to the IP itself.
	ClientKey func(ip string) string
}

type Handler struct {
	Deps
	policy *bluemonday.Policy
}

func New(d Deps) *Handler {
	registerValidators()
	if d.Sink == nil {
		d.Sink = notify.LogSink{}
	}
	if d.ClientKey == nil {
		d.ClientKey = func(ip string) string { return ip }
	}
	return &Handler{Deps: d, policy: bluemonday.StrictPolicy()}
}

// FuncMap holds the helpers every template may use.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"reveal":  reveal.Attrs,
		"image":   imageutil.Card,
		"date":    imageutil.Date,
		"isodate": func(t time.Time) string { return t.Format("2006-01-02") },
		"ago":     imageutil.Ago,
		"comma":   humanize.Comma,
	}
}

// Templates parses the embedded HTML templates.
func Templates() (*template.Template, error) {
	return template.New("").Funcs(FuncMap()).ParseFS(web.Templates, "templates/*.html")
}

// Register mounts all public, owner and account routes. Session loading must
// already be installed on r.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/", h.index)
	r.GET("/portfolio", h.portfolioGrid)
	r.GET("/work-content", h.timeline(func(s *content.Site) []content.Entry { return s.Experience }))
	r.GET("/education-content", h.timeline(func(s *content.Site) []content.Entry { return s.Education }))
	r.GET("/blog/:id/go", h.blogRedirect)
	r.GET("/healthz", h.healthz)

	r.POST("/reveal/:view", h.revealBeacon)
	r.POST("/reveal/:view/close", h.revealClose)
	r.DELETE("/reveal/:view", h.revealClose)

	r.GET("/contact-form", h.contactForm)
	r.POST("/contact", h.contactSubmit)

	r.GET("/login", h.loginPage)
	r.POST("/login", h.login)
	r.POST("/logout", h.logout)

	api := r.Group("/api")
	api.GET("/projects", h.listProjects)
	api.GET("/posts", h.listPosts)

	owner := api.Group("", h.Auth.Require())
	owner.POST("/projects", h.createProject)
	owner.DELETE("/projects/:id", h.deleteProject)
	owner.POST("/posts", h.createPost)
	owner.DELETE("/posts/:id", h.deletePost)
	owner.GET("/notifications", h.notifications)

	account := r.Group("", h.Auth.Require())
	account.GET("/profile", h.profilePage)
	account.POST("/profile", h.updateProfile)
	account.POST("/profile/avatar", h.uploadAvatar)
	account.GET("/settings", h.settingsPage)
	account.POST("/settings/preferences", h.savePreferences)
	account.POST("/settings/password", h.changePassword)
	account.POST("/settings/delete", h.deleteAccount)
	if h.Hub != nil {
		account.GET("/ws", ws.Handler(h.Hub, h.Origins))
	}

	r.NoRoute(func(c *gin.Context) {
		h.RenderError(c, http.StatusNotFound, "Page not found", "The page you are looking for does not exist.")
	})
}

// Page is the data every full page template expects.
type Page struct {
	Title   string
	Site    *content.Site
	Session *models.Session
	ViewID  string
	Year    int
}

// Page builds the common page data for the current request.
func (h *Handler) Page(c *gin.Context, title string) Page {
	site := h.Content.Site()
	if title == "" {
		title = site.Meta.Name
	} else {
		title = title + " | " + site.Meta.Name
	}
	return Page{
		Title:   title,
		Site:    site,
		Session: auth.Current(c),
		Year:    time.Now().Year(),
	}
}

type errorPage struct {
	Page
	Message string
}

// RenderError renders the error page, or a JSON error for API and HTMX calls.
func (h *Handler) RenderError(c *gin.Context, status int, title, message string) {
	if wantsJSON(c) {
		c.AbortWithStatusJSON(status, gin.H{"error": message})
		return
	}
	c.HTML(status, "error.html", errorPage{Page: h.Page(c, title), Message: message})
	c.Abort()
}

// reject reports a failed owner action as a destructive notification and
// answers 4xx without touching any state.
func (h *Handler) reject(c *gin.Context, status int, n notify.Notification) {
	h.Sink.Notify(n)
	c.AbortWithStatusJSON(status, gin.H{"error": n.Description, "notification": n})
}

// clean strips markup from user input. The sanitizer escapes what it keeps;
// templates escape again on output, so the stored value is unescaped.
func (h *Handler) clean(s string) string {
	return strings.TrimSpace(html.UnescapeString(h.policy.Sanitize(s)))
}

func isHTMX(c *gin.Context) bool {
	return c.GetHeader("HX-Request") == "true"
}

func wantsJSON(c *gin.Context) bool {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}

func (h *Handler) healthz(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if h.Hub != nil {
		resp["connections"] = h.Hub.Count()
	}
	c.JSON(http.StatusOK, resp)
}
