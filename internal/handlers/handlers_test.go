package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/Zachkp/folio/internal/auth"
	"github.com/Zachkp/folio/internal/collection"
	"github.com/Zachkp/folio/internal/contact"
	"github.com/Zachkp/folio/internal/content"
	"github.com/Zachkp/folio/internal/database"
	"github.com/Zachkp/folio/internal/models"
	"github.com/Zachkp/folio/internal/notify"
	"github.com/Zachkp/folio/internal/profile"
	"github.com/Zachkp/folio/internal/repository"
	"github.com/Zachkp/folio/internal/reveal"
	"github.com/Zachkp/folio/internal/storage"
	"github.com/Zachkp/folio/internal/ws"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeMail struct {
	mu   sync.Mutex
	sent []contact.Message
	err  error
}

func (m *fakeMail) Send(ctx context.Context, msg contact.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type fixture struct {
	r         *gin.Engine
	h         *Handler
	projects  repository.ProjectRepository
	posts     repository.PostRepository
	analytics repository.AnalyticsRepository
	users     repository.UserRepository
	inbox     *notify.Inbox
	mail      *fakeMail
	token     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(database.Memory)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	users := repository.NewSQLiteUserRepo(db)
	svc := auth.NewService(users, repository.NewSQLiteSessionRepo(db), "test-secret", time.Hour,
		auth.WithBcryptCost(bcrypt.MinCost))
	if _, err := svc.EnsureOwner(ctx, "owner@example.com", "hunter22"); err != nil {
		t.Fatal(err)
	}
	token, _, err := svc.SignIn(ctx, "owner@example.com", "hunter22")
	if err != nil {
		t.Fatal(err)
	}
	authCtx := auth.NewContext(svc, false, nil)

	loader, err := content.NewLoader("")
	if err != nil {
		t.Fatal(err)
	}
	site := loader.Site()

	f := &fixture{
		projects:  repository.NewSQLiteProjectRepo(db),
		posts:     repository.NewSQLitePostRepo(db),
		analytics: repository.NewSQLiteAnalyticsRepo(db),
		users:     users,
		inbox:     notify.NewInbox(50),
		mail:      &fakeMail{},
		token:     token,
	}

	portfolio := collection.New[models.Project](f.projects, f.inbox, site.Projects,
		collection.WithLabels(collection.Labels{Singular: "project", Plural: "projects", Place: "portfolio"}))
	blog := collection.New[models.Post](f.posts, f.inbox, site.Posts, collection.Prepend(),
		collection.WithLabels(collection.Labels{Singular: "article", Plural: "articles", Place: "blog"}))
	tracker := reveal.NewTracker(f.analytics, time.Hour, nil)
	bucket, err := storage.NewDiskBucket(t.TempDir(), "/uploads", 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	profiles := profile.NewService(repository.NewSQLiteProfileRepo(db), users, bucket, f.inbox)
	limiter := auth.NewLimiter(3)

	t.Cleanup(func() {
		portfolio.Wait()
		blog.Wait()
		portfolio.Close()
		blog.Close()
		tracker.Shutdown()
		limiter.Close()
		profiles.Close()
		authCtx.Close()
	})

	f.h = New(Deps{
		Content:   loader,
		Portfolio: portfolio,
		Blog:      blog,
		Posts:     f.posts,
		Tracker:   tracker,
		Auth:      authCtx,
		Limiter:   limiter,
		Profiles:  profiles,
		Bucket:    bucket,
		Inbox:     f.inbox,
		Sink:      f.inbox,
		Mail:      f.mail,
	})

	tmpl, err := Templates()
	if err != nil {
		t.Fatal(err)
	}
	f.r = gin.New()
	f.r.SetHTMLTemplate(tmpl)
	f.r.Use(authCtx.Load())
	f.h.Register(f.r)
	return f
}

func (f *fixture) do(req *http.Request, owner bool) *httptest.ResponseRecorder {
	if owner {
		req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: f.token})
	}
	w := httptest.NewRecorder()
	f.r.ServeHTTP(w, req)
	return w
}

func form(method, target string, values url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func (f *fixture) hasNotification(title string) bool {
	for _, n := range f.inbox.Recent() {
		if n.Title == title {
			return true
		}
	}
	return false
}

func TestIndexRendersFallbackContent(t *testing.T) {
	f := newFixture(t)
	w := f.do(httptest.NewRequest(http.MethodGet, "/", nil), false)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	for _, want := range []string{
		"Terminal Mail Client",
		`data-reveal="about"`,
		`data-view="`,
		"/blog/demo-figma/go",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in home page", want)
		}
	}
	if strings.Contains(body, "Add project") {
		t.Fatal("owner form rendered for a visitor")
	}

	w = f.do(httptest.NewRequest(http.MethodGet, "/", nil), true)
	if !strings.Contains(w.Body.String(), "Add project") {
		t.Fatal("owner form missing for the owner")
	}
}

func TestPortfolioFilter(t *testing.T) {
	f := newFixture(t)
	f.do(httptest.NewRequest(http.MethodGet, "/", nil), false)

	w := f.do(httptest.NewRequest(http.MethodGet, "/portfolio?filter="+url.QueryEscape("Machine Learning"), nil), false)
	body := w.Body.String()
	if strings.Contains(body, "Terminal Mail Client") {
		t.Fatal("filter let through another category")
	}
	if !strings.Contains(body, `filter active`) {
		t.Fatal("selected filter not marked active")
	}

	w = f.do(httptest.NewRequest(http.MethodGet, "/api/projects?filter=Terminal+Apps", nil), false)
	var resp struct {
		Items      []models.Project `json:"items"`
		Categories []string         `json:"categories"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Items) != 2 || resp.Categories[0] != collection.All {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestRevealBeaconRecordsImpressions(t *testing.T) {
	f := newFixture(t)
	view := f.h.Tracker.Open("/", homeSections)

	body := `{"entries":[{"target":"about","ratio":0.4,"intersecting":true},{"target":"nope","ratio":1,"intersecting":true}]}`
	req := httptest.NewRequest(http.MethodPost, "/reveal/"+view.ID, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := f.do(req, false)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"routed":1`) {
		t.Fatalf("unexpected beacon response %d %s", w.Code, w.Body.String())
	}

	stats, err := f.analytics.SectionImpressions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 1 || stats[0].Section != "about" {
		t.Fatalf("unexpected impressions %+v", stats)
	}

	w = f.do(httptest.NewRequest(http.MethodPost, "/reveal/"+view.ID+"/close", nil), false)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	req = httptest.NewRequest(http.MethodPost, "/reveal/"+view.ID, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if w = f.do(req, false); w.Code != http.StatusNotFound {
		t.Fatalf("closed view should be unknown, got %d", w.Code)
	}
}

func TestOwnerRoutesRequireSession(t *testing.T) {
	f := newFixture(t)
	w := f.do(form(http.MethodPost, "/api/projects", url.Values{"title": {"x"}}), false)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	w = f.do(httptest.NewRequest(http.MethodGet, "/settings", nil), false)
	if w.Code != http.StatusFound || !strings.HasPrefix(w.Header().Get("Location"), "/login?next=") {
		t.Fatalf("expected redirect to login, got %d %q", w.Code, w.Header().Get("Location"))
	}
}

func TestCreateProjectValidation(t *testing.T) {
	f := newFixture(t)
	f.do(httptest.NewRequest(http.MethodGet, "/", nil), false)

	w := f.do(form(http.MethodPost, "/api/projects", url.Values{"title": {"Only a title"}}), true)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !f.hasNotification("Missing information") {
		t.Fatal("expected a missing information notification")
	}

	w = f.do(form(http.MethodPost, "/api/projects", url.Values{
		"title": {"<b>   </b>"}, "description": {"d"}, "category": {"Web"}, "image_url": {"https://x.example/a.png"},
	}), true)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("markup-only title should be rejected, got %d", w.Code)
	}

	w = f.do(form(http.MethodPost, "/api/projects", url.Values{
		"title": {"T"}, "description": {"d"}, "category": {"Web"}, "image_url": {"ftp://x.example/a.png"},
	}), true)
	if w.Code != http.StatusBadRequest || !f.hasNotification("Invalid URL") {
		t.Fatalf("expected invalid URL rejection, got %d", w.Code)
	}

	if n := len(f.h.Portfolio.Snapshot()); n != 4 {
		t.Fatalf("rejected forms must not change the list, got %d items", n)
	}
}

func TestCreateAndDeleteProject(t *testing.T) {
	f := newFixture(t)
	f.do(httptest.NewRequest(http.MethodGet, "/", nil), false)

	req := form(http.MethodPost, "/api/projects", url.Values{
		"title":       {"Folio <script>alert(1)</script>"},
		"description": {"Personal site & blog"},
		"category":    {"Web Development"},
		"image_url":   {"https://x.example/folio.png"},
	})
	req.Header.Set("HX-Request", "true")
	w := f.do(req, true)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "hx-delete=\"/api/projects/") {
		t.Fatal("expected an owner card fragment")
	}
	if strings.Contains(w.Body.String(), "<script>") {
		t.Fatal("markup was not stripped")
	}

	f.h.Portfolio.Wait()
	rows, err := f.projects.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Title != "Folio" || rows[0].Description != "Personal site & blog" {
		t.Fatalf("unexpected stored rows %+v", rows)
	}
	if !f.hasNotification("Project added") {
		t.Fatal("expected a project added notification")
	}

	w = f.do(httptest.NewRequest(http.MethodDelete, "/api/projects/"+rows[0].ID, nil), true)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	f.h.Portfolio.Wait()
	if _, err := f.projects.GetByID(context.Background(), rows[0].ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected row to be gone, got %v", err)
	}
}

func TestCreateProjectWithUpload(t *testing.T) {
	f := newFixture(t)
	f.do(httptest.NewRequest(http.MethodGet, "/", nil), false)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range map[string]string{"title": "Shot", "description": "d", "category": "Design"} {
		_ = mw.WriteField(k, v)
	}
	part, _ := mw.CreateFormFile("image", "shot.png")
	part.Write(append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/projects", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := f.do(req, true)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var p models.Project
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(p.ImageURL, "/uploads/projects/") || !strings.HasSuffix(p.ImageURL, ".png") {
		t.Fatalf("unexpected image url %q", p.ImageURL)
	}
}

func TestCreatePostPrependsAndValidates(t *testing.T) {
	f := newFixture(t)
	f.do(httptest.NewRequest(http.MethodGet, "/", nil), false)

	w := f.do(form(http.MethodPost, "/api/posts", url.Values{"title": {"T"}, "url": {"not a url"}}), true)
	if w.Code != http.StatusBadRequest || !f.hasNotification("Invalid URL") {
		t.Fatalf("expected invalid URL rejection, got %d", w.Code)
	}
	w = f.do(form(http.MethodPost, "/api/posts", url.Values{"url": {"https://x.example"}}), true)
	if w.Code != http.StatusBadRequest || !f.hasNotification("Missing information") {
		t.Fatalf("expected missing information rejection, got %d", w.Code)
	}

	w = f.do(form(http.MethodPost, "/api/posts", url.Values{"title": {"Fresh"}, "url": {"https://x.example/fresh"}}), true)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	first := f.h.Blog.Snapshot()[0]
	if first.Title != "Fresh" || first.Platform != models.PlatformMedium {
		t.Fatalf("expected new post first with default platform, got %+v", first)
	}
	f.h.Blog.Wait()
	if !f.hasNotification("Article added") {
		t.Fatal("expected an article added notification")
	}
}

func TestBlogRedirectCountsClicks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.posts.Create(ctx, models.Post{ID: "p1", Title: "One", URL: "https://x.example/one", Platform: models.PlatformOther, PublishedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}

	w := f.do(httptest.NewRequest(http.MethodGet, "/blog/p1/go", nil), false)
	if w.Code != http.StatusFound || w.Header().Get("Location") != "https://x.example/one" {
		t.Fatalf("unexpected redirect %d %q", w.Code, w.Header().Get("Location"))
	}
	if total, _ := f.posts.TotalClicks(ctx); total != 1 {
		t.Fatalf("expected 1 click, got %d", total)
	}

	if w = f.do(httptest.NewRequest(http.MethodGet, "/blog/missing/go", nil), false); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestLoginFlowAndRateLimit(t *testing.T) {
	f := newFixture(t)

	w := f.do(form(http.MethodPost, "/login", url.Values{
		"email": {"owner@example.com"}, "password": {"hunter22"}, "next": {"//evil.example"},
	}), false)
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/" {
		t.Fatalf("expected redirect home, got %d %q", w.Code, w.Header().Get("Location"))
	}
	if !strings.Contains(w.Header().Get("Set-Cookie"), auth.CookieName+"=") {
		t.Fatal("expected a session cookie")
	}

	for i := range 3 {
		w = f.do(form(http.MethodPost, "/login", url.Values{"email": {"owner@example.com"}, "password": {"wrong"}}), false)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i, w.Code)
		}
	}
	w = f.do(form(http.MethodPost, "/login", url.Values{"email": {"owner@example.com"}, "password": {"hunter22"}}), false)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after the burst, got %d", w.Code)
	}
}

func TestSafeNext(t *testing.T) {
	for in, want := range map[string]string{
		"":                     "/",
		"/settings":            "/settings",
		"//evil.example":       "/",
		"/\\evil.example":      "/",
		"https://evil.example": "/",
		"/profile?tab=1":       "/profile?tab=1",
	} {
		if got := safeNext(in); got != want {
			t.Fatalf("safeNext(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestChangePasswordNotifications(t *testing.T) {
	f := newFixture(t)

	f.do(form(http.MethodPost, "/settings/password", url.Values{"new_password": {"abcdef"}, "confirm_password": {"abcdeg"}}), true)
	if !f.hasNotification("Passwords don't match") {
		t.Fatal("expected mismatch notification")
	}
	f.do(form(http.MethodPost, "/settings/password", url.Values{"new_password": {"abc"}, "confirm_password": {"abc"}}), true)
	if !f.hasNotification("Password too short") {
		t.Fatal("expected too short notification")
	}
	w := f.do(form(http.MethodPost, "/settings/password", url.Values{"new_password": {"newpass1"}, "confirm_password": {"newpass1"}}), true)
	if w.Code != http.StatusSeeOther || !f.hasNotification("Password updated") {
		t.Fatalf("expected password update, got %d", w.Code)
	}

	if _, _, err := f.h.Auth.Service().SignIn(context.Background(), "owner@example.com", "newpass1"); err != nil {
		t.Fatalf("new password should work: %v", err)
	}
}

func TestSettingsAndProfilePages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	w := f.do(httptest.NewRequest(http.MethodGet, "/settings", nil), true)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "owner@example.com") {
		t.Fatalf("unexpected settings page %d", w.Code)
	}

	w = f.do(form(http.MethodPost, "/settings/preferences", url.Values{"security_alerts": {"true"}}), true)
	if w.Code != http.StatusSeeOther || !f.hasNotification("Settings saved") {
		t.Fatalf("expected preferences to be saved, got %d", w.Code)
	}
	u, err := f.users.GetByEmail(ctx, "owner@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if u.Preferences != (models.Preferences{SecurityAlerts: true}) {
		t.Fatalf("unexpected preferences %+v", u.Preferences)
	}

	w = f.do(httptest.NewRequest(http.MethodGet, "/profile", nil), true)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "set up your profile") {
		t.Fatalf("unexpected profile page %d", w.Code)
	}
	f.do(form(http.MethodPost, "/profile", url.Values{"username": {" zach "}, "full_name": {"Zach K"}}), true)
	w = f.do(httptest.NewRequest(http.MethodGet, "/profile", nil), true)
	if !strings.Contains(w.Body.String(), `value="zach"`) || !strings.Contains(w.Body.String(), "Zach K") {
		t.Fatal("profile update not shown")
	}

	f.do(form(http.MethodPost, "/settings/delete", nil), true)
	if !f.hasNotification("Feature not implemented") {
		t.Fatal("account deletion should be refused")
	}
}

func TestContactForm(t *testing.T) {
	f := newFixture(t)

	w := f.do(form(http.MethodPost, "/contact", url.Values{"fullName": {"Ada"}, "email": {"not-an-email"}, "message": {"hi there"}}), false)
	if !strings.Contains(w.Body.String(), "valid email") || len(f.mail.sent) != 0 {
		t.Fatal("invalid submission should not be sent")
	}

	w = f.do(form(http.MethodPost, "/contact", url.Values{"fullName": {"Ada"}, "email": {"ada@example.com"}, "message": {"<i>hello</i>"}}), false)
	if !strings.Contains(w.Body.String(), "Thank you") {
		t.Fatalf("expected success fragment, got %s", w.Body.String())
	}
	if len(f.mail.sent) != 1 || f.mail.sent[0].Message != "hello" {
		t.Fatalf("unexpected sent messages %+v", f.mail.sent)
	}

	f.mail.err = contact.ErrNotConfigured
	w = f.do(form(http.MethodPost, "/contact", url.Values{"fullName": {"Ada"}, "email": {"ada@example.com"}, "message": {"again"}}), false)
	if !strings.Contains(w.Body.String(), "error sending") {
		t.Fatalf("expected error fragment, got %s", w.Body.String())
	}
}

func TestNotificationsSince(t *testing.T) {
	f := newFixture(t)
	f.inbox.Notify(notify.Info("First", "one"))
	mark := time.Now()
	time.Sleep(2 * time.Millisecond)
	f.inbox.Notify(notify.Info("Second", "two"))

	w := f.do(httptest.NewRequest(http.MethodGet, "/api/notifications?since="+url.QueryEscape(mark.Format(time.RFC3339Nano)), nil), true)
	var list []notify.Notification
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Title != "Second" {
		t.Fatalf("unexpected notifications %+v", list)
	}

	if w = f.do(httptest.NewRequest(http.MethodGet, "/api/notifications?since=yesterday", nil), true); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestUnknownRouteRendersErrorPage(t *testing.T) {
	f := newFixture(t)
	w := f.do(httptest.NewRequest(http.MethodGet, "/nope", nil), false)
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), "Page not found") {
		t.Fatalf("unexpected response %d", w.Code)
	}
}

func TestHealthzReportsConnections(t *testing.T) {
	f := newFixture(t)
	w := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil), false)
	if w.Code != http.StatusOK || strings.Contains(w.Body.String(), "connections") {
		t.Fatalf("unexpected response without a hub %d %s", w.Code, w.Body.String())
	}

	hub := ws.NewHub()
	go hub.Run()
	t.Cleanup(hub.Shutdown)
	f.h.Hub = hub

	w = f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil), false)
	if !strings.Contains(w.Body.String(), `"connections":0`) {
		t.Fatalf("expected connection count, got %s", w.Body.String())
	}
}
