package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/rs/cors"

	"github.com/Zachkp/folio/internal/auth"
	"github.com/Zachkp/folio/internal/collection"
	"github.com/Zachkp/folio/internal/config"
	"github.com/Zachkp/folio/internal/contact"
	"github.com/Zachkp/folio/internal/content"
	"github.com/Zachkp/folio/internal/database"
	"github.com/Zachkp/folio/internal/handlers"
	"github.com/Zachkp/folio/internal/models"
	"github.com/Zachkp/folio/internal/notify"
	"github.com/Zachkp/folio/internal/profile"
	"github.com/Zachkp/folio/internal/repository"
	"github.com/Zachkp/folio/internal/reveal"
	"github.com/Zachkp/folio/internal/storage"
	"github.com/Zachkp/folio/internal/ws"
	"github.com/Zachkp/folio/web"
)

// viewTTL is how long a rendered page keeps its reveal state without beacons.
const viewTTL = 30 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[config] %v", err)
	}
	gin.SetMode(cfg.Server.GinMode)

	if err := run(cfg); err != nil {
		log.Fatal(err)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Printf("[db] opened %s", cfg.Database.Path)

	users := repository.NewSQLiteUserRepo(db)
	sessions := repository.NewSQLiteSessionRepo(db)
	projects := repository.NewSQLiteProjectRepo(db)
	posts := repository.NewSQLitePostRepo(db)
	analytics := repository.NewSQLiteAnalyticsRepo(db)

	hub := ws.NewHub()
	go hub.Run()
	defer hub.Shutdown()

	inbox := notify.NewInbox(100)
	sink := notify.Fanout{notify.LogSink{}, inbox, hub}

	loader, err := content.NewLoader(cfg.Content.File)
	if err != nil {
		return err
	}
	loader.OnChange(func(s *content.Site) {
		log.Printf("[content] now serving %d experience and %d education entries", len(s.Experience), len(s.Education))
	})
	if cfg.Content.Watch {
		if err := loader.Watch(ctx); err != nil {
			log.Printf("[content] not watching: %v", err)
		}
	}
	site := loader.Site()

	portfolio := collection.New[models.Project](projects, sink, site.Projects,
		collection.WithLabels(collection.Labels{Singular: "project", Plural: "projects", Place: "portfolio"}))
	blog := collection.New[models.Post](posts, sink, site.Posts, collection.Prepend(),
		collection.WithLabels(collection.Labels{Singular: "article", Plural: "articles", Place: "blog"}))
	defer func() {
		portfolio.Wait()
		blog.Wait()
		portfolio.Close()
		blog.Close()
	}()
	loadCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	_ = portfolio.Load(loadCtx)
	_ = blog.Load(loadCtx)
	cancel()

	svc := auth.NewService(users, sessions, cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	if _, err := svc.EnsureOwner(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
		return err
	}
	authCtx := auth.NewContext(svc, strings.HasPrefix(cfg.Server.PublicURL, "https://"), hub.AuthEvent)
	defer authCtx.Close()
	limiter := auth.NewLimiter(cfg.Auth.LoginsPerMinute)
	defer limiter.Close()

	tracker := reveal.NewTracker(analytics, viewTTL, nil)
	defer tracker.Shutdown()

	bucket, err := storage.NewDiskBucket(cfg.Upload.Dir, "/uploads", cfg.Upload.MaxBytes)
	if err != nil {
		return err
	}
	profiles := profile.NewService(repository.NewSQLiteProfileRepo(db), users, bucket, sink)
	defer profiles.Close()

	h := handlers.New(handlers.Deps{
		Content:   loader,
		Portfolio: portfolio,
		Blog:      blog,
		Posts:     posts,
		Tracker:   tracker,
		Auth:      authCtx,
		Limiter:   limiter,
		Profiles:  profiles,
		Bucket:    bucket,
		Inbox:     inbox,
		Sink:      sink,
		Hub:       hub,
		Mail:      contact.New(cfg.Mail),
		Origins:   cfg.Server.CORSOrigins,
	})
	adm := newAdmin(h, analytics, projects, posts)
	h.ClientKey = adm.hashIP

	// Daily housekeeping: visit retention and expired sessions.
	c := cron.New()
	if _, err := c.AddFunc("@daily", func() {
		adm.cleanupOldVisitorData(context.Background())
		if n, err := svc.PurgeExpired(context.Background()); err != nil {
			log.Printf("[auth] purge sessions: %v", err)
		} else if n > 0 {
			log.Printf("[auth] purged %d expired sessions", n)
		}
	}); err != nil {
		return err
	}
	c.Start()
	defer c.Stop()
	go adm.cleanupOldVisitorData(ctx)

	tmpl, err := handlers.Templates()
	if err != nil {
		return err
	}
	static, err := fs.Sub(web.Static, "static")
	if err != nil {
		return err
	}

	r := gin.Default()
	r.SetHTMLTemplate(tmpl)
	r.MaxMultipartMemory = cfg.Upload.MaxBytes
	r.StaticFS("/static", http.FS(static))
	r.Static("/images", "./images")
	r.Static("/uploads", bucket.Dir())

	r.Use(adm.visitorTrackingMiddleware(), authCtx.Load())
	h.Register(r)
	adm.setupAdminRoutes(r, authCtx.Require())

	var handler http.Handler = r
	if len(cfg.Server.CORSOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins:   cfg.Server.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete},
			AllowedHeaders:   []string{"Content-Type", "HX-Request", "HX-Target", "HX-Current-URL", "HX-Trigger"},
			AllowCredentials: true,
		}).Handler(r)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Printf("Server listening on %s (%s)", srv.Addr, cfg.Server.PublicURL)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
