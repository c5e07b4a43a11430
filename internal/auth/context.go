package auth

import (
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Zachkp/folio/internal/models"
)

const (
	CookieName = "folio_session"
	sessionKey = "auth.session"
)

// Context is the one process-wide view of the authentication state. It is the
// only subscriber to the service's events and the only way handlers reach the
// current session.
type Context struct {
	svc         *Service
	secure      bool
	unsubscribe func()
}

// NewContext subscribes forward (may be nil) to the service's events.
func NewContext(svc *Service, secure bool, forward func(Event)) *Context {
	a := &Context{svc: svc, secure: secure}
	a.unsubscribe = svc.Subscribe(func(e Event) {
		log.Printf("[auth] %s user=%s", e.Kind, e.UserID)
		if forward != nil {
			forward(e)
		}
	})
	return a
}

func (a *Context) Service() *Service { return a.svc }

func (a *Context) Close() {
	a.unsubscribe()
}

// Load resolves the session cookie, if any, into the request.
func (a *Context) Load() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(CookieName)
		if err == nil && token != "" {
			sess, err := a.svc.Session(c.Request.Context(), token)
			if err != nil {
				log.Printf("[auth] resolve session: %v", err)
			}
			if sess != nil {
				c.Set(sessionKey, sess)
			}
		}
		c.Next()
	}
}

// Require stops requests without a session: API paths get 401, pages are
// redirected to the login form.
func (a *Context) Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		if Current(c) != nil {
			c.Next()
			return
		}
		path := c.Request.URL.Path
		if strings.Contains(path, "/api/") || c.GetHeader("HX-Request") == "true" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrUnauthenticated.Error()})
			return
		}
		c.Redirect(http.StatusFound, "/login?next="+url.QueryEscape(c.Request.URL.RequestURI()))
		c.Abort()
	}
}

// Current returns the request's session, nil when signed out.
func Current(c *gin.Context) *models.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*models.Session)
	return sess
}

// Token returns the raw session cookie.
func Token(c *gin.Context) string {
	token, _ := c.Cookie(CookieName)
	return token
}

func (a *Context) SetCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, token, int(a.svc.TTL().Seconds()), "/", "", a.secure, true)
}

func (a *Context) ClearCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, "", -1, "/", "", a.secure, true)
}
