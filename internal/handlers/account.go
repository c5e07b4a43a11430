package handlers

import (
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Zachkp/folio/internal/auth"
	"github.com/Zachkp/folio/internal/models"
	"github.com/Zachkp/folio/internal/notify"
	"github.com/Zachkp/folio/internal/profile"
)

type loginPage struct {
	Page
	Next  string
	Email string
	Error string
}

// safeNext only allows redirects to local paths.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	if u, err := url.Parse(next); err != nil || u.Host != "" {
		return "/"
	}
	return next
}

func (h *Handler) loginPage(c *gin.Context) {
	next := safeNext(c.Query("next"))
	if auth.Current(c) != nil {
		c.Redirect(http.StatusFound, next)
		return
	}
	c.HTML(http.StatusOK, "login.html", loginPage{Page: h.Page(c, "Log in"), Next: next})
}

func (h *Handler) login(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("email"))
	password := c.PostForm("password")
	data := loginPage{Page: h.Page(c, "Log in"), Next: safeNext(c.PostForm("next")), Email: email}

	key := h.ClientKey(c.ClientIP())
	if !h.Limiter.Allow(key) {
		data.Error = "Too many login attempts. Please wait a minute and try again."
		c.HTML(http.StatusTooManyRequests, "login.html", data)
		return
	}

	token, sess, err := h.Auth.Service().SignIn(c.Request.Context(), email, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			log.Printf("[auth] failed login for %q from %s", email, key)
			data.Error = "Invalid email or password."
			c.HTML(http.StatusUnauthorized, "login.html", data)
			return
		}
		log.Printf("[auth] sign in: %v", err)
		data.Error = "Something went wrong. Please try again."
		c.HTML(http.StatusInternalServerError, "login.html", data)
		return
	}

	h.Limiter.Reset(key)
	h.Auth.SetCookie(c, token)
	log.Printf("[auth] %s signed in", sess.Email)
	c.Redirect(http.StatusSeeOther, data.Next)
}

func (h *Handler) logout(c *gin.Context) {
	err := h.Auth.Service().SignOut(c.Request.Context(), auth.Token(c))
	h.Auth.ClearCookie(c)
	switch {
	case err == nil:
		h.Sink.Notify(notify.Info("Logged out", "You have been successfully logged out."))
	case errors.Is(err, auth.ErrUnauthenticated):
	default:
		log.Printf("[auth] sign out: %v", err)
		h.Sink.Notify(notify.Failure("Error", "Failed to log out"))
	}
	c.Redirect(http.StatusSeeOther, "/")
}

type profilePage struct {
	Page
	Profile  models.Profile
	Exists   bool
	Initials string
}

func (h *Handler) profilePage(c *gin.Context) {
	sess := auth.Current(c)
	p, exists, err := h.Profiles.Get(c.Request.Context(), sess.UserID)
	if err != nil {
		h.RenderError(c, http.StatusInternalServerError, "Error", "Failed to load profile data")
		return
	}
	c.HTML(http.StatusOK, "profile.html", profilePage{
		Page:     h.Page(c, "Profile"),
		Profile:  p,
		Exists:   exists,
		Initials: profile.Initials(p, sess.Email),
	})
}

func (h *Handler) updateProfile(c *gin.Context) {
	username := h.clean(c.PostForm("username"))
	fullName := h.clean(c.PostForm("full_name"))
	upd := models.ProfileUpdate{Username: &username, FullName: &fullName}
	if _, err := h.Profiles.Update(c.Request.Context(), auth.Current(c).UserID, upd); err != nil {
		log.Printf("[profile] update: %v", err)
	}
	c.Redirect(http.StatusSeeOther, "/profile")
}

func (h *Handler) uploadAvatar(c *gin.Context) {
	defer c.Redirect(http.StatusSeeOther, "/profile")

	fh, err := c.FormFile("avatar")
	if err != nil {
		h.Sink.Notify(notify.Failure("Upload failed", "Choose an image to upload"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.Sink.Notify(notify.Failure("Upload failed", err.Error()))
		return
	}
	defer f.Close()
	if _, err := h.Profiles.UploadAvatar(c.Request.Context(), auth.Current(c).UserID, f); err != nil {
		log.Printf("[profile] avatar: %v", err)
	}
}

type settingsPage struct {
	Page
	User *models.User
}

func (h *Handler) settingsPage(c *gin.Context) {
	u, err := h.Profiles.Account(c.Request.Context(), auth.Current(c).UserID)
	if err != nil {
		log.Printf("[settings] load account: %v", err)
		h.RenderError(c, http.StatusInternalServerError, "Error", "Failed to load account")
		return
	}
	c.HTML(http.StatusOK, "settings.html", settingsPage{Page: h.Page(c, "Settings"), User: u})
}

func (h *Handler) savePreferences(c *gin.Context) {
	var prefs models.Preferences
	if err := c.ShouldBind(&prefs); err != nil {
		h.Sink.Notify(notify.Failure("Error", "Invalid preferences"))
		c.Redirect(http.StatusSeeOther, "/settings")
		return
	}
	if err := h.Profiles.SavePreferences(c.Request.Context(), auth.Current(c).UserID, prefs); err != nil {
		log.Printf("[settings] save preferences: %v", err)
	}
	c.Redirect(http.StatusSeeOther, "/settings")
}

// changePassword updates the password and revokes every other session.
func (h *Handler) changePassword(c *gin.Context) {
	sess := auth.Current(c)
	svc := h.Auth.Service()
	err := svc.UpdatePassword(c.Request.Context(), sess.UserID, c.PostForm("new_password"), c.PostForm("confirm_password"))
	switch {
	case errors.Is(err, auth.ErrPasswordMismatch):
		h.Sink.Notify(notify.Failure("Passwords don't match", "New password and confirm password must match"))
	case errors.Is(err, auth.ErrPasswordTooShort):
		h.Sink.Notify(notify.Failure("Password too short", "Password must be at least 6 characters long"))
	case err != nil:
		log.Printf("[settings] update password: %v", err)
		h.Sink.Notify(notify.Failure("Error", "Failed to update password"))
	default:
		if n, err := svc.SignOutOthers(c.Request.Context(), sess); err != nil {
			log.Printf("[settings] revoke other sessions: %v", err)
		} else if n > 0 {
			log.Printf("[settings] revoked %d other sessions for %s", n, sess.Email)
		}
		h.Sink.Notify(notify.Info("Password updated", "Your password has been changed successfully"))
	}
	c.Redirect(http.StatusSeeOther, "/settings")
}

func (h *Handler) deleteAccount(c *gin.Context) {
	_ = h.Profiles.DeleteAccount(c.Request.Context(), auth.Current(c).UserID)
	c.Redirect(http.StatusSeeOther, "/settings")
}
