package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Zachkp/folio/internal/contact"
	"github.com/Zachkp/folio/internal/notify"
)

func (h *Handler) contactForm(c *gin.Context) {
	c.HTML(http.StatusOK, "contact.html", gin.H{"title": "Contact Me"})
}

func (h *Handler) contactSubmit(c *gin.Context) {
	var m contact.Message
	if err := c.ShouldBind(&m); err != nil {
		c.HTML(http.StatusOK, "contact-error.html", gin.H{
			"error": "Please fill in your name, a valid email address and a message.",
		})
		return
	}
	m.Name = h.clean(m.Name)
	m.Message = h.clean(m.Message)

	if err := h.Mail.Send(c.Request.Context(), m); err != nil {
		log.Printf("[contact] failed to send message from %s: %v", m.Email, err)
		c.HTML(http.StatusOK, "contact-error.html", gin.H{
			"error": "Sorry, there was an error sending your message. Please try again later.",
		})
		return
	}
	log.Printf("[contact] message sent from %s", m.Email)
	c.HTML(http.StatusOK, "contact-success.html", gin.H{
		"success": "Thank you for your message! I'll get back to you soon.",
	})
}

// notifications serves the inbox to clients without a websocket. since is an
// RFC 3339 timestamp; only newer notifications are returned.
func (h *Handler) notifications(c *gin.Context) {
	list := h.Inbox.Recent()
	if s := c.Query("since"); s != "" {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be an RFC 3339 timestamp"})
			return
		}
		list = h.Inbox.Since(t)
	}
	if list == nil {
		list = []notify.Notification{}
	}
	if isHTMX(c) {
		c.HTML(http.StatusOK, "notifications.html", list)
		return
	}
	c.JSON(http.StatusOK, list)
}
