package ws

import (
	"log"
	"net/http"
	"net/url"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Zachkp/folio/internal/auth"
)

// Handler upgrades signed-in requests to websocket connections. Cross-origin
// upgrades are accepted only from the given origins.
func Handler(hub *Hub, origins []string) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			return u.Host == r.Host || slices.Contains(origins, origin)
		},
	}

	return func(c *gin.Context) {
		sess := auth.Current(c)
		if sess == nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[ws] upgrade failed for user %s: %v", sess.UserID, err)
			return
		}

		client := &Client{
			hub:    hub,
			conn:   conn,
			userID: sess.UserID,
			send:   make(chan []byte, sendBufferSize),
		}
		select {
		case hub.register <- client:
		case <-hub.done:
			conn.Close()
			return
		}
		go client.writePump()
		client.readPump()
	}
}
