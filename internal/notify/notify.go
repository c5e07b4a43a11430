// Package notify carries short user-facing messages (toasts) from the code that
// produced them to whoever is showing them: the websocket hub, the in-memory
// inbox polled by the page, the log.
package notify

import (
	"log"
	"sync"
	"time"
)

// Variant selects how a notification is presented.
type Variant string

const (
	Default     Variant = "default"
	Destructive Variant = "destructive"
)

// Notification is a fire-and-forget message for the site owner.
type Notification struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Variant     Variant   `json:"variant"`
	At          time.Time `json:"at"`
}

// Sink receives notifications. Implementations must not block for long.
type Sink interface {
	Notify(n Notification)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Notification)

func (f SinkFunc) Notify(n Notification) { f(n) }

// Info builds a default notification.
func Info(title, description string) Notification {
	return Notification{Title: title, Description: description, Variant: Default, At: time.Now()}
}

// Failure builds a destructive notification.
func Failure(title, description string) Notification {
	return Notification{Title: title, Description: description, Variant: Destructive, At: time.Now()}
}

// Fanout delivers every notification to each of its sinks in order.
type Fanout []Sink

func (f Fanout) Notify(n Notification) {
	for _, s := range f {
		if s != nil {
			s.Notify(n)
		}
	}
}

// LogSink writes notifications to the standard logger.
type LogSink struct{}

func (LogSink) Notify(n Notification) {
	log.Printf("[notify] %s: %s: %s", n.Variant, n.Title, n.Description)
}

// Inbox keeps the most recent notifications, oldest first.
type Inbox struct {
	mu    sync.Mutex
	items []Notification
	limit int
}

// NewInbox returns an inbox holding at most limit notifications.
func NewInbox(limit int) *Inbox {
	if limit <= 0 {
		limit = 50
	}
	return &Inbox{limit: limit}
}

func (in *Inbox) Notify(n Notification) {
	if n.At.IsZero() {
		n.At = time.Now()
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	in.items = append(in.items, n)
	if over := len(in.items) - in.limit; over > 0 {
		in.items = append([]Notification(nil), in.items[over:]...)
	}
}

// Recent returns a copy of the retained notifications.
func (in *Inbox) Recent() []Notification {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]Notification(nil), in.items...)
}

// Since returns notifications newer than t.
func (in *Inbox) Since(t time.Time) []Notification {
	in.mu.Lock()
	defer in.mu.Unlock()
	var out []Notification
	for _, n := range in.items {
		if n.At.After(t) {
			out = append(out, n)
		}
	}
	return out
}
