package reveal

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/Zachkp/folio/internal/cache"
)

// ErrUnknownView is returned for beacons about a view that was never opened,
// was closed, or expired.
var ErrUnknownView = errors.New("unknown view")

// Section is one animated block on a page.
type Section struct {
	ID    string
	Delay time.Duration
}

// Impression records that a section became visible during a page view.
type Impression struct {
	ViewID  string
	Path    string
	Section string
	At      time.Time
}

// Recorder persists impressions.
type Recorder interface {
	RecordImpression(ctx context.Context, imp Impression) error
}

// View is one rendered page: a dispatcher plus one animator per section.
type View struct {
	ID         string
	Path       string
	dispatcher *Dispatcher
	animators  map[string]*Animator
}

// Visible reports whether section has become visible in this view.
func (v *View) Visible(section string) bool {
	a, ok := v.animators[section]
	return ok && a.Visible()
}

func (v *View) unmount() {
	for _, a := range v.animators {
		a.Unmount()
	}
}

// Tracker owns the views of rendered pages until they are closed or expire.
type Tracker struct {
	views *cache.TTLCache[string, *View]
	rec   Recorder
	clock clock.Clock
}

// NewTracker returns a tracker whose views expire ttl after their last beacon.
// A nil clk means the wall clock.
func NewTracker(rec Recorder, ttl time.Duration, clk clock.Clock) *Tracker {
	if clk == nil {
		clk = clock.New()
	}
	t := &Tracker{
		views: cache.NewWithClock[string, *View](clk, ttl, ttl),
		rec:   rec,
		clock: clk,
	}
	t.views.OnEvict(func(_ string, v *View) { v.unmount() })
	return t
}

// Open mounts animators for the sections of a freshly rendered page.
func (t *Tracker) Open(path string, sections []Section) *View {
	v := &View{
		ID:         uuid.NewString(),
		Path:       path,
		dispatcher: NewDispatcher(),
		animators:  make(map[string]*Animator, len(sections)),
	}
	for _, s := range sections {
		a := New(s.ID, v.dispatcher,
			WithDelay(s.Delay),
			WithClock(t.clock),
			OnVisible(func(target string) { t.record(v, target) }),
		)
		a.Mount()
		v.animators[s.ID] = a
	}
	t.views.Set(v.ID, v)
	return v
}

// Dispatch feeds intersection entries into a view and returns how many reached
// an observed section.
func (t *Tracker) Dispatch(viewID string, entries []Entry) (int, error) {
	v, ok := t.views.Get(viewID)
	if !ok {
		return 0, ErrUnknownView
	}
	t.views.Set(viewID, v)

	n := 0
	for _, e := range entries {
		if v.dispatcher.Dispatch(e) {
			n++
		}
	}
	return n, nil
}

// Close unmounts a view; nothing is recorded for it afterwards.
func (t *Tracker) Close(viewID string) bool {
	v, ok := t.views.Delete(viewID)
	if ok {
		v.unmount()
	}
	return ok
}

// Shutdown stops the expiry sweeper.
func (t *Tracker) Shutdown() {
	t.views.Close()
}

func (t *Tracker) record(v *View, section string) {
	if t.rec == nil {
		return
	}
	imp := Impression{ViewID: v.ID, Path: v.Path, Section: section, At: t.clock.Now()}
	if err := t.rec.RecordImpression(context.Background(), imp); err != nil {
		log.Printf("[reveal] record impression %s#%s: %v", v.Path, section, err)
	}
}
