// Package reveal turns "this element scrolled into view" into a one-way
// visibility flag. The site uses it for two things: the scroll-effect CSS
// attributes rendered into templates, and counting section impressions when
// the browser reports intersections back.
package reveal

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Threshold is the visible fraction of an element that counts as "in view".
const Threshold = 0.1

const (
	baseClass    = "scroll-effect"
	visibleClass = "visible"
)

// Entry is one intersection report for a target.
type Entry struct {
	Target       string  `json:"target"`
	Ratio        float64 `json:"ratio"`
	Intersecting bool    `json:"intersecting"`
}

// Observer is the intersection primitive: it calls fn with entries for target
// until Unobserve is called.
type Observer interface {
	Observe(target string, threshold float64, fn func(Entry))
	Unobserve(target string)
}

// Option configures an Animator.
type Option func(*Animator)

// WithDelay postpones the visible transition by d after the first qualifying
// intersection.
func WithDelay(d time.Duration) Option {
	return func(a *Animator) {
		if d > 0 {
			a.delay = d
		}
	}
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c clock.Clock) Option {
	return func(a *Animator) { a.clock = c }
}

// OnVisible registers fn to run once, when the animator becomes visible.
// fn must not call Unmount.
func OnVisible(fn func(target string)) Option {
	return func(a *Animator) { a.onVisible = fn }
}

// Animator tracks the visibility of a single target. It starts hidden, becomes
// visible at most once per mount and never goes back.
type Animator struct {
	target    string
	delay     time.Duration
	observer  Observer
	clock     clock.Clock
	onVisible func(string)

	// cb is held while onVisible runs so Unmount can wait for it.
	cb sync.Mutex

	mu        sync.Mutex
	mounted   bool
	unmounted bool
	armed     bool
	visible   bool
	timer     *clock.Timer
}

// New returns an unmounted animator for target. A nil observer leaves the
// animator inert: it simply never becomes visible.
func New(target string, observer Observer, opts ...Option) *Animator {
	a := &Animator{target: target, observer: observer, clock: clock.New()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Mount starts observing the target. Calling Mount twice, or after Unmount,
// does nothing.
func (a *Animator) Mount() {
	a.mu.Lock()
	if a.mounted || a.unmounted || a.observer == nil {
		a.mu.Unlock()
		return
	}
	a.mounted = true
	a.mu.Unlock()

	a.observer.Observe(a.target, Threshold, a.handle)
}

func (a *Animator) handle(e Entry) {
	if !e.Intersecting || e.Ratio < Threshold {
		return
	}

	a.mu.Lock()
	if a.unmounted || a.visible || a.armed {
		a.mu.Unlock()
		return
	}
	a.armed = true
	if a.delay > 0 {
		a.timer = a.clock.AfterFunc(a.delay, a.fire)
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()

	a.fire()
}

func (a *Animator) fire() {
	a.cb.Lock()
	defer a.cb.Unlock()

	a.mu.Lock()
	if a.unmounted || a.visible {
		a.mu.Unlock()
		return
	}
	a.visible = true
	fn := a.onVisible
	a.mu.Unlock()

	if fn != nil {
		fn(a.target)
	}
}

// Unmount stops observing and cancels a pending transition. Once it returns no
// OnVisible callback runs for this animator. It is safe to call repeatedly.
func (a *Animator) Unmount() {
	a.mu.Lock()
	if a.unmounted {
		a.mu.Unlock()
		return
	}
	a.unmounted = true
	mounted := a.mounted
	if a.timer != nil {
		a.timer.Stop()
	}
	a.mu.Unlock()

	// Wait out a callback that was already running.
	a.cb.Lock()
	a.cb.Unlock()

	if mounted {
		a.observer.Unobserve(a.target)
	}
}

// Target returns the observed target id.
func (a *Animator) Target() string { return a.target }

// Delay returns the configured transition delay.
func (a *Animator) Delay() time.Duration { return a.delay }

// Visible reports whether the transition has happened.
func (a *Animator) Visible() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.visible
}

// Class returns the CSS classes for the current state.
func (a *Animator) Class() string {
	if a.Visible() {
		return baseClass + " " + visibleClass
	}
	return baseClass
}

// Style returns the inline transition delay so siblings stagger.
func (a *Animator) Style() string {
	return fmt.Sprintf("transition-delay: %dms", a.delay.Milliseconds())
}
