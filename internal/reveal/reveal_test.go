package reveal

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met within 1s")
}

func hit(target string) Entry {
	return Entry{Target: target, Ratio: 0.5, Intersecting: true}
}

func TestAnimatorBecomesVisibleOnce(t *testing.T) {
	d := NewDispatcher()
	var calls atomic.Int32
	a := New("about", d, OnVisible(func(string) { calls.Add(1) }))
	a.Mount()

	if a.Visible() {
		t.Fatal("animator must start hidden")
	}
	d.Dispatch(hit("about"))
	if !a.Visible() {
		t.Fatal("expected visible after intersection")
	}

	d.Dispatch(Entry{Target: "about", Ratio: 0, Intersecting: false})
	d.Dispatch(hit("about"))

	if !a.Visible() {
		t.Fatal("visibility must never revert")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one transition, got %d", calls.Load())
	}
}

func TestAnimatorIgnoresEntriesBelowThreshold(t *testing.T) {
	d := NewDispatcher()
	a := New("skills", d)
	a.Mount()

	d.Dispatch(Entry{Target: "skills", Ratio: 0.05, Intersecting: true})
	if a.Visible() {
		t.Fatal("5% in view must not count")
	}
	d.Dispatch(Entry{Target: "skills", Ratio: Threshold, Intersecting: true})
	if !a.Visible() {
		t.Fatal("exactly the threshold should count")
	}
}

func TestAnimatorHonoursDelay(t *testing.T) {
	mock := clock.NewMock()
	d := NewDispatcher()
	a := New("blog", d, WithDelay(200*time.Millisecond), WithClock(mock))
	a.Mount()

	d.Dispatch(hit("blog"))
	mock.Add(199 * time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	if a.Visible() {
		t.Fatal("became visible before the delay elapsed")
	}

	mock.Add(time.Millisecond)
	eventually(t, a.Visible)
}

func TestUnmountCancelsPendingTransition(t *testing.T) {
	mock := clock.NewMock()
	d := NewDispatcher()
	var calls atomic.Int32
	a := New("contact", d,
		WithDelay(100*time.Millisecond),
		WithClock(mock),
		OnVisible(func(string) { calls.Add(1) }),
	)
	a.Mount()
	d.Dispatch(hit("contact"))

	a.Unmount()
	mock.Add(time.Second)
	time.Sleep(10 * time.Millisecond)

	if a.Visible() || calls.Load() != 0 {
		t.Fatal("nothing may fire after Unmount")
	}
	if d.Dispatch(hit("contact")) {
		t.Fatal("Unmount must detach from the observer")
	}

	a.Unmount()
	a.Mount()
	if d.Dispatch(hit("contact")) {
		t.Fatal("Mount after Unmount must not re-attach")
	}
}

func TestNilObserverIsInert(t *testing.T) {
	a := New("about", nil)
	a.Mount()
	a.Unmount()
	if a.Visible() {
		t.Fatal("inert animator must stay hidden")
	}
}

func TestClassAndStyle(t *testing.T) {
	d := NewDispatcher()
	a := New("portfolio", d, WithDelay(300*time.Millisecond))
	a.Mount()
	defer a.Unmount()

	if a.Class() != "scroll-effect" || a.Style() != "transition-delay: 300ms" {
		t.Fatalf("unexpected presentation %q %q", a.Class(), a.Style())
	}
	d.Dispatch(hit("portfolio"))
	if a.Class() != "scroll-effect" {
		t.Fatal("class must not change before the delay")
	}
}

func TestAttrs(t *testing.T) {
	got := string(Attrs("about", 100, "role=region", "aria-label=About me", "class=container", "onclick=alert(1)"))

	for _, want := range []string{
		`data-reveal="about"`,
		`class="scroll-effect container"`,
		`style="transition-delay: 100ms"`,
		`role="region"`,
		`aria-label="About me"`,
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %s in %s", want, got)
		}
	}
	if strings.Contains(got, "onclick") {
		t.Fatalf("unexpected attribute passed through: %s", got)
	}
	if got := string(Attrs("x", -5)); !strings.Contains(got, "transition-delay: 0ms") {
		t.Fatalf("negative delay must clamp to zero: %s", got)
	}
}

type memRecorder struct {
	mu   sync.Mutex
	imps []Impression
	err  error
}

func (m *memRecorder) RecordImpression(ctx context.Context, imp Impression) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.imps = append(m.imps, imp)
	return m.err
}

func (m *memRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.imps)
}

func TestTrackerRecordsEachSectionOnce(t *testing.T) {
	mock := clock.NewMock()
	rec := &memRecorder{}
	tr := NewTracker(rec, time.Hour, mock)
	defer tr.Shutdown()

	v := tr.Open("/", []Section{{ID: "about"}, {ID: "blog", Delay: 100 * time.Millisecond}})

	n, err := tr.Dispatch(v.ID, []Entry{hit("about"), hit("about"), hit("unknown")})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected 2 routed entries, got %d", n)
	}
	if rec.count() != 1 {
		t.Fatalf("expected one impression, got %d", rec.count())
	}
	if !v.Visible("about") || v.Visible("blog") {
		t.Fatal("unexpected section visibility")
	}
	if rec.imps[0].Path != "/" || rec.imps[0].Section != "about" || rec.imps[0].ViewID != v.ID {
		t.Fatalf("unexpected impression %+v", rec.imps[0])
	}
}

func TestTrackerCloseStopsRecording(t *testing.T) {
	mock := clock.NewMock()
	rec := &memRecorder{}
	tr := NewTracker(rec, time.Hour, mock)
	defer tr.Shutdown()

	v := tr.Open("/", []Section{{ID: "blog", Delay: 100 * time.Millisecond}})
	if _, err := tr.Dispatch(v.ID, []Entry{hit("blog")}); err != nil {
		t.Fatal(err)
	}

	if !tr.Close(v.ID) {
		t.Fatal("expected view to be open")
	}
	mock.Add(time.Second)
	time.Sleep(10 * time.Millisecond)

	if rec.count() != 0 {
		t.Fatalf("closed view recorded %d impressions", rec.count())
	}
	if _, err := tr.Dispatch(v.ID, []Entry{hit("blog")}); !errors.Is(err, ErrUnknownView) {
		t.Fatalf("expected ErrUnknownView, got %v", err)
	}
}
