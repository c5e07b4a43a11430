// Package collection holds a client-side list of items mirrored from a remote
// repository. Mutations are applied to the local list first and confirmed
// against the repository in the background, so callers see the change at once.
package collection

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Zachkp/folio/internal/notify"
)

// All is the synthetic category that matches every item.
const All = "all"

// ErrNotFound is returned by repositories when the row does not exist.
// A remove that fails with ErrNotFound counts as a successful remove.
var ErrNotFound = errors.New("not found")

// Item is an element of a collection. Items are never edited in place;
// WithKey returns a copy carrying a different id.
type Item[T any] interface {
	Key() string
	Group() string
	WithKey(id string) T
}

// Repository is the remote side of a collection.
type Repository[T any] interface {
	List(ctx context.Context) ([]T, error)
	Create(ctx context.Context, item T) (T, error)
	Remove(ctx context.Context, id string) error
}

// Phase is the lifecycle state of a store.
type Phase int

const (
	Loading Phase = iota
	Ready
	Adding
	Removing
)

func (p Phase) String() string {
	switch p {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Adding:
		return "adding"
	case Removing:
		return "removing"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Labels name the collection in notifications, e.g. "project", "projects", "portfolio".
type Labels struct {
	Singular string
	Plural   string
	Place    string
}

// Option configures a Store.
type Option func(*options)

type options struct {
	labels   Labels
	prepend  bool
	rollback bool
	newKey   func() string
}

// WithLabels sets the nouns used in notifications.
func WithLabels(l Labels) Option {
	return func(o *options) { o.labels = l }
}

// Prepend inserts new items at the front of the list (newest first).
func Prepend() Option {
	return func(o *options) { o.prepend = true }
}

// WithoutRollback keeps optimistic changes in the local list even when the
// repository rejects them. Failures are still reported.
func WithoutRollback() Option {
	return func(o *options) { o.rollback = false }
}

// WithKeyFunc replaces the generator for client-side ids.
func WithKeyFunc(fn func() string) Option {
	return func(o *options) { o.newKey = fn }
}

// Store is a local, optimistically updated view of a Repository.
// It is safe for concurrent use.
type Store[T Item[T]] struct {
	repo     Repository[T]
	sink     notify.Sink
	fallback []T
	opts     options

	loadOnce sync.Once
	loadErr  error

	mu      sync.Mutex
	items   []T
	loaded  bool
	adds    int
	removes int
	closed  bool

	// inflight holds the keys of adds awaiting the repository; ghosts the
	// ones among them that were removed before the create came back.
	inflight map[string]bool
	ghosts   map[string]bool

	wg sync.WaitGroup
}

// New returns a store in the Loading phase. fallback is shown when the
// repository is empty or unreachable.
func New[T Item[T]](repo Repository[T], sink notify.Sink, fallback []T, opts ...Option) *Store[T] {
	o := options{
		labels:   Labels{Singular: "item", Plural: "items", Place: "collection"},
		rollback: true,
		newKey:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if sink == nil {
		sink = notify.LogSink{}
	}
	return &Store[T]{
		repo:     repo,
		sink:     sink,
		fallback: slices.Clone(fallback),
		opts:     o,
		inflight: make(map[string]bool),
		ghosts:   make(map[string]bool),
	}
}

// Load fetches the remote list. Only the first call does any work; later
// calls return its result. On error the fallback list is installed and a
// failure notification is emitted; the error is also returned.
func (s *Store[T]) Load(ctx context.Context) error {
	s.loadOnce.Do(func() { s.loadErr = s.load(ctx) })
	return s.loadErr
}

func (s *Store[T]) load(ctx context.Context) error {
	rows, err := s.repo.List(ctx)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return err
	}
	base := rows
	if err != nil || len(rows) == 0 {
		base = slices.Clone(s.fallback)
	}
	// Items added while loading survive on top of the loaded list.
	for _, it := range s.items {
		if indexOf(base, it.Key()) < 0 {
			base = append(base, it)
		}
	}
	s.items = base
	s.loaded = true
	s.mu.Unlock()

	if err != nil {
		s.sink.Notify(notify.Failure("Failed to load "+s.opts.labels.Plural, err.Error()))
		return fmt.Errorf("load %s: %w", s.opts.labels.Plural, err)
	}
	return nil
}

// Add inserts item into the local list immediately and creates it remotely in
// the background. An item without a key gets a client-generated one. The
// returned value is the item as inserted locally.
func (s *Store[T]) Add(ctx context.Context, item T) T {
	if item.Key() == "" {
		item = item.WithKey(s.opts.newKey())
	}
	key := item.Key()

	s.mu.Lock()
	if s.opts.prepend {
		s.items = append([]T{item}, s.items...)
	} else {
		s.items = append(slices.Clone(s.items), item)
	}
	s.adds++
	s.inflight[key] = true
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		rctx := context.WithoutCancel(ctx)
		created, err := s.repo.Create(rctx, item)

		s.mu.Lock()
		s.adds--
		delete(s.inflight, key)
		ghost := s.ghosts[key]
		delete(s.ghosts, key)
		closed := s.closed
		i := indexOf(s.items, key)
		ghost = ghost && i < 0
		switch {
		case closed:
		case err != nil:
			if s.opts.rollback && i >= 0 {
				s.items = slices.Delete(slices.Clone(s.items), i, i+1)
			}
		case i >= 0:
			s.items = slices.Clone(s.items)
			s.items[i] = created
		}
		s.mu.Unlock()

		l := s.opts.labels
		if err == nil && ghost {
			// The remote delete ran before the row existed.
			rerr := s.repo.Remove(rctx, created.Key())
			if rerr != nil && !errors.Is(rerr, ErrNotFound) && !closed {
				s.sink.Notify(notify.Failure("Failed to remove "+l.Singular, rerr.Error()))
			}
			return
		}
		if closed {
			return
		}
		if err != nil {
			s.sink.Notify(notify.Failure("Failed to add "+l.Singular, err.Error()))
			return
		}
		s.sink.Notify(notify.Info(capitalize(l.Singular)+" added",
			fmt.Sprintf("Your %s has been added to the %s", l.Singular, l.Place)))
	}()

	return item
}

// Remove deletes the item with the given id from the local list immediately and
// from the repository in the background. It reports whether the item was
// present locally; absent items are still deleted remotely.
func (s *Store[T]) Remove(ctx context.Context, id string) bool {
	s.mu.Lock()
	idx := indexOf(s.items, id)
	var removed T
	if idx >= 0 {
		removed = s.items[idx]
		s.items = slices.Delete(slices.Clone(s.items), idx, idx+1)
	}
	if s.inflight[id] {
		s.ghosts[id] = true
	}
	s.removes++
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		err := s.repo.Remove(context.WithoutCancel(ctx), id)
		if errors.Is(err, ErrNotFound) {
			err = nil
		}

		s.mu.Lock()
		s.removes--
		if s.closed {
			s.mu.Unlock()
			return
		}
		if err != nil && s.opts.rollback && idx >= 0 && indexOf(s.items, id) < 0 {
			at := min(idx, len(s.items))
			s.items = slices.Insert(slices.Clone(s.items), at, removed)
		}
		s.mu.Unlock()

		l := s.opts.labels
		if err != nil {
			s.sink.Notify(notify.Failure("Failed to remove "+l.Singular, err.Error()))
			return
		}
		s.sink.Notify(notify.Info(capitalize(l.Singular)+" removed",
			fmt.Sprintf("The %s has been removed from your %s", l.Singular, l.Place)))
	}()

	return idx >= 0
}

// Phase reports the current lifecycle phase.
func (s *Store[T]) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case !s.loaded:
		return Loading
	case s.adds > 0:
		return Adding
	case s.removes > 0:
		return Removing
	default:
		return Ready
	}
}

// Snapshot returns a copy of the current list.
func (s *Store[T]) Snapshot() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

// Get returns the item with the given id.
func (s *Store[T]) Get(id string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := indexOf(s.items, id); i >= 0 {
		return s.items[i], true
	}
	var zero T
	return zero, false
}

// Categories is the category set of the current list.
func (s *Store[T]) Categories() []string {
	return Categories(s.Snapshot())
}

// Visible is the current list filtered by category.
func (s *Store[T]) Visible(filter string) []T {
	return Filter(s.Snapshot(), filter)
}

// Wait blocks until all in-flight remote calls have completed.
func (s *Store[T]) Wait() {
	s.wg.Wait()
}

// Close detaches the store. Remote calls still in flight complete, but their
// results are discarded.
func (s *Store[T]) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Categories returns All followed by the distinct groups of items in order of
// first appearance.
func Categories[T Item[T]](items []T) []string {
	out := []string{All}
	seen := map[string]bool{All: true}
	for _, it := range items {
		g := it.Group()
		if g == "" || seen[g] {
			continue
		}
		seen[g] = true
		out = append(out, g)
	}
	return out
}

// Filter returns the items whose group equals filter, preserving order.
// All (or an empty filter) returns every item.
func Filter[T Item[T]](items []T, filter string) []T {
	if filter == "" || filter == All {
		return slices.Clone(items)
	}
	out := make([]T, 0, len(items))
	for _, it := range items {
		if it.Group() == filter {
			out = append(out, it)
		}
	}
	return out
}

func indexOf[T Item[T]](items []T, id string) int {
	return slices.IndexFunc(items, func(it T) bool { return it.Key() == id })
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
