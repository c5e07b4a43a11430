package reveal

import "sync"

type watch struct {
	threshold float64
	fn        func(Entry)
}

// Dispatcher is an in-process Observer. Intersection reports arrive through
// Dispatch (from the browser beacon) and are routed to the registered target.
type Dispatcher struct {
	mu      sync.RWMutex
	targets map[string]watch
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{targets: make(map[string]watch)}
}

func (d *Dispatcher) Observe(target string, threshold float64, fn func(Entry)) {
	d.mu.Lock()
	d.targets[target] = watch{threshold: threshold, fn: fn}
	d.mu.Unlock()
}

func (d *Dispatcher) Unobserve(target string) {
	d.mu.Lock()
	delete(d.targets, target)
	d.mu.Unlock()
}

// Dispatch delivers e to its target's callback. It reports false when nothing
// observes the target.
func (d *Dispatcher) Dispatch(e Entry) bool {
	d.mu.RLock()
	w, ok := d.targets[e.Target]
	d.mu.RUnlock()
	if !ok {
		return false
	}
	w.fn(e)
	return true
}
