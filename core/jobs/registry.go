package jobs

import "sync"

// Registry is the launch-ordered list of every process started in a session.
// Records are never removed.
type Registry struct {
	mu   sync.RWMutex
	head Process // sentinel, has no OS process
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Append links p at the tail of the registry.
func (r *Registry) Append(p *Process) {
	r.mu.Lock()
	defer r.mu.Unlock()

	curr := &r.head
	for curr.next != nil {
		curr = curr.next
	}
	curr.next = p
	p.prev = curr
	p.next = nil
}

// Processes returns a snapshot of every record in launch order.
func (r *Registry) Processes() []*Process {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Process
	for curr := r.head.next; curr != nil; curr = curr.next {
		out = append(out, curr)
	}
	return out
}

// Len returns the number of records ever appended.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for curr := r.head.next; curr != nil; curr = curr.next {
		n++
	}
	return n
}

// Each calls fn for every record in launch order with its index.
func (r *Registry) Each(fn func(i int, p *Process)) {
	for i, p := range r.Processes() {
		fn(i, p)
	}
}

// ForEachRunningForeground calls fn for every Running foreground record and
// returns how many were visited.
func (r *Registry) ForEachRunningForeground(fn func(p *Process)) int {
	return r.forEachRunning(false, fn)
}

// ForEachRunningBackground calls fn for every Running background record and
// returns how many were visited.
func (r *Registry) ForEachRunningBackground(fn func(p *Process)) int {
	return r.forEachRunning(true, fn)
}

// forEachRunning snapshots the matching records under the lock and runs the
// callbacks outside of it so fn may block.
func (r *Registry) forEachRunning(background bool, fn func(p *Process)) int {
	var matched []*Process
	for _, p := range r.Processes() {
		if p.Background == background && p.State() == Running {
			matched = append(matched, p)
		}
	}

	for _, p := range matched {
		fn(p)
	}
	return len(matched)
}
