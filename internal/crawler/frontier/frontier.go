// Package frontier implements the breadth-first crawl frontier: a FIFO of
// pending URLs plus the set of URLs already visited.
package frontier

// Frontier is not safe for concurrent use; the crawl controller drives it
// from a single goroutine.
type Frontier struct {
	queue   []string
	queued  map[string]struct{}
	visited map[string]struct{}
}

// New returns a frontier seeded with the given URLs.
func New(seeds ...string) *Frontier {
	f := &Frontier{
		queued:  make(map[string]struct{}),
		visited: make(map[string]struct{}),
	}
	for _, s := range seeds {
		f.Push(s)
	}
	return f
}

// Push enqueues u unless it is empty, already visited, or already queued.
// It reports whether u was added.
func (f *Frontier) Push(u string) bool {
	if u == "" {
		return false
	}
	if _, ok := f.visited[u]; ok {
		return false
	}
	if _, ok := f.queued[u]; ok {
		return false
	}
	f.queue = append(f.queue, u)
	f.queued[u] = struct{}{}
	return true
}

// Next dequeues the oldest pending URL that has not been visited and marks
// it visited. ok is false when the queue is exhausted.
func (f *Frontier) Next() (u string, ok bool) {
	for len(f.queue) > 0 {
		u = f.queue[0]
		f.queue[0] = ""
		f.queue = f.queue[1:]
		delete(f.queued, u)
		if _, seen := f.visited[u]; seen {
			continue
		}
		f.visited[u] = struct{}{}
		return u, true
	}
	return "", false
}

// Visited reports whether u has been dequeued already.
func (f *Frontier) Visited(u string) bool {
	_, ok := f.visited[u]
	return ok
}

// Len is the number of URLs still queued.
func (f *Frontier) Len() int { return len(f.queue) }

// VisitedCount is the number of URLs dequeued so far.
func (f *Frontier) VisitedCount() int { return len(f.visited) }
