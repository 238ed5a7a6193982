package crawl

import "sync"

// Frontier is a per-domain FIFO of URLs to visit. A URL is accepted at
// most once for the lifetime of the frontier, no matter how many pages
// link to it.
type Frontier struct {
	mu    sync.Mutex
	queue []string
	seen  map[string]struct{}
}

// NewFrontier builds an empty Frontier.
func NewFrontier() *Frontier {
	return &Frontier{seen: make(map[string]struct{})}
}

// Push enqueues the URL unless it was ever pushed before. It reports
// whether the URL was accepted.
func (f *Frontier) Push(rawURL string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, dup := f.seen[rawURL]; dup {
		return false
	}
	f.seen[rawURL] = struct{}{}
	f.queue = append(f.queue, rawURL)
	return true
}

// Pop dequeues the oldest URL. It reports false when the frontier is
// empty.
func (f *Frontier) Pop() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return "", false
	}
	u := f.queue[0]
	f.queue = f.queue[1:]
	return u, true
}

// Len returns the number of queued URLs.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// Seen reports whether the URL was ever pushed.
func (f *Frontier) Seen(rawURL string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.seen[rawURL]
	return ok
}
