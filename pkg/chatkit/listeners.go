package chatkit

import "sync"

// Listeners tracks the queues subscribed to each thread
type Listeners struct {
	mu     sync.RWMutex
	queues map[string]map[*Queue]struct{}
}

// NewListeners creates an empty registry
func NewListeners() *Listeners {
	return &Listeners{
		queues: make(map[string]map[*Queue]struct{}),
	}
}

// Register creates and subscribes a queue for threadID
func (l *Listeners) Register(threadID string) *Queue {
	q := NewQueue()

	l.mu.Lock()
	defer l.mu.Unlock()

	set, ok := l.queues[threadID]
	if !ok {
		set = make(map[*Queue]struct{})
		l.queues[threadID] = set
	}
	set[q] = struct{}{}

	return q
}

// Unregister removes q from threadID. It reports whether q was registered,
// so a second call for the same queue is a no-op returning false.
func (l *Listeners) Unregister(threadID string, q *Queue) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	set, ok := l.queues[threadID]
	if !ok {
		return false
	}
	if _, ok := set[q]; !ok {
		return false
	}

	delete(set, q)
	if len(set) == 0 {
		delete(l.queues, threadID)
	}
	return true
}

// Broadcast puts msg on every queue subscribed to threadID and returns
// the number of queues reached
func (l *Listeners) Broadcast(threadID, msg string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for q := range l.queues[threadID] {
		q.Put(msg)
	}
	return len(l.queues[threadID])
}

// Count returns the number of registered queues across all threads
func (l *Listeners) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := 0
	for _, set := range l.queues {
		n += len(set)
	}
	return n
}
