package session

import "sync"

// opQueue serializes multi-step workflows per resource key. Each run chains
// on the previous operation for the same key, so e.g. two tag edits for one
// document execute in submission order while operations on different
// resources proceed concurrently.
type opQueue struct {
	mu    sync.Mutex
	tails map[string]chan struct{}
}

func newOpQueue() *opQueue {
	return &opQueue{tails: make(map[string]chan struct{})}
}

// run executes op after every previously submitted operation for key has
// finished, and returns op's error.
func (q *opQueue) run(key string, op func() error) error {
	done := make(chan struct{})

	q.mu.Lock()
	prev := q.tails[key]
	q.tails[key] = done
	q.mu.Unlock()

	if prev != nil {
		<-prev
	}
	err := op()
	close(done)

	q.mu.Lock()
	if q.tails[key] == done {
		delete(q.tails, key)
	}
	q.mu.Unlock()
	return err
}
