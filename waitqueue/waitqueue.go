package waitqueue

import (
	"sync"
)

// Queue hands out items to workers and reports when every item has been
// taken and finished. Drained is closed once, after the Done call that
// leaves no pending and no in-flight items.
type Queue[T any] struct {
	mu       sync.Mutex
	pending  []T
	next     int
	inflight int
	drained  chan struct{}
	closed   bool
}

func New[T any](items []T) *Queue[T] {
	q := &Queue[T]{
		mu:       sync.Mutex{},
		pending:  items,
		next:     0,
		inflight: 0,
		drained:  make(chan struct{}),
		closed:   false,
	}
	if len(items) == 0 {
		q.close()
	}
	return q
}

// Next pops the next item and marks it in flight. ok is false once the queue
// is exhausted. A successful Next must be paired with a Done.
func (q *Queue[T]) Next() (item T, index int, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.next >= len(q.pending) {
		return item, -1, false
	}
	item, index = q.pending[q.next], q.next
	q.next++
	q.inflight++
	return item, index, true
}

// Done marks one in-flight item finished, successfully or not.
func (q *Queue[T]) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.inflight == 0 {
		panic("waitqueue: Done called without matching Next")
	}
	q.inflight--
	if q.next >= len(q.pending) && q.inflight == 0 {
		q.close()
	}
}

func (q *Queue[T]) close() {
	if !q.closed {
		q.closed = true
		close(q.drained)
	}
}

func (q *Queue[T]) Drained() <-chan struct{} {
	return q.drained
}

func (q *Queue[T]) Len() int {
	return len(q.pending)
}

// InFlight returns the number of items taken but not yet finished.
func (q *Queue[T]) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inflight
}
