package drop

import "sync"

// Queue is an unbounded FIFO of pending requests. Any number of producers may
// Enqueue; exactly one consumer dequeues.
type Queue struct {
	mu      sync.Mutex
	pending []*Request
	closed  bool

	ready  chan struct{}
	closeC chan struct{}
}

func NewQueue() *Queue {
	return &Queue{
		ready:  make(chan struct{}, 1),
		closeC: make(chan struct{}),
	}
}

// Enqueue appends r without blocking. After Close the request is resolved as
// failed immediately and ErrQueueClosed is returned.
func (q *Queue) Enqueue(r *Request) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		r.resolve(ErrQueueClosed)
		return ErrQueueClosed
	}
	q.pending = append(q.pending, r)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return nil
}

// TryDequeue pops the oldest request, if any.
func (q *Queue) TryDequeue() (*Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil, false
	}
	r := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	if len(q.pending) == 0 {
		q.pending = nil
	}
	return r, true
}

// Ready fires after an Enqueue. A single signal may cover several requests.
func (q *Queue) Ready() <-chan struct{} { return q.ready }

// Closed is closed by Close.
func (q *Queue) Closed() <-chan struct{} { return q.closeC }

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close stops the queue and fails every request still pending with
// ErrShutdown. It returns how many were failed. Calling it again is a no-op.
func (q *Queue) Close() int {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return 0
	}
	q.closed = true
	pending := q.pending
	q.pending = nil
	close(q.closeC)
	q.mu.Unlock()

	n := 0
	for _, r := range pending {
		if r.resolve(ErrShutdown) {
			n++
		}
	}
	return n
}
