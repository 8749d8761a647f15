package session

import "sync"

// queue is a single-goroutine FIFO executor. Tasks run one at a time in post
// order; post never blocks, so connection callbacks can hand work over without
// waiting on a negotiation step already in progress.
type queue struct {
	mu      sync.Mutex
	tasks   []func()
	stopped bool

	wake chan struct{}
	done chan struct{}
}

func newQueue() *queue {
	q := &queue{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go q.loop()
	return q
}

// post appends fn to the queue. It reports false once the queue is stopped.
func (q *queue) post(fn func()) bool {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return false
	}
	q.tasks = append(q.tasks, fn)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// do runs fn on the queue and waits for its result. Calling do from a task on
// the same queue deadlocks.
func (q *queue) do(fn func() error) error {
	result := make(chan error, 1)
	if !q.post(func() { result <- fn() }) {
		return ErrSessionClosed
	}
	return <-result
}

// stop rejects further posts. Tasks already queued still run.
func (q *queue) stop() {
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Done is closed once the loop has drained and exited.
func (q *queue) Done() <-chan struct{} {
	return q.done
}

func (q *queue) loop() {
	defer close(q.done)

	for {
		q.mu.Lock()
		batch := q.tasks
		q.tasks = nil
		stopped := q.stopped
		q.mu.Unlock()

		for _, fn := range batch {
			fn()
		}

		if len(batch) > 0 {
			continue
		}
		if stopped {
			return
		}
		<-q.wake
	}
}
