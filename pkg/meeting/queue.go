package meeting

import "sync"

// stateQueue delivers states to a single consumer in emission order without
// ever blocking the producer. Nothing is dropped until close.
type stateQueue struct {
	mu     sync.Mutex
	items  []State
	signal chan struct{}
	out    chan State
	done   chan struct{}
	once   sync.Once
}

func newStateQueue() *stateQueue {
	q := &stateQueue{
		signal: make(chan struct{}, 1),
		out:    make(chan State),
		done:   make(chan struct{}),
	}
	go q.pump()
	return q
}

func (q *stateQueue) push(s State) {
	q.mu.Lock()
	q.items = append(q.items, s)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *stateQueue) pump() {
	defer close(q.out)

	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.mu.Unlock()
			select {
			case <-q.signal:
				continue
			case <-q.done:
				return
			}
		}
		s := q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
		q.mu.Unlock()

		select {
		case q.out <- s:
		case <-q.done:
			return
		}
	}
}

func (q *stateQueue) close() {
	q.once.Do(func() { close(q.done) })
}
