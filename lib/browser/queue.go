package browser

import (
	"sync/atomic"
)

// ResponseQueue is a bounded buffer between the browser's event loop and
// the extraction code. Pushes never block: when the queue is full the
// event is dropped and counted.
type ResponseQueue struct {
	events  chan ResponseEvent
	dropped atomic.Int64
	pushed  atomic.Int64
}

func NewResponseQueue(capacity int) *ResponseQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &ResponseQueue{events: make(chan ResponseEvent, capacity)}
}

// Push enqueues an event and reports whether it was accepted.
func (q *ResponseQueue) Push(event ResponseEvent) bool {
	select {
	case q.events <- event:
		q.pushed.Add(1)
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Drain removes and returns everything currently queued.
func (q *ResponseQueue) Drain() []ResponseEvent {
	var out []ResponseEvent
	for {
		select {
		case event := <-q.events:
			out = append(out, event)
		default:
			return out
		}
	}
}

func (q *ResponseQueue) Dropped() int64 {
	return q.dropped.Load()
}

func (q *ResponseQueue) Pushed() int64 {
	return q.pushed.Load()
}

func (q *ResponseQueue) Capacity() int {
	return cap(q.events)
}
