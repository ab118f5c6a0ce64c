package cider

import (
	"sync"
	"unsafe"
)

// EventQueue is a FIFO deferred-emission queue layered over a Signal[T]:
// Enqueue never invokes a listener directly, only Emit does, draining
// everything queued since the previous Emit in submission order. This
// mirrors the original's EventQueue<AREA>, which batches posted events and
// flushes them once per tick rather than dispatching inline.
type EventQueue[T any] struct {
	signal Signal[T]

	mu      sync.Mutex
	pending []T
	buf     trackedBuffer
}

// elemSizeOf reports the static size, in bytes, of T's zero value — used to
// size the shadow ledger allocation backing an EventQueue's pending buffer.
func elemSizeOf[T any]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// NewEventQueue constructs a ready-to-use EventQueue.
func NewEventQueue[T any]() *EventQueue[T] {
	return &EventQueue[T]{}
}

// Connect registers a listener invoked once per queued item during Emit.
func (q *EventQueue[T]) Connect(slot Slot[T]) Connection {
	return q.signal.Connect(slot)
}

// Enqueue appends an item to be delivered on the next Emit call.
func (q *EventQueue[T]) Enqueue(item T) {
	q.mu.Lock()
	before := cap(q.pending)
	q.pending = append(q.pending, item)
	after := cap(q.pending)
	q.mu.Unlock()

	if after != before {
		q.buf.regrow(after, elemSizeOf[T]())
	}
}

// Release frees the queue's tracked backing-store allocation, if any (see
// trackedBuffer). Call when the owning container is permanently torn down,
// e.g. an Entity being destroyed.
func (q *EventQueue[T]) Release() {
	q.buf.release()
}

// Emit drains everything enqueued since the last Emit and delivers each to
// every connected listener in submission order. The drain is swapped out
// from under the lock before any listener runs, so a listener that calls
// Enqueue mid-Emit queues for the next Emit rather than extending this one.
func (q *EventQueue[T]) Emit() {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, item := range batch {
		q.signal.Emit(item)
	}
}

// Len reports how many items are currently queued, awaiting the next Emit.
func (q *EventQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// InvocationCount returns the number of connected listeners in the
// underlying signal's live list (see Signal.InvocationCount).
func (q *EventQueue[T]) InvocationCount() int {
	return q.signal.InvocationCount()
}
