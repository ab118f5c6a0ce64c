package cider

import (
	"math"
	"sync"
)

// maxNestedCalls caps reentrant emission depth, mirroring the original's
// std::numeric_limits<int16_t>::max() guard against runaway recursive
// emission.
const maxNestedCalls = math.MaxInt16

// Slot is a single multicast listener.
type Slot[T any] func(T)

// ReturnSlot is a listener that contributes a result value to the
// slice returned by ReturnSignal.Emit.
type ReturnSlot[T, R any] func(T) R

// slotHandle is the shared identity a Connection disconnects by. Each
// Connect call allocates exactly one, and both the signal body and the
// returned Connection hold a reference to it.
type slotHandle struct {
	mu       sync.Mutex
	body     disconnecter
	detached bool
}

func (h *slotHandle) disconnect() {
	h.mu.Lock()
	body := h.body
	if body == nil || h.detached {
		h.mu.Unlock()
		return
	}
	h.detached = true
	h.body = nil
	h.mu.Unlock()
	body.disconnect(h)
}

func (h *slotHandle) valid() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.body != nil && !h.detached
}

type disconnecter interface {
	disconnect(*slotHandle)
}

// Connection is a disconnectable handle to a single Signal.Connect call. The
// zero value is a valid, already-inert Connection (Disconnect is a no-op,
// Valid reports false).
type Connection struct {
	handle *slotHandle
}

// Disconnect removes the slot from its signal, if not already removed. Safe
// to call more than once and from within the signal's own emission (the
// two-list protocol defers the actual removal until emission unwinds).
func (c Connection) Disconnect() {
	if c.handle != nil {
		c.handle.disconnect()
	}
}

// Valid reports whether the underlying slot is still connected.
func (c Connection) Valid() bool {
	return c.handle != nil && c.handle.valid()
}

// ScopedConnection disconnects its held Connection when overwritten or when
// Disconnect is called explicitly. It does not implement an automatic
// finalizer (Go has no deterministic destructor); callers that need
// disconnect-on-scope-exit must call Disconnect explicitly, typically via
// defer.
type ScopedConnection struct {
	mu   sync.Mutex
	conn Connection
}

// Reset disconnects any previously held Connection, then takes ownership of
// conn.
func (s *ScopedConnection) Reset(conn Connection) {
	s.mu.Lock()
	prev := s.conn
	s.conn = conn
	s.mu.Unlock()
	prev.Disconnect()
}

// Disconnect disconnects the currently held Connection, if any.
func (s *ScopedConnection) Disconnect() {
	s.mu.Lock()
	prev := s.conn
	s.conn = Connection{}
	s.mu.Unlock()
	prev.Disconnect()
}

// slotBox is the first layer of indirection a signal body stores: the
// pairing of a listener function and the handle used to tombstone it, so
// eraseRemovedListeners can filter on handle.valid() instead of on
// function-value identity (Go func values are not comparable).
type slotBox[F any] struct {
	fn     F
	handle *slotHandle
}

// signalCore is the reentrancy machinery shared by Signal and ReturnSignal,
// parameterized over the slot function type F. It implements the exact
// emission protocol of the original: newly connected slots queue in
// "pending" and are only spliced into "live" when the nesting depth is zero
// at emission start; listeners removed mid-emission are tombstoned in
// place and physically erased only once nesting unwinds to zero.
type signalCore[F any] struct {
	pendingMu sync.Mutex
	pending   []*slotBox[F]

	liveMu sync.Mutex
	live   []*slotBox[F]

	depth int32
}

func (c *signalCore[F]) connect(fn F) *slotHandle {
	h := &slotHandle{body: c}
	c.pendingMu.Lock()
	c.pending = append(c.pending, &slotBox[F]{fn: fn, handle: h})
	c.pendingMu.Unlock()
	return h
}

// disconnect implements the disconnecter interface. The handle itself
// already recorded detached=true before this is reached, which tombstones
// the slot; this removes the slotBox from pending if it is still there and
// leaves a live entry in place for eraseRemovedListeners to sweep.
func (c *signalCore[F]) disconnect(h *slotHandle) {
	c.pendingMu.Lock()
	for i, box := range c.pending {
		if box.handle == h {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			break
		}
	}
	c.pendingMu.Unlock()
	// live-list removal is deferred to eraseRemovedListeners; marking
	// detached (already done by slotHandle.disconnect) is sufficient for
	// emit to skip it in the meantime.
}

func (c *signalCore[F]) pushBackAddedListeners() {
	c.pendingMu.Lock()
	added := c.pending
	c.pending = nil
	c.pendingMu.Unlock()

	if len(added) == 0 {
		return
	}

	c.liveMu.Lock()
	c.live = append(c.live, added...)
	c.liveMu.Unlock()
}

func (c *signalCore[F]) eraseRemovedListeners() {
	c.liveMu.Lock()
	defer c.liveMu.Unlock()

	kept := c.live[:0]
	for _, box := range c.live {
		if box.handle.valid() {
			kept = append(kept, box)
		}
	}
	c.live = kept
}

// beginEmit runs the pre-call half of the protocol and returns the live
// slice snapshot to iterate (outside any lock) plus whether emission should
// proceed at all (false once the nesting depth cap is hit).
func (c *signalCore[F]) beginEmit() ([]*slotBox[F], bool) {
	if c.depth <= 0 {
		c.pushBackAddedListeners()
	}
	if c.depth >= maxNestedCalls {
		return nil, false
	}
	c.depth++

	c.liveMu.Lock()
	snapshot := make([]*slotBox[F], len(c.live))
	copy(snapshot, c.live)
	c.liveMu.Unlock()

	return snapshot, true
}

func (c *signalCore[F]) endEmit() {
	c.depth--
	if c.depth <= 0 {
		c.eraseRemovedListeners()
	}
}

// InvocationCount returns the number of slots in the live list that are
// still connected (live entries minus tombstones). Slots still in pending
// are not counted until an emission at depth 0 promotes them.
func (c *signalCore[F]) InvocationCount() int {
	c.liveMu.Lock()
	defer c.liveMu.Unlock()
	n := 0
	for _, box := range c.live {
		if box.handle.valid() {
			n++
		}
	}
	return n
}

// Signal is a reentrancy-safe multicast for listeners with no return value.
// The zero value is ready to use; NewSignal returns a pointer to one.
type Signal[T any] struct {
	core signalCore[Slot[T]]
}

// NewSignal constructs a ready-to-use Signal.
func NewSignal[T any]() *Signal[T] {
	return &Signal[T]{}
}

// Connect registers a slot and returns a Connection that can later
// disconnect it, including from within the slot's own invocation.
func (s *Signal[T]) Connect(slot Slot[T]) Connection {
	return Connection{handle: s.core.connect(slot)}
}

// Emit invokes every connected slot with arg. A slot that panics has its
// recovered value normalized via AsError and re-panics as *SlotFailure once
// this signal's own bookkeeping (depth, pending erase) is restored, so a
// failing slot cannot corrupt the signal for subsequent emissions.
func (s *Signal[T]) Emit(arg T) {
	snapshot, ok := s.core.beginEmit()
	if !ok {
		return
	}

	defer s.core.endEmit()

	for _, box := range snapshot {
		if !box.handle.valid() {
			continue
		}
		invokeSlot(box.fn, arg)
	}
}

func invokeSlot[T any](fn Slot[T], arg T) {
	defer func() {
		if r := recover(); r != nil {
			panic(AsError(r))
		}
	}()
	fn(arg)
}

// InvocationCount returns the number of connected slots in the live list;
// slots connected since the last emission at depth 0 are not yet counted.
func (s *Signal[T]) InvocationCount() int {
	return s.core.InvocationCount()
}

// ReturnSignal is a reentrancy-safe multicast whose slots each contribute a
// result, collected into the slice returned by Emit (the Go analogue of the
// original's non-void Signal<Result(Arguments...)> specialization).
type ReturnSignal[T, R any] struct {
	core signalCore[ReturnSlot[T, R]]
}

// NewReturnSignal constructs a ready-to-use ReturnSignal.
func NewReturnSignal[T, R any]() *ReturnSignal[T, R] {
	return &ReturnSignal[T, R]{}
}

// Connect registers a slot and returns its Connection.
func (s *ReturnSignal[T, R]) Connect(slot ReturnSlot[T, R]) Connection {
	return Connection{handle: s.core.connect(slot)}
}

// Emit invokes every connected slot with arg, in connection order,
// collecting one result per still-connected slot.
func (s *ReturnSignal[T, R]) Emit(arg T) []R {
	snapshot, ok := s.core.beginEmit()
	if !ok {
		return nil
	}

	defer s.core.endEmit()

	results := make([]R, 0, len(snapshot))
	for _, box := range snapshot {
		if !box.handle.valid() {
			continue
		}
		results = append(results, invokeReturnSlot(box.fn, arg))
	}
	return results
}

func invokeReturnSlot[T, R any](fn ReturnSlot[T, R], arg T) R {
	defer func() {
		if r := recover(); r != nil {
			panic(AsError(r))
		}
	}()
	return fn(arg)
}

// InvocationCount returns the number of connected slots in the live list;
// slots connected since the last emission at depth 0 are not yet counted.
func (s *ReturnSignal[T, R]) InvocationCount() int {
	return s.core.InvocationCount()
}
