package cider

import (
	"errors"
	"fmt"
)

// Sentinel errors for the fail-soft paths of the allocator and registry, per
// the error taxonomy: OutOfMemory, LedgerFull, MissingEntity,
// MissingComponentFactory, AssertFailure. These are used with errors.Is by
// callers that want to distinguish kinds without string matching.
var (
	// ErrOutOfMemory is returned by DebugLedger.AllocTracked when the area
	// cannot satisfy the request (exhausted, unknown, or not initialized).
	ErrOutOfMemory = errors.New("cider: out of memory")

	// ErrLedgerFull indicates the debug ledger had no empty slot to record
	// a new allocation. The allocation itself still succeeds; only the
	// debug record is skipped.
	ErrLedgerFull = errors.New("cider: debug ledger is full")

	// ErrMissingEntity indicates an operation addressed an entity id that
	// is not (or is no longer) present in the registry. DebugLedger.FreeTracked
	// also returns it when the address is not a live allocation in the area.
	ErrMissingEntity = errors.New("cider: missing entity")

	// ErrMissingComponentFactory indicates a ComponentFactory returned no
	// component for a requested name.
	ErrMissingComponentFactory = errors.New("cider: missing component factory")

	// ErrAssertFailure marks a failed Assert, for use with errors.Is when a
	// host wants to recognize an assert-originated panic.
	ErrAssertFailure = errors.New("cider: assertion failed")
)

// HeapOverrunError reports a single trap-word mismatch detected by
// CheckTrap, carrying the offending record for inspection.
type HeapOverrunError struct {
	Record AllocationRecord
}

func (e *HeapOverrunError) Error() string {
	return fmt.Sprintf(
		"cider: heap overrun at %s(%d): area=%s address=%#x size=%d",
		e.Record.File, e.Record.Line, e.Record.Area, e.Record.Address, e.Record.Size,
	)
}

// SlotFailure wraps a panic recovered from within a Signal slot during
// emission. The emitting goroutine re-panics with this value so the
// failure is still observable via recover+errors.As by a caller further up
// the stack, while the signal's internal depth bookkeeping is preserved
// (pending stays intact, per the emission protocol).
type SlotFailure struct {
	Err error
}

func (e *SlotFailure) Error() string {
	return fmt.Sprintf("cider: slot failed: %v", e.Err)
}

func (e *SlotFailure) Unwrap() error {
	return e.Err
}

// AsError normalizes an arbitrary recovered panic value into an error,
// wrapping it in SlotFailure.
func AsError(recovered any) error {
	if recovered == nil {
		return nil
	}
	if err, ok := recovered.(error); ok {
		return &SlotFailure{Err: err}
	}
	return &SlotFailure{Err: fmt.Errorf("%v", recovered)}
}
