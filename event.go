package cider

import "reflect"

// EventValue is a type-erased event payload, fingerprinted by its dynamic
// Go type. It replaces the original's typeid(const T*).hash_code() narrowing
// check: reflect.Type values are comparable and process-stable, so they
// serve the same "is this actually a T" role without a hand-rolled hash.
type EventValue struct {
	typ reflect.Type
	val any
}

// NewEventValue boxes val, capturing its concrete type for later narrowing
// via Is/As.
func NewEventValue(val any) EventValue {
	return EventValue{typ: reflect.TypeOf(val), val: val}
}

// Type returns the fingerprint of the boxed value's concrete type.
func (e EventValue) Type() reflect.Type {
	return e.typ
}

// Is reports whether e was boxed from a T.
func Is[T any](e EventValue) bool {
	_, ok := e.val.(T)
	return ok
}

// As narrows e back to a T, returning the zero value and false if e does not
// hold a T.
func As[T any](e EventValue) (T, bool) {
	v, ok := e.val.(T)
	return v, ok
}

// MustAs narrows e back to a T, panicking (wrapped as *SlotFailure-compatible
// error via AsError at the call site) if e does not hold a T. Use only where
// the caller has already established the type via a prior Is check or a
// dispatch table keyed on Type().
func MustAs[T any](e EventValue) T {
	v, ok := As[T](e)
	if !ok {
		panic(AsError(ErrAssertFailure))
	}
	return v
}
