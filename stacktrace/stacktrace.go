// Package stacktrace provides the stack-trace provider contract consumed by
// the memory ledger (for the cheap per-allocation call-site hash) and the
// assert path (for the full frame dump on failure).
package stacktrace

import (
	"hash/fnv"
	"runtime"
)

// Frame is a single captured stack frame, trimmed to what the ledger and
// assert paths report.
type Frame struct {
	Function string
	File     string
	Line     int
	PC       uintptr
}

// Provider is the external collaborator contract: a cheap per-allocation
// hash, and a more expensive full-frame capture used only on assert.
type Provider interface {
	// CaptureHash returns a process-stable hash of the caller's call site.
	// It must be cheap: called on every tracked allocation.
	CaptureHash() uint64
	// CaptureFrames fills buf with up to len(buf) frames starting at the
	// caller of CaptureFrames, and returns the count written.
	CaptureFrames(buf []Frame) int
}

// Runtime is the default Provider, built on runtime.Callers.
type Runtime struct {
	// Skip is the number of additional frames to skip beyond
	// CaptureHash/CaptureFrames themselves, to account for wrapper
	// call sites (e.g. a ledger helper that calls into this provider).
	Skip int
}

// CaptureHash returns an FNV-1a hash of the single immediate caller's
// source location (function, file and line), so inlined copies of one call
// site hash alike. It need not be cryptographic, only stable across
// identical call sites within a process, per the provider contract.
func (r Runtime) CaptureHash() uint64 {
	var pcs [1]uintptr
	n := runtime.Callers(2+r.Skip, pcs[:])
	if n == 0 {
		return 0
	}
	frame, _ := runtime.CallersFrames(pcs[:n]).Next()
	h := fnv.New64a()
	_, _ = h.Write([]byte(frame.Function))
	_, _ = h.Write([]byte(frame.File))
	var b [8]byte
	line := uint64(frame.Line)
	for i := range b {
		b[i] = byte(line >> (8 * i))
	}
	_, _ = h.Write(b[:])
	return h.Sum64()
}

// CaptureFrames walks up to len(buf) frames starting at the caller.
func (r Runtime) CaptureFrames(buf []Frame) int {
	if len(buf) == 0 {
		return 0
	}
	pcs := make([]uintptr, len(buf))
	n := runtime.Callers(2+r.Skip, pcs)
	if n == 0 {
		return 0
	}
	frames := runtime.CallersFrames(pcs[:n])
	count := 0
	for count < n && count < len(buf) {
		f, more := frames.Next()
		buf[count] = Frame{
			Function: f.Function,
			File:     f.File,
			Line:     f.Line,
			PC:       f.PC,
		}
		count++
		if !more {
			break
		}
	}
	return count
}

// MaxAssertFrames is the frame-count cap used by the assert path (spec:
// "capture up to 62 stack frames").
const MaxAssertFrames = 62
