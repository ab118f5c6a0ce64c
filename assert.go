//go:build ciderdebug

package cider

import (
	"github.com/cidercore/cider/corelog"
	"github.com/cidercore/cider/stacktrace"
)

// DebugBreak is invoked after an assertion fails and has been logged, as
// the final step of the AssertFailure policy: "log, stack-trace,
// debug-break; program terminates in debug" (spec.md §7). Go has no
// debugger-trap intrinsic, so the default hook panics with
// ErrAssertFailure, which is what makes the program actually terminate —
// a host running under an attached debugger may replace this with
// runtime.Breakpoint instead, the way the original's CIDER_DEBUG_BREAK()
// macro dropped into an OS-specific breakpoint rather than aborting.
var DebugBreak func() = func() {
	panic(ErrAssertFailure)
}

// assertProvider supplies the frame dump printed on a failed assertion.
// Overridable for tests that want deterministic output.
var assertProvider stacktrace.Provider = stacktrace.Runtime{Skip: 1}

const fence = "========================================"

// Assert reports a failed expression: expr is the source text of whatever
// condition the caller is asserting, message is additional context. It logs
// a fenced block (a `file(line) : { expression="..." } message` line, then up to
// stacktrace.MaxAssertFrames stack frames) through corelog at LevelAssert,
// then invokes DebugBreak. Present only in builds tagged ciderdebug; see
// assert_release.go for the no-op used otherwise.
func Assert(cond bool, expr, message, file string, line int) {
	if cond {
		return
	}

	var frames [stacktrace.MaxAssertFrames]stacktrace.Frame
	n := assertProvider.CaptureFrames(frames[:])

	corelog.Log(corelog.LevelAssert, fence)
	corelog.Logf(corelog.LevelAssert, "%s(%d) : { expression=\"%s\" } %s", file, line, expr, message)
	for i := 0; i < n; i++ {
		f := frames[i]
		corelog.Logf(corelog.LevelAssert, "  #%d %s (%s:%d)", i, f.Function, f.File, f.Line)
	}
	corelog.Log(corelog.LevelAssert, fence)

	DebugBreak()
}

// AssertHandle matches the original's free AssertHandle(expression,
// message, file, line) entry point, for callers translating literally from
// a CIDER_ASSERT(expression, message) call site.
func AssertHandle(expression, message, file string, line int) {
	Assert(false, expression, message, file, line)
}
