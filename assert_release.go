//go:build !ciderdebug

package cider

// DebugBreak is a no-op in release builds; present so release and debug
// builds expose the same package API.
var DebugBreak func() = func() {}

// Assert is a no-op in release builds, matching the original's
// CIDER_ASSERT release definition (static_cast<Void>(0)): the expression is
// not even evaluated for its assertion effect, only for its side effects by
// the caller, if any (Go evaluates cond eagerly since it has no macro
// layer, but the check itself is skipped here).
func Assert(cond bool, expr, message, file string, line int) {}

// AssertHandle is a no-op in release builds.
func AssertHandle(expression, message, file string, line int) {}
