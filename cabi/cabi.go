// Command cabi is the C ABI surface of this module, built with
// `go build -buildmode=c-shared`. It mirrors the original's CiderShared
// exports (Cider_Hello, Cider_LogFormat, Cider_LogMessage) so an existing C
// or C++ host can link against this package without changes to its own
// call sites.
//
// cgo cannot export a variadic C function (//export requires a fixed
// signature), so Cider_LogFormat keeps its name and level-int ABI but drops
// the printf-style varargs: the caller is expected to format the message
// before crossing into Go, same as Cider_LogMessage. Hosts built against
// the original header should format with their own sprintf and call either
// exported function interchangeably.
package main

/*
#include <string.h>
*/
import "C"

import (
	"github.com/cidercore/cider/corelog"
)

// Cider_Hello is a liveness/link-sanity probe: it logs a single informational
// line so a host can confirm the shared library loaded and its logging sink
// is reachable.
//
//export Cider_Hello
func Cider_Hello() {
	corelog.Log(corelog.LevelInfo, "cider: hello")
}

// Cider_LogFormat logs message at level. See the package doc for why this
// does not accept C varargs the way the original did.
//
//export Cider_LogFormat
func Cider_LogFormat(level C.int, message *C.char) {
	logFromC(level, message)
}

// Cider_LogMessage logs message at level. Empty messages are a no-op,
// matching the original's strlen(message) < 1 guard.
//
//export Cider_LogMessage
func Cider_LogMessage(level C.int, message *C.char) {
	logFromC(level, message)
}

func logFromC(level C.int, message *C.char) {
	if message == nil {
		return
	}
	s := C.GoString(message)
	if len(s) < 1 {
		return
	}
	corelog.Log(corelog.Level(level), s)
}

func main() {}
