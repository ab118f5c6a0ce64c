// Package corelog is the structured logging sink consumed by the rest of
// this module.
//
// Design Decision: the default logger is a package-level variable guarded
// by a mutex, rather than threaded through every constructor, because
// logging is an infrastructure cross-cutting concern shared by every area,
// ledger, signal, and entity in the process — exactly the reasoning the
// teacher package (eventloop) documents for its own global logger.
package corelog

import (
	"fmt"
	"sync"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Level mirrors the stable ABI level enumeration from the shared-library
// surface: Verbose=0, Debug=1, Info=2, Warning=3, Error=4, Assert=5.
type Level int32

const (
	LevelVerbose Level = iota
	LevelDebug
	LevelInfo
	LevelWarning
	LevelError
	LevelAssert
)

func (l Level) String() string {
	switch l {
	case LevelVerbose:
		return "VERBOSE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	case LevelAssert:
		return "ASSERT"
	default:
		return fmt.Sprintf("LEVEL(%d)", l)
	}
}

// Sink is the log sink contract consumed by the core: log(level, message).
// Implementations must be safe to call re-entrantly (a sink invoked while
// already logging, e.g. from within its own Log call, must not deadlock).
type Sink interface {
	Log(level Level, message string)
}

// toLogifaceLevel maps the ABI-stable Level onto logiface's syslog-style
// scale. Assert is treated as an error-class event with an added field so
// it remains distinguishable downstream.
func toLogifaceLevel(l Level) logiface.Level {
	switch l {
	case LevelVerbose:
		return logiface.LevelTrace
	case LevelDebug:
		return logiface.LevelDebug
	case LevelInfo:
		return logiface.LevelInformational
	case LevelWarning:
		return logiface.LevelWarning
	case LevelError, LevelAssert:
		return logiface.LevelError
	default:
		return logiface.LevelInformational
	}
}

type stumpySink struct {
	logger *logiface.Logger[*stumpy.Event]
}

// NewStumpyConsoleSink builds the default Sink: a logiface logger backed by
// stumpy, writing newline-delimited JSON events to os.Stderr.
func NewStumpyConsoleSink() Sink {
	return &stumpySink{
		logger: stumpy.L.New(stumpy.L.WithStumpy()),
	}
}

func (s *stumpySink) Log(level Level, message string) {
	b := s.logger.Build(toLogifaceLevel(level))
	if b == nil {
		return
	}
	if level == LevelAssert {
		b = b.Bool("assert", true)
	}
	b.Log(message)
}

var global struct {
	sync.RWMutex
	sink Sink
}

// SetSink installs the process-wide default Sink used by Log when no
// explicit Sink is supplied by the caller. Passing nil restores the
// built-in stumpy-backed sink.
func SetSink(sink Sink) {
	global.Lock()
	defer global.Unlock()
	global.sink = sink
}

func defaultSink() Sink {
	global.RLock()
	s := global.sink
	global.RUnlock()
	if s != nil {
		return s
	}
	return NewStumpyConsoleSink()
}

// Log passes level and message, unchanged, to the process-wide default
// Sink. Empty messages are not filtered here — the ABI entry
// points (Cider_LogMessage/Cider_LogFormat) are responsible for the
// "empty input is a no-op" rule specified at that boundary.
func Log(level Level, message string) {
	defaultSink().Log(level, message)
}

// Logf formats and logs, mirroring the variadic log_format ABI entry point.
func Logf(level Level, format string, args ...any) {
	Log(level, fmt.Sprintf(format, args...))
}
