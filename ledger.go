package cider

import (
	"encoding/binary"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/joeycumines/go-catrate"

	"github.com/cidercore/cider/corelog"
	"github.com/cidercore/cider/stacktrace"
)

// trapWord is written immediately after a tracked allocation's payload and
// re-checked by CheckTrap, standing in for the original's guard-byte canary.
const trapWord uint32 = 0xDEADC0DE

// trapSize is the number of footer bytes reserved past the payload to hold
// the trap word (spec.md §4.2's TRAP_SIZE).
const trapSize = 4

// AllocationRecord is one row of the debug ledger: everything needed to
// report a leak or an overrun for a single tracked allocation.
type AllocationRecord struct {
	Bookmark  uint64
	File      string
	Line      int
	Area      MemoryArea
	Address   uintptr
	Size      int
	SiteHash  uint64
	Timestamp time.Time
	// live is false once FreeTracked has cleared this slot; the slot itself
	// stays in the table (for stable indices) until reused by a later
	// allocation.
	live bool
}

// LedgerOption configures a DebugLedger at construction.
type LedgerOption func(*ledgerConfig)

type ledgerConfig struct {
	capacity int
	provider stacktrace.Provider
	sink     corelog.Sink
}

// WithLedgerCapacity sets the fixed number of trackable allocation slots.
// Once full, further AllocTracked calls still succeed at the arena level but
// are not recorded, and a rate-limited warning is logged (spec.md §9: ledger
// capacity is configurable, overflow is logged rather than silently
// dropped).
func WithLedgerCapacity(n int) LedgerOption {
	return func(c *ledgerConfig) { c.capacity = n }
}

// WithStackTraceProvider overrides the default runtime.Callers-based
// stacktrace.Provider, e.g. for deterministic tests.
func WithStackTraceProvider(p stacktrace.Provider) LedgerOption {
	return func(c *ledgerConfig) { c.provider = p }
}

// WithLedgerSink overrides the corelog.Sink used for leak/overrun/overflow
// diagnostics.
func WithLedgerSink(s corelog.Sink) LedgerOption {
	return func(c *ledgerConfig) { c.sink = s }
}

// DebugLedger is a fixed-capacity table of allocation records layered over
// an *Areas, providing leak detection (ReportLeaks), overrun detection
// (CheckTrap), and print/sort diagnostics (PrintAll), bookmarked by a
// monotonically increasing sequence number so a caller can sweep only the
// range of allocations made since a prior checkpoint.
type DebugLedger struct {
	areas    *Areas
	provider stacktrace.Provider
	sink     corelog.Sink
	limiter  *catrate.Limiter

	mu       sync.Mutex
	records  []AllocationRecord
	bySlot   map[uintptr]int // address -> index into records, for live allocations
	seq      uint64
	capacity int
}

// NewDebugLedger wraps areas with allocation tracking.
func NewDebugLedger(areas *Areas, opts ...LedgerOption) *DebugLedger {
	cfg := ledgerConfig{
		capacity: 1024,
		provider: stacktrace.Runtime{Skip: 1},
		sink:     nil,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	sink := cfg.sink
	if sink == nil {
		sink = corelog.NewStumpyConsoleSink()
	}

	return &DebugLedger{
		areas:    areas,
		provider: cfg.provider,
		sink:     sink,
		limiter: catrate.NewLimiter(map[time.Duration]int{
			time.Second: 1,
			time.Minute: 10,
		}),
		records:  make([]AllocationRecord, 0, cfg.capacity),
		bySlot:   make(map[uintptr]int, cfg.capacity),
		capacity: cfg.capacity,
	}
}

// Bookmark returns the current sequence number, usable as the low bound of
// a later ReportLeaks/CheckTrap range sweep (a checkpoint).
func (l *DebugLedger) Bookmark() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq
}

func (l *DebugLedger) warn(category string, format string, args ...any) {
	if _, ok := l.limiter.Allow(category); !ok {
		return
	}
	l.sink.Log(corelog.LevelWarning, fmt.Sprintf(format, args...))
}

// AllocTracked allocates bytes in area, padded by trapSize bytes for the
// trap word, and, space permitting, records the allocation's call site,
// address, and size (excluding the trap word). file/line identify the
// logical call site (the entity/component layer passes its own caller info
// through, mirroring the original's __FILE__/__LINE__ macro capture).
func (l *DebugLedger) AllocTracked(file string, line int, area MemoryArea, bytes, alignment int) (uintptr, error) {
	addr := l.areas.Alloc(area, bytes+trapSize, alignment)
	if addr == 0 {
		return 0, ErrOutOfMemory
	}

	if footer := l.areas.View(area, addr, bytes+trapSize); footer != nil {
		binary.LittleEndian.PutUint32(footer[bytes:], trapWord)
	}

	l.mu.Lock()
	slot, reuse := l.bySlot[addr]
	for i := 0; !reuse && i < len(l.records); i++ {
		reuse = !l.records[i].live
		slot = i
	}
	full := !reuse && len(l.records) >= l.capacity
	var bookmark uint64
	if !full {
		bookmark = l.seq
		l.seq++
	}
	l.mu.Unlock()

	if full {
		l.warn("ledger-full:"+area.String(), "debug ledger full (capacity=%d); allocation at %s(%d) will not be tracked", l.capacity, file, line)
		return addr, ErrLedgerFull
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	rec := AllocationRecord{
		Bookmark:  bookmark,
		File:      file,
		Line:      line,
		Area:      area,
		Address:   addr,
		Size:      bytes,
		SiteHash:  l.provider.CaptureHash(),
		Timestamp: time.Now(),
		live:      true,
	}
	if reuse && (!l.records[slot].live || l.records[slot].Address == addr) {
		l.records[slot] = rec
	} else {
		l.records = append(l.records, rec)
		slot = len(l.records) - 1
	}
	l.bySlot[addr] = slot
	return addr, nil
}

// Payload returns the writable view over rec's payload, with spare capacity
// reaching into the trap footer: len(view) == rec.Size but
// cap(view) == rec.Size+trapSize, so a caller can deliberately reslice past
// len to simulate an overrunning write for CheckTrap to catch, the same way
// an errant C pointer write would corrupt the original's guard bytes.
func (l *DebugLedger) Payload(rec AllocationRecord) []byte {
	full := l.areas.View(rec.Area, rec.Address, rec.Size+trapSize)
	if full == nil {
		return nil
	}
	return full[:rec.Size:rec.Size+trapSize]
}

// FreeTracked frees addr in area and clears its ledger record, if tracked.
func (l *DebugLedger) FreeTracked(area MemoryArea, addr uintptr) error {
	l.mu.Lock()
	if idx, ok := l.bySlot[addr]; ok {
		l.records[idx].live = false
		delete(l.bySlot, addr)
	}
	l.mu.Unlock()

	if !l.areas.Free(area, addr) {
		return ErrMissingEntity
	}
	return nil
}

// ReportLeaks returns every still-live record with bookmark in [lo, hi). A
// hi of 0 means "through the current sequence number".
func (l *DebugLedger) ReportLeaks(lo, hi uint64) []AllocationRecord {
	l.mu.Lock()
	if hi == 0 {
		hi = l.seq + 1
	}
	var leaks []AllocationRecord
	for _, rec := range l.records {
		if rec.live && rec.Bookmark >= lo && rec.Bookmark < hi {
			leaks = append(leaks, rec)
		}
	}
	l.mu.Unlock()

	if len(leaks) > 0 {
		l.warn("leak-report", "%d leaked allocation(s) in bookmark range [%d,%d)", len(leaks), lo, hi)
	}

	return leaks
}

// CheckTrap reads the trap footer of every live record with bookmark in
// [lo, hi) and returns a *HeapOverrunError for the first mismatch found, or
// nil if all are intact. The mismatch is also logged at LevelError,
// rate-limited per area; later records in the range are not checked. A hi
// of 0 means "through the current sequence number".
func (l *DebugLedger) CheckTrap(lo, hi uint64) *HeapOverrunError {
	l.mu.Lock()
	if hi == 0 {
		hi = l.seq + 1
	}
	records := make([]AllocationRecord, len(l.records))
	copy(records, l.records)
	l.mu.Unlock()

	for _, rec := range records {
		if !rec.live || rec.Bookmark < lo || rec.Bookmark >= hi {
			continue
		}
		footer := l.areas.View(rec.Area, rec.Address, rec.Size+trapSize)
		if footer == nil {
			continue
		}
		if binary.LittleEndian.Uint32(footer[rec.Size:]) != trapWord {
			overrun := &HeapOverrunError{Record: rec}
			if _, ok := l.limiter.Allow("heap-overrun:" + rec.Area.String()); ok {
				l.sink.Log(corelog.LevelError, overrun.Error())
			}
			return overrun
		}
	}
	return nil
}

// trackedBuffer shadows a growable Go slice's backing-store capacity as a
// single ledger-tracked allocation — the Go realization of spec.md §9's
// "per-area allocator objects passed explicitly to container constructors"
// strategy. The slice's actual elements stay on the normal Go heap (tagging
// arbitrary pointer-bearing element types onto the byte arena directly
// would be unsound for the GC); every capacity change is instead mirrored
// as an AllocTracked/FreeTracked pair under the given area, so leak and
// overrun audits see the container's storage the way spec.md §2's
// data-flow paragraph requires ("STL-like container storage routes under
// STL"). A nil ledger makes every method a no-op, so the common case of a
// Signal/EventQueue/Entity built without ledger wiring pays nothing.
type trackedBuffer struct {
	ledger *DebugLedger
	area   MemoryArea
	site   string
	addr   uintptr
	cap    int
}

// newTrackedBuffer builds a trackedBuffer that records capacity changes
// against ledger under area, labeling each AllocTracked call with site in
// place of a real __FILE__/__LINE__ call-site (the container doing the
// tracking, not its caller, is the meaningful "location" here).
func newTrackedBuffer(ledger *DebugLedger, area MemoryArea, site string) trackedBuffer {
	return trackedBuffer{ledger: ledger, area: area, site: site}
}

// regrow re-tracks the buffer at newCap elements of elemSize bytes each,
// freeing the previous tracked allocation first. Call whenever the wrapped
// slice's capacity changes (i.e. it was reallocated).
func (b *trackedBuffer) regrow(newCap, elemSize int) {
	if b.ledger == nil || newCap == b.cap {
		return
	}
	if b.addr != 0 {
		_ = b.ledger.FreeTracked(b.area, b.addr)
		b.addr = 0
	}
	b.cap = newCap
	if newCap == 0 {
		return
	}
	addr, err := b.ledger.AllocTracked(b.site, 0, b.area, newCap*elemSize, 1)
	if err == nil || err == ErrLedgerFull {
		b.addr = addr
	}
}

// release frees the current tracked allocation, if any, e.g. when the
// owning container is permanently torn down.
func (b *trackedBuffer) release() {
	if b.ledger == nil || b.addr == 0 {
		return
	}
	_ = b.ledger.FreeTracked(b.area, b.addr)
	b.addr = 0
	b.cap = 0
}

// PrintAll logs every live record through the sink, ordered by timestamp
// (oldest first), matching the original's PrintDebugInfo ordering.
func (l *DebugLedger) PrintAll() {
	l.mu.Lock()
	live := make([]AllocationRecord, 0, len(l.records))
	for _, rec := range l.records {
		if rec.live {
			live = append(live, rec)
		}
	}
	l.mu.Unlock()

	sort.Slice(live, func(i, j int) bool {
		return live[i].Timestamp.Before(live[j].Timestamp)
	})

	for _, rec := range live {
		l.sink.Log(corelog.LevelDebug, fmt.Sprintf(
			"alloc bookmark=%d area=%s address=%#x size=%d site=%s(%d) hash=%#x",
			rec.Bookmark, rec.Area, rec.Address, rec.Size, rec.File, rec.Line, rec.SiteHash,
		))
	}
}
