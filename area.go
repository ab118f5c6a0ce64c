package cider

import (
	"sync"
	"unsafe"
)

// MemoryArea is a small dense index identifying a named sub-heap. The zero
// value, AreaUnknown, is the default/fallback area.
type MemoryArea uint8

const (
	AreaUnknown MemoryArea = iota
	AreaDebug
	AreaSTL
	AreaSystem
	AreaApplication
)

func (a MemoryArea) String() string {
	switch a {
	case AreaUnknown:
		return "UNKNOWN"
	case AreaDebug:
		return "DEBUG"
	case AreaSTL:
		return "STL"
	case AreaSystem:
		return "SYSTEM"
	case AreaApplication:
		return "APPLICATION"
	default:
		return "AREA(?)"
	}
}

// AreaConfig describes one named sub-heap and its fixed byte capacity.
type AreaConfig struct {
	Area     MemoryArea
	Name     string
	Capacity int
}

// DefaultAreaConfigs returns the nominal (name, capacity) pairs from the
// spec: UNKNOWN=512B, DEBUG=512B, STL=1KiB, SYSTEM=10KiB, APPLICATION=10KiB.
func DefaultAreaConfigs() []AreaConfig {
	const KiB = 1024
	return []AreaConfig{
		{AreaUnknown, "UNKNOWN", 512},
		{AreaDebug, "DEBUG", 512},
		{AreaSTL, "STL", 1 * KiB},
		{AreaSystem, "SYSTEM", 10 * KiB},
		{AreaApplication, "APPLICATION", 10 * KiB},
	}
}

// span is a free region within an arena, addressed by byte offset.
type span struct {
	offset, size int
}

// arena is a fixed-capacity bump allocator with a first-fit freelist. It is
// the Go-idiomatic stand-in for a dlmalloc mspace: a thread-safe bounded
// region supporting aligned allocation, backed by a single real Go []byte so
// the runtime GC remains the owner of the underlying memory.
type arena struct {
	mu       sync.Mutex
	name     string
	capacity int
	buf      []byte
	bump     int
	free     []span
	// live maps a payload's identity (address) to its backing range, so
	// Free/Realloc can locate and recycle the span.
	live map[uintptr]span
}

func newArena(cfg AreaConfig) *arena {
	return &arena{
		name:     cfg.Name,
		capacity: cfg.Capacity,
		buf:      make([]byte, cfg.Capacity),
		live:     make(map[uintptr]span),
	}
}

func addressOf(buf []byte, offset int) uintptr {
	if offset >= len(buf) {
		// zero-length allocations still need a distinct, stable identity.
		return uintptr(unsafe.Pointer(&buf[0])) + uintptr(offset)
	}
	return uintptr(unsafe.Pointer(&buf[offset]))
}

func alignUp(n, alignment int) int {
	if alignment <= 1 {
		return n
	}
	rem := n % alignment
	if rem == 0 {
		return n
	}
	return n + (alignment - rem)
}

// alloc reserves bytes (first-fit against the freelist, else bumping the
// high-water mark) and returns the payload's address, or 0 on exhaustion.
func (a *arena) alloc(bytes, alignment int) uintptr {
	a.mu.Lock()
	defer a.mu.Unlock()

	if bytes < 0 {
		return 0
	}

	for i, s := range a.free {
		aligned := alignUp(s.offset, alignment)
		pad := aligned - s.offset
		if s.size-pad >= bytes {
			a.free = append(a.free[:i], a.free[i+1:]...)
			if pad > 0 {
				a.free = append(a.free, span{s.offset, pad})
			}
			if rem := s.size - pad - bytes; rem > 0 {
				a.free = append(a.free, span{aligned + bytes, rem})
			}
			addr := addressOf(a.buf, aligned)
			a.live[addr] = span{aligned, bytes}
			return addr
		}
	}

	start := alignUp(a.bump, alignment)
	if start+bytes > a.capacity {
		return 0
	}
	a.bump = start + bytes
	addr := addressOf(a.buf, start)
	a.live[addr] = span{start, bytes}
	return addr
}

// view returns the backing bytes for [offset, offset+length) inside this
// arena's buffer, without regard for live/free bookkeeping — callers are
// expected to have already validated the range via a live span.
func (a *arena) view(offset, length int) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buf[offset : offset+length]
}

// free2 releases the span previously returned by alloc/realloc. Freeing an
// address this arena never issued is a no-op (the caller, MemoryAreas,
// treats that as an "alien free" to be logged).
func (a *arena) free2(addr uintptr) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.live[addr]
	if !ok {
		return false
	}
	delete(a.live, addr)
	a.free = append(a.free, s)
	return true
}

// realloc resizes the allocation at addr to newBytes, possibly relocating it.
func (a *arena) realloc(addr uintptr, newBytes int) uintptr {
	a.mu.Lock()
	s, ok := a.live[addr]
	a.mu.Unlock()
	if !ok {
		return 0
	}

	newAddr := a.alloc(newBytes, 1)
	if newAddr == 0 {
		return 0
	}

	a.mu.Lock()
	newSpan := a.live[newAddr]
	n := s.size
	if newBytes < n {
		n = newBytes
	}
	copy(a.buf[newSpan.offset:newSpan.offset+n], a.buf[s.offset:s.offset+n])
	a.mu.Unlock()

	a.free2(addr)
	return newAddr
}

// Areas partitions raw memory into independently managed sub-heaps, one per
// configured MemoryArea. A process-wide mutex serializes the areas slice
// itself (creation/teardown); allocation traffic is serialized per-area by
// each arena's own mutex, per spec.md §4.1's "fine-grained per-area locks
// are acceptable provided ledger updates remain consistent".
type Areas struct {
	mu          sync.Mutex
	initialized bool
	byArea      map[MemoryArea]*arena
}

// NewAreas constructs an uninitialized Areas. Call Initialize before use.
func NewAreas() *Areas {
	return &Areas{}
}

// Initialize creates the sub-heaps for the given configs. Double
// initialization is a program error (not guarded against, per spec.md
// §4.1: "double-initialization is a program error").
func (m *Areas) Initialize(configs ...AreaConfig) {
	if len(configs) == 0 {
		configs = DefaultAreaConfigs()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.byArea = make(map[MemoryArea]*arena, len(configs))
	for _, cfg := range configs {
		m.byArea[cfg.Area] = newArena(cfg)
	}
	m.initialized = true
}

// Terminate destroys all sub-heaps.
func (m *Areas) Terminate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.byArea = nil
	m.initialized = false
}

func (m *Areas) arenaFor(area MemoryArea) (*arena, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return nil, false
	}
	a, ok := m.byArea[area]
	return a, ok
}

// Alloc fails with 0 on exhaustion or if not initialized.
func (m *Areas) Alloc(area MemoryArea, bytes, alignment int) uintptr {
	a, ok := m.arenaFor(area)
	if !ok {
		return 0
	}
	if alignment <= 0 {
		alignment = 1
	}
	return a.alloc(bytes, alignment)
}

// Free frees to the same area. Free of the zero address is a no-op. Freeing
// an address the area never issued returns false (alien/double free).
func (m *Areas) Free(area MemoryArea, address uintptr) bool {
	if address == 0 {
		return true
	}
	a, ok := m.arenaFor(area)
	if !ok {
		return false
	}
	return a.free2(address)
}

// Realloc performs an area-local resize, returning 0 on failure.
func (m *Areas) Realloc(area MemoryArea, address uintptr, newBytes int) uintptr {
	a, ok := m.arenaFor(area)
	if !ok {
		return 0
	}
	return a.realloc(address, newBytes)
}

// View returns a three-index slice (len=length, cap=the live span's size) over the bytes
// backing the live allocation at address, or nil if address is not
// currently live in area. Callers that need headroom to deliberately
// exercise overrun detection (see DebugLedger's trap word) should ask for a
// length less than the allocation's full reserved size and reslice up to
// cap themselves; View never hands back more capacity than the live span
// actually has.
func (m *Areas) View(area MemoryArea, address uintptr, length int) []byte {
	a, ok := m.arenaFor(area)
	if !ok {
		return nil
	}
	a.mu.Lock()
	s, ok := a.live[address]
	a.mu.Unlock()
	if !ok || length > s.size {
		return nil
	}
	return a.view(s.offset, s.size)[:length:s.size]
}
