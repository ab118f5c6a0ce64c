package cider

import (
	"sort"
	"sync"
)

// EntityManager owns every Entity in the simulation, assigning monotonic
// ids (never reused, starting at 1) and draining deferred destruction at
// the end of each DispatchEvent, after OnDestroy has been delivered to the
// entity being removed.
type EntityManager struct {
	components *ComponentManager
	ledger     *DebugLedger

	mu       sync.Mutex
	nextID   uint64
	entities map[uint64]*Entity
	toDelete []uint64
}

// EntityManagerOption configures an EntityManager at construction.
type EntityManagerOption func(*entityManagerConfig)

type entityManagerConfig struct {
	ledger *DebugLedger
}

// WithLedger wires a DebugLedger into the manager, so every entity it
// creates routes its SystemEventQueue buffer and component-list container
// through DebugLedger.AllocTracked/FreeTracked under AreaSystem/AreaSTL,
// the entity itself under AreaApplication, and every component instance
// under AreaSystem — per spec.md §2's data-flow paragraph. Without this
// option (the default), entities behave exactly as before: no allocator
// involvement, which is sufficient for tests that only care about
// routing/ordering semantics rather than the memory subsystem.
func WithLedger(ledger *DebugLedger) EntityManagerOption {
	return func(c *entityManagerConfig) { c.ledger = ledger }
}

// NewEntityManager constructs an EntityManager whose entities construct
// components via factory.
func NewEntityManager(factory ComponentFactory, opts ...EntityManagerOption) *EntityManager {
	var cfg entityManagerConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return &EntityManager{
		components: NewComponentManager(factory, cfg.ledger),
		ledger:     cfg.ledger,
		nextID:     1,
		entities:   make(map[uint64]*Entity),
	}
}

// Components exposes the manager's ComponentManager, e.g. for diagnostics.
func (m *EntityManager) Components() *ComponentManager {
	return m.components
}

// CreateEntity allocates a new entity, posts OnStart to it, and returns its
// id.
func (m *EntityManager) CreateEntity() uint64 {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	e := newEntity(m)
	m.entities[id] = e
	m.mu.Unlock()

	e.PostEvent(OnStart{})
	return id
}

// DestroyEntity posts OnDestroy to the entity and schedules it for removal
// at the end of the current (or next) DispatchEvent. A call for an id not
// present is a no-op.
func (m *EntityManager) DestroyEntity(id uint64) {
	m.mu.Lock()
	e, ok := m.entities[id]
	if ok {
		m.toDelete = append(m.toDelete, id)
	}
	m.mu.Unlock()

	if ok {
		e.PostEvent(OnDestroy{})
	}
}

// RegisterComponent attaches a named component to the given entity. A call
// for an id not present is a no-op (matches the original's silent
// not-found handling).
func (m *EntityManager) RegisterComponent(id uint64, name string) error {
	e, ok := m.entityByID(id)
	if !ok {
		return nil
	}
	return e.RegisterComponent(name)
}

// UnregisterComponent detaches a named component from the given entity. A
// call for an id not present is a no-op.
func (m *EntityManager) UnregisterComponent(id uint64, name string) {
	e, ok := m.entityByID(id)
	if !ok {
		return
	}
	e.UnregisterComponent(name)
}

func (m *EntityManager) entityByID(id uint64) (*Entity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[id]
	return e, ok
}

// PostEvent enqueues event for delivery to a single entity on its next
// DispatchEvent. A call for an id not present is a no-op.
func (m *EntityManager) PostEvent(id uint64, event any) {
	e, ok := m.entityByID(id)
	if !ok {
		return
	}
	e.PostEvent(event)
}

// BroadcastEvent enqueues event on every currently registered entity.
func (m *EntityManager) BroadcastEvent(event any) {
	m.mu.Lock()
	targets := make([]*Entity, 0, len(m.entities))
	for _, e := range m.entities {
		targets = append(targets, e)
	}
	m.mu.Unlock()

	for _, e := range targets {
		e.PostEvent(event)
	}
}

// DispatchEvent flushes every entity's event queue in ascending id order,
// then removes whatever entities were scheduled for destruction during this
// (or an earlier) pass — in that order, so OnDestroy is always delivered
// before an entity disappears from the registry.
func (m *EntityManager) DispatchEvent() {
	m.mu.Lock()
	ids := make([]uint64, 0, len(m.entities))
	for id := range m.entities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	targets := make([]*Entity, len(ids))
	for i, id := range ids {
		targets[i] = m.entities[id]
	}
	m.mu.Unlock()

	for _, e := range targets {
		e.DispatchEvent()
	}

	m.applyDestroyed()
}

func (m *EntityManager) applyDestroyed() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.toDelete {
		if e, ok := m.entities[id]; ok {
			e.teardown()
		}
		delete(m.entities, id)
	}
	m.toDelete = m.toDelete[:0]
}

// Count returns the number of currently registered (not yet destroyed)
// entities.
func (m *EntityManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entities)
}
