package cider_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cidercore/cider"
)

// recordingComponent captures the order of HandleEvent calls for assertions,
// standing in for TestComponentA's log lines without depending on the
// logging sink.
type recordingComponent struct {
	mu     *sync.Mutex
	events *[]string
}

func (c recordingComponent) ComponentName() string { return "RecordingComponent" }

func (c recordingComponent) HandleEvent(ev cider.EventValue) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case cider.Is[cider.OnStart](ev):
		*c.events = append(*c.events, "OnStart")
	case cider.Is[cider.OnDestroy](ev):
		*c.events = append(*c.events, "OnDestroy")
	default:
		if upd, ok := cider.As[cider.OnUpdate](ev); ok {
			*c.events = append(*c.events, fmt.Sprintf("OnUpdate{%v}", upd.DeltaTime))
		}
	}
}

func newRecordingFactory(mu *sync.Mutex, events *[]string) cider.ComponentFactory {
	return func(name string) (cider.Component, bool) {
		if name != "RecordingComponent" {
			return nil, false
		}
		return recordingComponent{mu: mu, events: events}, true
	}
}

// TestEntityManager_EventRouting is scenario S4.
func TestEntityManager_EventRouting(t *testing.T) {
	var mu sync.Mutex
	var events []string

	manager := cider.NewEntityManager(newRecordingFactory(&mu, &events))

	id := manager.CreateEntity()
	require.NoError(t, manager.RegisterComponent(id, "RecordingComponent"))

	manager.BroadcastEvent(cider.OnUpdate{DeltaTime: 0.0})
	manager.DestroyEntity(id)
	manager.DispatchEvent()

	mu.Lock()
	got := append([]string(nil), events...)
	mu.Unlock()

	assert.Equal(t, []string{"OnStart", "OnUpdate{0}", "OnDestroy"}, got)
	assert.Equal(t, 0, manager.Count(), "entity should be absent from the registry after dispatch")
}

// TestEntityManager_MonotonicIds is scenario S6.
func TestEntityManager_MonotonicIds(t *testing.T) {
	manager := cider.NewEntityManager(cider.DefaultComponentFactory)

	first := manager.CreateEntity()
	second := manager.CreateEntity()
	assert.EqualValues(t, 1, first)
	assert.EqualValues(t, 2, second)

	manager.DestroyEntity(first)
	manager.DispatchEvent()

	third := manager.CreateEntity()
	assert.EqualValues(t, 3, third, "ids must never be reused")
}

func TestEntityManager_UnknownComponentFactoryErrors(t *testing.T) {
	manager := cider.NewEntityManager(cider.DefaultComponentFactory)
	id := manager.CreateEntity()

	err := manager.RegisterComponent(id, "NoSuchComponent")
	require.ErrorIs(t, err, cider.ErrMissingComponentFactory)
}

func TestEntityManager_UnregisterComponent(t *testing.T) {
	manager := cider.NewEntityManager(cider.DefaultComponentFactory)
	id := manager.CreateEntity()

	require.NoError(t, manager.RegisterComponent(id, "TestComponentA"))
	assert.Equal(t, 1, manager.Components().Count("TestComponentA"))

	manager.UnregisterComponent(id, "TestComponentA")
	assert.Equal(t, 0, manager.Components().Count("TestComponentA"))
}

// TestEntityManager_LedgerWiringTracksAndReleasesAllocations exercises
// spec.md §2's data-flow paragraph end to end: entity creation, component
// registration, and queue growth all route through the memory manager, and
// destroying the entity leaves no leaked record behind.
func TestEntityManager_LedgerWiringTracksAndReleasesAllocations(t *testing.T) {
	areas := cider.NewAreas()
	areas.Initialize()
	t.Cleanup(areas.Terminate)
	ledger := cider.NewDebugLedger(areas)

	manager := cider.NewEntityManager(cider.DefaultComponentFactory, cider.WithLedger(ledger))

	b0 := ledger.Bookmark()
	id := manager.CreateEntity()
	require.NoError(t, manager.RegisterComponent(id, "TestComponentA"))

	leaks := ledger.ReportLeaks(b0, ledger.Bookmark())
	assert.NotEmpty(t, leaks, "entity creation and component registration should route through the ledger")

	manager.DestroyEntity(id)
	manager.DispatchEvent()

	assert.Empty(t, ledger.ReportLeaks(b0, ledger.Bookmark()), "entity teardown should free every tracked allocation")
}

func TestChainComponentFactories(t *testing.T) {
	custom := func(name string) (cider.Component, bool) {
		if name == "Custom" {
			return cider.TestComponentA{}, true
		}
		return nil, false
	}

	chained := cider.ChainComponentFactories(custom, cider.DefaultComponentFactory)

	_, ok := chained("Custom")
	assert.True(t, ok)

	_, ok = chained("TestComponentA")
	assert.True(t, ok)

	_, ok = chained("Missing")
	assert.False(t, ok)
}
