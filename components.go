package cider

import (
	"github.com/cidercore/cider/corelog"
)

// TestComponentA is a minimal diagnostic component: it logs every lifecycle
// event it receives at LevelVerbose, the reference fixture used to exercise
// entity/component event routing end-to-end.
type TestComponentA struct{}

// ComponentName identifies this component for RegisterComponent lookups.
func (TestComponentA) ComponentName() string { return "TestComponentA" }

// HandleEvent logs OnStart/OnDestroy/OnUpdate; any other event type is
// ignored.
func (TestComponentA) HandleEvent(ev EventValue) {
	switch {
	case Is[OnStart](ev):
		corelog.Log(corelog.LevelVerbose, "TestComponentA => OnStart")
	case Is[OnDestroy](ev):
		corelog.Log(corelog.LevelVerbose, "TestComponentA => OnDestroy")
	default:
		if upd, ok := As[OnUpdate](ev); ok {
			corelog.Logf(corelog.LevelVerbose, "TestComponentA => OnUpdate{ deltaTime=%f }", upd.DeltaTime)
		}
	}
}

// DefaultComponentFactory recognizes "TestComponentA"; embedding
// applications are expected to wrap or replace this with their own
// ComponentFactory that dispatches to their own component set first and
// falls back to this one.
func DefaultComponentFactory(name string) (Component, bool) {
	switch name {
	case "TestComponentA":
		return TestComponentA{}, true
	default:
		return nil, false
	}
}

// ChainComponentFactories tries each factory in order, returning the first
// match.
func ChainComponentFactories(factories ...ComponentFactory) ComponentFactory {
	return func(name string) (Component, bool) {
		for _, f := range factories {
			if f == nil {
				continue
			}
			if c, ok := f(name); ok {
				return c, true
			}
		}
		return nil, false
	}
}
