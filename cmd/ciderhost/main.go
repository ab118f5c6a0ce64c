// Command ciderhost is a small demonstration process wiring together the
// memory areas, debug ledger, and entity/component simulation loop exposed
// by this module, driving a handful of ticks against a single
// TestComponentA-bearing entity.
package main

import (
	"time"

	"github.com/cidercore/cider"
	"github.com/cidercore/cider/corelog"
)

func main() {
	areas := cider.NewAreas()
	areas.Initialize()
	defer areas.Terminate()

	ledger := cider.NewDebugLedger(areas)

	manager := cider.NewEntityManager(cider.DefaultComponentFactory, cider.WithLedger(ledger))

	id := manager.CreateEntity()
	if err := manager.RegisterComponent(id, "TestComponentA"); err != nil {
		corelog.Logf(corelog.LevelError, "register component failed: %v", err)
		return
	}

	const ticks = 5
	const dt = 1.0 / 60.0

	for i := 0; i < ticks; i++ {
		manager.BroadcastEvent(cider.OnUpdate{DeltaTime: dt})
		manager.DispatchEvent()
		time.Sleep(time.Millisecond)
	}

	manager.DestroyEntity(id)
	manager.DispatchEvent()

	if leaks := ledger.ReportLeaks(0, 0); len(leaks) > 0 {
		ledger.PrintAll()
	}
}
