package cider_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cidercore/cider"
)

func newTestLedger(t *testing.T) (*cider.Areas, *cider.DebugLedger) {
	t.Helper()
	areas := newTestAreas(t)
	ledger := cider.NewDebugLedger(areas)
	return areas, ledger
}

// TestLedger_LeakDetection is scenario S1: allocate, observe one leak in the
// bookmark window, free it, observe zero.
func TestLedger_LeakDetection(t *testing.T) {
	_, ledger := newTestLedger(t)

	b0 := ledger.Bookmark()
	addr, err := ledger.AllocTracked("s1_test.go", 1, cider.AreaApplication, 24, 1)
	require.NoError(t, err)
	b1 := ledger.Bookmark()

	leaks := ledger.ReportLeaks(b0, b1)
	require.Len(t, leaks, 1)
	assert.Equal(t, 24, leaks[0].Size)

	require.NoError(t, ledger.FreeTracked(cider.AreaApplication, addr))

	leaks = ledger.ReportLeaks(b0, ledger.Bookmark())
	assert.Empty(t, leaks)
}

// TestLedger_OverrunTrap is scenario S2: allocate 16 bytes, write 20 (past
// the payload by trapSize=4), expect CheckTrap to report one corruption.
func TestLedger_OverrunTrap(t *testing.T) {
	_, ledger := newTestLedger(t)

	b0 := ledger.Bookmark()
	addr, err := ledger.AllocTracked("s2_test.go", 1, cider.AreaApplication, 16, 1)
	require.NoError(t, err)

	require.Nil(t, ledger.CheckTrap(b0, ledger.Bookmark()))

	leaks := ledger.ReportLeaks(b0, ledger.Bookmark())
	require.Len(t, leaks, 1)
	rec := leaks[0]

	payload := ledger.Payload(rec)
	require.Len(t, payload, 16)
	require.Equal(t, 20, cap(payload))

	overrun := payload[:20]
	for i := range overrun {
		overrun[i] = 0xFF
	}

	overrunErr := ledger.CheckTrap(b0, ledger.Bookmark())
	require.NotNil(t, overrunErr)
	assert.Equal(t, addr, overrunErr.Record.Address)
	assert.ErrorContains(t, overrunErr, "heap overrun")
}

func TestLedger_FreeUntrackedAddressIsReported(t *testing.T) {
	_, ledger := newTestLedger(t)
	err := ledger.FreeTracked(cider.AreaApplication, 0xdeadbeef)
	require.ErrorIs(t, err, cider.ErrMissingEntity)
}

func TestLedger_CapacityOverflowIsReported(t *testing.T) {
	areas := newTestAreas(t)
	ledger := cider.NewDebugLedger(areas, cider.WithLedgerCapacity(1))

	_, err := ledger.AllocTracked("overflow_test.go", 1, cider.AreaApplication, 8, 1)
	require.NoError(t, err)

	_, err = ledger.AllocTracked("overflow_test.go", 2, cider.AreaApplication, 8, 1)
	require.ErrorIs(t, err, cider.ErrLedgerFull)
}
