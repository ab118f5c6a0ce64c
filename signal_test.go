package cider_test

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cidercore/cider"
)

// TestSignal_ReentrantConnect is scenario S3: a slot that connects another
// slot mid-emission must not see the new slot invoked during the same
// emission, only on the next one.
func TestSignal_ReentrantConnect(t *testing.T) {
	s := cider.NewSignal[struct{}]()

	var aCount, bCount int32
	var bConn cider.Connection

	var connectOnce func()
	connectOnce = func() {
		bConn = s.Connect(func(struct{}) {
			atomic.AddInt32(&bCount, 1)
		})
	}

	s.Connect(func(struct{}) {
		atomic.AddInt32(&aCount, 1)
		connectOnce()
	})

	s.Emit(struct{}{})
	assert.EqualValues(t, 1, atomic.LoadInt32(&aCount))
	assert.EqualValues(t, 0, atomic.LoadInt32(&bCount))

	s.Emit(struct{}{})
	assert.EqualValues(t, 2, atomic.LoadInt32(&aCount))
	assert.EqualValues(t, 1, atomic.LoadInt32(&bCount))

	require.True(t, bConn.Valid())
}

func TestSignal_DisconnectDuringEmission(t *testing.T) {
	s := cider.NewSignal[int]()

	var conn cider.Connection
	var calls int

	conn = s.Connect(func(int) {
		calls++
		conn.Disconnect()
	})
	other := s.Connect(func(int) {
		calls++
	})

	s.Emit(1)
	assert.Equal(t, 2, calls)
	assert.False(t, conn.Valid())
	assert.True(t, other.Valid())

	s.Emit(1)
	assert.Equal(t, 3, calls, "disconnected slot should not run on the next emission")
}

func TestSignal_DisconnectBeforeFirstEmitNeverRuns(t *testing.T) {
	s := cider.NewSignal[int]()

	var ran bool
	conn := s.Connect(func(int) { ran = true })
	conn.Disconnect()

	s.Emit(1)
	assert.False(t, ran)
	assert.Equal(t, 0, s.InvocationCount())
}

func TestReturnSignal_CollectsResults(t *testing.T) {
	s := cider.NewReturnSignal[int, int]()

	s.Connect(func(n int) int { return n + 1 })
	s.Connect(func(n int) int { return n * 2 })

	results := s.Emit(10)
	require.Len(t, results, 2)
	assert.ElementsMatch(t, []int{11, 20}, results)
}

func TestSignal_SlotPanicPropagatesAsSlotFailure(t *testing.T) {
	s := cider.NewSignal[int]()
	s.Connect(func(int) { panic("boom") })

	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		var failure *cider.SlotFailure
		require.ErrorAs(t, err, &failure)
	}()

	s.Emit(1)
}

func TestScopedConnection_DisconnectsPrevious(t *testing.T) {
	s := cider.NewSignal[int]()

	var scoped cider.ScopedConnection
	var firstCalls, secondCalls int

	scoped.Reset(s.Connect(func(int) { firstCalls++ }))
	scoped.Reset(s.Connect(func(int) { secondCalls++ }))

	s.Emit(1)
	assert.Equal(t, 0, firstCalls)
	assert.Equal(t, 1, secondCalls)

	scoped.Disconnect()
	s.Emit(1)
	assert.Equal(t, 1, secondCalls)
}
