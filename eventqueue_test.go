package cider_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cidercore/cider"
)

func TestEventQueue_DrainsInSubmissionOrder(t *testing.T) {
	q := cider.NewEventQueue[int]()

	var order []int
	q.Connect(func(n int) { order = append(order, n) })

	q.Enqueue(1)
	q.Enqueue(2)
	q.Enqueue(3)
	require.Equal(t, 3, q.Len())

	q.Emit()
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Zero(t, q.Len())
}

func TestEventQueue_EnqueueDuringEmitDefersToNextEmit(t *testing.T) {
	q := cider.NewEventQueue[int]()

	var order []int
	q.Connect(func(n int) {
		order = append(order, n)
		if n == 1 {
			q.Enqueue(2)
		}
	})

	q.Enqueue(1)
	q.Emit()
	assert.Equal(t, []int{1}, order)

	q.Emit()
	assert.Equal(t, []int{1, 2}, order)
}
