package cider_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cidercore/cider"
)

// TestEventValue_TypeDiscrimination is scenario S5.
func TestEventValue_TypeDiscrimination(t *testing.T) {
	ev := cider.NewEventValue(cider.OnStart{})

	assert.True(t, cider.Is[cider.OnStart](ev))
	assert.False(t, cider.Is[cider.OnDestroy](ev))

	_, ok := cider.As[cider.OnStart](ev)
	assert.True(t, ok)

	_, ok = cider.As[cider.OnDestroy](ev)
	assert.False(t, ok)
}

func TestEventValue_AsReturnsPayload(t *testing.T) {
	ev := cider.NewEventValue(cider.OnUpdate{DeltaTime: 0.5})

	v, ok := cider.As[cider.OnUpdate](ev)
	assert.True(t, ok)
	assert.Equal(t, 0.5, v.DeltaTime)
}

func TestEventValue_MustAsPanicsOnMismatch(t *testing.T) {
	ev := cider.NewEventValue(cider.OnStart{})

	assert.Panics(t, func() {
		cider.MustAs[cider.OnDestroy](ev)
	})
}
