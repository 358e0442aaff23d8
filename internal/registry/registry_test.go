package registry

import (
	"testing"

	"github.com/scadform/scadform/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSet(path string) *ParamSet {
	return &ParamSet{
		Path:   path,
		Source: "a = 1;\n",
		Descriptors: []types.ParameterDescriptor{
			{Name: "a", Type: types.ParamNumber, Value: 1.0, RawValue: "1", RawLine: "a = 1;"},
		},
	}
}

func TestRegisterAndGet(t *testing.T) {
	reg := NewParamRegistry()
	reg.Register(newSet("caixa.scad"))

	set, ok := reg.Get("caixa.scad")
	require.True(t, ok)
	assert.Equal(t, "caixa.scad", set.Path)
	assert.Len(t, set.Descriptors, 1)
	assert.False(t, set.LastMod.IsZero())
	assert.Equal(t, 1, reg.Count())
}

func TestRegisterEmitsAddedThenUpdated(t *testing.T) {
	reg := NewParamRegistry()
	events := reg.Watch()

	reg.Register(newSet("caixa.scad"))
	reg.Register(newSet("caixa.scad"))

	e1 := <-events
	e2 := <-events
	assert.Equal(t, types.EventTypeAdded, e1.Type)
	assert.Equal(t, types.EventTypeUpdated, e2.Type)
	assert.Equal(t, "caixa.scad", e1.Path)
}

func TestRemove(t *testing.T) {
	reg := NewParamRegistry()
	events := reg.Watch()

	reg.Register(newSet("caixa.scad"))
	reg.Remove("caixa.scad")
	reg.Remove("caixa.scad") // second remove is a no-op

	<-events
	e := <-events
	assert.Equal(t, types.EventTypeRemoved, e.Type)
	assert.Nil(t, e.Descriptors)

	_, ok := reg.Get("caixa.scad")
	assert.False(t, ok)

	select {
	case e, open := <-events:
		if open {
			t.Fatalf("unexpected event after no-op remove: %+v", e)
		}
	default:
	}
}

func TestPathsSorted(t *testing.T) {
	reg := NewParamRegistry()
	reg.Register(newSet("b.scad"))
	reg.Register(newSet("a.scad"))
	reg.Register(newSet("c.scad"))

	assert.Equal(t, []string{"a.scad", "b.scad", "c.scad"}, reg.Paths())
}

func TestSlowWatcherDoesNotBlock(t *testing.T) {
	reg := NewParamRegistry()
	reg.Watch() // never drained

	for i := 0; i < 100; i++ {
		reg.Register(newSet("caixa.scad"))
	}
	// Reaching here without deadlock is the assertion.
	assert.Equal(t, 1, reg.Count())
}
