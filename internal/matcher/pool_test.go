package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/example/visit-trip-linker/internal/models"
)

func TestLegPoolRemoveKeepsIndices(t *testing.T) {
	p := NewLegPool([]models.TripLeg{
		{TripGroupID: "a"}, {TripGroupID: "b"}, {TripGroupID: "a"}, {TripGroupID: "c"},
	})
	assert.Equal(t, 4, p.Len())

	p.Remove(1)
	p.Remove(1)
	assert.Equal(t, 3, p.Len())

	_, ok := p.At(1)
	assert.False(t, ok)
	l, ok := p.At(2)
	assert.True(t, ok)
	assert.Equal(t, "a", l.TripGroupID)

	assert.Equal(t, 0, p.Next(0))
	assert.Equal(t, 2, p.Next(1))
	assert.Equal(t, -1, p.Next(4))
}

func TestLegPoolFindGroup(t *testing.T) {
	p := NewLegPool([]models.TripLeg{
		{TripGroupID: "a"}, {TripGroupID: "b"}, {TripGroupID: "a"}, {TripGroupID: "a"},
	})
	i, ok := p.FindGroup(1, "a")
	assert.True(t, ok)
	assert.Equal(t, 2, i)

	p.Remove(2)
	i, ok = p.FindGroup(1, "a")
	assert.True(t, ok)
	assert.Equal(t, 3, i)

	_, ok = p.FindGroup(0, "z")
	assert.False(t, ok)
	_, ok = p.FindGroup(4, "a")
	assert.False(t, ok)
}

func TestLegPoolOutOfRange(t *testing.T) {
	p := NewLegPool(nil)
	_, ok := p.At(0)
	assert.False(t, ok)
	p.Remove(3)
	assert.Equal(t, 0, p.Len())
	assert.Equal(t, -1, p.Next(-2))
}
