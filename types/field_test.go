package types

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r2"
)

func TestTypes(t *testing.T) {
	{ // Size indexing and regions
		s := NewSize(4, 3)
		assert.Equal(t, 12, s.Product())
		assert.Equal(t, 3, s.Min())
		assert.Equal(t, 7, s.Linear(3, 1))
		assert.Equal(t, image.Rect(0, 0, 4, 3), s.ClipRegion(image.Rectangle{}))
		assert.Equal(t, image.Rect(2, 1, 4, 3), s.ClipRegion(image.Rect(2, 1, 10, 10)))
		assert.True(t, NewSize(0, 3).IsEmpty())
		assert.Equal(t, "4x3", s.String())
	}
	{ // Vector field flatten round trip and deep clone
		vf := NewVectorField(NewSize(2, 2))
		vf.Set(1, 1, r2.Vec{X: 3, Y: 4})
		params := make([]float64, 8)
		vf.Flatten(params)
		assert.Equal(t, []float64{0, 0, 0, 0, 0, 0, 3, 4}, params)
		c := vf.Clone()
		c.Set(0, 0, r2.Vec{X: 1})
		assert.Equal(t, r2.Vec{}, vf.At(0, 0))
		c.Unflatten(params)
		assert.Equal(t, vf.Data, c.Data)
		assert.Equal(t, 5., vf.MaxNorm())
		vf.ScaleAxes(2, -1)
		assert.Equal(t, r2.Vec{X: 6, Y: -4}, vf.At(1, 1))
		assert.Panics(t, func() { vf.Flatten(make([]float64, 3)) })
	}
}
