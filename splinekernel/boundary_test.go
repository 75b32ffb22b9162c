package splinekernel

import (
	"errors"
	"math"
	"testing"

	"github.com/notargets/goreg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundaryConditions(t *testing.T) {
	{ // Mirror folding
		bc := &MirrorBC{width: 5}
		var got []int
		for i := -6; i <= 12; i++ {
			got = append(got, bc.Fold(i))
		}
		assert.Equal(t, []int{2, 3, 4, 3, 2, 1, 0, 1, 2, 3, 4, 3, 2, 1, 0, 1, 2, 3, 4}, got)
		one := &MirrorBC{width: 1}
		assert.Equal(t, 0, one.Fold(-3))
		assert.Equal(t, 0, one.Fold(7))
	}
	{ // Repeat clamps
		bc, err := NewBoundaryCondition("repeat", 4)
		require.NoError(t, err)
		idx := []int{-2, -1, 0, 5}
		w := []float64{1, 1, 1, 1}
		bc.Apply(idx, w)
		assert.Equal(t, []int{0, 0, 0, 3}, idx)
		assert.Equal(t, []float64{1, 1, 1, 1}, w)
	}
	{ // Configuration errors
		_, err := NewBoundaryCondition("periodic", 4)
		assert.True(t, errors.Is(err, types.ErrConfiguration))
		_, err = NewBoundaryCondition("mirror", 0)
		assert.True(t, errors.Is(err, types.ErrInvalidArgument))
		k4, _ := NewBSplineKernel(4)
		_, err = NewBoundaryConditionFor("zero", 8, k4)
		assert.True(t, errors.Is(err, types.ErrConfiguration))
		_, err = NewBoundaryConditionFor("repeat", 8, k4)
		assert.True(t, errors.Is(err, types.ErrConfiguration))
		bc, err := NewBoundaryConditionFor("mirror", 8, k4)
		assert.NoError(t, err)
		assert.Equal(t, "mirror", bc.Clone().Name())
	}
}

func TestPrefilter(t *testing.T) {
	samples := []float64{1, 3, -2, 0.5, 4, 4, 2, -1, 0, 2.5, 1}
	{ // Mirror pre-filtering makes the spline interpolate the samples
		for _, d := range []int{2, 3, 4, 5} {
			k, _ := NewBSplineKernel(d)
			bc, err := NewBoundaryConditionFor("mirror", len(samples), k)
			require.NoError(t, err)
			coeff := append([]float64{}, samples...)
			bc.FilterLine(coeff, k.Poles)
			c := k.NewCache(bc, false)
			for i, s := range samples {
				k.Evaluate(float64(i), c)
				var v float64
				for j, idx := range c.Index {
					v += c.Weights[j] * coeff[idx]
				}
				assert.InDelta(t, s, v, 1.e-9, "degree %d sample %d", d, i)
			}
		}
	}
	{ // Constant signals stay constant under every boundary condition
		k, _ := NewBSplineKernel(3)
		for _, name := range BCNames() {
			bc, err := NewBoundaryConditionFor(name, 7, k)
			require.NoError(t, err)
			coeff := []float64{2, 2, 2, 2, 2, 2, 2}
			bc.FilterLine(coeff, k.Poles)
			if name == "zero" {
				continue
			}
			for _, v := range coeff {
				assert.InDelta(t, 2., v, 1.e-12, name)
			}
		}
	}
	{ // Kernels without poles and single samples are untouched
		k, _ := NewBSplineKernel(1)
		bc, _ := NewBoundaryCondition("mirror", 3)
		coeff := []float64{1, 2, 3}
		bc.FilterLine(coeff, k.Poles)
		assert.Equal(t, []float64{1, 2, 3}, coeff)
		one := []float64{math.Pi}
		bc.FilterLine(one, []float64{-0.5})
		assert.Equal(t, math.Pi, one[0])
	}
}
