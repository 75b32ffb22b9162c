package splinekernel

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/notargets/goreg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allKernels(t *testing.T) (kernels []*Kernel) {
	for d := 0; d <= MaxDegree; d++ {
		k, err := NewBSplineKernel(d)
		require.NoError(t, err)
		kernels = append(kernels, k)
	}
	k, err := NewOMomsKernel(3)
	require.NoError(t, err)
	return append(kernels, k)
}

func TestKernel(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	{ // Construction
		for _, d := range []int{-1, 6, 9} {
			_, err := NewBSplineKernel(d)
			assert.True(t, errors.Is(err, types.ErrConfiguration))
		}
		_, err := NewOMomsKernel(2)
		assert.True(t, errors.Is(err, types.ErrConfiguration))
		k, err := NewBSplineKernel(3)
		require.NoError(t, err)
		assert.Equal(t, 4, k.SupportSize)
		assert.Equal(t, 0., k.Shift)
		assert.Equal(t, 1, k.HalfDegree)
		assert.Equal(t, 2, k.ActiveHalfRange())
		assert.InDelta(t, -0.2679491924311228, k.Poles[0], 1.e-15)
		k, _ = NewBSplineKernel(2)
		assert.Equal(t, 0.5, k.Shift)
		assert.Equal(t, 3, k.SupportSize)
		k, _ = NewBSplineKernel(5)
		assert.Len(t, k.Poles, 2)
		for _, p := range k.Poles {
			assert.Less(t, math.Abs(p), 1.)
		}
	}
	{ // Parsing
		k, err := ParseKernel("bspline:d=2")
		require.NoError(t, err)
		assert.Equal(t, 2, k.Degree)
		k, err = ParseKernel("omoms3")
		require.NoError(t, err)
		assert.Equal(t, OMoms, k.Family)
		k, err = ParseKernel("bspline")
		require.NoError(t, err)
		assert.Equal(t, 3, k.Degree)
		assert.Equal(t, "bspline:d=3", k.String())
		for _, bad := range []string{"bspline:d=7", "cubic", "bspline:n=2", "omoms:d=5"} {
			_, err = ParseKernel(bad)
			assert.True(t, errors.Is(err, types.ErrConfiguration), bad)
		}
	}
	{ // Partition of unity, and derivatives sum to zero
		for _, k := range allKernels(t) {
			w := make([]float64, k.SupportSize)
			for i := 0; i < 200; i++ {
				x := 40*rnd.Float64() - 20
				k.Weights(x, w)
				var sum float64
				for _, v := range w {
					sum += v
				}
				assert.InDelta(t, 1., sum, 1.e-12, "kernel %s x=%v", k, x)
				for order := 1; order <= k.Degree; order++ {
					k.DerivativeWeights(x, order, w)
					sum = 0
					for _, v := range w {
						sum += v
					}
					assert.InDelta(t, 0., sum, 1.e-10, "kernel %s order %d", k, order)
				}
			}
		}
	}
	{ // Closed forms agree with the recurrence
		for _, k := range allKernels(t) {
			var (
				w = make([]float64, k.SupportSize)
			)
			for i := 0; i < 100; i++ {
				x := 10*rnd.Float64() - 5
				for order := 0; order <= 2; order++ {
					start := k.DerivativeWeights(x, order, w)
					assert.Equal(t, k.Start(x), start)
					for j := range w {
						assert.InDelta(t, k.WeightAt(x-float64(start+j), order), w[j], 1.e-12,
							"kernel %s order %d x %v", k, order, x)
					}
				}
			}
		}
	}
	{ // Derivative weights match finite differences of the value weights
		for _, k := range allKernels(t) {
			if k.Degree < 2 {
				continue
			}
			var (
				h      = 1.e-6
				wp, wm = make([]float64, k.SupportSize), make([]float64, k.SupportSize)
				dw     = make([]float64, k.SupportSize)
			)
			x := 2.37
			k.Weights(x+h, wp)
			k.Weights(x-h, wm)
			k.DerivativeWeights(x, 1, dw)
			for j := range dw {
				assert.InDelta(t, (wp[j]-wm[j])/(2*h), dw[j], 1.e-6)
			}
		}
	}
	{ // Known values
		k, _ := NewBSplineKernel(3)
		w := make([]float64, 4)
		start := k.Weights(5, w)
		assert.Equal(t, 4, start)
		assert.InDeltaSlice(t, []float64{1. / 6, 2. / 3, 1. / 6, 0}, w, 1.e-15)
		k1, _ := NewBSplineKernel(1)
		start = k1.Weights(-0.25, w)
		assert.Equal(t, -1, start)
		assert.InDeltaSlice(t, []float64{0.25, 0.75}, w[:2], 1.e-15)
		k0, _ := NewBSplineKernel(0)
		assert.Equal(t, 3, k0.Weights(2.5, w))
		assert.Equal(t, 2, k0.Weights(2.49, w))
	}
}

func TestCache(t *testing.T) {
	k, _ := NewBSplineKernel(3)
	bc, err := NewBoundaryCondition("mirror", 10)
	require.NoError(t, err)
	c := k.NewCache(bc, false)
	assert.True(t, math.IsNaN(c.X))
	assert.Equal(t, 6, c.IndexLimit)
	{ // Inside the domain the indices are contiguous
		k.Evaluate(4.5, c)
		assert.True(t, c.IsFlat)
		assert.Equal(t, 3, c.StartIndex)
		assert.Equal(t, []int{3, 4, 5, 6}, c.Index)
	}
	{ // Same x leaves the cache alone, even if it was tampered with
		c.Weights[0] = 99
		k.Evaluate(4.5, c)
		assert.Equal(t, 99., c.Weights[0])
	}
	{ // Near the boundary the indices fold and the flat flag is refreshed
		k.Evaluate(0.2, c)
		assert.False(t, c.IsFlat)
		assert.Equal(t, -1, c.StartIndex)
		assert.Equal(t, []int{1, 0, 1, 2}, c.Index)
		k.Evaluate(8.7, c)
		assert.False(t, c.IsFlat)
		assert.Equal(t, []int{7, 8, 9, 8}, c.Index)
		k.Evaluate(5.1, c)
		assert.True(t, c.IsFlat)
	}
	{ // A derivative request at the same x recomputes
		k.Evaluate(5.1, c)
		w := append([]float64{}, c.Weights...)
		k.EvaluateDerivative(5.1, 1, c)
		assert.NotEqual(t, w, c.Weights)
		assert.Equal(t, 1, c.Order)
	}
	{ // NeverFlat caches always report folded indices
		nc := k.NewCache(bc, true)
		k.Evaluate(4.5, nc)
		assert.False(t, nc.IsFlat)
		assert.Equal(t, []int{3, 4, 5, 6}, nc.Index)
	}
	{ // Zero boundary drops weights outside
		zbc, _ := NewBoundaryCondition("zero", 10)
		zc := k.NewCache(zbc, false)
		k.Evaluate(0.5, zc)
		assert.Equal(t, 0., zc.Weights[0])
		assert.Equal(t, 0, zc.Index[0])
	}
}
