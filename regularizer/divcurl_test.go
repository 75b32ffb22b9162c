package regularizer

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/notargets/goreg/splinekernel"
	"github.com/notargets/goreg/types"
	"github.com/notargets/goreg/utils"
)

// polynomialField fills interleaved coefficients from per-index functions
func polynomialField(size types.Size, fx, fy func(k, l float64) float64) (c []float64) {
	c = make([]float64, 2*size.Product())
	for l := 0; l < size.Y; l++ {
		for k := 0; k < size.X; k++ {
			i := size.Linear(k, l)
			c[2*i] = fx(float64(k), float64(l))
			c[2*i+1] = fy(float64(k), float64(l))
		}
	}
	return
}

func TestIntegralCache(t *testing.T) {
	k, _ := splinekernel.NewBSplineKernel(3)
	ic := NewIntegralCache(k)
	{ // ∫β3(x)² over the full line is 151/315
		assert.InDelta(t, 151./315., ic.Get(5, 5, 0, 0, -100, 100), 1.e-13)
		// ∫β3(x)β3(x-1) = 397/1680
		assert.InDelta(t, 397./1680., ic.Get(5, 6, 0, 0, -100, 100), 1.e-13)
		// integrals of derivative products are antisymmetric in the order swap
		assert.InDelta(t, -ic.Get(5, 6, 1, 0, -100, 100), ic.Get(5, 6, 0, 1, -100, 100), 1.e-13)
	}
	{ // No overlap and clipped intervals
		assert.Equal(t, 0., ic.Get(0, 4, 0, 0, -100, 100))
		half := ic.Get(5, 5, 0, 0, 5, 100)
		assert.InDelta(t, 151./630., half, 1.e-13)
		n := ic.Len()
		ic.Get(9, 9, 0, 0, 9, 100)
		assert.Equal(t, n, ic.Len())
	}
}

func TestDivCurl(t *testing.T) {
	var (
		size   = types.NewSize(8, 7)
		margin = 1
		area   = float64((size.X - 1 - 2*margin) * (size.Y - 1 - 2*margin))
	)
	k, err := splinekernel.NewBSplineKernel(3)
	require.NoError(t, err)
	{ // Linear fields carry no energy
		dc := NewDivCurl(size, r2.Vec{X: 1, Y: 1}, margin, k, 1, 1)
		c := polynomialField(size,
			func(x, y float64) float64 { return 0.3 + 0.1*x - 0.2*y },
			func(x, y float64) float64 { return -0.5 + 0.7*x + 0.4*y })
		assert.InDelta(t, 0., dc.Multiply(c), 1.e-10)
	}
	{ // u = (x², 0): |∇div u|² = 4, curl vanishes
		c := polynomialField(size,
			func(x, y float64) float64 { return x*x - 1./3. },
			func(x, y float64) float64 { return 0 })
		dc := NewDivCurl(size, r2.Vec{X: 1, Y: 1}, margin, k, 1, 0)
		assert.InDelta(t, 4*area, dc.Multiply(c), 1.e-9)
		dc.Reset(size, r2.Vec{X: 1, Y: 1}, margin, k, 0, 1)
		assert.InDelta(t, 0., dc.Multiply(c), 1.e-9)
		// physical units scale the energy by h²
		dc.Reset(size, r2.Vec{X: 0.5, Y: 0.5}, margin, k, 1, 0)
		assert.InDelta(t, 4*area*0.25, dc.Multiply(c), 1.e-9)
	}
	{ // u = (-y², 0): |∇curl u|² = 4, divergence vanishes
		c := polynomialField(size,
			func(x, y float64) float64 { return -(y*y - 1./3.) },
			func(x, y float64) float64 { return 0 })
		dc := NewDivCurl(size, r2.Vec{X: 1, Y: 1}, margin, k, 0, 3)
		assert.InDelta(t, 3*4*area, dc.Multiply(c), 1.e-9)
	}
	{ // u = (xy, 0) couples both terms: div = y, curl = -x
		c := polynomialField(size,
			func(x, y float64) float64 { return x * y },
			func(x, y float64) float64 { return 0 })
		dc := NewDivCurl(size, r2.Vec{X: 1, Y: 1}, margin, k, 2, 5)
		assert.InDelta(t, (2+5)*area, dc.Multiply(c), 1.e-9)
	}
	{ // Mixed field through the cross terms: u = (0, xy) has div = x, curl = y
		c := polynomialField(size,
			func(x, y float64) float64 { return 0 },
			func(x, y float64) float64 { return x * y })
		dc := NewDivCurl(size, r2.Vec{X: 1, Y: 1}, margin, k, 2, 5)
		assert.InDelta(t, (2+5)*area, dc.Multiply(c), 1.e-9)
		// u = (x², xy): div = 3x, ∇div = (3,0); curl = y, ∇curl = (0,1)
		c = polynomialField(size,
			func(x, y float64) float64 { return x*x - 1./3. },
			func(x, y float64) float64 { return x * y })
		assert.InDelta(t, (2*9+5*1)*area, dc.Multiply(c), 1.e-8)
	}
	{ // Reset is a no-op for identical configuration
		dc := NewDivCurl(size, r2.Vec{X: 1, Y: 1}, margin, k, 1, 1)
		assert.False(t, dc.Reset(size, r2.Vec{X: 1, Y: 1}, margin, k, 1, 1))
		assert.True(t, dc.Reset(size, r2.Vec{X: 1, Y: 1}, margin, k, 1, 2))
		k2, _ := splinekernel.NewBSplineKernel(3)
		assert.False(t, dc.Reset(size, r2.Vec{X: 1, Y: 1}, margin, k2, 1, 2))
		assert.Equal(t, size.Product(), dc.Nodes())
	}
	{ // Degenerate configurations give an empty operator
		dc := NewDivCurl(size, r2.Vec{X: 0, Y: 1}, margin, k, 1, 1)
		assert.Empty(t, dc.Entries())
		assert.Equal(t, 0., dc.Multiply(make([]float64, 2*size.Product())))
		dc = NewDivCurl(types.NewSize(3, 3), r2.Vec{X: 1, Y: 1}, 1, k, 1, 1)
		assert.Empty(t, dc.Entries())
		assert.Panics(t, func() { dc.Multiply(make([]float64, 3)) })
		dc = NewDivCurl(types.Size{}, r2.Vec{X: 1, Y: 1}, 1, k, 1, 1)
		assert.Nil(t, dc.Q)
		assert.Equal(t, 0., dc.Evaluate(nil, nil))
	}
}

func TestDivCurlOperator(t *testing.T) {
	var (
		size = types.NewSize(6, 5)
		rnd  = rand.New(rand.NewSource(7))
	)
	k, _ := splinekernel.NewBSplineKernel(3)
	dc := NewDivCurl(size, r2.Vec{X: 0.8, Y: 1.3}, 1, k, 1.5, 0.7)
	Q := dc.Q
	n := 2 * size.Product()
	c := make([]float64, n)
	for i := range c {
		c[i] = rnd.NormFloat64()
	}
	{ // Q is the symmetric form of the coupling list
		var direct float64
		for _, p := range dc.Entries() {
			direct += c[2*p.I]*c[2*p.J]*p.XX + c[2*p.I]*c[2*p.J+1]*p.XY + c[2*p.I+1]*c[2*p.J+1]*p.YY
		}
		grad := make([]float64, n)
		e := dc.Evaluate(c, grad)
		assert.InDelta(t, direct, e, 1.e-9*math.Abs(e))
		assert.InDelta(t, utils.QuadraticForm(Q, c), e, 1.e-9*math.Abs(e))
		assert.InDelta(t, dc.Multiply(c), e, 1.e-9*math.Abs(e))
		qc, qtc := make([]float64, n), make([]float64, n)
		Q.MulVecTo(qc, false, c)
		Q.MulVecTo(qtc, true, c)
		assert.InDeltaSlice(t, qc, qtc, 1.e-12)
		for i := range grad {
			assert.InDelta(t, 2*qc[i], grad[i], 1.e-9)
		}
		// the gradient accumulates
		e2 := dc.Evaluate(c, grad)
		assert.Equal(t, e, e2)
		for i := range grad {
			assert.InDelta(t, 4*qc[i], grad[i], 1.e-9)
		}
	}
	{ // Gradient matches central differences
		grad := make([]float64, n)
		dc.Evaluate(c, grad)
		h := 1.e-5
		for _, i := range []int{0, 7, 13, 30, n - 1} {
			cp := append([]float64{}, c...)
			cm := append([]float64{}, c...)
			cp[i] += h
			cm[i] -= h
			fd := (dc.Multiply(cp) - dc.Multiply(cm)) / (2 * h)
			assert.InDelta(t, fd, grad[i], 1.e-6*math.Max(1, math.Abs(fd)))
		}
	}
	{ // Positive semi-definite
		var (
			D   = Q.ToDense()
			sym = mat.NewSymDense(n, nil)
			es  mat.EigenSym
		)
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				sym.SetSym(i, j, 0.5*(D.At(i, j)+D.At(j, i)))
			}
		}
		require.True(t, es.Factorize(sym, false))
		vals := es.Values(nil)
		maxVal := vals[len(vals)-1]
		assert.Greater(t, maxVal, 0.)
		for _, v := range vals {
			assert.GreaterOrEqual(t, v, -1.e-10*maxVal)
		}
	}
}
