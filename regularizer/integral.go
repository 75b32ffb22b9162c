package regularizer

import (
	"math"

	"gonum.org/v1/gonum/integrate/quad"

	"github.com/notargets/goreg/splinekernel"
)

type integralKey struct {
	orderA, orderB int
	delta          int
	low, high      float64 // integration limits relative to the first basis function
}

// IntegralCache memoizes ∫ B^(a)(x-k) B^(b)(x-m) dx over a clipped interval.
// Away from the clip limits the value only depends on m-k and the orders.
type IntegralCache struct {
	kernel *splinekernel.Kernel
	values map[integralKey]float64
}

// piecewise polynomial degree is at most 2*MaxDegree, this many Gauss points are exact
const gaussPoints = splinekernel.MaxDegree + 1

func NewIntegralCache(kernel *splinekernel.Kernel) *IntegralCache {
	return &IntegralCache{
		kernel: kernel,
		values: make(map[integralKey]float64),
	}
}

func (ic *IntegralCache) Len() int { return len(ic.values) }

// Get returns the integral over [lo, hi] of the orderA derivative of the basis
// function at k times the orderB derivative of the basis function at m.
func (ic *IntegralCache) Get(k, m, orderA, orderB int, lo, hi float64) (r float64) {
	var (
		R    = ic.kernel.NonzeroRadius()
		low  = math.Max(float64(max(k, m))-R, lo)
		high = math.Min(float64(min(k, m))+R, hi)
	)
	if high <= low {
		return 0
	}
	key := integralKey{
		orderA: orderA,
		orderB: orderB,
		delta:  m - k,
		low:    low - float64(k),
		high:   high - float64(k),
	}
	var ok bool
	if r, ok = ic.values[key]; ok {
		return
	}
	r = ic.integrate(key)
	ic.values[key] = r
	return
}

func (ic *IntegralCache) integrate(key integralKey) (sum float64) {
	var (
		delta = float64(key.delta)
		f     = func(t float64) float64 {
			return ic.kernel.WeightAt(t, key.orderA) * ic.kernel.WeightAt(t-delta, key.orderB)
		}
	)
	// knots of both functions lie on the half integer lattice
	for t0 := key.low; t0 < key.high; {
		t1 := math.Min(math.Floor(2*t0+1)/2, key.high)
		sum += quad.Fixed(f, t0, t1, gaussPoints, quad.Legendre{}, 0)
		t0 = t1
	}
	return
}
