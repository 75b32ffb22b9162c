package splinekernel

import (
	"math"

	"github.com/notargets/goreg/utils"
)

// bspline evaluates the order-th derivative of the centered B-spline of the given
// degree. The degree 0 spline is taken on [-1/2, 1/2) so that shifted copies form
// an exact partition of unity.
func bspline(degree, order int, t float64) float64 {
	if order > degree {
		return 0
	}
	if order > 0 {
		return bspline(degree-1, order-1, t+0.5) - bspline(degree-1, order-1, t-0.5)
	}
	if degree == 0 {
		if t >= -0.5 && t < 0.5 {
			return 1
		}
		return 0
	}
	var (
		n = float64(degree)
		h = (n + 1) / 2
	)
	if math.Abs(t) >= h {
		return 0
	}
	return ((t+h)*bspline(degree-1, 0, t+0.5) + (h-t)*bspline(degree-1, 0, t-0.5)) / n
}

// closedForm handles the frequent low degree cases, it reports false when the
// recurrence has to be used instead.
func (k *Kernel) closedForm(x float64, start, order int, w []float64) bool {
	var (
		f = x - float64(start+k.HalfDegree) // offset from the centre sample
	)
	switch {
	case k.Family == OMoms:
		if order > 2 {
			return false
		}
		cubicWeights(f, order, w)
		var w2 [4]float64
		if order == 0 {
			cubicWeights(f, 2, w2[:])
			for i := range w2 {
				w[i] += w2[i] / 42.
			}
		} else if order == 1 {
			// third derivative of the cubic is piecewise constant
			w[0] += -1. / 42.
			w[1] += 3. / 42.
			w[2] += -3. / 42.
			w[3] += 1. / 42.
		}
		return true
	case k.Degree == 0:
		if order == 0 {
			w[0] = 1
		} else {
			w[0] = 0
		}
		return true
	case k.Degree == 1:
		switch order {
		case 0:
			w[0], w[1] = 1-f, f
		case 1:
			w[0], w[1] = -1, 1
		default:
			w[0], w[1] = 0, 0
		}
		return true
	case k.Degree == 2 && order <= 1:
		// f in [-1/2, 1/2)
		if order == 0 {
			w[0] = 0.5 * utils.POW(0.5-f, 2)
			w[1] = 0.75 - f*f
			w[2] = 0.5 * utils.POW(0.5+f, 2)
		} else {
			w[0] = f - 0.5
			w[1] = -2 * f
			w[2] = f + 0.5
		}
		return true
	case k.Degree == 3 && order <= 2:
		cubicWeights(f, order, w)
		return true
	}
	return false
}

// cubicWeights for the fractional offset f in [0,1)
func cubicWeights(f float64, order int, w []float64) {
	var (
		g = 1 - f
	)
	switch order {
	case 0:
		w[0] = utils.POW(g, 3) / 6.
		w[1] = 2./3. - f*f + 0.5*utils.POW(f, 3)
		w[3] = utils.POW(f, 3) / 6.
		w[2] = 1. - w[0] - w[1] - w[3]
	case 1:
		w[0] = -0.5 * g * g
		w[1] = -2*f + 1.5*f*f
		w[3] = 0.5 * f * f
		w[2] = -w[0] - w[1] - w[3]
	case 2:
		w[0] = g
		w[1] = 3*f - 2
		w[2] = 1 - 3*f
		w[3] = f
	}
}
