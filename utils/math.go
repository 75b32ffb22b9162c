package utils

import (
	"math"
)

// POW avoids math.Pow for the small integer powers used by the spline polynomials
func POW(x float64, pp int) (y float64) {
	var (
		p       = pp
		flipped bool
	)
	if pp > 6 || pp < -6 {
		return math.Pow(x, float64(p))
	}
	if p < 0 {
		p = -pp
		flipped = true
	}
	switch p {
	case 0:
		y = 1
	case 1:
		y = x
	case 2:
		y = x * x
	case 3:
		y = x * x * x
	case 4:
		y = x * x
		y = y * y
	case 5:
		y = x * x
		y = y * y * x
	case 6:
		y = x * x
		y = y * y * y
	}
	if flipped {
		y = 1. / y
	}
	return
}

// Log2Floor returns floor(log2(n)) for n >= 1, and 0 otherwise
func Log2Floor(n int) (l int) {
	for n > 1 {
		n >>= 1
		l++
	}
	return
}
