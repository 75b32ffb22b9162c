package regularizer

import (
	"fmt"
	"math"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/notargets/goreg/splinekernel"
	"github.com/notargets/goreg/types"
	"github.com/notargets/goreg/utils"
)

// Entry couples the coefficients I (x component) and J (y component) of the
// displacement field:
//
//	E += ci.x*cj.x*XX + ci.x*cj.y*XY + ci.y*cj.y*YY
type Entry struct {
	I, J       int
	XX, XY, YY float64
}

// DropThreshold relative to the largest entry, below which couplings are dropped
const DropThreshold = 1.e-13

// DivCurl is the quadratic form of the energy
//
//	wd ∫|∇ div u|² + wr ∫|∇ curl u|²
//
// for a displacement u expanded in spline coefficients on a grid of Size.
// Scale converts physical length to coefficient units per axis, integration runs
// over [Margin, Size-1-Margin] in coefficient units.
type DivCurl struct {
	Size   types.Size
	Scale  r2.Vec
	Margin int
	Kernel *splinekernel.Kernel
	Wd, Wr float64

	entries []Entry
	nodes   int
	// Q is the symmetric operator with E = cᵀQc
	Q   *sparse.CSR
	buf []float64
}

func NewDivCurl(size types.Size, scale r2.Vec, margin int, kernel *splinekernel.Kernel,
	wd, wr float64) (dc *DivCurl) {
	dc = &DivCurl{}
	dc.Reset(size, scale, margin, kernel, wd, wr)
	return
}

// Reset rebuilds the couplings unless the configuration is unchanged
func (dc *DivCurl) Reset(size types.Size, scale r2.Vec, margin int, kernel *splinekernel.Kernel,
	wd, wr float64) (rebuilt bool) {
	if dc.Kernel != nil && dc.Size == size && dc.Scale == scale && dc.Margin == margin &&
		dc.Kernel.Equal(kernel) && dc.Wd == wd && dc.Wr == wr {
		return false
	}
	dc.Size, dc.Scale, dc.Margin = size, scale, margin
	dc.Kernel, dc.Wd, dc.Wr = kernel, wd, wr
	dc.nodes = size.Product()
	dc.build()
	return true
}

func (dc *DivCurl) Nodes() int { return dc.nodes }

func (dc *DivCurl) Entries() []Entry { return dc.entries }

type axisIntegrals struct {
	r00, r01, r10, r11, r12, r21, r22 float64
}

func (dc *DivCurl) build() {
	var (
		nx, ny   = dc.Size.X, dc.Size.Y
		support  = dc.Kernel.SupportSize
		ic       = NewIntegralCache(dc.Kernel)
		loX, hiX = float64(dc.Margin), float64(nx-1-dc.Margin)
		loY, hiY = float64(dc.Margin), float64(ny-1-dc.Margin)
		maxAbs   float64
	)
	dc.entries = dc.entries[:0]
	defer dc.assemble()
	if dc.Scale.X <= 0 || dc.Scale.Y <= 0 || hiX <= loX || hiY <= loY ||
		(dc.Wd == 0 && dc.Wr == 0) {
		return
	}
	// d/dX = scale d/dx and dX = dx/scale for each axis
	axis := func(k, m int, lo, hi, h float64) (r axisIntegrals) {
		get := func(a, b int) float64 {
			return utils.POW(h, a+b-1) * ic.Get(k, m, a, b, lo, hi)
		}
		r = axisIntegrals{
			r00: get(0, 0), r01: get(0, 1), r10: get(1, 0), r11: get(1, 1),
			r12: get(1, 2), r21: get(2, 1), r22: get(2, 2),
		}
		return
	}
	for l := 0; l < ny; l++ {
		for n := max(0, l-support+1); n < min(l+support, ny); n++ {
			ry := axis(l, n, loY, hiY, dc.Scale.Y)
			for k := 0; k < nx; k++ {
				for m := max(0, k-support+1); m < min(k+support, nx); m++ {
					rx := axis(k, m, loX, hiX, dc.Scale.X)
					e := Entry{
						I: dc.Size.Linear(k, l),
						J: dc.Size.Linear(m, n),
						XX: dc.Wd*(rx.r22*ry.r00+rx.r11*ry.r11) +
							dc.Wr*(rx.r11*ry.r11+rx.r00*ry.r22),
						XY: 2 * (dc.Wd*(rx.r21*ry.r01+rx.r10*ry.r12) -
							dc.Wr*(rx.r12*ry.r10+rx.r01*ry.r21)),
						YY: dc.Wd*(rx.r00*ry.r22+rx.r11*ry.r11) +
							dc.Wr*(rx.r22*ry.r00+rx.r11*ry.r11),
					}
					maxAbs = math.Max(maxAbs, math.Max(math.Abs(e.XX),
						math.Max(math.Abs(e.XY), math.Abs(e.YY))))
					dc.entries = append(dc.entries, e)
				}
			}
		}
	}
	var (
		tol  = DropThreshold * maxAbs
		kept = dc.entries[:0]
	)
	for _, e := range dc.entries {
		if math.Abs(e.XX) > tol || math.Abs(e.XY) > tol || math.Abs(e.YY) > tol {
			kept = append(kept, e)
		}
	}
	dc.entries = kept
}

func (dc *DivCurl) checkLength(n int) {
	if n != 2*dc.nodes {
		panic(fmt.Sprintf("coefficient vector of length %d, regularizer expects %d", n, 2*dc.nodes))
	}
}

// assemble symmetrizes the couplings into Q
func (dc *DivCurl) assemble() {
	n := 2 * dc.nodes
	dc.Q, dc.buf = nil, nil
	if n == 0 {
		return
	}
	Q := utils.NewDOK(n, n)
	for _, p := range dc.entries {
		for _, c := range [3]struct {
			i, j int
			v    float64
		}{
			{2 * p.I, 2 * p.J, p.XX},
			{2 * p.I, 2*p.J + 1, p.XY},
			{2*p.I + 1, 2*p.J + 1, p.YY},
		} {
			Q.Add(c.i, c.j, 0.5*c.v)
			Q.Add(c.j, c.i, 0.5*c.v)
		}
	}
	Q.SetReadOnly("divcurl")
	dc.Q = Q.ToCSR()
	dc.buf = make([]float64, n)
}

// Multiply evaluates the energy for interleaved (x,y) coefficients
func (dc *DivCurl) Multiply(c []float64) float64 {
	dc.checkLength(len(c))
	if dc.Q == nil {
		return 0
	}
	return utils.QuadraticForm(dc.Q, c)
}

// Evaluate returns the energy and accumulates its gradient 2Qc into gradient
func (dc *DivCurl) Evaluate(c, gradient []float64) (e float64) {
	dc.checkLength(len(c))
	dc.checkLength(len(gradient))
	if dc.Q == nil {
		return 0
	}
	clear(dc.buf)
	dc.Q.MulVecTo(dc.buf, false, c)
	floats.AddScaled(gradient, 2, dc.buf)
	return floats.Dot(dc.buf, c)
}
