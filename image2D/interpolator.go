package image2D

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/notargets/goreg/splinekernel"
	"github.com/notargets/goreg/types"
)

// Interpolator holds the immutable interpolation data of an image
type Interpolator interface {
	Size() types.Size
	// NewSampler returns an evaluator with its own scratch state, one per goroutine
	NewSampler() Sampler
}

type Sampler interface {
	Value(p r2.Vec) float64
	ValueAndGradient(p r2.Vec) (float64, r2.Vec)
}

// InterpolatorFactory creates interpolators, a nil Kernel selects bilinear interpolation
type InterpolatorFactory struct {
	Kernel *splinekernel.Kernel
	BC     string
}

// NewInterpolatorFactory accepts "linear" or a spline kernel descriptor and a boundary condition name
func NewInterpolatorFactory(kernel, bc string) (ipf *InterpolatorFactory, err error) {
	ipf = &InterpolatorFactory{BC: bc}
	if len(ipf.BC) == 0 {
		ipf.BC = "mirror"
	}
	if _, ok := splinekernel.BCNameMap[ipf.BC]; !ok {
		return nil, fmt.Errorf("%w: unknown boundary condition %q", types.ErrConfiguration, bc)
	}
	if kernel == "linear" || kernel == "bilinear" {
		return
	}
	if ipf.Kernel, err = splinekernel.ParseKernel(kernel); err != nil {
		return nil, err
	}
	if _, err = splinekernel.NewBoundaryConditionFor(ipf.BC, 1, ipf.Kernel); err != nil {
		return nil, err
	}
	return
}

func (ipf *InterpolatorFactory) String() string {
	if ipf.Kernel == nil {
		return "linear"
	}
	return fmt.Sprintf("%s,bc=%s", ipf.Kernel, ipf.BC)
}

func (ipf *InterpolatorFactory) Create(img *Image) (Interpolator, error) {
	if ipf.Kernel == nil {
		return &LinearInterpolator{img: img}, nil
	}
	return NewSplineInterpolator(img, ipf.Kernel, ipf.BC)
}

// LinearInterpolator repeats the border pixels outside the image
type LinearInterpolator struct {
	img *Image
}

func (li *LinearInterpolator) Size() types.Size { return li.img.Size }

func (li *LinearInterpolator) NewSampler() Sampler { return li }

// axisLinear returns the left index, the fraction and whether the coordinate was clamped
func axisLinear(x float64, n int) (i0 int, f float64, clamped bool) {
	if n == 1 {
		return 0, 0, true
	}
	switch {
	case x <= 0:
		return 0, 0, true
	case x >= float64(n-1):
		return n - 2, 1, true
	}
	fl := math.Floor(x)
	return int(fl), x - fl, false
}

func (li *LinearInterpolator) Value(p r2.Vec) float64 {
	v, _ := li.ValueAndGradient(p)
	return v
}

func (li *LinearInterpolator) ValueAndGradient(p r2.Vec) (v float64, g r2.Vec) {
	var (
		size            = li.img.Size
		x0, fx, clampX  = axisLinear(p.X, size.X)
		y0, fy, clampY  = axisLinear(p.Y, size.Y)
		x1, y1          = min(x0+1, size.X-1), min(y0+1, size.Y-1)
		v00, v10        = li.img.At(x0, y0), li.img.At(x1, y0)
		v01, v11        = li.img.At(x0, y1), li.img.At(x1, y1)
		top, bottom     = v00 + fx*(v10-v00), v01 + fx*(v11-v01)
	)
	v = top + fy*(bottom-top)
	if !clampX {
		g.X = (1-fy)*(v10-v00) + fy*(v11-v01)
	}
	if !clampY {
		g.Y = bottom - top
	}
	return
}

// SplineInterpolator evaluates the spline whose coefficients interpolate the image
type SplineInterpolator struct {
	size   types.Size
	kernel *splinekernel.Kernel
	bc     string
	coeffs []float64
}

func NewSplineInterpolator(img *Image, kernel *splinekernel.Kernel, bc string) (si *SplineInterpolator, err error) {
	var (
		size         = img.Size
		bcx, bcy     splinekernel.BoundaryCondition
		column, line []float64
	)
	if bcx, err = splinekernel.NewBoundaryConditionFor(bc, size.X, kernel); err != nil {
		return
	}
	if bcy, err = splinekernel.NewBoundaryConditionFor(bc, size.Y, kernel); err != nil {
		return
	}
	si = &SplineInterpolator{
		size:   size,
		kernel: kernel,
		bc:     bc,
		coeffs: append([]float64{}, img.Data...),
	}
	for y := 0; y < size.Y; y++ {
		line = si.coeffs[y*size.X : (y+1)*size.X]
		bcx.FilterLine(line, kernel.Poles)
	}
	column = make([]float64, size.Y)
	for x := 0; x < size.X; x++ {
		for y := range column {
			column[y] = si.coeffs[size.Linear(x, y)]
		}
		bcy.FilterLine(column, kernel.Poles)
		for y, v := range column {
			si.coeffs[size.Linear(x, y)] = v
		}
	}
	return
}

func (si *SplineInterpolator) Size() types.Size { return si.size }

func (si *SplineInterpolator) NewSampler() Sampler {
	newCache := func(width int) *splinekernel.Cache {
		bc, err := splinekernel.NewBoundaryCondition(si.bc, width)
		if err != nil {
			panic(err)
		}
		return si.kernel.NewCache(bc, false)
	}
	return &splineSampler{
		si: si,
		cx: newCache(si.size.X), cy: newCache(si.size.Y),
		dx: newCache(si.size.X), dy: newCache(si.size.Y),
	}
}

type splineSampler struct {
	si             *SplineInterpolator
	cx, cy, dx, dy *splinekernel.Cache
}

func (ss *splineSampler) Value(p r2.Vec) (v float64) {
	var (
		k  = ss.si.kernel
		nx = ss.si.size.X
	)
	k.Evaluate(p.X, ss.cx)
	k.Evaluate(p.Y, ss.cy)
	for j, iy := range ss.cy.Index {
		var (
			row = ss.si.coeffs[iy*nx : (iy+1)*nx]
			s   float64
		)
		for i, ix := range ss.cx.Index {
			s += ss.cx.Weights[i] * row[ix]
		}
		v += ss.cy.Weights[j] * s
	}
	return
}

func (ss *splineSampler) ValueAndGradient(p r2.Vec) (v float64, g r2.Vec) {
	var (
		k  = ss.si.kernel
		nx = ss.si.size.X
	)
	k.Evaluate(p.X, ss.cx)
	k.Evaluate(p.Y, ss.cy)
	k.EvaluateDerivative(p.X, 1, ss.dx)
	k.EvaluateDerivative(p.Y, 1, ss.dy)
	for j, iy := range ss.cy.Index {
		var (
			row    = ss.si.coeffs[iy*nx : (iy+1)*nx]
			s, sdx float64
		)
		for i, ix := range ss.cx.Index {
			s += ss.cx.Weights[i] * row[ix]
			sdx += ss.dx.Weights[i] * row[ix]
		}
		v += ss.cy.Weights[j] * s
		g.X += ss.cy.Weights[j] * sdx
		g.Y += ss.dy.Weights[j] * s
	}
	return
}
