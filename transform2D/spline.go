package transform2D

import (
	"fmt"
	"image"
	"iter"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/notargets/goreg/regularizer"
	"github.com/notargets/goreg/splinekernel"
	"github.com/notargets/goreg/types"
)

// SplineTransform is T(x) = x - u(x) with the displacement
//
//	u(x) = Σ_k c_k β(x*Scale + Shift - k)
//
// The coefficient grid extends Shift coefficients beyond the image on each side.
// Rate is the target pixel spacing of the coefficients that Refine moves towards.
type SplineTransform struct {
	size    types.Size
	kernel  *splinekernel.Kernel
	rate    float64
	shift   int
	scale   r2.Vec
	coeffs  *types.VectorField
	divcurl *regularizer.DivCurl
}

func NewSplineTransform(size types.Size, kernel *splinekernel.Kernel, rate float64) (st *SplineTransform, err error) {
	if rate < 1 {
		err = fmt.Errorf("%w: spline coefficient rate %v must be at least 1", types.ErrConfiguration, rate)
		return
	}
	if size.IsEmpty() {
		err = fmt.Errorf("%w: spline transformation of size %s", types.ErrInvalidArgument, size)
		return
	}
	st = &SplineTransform{
		size:   size,
		kernel: kernel,
		rate:   rate,
		shift:  kernel.ActiveHalfRange() - 1,
	}
	st.resizeCoefficients(st.targetCoefficientSize())
	return
}

func (st *SplineTransform) enlarge() int { return 2 * st.shift }

func (st *SplineTransform) targetCoefficientSize() types.Size {
	cs := func(n int) int {
		return max(1, int(math.Ceil(float64(n)/st.rate))) + st.enlarge()
	}
	return types.NewSize(cs(st.size.X), cs(st.size.Y))
}

func (st *SplineTransform) axisScale(csize, n int) float64 {
	if n <= 1 {
		return 0
	}
	return float64(csize-1-st.enlarge()) / float64(n-1)
}

// resizeCoefficients replaces the coefficients by a zero field of the given size
func (st *SplineTransform) resizeCoefficients(cs types.Size) {
	st.coeffs = types.NewVectorField(cs)
	st.scale = r2.Vec{X: st.axisScale(cs.X, st.size.X), Y: st.axisScale(cs.Y, st.size.Y)}
}

func (st *SplineTransform) Variant() Variant { return Spline }

func (st *SplineTransform) String() string {
	return fmt.Sprintf("spline:rate=%g,kernel=[%s]", st.rate, st.kernel)
}

func (st *SplineTransform) Size() types.Size                 { return st.size }
func (st *SplineTransform) Kernel() *splinekernel.Kernel     { return st.kernel }
func (st *SplineTransform) Coefficients() *types.VectorField { return st.coeffs }
func (st *SplineTransform) CoefficientSize() types.Size      { return st.coeffs.Size }
func (st *SplineTransform) DegreesOfFreedom() int            { return 2 * st.coeffs.Size.Product() }

func (st *SplineTransform) Parameters() (params []float64) {
	params = make([]float64, st.DegreesOfFreedom())
	st.coeffs.Flatten(params)
	return
}

func (st *SplineTransform) SetParameters(params []float64) (err error) {
	if err = checkParameterLength(st, params); err != nil {
		return
	}
	st.coeffs.Unflatten(params)
	return
}

func (st *SplineTransform) SetIdentity() { st.coeffs.Zero() }

func (st *SplineTransform) Clone() Transformation {
	return &SplineTransform{
		size:   st.size,
		kernel: st.kernel,
		rate:   st.rate,
		shift:  st.shift,
		scale:  st.scale,
		coeffs: st.coeffs.Clone(),
	}
}

func (st *SplineTransform) newCache(width int) *splinekernel.Cache {
	bc, err := splinekernel.NewBoundaryCondition("mirror", width)
	if err != nil {
		panic(err)
	}
	return st.kernel.NewCache(bc, false)
}

func (st *SplineTransform) coefficientX(x float64) float64 {
	return x*st.scale.X + float64(st.shift)
}

func (st *SplineTransform) coefficientY(y float64) float64 {
	return y*st.scale.Y + float64(st.shift)
}

func (st *SplineTransform) displacement(p r2.Vec, cx, cy *splinekernel.Cache) (u r2.Vec) {
	st.kernel.Evaluate(st.coefficientX(p.X), cx)
	st.kernel.Evaluate(st.coefficientY(p.Y), cy)
	return st.sum(cx, cy)
}

func (st *SplineTransform) sum(cx, cy *splinekernel.Cache) (u r2.Vec) {
	for j, iy := range cy.Index {
		var (
			wy  = cy.Weights[j]
			row r2.Vec
		)
		for i, ix := range cx.Index {
			row = r2.Add(row, r2.Scale(cx.Weights[i], st.coeffs.At(ix, iy)))
		}
		u = r2.Add(u, r2.Scale(wy, row))
	}
	return
}

// Displacement is u(p)
func (st *SplineTransform) Displacement(p r2.Vec) r2.Vec {
	return st.displacement(p, st.newCache(st.coeffs.Size.X), st.newCache(st.coeffs.Size.Y))
}

func (st *SplineTransform) Apply(p r2.Vec) r2.Vec {
	return r2.Sub(p, st.Displacement(p))
}

func (st *SplineTransform) DerivativeAt(p r2.Vec) *mat.Dense {
	var (
		cs       = st.coeffs.Size
		cx, cy   = st.newCache(cs.X), st.newCache(cs.Y)
		dcx, dcy = st.newCache(cs.X), st.newCache(cs.Y)
		ux, uy   r2.Vec // ∂u/∂x, ∂u/∂y
	)
	st.kernel.Evaluate(st.coefficientX(p.X), cx)
	st.kernel.Evaluate(st.coefficientY(p.Y), cy)
	st.kernel.EvaluateDerivative(st.coefficientX(p.X), 1, dcx)
	st.kernel.EvaluateDerivative(st.coefficientY(p.Y), 1, dcy)
	ux = r2.Scale(st.scale.X, st.sum(dcx, cy))
	uy = r2.Scale(st.scale.Y, st.sum(cx, dcy))
	return mat.NewDense(2, 2, []float64{1 - ux.X, -uy.X, -ux.Y, 1 - uy.Y})
}

// columnTable holds the folded indices and weights of every column in [x0, x1)
type columnTable struct {
	x0      int
	index   [][]int
	weights [][]float64
}

func (st *SplineTransform) newColumnTable(x0, x1 int) (ct columnTable) {
	cx := st.newCache(st.coeffs.Size.X)
	ct.x0 = x0
	for x := x0; x < x1; x++ {
		st.kernel.Evaluate(st.coefficientX(float64(x)), cx)
		ct.index = append(ct.index, append([]int{}, cx.Index...))
		ct.weights = append(ct.weights, append([]float64{}, cx.Weights...))
	}
	return
}

func (st *SplineTransform) PointsIn(region image.Rectangle) iter.Seq2[image.Point, r2.Vec] {
	r := st.size.ClipRegion(region)
	return func(yield func(image.Point, r2.Vec) bool) {
		var (
			cs   = st.coeffs.Size
			ct   = st.newColumnTable(r.Min.X, r.Max.X)
			cy   = st.newCache(cs.Y)
			rowU = make([]r2.Vec, cs.X) // coefficients collapsed along y for the current row
		)
		for y := r.Min.Y; y < r.Max.Y; y++ {
			st.kernel.Evaluate(st.coefficientY(float64(y)), cy)
			clear(rowU)
			for j, iy := range cy.Index {
				for k := 0; k < cs.X; k++ {
					rowU[k] = r2.Add(rowU[k], r2.Scale(cy.Weights[j], st.coeffs.At(k, iy)))
				}
			}
			for x := r.Min.X; x < r.Max.X; x++ {
				var (
					u  r2.Vec
					xi = x - ct.x0
				)
				for i, ix := range ct.index[xi] {
					u = r2.Add(u, r2.Scale(ct.weights[xi][i], rowU[ix]))
				}
				if !yield(image.Pt(x, y), r2.Vec{X: float64(x) - u.X, Y: float64(y) - u.Y}) {
					return
				}
			}
		}
	}
}

// Translate is the adjoint of the interpolation, ∂T/∂c_k = -β_k
func (st *SplineTransform) Translate(gradient *types.VectorField, params []float64) (err error) {
	if err = checkGradient(st, gradient, params); err != nil {
		return
	}
	var (
		cs  = st.coeffs.Size
		ct  = st.newColumnTable(0, st.size.X)
		cy  = st.newCache(cs.Y)
		acc = make([]r2.Vec, cs.X)
	)
	clear(params)
	for y := 0; y < st.size.Y; y++ {
		clear(acc)
		for x := 0; x < st.size.X; x++ {
			g := gradient.At(x, y)
			for i, ix := range ct.index[x] {
				acc[ix] = r2.Add(acc[ix], r2.Scale(ct.weights[x][i], g))
			}
		}
		st.kernel.Evaluate(st.coefficientY(float64(y)), cy)
		for j, iy := range cy.Index {
			wy := cy.Weights[j]
			for k, a := range acc {
				idx := 2 * cs.Linear(k, iy)
				params[idx] -= wy * a.X
				params[idx+1] -= wy * a.Y
			}
		}
	}
	return
}

// Upscale keeps the coefficient grid and scales the displacement to the new extent
func (st *SplineTransform) Upscale(size types.Size) (Transformation, error) {
	if err := checkUpscale(size); err != nil {
		return nil, err
	}
	var (
		s = extentFactors(st.size, size)
		R = &SplineTransform{
			size:   size,
			kernel: st.kernel,
			rate:   st.rate,
			shift:  st.shift,
			coeffs: st.coeffs.Clone(),
		}
	)
	R.scale = r2.Vec{X: R.axisScale(R.coeffs.Size.X, size.X), Y: R.axisScale(R.coeffs.Size.Y, size.Y)}
	R.coeffs.ScaleAxes(s.X, s.Y)
	return R, nil
}

// Refine moves the coefficient density to the target rate by interpolating the
// current displacement at the new control points.
func (st *SplineTransform) Refine() (refined bool, err error) {
	var (
		cs     = st.coeffs.Size
		target = st.targetCoefficientSize()
	)
	if target.X <= cs.X && target.Y <= cs.Y {
		return false, nil
	}
	target = types.NewSize(max(target.X, cs.X), max(target.Y, cs.Y))
	var (
		newScale = r2.Vec{X: st.axisScale(target.X, st.size.X), Y: st.axisScale(target.Y, st.size.Y)}
		samples  = types.NewVectorField(target)
		cx, cy   = st.newCache(cs.X), st.newCache(cs.Y)
		bcx, bcy splinekernel.BoundaryCondition
	)
	toImage := func(k int, scale float64) float64 {
		if scale == 0 {
			return 0
		}
		return float64(k-st.shift) / scale
	}
	for l := 0; l < target.Y; l++ {
		for k := 0; k < target.X; k++ {
			p := r2.Vec{X: toImage(k, newScale.X), Y: toImage(l, newScale.Y)}
			samples.Set(k, l, st.displacement(p, cx, cy))
		}
	}
	if bcx, err = splinekernel.NewBoundaryConditionFor("mirror", target.X, st.kernel); err != nil {
		return
	}
	if bcy, err = splinekernel.NewBoundaryConditionFor("mirror", target.Y, st.kernel); err != nil {
		return
	}
	prefilterField(samples, st.kernel.Poles, bcx, bcy)
	st.coeffs, st.scale = samples, newScale
	return true, nil
}

// prefilterField turns samples into spline coefficients, both components, rows then columns
func prefilterField(vf *types.VectorField, poles []float64, bcx, bcy splinekernel.BoundaryCondition) {
	var (
		size = vf.Size
		bufX = make([]float64, size.X)
		bufY = make([]float64, size.Y)
	)
	for comp := 0; comp < 2; comp++ {
		get := func(v r2.Vec) float64 {
			if comp == 0 {
				return v.X
			}
			return v.Y
		}
		set := func(v *r2.Vec, f float64) {
			if comp == 0 {
				v.X = f
			} else {
				v.Y = f
			}
		}
		for y := 0; y < size.Y; y++ {
			for x := range bufX {
				bufX[x] = get(vf.At(x, y))
			}
			bcx.FilterLine(bufX, poles)
			for x, f := range bufX {
				set(&vf.Data[size.Linear(x, y)], f)
			}
		}
		for x := 0; x < size.X; x++ {
			for y := range bufY {
				bufY[y] = get(vf.At(x, y))
			}
			bcy.FilterLine(bufY, poles)
			for y, f := range bufY {
				set(&vf.Data[size.Linear(x, y)], f)
			}
		}
	}
}

func (st *SplineTransform) Invert() (Transformation, error) {
	return nil, fmt.Errorf("%w: inverse of a spline transformation", types.ErrUnimplemented)
}

// MaxTransform evaluates the displacement on every grid point
func (st *SplineTransform) MaxTransform() (mx float64) {
	for pt, q := range Points(st) {
		p := r2.Vec{X: float64(pt.X), Y: float64(pt.Y)}
		mx = math.Max(mx, r2.Norm(r2.Sub(p, q)))
	}
	return
}

// DivCurl evaluates the smoothness energy of the displacement in pixel units
func (st *SplineTransform) DivCurl(wd, wr float64, gradient []float64) float64 {
	if st.divcurl == nil {
		st.divcurl = regularizer.NewDivCurl(st.coeffs.Size, st.scale, st.shift, st.kernel, wd, wr)
	} else {
		st.divcurl.Reset(st.coeffs.Size, st.scale, st.shift, st.kernel, wd, wr)
	}
	params := st.Parameters()
	if gradient == nil {
		return st.divcurl.Multiply(params)
	}
	return st.divcurl.Evaluate(params, gradient)
}
