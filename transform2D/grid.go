package transform2D

import (
	"fmt"
	"image"
	"iter"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/notargets/goreg/types"
)

// GridTransform is a dense displacement field with one vector per pixel, T(x) = x - u(x)
type GridTransform struct {
	size  types.Size
	field *types.VectorField
}

func NewGridTransform(size types.Size) *GridTransform {
	return &GridTransform{
		size:  size,
		field: types.NewVectorField(size),
	}
}

func (gt *GridTransform) Variant() Variant      { return Grid }
func (gt *GridTransform) String() string        { return "vf" }
func (gt *GridTransform) Size() types.Size      { return gt.size }
func (gt *GridTransform) DegreesOfFreedom() int { return 2 * gt.size.Product() }

// Field exposes the displacement storage
func (gt *GridTransform) Field() *types.VectorField { return gt.field }

func (gt *GridTransform) Parameters() (params []float64) {
	params = make([]float64, gt.DegreesOfFreedom())
	gt.field.Flatten(params)
	return
}

func (gt *GridTransform) SetParameters(params []float64) (err error) {
	if err = checkParameterLength(gt, params); err != nil {
		return
	}
	gt.field.Unflatten(params)
	return
}

func (gt *GridTransform) SetIdentity() { gt.field.Zero() }

func (gt *GridTransform) Clone() Transformation {
	return &GridTransform{size: gt.size, field: gt.field.Clone()}
}

// sampleField interpolates the field bilinearly, coordinates are clamped to the grid
func sampleField(field *types.VectorField, p r2.Vec) r2.Vec {
	var (
		size   = field.Size
		x0, fx = clampAxis(p.X, size.X)
		y0, fy = clampAxis(p.Y, size.Y)
		x1, y1 = min(x0+1, size.X-1), min(y0+1, size.Y-1)
		top    = lerp(field.At(x0, y0), field.At(x1, y0), fx)
		bottom = lerp(field.At(x0, y1), field.At(x1, y1), fx)
	)
	return lerp(top, bottom, fy)
}

func clampAxis(x float64, n int) (i0 int, f float64) {
	switch {
	case n == 1 || x <= 0:
		return 0, 0
	case x >= float64(n-1):
		return n - 2, 1
	}
	fl := math.Floor(x)
	return int(fl), x - fl
}

func lerp(a, b r2.Vec, f float64) r2.Vec {
	return r2.Add(a, r2.Scale(f, r2.Sub(b, a)))
}

func (gt *GridTransform) Apply(p r2.Vec) r2.Vec {
	return r2.Sub(p, sampleField(gt.field, p))
}

func (gt *GridTransform) PointsIn(region image.Rectangle) iter.Seq2[image.Point, r2.Vec] {
	r := gt.size.ClipRegion(region)
	return func(yield func(image.Point, r2.Vec) bool) {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				q := r2.Sub(r2.Vec{X: float64(x), Y: float64(y)}, gt.field.At(x, y))
				if !yield(image.Pt(x, y), q) {
					return
				}
			}
		}
	}
}

// fieldDerivative uses centred differences, and zero at the grid border
func (gt *GridTransform) fieldDerivative(x, y int) (dx, dy r2.Vec) {
	if x > 0 && x < gt.size.X-1 {
		dx = r2.Scale(0.5, r2.Sub(gt.field.At(x+1, y), gt.field.At(x-1, y)))
	}
	if y > 0 && y < gt.size.Y-1 {
		dy = r2.Scale(0.5, r2.Sub(gt.field.At(x, y+1), gt.field.At(x, y-1)))
	}
	return
}

func (gt *GridTransform) DerivativeAt(p r2.Vec) *mat.Dense {
	var (
		x0, fx = clampAxis(p.X, gt.size.X)
		y0, fy = clampAxis(p.Y, gt.size.Y)
		x1, y1 = min(x0+1, gt.size.X-1), min(y0+1, gt.size.Y-1)
		J      [4]float64
	)
	for _, c := range [4]struct {
		x, y int
		w    float64
	}{
		{x0, y0, (1 - fx) * (1 - fy)},
		{x1, y0, fx * (1 - fy)},
		{x0, y1, (1 - fx) * fy},
		{x1, y1, fx * fy},
	} {
		if c.w == 0 {
			continue
		}
		dx, dy := gt.fieldDerivative(c.x, c.y)
		J[0] += c.w * dx.X
		J[1] += c.w * dy.X
		J[2] += c.w * dx.Y
		J[3] += c.w * dy.Y
	}
	return mat.NewDense(2, 2, []float64{1 - J[0], -J[1], -J[2], 1 - J[3]})
}

func (gt *GridTransform) Upscale(size types.Size) (Transformation, error) {
	if err := checkUpscale(size); err != nil {
		return nil, err
	}
	var (
		s = upscaleFactors(gt.size, size)
		R = NewGridTransform(size)
	)
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			u := sampleField(gt.field, r2.Vec{X: float64(x) / s.X, Y: float64(y) / s.Y})
			R.field.Set(x, y, r2.Vec{X: s.X * u.X, Y: s.Y * u.Y})
		}
	}
	return R, nil
}

func (gt *GridTransform) Translate(gradient *types.VectorField, params []float64) (err error) {
	if err = checkGradient(gt, gradient, params); err != nil {
		return
	}
	for i, g := range gradient.Data {
		params[2*i], params[2*i+1] = -g.X, -g.Y
	}
	return
}

func (gt *GridTransform) Invert() (Transformation, error) {
	return nil, fmt.Errorf("%w: inverse of a dense displacement field", types.ErrUnimplemented)
}

func (gt *GridTransform) MaxTransform() float64 { return gt.field.MaxNorm() }

// DivCurl discretizes wd|∇div u|² + wr|∇curl u|² with second order differences on the interior
func (gt *GridTransform) DivCurl(wd, wr float64, gradient []float64) (e float64) {
	var (
		nx, ny = gt.size.X, gt.size.Y
		u      = gt.field
	)
	if gradient != nil && len(gradient) != gt.DegreesOfFreedom() {
		panic(fmt.Sprintf("gradient of length %d, need %d", len(gradient), gt.DegreesOfFreedom()))
	}
	// scatter adds w times the adjoint of a second difference stencil at (x,y) for component comp
	scatter := func(x, y, comp int, kind stencil, w float64) {
		at := func(xx, yy int, v float64) {
			gradient[2*gt.size.Linear(xx, yy)+comp] += v
		}
		switch kind {
		case dxx:
			at(x+1, y, w)
			at(x, y, -2*w)
			at(x-1, y, w)
		case dyy:
			at(x, y+1, w)
			at(x, y, -2*w)
			at(x, y-1, w)
		case dxy:
			at(x+1, y+1, w/4)
			at(x-1, y-1, w/4)
			at(x+1, y-1, -w/4)
			at(x-1, y+1, -w/4)
		}
	}
	for y := 1; y < ny-1; y++ {
		for x := 1; x < nx-1; x++ {
			var (
				uxx = r2.Add(r2.Sub(u.At(x+1, y), r2.Scale(2, u.At(x, y))), u.At(x-1, y))
				uyy = r2.Add(r2.Sub(u.At(x, y+1), r2.Scale(2, u.At(x, y))), u.At(x, y-1))
				uxy = r2.Scale(0.25, r2.Sub(r2.Add(u.At(x+1, y+1), u.At(x-1, y-1)),
					r2.Add(u.At(x+1, y-1), u.At(x-1, y+1))))
				a = uxx.X + uxy.Y // ∂x div
				b = uxy.X + uyy.Y // ∂y div
				c = uxx.Y - uxy.X // ∂x curl
				d = uxy.Y - uyy.X // ∂y curl
			)
			e += wd*(a*a+b*b) + wr*(c*c+d*d)
			if gradient == nil {
				continue
			}
			scatter(x, y, 0, dxx, 2*wd*a)
			scatter(x, y, 0, dxy, 2*wd*b-2*wr*c)
			scatter(x, y, 0, dyy, -2*wr*d)
			scatter(x, y, 1, dxx, 2*wr*c)
			scatter(x, y, 1, dxy, 2*wd*a+2*wr*d)
			scatter(x, y, 1, dyy, 2*wd*b)
		}
	}
	return
}

type stencil uint8

const (
	dxx stencil = iota
	dyy
	dxy
)
