package transform2D

import (
	"fmt"
	"image"
	"iter"
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/notargets/goreg/types"
	"github.com/notargets/goreg/utils"
)

// affine2 is the 2x3 matrix [a00 a01 t0; a10 a11 t1]
type affine2 [6]float64

func (m affine2) apply(p r2.Vec) r2.Vec {
	return r2.Vec{
		X: m[0]*p.X + m[1]*p.Y + m[2],
		Y: m[3]*p.X + m[4]*p.Y + m[5],
	}
}

// linear2 is the row-major 2x2 matrix [a00 a01 a10 a11]
type linear2 [4]float64

var identityLinear = linear2{1, 0, 0, 1}

func (a linear2) mul(p r2.Vec) r2.Vec {
	return r2.Vec{X: a[0]*p.X + a[1]*p.Y, Y: a[2]*p.X + a[3]*p.Y}
}

func (a linear2) det() float64 { return a[0]*a[3] - a[1]*a[2] }

func rotation(theta float64) linear2 {
	s, c := math.Sincos(theta)
	return linear2{c, -s, s, c}
}

// matrixModel is one parameterization of T(p) = A (p - c) + c + t about the grid centre c
type matrixModel interface {
	variant() Variant
	identity() []float64
	evaluate(params []float64) (A linear2, t r2.Vec)
	// derivatives of A and t with respect to each parameter
	derivatives(params []float64, dA []linear2, dt []r2.Vec)
	// fromMatrix returns the parameters closest to A, t, what the model cannot express is kept from old
	fromMatrix(old []float64, A linear2, t r2.Vec) []float64
}

type matrixState uint8

const (
	Stale matrixState = iota
	Valid
)

// matrixCache evaluates the 2x3 matrix lazily after parameter changes
type matrixCache struct {
	mu    sync.Mutex
	state matrixState
	m     affine2
}

// MatrixTransform is the common implementation of the linear transformations
type MatrixTransform struct {
	model  matrixModel
	size   types.Size
	center r2.Vec
	params []float64
	cache  matrixCache
}

func newMatrixTransform(model matrixModel, size types.Size) *MatrixTransform {
	return &MatrixTransform{
		model:  model,
		size:   size,
		center: gridCenter(size),
		params: model.identity(),
	}
}

func NewTranslateTransform(size types.Size) *MatrixTransform {
	return newMatrixTransform(translateModel{}, size)
}

func NewRotationTransform(size types.Size) *MatrixTransform {
	return newMatrixTransform(rotationModel{}, size)
}

func NewRigidTransform(size types.Size) *MatrixTransform {
	return newMatrixTransform(rigidModel{}, size)
}

func NewRestrictedAffineTransform(size types.Size) *MatrixTransform {
	return newMatrixTransform(raffineModel{}, size)
}

func NewAffineTransform(size types.Size) *MatrixTransform {
	return newMatrixTransform(affineModel{}, size)
}

func (mt *MatrixTransform) Variant() Variant      { return mt.model.variant() }
func (mt *MatrixTransform) String() string        { return mt.model.variant().String() }
func (mt *MatrixTransform) Size() types.Size      { return mt.size }
func (mt *MatrixTransform) DegreesOfFreedom() int { return len(mt.params) }

func (mt *MatrixTransform) Parameters() []float64 {
	return append([]float64{}, mt.params...)
}

func (mt *MatrixTransform) SetParameters(params []float64) (err error) {
	if err = checkParameterLength(mt, params); err != nil {
		return
	}
	copy(mt.params, params)
	mt.invalidate()
	return
}

func (mt *MatrixTransform) SetIdentity() {
	copy(mt.params, mt.model.identity())
	mt.invalidate()
}

func (mt *MatrixTransform) invalidate() {
	mt.cache.mu.Lock()
	mt.cache.state = Stale
	mt.cache.mu.Unlock()
}

func (mt *MatrixTransform) matrix() affine2 {
	mt.cache.mu.Lock()
	defer mt.cache.mu.Unlock()
	if mt.cache.state == Stale {
		A, t := mt.model.evaluate(mt.params)
		m := r2.Sub(r2.Add(t, mt.center), A.mul(mt.center))
		mt.cache.m = affine2{A[0], A[1], m.X, A[2], A[3], m.Y}
		mt.cache.state = Valid
	}
	return mt.cache.m
}

func (mt *MatrixTransform) Clone() Transformation {
	return &MatrixTransform{
		model:  mt.model,
		size:   mt.size,
		center: mt.center,
		params: mt.Parameters(),
	}
}

func (mt *MatrixTransform) Apply(p r2.Vec) r2.Vec {
	return mt.matrix().apply(p)
}

func (mt *MatrixTransform) DerivativeAt(p r2.Vec) *mat.Dense {
	m := mt.matrix()
	return mat.NewDense(2, 2, []float64{m[0], m[1], m[3], m[4]})
}

func (mt *MatrixTransform) PointsIn(region image.Rectangle) iter.Seq2[image.Point, r2.Vec] {
	var (
		r = mt.size.ClipRegion(region)
		m = mt.matrix()
	)
	return func(yield func(image.Point, r2.Vec) bool) {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			q := m.apply(r2.Vec{X: float64(r.Min.X), Y: float64(y)})
			for x := r.Min.X; x < r.Max.X; x++ {
				if !yield(image.Pt(x, y), q) {
					return
				}
				q.X += m[0]
				q.Y += m[3]
			}
		}
	}
}

func (mt *MatrixTransform) MaxTransform() (mx float64) {
	m := mt.matrix()
	for _, p := range []r2.Vec{
		{X: 0, Y: 0},
		{X: float64(mt.size.X - 1), Y: 0},
		{X: 0, Y: float64(mt.size.Y - 1)},
		{X: float64(mt.size.X - 1), Y: float64(mt.size.Y - 1)},
	} {
		mx = math.Max(mx, r2.Norm(r2.Sub(m.apply(p), p)))
	}
	return
}

func (mt *MatrixTransform) Upscale(size types.Size) (Transformation, error) {
	if err := checkUpscale(size); err != nil {
		return nil, err
	}
	var (
		s   = upscaleFactors(mt.size, size)
		m   = mt.matrix()
		R   = newMatrixTransform(mt.model, size)
		mtr = r2.Vec{X: s.X * m[2], Y: s.Y * m[5]}
		// A' = S A S⁻¹
		A = linear2{m[0], m[1] * s.X / s.Y, m[3] * s.Y / s.X, m[4]}
		// centre relative translation of p' -> A' p' + S m
		t = r2.Sub(r2.Add(mtr, A.mul(R.center)), R.center)
	)
	copy(R.params, mt.model.fromMatrix(mt.params, A, t))
	return R, nil
}

func (mt *MatrixTransform) Translate(gradient *types.VectorField, params []float64) (err error) {
	if err = checkGradient(mt, gradient, params); err != nil {
		return
	}
	var (
		G  [2][3]float64 // Σ g_i p_j with p = (x, y, 1)
		n  = len(mt.params)
		dA = make([]linear2, n)
		dt = make([]r2.Vec, n)
		c  = mt.center
	)
	for y := 0; y < mt.size.Y; y++ {
		for x := 0; x < mt.size.X; x++ {
			var (
				g      = gradient.At(x, y)
				fx, fy = float64(x), float64(y)
			)
			G[0][0] += g.X * fx
			G[0][1] += g.X * fy
			G[0][2] += g.X
			G[1][0] += g.Y * fx
			G[1][1] += g.Y * fy
			G[1][2] += g.Y
		}
	}
	mt.model.derivatives(mt.params, dA, dt)
	for k := 0; k < n; k++ {
		dm := r2.Sub(dt[k], dA[k].mul(c))
		params[k] = G[0][0]*dA[k][0] + G[0][1]*dA[k][1] + G[0][2]*dm.X +
			G[1][0]*dA[k][2] + G[1][1]*dA[k][3] + G[1][2]*dm.Y
	}
	return
}

func (mt *MatrixTransform) Invert() (Transformation, error) {
	var (
		R = newMatrixTransform(mt.model, mt.size)
		p = mt.params
	)
	switch mt.model.variant() {
	case Translate:
		R.params[0], R.params[1] = -p[0], -p[1]
		return R, nil
	case Rotation:
		R.params[0] = -p[0]
		return R, nil
	case Rigid:
		// T⁻¹(q) = Rᵀ(q - c) + c - Rᵀt
		t := rotation(-p[2]).mul(r2.Vec{X: p[0], Y: p[1]})
		R.params[0], R.params[1], R.params[2] = -t.X, -t.Y, -p[2]
		return R, nil
	}
	var (
		m    = mt.matrix()
		H    = mat.NewDense(3, 3, []float64{m[0], m[1], m[2], m[3], m[4], m[5], 0, 0, 1})
		Hinv mat.Dense
	)
	if math.Abs(linear2{m[0], m[1], m[3], m[4]}.det()) < utils.SINGULARTOL {
		return nil, fmt.Errorf("%w: %s transformation is singular", types.ErrInvalidArgument, mt)
	}
	if err := Hinv.Inverse(H); err != nil {
		return nil, fmt.Errorf("%w: %s transformation: %v", types.ErrInvalidArgument, mt, err)
	}
	var (
		inv = NewAffineTransform(mt.size)
		A   = linear2{Hinv.At(0, 0), Hinv.At(0, 1), Hinv.At(1, 0), Hinv.At(1, 1)}
		t   = r2.Sub(r2.Add(r2.Vec{X: Hinv.At(0, 2), Y: Hinv.At(1, 2)}, A.mul(inv.center)), inv.center)
	)
	copy(inv.params, affineModel{}.fromMatrix(nil, A, t))
	return inv, nil
}

type translateModel struct{}

func (translateModel) variant() Variant    { return Translate }
func (translateModel) identity() []float64 { return []float64{0, 0} }
func (translateModel) evaluate(p []float64) (linear2, r2.Vec) {
	return identityLinear, r2.Vec{X: p[0], Y: p[1]}
}
func (translateModel) derivatives(p []float64, dA []linear2, dt []r2.Vec) {
	dA[0], dA[1] = linear2{}, linear2{}
	dt[0], dt[1] = r2.Vec{X: 1}, r2.Vec{Y: 1}
}
func (translateModel) fromMatrix(old []float64, A linear2, t r2.Vec) []float64 {
	return []float64{t.X, t.Y}
}

type rotationModel struct{}

func (rotationModel) variant() Variant    { return Rotation }
func (rotationModel) identity() []float64 { return []float64{0} }
func (rotationModel) evaluate(p []float64) (linear2, r2.Vec) {
	return rotation(p[0]), r2.Vec{}
}
func (rotationModel) derivatives(p []float64, dA []linear2, dt []r2.Vec) {
	s, c := math.Sincos(p[0])
	dA[0], dt[0] = linear2{-s, -c, c, -s}, r2.Vec{}
}
func (rotationModel) fromMatrix(old []float64, A linear2, t r2.Vec) []float64 {
	return append([]float64{}, old...)
}

// rigidModel parameters are tx, ty, θ
type rigidModel struct{}

func (rigidModel) variant() Variant    { return Rigid }
func (rigidModel) identity() []float64 { return []float64{0, 0, 0} }
func (rigidModel) evaluate(p []float64) (linear2, r2.Vec) {
	return rotation(p[2]), r2.Vec{X: p[0], Y: p[1]}
}
func (rigidModel) derivatives(p []float64, dA []linear2, dt []r2.Vec) {
	s, c := math.Sincos(p[2])
	dA[0], dA[1], dA[2] = linear2{}, linear2{}, linear2{-s, -c, c, -s}
	dt[0], dt[1], dt[2] = r2.Vec{X: 1}, r2.Vec{Y: 1}, r2.Vec{}
}
func (rigidModel) fromMatrix(old []float64, A linear2, t r2.Vec) []float64 {
	return []float64{t.X, t.Y, old[2]}
}

// raffineModel is a rotation after a shear, parameters are θ, shear x, shear y
type raffineModel struct{}

func (raffineModel) variant() Variant    { return RestrictedAffine }
func (raffineModel) identity() []float64 { return []float64{0, 0, 0} }
func (raffineModel) evaluate(p []float64) (linear2, r2.Vec) {
	var (
		s, c = math.Sincos(p[0])
		a, b = p[1], p[2]
	)
	return linear2{c - s*b, c*a - s, s + c*b, s*a + c}, r2.Vec{}
}
func (raffineModel) derivatives(p []float64, dA []linear2, dt []r2.Vec) {
	var (
		s, c = math.Sincos(p[0])
		a, b = p[1], p[2]
	)
	dA[0] = linear2{-s - c*b, -s*a - c, c - s*b, c*a - s}
	dA[1] = linear2{0, c, 0, s}
	dA[2] = linear2{-s, 0, c, 0}
	dt[0], dt[1], dt[2] = r2.Vec{}, r2.Vec{}, r2.Vec{}
}
func (raffineModel) fromMatrix(old []float64, A linear2, t r2.Vec) []float64 {
	return append([]float64{}, old...)
}

// affineModel parameters are a00, a01, tx, a10, a11, ty
type affineModel struct{}

func (affineModel) variant() Variant    { return Affine }
func (affineModel) identity() []float64 { return []float64{1, 0, 0, 0, 1, 0} }
func (affineModel) evaluate(p []float64) (linear2, r2.Vec) {
	return linear2{p[0], p[1], p[3], p[4]}, r2.Vec{X: p[2], Y: p[5]}
}
func (affineModel) derivatives(p []float64, dA []linear2, dt []r2.Vec) {
	for k := range dA {
		dA[k], dt[k] = linear2{}, r2.Vec{}
	}
	dA[0][0], dA[1][1], dA[3][2], dA[4][3] = 1, 1, 1, 1
	dt[2], dt[5] = r2.Vec{X: 1}, r2.Vec{Y: 1}
}
func (affineModel) fromMatrix(old []float64, A linear2, t r2.Vec) []float64 {
	return []float64{A[0], A[1], t.X, A[2], A[3], t.Y}
}
