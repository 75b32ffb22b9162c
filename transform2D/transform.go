package transform2D

import (
	"fmt"
	"image"
	"iter"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/notargets/goreg/types"
)

//go:generate stringer -type=Variant

type Variant uint8

const (
	Translate Variant = iota
	Rotation
	Rigid
	RestrictedAffine
	Affine
	Grid
	Spline
)

var VariantNameMap = map[string]Variant{
	"translate": Translate,
	"rotation":  Rotation,
	"rigid":     Rigid,
	"raffine":   RestrictedAffine,
	"affine":    Affine,
	"vf":        Grid,
	"spline":    Spline,
}

func (v Variant) String() string {
	for name, vv := range VariantNameMap {
		if vv == v {
			return name
		}
	}
	return fmt.Sprintf("Variant(%d)", uint8(v))
}

// Transformation maps grid points of an image of Size into source image coordinates
type Transformation interface {
	Variant() Variant
	// String is a descriptor that recreates an identity transformation of this kind
	String() string
	Size() types.Size
	Apply(p r2.Vec) r2.Vec
	// DerivativeAt is the 2x2 Jacobian of Apply
	DerivativeAt(p r2.Vec) *mat.Dense
	DegreesOfFreedom() int
	Parameters() []float64
	SetParameters(params []float64) error
	SetIdentity()
	// Upscale returns a new transformation for a larger grid, the receiver is unchanged
	Upscale(size types.Size) (Transformation, error)
	// Translate converts a per pixel force into the gradient with respect to the parameters
	Translate(gradient *types.VectorField, params []float64) error
	Invert() (Transformation, error)
	Clone() Transformation
	// PointsIn yields the transformed grid points of the region in row-major order,
	// an empty region means the whole grid. Every range over the sequence restarts.
	PointsIn(region image.Rectangle) iter.Seq2[image.Point, r2.Vec]
	// MaxTransform is the largest displacement magnitude
	MaxTransform() float64
}

// Regularizable transformations provide the div-curl smoothness energy of their displacement
type Regularizable interface {
	// DivCurl returns the energy and, for a non nil gradient, accumulates its derivative
	DivCurl(wd, wr float64, gradient []float64) float64
}

// Refinable transformations can increase their parameter density in place
type Refinable interface {
	Refine() (refined bool, err error)
}

// Points is the full grid iteration
func Points(t Transformation) iter.Seq2[image.Point, r2.Vec] {
	return t.PointsIn(image.Rectangle{})
}

func checkParameterLength(t Transformation, params []float64) error {
	if len(params) != t.DegreesOfFreedom() {
		return fmt.Errorf("%w: %s transformation has %d parameters, got %d",
			types.ErrInvalidArgument, t.Variant(), t.DegreesOfFreedom(), len(params))
	}
	return nil
}

func checkGradient(t Transformation, gradient *types.VectorField, params []float64) error {
	if gradient.Size != t.Size() {
		return fmt.Errorf("%w: gradient field of size %s for transformation of size %s",
			types.ErrInvalidArgument, gradient.Size, t.Size())
	}
	return checkParameterLength(t, params)
}

func checkUpscale(to types.Size) error {
	if to.IsEmpty() {
		return fmt.Errorf("%w: cannot upscale to size %s", types.ErrInvalidArgument, to)
	}
	return nil
}

// upscaleFactors is the pixel size ratio to/from, the pyramid levels relate
// their grids by it
func upscaleFactors(from, to types.Size) r2.Vec {
	return r2.Vec{X: float64(to.X) / float64(from.X), Y: float64(to.Y) / float64(from.Y)}
}

// extentFactor maps the grid extent [0,from-1] onto [0,to-1]
func extentFactor(from, to int) float64 {
	if from <= 1 {
		return float64(to) / float64(max(from, 1))
	}
	return float64(to-1) / float64(from-1)
}

func extentFactors(from, to types.Size) r2.Vec {
	return r2.Vec{X: extentFactor(from.X, to.X), Y: extentFactor(from.Y, to.Y)}
}

func gridCenter(size types.Size) r2.Vec {
	return r2.Vec{X: float64(size.X-1) / 2, Y: float64(size.Y-1) / 2}
}
