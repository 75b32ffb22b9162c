package transform2D

import (
	"fmt"
	"sort"

	"github.com/notargets/goreg/splinekernel"
	"github.com/notargets/goreg/types"
	"github.com/notargets/goreg/utils"
)

// Creator makes identity transformations of one kind for a given grid size
type Creator interface {
	Create(size types.Size) (Transformation, error)
	Variant() Variant
	String() string
}

func CreatorNames() (names []string) {
	for name := range VariantNameMap {
		names = append(names, name)
	}
	sort.Strings(names)
	return
}

// ParseCreator understands the descriptors
//
//	translate | rotation | rigid | raffine | affine | vf
//	spline:rate=<pixels>,kernel=[bspline:d=3]
func ParseCreator(descr string) (c Creator, err error) {
	var d utils.Descriptor
	if d, err = utils.ParseDescriptor(descr); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrConfiguration, err)
	}
	v, ok := VariantNameMap[d.Name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown transformation %q, have %v",
			types.ErrConfiguration, d.Name, CreatorNames())
	}
	accepted := []string{}
	if v == Spline {
		accepted = []string{"rate", "kernel"}
	}
	if unknown := d.Unknown(accepted...); len(unknown) != 0 {
		return nil, fmt.Errorf("%w: transformation %s: unknown options %v",
			types.ErrConfiguration, d.Name, unknown)
	}
	switch v {
	case Grid:
		return gridCreator{}, nil
	case Spline:
		sc := &splineCreator{}
		if sc.rate, err = d.Float("rate", 10); err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrConfiguration, err)
		}
		if sc.rate < 1 {
			return nil, fmt.Errorf("%w: spline rate %v must be at least 1", types.ErrConfiguration, sc.rate)
		}
		if sc.kernel, err = splinekernel.ParseKernel(d.String("kernel", "bspline:d=3")); err != nil {
			return nil, err
		}
		return sc, nil
	}
	return matrixCreator{variant: v}, nil
}

type matrixCreator struct {
	variant Variant
}

func (mc matrixCreator) Variant() Variant { return mc.variant }
func (mc matrixCreator) String() string   { return mc.variant.String() }

func (mc matrixCreator) Create(size types.Size) (Transformation, error) {
	if size.IsEmpty() {
		return nil, fmt.Errorf("%w: transformation of size %s", types.ErrInvalidArgument, size)
	}
	switch mc.variant {
	case Translate:
		return NewTranslateTransform(size), nil
	case Rotation:
		return NewRotationTransform(size), nil
	case Rigid:
		return NewRigidTransform(size), nil
	case RestrictedAffine:
		return NewRestrictedAffineTransform(size), nil
	case Affine:
		return NewAffineTransform(size), nil
	}
	panic(fmt.Sprintf("matrix creator for %s", mc.variant))
}

type gridCreator struct{}

func (gridCreator) Variant() Variant { return Grid }
func (gridCreator) String() string   { return "vf" }

func (gridCreator) Create(size types.Size) (Transformation, error) {
	if size.IsEmpty() {
		return nil, fmt.Errorf("%w: transformation of size %s", types.ErrInvalidArgument, size)
	}
	return NewGridTransform(size), nil
}

type splineCreator struct {
	rate   float64
	kernel *splinekernel.Kernel
}

func (sc *splineCreator) Variant() Variant { return Spline }

func (sc *splineCreator) String() string {
	return fmt.Sprintf("spline:rate=%g,kernel=[%s]", sc.rate, sc.kernel)
}

func (sc *splineCreator) Create(size types.Size) (Transformation, error) {
	return NewSplineTransform(size, sc.kernel, sc.rate)
}
