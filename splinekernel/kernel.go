package splinekernel

import (
	"fmt"
	"math"
	"strings"

	"github.com/notargets/goreg/types"
	"github.com/notargets/goreg/utils"
)

type Family uint8

const (
	BSpline Family = iota
	OMoms
)

var FamilyNameMap = map[string]Family{
	"bspline": BSpline,
	"omoms":   OMoms,
}

func (f Family) String() string {
	for name, fam := range FamilyNameMap {
		if fam == f {
			return name
		}
	}
	return fmt.Sprintf("Family(%d)", uint8(f))
}

// Kernel is an immutable piecewise polynomial interpolation kernel. For a
// coordinate x, the nonzero basis functions start at
//
//	floor(x + Shift) - HalfDegree
//
// and there are SupportSize of them.
type Kernel struct {
	Family      Family
	Degree      int
	Shift       float64
	HalfDegree  int
	SupportSize int
	Poles       []float64
}

const MaxDegree = 5

func NewBSplineKernel(degree int) (k *Kernel, err error) {
	if degree < 0 || degree > MaxDegree {
		err = fmt.Errorf("%w: B-spline degree %d not in [0,%d]",
			types.ErrConfiguration, degree, MaxDegree)
		return
	}
	k = newKernel(BSpline, degree)
	switch degree {
	case 2:
		k.Poles = []float64{math.Sqrt(8.) - 3.}
	case 3:
		k.Poles = []float64{math.Sqrt(3.) - 2.}
	case 4:
		k.Poles = []float64{
			math.Sqrt(664.+math.Sqrt(438976.)) - math.Sqrt(304.) - 19.,
			math.Sqrt(664.-math.Sqrt(438976.)) + math.Sqrt(304.) - 19.,
		}
	case 5:
		k.Poles = []float64{
			(math.Sqrt(270.-math.Sqrt(70980.)) + math.Sqrt(105.) - 13.) / 2.,
			(math.Sqrt(270.+math.Sqrt(70980.)) - math.Sqrt(105.) - 13.) / 2.,
		}
	}
	return
}

// NewOMomsKernel returns the optimal-order cubic kernel, only degree 3 exists
func NewOMomsKernel(degree int) (k *Kernel, err error) {
	if degree != 3 {
		err = fmt.Errorf("%w: o-Moms kernel of degree %d not available, only 3",
			types.ErrConfiguration, degree)
		return
	}
	k = newKernel(OMoms, 3)
	k.Poles = []float64{(math.Sqrt(105.) - 13.) / 8.}
	return
}

func newKernel(family Family, degree int) *Kernel {
	k := &Kernel{
		Family:      family,
		Degree:      degree,
		HalfDegree:  degree >> 1,
		SupportSize: degree + 1,
	}
	if degree%2 == 0 {
		k.Shift = 0.5
	}
	return k
}

// ParseKernel accepts "bspline:d=3", "omoms:d=3" and the short forms "bspline3", "omoms3"
func ParseKernel(descr string) (k *Kernel, err error) {
	var (
		d      utils.Descriptor
		degree int
	)
	if d, err = utils.ParseDescriptor(descr); err != nil {
		err = fmt.Errorf("%w: %v", types.ErrConfiguration, err)
		return
	}
	name := d.Name
	degree = 3
	if trimmed := strings.TrimRight(name, "012345"); trimmed != name {
		degree = int(name[len(trimmed)] - '0')
		name = trimmed
	}
	if degree, err = d.Int("d", degree); err != nil {
		err = fmt.Errorf("%w: %v", types.ErrConfiguration, err)
		return
	}
	if unknown := d.Unknown("d"); len(unknown) != 0 {
		err = fmt.Errorf("%w: kernel %s: unknown options %v", types.ErrConfiguration, name, unknown)
		return
	}
	fam, ok := FamilyNameMap[name]
	if !ok {
		err = fmt.Errorf("%w: unknown spline kernel %q", types.ErrConfiguration, d.Name)
		return
	}
	switch fam {
	case OMoms:
		return NewOMomsKernel(degree)
	default:
		return NewBSplineKernel(degree)
	}
}

func (k *Kernel) String() string {
	return fmt.Sprintf("%s:d=%d", k.Family, k.Degree)
}

// Equal compares the kernel configuration
func (k *Kernel) Equal(o *Kernel) bool {
	if k == nil || o == nil {
		return k == o
	}
	return k.Family == o.Family && k.Degree == o.Degree
}

// NonzeroRadius is the half width of the basis function support
func (k *Kernel) NonzeroRadius() float64 { return float64(k.SupportSize) / 2. }

// ActiveHalfRange is the number of coefficients on each side of a point that can contribute
func (k *Kernel) ActiveHalfRange() int { return (k.SupportSize + 1) / 2 }

func (k *Kernel) Start(x float64) int {
	return int(math.Floor(x+k.Shift)) - k.HalfDegree
}

// Weights fills w[0:SupportSize] with the basis values at x and returns the first index
func (k *Kernel) Weights(x float64, w []float64) (start int) {
	return k.DerivativeWeights(x, 0, w)
}

// DerivativeWeights fills w[0:SupportSize] with the order-th derivative of the basis functions at x
func (k *Kernel) DerivativeWeights(x float64, order int, w []float64) (start int) {
	if len(w) < k.SupportSize {
		panic(fmt.Sprintf("weight buffer of length %d, need %d", len(w), k.SupportSize))
	}
	start = k.Start(x)
	if k.closedForm(x, start, order, w) {
		return
	}
	for i := 0; i < k.SupportSize; i++ {
		w[i] = k.WeightAt(x-float64(start+i), order)
	}
	return
}

// WeightAt evaluates the order-th derivative of the basis function centered at 0
func (k *Kernel) WeightAt(t float64, order int) float64 {
	switch k.Family {
	case OMoms:
		return bspline(3, order, t) + bspline(3, order+2, t)/42.
	default:
		return bspline(k.Degree, order, t)
	}
}
