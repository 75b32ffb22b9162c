package splinekernel

import (
	"fmt"
	"math"
	"sort"

	"github.com/notargets/goreg/types"
)

// BoundaryCondition folds out of range coefficient indices back into
// [0, Width) and provides the matching pre-filter that turns samples into
// spline coefficients.
type BoundaryCondition interface {
	Name() string
	Width() int
	SetWidth(width int)
	// Apply maps the indices in place, weights may be zeroed
	Apply(index []int, weights []float64)
	// FilterLine converts samples into interpolation coefficients in place
	FilterLine(coeff []float64, poles []float64)
	// Supports reports a configuration error for kernels the condition cannot pre-filter
	Supports(k *Kernel) error
	Clone() BoundaryCondition
}

type bcType uint8

const (
	Mirror bcType = iota
	Repeat
	Zero
)

var BCNameMap = map[string]bcType{
	"mirror": Mirror,
	"repeat": Repeat,
	"zero":   Zero,
}

func BCNames() (names []string) {
	for name := range BCNameMap {
		names = append(names, name)
	}
	sort.Strings(names)
	return
}

func NewBoundaryCondition(name string, width int) (bc BoundaryCondition, err error) {
	bt, ok := BCNameMap[name]
	if !ok {
		err = fmt.Errorf("%w: unknown boundary condition %q, have %v",
			types.ErrConfiguration, name, BCNames())
		return
	}
	if width < 1 {
		err = fmt.Errorf("%w: boundary condition width %d", types.ErrInvalidArgument, width)
		return
	}
	switch bt {
	case Repeat:
		bc = &RepeatBC{width: width}
	case Zero:
		bc = &ZeroBC{width: width}
	default:
		bc = &MirrorBC{width: width}
	}
	return
}

// NewBoundaryConditionFor also checks that the kernel can be pre-filtered
func NewBoundaryConditionFor(name string, width int, k *Kernel) (bc BoundaryCondition, err error) {
	if bc, err = NewBoundaryCondition(name, width); err != nil {
		return
	}
	if err = bc.Supports(k); err != nil {
		bc = nil
	}
	return
}

// filterLine is the causal/anti-causal recursive filter for each pole
func filterLine(coeff, poles []float64, initial, initialAnti func(c []float64, z float64) float64) {
	var (
		N = len(coeff)
	)
	if N < 2 || len(poles) == 0 {
		return
	}
	lambda := 1.
	for _, z := range poles {
		lambda *= (1 - z) * (1 - 1/z)
	}
	for i := range coeff {
		coeff[i] *= lambda
	}
	for _, z := range poles {
		coeff[0] = initial(coeff, z)
		for n := 1; n < N; n++ {
			coeff[n] += z * coeff[n-1]
		}
		coeff[N-1] = initialAnti(coeff, z)
		for n := N - 2; n >= 0; n-- {
			coeff[n] = z * (coeff[n+1] - coeff[n])
		}
	}
}

type MirrorBC struct {
	width int
}

func (bc *MirrorBC) Name() string            { return "mirror" }
func (bc *MirrorBC) Width() int              { return bc.width }
func (bc *MirrorBC) SetWidth(width int)      { bc.width = width }
func (bc *MirrorBC) Supports(k *Kernel) error { return nil }
func (bc *MirrorBC) Clone() BoundaryCondition {
	return &MirrorBC{width: bc.width}
}

// Fold maps an arbitrary index into [0, width) by reflection about 0 and width-1
func (bc *MirrorBC) Fold(i int) int {
	var (
		w = bc.width
	)
	if w == 1 {
		return 0
	}
	period := 2*w - 2
	if i < 0 {
		i = -i
	}
	if i >= period {
		i %= period
	}
	if i >= w {
		i = period - i
	}
	return i
}

func (bc *MirrorBC) Apply(index []int, weights []float64) {
	for i, idx := range index {
		index[i] = bc.Fold(idx)
	}
}

func (bc *MirrorBC) FilterLine(coeff, poles []float64) {
	filterLine(coeff, poles, mirrorInitial, mirrorInitialAnti)
}

func mirrorInitial(c []float64, z float64) float64 {
	var (
		N   = len(c)
		zn  = z
		iz  = 1. / z
		z2n = math.Pow(z, float64(N-1))
		sum = c[0] + z2n*c[N-1]
	)
	z2n *= z2n * iz
	for n := 1; n < N-1; n++ {
		sum += (zn + z2n) * c[n]
		zn *= z
		z2n *= iz
	}
	return sum / (1 - zn*zn)
}

func mirrorInitialAnti(c []float64, z float64) float64 {
	N := len(c)
	return (z / (z*z - 1)) * (z*c[N-2] + c[N-1])
}

type RepeatBC struct {
	width int
}

func (bc *RepeatBC) Name() string       { return "repeat" }
func (bc *RepeatBC) Width() int         { return bc.width }
func (bc *RepeatBC) SetWidth(width int) { bc.width = width }
func (bc *RepeatBC) Clone() BoundaryCondition {
	return &RepeatBC{width: bc.width}
}

func (bc *RepeatBC) Supports(k *Kernel) error {
	return singlePoleOnly(bc.Name(), k)
}

func (bc *RepeatBC) Apply(index []int, weights []float64) {
	for i, idx := range index {
		if idx < 0 {
			index[i] = 0
		} else if idx >= bc.width {
			index[i] = bc.width - 1
		}
	}
}

func (bc *RepeatBC) FilterLine(coeff, poles []float64) {
	filterLine(coeff, poles,
		func(c []float64, z float64) float64 { return c[0] / (1 - z) },
		func(c []float64, z float64) float64 { return -z / (1 - z) * c[len(c)-1] })
}

type ZeroBC struct {
	width int
}

func (bc *ZeroBC) Name() string       { return "zero" }
func (bc *ZeroBC) Width() int         { return bc.width }
func (bc *ZeroBC) SetWidth(width int) { bc.width = width }
func (bc *ZeroBC) Clone() BoundaryCondition {
	return &ZeroBC{width: bc.width}
}

func (bc *ZeroBC) Supports(k *Kernel) error {
	return singlePoleOnly(bc.Name(), k)
}

func (bc *ZeroBC) Apply(index []int, weights []float64) {
	for i, idx := range index {
		if idx < 0 || idx >= bc.width {
			index[i] = 0
			weights[i] = 0
		}
	}
}

func (bc *ZeroBC) FilterLine(coeff, poles []float64) {
	filterLine(coeff, poles,
		func(c []float64, z float64) float64 { return c[0] },
		func(c []float64, z float64) float64 { return -z * c[len(c)-1] })
}

func singlePoleOnly(name string, k *Kernel) error {
	if len(k.Poles) > 1 {
		return fmt.Errorf("%w: %s boundary condition supports at most one pole, kernel %s has %d",
			types.ErrConfiguration, name, k, len(k.Poles))
	}
	return nil
}
