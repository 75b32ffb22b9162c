package cost

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/notargets/goreg/image2D"
	"github.com/notargets/goreg/transform2D"
	"github.com/notargets/goreg/types"
	"github.com/notargets/goreg/utils"
)

type Capability uint8

const (
	Gradient Capability = iota
)

var CapabilityNameMap = map[string]Capability{
	"gradient": Gradient,
}

func (c Capability) String() string {
	for name, cc := range CapabilityNameMap {
		if cc == c {
			return name
		}
	}
	return fmt.Sprintf("Capability(%d)", uint8(c))
}

// Cost is one weighted term of the registration objective
type Cost interface {
	// Value is the weighted cost of the transformation
	Value(t transform2D.Transformation) (float64, error)
	// BaseValue is the value of the most recent Value or Evaluate call
	BaseValue() float64
	// Evaluate returns the weighted cost and adds its parameter gradient to gradient
	Evaluate(t transform2D.Transformation, gradient []float64) (float64, error)
	Has(c Capability) bool
	// Reinit rebuilds cached state after new images were set
	Reinit() error
	SetSize(size types.Size) error
	SetImages(src, ref *image2D.Image) error
	Weight() float64
	String() string
}

func checkGradientLength(t transform2D.Transformation, gradient []float64) error {
	if len(gradient) != t.DegreesOfFreedom() {
		return fmt.Errorf("%w: gradient of length %d for %d parameters",
			types.ErrInvalidArgument, len(gradient), t.DegreesOfFreedom())
	}
	return nil
}

// Aggregator sums a list of cost terms
type Aggregator struct {
	terms []Cost
}

func NewAggregator(terms ...Cost) *Aggregator {
	return &Aggregator{terms: append([]Cost{}, terms...)}
}

func (ag *Aggregator) Add(c Cost)      { ag.terms = append(ag.terms, c) }
func (ag *Aggregator) Len() int        { return len(ag.terms) }
func (ag *Aggregator) Terms() []Cost   { return ag.terms }
func (ag *Aggregator) Weight() float64 { return 1 }

func (ag *Aggregator) String() string {
	var s string
	for i, c := range ag.terms {
		if i != 0 {
			s += " + "
		}
		s += c.String()
	}
	return s
}

// Has is true when every term has the capability
func (ag *Aggregator) Has(c Capability) bool {
	for _, term := range ag.terms {
		if !term.Has(c) {
			return false
		}
	}
	return len(ag.terms) != 0
}

func (ag *Aggregator) SetImages(src, ref *image2D.Image) (err error) {
	if src.Size != ref.Size {
		return fmt.Errorf("%w: source image %s and reference image %s differ in size",
			types.ErrInvalidArgument, src.Size, ref.Size)
	}
	for _, term := range ag.terms {
		if err = term.SetImages(src, ref); err != nil {
			return
		}
	}
	return
}

func (ag *Aggregator) SetSize(size types.Size) (err error) {
	for _, term := range ag.terms {
		if err = term.SetSize(size); err != nil {
			return
		}
	}
	return
}

func (ag *Aggregator) Reinit() (err error) {
	for _, term := range ag.terms {
		if err = term.Reinit(); err != nil {
			return
		}
	}
	return
}

func (ag *Aggregator) Value(t transform2D.Transformation) (v float64, err error) {
	var tv float64
	for _, term := range ag.terms {
		if tv, err = term.Value(t); err != nil {
			return
		}
		v += tv
	}
	return
}

func (ag *Aggregator) BaseValue() (v float64) {
	for _, term := range ag.terms {
		v += term.BaseValue()
	}
	return
}

func (ag *Aggregator) Evaluate(t transform2D.Transformation, gradient []float64) (v float64, err error) {
	var tv float64
	for _, term := range ag.terms {
		if tv, err = term.Evaluate(t, gradient); err != nil {
			return
		}
		v += tv
	}
	return
}

// DivCurlCost is the smoothness energy of transformations that provide one,
// zero for the others
type DivCurlCost struct {
	weight, wd, wr float64
	base           float64
	buf            []float64
}

func NewDivCurlCost(weight, divergence, curl float64) *DivCurlCost {
	return &DivCurlCost{weight: weight, wd: divergence, wr: curl}
}

func (dc *DivCurlCost) String() string {
	return fmt.Sprintf("divcurl:weight=%g,divergence=%g,curl=%g", dc.weight, dc.wd, dc.wr)
}

func (dc *DivCurlCost) Weight() float64                         { return dc.weight }
func (dc *DivCurlCost) BaseValue() float64                      { return dc.base }
func (dc *DivCurlCost) Has(c Capability) bool                   { return c == Gradient }
func (dc *DivCurlCost) Reinit() error                           { return nil }
func (dc *DivCurlCost) SetSize(types.Size) error                { return nil }
func (dc *DivCurlCost) SetImages(src, ref *image2D.Image) error { return nil }

func (dc *DivCurlCost) Value(t transform2D.Transformation) (float64, error) {
	dc.base = 0
	if r, ok := t.(transform2D.Regularizable); ok {
		dc.base = dc.weight * r.DivCurl(dc.wd, dc.wr, nil)
	}
	return dc.base, nil
}

func (dc *DivCurlCost) Evaluate(t transform2D.Transformation, gradient []float64) (float64, error) {
	if err := checkGradientLength(t, gradient); err != nil {
		return 0, err
	}
	dc.base = 0
	r, ok := t.(transform2D.Regularizable)
	if !ok {
		return 0, nil
	}
	if len(dc.buf) != len(gradient) {
		dc.buf = make([]float64, len(gradient))
	}
	clear(dc.buf)
	dc.base = dc.weight * r.DivCurl(dc.wd, dc.wr, dc.buf)
	floats.AddScaled(gradient, dc.weight, dc.buf)
	return dc.base, nil
}

var costNames = []string{"divcurl", "image"}

// ParseCost understands
//
//	image:kernel=ssd|ncc,weight=1,interp=[bspline:d=3],bc=mirror
//	divcurl:weight=1,divergence=1,curl=1
func ParseCost(descr string) (c Cost, err error) {
	var d utils.Descriptor
	if d, err = utils.ParseDescriptor(descr); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrConfiguration, err)
	}
	fail := func(err error) (Cost, error) {
		return nil, fmt.Errorf("%w: cost %s: %v", types.ErrConfiguration, d.Name, err)
	}
	var weight float64
	if weight, err = d.Float("weight", 1); err != nil {
		return fail(err)
	}
	switch d.Name {
	case "image":
		if unknown := d.Unknown("kernel", "weight", "interp", "bc"); len(unknown) != 0 {
			return fail(fmt.Errorf("unknown options %v", unknown))
		}
		kernel, ok := KernelNameMap[d.String("kernel", "ssd")]
		if !ok {
			return fail(fmt.Errorf("unknown kernel %q, have %v", d.String("kernel", ""), kernelNames()))
		}
		var ipf *image2D.InterpolatorFactory
		if ipf, err = image2D.NewInterpolatorFactory(d.String("interp", "bspline:d=3"), d.String("bc", "mirror")); err != nil {
			return nil, err
		}
		return NewImageCost(kernel, weight, ipf), nil
	case "divcurl":
		if unknown := d.Unknown("weight", "divergence", "curl"); len(unknown) != 0 {
			return fail(fmt.Errorf("unknown options %v", unknown))
		}
		var wd, wr float64
		if wd, err = d.Float("divergence", 1); err != nil {
			return fail(err)
		}
		if wr, err = d.Float("curl", 1); err != nil {
			return fail(err)
		}
		if wd < 0 || wr < 0 {
			return fail(fmt.Errorf("negative weights divergence=%g curl=%g", wd, wr))
		}
		return NewDivCurlCost(weight, wd, wr), nil
	}
	return nil, fmt.Errorf("%w: unknown cost %q, have %v", types.ErrConfiguration, d.Name, costNames)
}

// ParseAggregator builds the sum of the described costs
func ParseAggregator(descrs ...string) (ag *Aggregator, err error) {
	ag = NewAggregator()
	for _, descr := range descrs {
		var c Cost
		if c, err = ParseCost(descr); err != nil {
			return nil, err
		}
		ag.Add(c)
	}
	return
}

func kernelNames() (names []string) {
	for name := range KernelNameMap {
		names = append(names, name)
	}
	sort.Strings(names)
	return
}
