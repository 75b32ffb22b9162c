package cost

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/stat"

	"github.com/notargets/goreg/image2D"
	"github.com/notargets/goreg/transform2D"
	"github.com/notargets/goreg/types"
)

//go:generate stringer -type=Kernel

type Kernel uint8

const (
	SSD Kernel = iota
	NCC
)

var KernelNameMap = map[string]Kernel{
	"ssd": SSD,
	"ncc": NCC,
}

func (k Kernel) String() string {
	for name, kk := range KernelNameMap {
		if kk == k {
			return name
		}
	}
	return fmt.Sprintf("Kernel(%d)", uint8(k))
}

// ImageCost compares the source image, warped by the transformation, with the reference
type ImageCost struct {
	kernel   Kernel
	weight   float64
	ipf      *image2D.InterpolatorFactory
	src, ref *image2D.Image
	ip       image2D.Interpolator
	size     types.Size
	base     float64
	// per evaluation buffers
	force  *types.VectorField
	scale  []float64
	params []float64
}

func NewImageCost(kernel Kernel, weight float64, ipf *image2D.InterpolatorFactory) *ImageCost {
	return &ImageCost{kernel: kernel, weight: weight, ipf: ipf}
}

// String is a descriptor ParseCost accepts
func (ic *ImageCost) String() string {
	interp := "linear"
	if ic.ipf.Kernel != nil {
		interp = ic.ipf.Kernel.String()
	}
	return fmt.Sprintf("image:kernel=%s,weight=%g,interp=[%s],bc=%s", ic.kernel, ic.weight, interp, ic.ipf.BC)
}

func (ic *ImageCost) Weight() float64       { return ic.weight }
func (ic *ImageCost) BaseValue() float64    { return ic.base }
func (ic *ImageCost) Has(c Capability) bool { return c == Gradient }

func (ic *ImageCost) SetImages(src, ref *image2D.Image) error {
	if src.Size != ref.Size {
		return fmt.Errorf("%w: source image %s and reference image %s differ in size",
			types.ErrInvalidArgument, src.Size, ref.Size)
	}
	ic.src, ic.ref, ic.ip = src, ref, nil
	ic.size = src.Size
	return nil
}

func (ic *ImageCost) SetSize(size types.Size) error {
	if ic.src != nil && size != ic.src.Size {
		return fmt.Errorf("%w: cost size %s but images of size %s",
			types.ErrInvalidArgument, size, ic.src.Size)
	}
	ic.size = size
	return nil
}

// Reinit prepares the source interpolator
func (ic *ImageCost) Reinit() (err error) {
	if ic.src == nil {
		return fmt.Errorf("%w: image cost has no images", types.ErrInvalidArgument)
	}
	if ic.ip, err = ic.ipf.Create(ic.src); err != nil {
		return
	}
	if ic.force == nil || ic.force.Size != ic.size {
		ic.force = types.NewVectorField(ic.size)
		ic.scale = make([]float64, ic.size.Product())
	}
	return
}

func (ic *ImageCost) warp(t transform2D.Transformation, gradient *types.VectorField) (*image2D.Image, error) {
	if ic.ip == nil {
		if err := ic.Reinit(); err != nil {
			return nil, err
		}
	}
	if t.Size() != ic.size {
		return nil, fmt.Errorf("%w: transformation of size %s for a cost of size %s",
			types.ErrInvalidArgument, t.Size(), ic.size)
	}
	return transform2D.Resample(ic.ip, t, gradient)
}

func (ic *ImageCost) Value(t transform2D.Transformation) (v float64, err error) {
	var warped *image2D.Image
	if warped, err = ic.warp(t, nil); err != nil {
		return
	}
	v = ic.weight * evaluateKernel(ic.kernel, warped.Data, ic.ref.Data, nil)
	ic.base = v
	return
}

// Evaluate pulls the per pixel derivative of the kernel back through the
// source gradient at T(x) and the transformation
func (ic *ImageCost) Evaluate(t transform2D.Transformation, gradient []float64) (v float64, err error) {
	var warped *image2D.Image
	if err = checkGradientLength(t, gradient); err != nil {
		return
	}
	if warped, err = ic.warp(t, ic.force); err != nil {
		return
	}
	v = ic.weight * evaluateKernel(ic.kernel, warped.Data, ic.ref.Data, ic.scale)
	for i, s := range ic.scale {
		ic.force.Data[i] = r2.Scale(ic.weight*s, ic.force.Data[i])
	}
	if len(ic.params) != len(gradient) {
		ic.params = make([]float64, len(gradient))
	}
	if err = t.Translate(ic.force, ic.params); err != nil {
		return
	}
	floats.Add(gradient, ic.params)
	ic.base = v
	return
}

// evaluateKernel returns the similarity of the warped source w and the reference r,
// for a non nil scale it also stores ∂v/∂w_i
func evaluateKernel(k Kernel, w, r, scale []float64) float64 {
	switch k {
	case SSD:
		return ssd(w, r, scale)
	case NCC:
		return ncc(w, r, scale)
	}
	panic(fmt.Sprintf("image cost kernel %s", k))
}

// ssd is half the mean squared difference
func ssd(w, r, scale []float64) (v float64) {
	var (
		n    = float64(len(w))
		diff = make([]float64, len(w))
	)
	floats.SubTo(diff, w, r)
	v = 0.5 * floats.Dot(diff, diff) / n
	if scale != nil {
		floats.ScaleTo(scale, 1/n, diff)
	}
	return
}

// ncc is 1 - ρ², with ρ the correlation coefficient. A constant image has no correlation.
func ncc(w, r, scale []float64) float64 {
	var (
		wt = append([]float64{}, w...)
		rt = append([]float64{}, r...)
	)
	floats.AddConst(-stat.Mean(w, nil), wt)
	floats.AddConst(-stat.Mean(r, nil), rt)
	var (
		A = floats.Dot(wt, rt)
		B = floats.Dot(wt, wt)
		C = floats.Dot(rt, rt)
	)
	if scale != nil {
		clear(scale)
	}
	if B == 0 || C == 0 {
		return 1
	}
	if scale != nil {
		// ∂(1-ρ²)/∂w_i = -2A/(BC) (r̃_i - A/B w̃_i)
		f := -2 * A / (B * C)
		for i := range scale {
			scale[i] = f * (rt[i] - A/B*wt[i])
		}
	}
	return 1 - A*A/(B*C)
}
