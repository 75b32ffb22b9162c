package image2D

import (
	"fmt"

	"github.com/notargets/goreg/types"
	"github.com/notargets/goreg/utils"
)

// Filter is an image to image operation
type Filter interface {
	Filter(img *Image) (*Image, error)
}

// Downscaler averages Block x Block pixel tiles, partial tiles at the border
// average the pixels they contain.
type Downscaler struct {
	Block int
}

func NewDownscaler(block int) (*Downscaler, error) {
	if block < 1 {
		return nil, fmt.Errorf("%w: downscale block size %d", types.ErrConfiguration, block)
	}
	return &Downscaler{Block: block}, nil
}

// ParseFilter understands "downscale:b=<block>"
func ParseFilter(descr string) (f Filter, err error) {
	var d utils.Descriptor
	if d, err = utils.ParseDescriptor(descr); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrConfiguration, err)
	}
	switch d.Name {
	case "downscale":
		var b int
		if b, err = d.Int("b", 2); err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrConfiguration, err)
		}
		return NewDownscaler(b)
	}
	return nil, fmt.Errorf("%w: unknown filter %q", types.ErrConfiguration, d.Name)
}

func (ds *Downscaler) TargetSize(size types.Size) types.Size {
	return types.NewSize((size.X+ds.Block-1)/ds.Block, (size.Y+ds.Block-1)/ds.Block)
}

func (ds *Downscaler) Filter(img *Image) (R *Image, err error) {
	if ds.Block == 1 {
		return img.Clone(), nil
	}
	var (
		size = ds.TargetSize(img.Size)
		b    = ds.Block
	)
	R = NewImage(size)
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			var (
				sum float64
				n   int
			)
			for yy := y * b; yy < min((y+1)*b, img.Size.Y); yy++ {
				for xx := x * b; xx < min((x+1)*b, img.Size.X); xx++ {
					sum += img.At(xx, yy)
					n++
				}
			}
			R.Set(x, y, sum/float64(n))
		}
	}
	return
}
