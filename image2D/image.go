package image2D

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/notargets/goreg/types"
)

// Image is a single channel float image stored row-major
type Image struct {
	Size types.Size
	Data []float64
}

func NewImage(size types.Size) *Image {
	if size.IsEmpty() {
		panic(fmt.Sprintf("unable to create image of size %s", size))
	}
	return &Image{
		Size: size,
		Data: make([]float64, size.Product()),
	}
}

// NewImageFromFunc samples f at every pixel
func NewImageFromFunc(size types.Size, f func(x, y float64) float64) (img *Image) {
	img = NewImage(size)
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			img.Data[size.Linear(x, y)] = f(float64(x), float64(y))
		}
	}
	return
}

func (img *Image) At(x, y int) float64 { return img.Data[img.Size.Linear(x, y)] }

func (img *Image) Set(x, y int, v float64) { img.Data[img.Size.Linear(x, y)] = v }

func (img *Image) Clone() *Image {
	R := &Image{
		Size: img.Size,
		Data: make([]float64, len(img.Data)),
	}
	copy(R.Data, img.Data)
	return R
}

func (img *Image) MinMax() (mn, mx float64) {
	return floats.Min(img.Data), floats.Max(img.Data)
}

// Row returns the storage of row y, it aliases the image
func (img *Image) Row(y int) []float64 {
	return img.Data[y*img.Size.X : (y+1)*img.Size.X]
}
