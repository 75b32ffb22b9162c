package image2D

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/notargets/goreg/types"
)

// Load reads a PNG, JPEG, TIFF or BMP file as luminance in [0,255]
func Load(path string) (img *Image, err error) {
	var file *os.File
	if file, err = os.Open(path); err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()
	if img, err = Decode(file); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return
}

func Decode(r io.Reader) (img *Image, err error) {
	var src image.Image
	if src, _, err = image.Decode(r); err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	b := src.Bounds()
	img = NewImage(types.NewSize(b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.Gray16Model.Convert(src.At(x, y)).(color.Gray16)
			img.Set(x-b.Min.X, y-b.Min.Y, float64(g.Y)/257.)
		}
	}
	return
}

// ToGray16 clamps the values into [0,255] at 16 bit precision
func (img *Image) ToGray16() *image.Gray16 {
	R := image.NewGray16(img.Size.Rect())
	for y := 0; y < img.Size.Y; y++ {
		for x := 0; x < img.Size.X; x++ {
			v := math.Round(257. * img.At(x, y))
			R.SetGray16(x, y, color.Gray16{Y: uint16(math.Max(0, math.Min(65535, v)))})
		}
	}
	return R
}

// Save picks the encoder from the file extension
func Save(path string, img *Image) (err error) {
	var file *os.File
	if file, err = os.Create(path); err != nil {
		return fmt.Errorf("failed to create image: %w", err)
	}
	if err = Encode(file, strings.ToLower(filepath.Ext(path)), img); err != nil {
		file.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return file.Close()
}

func Encode(w io.Writer, ext string, img *Image) error {
	g16 := img.ToGray16()
	switch ext {
	case ".png":
		return png.Encode(w, g16)
	case ".tif", ".tiff":
		return tiff.Encode(w, g16, &tiff.Options{Compression: tiff.Deflate})
	case ".bmp":
		g8 := image.NewGray(g16.Bounds())
		for y := 0; y < img.Size.Y; y++ {
			for x := 0; x < img.Size.X; x++ {
				g8.Set(x, y, g16.At(x, y))
			}
		}
		return bmp.Encode(w, g8)
	}
	return fmt.Errorf("%w: unsupported image format %q", types.ErrInvalidArgument, ext)
}
