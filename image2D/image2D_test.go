package image2D

import (
	"bytes"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/notargets/goreg/types"
)

func smoothImage(size types.Size) *Image {
	return NewImageFromFunc(size, func(x, y float64) float64 {
		return 100 + 40*math.Sin(0.4*x)*math.Cos(0.3*y) + x
	})
}

func TestImage(t *testing.T) {
	img := NewImageFromFunc(types.NewSize(3, 2), func(x, y float64) float64 { return x + 10*y })
	assert.Equal(t, 12., img.At(2, 1))
	c := img.Clone()
	c.Set(0, 0, -1)
	assert.Equal(t, 0., img.At(0, 0))
	mn, mx := c.MinMax()
	assert.Equal(t, -1., mn)
	assert.Equal(t, 12., mx)
	assert.Equal(t, []float64{10, 11, 12}, img.Row(1))
	assert.Panics(t, func() { NewImage(types.NewSize(0, 1)) })
}

func TestNormalize(t *testing.T) {
	a := NewImageFromFunc(types.NewSize(4, 4), func(x, y float64) float64 { return x })
	b := NewImageFromFunc(types.NewSize(4, 4), func(x, y float64) float64 { return 2 * y })
	na, nb, _, sigma, err := NormalizePair(a, b)
	require.NoError(t, err)
	assert.Greater(t, sigma, 0.)
	var sum, sum2 float64
	for _, img := range []*Image{na, nb} {
		for _, v := range img.Data {
			sum += v
			sum2 += v * v
		}
	}
	assert.InDelta(t, 0., sum/32, 1.e-12)
	assert.InDelta(t, 1., sum2/32, 1.e-12)
	{ // constant images
		c := NewImageFromFunc(types.NewSize(2, 2), func(x, y float64) float64 { return 3 })
		nc, _, _, sigma, err := NormalizePair(c, c)
		assert.NoError(t, err)
		assert.Equal(t, 0., sigma)
		assert.Equal(t, c.Data, nc.Data)
	}
	_, _, _, _, err = NormalizePair(a, NewImage(types.NewSize(2, 2)))
	assert.True(t, errors.Is(err, types.ErrInvalidArgument))
}

func TestDownscale(t *testing.T) {
	img := NewImageFromFunc(types.NewSize(5, 4), func(x, y float64) float64 { return x + 10*y })
	ds, err := NewDownscaler(2)
	require.NoError(t, err)
	assert.Equal(t, types.NewSize(3, 2), ds.TargetSize(img.Size))
	small, err := ds.Filter(img)
	require.NoError(t, err)
	assert.Equal(t, types.NewSize(3, 2), small.Size)
	assert.InDelta(t, 5.5, small.At(0, 0), 1.e-14)
	assert.InDelta(t, 4+5, small.At(2, 0), 1.e-14) // partial tile averages rows 0,1 of column 4
	assert.InDelta(t, 25+0.5+2, small.At(1, 1), 1.e-14)
	_, err = NewDownscaler(0)
	assert.True(t, errors.Is(err, types.ErrConfiguration))
	f, err := ParseFilter("downscale:b=4")
	require.NoError(t, err)
	assert.Equal(t, 4, f.(*Downscaler).Block)
	_, err = ParseFilter("gauss:w=1")
	assert.True(t, errors.Is(err, types.ErrConfiguration))
}

func TestInterpolators(t *testing.T) {
	var (
		size = types.NewSize(24, 20)
		img  = smoothImage(size)
	)
	for _, kernel := range []string{"linear", "bspline:d=2", "bspline:d=3", "omoms:d=3", "bspline:d=5"} {
		ipf, err := NewInterpolatorFactory(kernel, "mirror")
		require.NoError(t, err)
		ip, err := ipf.Create(img)
		require.NoError(t, err)
		s := ip.NewSampler()
		assert.Equal(t, size, ip.Size())
		{ // Interpolation reproduces the samples at grid points
			for _, pt := range [][2]int{{0, 0}, {5, 7}, {23, 19}, {12, 0}} {
				p := r2.Vec{X: float64(pt[0]), Y: float64(pt[1])}
				assert.InDelta(t, img.At(pt[0], pt[1]), s.Value(p), 1.e-9, kernel)
			}
		}
		{ // Gradient matches central differences inside the image
			h := 1.e-6
			for _, p := range []r2.Vec{{X: 5.3, Y: 7.6}, {X: 10.45, Y: 3.2}, {X: 17.7, Y: 12.1}} {
				v, g := s.ValueAndGradient(p)
				assert.InDelta(t, s.Value(p), v, 1.e-12)
				gx := (s.Value(r2.Vec{X: p.X + h, Y: p.Y}) - s.Value(r2.Vec{X: p.X - h, Y: p.Y})) / (2 * h)
				gy := (s.Value(r2.Vec{X: p.X, Y: p.Y + h}) - s.Value(r2.Vec{X: p.X, Y: p.Y - h})) / (2 * h)
				assert.InDelta(t, gx, g.X, 1.e-5, kernel)
				assert.InDelta(t, gy, g.Y, 1.e-5, kernel)
			}
		}
	}
	{ // Linear interpolation clamps outside the image
		ipf, _ := NewInterpolatorFactory("linear", "")
		ip, _ := ipf.Create(img)
		v, g := ip.NewSampler().ValueAndGradient(r2.Vec{X: -3, Y: -2})
		assert.Equal(t, img.At(0, 0), v)
		assert.Equal(t, r2.Vec{}, g)
		assert.Equal(t, "linear", ipf.String())
	}
	{ // Configuration errors
		_, err := NewInterpolatorFactory("bspline:d=4", "zero")
		assert.True(t, errors.Is(err, types.ErrConfiguration))
		_, err = NewInterpolatorFactory("cubic", "mirror")
		assert.True(t, errors.Is(err, types.ErrConfiguration))
		_, err = NewInterpolatorFactory("linear", "wrap")
		assert.True(t, errors.Is(err, types.ErrConfiguration))
	}
}

func TestImageIO(t *testing.T) {
	img := NewImageFromFunc(types.NewSize(9, 7), func(x, y float64) float64 { return 20*x + 3*y })
	dir := t.TempDir()
	for _, ext := range []string{".png", ".tif", ".bmp"} {
		path := filepath.Join(dir, "img"+ext)
		require.NoError(t, Save(path, img))
		back, err := Load(path)
		require.NoError(t, err, ext)
		assert.Equal(t, img.Size, back.Size)
		for i, v := range img.Data {
			assert.InDelta(t, v, back.Data[i], 0.51, ext)
		}
	}
	var buf bytes.Buffer
	err := Encode(&buf, ".gif", img)
	assert.True(t, errors.Is(err, types.ErrInvalidArgument))
	_, err = Load(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}
