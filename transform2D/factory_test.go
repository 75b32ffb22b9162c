package transform2D

import (
	"bytes"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/notargets/goreg/image2D"
	"github.com/notargets/goreg/types"
)

func TestFactory(t *testing.T) {
	size := types.NewSize(12, 10)
	{ // Every named variant
		for name, v := range VariantNameMap {
			c, err := ParseCreator(name)
			require.NoError(t, err, name)
			assert.Equal(t, v, c.Variant())
			tr, err := c.Create(size)
			require.NoError(t, err)
			assert.Equal(t, v, tr.Variant())
			assert.Equal(t, size, tr.Size())
		}
		assert.Len(t, CreatorNames(), len(VariantNameMap))
	}
	{ // Spline options and defaults
		c, err := ParseCreator("spline")
		require.NoError(t, err)
		assert.Equal(t, "spline:rate=10,kernel=[bspline:d=3]", c.String())
		c, err = ParseCreator("spline:rate=2.5,kernel=[omoms:d=3]")
		require.NoError(t, err)
		tr, err := c.Create(size)
		require.NoError(t, err)
		assert.Equal(t, c.String(), tr.String())
		// String recreates an equivalent creator
		c2, err := ParseCreator(tr.String())
		require.NoError(t, err)
		assert.Equal(t, c.String(), c2.String())
	}
	{ // Configuration errors
		for _, descr := range []string{
			"shear", "affine:rate=3", "spline:rate=0.5", "spline:rate=x",
			"spline:kernel=[bspline:d=9]", "spline:step=2", "spline:rate=[3",
		} {
			_, err := ParseCreator(descr)
			assert.True(t, errors.Is(err, types.ErrConfiguration), descr)
		}
		c, _ := ParseCreator("vf")
		_, err := c.Create(types.Size{})
		assert.True(t, errors.Is(err, types.ErrInvalidArgument))
	}
}

func TestSerialize(t *testing.T) {
	var (
		size = types.NewSize(9, 7)
		rnd  = rand.New(rand.NewSource(8))
	)
	for _, descr := range allDescriptors {
		tr := create(t, descr, size)
		perturb(tr, rnd)
		if st, ok := tr.(*SplineTransform); ok {
			// an upscaled coefficient grid differs from the one a fresh creation makes
			up, err := st.Upscale(types.NewSize(17, 13))
			require.NoError(t, err)
			tr = up
		}
		var buf bytes.Buffer
		require.NoError(t, Save(&buf, tr))
		assert.Contains(t, buf.String(), "MaxTransform")
		back, err := Load(&buf)
		require.NoError(t, err, descr)
		assert.Equal(t, tr.String(), back.String())
		assert.Equal(t, tr.Size(), back.Size())
		assert.Equal(t, tr.Parameters(), back.Parameters(), descr)
		p := r2.Vec{X: 3.5, Y: 2.25}
		assert.Equal(t, tr.Apply(p), back.Apply(p))
	}
	{ // Malformed input
		_, err := Load(bytes.NewBufferString("Transform: [affine"))
		assert.True(t, errors.Is(err, types.ErrInvalidArgument))
		_, err = Load(bytes.NewBufferString("Transform: rigid\nSize: [4, 4]\nParameters: [1, 2]\n"))
		assert.True(t, errors.Is(err, types.ErrInvalidArgument))
		_, err = Load(bytes.NewBufferString("Transform: blur\nSize: [4, 4]\n"))
		assert.True(t, errors.Is(err, types.ErrConfiguration))
	}
}

func TestResample(t *testing.T) {
	var (
		size = types.NewSize(40, 23)
		img  = image2D.NewImageFromFunc(size, func(x, y float64) float64 {
			return math.Sin(0.2*x) * math.Cos(0.15*y)
		})
	)
	for _, kernel := range []string{"linear", "bspline:d=3", "omoms:d=3"} {
		ipf, err := image2D.NewInterpolatorFactory(kernel, "mirror")
		require.NoError(t, err)
		{ // The identity reproduces the image
			w, err := Warp(img, NewAffineTransform(size), ipf)
			require.NoError(t, err)
			assert.InDeltaSlice(t, img.Data, w.Data, 1.e-10, kernel)
		}
		{ // Integer translations shift the pixels
			tr := NewTranslateTransform(size)
			require.NoError(t, tr.SetParameters([]float64{2, -3}))
			ip, err := ipf.Create(img)
			require.NoError(t, err)
			grad := types.NewVectorField(size)
			w, err := Resample(ip, tr, grad)
			require.NoError(t, err)
			for y := 3; y < size.Y; y++ {
				for x := 0; x < size.X-2; x++ {
					assert.InDelta(t, img.At(x+2, y-3), w.At(x, y), 1.e-10)
				}
			}
			// gradient of the source at T(x)
			g := grad.At(10, 10)
			q := r2.Vec{X: 12, Y: 7}
			assert.InDelta(t, 0.2*math.Cos(0.2*q.X)*math.Cos(0.15*q.Y), g.X, 2.e-2, kernel)
			assert.InDelta(t, -0.15*math.Sin(0.2*q.X)*math.Sin(0.15*q.Y), g.Y, 2.e-2, kernel)
		}
		{ // Size mismatches
			ip, _ := ipf.Create(img)
			_, err = Resample(ip, NewRigidTransform(types.NewSize(5, 5)), nil)
			assert.True(t, errors.Is(err, types.ErrInvalidArgument))
			_, err = Resample(ip, NewRigidTransform(size), types.NewVectorField(types.NewSize(2, 2)))
			assert.True(t, errors.Is(err, types.ErrInvalidArgument))
		}
	}
}
