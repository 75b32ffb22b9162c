package transform2D

import (
	"fmt"
	"image"

	"golang.org/x/sync/errgroup"

	"github.com/notargets/goreg/image2D"
	"github.com/notargets/goreg/types"
	"github.com/notargets/goreg/utils"
)

// Resample evaluates the interpolated source at T(x) for every grid point x.
// When gradient is not nil it receives the source gradient at T(x).
// Rows are processed in parallel buckets, each with its own sampler.
func Resample(ip image2D.Interpolator, t Transformation, gradient *types.VectorField) (R *image2D.Image, err error) {
	var (
		size = t.Size()
	)
	if ip.Size() != size {
		return nil, fmt.Errorf("%w: source of size %s, transformation of size %s",
			types.ErrInvalidArgument, ip.Size(), size)
	}
	if gradient != nil && gradient.Size != size {
		return nil, fmt.Errorf("%w: gradient of size %s, transformation of size %s",
			types.ErrInvalidArgument, gradient.Size, size)
	}
	var (
		pm = utils.NewPartitionMap(utils.DefaultParallelDegree(size.Y), size.Y)
		eg errgroup.Group
	)
	R = image2D.NewImage(size)
	for bn := 0; bn < pm.ParallelDegree; bn++ {
		y0, y1 := pm.GetBucketRange(bn)
		if y1 == y0 {
			continue
		}
		eg.Go(func() error {
			sampler := ip.NewSampler()
			for pt, q := range t.PointsIn(image.Rect(0, y0, size.X, y1)) {
				i := size.Linear(pt.X, pt.Y)
				if gradient == nil {
					R.Data[i] = sampler.Value(q)
					continue
				}
				R.Data[i], gradient.Data[i] = sampler.ValueAndGradient(q)
			}
			return nil
		})
	}
	err = eg.Wait()
	return
}

// Warp is the one shot form of Resample
func Warp(img *image2D.Image, t Transformation, ipf *image2D.InterpolatorFactory) (*image2D.Image, error) {
	ip, err := ipf.Create(img)
	if err != nil {
		return nil, err
	}
	return Resample(ip, t, nil)
}
