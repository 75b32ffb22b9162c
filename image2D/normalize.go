package image2D

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/notargets/goreg/types"
)

// NormalizePair maps both images jointly to zero mean and unit standard
// deviation. A constant pair returns unchanged copies and sigma 0.
func NormalizePair(a, b *Image) (na, nb *Image, mean, sigma float64, err error) {
	if a.Size != b.Size {
		err = fmt.Errorf("%w: image sizes differ %s vs %s", types.ErrInvalidArgument, a.Size, b.Size)
		return
	}
	joint := make([]float64, 0, len(a.Data)+len(b.Data))
	joint = append(joint, a.Data...)
	joint = append(joint, b.Data...)
	mean, sigma = stat.PopMeanStdDev(joint, nil)
	na, nb = a.Clone(), b.Clone()
	if sigma == 0 {
		return
	}
	for _, img := range []*Image{na, nb} {
		for i, v := range img.Data {
			img.Data[i] = (v - mean) / sigma
		}
	}
	return
}
