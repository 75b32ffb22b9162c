package transform2D

import (
	"fmt"
	"io"

	"github.com/ghodss/yaml"

	"github.com/notargets/goreg/types"
)

// transformFile is the persisted form, floats are written with full precision
type transformFile struct {
	Transform       string    `json:"Transform"`
	Size            [2]int    `json:"Size"`
	CoefficientSize [2]int    `json:"CoefficientSize,omitempty"`
	MaxTransform    float64   `json:"MaxTransform"`
	Parameters      []float64 `json:"Parameters"`
}

func Save(w io.Writer, t Transformation) (err error) {
	tf := transformFile{
		Transform:    t.String(),
		Size:         [2]int{t.Size().X, t.Size().Y},
		MaxTransform: t.MaxTransform(),
		Parameters:   t.Parameters(),
	}
	if st, ok := t.(*SplineTransform); ok {
		cs := st.CoefficientSize()
		tf.CoefficientSize = [2]int{cs.X, cs.Y}
	}
	var data []byte
	if data, err = yaml.Marshal(tf); err != nil {
		return
	}
	_, err = w.Write(data)
	return
}

func Load(r io.Reader) (t Transformation, err error) {
	var (
		data []byte
		tf   transformFile
		c    Creator
	)
	if data, err = io.ReadAll(r); err != nil {
		return
	}
	if err = yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidArgument, err)
	}
	if c, err = ParseCreator(tf.Transform); err != nil {
		return
	}
	if t, err = c.Create(types.NewSize(tf.Size[0], tf.Size[1])); err != nil {
		return
	}
	if st, ok := t.(*SplineTransform); ok && tf.CoefficientSize != [2]int{} {
		cs := types.NewSize(tf.CoefficientSize[0], tf.CoefficientSize[1])
		if cs.IsEmpty() {
			return nil, fmt.Errorf("%w: coefficient size %s", types.ErrInvalidArgument, cs)
		}
		st.resizeCoefficients(cs)
	}
	if err = t.SetParameters(tf.Parameters); err != nil {
		return nil, err
	}
	return
}
