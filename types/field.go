package types

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
)

// VectorField holds one 2D vector per grid point, row-major. It is used for
// image gradients, cost forces, dense displacement fields and spline coefficients.
type VectorField struct {
	Size Size
	Data []r2.Vec
}

func NewVectorField(size Size) (vf *VectorField) {
	if size.IsEmpty() {
		panic(fmt.Sprintf("unable to create vector field of size %s", size))
	}
	vf = &VectorField{
		Size: size,
		Data: make([]r2.Vec, size.Product()),
	}
	return
}

func (vf *VectorField) At(x, y int) r2.Vec { return vf.Data[vf.Size.Linear(x, y)] }

func (vf *VectorField) Set(x, y int, v r2.Vec) { vf.Data[vf.Size.Linear(x, y)] = v }

// Clone makes a deep copy, fields never share storage
func (vf *VectorField) Clone() (R *VectorField) {
	R = &VectorField{
		Size: vf.Size,
		Data: make([]r2.Vec, len(vf.Data)),
	}
	copy(R.Data, vf.Data)
	return
}

func (vf *VectorField) Zero() {
	clear(vf.Data)
}

// ScaleAxes multiplies the X and Y components separately
func (vf *VectorField) ScaleAxes(sx, sy float64) {
	for i, v := range vf.Data {
		vf.Data[i] = r2.Vec{X: sx * v.X, Y: sy * v.Y}
	}
}

// Flatten writes the field into interleaved x,y storage
func (vf *VectorField) Flatten(params []float64) {
	if len(params) != 2*len(vf.Data) {
		panic(fmt.Sprintf("parameter length %d does not match field of %d vectors",
			len(params), len(vf.Data)))
	}
	for i, v := range vf.Data {
		params[2*i], params[2*i+1] = v.X, v.Y
	}
}

// Unflatten is the inverse of Flatten
func (vf *VectorField) Unflatten(params []float64) {
	if len(params) != 2*len(vf.Data) {
		panic(fmt.Sprintf("parameter length %d does not match field of %d vectors",
			len(params), len(vf.Data)))
	}
	for i := range vf.Data {
		vf.Data[i] = r2.Vec{X: params[2*i], Y: params[2*i+1]}
	}
}

// MaxNorm is the largest vector length in the field
func (vf *VectorField) MaxNorm() (mx float64) {
	for _, v := range vf.Data {
		if n := r2.Norm(v); n > mx {
			mx = n
		}
	}
	return
}
