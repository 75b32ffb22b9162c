package utils

import (
	"fmt"

	"github.com/james-bowman/sparse"
)

// DOK is an accumulating dictionary-of-keys builder that finalizes into CSR
type DOK struct {
	M        *sparse.DOK
	readOnly bool
	name     string
}

func NewDOK(nr, nc int) (R DOK) {
	R = DOK{
		sparse.NewDOK(nr, nc),
		false,
		"unnamed - hint: pass a variable name to SetReadOnly()",
	}
	return
}

// Add accumulates val into (i,j)
func (m DOK) Add(i, j int, val float64) DOK {
	m.checkWritable()
	if val != 0 {
		m.M.Set(i, j, m.M.At(i, j)+val)
	}
	return m
}

func (m *DOK) SetReadOnly(name ...string) {
	if len(name) != 0 {
		m.name = name[0]
	}
	m.readOnly = true
}

func (m DOK) checkWritable() {
	if m.readOnly {
		panic(fmt.Errorf("attempt to write to a read only matrix named: \"%v\"", m.name))
	}
}

// ToCSR finalizes the builder for fast products
func (m DOK) ToCSR() *sparse.CSR {
	return m.M.ToCSR()
}

// QuadraticForm computes xᵀ A x for a sparse A
func QuadraticForm(A *sparse.CSR, x []float64) (q float64) {
	var (
		nr, nc = A.Dims()
		ax     = make([]float64, nr)
	)
	if nc != len(x) || nr != len(x) {
		panic(fmt.Sprintf("dimension mismatch: %dx%d operator, vector length %d", nr, nc, len(x)))
	}
	A.MulVecTo(ax, false, x)
	for i, v := range ax {
		q += v * x[i]
	}
	return
}
