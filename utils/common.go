package utils

const (
	// SINGULARTOL bounds the determinant magnitude below which a matrix is treated as singular
	SINGULARTOL = 1.e-10
)
