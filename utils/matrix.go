package utils

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrNotFinite is returned when a numerical routine produces NaN or Inf values.
var ErrNotFinite = errors.New("result contains non-finite values")

// Eye creates an identity matrix of size nxn.
func Eye(n int) *mat.Dense {
	if n <= 0 {
		return nil
	}
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// Transpose returns the transpose of m as a new dense matrix.
func Transpose(m *mat.Dense) *mat.Dense {
	nRows, nCols := m.Dims()
	m2 := mat.NewDense(nCols, nRows, nil)
	m2.Copy(m.T())
	return m2
}

// SVDFactors stores the matrices from a full SVD decomposition.
type SVDFactors struct {
	U      *mat.Dense
	V      *mat.Dense
	VT     *mat.Dense
	S      *mat.Dense
	Values []float64
}

// SVDFull performs a full SVD on the input matrix and returns U, V, V^T and
// Sigma from the decomposition.
func SVDFull(inputMatrix *mat.Dense) (*SVDFactors, error) {
	var svd mat.SVD
	if ok := svd.Factorize(inputMatrix, mat.SVDFull); !ok {
		return nil, errors.Wrap(ErrNotFinite, "SVD failed to converge")
	}

	u, v, sigma, vt := &mat.Dense{}, &mat.Dense{}, &mat.Dense{}, &mat.Dense{}

	svd.UTo(u)
	svd.VTo(v)
	vt.CloneFrom(v.T())

	singularValues := svd.Values(nil)
	sigma.CloneFrom(mat.NewDiagDense(len(singularValues), singularValues))

	f := &SVDFactors{u, v, vt, sigma, singularValues}
	if !IsFinite(f.U) || !IsFinite(f.V) {
		return nil, errors.Wrap(ErrNotFinite, "SVD produced non-finite factors")
	}
	return f, nil
}

// Rank counts the singular values greater than rcond times the largest
// singular value.
func (f *SVDFactors) Rank(rcond float64) int {
	if len(f.Values) == 0 {
		return 0
	}
	cutoff := rcond * f.Values[0]
	rank := 0
	for _, v := range f.Values {
		if v > cutoff {
			rank++
		}
	}
	return rank
}

// IsFinite reports whether every entry of m is neither NaN nor Inf.
func IsFinite(m mat.Matrix) bool {
	rows, cols := m.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}
