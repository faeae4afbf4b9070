package utils

import (
	"math"
	"testing"

	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func TestEye(t *testing.T) {
	m := Eye(3)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if i == j {
				test.That(t, m.At(i, j), test.ShouldEqual, 1.)
			} else {
				test.That(t, m.At(i, j), test.ShouldEqual, 0.)
			}
		}
	}
	test.That(t, Eye(0), test.ShouldBeNil)
}

func TestTranspose(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	mt := Transpose(m)
	rows, cols := mt.Dims()
	test.That(t, rows, test.ShouldEqual, 3)
	test.That(t, cols, test.ShouldEqual, 2)
	test.That(t, mt.At(0, 1), test.ShouldEqual, 4.)
	test.That(t, mt.At(2, 0), test.ShouldEqual, 3.)
}

func TestSVDFullReconstruction(t *testing.T) {
	m := mat.NewDense(3, 3, []float64{4, 1, -2, 1, 3, 0, -2, 0, 5})
	factors, err := SVDFull(m)
	test.That(t, err, test.ShouldBeNil)

	var rec mat.Dense
	rec.Mul(factors.U, factors.S)
	rec.Mul(&rec, factors.VT)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			test.That(t, rec.At(i, j), test.ShouldAlmostEqual, m.At(i, j), 1e-10)
		}
	}
	// singular values are sorted descending
	test.That(t, factors.Values[0], test.ShouldBeGreaterThanOrEqualTo, factors.Values[1])
	test.That(t, factors.Values[1], test.ShouldBeGreaterThanOrEqualTo, factors.Values[2])
}

func TestSVDRank(t *testing.T) {
	// rank 1 matrix
	m := mat.NewDense(3, 3, []float64{1, 2, 3, 2, 4, 6, 3, 6, 9})
	factors, err := SVDFull(m)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, factors.Rank(1e-12), test.ShouldEqual, 1)

	full := mat.NewDense(3, 3, []float64{4, 1, -2, 1, 3, 0, -2, 0, 5})
	factors, err = SVDFull(full)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, factors.Rank(1e-12), test.ShouldEqual, 3)
}

func TestIsFinite(t *testing.T) {
	test.That(t, IsFinite(mat.NewDense(2, 2, []float64{1, 2, 3, 4})), test.ShouldBeTrue)
	test.That(t, IsFinite(mat.NewDense(2, 2, []float64{1, math.NaN(), 3, 4})), test.ShouldBeFalse)
	test.That(t, IsFinite(mat.NewDense(2, 2, []float64{1, 2, math.Inf(1), 4})), test.ShouldBeFalse)
}
