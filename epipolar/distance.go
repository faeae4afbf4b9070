package epipolar

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Residual evaluates the epipolar constraint x2^T F x1 for one correspondence.
// It is zero for a perfect correspondence.
func Residual(f *mat.Dense, x1, x2 r2.Point) float64 {
	l := applyF(f, x1)
	return x2.X*l.X + x2.Y*l.Y + l.Z
}

// SampsonDistance returns the first-order geometric approximation of the
// squared distance of a correspondence from the epipolar constraint under f.
func SampsonDistance(f *mat.Dense, x1, x2 r2.Point) float64 {
	l2 := applyF(f, x1)          // epipolar line of x1 in image 2
	l1 := applyFTranspose(f, x2) // epipolar line of x2 in image 1
	e := x2.X*l2.X + x2.Y*l2.Y + l2.Z
	denom := l2.X*l2.X + l2.Y*l2.Y + l1.X*l1.X + l1.Y*l1.Y
	if denom == 0 {
		if e == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return e * e / denom
}

// SymmetricEpipolarDistance returns the sum of the squared distances of each
// point from the epipolar line induced by its counterpart under f.
func SymmetricEpipolarDistance(f *mat.Dense, x1, x2 r2.Point) float64 {
	l2 := applyF(f, x1)
	l1 := applyFTranspose(f, x2)
	e := x2.X*l2.X + x2.Y*l2.Y + l2.Z
	d1 := l1.X*l1.X + l1.Y*l1.Y
	d2 := l2.X*l2.X + l2.Y*l2.Y
	if d1 == 0 || d2 == 0 {
		if e == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return e*e*(1/d1) + e*e*(1/d2)
}

// applyF computes F * (x, y, 1).
func applyF(f *mat.Dense, p r2.Point) r3.Vector {
	return r3.Vector{
		X: f.At(0, 0)*p.X + f.At(0, 1)*p.Y + f.At(0, 2),
		Y: f.At(1, 0)*p.X + f.At(1, 1)*p.Y + f.At(1, 2),
		Z: f.At(2, 0)*p.X + f.At(2, 1)*p.Y + f.At(2, 2),
	}
}

// applyFTranspose computes F^T * (x, y, 1).
func applyFTranspose(f *mat.Dense, p r2.Point) r3.Vector {
	return r3.Vector{
		X: f.At(0, 0)*p.X + f.At(1, 0)*p.Y + f.At(2, 0),
		Y: f.At(0, 1)*p.X + f.At(1, 1)*p.Y + f.At(2, 1),
		Z: f.At(0, 2)*p.X + f.At(1, 2)*p.Y + f.At(2, 2),
	}
}
