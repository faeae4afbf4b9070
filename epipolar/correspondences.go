// Package epipolar implements two-view epipolar geometry: correspondence
// bookkeeping, the 7-point and 8-point fundamental-matrix solvers, and the
// residuals used to score a fundamental matrix against correspondences.
package epipolar

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrDegenerate is returned when the correspondence configuration carries too
// little geometric information for a solver (too few points, collinear or
// coincident points).
var ErrDegenerate = errors.New("degenerate correspondence configuration")

// CorrespondenceSet holds two ordered point sets where Left[i] in the first
// image corresponds to Right[i] in the second. Indices are the sole identity
// used when reporting inliers.
type CorrespondenceSet struct {
	Left  []r2.Point
	Right []r2.Point
}

// NewCorrespondenceSet pairs up two point sets of equal length.
func NewCorrespondenceSet(left, right []r2.Point) (*CorrespondenceSet, error) {
	if len(left) != len(right) {
		return nil, errors.Errorf("the 2 sets of points don't have the same number of elements: %d != %d", len(left), len(right))
	}
	for i := range left {
		if !pointIsFinite(left[i]) || !pointIsFinite(right[i]) {
			return nil, errors.Errorf("correspondence %d contains non-finite coordinates", i)
		}
	}
	return &CorrespondenceSet{Left: left, Right: right}, nil
}

// Size returns the number of correspondences.
func (cs *CorrespondenceSet) Size() int {
	return len(cs.Left)
}

// Subset returns a new set holding the correspondences at the given indices.
func (cs *CorrespondenceSet) Subset(indices []int) *CorrespondenceSet {
	left := make([]r2.Point, len(indices))
	right := make([]r2.Point, len(indices))
	for i, idx := range indices {
		left[i] = cs.Left[idx]
		right[i] = cs.Right[idx]
	}
	return &CorrespondenceSet{Left: left, Right: right}
}

func pointIsFinite(p r2.Point) bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// normalizePoints normalizes points as described in Multiple View Geometry, Alg 11.1:
// translate to the centroid and scale so the mean distance from the origin is sqrt(2).
// It returns the transformed points and the 3x3 transform that was applied.
func normalizePoints(pts []r2.Point) ([]r2.Point, *mat.Dense, error) {
	nPoints := len(pts)
	// compute centroid of points
	mu := r2.Point{}
	for _, pt := range pts {
		mu.X += pt.X
		mu.Y += pt.Y
	}
	mu = mu.Mul(1. / float64(nPoints))
	// compute scale factor
	d := 0.0
	for _, pt := range pts {
		x2 := (pt.X - mu.X) * (pt.X - mu.X)
		y2 := (pt.Y - mu.Y) * (pt.Y - mu.Y)
		d += math.Sqrt(x2+y2) / float64(nPoints)
	}
	if d == 0 {
		return nil, nil, errors.Wrap(ErrDegenerate, "all points are coincident")
	}
	scale := math.Sqrt(2) / d
	transformData := []float64{
		scale, 0, -scale * mu.X,
		0, scale, -scale * mu.Y,
		0, 0, 1,
	}
	T := mat.NewDense(3, 3, transformData)
	// apply transform to points
	pointsTransformed := make([]r2.Point, nPoints)
	for i := range pointsTransformed {
		pointsTransformed[i] = r2.Point{X: scale * (pts[i].X - mu.X), Y: scale * (pts[i].Y - mu.Y)}
	}
	return pointsTransformed, T, nil
}
