package motion

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/multiview/utils"
)

// ErrAmbiguousPose is returned when the positive-depth test does not single
// out exactly one of the four pose candidates.
var ErrAmbiguousPose = errors.New("pose recovery is ambiguous for this correspondence")

// PoseFromEssentialAndCorrespondence selects the single physically consistent
// pose among the four candidates implied by the essential matrix e. The
// correspondence (x1, x2), one pixel in each image, is back-projected with the
// calibration matrices k1 and k2, triangulated under each candidate, and the
// candidate placing the point in front of both cameras wins. Zero or multiple
// passing candidates yield ErrAmbiguousPose.
func PoseFromEssentialAndCorrespondence(e, k1 *mat.Dense, x1 r2.Point, k2 *mat.Dense, x2 r2.Point) (*PoseCandidate, error) {
	ray1, err := backProject(k1, x1)
	if err != nil {
		return nil, errors.Wrap(err, "first camera")
	}
	ray2, err := backProject(k2, x2)
	if err != nil {
		return nil, errors.Wrap(err, "second camera")
	}

	candidates, err := DecomposeEssential(e)
	if err != nil {
		return nil, err
	}

	var selected *PoseCandidate
	passed := 0
	for i := range candidates {
		cand := candidates[i]
		pt, err := triangulate(cand.R, cand.T, ray1, ray2)
		if err != nil {
			continue
		}
		depth1 := pt.Z
		depth2 := applyPose(cand.R, cand.T, pt).Z
		if depth1 > 0 && depth2 > 0 {
			passed++
			selected = &cand
		}
	}
	if passed != 1 {
		return nil, errors.Wrapf(ErrAmbiguousPose, "%d of 4 candidates passed the positive-depth test", passed)
	}
	return selected, nil
}

// backProject converts a pixel to the normalized camera ray k^-1 * (x, y, 1).
func backProject(k *mat.Dense, p r2.Point) (r3.Vector, error) {
	var kInv mat.Dense
	if err := kInv.Inverse(k); err != nil {
		return r3.Vector{}, errors.Wrap(err, "calibration matrix is not invertible")
	}
	var ray mat.VecDense
	ray.MulVec(&kInv, mat.NewVecDense(3, []float64{p.X, p.Y, 1}))
	return r3.Vector{X: ray.AtVec(0), Y: ray.AtVec(1), Z: ray.AtVec(2)}, nil
}

// triangulate computes the 3D point seen along ray1 from an identity camera
// and along ray2 from a camera at [R|t], with the linear DLT method. It fails
// when the rays do not determine a unique finite point, e.g. when both lie
// along the baseline.
func triangulate(r *mat.Dense, t, ray1, ray2 r3.Vector) (r3.Vector, error) {
	// identity pose for the first camera
	P := mat.NewDense(3, 4, nil)
	P.Set(0, 0, 1)
	P.Set(1, 1, 1)
	P.Set(2, 2, 1)
	// [R|t] for the second
	var Pdash mat.Dense
	Pdash.Augment(r, mat.NewDense(3, 1, []float64{t.X, t.Y, t.Z}))

	ray1CrossP := mat.NewDense(3, 4, nil)
	ray1CrossP.Mul(crossProductMat(ray1), P)
	ray2CrossPdash := mat.NewDense(3, 4, nil)
	ray2CrossPdash.Mul(crossProductMat(ray2), &Pdash)
	var A mat.Dense
	A.Stack(ray1CrossP, ray2CrossPdash)

	factors, err := utils.SVDFull(&A)
	if err != nil {
		return r3.Vector{}, err
	}
	if rank := factors.Rank(rcond); rank < 3 {
		return r3.Vector{}, errors.New("triangulation is underdetermined")
	}
	pt := factors.V.ColView(3)
	w := pt.AtVec(3)
	scale := math.Abs(pt.AtVec(0)) + math.Abs(pt.AtVec(1)) + math.Abs(pt.AtVec(2))
	if math.Abs(w) <= rcond*scale {
		return r3.Vector{}, errors.New("triangulated point is at infinity")
	}
	out := r3.Vector{
		X: pt.AtVec(0) / w,
		Y: pt.AtVec(1) / w,
		Z: pt.AtVec(2) / w,
	}
	if math.IsNaN(out.X) || math.IsNaN(out.Y) || math.IsNaN(out.Z) {
		return r3.Vector{}, errors.Wrap(utils.ErrNotFinite, "triangulated point")
	}
	return out, nil
}

// crossProductMat returns the matrix form [p]x of the cross product with p.
func crossProductMat(p r3.Vector) *mat.Dense {
	cross := mat.NewDense(3, 3, nil)
	cross.Set(0, 1, -p.Z)
	cross.Set(0, 2, p.Y)
	cross.Set(1, 0, p.Z)
	cross.Set(1, 2, -p.X)
	cross.Set(2, 0, -p.Y)
	cross.Set(2, 1, p.X)
	return cross
}

// applyPose maps a point from the first camera frame into the second.
func applyPose(r *mat.Dense, t, pt r3.Vector) r3.Vector {
	return r3.Vector{
		X: r.At(0, 0)*pt.X + r.At(0, 1)*pt.Y + r.At(0, 2)*pt.Z + t.X,
		Y: r.At(1, 0)*pt.X + r.At(1, 1)*pt.Y + r.At(1, 2)*pt.Z + t.Y,
		Z: r.At(2, 0)*pt.X + r.At(2, 1)*pt.Y + r.At(2, 2)*pt.Z + t.Z,
	}
}
