// Package motion recovers relative camera motion from an essential matrix:
// decomposition into the four algebraic (R, t) candidates and chirality-based
// disambiguation down to the single physical one.
package motion

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/multiview/utils"
)

// rcond is the near zero condition threshold used for rank determination.
const rcond = 1e-9

// PoseCandidate is one (rotation, translation) interpretation of an essential
// matrix. R is orthonormal with determinant +1; T is unit norm, its scale
// being unrecoverable from two views.
type PoseCandidate struct {
	R *mat.Dense
	T r3.Vector
}

// EssentialFromFundamental returns the essential matrix K2^T * F * K1 relating
// calibrated rays, with rank 2 enforced.
func EssentialFromFundamental(f, k1, k2 *mat.Dense) (*mat.Dense, error) {
	if !utils.IsFinite(f) {
		return nil, errors.Wrap(utils.ErrNotFinite, "fundamental matrix")
	}
	var essMat, tmp mat.Dense
	tmp.Mul(utils.Transpose(k2), f)
	essMat.Mul(&tmp, k1)
	// enforce rank 2
	factors, err := utils.SVDFull(&essMat)
	if err != nil {
		return nil, err
	}
	S := factors.S
	S.Set(2, 2, 0)
	essMat.Mul(factors.U, S)
	essMat.Mul(&essMat, factors.VT)
	return &essMat, nil
}

// DecomposeEssential decomposes an essential matrix into its four algebraic
// pose candidates (U W V^T, +-u3) and (U W^T V^T, +-u3). The singular
// spectrum is idealized to diag(1, 1, 0) before extraction, which leaves U
// and V untouched but rejects rank-deficient inputs.
func DecomposeEssential(essMat *mat.Dense) ([]PoseCandidate, error) {
	if !utils.IsFinite(essMat) {
		return nil, errors.Wrap(utils.ErrNotFinite, "essential matrix")
	}
	factors, err := utils.SVDFull(essMat)
	if err != nil {
		return nil, err
	}
	if rank := factors.Rank(rcond); rank < 2 {
		return nil, errors.Errorf("essential matrix must have rank 2, got rank %d", rank)
	}
	// check determinant sign of U and V
	if mat.Det(factors.U) < 0 {
		factors.U.Scale(-1, factors.U)
	}
	if mat.Det(factors.VT) < 0 {
		factors.VT.Scale(-1, factors.VT)
	}
	// the fixed 90 degree rotation about z
	W := mat.NewDense(3, 3, nil)
	W.Set(0, 1, 1)
	W.Set(1, 0, -1)
	W.Set(2, 2, 1)

	var R1, R2 mat.Dense
	// UWV^T
	R1.Mul(factors.U, W)
	R1.Mul(&R1, factors.VT)
	// UW^TV^T
	R2.Mul(factors.U, utils.Transpose(W))
	R2.Mul(&R2, factors.VT)

	U3 := factors.U.ColView(2)
	t := r3.Vector{X: U3.AtVec(0), Y: U3.AtVec(1), Z: U3.AtVec(2)}

	candidates := []PoseCandidate{
		{R: mat.DenseCopyOf(&R1), T: t},
		{R: mat.DenseCopyOf(&R1), T: t.Mul(-1)},
		{R: mat.DenseCopyOf(&R2), T: t},
		{R: mat.DenseCopyOf(&R2), T: t.Mul(-1)},
	}
	for i := range candidates {
		if mat.Det(candidates[i].R) < 0 {
			candidates[i].R.Scale(-1, candidates[i].R)
		}
	}
	return candidates, nil
}
