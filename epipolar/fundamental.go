package epipolar

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/multiview/utils"
)

// rcond is the near zero condition threshold used for rank determination.
const rcond = 1e-12

// EightPoint computes a fundamental matrix from at least 8 correspondences
// with the linear 8-point algorithm. If normalize is true, points are
// conditioned per Hartley before solving and the result is denormalized
// before return. The returned matrix has rank 2.
func EightPoint(set *CorrespondenceSet, normalize bool) (*mat.Dense, error) {
	nPoints := set.Size()
	if nPoints < 8 {
		return nil, errors.Wrapf(ErrDegenerate, "sets of points must have at least 8 elements, got %d", nPoints)
	}

	points1, points2 := set.Left, set.Right
	T1, T2 := utils.Eye(3), utils.Eye(3)

	if normalize {
		var err error
		points1, T1, err = normalizePoints(set.Left)
		if err != nil {
			return nil, err
		}
		points2, T2, err = normalizePoints(set.Right)
		if err != nil {
			return nil, err
		}
	}

	m := designMatrix(points1, points2)

	f, err := solveHomogeneous(m, 8)
	if err != nil {
		return nil, err
	}

	// enforce rank 2 of F
	f, err = enforceRankTwo(f)
	if err != nil {
		return nil, err
	}

	// rescale F: T2^T @ F @ T1
	f.Mul(utils.Transpose(T2), f)
	f.Mul(f, T1)

	if v := f.At(2, 2); math.Abs(v) > rcond {
		f.Scale(1/v, f)
	} else {
		f.Scale(1/mat.Norm(f, 2), f)
	}
	if !utils.IsFinite(f) {
		return nil, errors.Wrap(utils.ErrNotFinite, "8-point solution")
	}
	return f, nil
}

// SevenPoint computes the 1 to 3 fundamental-matrix candidates consistent
// with exactly 7 correspondences. The null space of the 7x9 constraint
// matrix is two dimensional; the true solution F = a*F1 + (1-a)*F2 must have
// det(F) = 0, a cubic in a whose real roots give the candidates.
func SevenPoint(set *CorrespondenceSet) ([]*mat.Dense, error) {
	if n := set.Size(); n != 7 {
		return nil, errors.Wrapf(ErrDegenerate, "the 7-point solver needs exactly 7 correspondences, got %d", n)
	}

	m := designMatrix(set.Left, set.Right)
	factors, err := utils.SVDFull(m)
	if err != nil {
		return nil, err
	}
	if rank := factors.Rank(rcond); rank < 7 {
		return nil, errors.Wrapf(ErrDegenerate, "constraint matrix has rank %d, need 7", rank)
	}

	// the two right singular vectors spanning the null space
	f1 := matFromColumn(factors.V, 7)
	f2 := matFromColumn(factors.V, 8)

	// det(a*F1 + (1-a)*F2) is cubic in a; recover its coefficients by
	// evaluating the determinant at a = 0, 1, -1, 2.
	d0 := mat.Det(f2)
	d1 := mat.Det(f1)
	dm1 := detBlend(f1, f2, -1)
	d2 := detBlend(f1, f2, 2)

	c0 := d0
	c2 := (d1+dm1)/2 - d0
	c3 := (d2 - d0 - 4*c2 - (d1 - dm1)) / 6
	c1 := (d1-dm1)/2 - c3

	roots := utils.CubicRoots(c3, c2, c1, c0)
	if len(roots) == 0 {
		return nil, errors.Wrap(ErrDegenerate, "determinant constraint has no real roots")
	}

	candidates := make([]*mat.Dense, 0, len(roots))
	for _, alpha := range roots {
		if math.IsNaN(alpha) || math.IsInf(alpha, 0) {
			return nil, errors.Wrap(utils.ErrNotFinite, "cubic root")
		}
		f := blend(f1, f2, alpha)
		f, err := enforceRankTwo(f)
		if err != nil {
			return nil, err
		}
		f.Scale(1/mat.Norm(f, 2), f)
		if !utils.IsFinite(f) {
			return nil, errors.Wrap(utils.ErrNotFinite, "7-point candidate")
		}
		candidates = append(candidates, f)
	}
	return candidates, nil
}

// designMatrix builds the Nx9 matrix whose rows encode the epipolar
// constraint x2^T F x1 = 0 for each correspondence.
func designMatrix(points1, points2 []r2.Point) *mat.Dense {
	m := mat.NewDense(len(points1), 9, nil)
	for i := range points1 {
		v1 := points1[i]
		v2 := points2[i]
		m.SetRow(i, []float64{
			v2.X * v1.X, v2.X * v1.Y, v2.X,
			v2.Y * v1.X, v2.Y * v1.Y, v2.Y,
			v1.X, v1.Y, 1,
		})
	}
	return m
}

// solveHomogeneous finds the unit vector minimizing |m*f| and reshapes it
// into a 3x3 matrix, requiring the design matrix to have at least minRank.
func solveHomogeneous(m *mat.Dense, minRank int) (*mat.Dense, error) {
	factors, err := utils.SVDFull(m)
	if err != nil {
		return nil, err
	}
	if rank := factors.Rank(rcond); rank < minRank {
		return nil, errors.Wrapf(ErrDegenerate, "design matrix has rank %d, need %d", rank, minRank)
	}
	return matFromColumn(factors.V, 8), nil
}

// matFromColumn reshapes column col of v into a row-major 3x3 matrix.
func matFromColumn(v *mat.Dense, col int) *mat.Dense {
	data := make([]float64, 9)
	for i := range data {
		data[i] = v.At(i, col)
	}
	return mat.NewDense(3, 3, data)
}

// enforceRankTwo projects f onto the closest rank-2 matrix by zeroing its
// smallest singular value.
func enforceRankTwo(f *mat.Dense) (*mat.Dense, error) {
	factors, err := utils.SVDFull(f)
	if err != nil {
		return nil, err
	}
	S := factors.S
	S.Set(2, 2, 0)
	out := mat.NewDense(3, 3, nil)
	out.Mul(factors.U, S)
	out.Mul(out, factors.VT)
	return out, nil
}

func blend(f1, f2 *mat.Dense, alpha float64) *mat.Dense {
	out := mat.NewDense(3, 3, nil)
	var s1, s2 mat.Dense
	s1.Scale(alpha, f1)
	s2.Scale(1-alpha, f2)
	out.Add(&s1, &s2)
	return out
}

func detBlend(f1, f2 *mat.Dense, alpha float64) float64 {
	return mat.Det(blend(f1, f2, alpha))
}
