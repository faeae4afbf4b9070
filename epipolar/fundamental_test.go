package epipolar

import (
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

// test fixture: a calibrated stereo pair with a small rotation and a sideways
// translation, viewing points a few meters in front of both cameras.

func testCalibration() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		800, 0, 320,
		0, 820, 240,
		0, 0, 1,
	})
}

func testRotation() *mat.Dense {
	ay, ax := 0.15, 0.07
	ry := mat.NewDense(3, 3, []float64{
		math.Cos(ay), 0, math.Sin(ay),
		0, 1, 0,
		-math.Sin(ay), 0, math.Cos(ay),
	})
	rx := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, math.Cos(ax), -math.Sin(ax),
		0, math.Sin(ax), math.Cos(ax),
	})
	out := mat.NewDense(3, 3, nil)
	out.Mul(ry, rx)
	return out
}

func testTranslation() r3.Vector {
	return r3.Vector{X: 0.4, Y: 0.15, Z: 0.1}
}

func crossMat(p r3.Vector) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		0, -p.Z, p.Y,
		p.Z, 0, -p.X,
		-p.Y, p.X, 0,
	})
}

// trueEssential returns E = [t]x R for the fixture motion.
func trueEssential(r *mat.Dense, t r3.Vector) *mat.Dense {
	e := mat.NewDense(3, 3, nil)
	e.Mul(crossMat(t), r)
	return e
}

// trueFundamental returns F = K^-T E K^-1 for a single calibration matrix.
func trueFundamental(e, k *mat.Dense) *mat.Dense {
	var kInv mat.Dense
	if err := kInv.Inverse(k); err != nil {
		panic(err)
	}
	f := mat.NewDense(3, 3, nil)
	f.Mul(kInv.T(), e)
	f.Mul(f, &kInv)
	return f
}

// projectThrough projects the 3D point (in the first camera frame) into both
// images, returning pixel coordinates and the two depths.
func projectThrough(k, rot *mat.Dense, t, pt r3.Vector) (p1, p2 r2.Point, z1, z2 float64) {
	pt2 := r3.Vector{
		X: rot.At(0, 0)*pt.X + rot.At(0, 1)*pt.Y + rot.At(0, 2)*pt.Z + t.X,
		Y: rot.At(1, 0)*pt.X + rot.At(1, 1)*pt.Y + rot.At(1, 2)*pt.Z + t.Y,
		Z: rot.At(2, 0)*pt.X + rot.At(2, 1)*pt.Y + rot.At(2, 2)*pt.Z + t.Z,
	}
	p1 = r2.Point{
		X: (pt.X/pt.Z)*k.At(0, 0) + k.At(0, 2),
		Y: (pt.Y/pt.Z)*k.At(1, 1) + k.At(1, 2),
	}
	p2 = r2.Point{
		X: (pt2.X/pt2.Z)*k.At(0, 0) + k.At(0, 2),
		Y: (pt2.Y/pt2.Z)*k.At(1, 1) + k.At(1, 2),
	}
	return p1, p2, pt.Z, pt2.Z
}

// syntheticCorrespondences builds n noiseless correspondences of the fixture
// motion along with the ground-truth fundamental matrix.
func syntheticCorrespondences(tb testing.TB, n int, seed int64) (*CorrespondenceSet, *mat.Dense) {
	tb.Helper()
	k := testCalibration()
	rot := testRotation()
	t := testTranslation()
	f := trueFundamental(trueEssential(rot, t), k)

	r := rand.New(rand.NewSource(seed))
	left := make([]r2.Point, 0, n)
	right := make([]r2.Point, 0, n)
	for len(left) < n {
		pt := r3.Vector{
			X: r.Float64()*6 - 3,
			Y: r.Float64()*4 - 2,
			Z: r.Float64()*6 + 4,
		}
		p1, p2, z1, z2 := projectThrough(k, rot, t, pt)
		if z1 <= 0 || z2 <= 0 {
			continue
		}
		left = append(left, p1)
		right = append(right, p2)
	}
	set, err := NewCorrespondenceSet(left, right)
	test.That(tb, err, test.ShouldBeNil)
	return set, f
}

// scaleDiff returns the largest entry difference between a and b after
// normalizing both to unit Frobenius norm and a common sign.
func scaleDiff(a, b *mat.Dense) float64 {
	an := mat.DenseCopyOf(a)
	bn := mat.DenseCopyOf(b)
	an.Scale(1/mat.Norm(an, 2), an)
	bn.Scale(1/mat.Norm(bn, 2), bn)

	// align signs using the largest entry of a
	bi, bj, best := 0, 0, 0.0
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if v := math.Abs(an.At(i, j)); v > best {
				best, bi, bj = v, i, j
			}
		}
	}
	if an.At(bi, bj)*bn.At(bi, bj) < 0 {
		bn.Scale(-1, bn)
	}
	maxDiff := 0.0
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if d := math.Abs(an.At(i, j) - bn.At(i, j)); d > maxDiff {
				maxDiff = d
			}
		}
	}
	return maxDiff
}

func smallestSingularValue(tb testing.TB, f *mat.Dense) float64 {
	tb.Helper()
	var svd mat.SVD
	test.That(tb, svd.Factorize(f, mat.SVDFull), test.ShouldBeTrue)
	values := svd.Values(nil)
	return values[len(values)-1]
}

func TestNewCorrespondenceSet(t *testing.T) {
	_, err := NewCorrespondenceSet(make([]r2.Point, 3), make([]r2.Point, 4))
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewCorrespondenceSet(
		[]r2.Point{{X: math.NaN(), Y: 0}},
		[]r2.Point{{X: 1, Y: 1}},
	)
	test.That(t, err, test.ShouldNotBeNil)

	set, err := NewCorrespondenceSet(
		[]r2.Point{{X: 1, Y: 2}, {X: 3, Y: 4}},
		[]r2.Point{{X: 5, Y: 6}, {X: 7, Y: 8}},
	)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, set.Size(), test.ShouldEqual, 2)

	sub := set.Subset([]int{1})
	test.That(t, sub.Size(), test.ShouldEqual, 1)
	test.That(t, sub.Left[0], test.ShouldResemble, r2.Point{X: 3, Y: 4})
	test.That(t, sub.Right[0], test.ShouldResemble, r2.Point{X: 7, Y: 8})
}

func TestEightPointRecoversF(t *testing.T) {
	set, fTrue := syntheticCorrespondences(t, 20, 11)

	f, err := EightPoint(set, true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, scaleDiff(f, fTrue), test.ShouldBeLessThan, 1e-6)
	for i := 0; i < set.Size(); i++ {
		test.That(t, SampsonDistance(f, set.Left[i], set.Right[i]), test.ShouldBeLessThan, 1e-6)
	}

	// without normalization the solution is the same on clean data
	f, err = EightPoint(set, false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, scaleDiff(f, fTrue), test.ShouldBeLessThan, 1e-4)
}

func TestEightPointRankTwo(t *testing.T) {
	set, _ := syntheticCorrespondences(t, 30, 3)
	f, err := EightPoint(set, true)
	test.That(t, err, test.ShouldBeNil)
	// the rank-2 constraint must hold exactly, not approximately
	norm := mat.Norm(f, 2)
	test.That(t, smallestSingularValue(t, f)/norm, test.ShouldBeLessThan, 1e-12)
	test.That(t, math.Abs(mat.Det(f))/(norm*norm*norm), test.ShouldBeLessThan, 1e-12)
}

func TestEightPointDegenerate(t *testing.T) {
	set, _ := syntheticCorrespondences(t, 7, 5)
	_, err := EightPoint(set, true)
	test.That(t, errors.Is(err, ErrDegenerate), test.ShouldBeTrue)

	// collinear points have no unique solution
	left := make([]r2.Point, 10)
	right := make([]r2.Point, 10)
	for i := range left {
		x := float64(i) * 10
		left[i] = r2.Point{X: x, Y: 2*x + 5}
		right[i] = r2.Point{X: x, Y: 2*x + 5}
	}
	collinear, err := NewCorrespondenceSet(left, right)
	test.That(t, err, test.ShouldBeNil)
	_, err = EightPoint(collinear, true)
	test.That(t, errors.Is(err, ErrDegenerate), test.ShouldBeTrue)

	// coincident points fail in normalization
	for i := range left {
		left[i] = r2.Point{X: 5, Y: 5}
		right[i] = r2.Point{X: 6, Y: 6}
	}
	coincident, err := NewCorrespondenceSet(left, right)
	test.That(t, err, test.ShouldBeNil)
	_, err = EightPoint(coincident, true)
	test.That(t, errors.Is(err, ErrDegenerate), test.ShouldBeTrue)
}

func TestSevenPointContainsF(t *testing.T) {
	set, fTrue := syntheticCorrespondences(t, 7, 17)

	candidates, err := SevenPoint(set)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(candidates), test.ShouldBeGreaterThanOrEqualTo, 1)
	test.That(t, len(candidates), test.ShouldBeLessThanOrEqualTo, 3)

	bestDiff := math.Inf(1)
	for _, f := range candidates {
		// every candidate satisfies the rank-2 constraint
		test.That(t, smallestSingularValue(t, f), test.ShouldBeLessThan, 1e-10)
		if d := scaleDiff(f, fTrue); d < bestDiff {
			bestDiff = d
		}
	}
	test.That(t, bestDiff, test.ShouldBeLessThan, 1e-4)
}

func TestSevenPointRejectsWrongCount(t *testing.T) {
	set, _ := syntheticCorrespondences(t, 6, 23)
	_, err := SevenPoint(set)
	test.That(t, errors.Is(err, ErrDegenerate), test.ShouldBeTrue)

	set, _ = syntheticCorrespondences(t, 8, 23)
	_, err = SevenPoint(set)
	test.That(t, errors.Is(err, ErrDegenerate), test.ShouldBeTrue)
}

func TestSevenPointDegenerate(t *testing.T) {
	left := make([]r2.Point, 7)
	right := make([]r2.Point, 7)
	for i := range left {
		left[i] = r2.Point{X: 1, Y: 2}
		right[i] = r2.Point{X: 3, Y: 4}
	}
	set, err := NewCorrespondenceSet(left, right)
	test.That(t, err, test.ShouldBeNil)
	_, err = SevenPoint(set)
	test.That(t, errors.Is(err, ErrDegenerate), test.ShouldBeTrue)
}
