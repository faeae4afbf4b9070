// Package ransac implements robust fundamental-matrix estimation by random
// sample consensus over the 7-point or 8-point solver.
package ransac

import (
	"math"
	"math/rand"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/multiview/epipolar"
	"go.viam.com/multiview/utils"
)

// ErrNoConsensus is returned when no sampled model gathers more inliers than
// the minimal sample size within the iteration budget.
var ErrNoConsensus = errors.New("no consensus found among correspondences")

// Solver selects the inner fitter used on each minimal sample.
type Solver int

// The two supported minimal fitters. The value doubles as the sample size.
const (
	SevenPoint Solver = 7
	EightPoint Solver = 8
)

const (
	defaultMaxIterations = 1000
	defaultSeed          = 1
)

// Options configures a robust estimation call.
// MaxError is the inlier threshold in pixels: a correspondence is an inlier
// when its symmetric epipolar distance is below MaxError squared.
// OutliersProbability in [0, 1) is the acceptable probability of missing an
// uncontaminated sample; it drives the adaptive iteration budget.
// A zero Seed selects a fixed default, so runs are reproducible unless a
// caller explicitly varies the seed.
type Options struct {
	MaxError            float64 `json:"max_error"`
	OutliersProbability float64 `json:"outliers_probability"`
	MaxIterations       int     `json:"max_iterations,omitempty"`
	Seed                int64   `json:"seed,omitempty"`
}

// CheckValid checks if the fields for Options have valid inputs.
func (o *Options) CheckValid() error {
	if o == nil {
		return errors.New("options do not exist")
	}
	if o.MaxError <= 0 {
		return errors.Errorf("max_error must be positive, got %v", o.MaxError)
	}
	if o.OutliersProbability < 0 || o.OutliersProbability >= 1 {
		return errors.Errorf("outliers_probability must be in [0, 1), got %v", o.OutliersProbability)
	}
	if o.MaxIterations < 0 {
		return errors.Errorf("max_iterations must be non-negative, got %v", o.MaxIterations)
	}
	return nil
}

func (o *Options) maxIterations() int {
	if o.MaxIterations == 0 {
		return defaultMaxIterations
	}
	return o.MaxIterations
}

func (o *Options) seed() int64 {
	if o.Seed == 0 {
		return defaultSeed
	}
	return o.Seed
}

// Result is the outcome of a successful robust estimation: the best
// fundamental matrix, its quality score (the inlier count, higher is better)
// and the indices of the correspondences consistent with it.
type Result struct {
	F       *mat.Dense
	Score   float64
	Inliers []int
}

// FundamentalFromCorrespondences robustly fits a fundamental matrix to the
// correspondence set. Each iteration draws a minimal sample, fits candidate
// matrices with the chosen solver and scores them against all
// correspondences; the iteration budget shrinks as better models are found.
// The run is deterministic for a fixed Options.Seed.
func FundamentalFromCorrespondences(
	set *epipolar.CorrespondenceSet,
	solver Solver,
	opts Options,
	logger golog.Logger,
) (*Result, error) {
	if err := opts.CheckValid(); err != nil {
		return nil, err
	}
	if solver != SevenPoint && solver != EightPoint {
		return nil, errors.Errorf("unsupported solver %d, must be 7 or 8", solver)
	}
	nPoints := set.Size()
	sampleSize := int(solver)
	if nPoints < sampleSize {
		return nil, errors.Wrapf(epipolar.ErrDegenerate, "need at least %d correspondences, got %d", sampleSize, nPoints)
	}

	r := rand.New(rand.NewSource(opts.seed()))
	budget := opts.maxIterations()
	threshold := opts.MaxError * opts.MaxError

	var bestF *mat.Dense
	var bestInliers []int
	iterations := 0

	for ; iterations < budget; iterations++ {
		sample := utils.SampleNDistinctInts(sampleSize, nPoints, r)
		candidates, err := fitSample(set.Subset(sample), solver)
		if err != nil {
			// a degenerate sample is not fatal, resampling is the retry
			continue
		}
		for _, f := range candidates {
			inliers := thresholdInliers(f, set, threshold)
			if len(inliers) <= len(bestInliers) {
				continue
			}
			bestF = f
			bestInliers = inliers
			budget = adaptBudget(budget, len(inliers), nPoints, sampleSize, opts.OutliersProbability)
		}
	}

	if bestF == nil || len(bestInliers) <= sampleSize {
		return nil, errors.Wrapf(ErrNoConsensus, "best support %d with sample size %d", len(bestInliers), sampleSize)
	}

	// refit on the final inlier set with the linear solver for precision,
	// keeping the minimal-sample model if the refit loses support
	if len(bestInliers) >= 8 {
		if refit, err := epipolar.EightPoint(set.Subset(bestInliers), true); err == nil {
			refitInliers := thresholdInliers(refit, set, threshold)
			if len(refitInliers) >= len(bestInliers) {
				bestF = refit
				bestInliers = refitInliers
			}
		}
	}

	if !utils.IsFinite(bestF) {
		return nil, errors.Wrap(utils.ErrNotFinite, "fundamental matrix")
	}
	if logger != nil {
		logger.Debugw("ransac finished",
			"iterations", iterations,
			"inliers", len(bestInliers),
			"correspondences", nPoints,
		)
	}
	return &Result{
		F:       bestF,
		Score:   float64(len(bestInliers)),
		Inliers: bestInliers,
	}, nil
}

func fitSample(sample *epipolar.CorrespondenceSet, solver Solver) ([]*mat.Dense, error) {
	if solver == SevenPoint {
		return epipolar.SevenPoint(sample)
	}
	f, err := epipolar.EightPoint(sample, true)
	if err != nil {
		return nil, err
	}
	return []*mat.Dense{f}, nil
}

// thresholdInliers classifies every correspondence against f, returning the
// indices whose symmetric epipolar distance is below the squared threshold.
// A fresh list is built on every call.
func thresholdInliers(f *mat.Dense, set *epipolar.CorrespondenceSet, threshold float64) []int {
	inliers := make([]int, 0, set.Size())
	for i := 0; i < set.Size(); i++ {
		if epipolar.SymmetricEpipolarDistance(f, set.Left[i], set.Right[i]) < threshold {
			inliers = append(inliers, i)
		}
	}
	return inliers
}

// adaptBudget recomputes the iteration budget from the observed inlier ratio
// using k = log(1-confidence)/log(1-w^s) with confidence = 1 - outliersProbability.
// The budget only ever shrinks.
func adaptBudget(budget, inliers, total, sampleSize int, outliersProbability float64) int {
	w := float64(inliers) / float64(total)
	denom := 1 - math.Pow(w, float64(sampleSize))
	if denom <= 0 {
		// every correspondence fits, nothing left to search for
		return 0
	}
	if outliersProbability <= 0 {
		return budget
	}
	needed := math.Log(outliersProbability) / math.Log(denom)
	if math.IsNaN(needed) || math.IsInf(needed, 0) {
		return budget
	}
	k := int(math.Ceil(needed))
	if k < budget {
		return k
	}
	return budget
}
