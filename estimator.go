// Package multiview estimates two-view epipolar geometry from noisy point
// correspondences: a robust fundamental matrix via RANSAC, the essential
// matrix implied by the camera calibration, and the relative camera motion
// recovered from it.
package multiview

import (
	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/multiview/camera"
	"go.viam.com/multiview/epipolar"
	"go.viam.com/multiview/motion"
	"go.viam.com/multiview/ransac"
)

const (
	defaultSolver              = 7
	defaultOutliersProbability = 0.7
)

// EstimatorConfig configures the estimation pipeline. Solver is the minimal
// sample size of the inner fitter, 7 or 8 (0 selects 7). A zero
// OutliersProbability selects the default of 0.7.
type EstimatorConfig struct {
	Solver              int     `json:"solver,omitempty"`
	MaxError            float64 `json:"max_error"`
	OutliersProbability float64 `json:"outliers_probability,omitempty"`
	MaxIterations       int     `json:"max_iterations,omitempty"`
	Seed                int64   `json:"seed,omitempty"`
}

// CheckValid checks if the fields for EstimatorConfig have valid inputs.
func (c *EstimatorConfig) CheckValid() error {
	if c == nil {
		return errors.New("estimator config does not exist")
	}
	if c.Solver != 0 && c.Solver != 7 && c.Solver != 8 {
		return errors.Errorf("solver must be 7 or 8, got %d", c.Solver)
	}
	opts := c.ransacOptions()
	return opts.CheckValid()
}

func (c *EstimatorConfig) solver() ransac.Solver {
	if c.Solver == 0 {
		return ransac.Solver(defaultSolver)
	}
	return ransac.Solver(c.Solver)
}

func (c *EstimatorConfig) ransacOptions() ransac.Options {
	outliersProbability := c.OutliersProbability
	if outliersProbability == 0 {
		outliersProbability = defaultOutliersProbability
	}
	return ransac.Options{
		MaxError:            c.MaxError,
		OutliersProbability: outliersProbability,
		MaxIterations:       c.MaxIterations,
		Seed:                c.Seed,
	}
}

// Estimator runs the full two-view pipeline. It is stateless between calls
// and safe for concurrent use.
type Estimator struct {
	conf   EstimatorConfig
	logger golog.Logger
}

// NewEstimator validates the config and returns an estimator.
func NewEstimator(conf *EstimatorConfig, logger golog.Logger) (*Estimator, error) {
	if err := conf.CheckValid(); err != nil {
		return nil, err
	}
	return &Estimator{conf: *conf, logger: logger}, nil
}

// EstimateFundamental robustly fits a fundamental matrix to matched points
// pts1 in the first image and pts2 in the second.
func (e *Estimator) EstimateFundamental(pts1, pts2 []r2.Point) (*ransac.Result, error) {
	set, err := epipolar.NewCorrespondenceSet(pts1, pts2)
	if err != nil {
		return nil, err
	}
	return ransac.FundamentalFromCorrespondences(set, e.conf.solver(), e.conf.ransacOptions(), e.logger)
}

// EstimateMotion recovers the second camera's rotation and unit translation
// relative to the first from matched points of a single calibrated camera.
// The disambiguating correspondence is the first reported inlier.
func (e *Estimator) EstimateMotion(pts1, pts2 []r2.Point, intrinsics *camera.PinholeIntrinsics) (*motion.PoseCandidate, error) {
	if err := intrinsics.CheckValid(); err != nil {
		return nil, err
	}
	res, err := e.EstimateFundamental(pts1, pts2)
	if err != nil {
		return nil, errors.Wrap(err, "failed to compute fundamental matrix")
	}
	k := intrinsics.Matrix()
	essMat, err := motion.EssentialFromFundamental(res.F, k, k)
	if err != nil {
		return nil, err
	}
	idx := res.Inliers[0]
	pose, err := motion.PoseFromEssentialAndCorrespondence(essMat, k, pts1[idx], k, pts2[idx])
	if err != nil {
		return nil, errors.Wrap(err, "failed to extract motion")
	}
	return pose, nil
}
