// Package camera provides the pinhole camera model used to move between pixel
// coordinates and normalized camera rays.
package camera

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrNoIntrinsics is when a camera does not have intrinsics parameters or other parameters.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// NewNoIntrinsicsError is used when the intrinsics are not defined.
func NewNoIntrinsicsError(msg string) error {
	return errors.Wrapf(ErrNoIntrinsics, msg)
}

// PinholeIntrinsics holds the intrinsic parameters of a pinhole camera with
// zero skew. It maps normalized camera rays to pixel coordinates.
type PinholeIntrinsics struct {
	Fx  float64 `json:"fx"`
	Fy  float64 `json:"fy"`
	Ppx float64 `json:"ppx"`
	Ppy float64 `json:"ppy"`
}

// CheckValid checks if the fields for PinholeIntrinsics have valid inputs.
func (params *PinholeIntrinsics) CheckValid() error {
	if params == nil {
		return NewNoIntrinsicsError("Intrinsics do not exist")
	}
	if params.Fx <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fx = %#v", params.Fx))
	}
	if params.Fy <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fy = %#v", params.Fy))
	}
	return nil
}

// Matrix returns the 3x3 calibration matrix K built from the intrinsics.
func (params *PinholeIntrinsics) Matrix() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		params.Fx, 0, params.Ppx,
		0, params.Fy, params.Ppy,
		0, 0, 1,
	})
}

// NewIntrinsicsFromMatrix builds intrinsics from a 3x3 calibration matrix.
// The matrix must be upper triangular with zero skew and a unit last row.
func NewIntrinsicsFromMatrix(k *mat.Dense) (*PinholeIntrinsics, error) {
	rows, cols := k.Dims()
	if rows != 3 || cols != 3 {
		return nil, errors.Errorf("calibration matrix must be 3x3, got %dx%d", rows, cols)
	}
	if k.At(0, 1) != 0 || k.At(1, 0) != 0 || k.At(2, 0) != 0 || k.At(2, 1) != 0 {
		return nil, errors.New("calibration matrix has nonzero skew or projective terms")
	}
	if math.Abs(k.At(2, 2)-1) > 1e-12 {
		return nil, errors.Errorf("calibration matrix must have K[2][2] = 1, got %v", k.At(2, 2))
	}
	params := &PinholeIntrinsics{
		Fx:  k.At(0, 0),
		Fy:  k.At(1, 1),
		Ppx: k.At(0, 2),
		Ppy: k.At(1, 2),
	}
	if err := params.CheckValid(); err != nil {
		return nil, err
	}
	return params, nil
}

// PixelToRay converts a pixel coordinate to the normalized camera ray
// (x/z, y/z, 1) passing through it.
func (params *PinholeIntrinsics) PixelToRay(x, y float64) r3.Vector {
	return r3.Vector{
		X: (x - params.Ppx) / params.Fx,
		Y: (y - params.Ppy) / params.Fy,
		Z: 1,
	}
}

// RayToPixel projects a camera-frame point or ray to pixel coordinates.
// Points with zero depth project to (-1, -1) so callers can filter them out.
func (params *PinholeIntrinsics) RayToPixel(v r3.Vector) r2.Point {
	if v.Z == 0 {
		return r2.Point{X: -1, Y: -1}
	}
	return r2.Point{
		X: (v.X/v.Z)*params.Fx + params.Ppx,
		Y: (v.Y/v.Z)*params.Fy + params.Ppy,
	}
}
