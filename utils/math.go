// Package utils contains small math and linear-algebra helpers shared by the
// multiview packages.
package utils

import (
	"math"
	"math/rand"
)

// SampleRandomIntRange samples a random integer within a range given by [min, max]
// using the given rand.Rand.
func SampleRandomIntRange(min, max int, r *rand.Rand) int {
	return r.Intn(max-min+1) + min
}

// SampleNDistinctInts samples n distinct integers uniformly from [0, bound)
// using the given rand.Rand. It returns nil if n > bound.
func SampleNDistinctInts(n, bound int, r *rand.Rand) []int {
	if n > bound {
		return nil
	}
	picked := make(map[int]bool, n)
	out := make([]int, 0, n)
	for len(out) < n {
		k := r.Intn(bound)
		if picked[k] {
			continue
		}
		picked[k] = true
		out = append(out, k)
	}
	return out
}

const cubicEps = 1e-12

// CubicRoots returns the real roots of a*x^3 + b*x^2 + c*x + d = 0.
// Degenerate leading coefficients fall through to the quadratic and linear
// cases. The returned slice has between 0 and 3 entries.
func CubicRoots(a, b, c, d float64) []float64 {
	if math.Abs(a) < cubicEps {
		return quadraticRoots(b, c, d)
	}
	// normalize to x^3 + p*x^2 + q*x + r = 0
	p := b / a
	q := c / a
	r := d / a

	bigQ := (3*q - p*p) / 9
	bigR := (9*p*q - 27*r - 2*p*p*p) / 54
	disc := bigQ*bigQ*bigQ + bigR*bigR

	switch {
	case disc > cubicEps:
		// one real root
		sq := math.Sqrt(disc)
		s := math.Cbrt(bigR + sq)
		t := math.Cbrt(bigR - sq)
		return []float64{s + t - p/3}
	case disc < -cubicEps:
		// three distinct real roots
		theta := math.Acos(bigR / math.Sqrt(-bigQ*bigQ*bigQ))
		m := 2 * math.Sqrt(-bigQ)
		return []float64{
			m*math.Cos(theta/3) - p/3,
			m*math.Cos((theta+2*math.Pi)/3) - p/3,
			m*math.Cos((theta+4*math.Pi)/3) - p/3,
		}
	default:
		// repeated roots
		s := math.Cbrt(bigR)
		if s == 0 {
			return []float64{-p / 3}
		}
		return []float64{2*s - p/3, -s - p/3}
	}
}

func quadraticRoots(a, b, c float64) []float64 {
	if math.Abs(a) < cubicEps {
		if math.Abs(b) < cubicEps {
			return nil
		}
		return []float64{-c / b}
	}
	disc := b*b - 4*a*c
	if disc < 0 {
		return nil
	}
	if disc == 0 {
		return []float64{-b / (2 * a)}
	}
	sq := math.Sqrt(disc)
	return []float64{(-b + sq) / (2 * a), (-b - sq) / (2 * a)}
}
