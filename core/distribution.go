package core

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// ErrInvalidWeights is returned for empty, negative or all-zero weight sets.
var ErrInvalidWeights = errors.New("weights must be non-negative with a positive sum")

// Discrete draws indexes according to fixed relative weights.
type Discrete struct {
	cumulative []float64
	total      float64
}

// NewDiscrete builds a discrete distribution. Weights are relative and need
// not sum to 100.
func NewDiscrete(weights []float64) (Discrete, error) {
	if len(weights) == 0 {
		return Discrete{}, ErrInvalidWeights
	}
	cum := make([]float64, len(weights))
	total := 0.0
	for i, w := range weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return Discrete{}, fmt.Errorf("%w: weight[%d]=%v", ErrInvalidWeights, i, w)
		}
		total += w
		cum[i] = total
	}
	if total <= 0 {
		return Discrete{}, ErrInvalidWeights
	}
	return Discrete{cumulative: cum, total: total}, nil
}

// Draw returns an index in [0, len(weights)). Zero-weight entries are never
// returned.
func (d Discrete) Draw(rng *rand.Rand) int {
	v := rng.Float64() * d.total
	for i, c := range d.cumulative {
		if v < c {
			return i
		}
	}
	// v == total only through rounding; pick the last positive weight.
	for i := len(d.cumulative) - 1; i > 0; i-- {
		if d.cumulative[i] > d.cumulative[i-1] {
			return i
		}
	}
	return 0
}

// Uniform returns a value in [lo, hi]. lo == hi yields lo.
func Uniform(rng *rand.Rand, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + rng.Float64()*(hi-lo)
}

// UniformInt returns an integer in [lo, hi].
func UniformInt(rng *rand.Rand, lo, hi int64) int64 {
	if hi <= lo {
		return lo
	}
	return lo + rng.Int63n(hi-lo+1)
}

// Triangular samples a triangular distribution over [lo, hi] peaking at mode
// using the inverse CDF.
func Triangular(rng *rand.Rand, lo, hi, mode float64) float64 {
	if hi <= lo {
		return lo
	}
	if mode < lo {
		mode = lo
	} else if mode > hi {
		mode = hi
	}
	u := rng.Float64()
	c := (mode - lo) / (hi - lo)
	if u < c {
		return lo + math.Sqrt(u*(hi-lo)*(mode-lo))
	}
	return hi - math.Sqrt((1-u)*(hi-lo)*(hi-mode))
}
