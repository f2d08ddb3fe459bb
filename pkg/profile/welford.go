package profile

import (
	"math"
)

// Welford is an online mean/variance estimator in West's weighted form:
// sampled observations carry importance weights, so each update counts as
// weight observations of the value.
type Welford struct {
	count uint64
	wsum  float64
	mean  float64
	m2    float64
}

// Update adds one observation with the given weight.
func (w *Welford) Update(value, weight float64) {
	if weight <= 0 {
		return
	}
	w.count++
	w.wsum += weight

	delta := value - w.mean
	w.mean += (weight / w.wsum) * delta
	w.m2 += weight * delta * (value - w.mean)
}

// Count reports the number of raw observations.
func (w *Welford) Count() uint64 {
	return w.count
}

// Mean returns the weighted running mean.
func (w *Welford) Mean() float64 {
	return w.mean
}

// Variance returns the weighted population variance.
func (w *Welford) Variance() float64 {
	if w.wsum <= 0 {
		return 0
	}

	return w.m2 / w.wsum
}

// StdDev returns the weighted standard deviation.
func (w *Welford) StdDev() float64 {
	return math.Sqrt(w.Variance())
}

// RelStdErr returns the relative standard error of the mean estimate given
// the number of samples backing it.
func (w *Welford) RelStdErr() float64 {
	if w.count == 0 || w.mean == 0 {
		return math.Inf(1)
	}

	return w.StdDev() / math.Abs(w.mean) / math.Sqrt(float64(w.count))
}

// Reset clears the estimator.
func (w *Welford) Reset() {
	*w = Welford{}
}
