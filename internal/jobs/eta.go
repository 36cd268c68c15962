package jobs

import "time"

// DefaultETAWindow is the number of recent samples the estimate looks at.
const DefaultETAWindow = 5

type etaSample struct {
	elapsed time.Duration
	units   float64
}

// etaEstimator projects remaining time from a sliding window of samples.
type etaEstimator struct {
	window  int
	samples []etaSample
}

func newETAEstimator(window int) *etaEstimator {
	if window < 1 {
		window = DefaultETAWindow
	}
	// A fresh run starts from zero units at zero elapsed.
	return &etaEstimator{window: window, samples: []etaSample{{}}}
}

// Seed replaces the baseline, e.g. with a resume offset.
func (e *etaEstimator) Seed(elapsed time.Duration, units float64) {
	e.samples = append(e.samples[:0], etaSample{elapsed: elapsed, units: units})
}

// Add records a sample and returns the current estimate. It returns nil until
// units have advanced past the baseline.
func (e *etaEstimator) Add(elapsed time.Duration, completed, total float64) *time.Duration {
	e.samples = append(e.samples, etaSample{elapsed: elapsed, units: completed})
	// The window spans window samples, so window+1 points bound it.
	if len(e.samples) > e.window+1 {
		e.samples = append(e.samples[:0], e.samples[len(e.samples)-e.window-1:]...)
	}
	if len(e.samples) < 2 || total <= 0 {
		return nil
	}

	first := e.samples[0]
	last := e.samples[len(e.samples)-1]
	deltaUnits := last.units - first.units
	if deltaUnits <= 0 {
		return nil
	}

	perUnit := float64(last.elapsed-first.elapsed) / deltaUnits
	remaining := total - completed
	if remaining < 0 {
		remaining = 0
	}
	eta := time.Duration(perUnit * remaining)
	return &eta
}
