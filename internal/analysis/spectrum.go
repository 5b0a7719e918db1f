package analysis

import (
	"errors"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var ErrTooShort = errors.New("series too short")

// PowerSpectrum returns the amplitude of the first len(data)/2 Fourier
// modes of data with its mean removed. The series is zero padded to a
// power of two.
func PowerSpectrum(data []float64) []float64 {
	n := 1
	for n < len(data) {
		n *= 2
	}
	padded := make([]float64, n)
	copy(padded, data)
	if len(data) > 0 {
		floats.AddConst(-stat.Mean(data, nil), padded[:len(data)])
	}

	spec := fft.FFTReal(padded)
	ps := make([]float64, len(spec)/2)
	for i := range ps {
		ps[i] = cmplx.Abs(spec[i])
	}
	return ps
}

// DominantPeriod is the period of the strongest non-constant mode of a
// series sampled every dt.
func DominantPeriod(data []float64, dt float64) (float64, error) {
	if len(data) < 4 {
		return 0, ErrTooShort
	}
	ps := PowerSpectrum(data)
	idx := floats.MaxIdx(ps[1:]) + 1
	n := 2 * len(ps)
	return float64(n) * dt / float64(idx), nil
}

type Summary struct {
	Mean, StdDev float64
	Min, Max     float64
	// Slope of the least squares line through the samples.
	Slope float64
}

// Summarize describes a series sampled at times.
func Summarize(times, data []float64) (Summary, error) {
	if len(data) < 2 || len(times) != len(data) {
		return Summary{}, ErrTooShort
	}
	mean, std := stat.MeanStdDev(data, nil)
	_, slope := stat.LinearRegression(times, data, nil, false)
	return Summary{
		Mean:   mean,
		StdDev: std,
		Min:    floats.Min(data),
		Max:    floats.Max(data),
		Slope:  slope,
	}, nil
}
