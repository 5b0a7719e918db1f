// Package analysis inspects the diagnostic series of stored runs.
//
//   - [PowerSpectrum]: one-sided amplitude spectrum of a sampled series
//   - [DominantPeriod]: period of the strongest oscillation
//   - [Summarize]: mean, spread and trend of a series
//
// Energy series of the shallow water model oscillate with the inertia
// gravity waves of the initial state:
//
//	ps := analysis.PowerSpectrum(series.Column("energy"))
//	period, err := analysis.DominantPeriod(series.Column("energy"), sampleDt)
package analysis
