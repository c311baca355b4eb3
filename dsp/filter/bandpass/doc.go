// Package bandpass implements an FFT-based bandpass pre-filter for trace
// conditioning ahead of sparse deconvolution.
//
// The cutoffs are derived from the deconvolution kernel time constants and
// shaped by a cosine-tapered gain curve; after filtering, a robust percentile
// baseline subtraction restores a non-negative baseline.
package bandpass
