// Package spectrum provides power-spectrum and frequency-axis helpers for
// one-sided real-FFT outputs.
package spectrum
