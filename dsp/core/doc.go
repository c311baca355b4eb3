// Package core provides shared numeric and buffer helpers for the
// deconvolution packages.
//
// Signal buffers throughout the module are single-precision and grow-only:
// Grow never shrinks a slice, so steady-state memory use is deterministic
// after the first solve at each maximum trace length.
package core
