// Package kernel builds the double-exponential causal impulse response used
// by the sparse deconvolution solver and derives its scalar properties: the
// DC gain (sum of taps) and the Lipschitz constant of the data-fit gradient.
package kernel
