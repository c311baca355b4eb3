// Package conv provides the paired forward/adjoint FFT convolution engine
// used by the deconvolution solver.
//
// A Convolver caches its FFT plan, scratch buffers, and the spectrum of a
// fixed kernel (plus its conjugate), amortizing setup across the thousands of
// convolutions a solve performs. Padding to nextPow2(n + m - 1) makes the
// circular convolution equal to the linear one on the first n output
// samples, which is what the causal convolution contract requires.
//
// The package also ships direct time-domain reference implementations used
// by tests and fixtures.
package conv
