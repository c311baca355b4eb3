package kernel

import (
	"math"

	"github.com/cwbudde/algo-deconv/dsp/core"
)

// decayFloor is the fraction of the peak below which the decay envelope is
// considered negligible; it determines the kernel truncation length.
const decayFloor = 1e-6

// lipschitzFloor guarantees a usable step size even for degenerate kernels.
const lipschitzFloor = 1e-10

// Build constructs the double-exponential impulse response
//
//	K[i] = exp(-i*dt/tauDecay) - exp(-i*dt/tauRise), dt = 1/fs,
//
// truncated where the decay envelope drops below 1e-6 of the peak and
// normalized so max(K) = 1.0 exactly. The peak search and normalization run
// in float64; the result is narrowed to float32. K[0] is 0 by construction.
// When tauRise >= tauDecay no tap is positive and the kernel is returned
// unnormalized (all taps zero or negative).
//
// The length is max(2, ceil(-ln(1e-6) * tauDecay * fs)), so even degenerate
// time constants yield a two-sample kernel.
func Build(tauRise, tauDecay, fs float64) []float32 {
	dt := 1.0 / fs

	length := int(math.Ceil(-math.Log(decayFloor) * tauDecay / dt))
	if length < 2 {
		length = 2
	}

	k64 := make([]float64, length)
	peak := 0.0
	for i := range k64 {
		t := float64(i) * dt
		v := math.Exp(-t/tauDecay) - math.Exp(-t/tauRise)
		k64[i] = v
		if v > peak {
			peak = v
		}
	}

	if peak > 0 {
		for i := range k64 {
			k64[i] /= peak
		}
	}

	k := make([]float32, length)
	for i, v := range k64 {
		k[i] = float32(v)
	}
	return k
}

// DCGain returns the sum of the kernel taps, accumulated in float64.
// It is the response of the kernel to a constant unit input and scales the
// effective sparsity penalty of the solver.
func DCGain(k []float32) float64 {
	sum := 0.0
	for _, v := range k {
		sum += float64(v)
	}
	return sum
}

// Lipschitz returns max_w |H(w)|^2, the Lipschitz constant of the gradient of
// (1/2)||y - K*s||^2. This equals the largest eigenvalue of K^T K for the
// circulant convolution matrix and tightly bounds the causal Toeplitz
// operator used during the solve; 1/L is a safe gradient step size.
//
// Evaluated by direct DFT over nextPow2(2*len(k)) bins in float64. The kernel
// is short (typically 100-200 taps), so the O(m*N) loop is sub-millisecond
// and runs only on parameter changes. The result is floored at 1e-10.
func Lipschitz(k []float32) float64 {
	m := len(k)
	if m == 0 {
		return lipschitzFloor
	}

	fftLen := core.NextPow2(2 * m)

	maxPower := 0.0
	for w := 0; w < fftLen; w++ {
		freq := 2 * math.Pi * float64(w) / float64(fftLen)
		re, im := 0.0, 0.0
		for i, tap := range k {
			angle := freq * float64(i)
			re += float64(tap) * math.Cos(angle)
			im -= float64(tap) * math.Sin(angle)
		}
		power := re*re + im*im
		if power > maxPower {
			maxPower = power
		}
	}

	return math.Max(maxPower, lipschitzFloor)
}

// AR2 derives the coefficients (g1, g2) of the equivalent AR(2) process
//
//	c[t] = g1*c[t-1] + g2*c[t-2] + s[t]
//
// whose characteristic roots are the kernel eigenvalues d = exp(-dt/tauDecay)
// and r = exp(-dt/tauRise): g1 = d + r, g2 = -(d*r).
func AR2(tauRise, tauDecay, fs float64) (g1, g2 float64) {
	dt := 1.0 / fs
	d := math.Exp(-dt / tauDecay)
	r := math.Exp(-dt / tauRise)
	return d + r, -(d * r)
}
