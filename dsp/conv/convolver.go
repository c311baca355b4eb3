package conv

import (
	"errors"
	"fmt"

	algofft "github.com/MeKo-Christian/algo-fft"

	"github.com/cwbudde/algo-deconv/dsp/core"
)

// Errors returned by convolution functions.
var (
	ErrEmptyKernel    = errors.New("conv: empty kernel")
	ErrNotPrepared    = errors.New("conv: convolver not prepared")
	ErrLengthMismatch = errors.New("conv: buffer length mismatch")
)

// Convolver performs repeated forward and adjoint linear convolutions of a
// signal against a cached kernel using real-input FFTs.
//
// The convolver owns its FFT plan, scratch buffers, and the kernel spectrum
// together with its elementwise conjugate, so callers can convolve from one
// of their buffers into another without the convolver touching either beyond
// an internal copy. Buffers grow but never shrink.
type Convolver struct {
	fftLen    int // padded FFT length (power of 2), 0 = uninitialized
	kernelLen int

	plan *algofft.PlanRealT[float32, complex64]

	// Cached kernel spectra, length fftLen/2+1 in use.
	kernelFFT     []complex64
	kernelConjFFT []complex64

	// Scratch, grow-only.
	input    []float32
	output   []float32
	spectrum []complex64
}

// NewConvolver returns an empty convolver. EnsureBuffers must run before the
// first Forward or Adjoint call.
func NewConvolver() *Convolver {
	return &Convolver{}
}

// FFTLen returns the current padded FFT length (0 = uninitialized).
func (c *Convolver) FFTLen() int {
	return c.fftLen
}

// KernelLen returns the length of the currently prepared kernel.
func (c *Convolver) KernelLen() int {
	return c.kernelLen
}

// Invalidate drops the cached FFT length, forcing a full rebuild on the next
// EnsureBuffers call.
func (c *Convolver) Invalidate() {
	c.fftLen = 0
	c.plan = nil
}

// EnsureBuffers prepares the convolver for signals of signalLen samples
// against the given kernel. The padded length is nextPow2(signalLen +
// len(kernel) - 1), which makes the circular convolution equal to the linear
// one on the first signalLen output samples.
//
// When the cached plan already covers the required padded length this is a
// no-op; the kernel spectrum is NOT recomputed (use PrepareKernel after
// kernel content changes, Invalidate to force a full rebuild). Plans are
// keyed on the padded length and only ever grow: a shrinking requirement
// keeps the existing larger plan, which remains valid for the shorter
// signal. On growth the plan is rebuilt, buffers grow, and the kernel
// spectrum is recomputed.
func (c *Convolver) EnsureBuffers(signalLen int, kernel []float32) error {
	if signalLen == 0 || len(kernel) == 0 {
		return nil
	}

	padded := core.NextPow2(signalLen + len(kernel) - 1)
	if padded <= c.fftLen {
		return nil
	}

	plan, err := algofft.NewPlanReal32(padded)
	if err != nil {
		return fmt.Errorf("conv: failed to create FFT plan: %w", err)
	}

	c.plan = plan
	c.fftLen = padded

	spectrumLen := padded/2 + 1
	c.input = core.Grow(c.input, padded)
	c.output = core.Grow(c.output, padded)
	c.spectrum = core.GrowComplex(c.spectrum, spectrumLen)
	c.kernelFFT = core.GrowComplex(c.kernelFFT, spectrumLen)
	c.kernelConjFFT = core.GrowComplex(c.kernelConjFFT, spectrumLen)

	return c.PrepareKernel(kernel)
}

// PrepareKernel recomputes the kernel spectrum and its conjugate at the
// current padded length. Call after the kernel content changes while the
// padded length is still adequate.
func (c *Convolver) PrepareKernel(kernel []float32) error {
	if len(kernel) == 0 {
		return ErrEmptyKernel
	}
	if c.plan == nil {
		return ErrNotPrepared
	}

	padded := c.fftLen
	spectrumLen := padded/2 + 1

	for i := range padded {
		if i < len(kernel) {
			c.input[i] = kernel[i]
		} else {
			c.input[i] = 0
		}
	}

	if err := c.plan.Forward(c.kernelFFT[:spectrumLen], c.input[:padded]); err != nil {
		return fmt.Errorf("conv: kernel FFT failed: %w", err)
	}

	// Conjugate spectrum: correlation = convolution with the reversed kernel.
	for i := range spectrumLen {
		re := real(c.kernelFFT[i])
		im := imag(c.kernelFFT[i])
		c.kernelConjFFT[i] = complex(re, -im)
	}

	c.kernelLen = len(kernel)

	return nil
}

// Forward computes the causal linear convolution dst[:n] = (K * src)[:n].
// src and dst may alias; src is copied into internal scratch before any
// output is written.
func (c *Convolver) Forward(dst, src []float32, n int) error {
	return c.convolve(dst, src, n, c.kernelFFT)
}

// Adjoint computes the correlation dst[:n] = (K^T * src)[:n], i.e.
// dst[t] = sum_k K[k]*src[t+k]. This is the transpose of Forward.
func (c *Convolver) Adjoint(dst, src []float32, n int) error {
	return c.convolve(dst, src, n, c.kernelConjFFT)
}

func (c *Convolver) convolve(dst, src []float32, n int, kernelSpectrum []complex64) error {
	if c.plan == nil {
		return ErrNotPrepared
	}
	if len(src) < n || len(dst) < n {
		return fmt.Errorf("%w: n=%d src=%d dst=%d", ErrLengthMismatch, n, len(src), len(dst))
	}

	padded := c.fftLen
	spectrumLen := padded/2 + 1

	for i := range padded {
		if i < n {
			c.input[i] = src[i]
		} else {
			c.input[i] = 0
		}
	}

	if err := c.plan.Forward(c.spectrum[:spectrumLen], c.input[:padded]); err != nil {
		return fmt.Errorf("conv: forward FFT failed: %w", err)
	}

	for i := range spectrumLen {
		c.spectrum[i] *= kernelSpectrum[i]
	}

	// algo-fft normalizes the inverse transform by 1/N.
	if err := c.plan.Inverse(c.output[:padded], c.spectrum[:spectrumLen]); err != nil {
		return fmt.Errorf("conv: inverse FFT failed: %w", err)
	}

	copy(dst[:n], c.output[:n])

	return nil
}
