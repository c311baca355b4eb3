package bandpass

import (
	"fmt"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"

	"github.com/cwbudde/algo-deconv/dsp/core"
	"github.com/cwbudde/algo-deconv/dsp/spectrum"
)

// Margin factors for deriving bandpass cutoffs from kernel time constants.
// HP cutoff = 1/(2π·tauDecay·marginHP), LP cutoff = marginLP/(2π·tauRise).
// The wide HP margin preserves the slow decay tail while still removing
// sub-signal baseline drift; the tighter LP margin rejects noise above the
// kernel's rise band.
const (
	marginHP = 16.0
	marginLP = 4.0
)

// minTraceLen is the shortest trace Apply will touch.
const minTraceLen = 8

// baselinePercentile is the rank fraction used for baseline restoration
// after filtering.
const baselinePercentile = 0.02

// Filter is an FFT-based bandpass filter whose cutoffs derive from the
// deconvolution kernel time constants. Buffers grow but never shrink.
type Filter struct {
	enabled bool
	valid   bool
	fHP     float32
	fLP     float32
	fs      float32

	plannedLen int
	plan       *algofft.PlanRealT[float32, complex64]

	// Grow-only buffers.
	input     []float32
	spectrum  []complex64
	gain      []float32
	power     []float32
	rankBuf   []float32
	cachedLen int // trace length of the cached power spectrum, 0 = none
}

// New returns a disabled filter with no configured cutoffs.
func New() *Filter {
	return &Filter{fs: 30}
}

// SetEnabled toggles whether Apply filters or no-ops.
func (f *Filter) SetEnabled(enabled bool) {
	f.enabled = enabled
}

// Enabled reports whether the filter is enabled.
func (f *Filter) Enabled() bool {
	return f.enabled
}

// Valid reports whether the configured cutoffs form a usable passband.
func (f *Filter) Valid() bool {
	return f.valid
}

// UpdateCutoffs derives the passband from kernel time constants:
//
//	fHP = 1/(2π·tauDecay·16)
//	fLP = min(Nyquist, 4/(2π·tauRise))
//
// Non-positive time constants or sample rate mark the filter invalid. Any
// cached gain curve is invalidated.
func (f *Filter) UpdateCutoffs(tauRise, tauDecay, fs float64) {
	f.fs = float32(fs)

	if tauRise <= 0 || tauDecay <= 0 || fs <= 0 {
		f.valid = false
		return
	}

	nyquist := fs / 2

	fHP := 1 / (2 * math.Pi * tauDecay * marginHP)
	fLP := core.Clamp(marginLP/(2*math.Pi*tauRise), 0, nyquist)

	f.fHP = float32(fHP)
	f.fLP = float32(fLP)
	f.valid = fHP < fLP

	f.plannedLen = 0
	f.cachedLen = 0
}

// Cutoffs returns the configured [fHP, fLP] pair in Hz.
func (f *Filter) Cutoffs() [2]float32 {
	return [2]float32{f.fHP, f.fLP}
}

// ensureBuffers prepares the plan, scratch, and gain curve for traces of
// exactly n samples.
func (f *Filter) ensureBuffers(n int) error {
	if n == f.plannedLen {
		return nil
	}

	plan, err := algofft.NewPlanReal32(n)
	if err != nil {
		return fmt.Errorf("bandpass: failed to create FFT plan: %w", err)
	}
	f.plan = plan

	bins := n/2 + 1
	f.input = core.Grow(f.input, n)
	f.spectrum = core.GrowComplex(f.spectrum, bins)
	f.gain = core.Grow(f.gain, bins)
	f.power = core.Grow(f.power, bins)

	f.buildGainCurve(n)
	f.plannedLen = n

	return nil
}

// buildGainCurve fills the cosine-tapered bandpass gain for an n-point
// transform. The taper half-width is 50% of the respective cutoff.
func (f *Filter) buildGainCurve(n int) {
	bins := n/2 + 1
	df := f.fs / float32(n)

	wHP := f.fHP * 0.5
	wLP := f.fLP * 0.5

	for i := range bins {
		freq := float32(i) * df

		var gain float32
		switch {
		case freq < f.fHP-wHP:
			gain = 0
		case freq < f.fHP+wHP:
			// High-pass transition, 0 -> 1.
			u := (freq - (f.fHP - wHP)) / (2 * wHP)
			gain = float32(0.5 * (1 - math.Cos(math.Pi*float64(u))))
		case freq < f.fLP-wLP:
			gain = 1
		case freq < f.fLP+wLP:
			// Low-pass transition, 1 -> 0.
			u := (freq - (f.fLP - wLP)) / (2 * wLP)
			gain = float32(0.5 * (1 + math.Cos(math.Pi*float64(u))))
		default:
			gain = 0
		}

		f.gain[i] = gain
	}
}

// Apply filters trace in place and restores a non-negative baseline.
// It reports false without touching the trace when the filter is disabled,
// the cutoffs are invalid, or the trace is shorter than 8 samples.
//
// The pre-filter power spectrum is cached for PowerSpectrum. After the
// inverse transform the high-pass has removed DC, leaving the signal
// centered around zero with negative excursions; subtracting the value at
// the 2nd-percentile rank restores a non-negative baseline without being
// corrupted by transient peaks.
func (f *Filter) Apply(trace []float32) bool {
	n := len(trace)
	if !f.enabled || !f.valid || n < minTraceLen {
		return false
	}

	if err := f.ensureBuffers(n); err != nil {
		return false
	}
	bins := n/2 + 1

	core.CopyInto(f.input[:n], trace)
	if err := f.plan.Forward(f.spectrum[:bins], f.input[:n]); err != nil {
		return false
	}

	spectrum.PowerInto(f.power[:bins], f.spectrum[:bins])
	f.cachedLen = n

	for i := range bins {
		f.spectrum[i] *= complex(f.gain[i], 0)
	}

	// algo-fft normalizes the inverse transform by 1/n.
	if err := f.plan.Inverse(f.input[:n], f.spectrum[:bins]); err != nil {
		return false
	}
	core.CopyInto(trace, f.input[:n])

	rank := int(math.Round(baselinePercentile * float64(n)))
	if rank > n-1 {
		rank = n - 1
	}
	f.rankBuf = core.EnsureLen(f.rankBuf, n)
	copy(f.rankBuf, trace)
	base := selectRank(f.rankBuf, rank)

	for i := range trace {
		trace[i] -= base
	}

	return true
}

// ComputeSpectrumOnly caches the power spectrum of trace without filtering,
// for visualization while the filter is off. Traces shorter than 8 samples
// are ignored.
func (f *Filter) ComputeSpectrumOnly(trace []float32) {
	n := len(trace)
	if n < minTraceLen {
		return
	}

	if err := f.ensureBuffers(n); err != nil {
		return
	}
	bins := n/2 + 1

	core.CopyInto(f.input[:n], trace)
	if err := f.plan.Forward(f.spectrum[:bins], f.input[:n]); err != nil {
		return
	}

	spectrum.PowerInto(f.power[:bins], f.spectrum[:bins])
	f.cachedLen = n
}

// PowerSpectrum returns a copy of the cached |X|^2 bins for an n-sample
// trace, or nil when no spectrum has been computed at that length.
func (f *Filter) PowerSpectrum(n int) []float32 {
	bins := n/2 + 1
	if f.cachedLen != n {
		return nil
	}
	out := make([]float32, bins)
	copy(out, f.power[:bins])
	return out
}

// SpectrumFrequencies returns the frequency axis in Hz for the spectrum bins
// of an n-sample trace.
func (f *Filter) SpectrumFrequencies(n int) []float32 {
	if n <= 0 {
		return nil
	}
	return spectrum.FrequencyAxis(n, float64(f.fs))
}
