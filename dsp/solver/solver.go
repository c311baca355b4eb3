package solver

import (
	"math"

	"github.com/cwbudde/algo-deconv/dsp/conv"
	"github.com/cwbudde/algo-deconv/dsp/core"
	"github.com/cwbudde/algo-deconv/dsp/filter/bandpass"
	"github.com/cwbudde/algo-deconv/dsp/kernel"
)

// defaultTolerance is the primal-residual convergence threshold.
const defaultTolerance = 1e-6

// Default kernel parameters.
const (
	defaultTauRise  = 0.02
	defaultTauDecay = 0.4
	defaultLambda   = 0.01
	defaultFs       = 30.0
)

// Solver recovers a non-negative sparse source s and scalar baseline b from
// a trace y by minimizing
//
//	(1/2)·||y - K*s - b·1||² + λ·ΣK · ||s||₁   subject to   s >= 0,
//
// where K is the double-exponential kernel built from the configured time
// constants. The sparsity weight λ is multiplied by the kernel DC gain ΣK,
// so a given λ penalizes comparable spike mass across kernel shapes; callers
// tuning λ should be aware of this effective scaling.
//
// A Solver owns all of its working buffers exclusively and is not safe for
// concurrent use; parallelize across traces by instantiating one Solver per
// worker. Buffers grow but never shrink, so steady-state memory is
// deterministic after the first solve at each maximum trace length.
type Solver struct {
	tauRise  float64
	tauDecay float64
	lambda   float64
	fs       float64

	// Working buffers, single precision. solutionPrev holds the
	// extrapolated point between iterations.
	trace        []float32
	solution     []float32
	solutionPrev []float32
	gradient     []float32
	reconv       []float32
	residual     []float32
	kern         []float32

	iteration uint32
	tFISTA    float64
	converged bool
	activeLen int

	prevObjective float64
	tolerance     float64
	lipschitz     float64
	dcGain        float64
	baseline      float64
	reconvStale   bool

	fft      *conv.Convolver
	bandpass *bandpass.Filter
}

// New creates a Solver with default parameters
// (tauRise=0.02, tauDecay=0.4, lambda=0.01, fs=30).
func New() *Solver {
	s := &Solver{
		tauRise:       defaultTauRise,
		tauDecay:      defaultTauDecay,
		lambda:        defaultLambda,
		fs:            defaultFs,
		tFISTA:        1,
		tolerance:     defaultTolerance,
		prevObjective: math.Inf(1),
		lipschitz:     1,
		fft:           conv.NewConvolver(),
		bandpass:      bandpass.New(),
	}

	s.rebuildKernel()

	return s
}

// rebuildKernel reconstructs the kernel and its derived scalars from the
// current parameters and refreshes the filter cutoffs.
func (s *Solver) rebuildKernel() {
	s.kern = kernel.Build(s.tauRise, s.tauDecay, s.fs)
	s.dcGain = kernel.DCGain(s.kern)
	s.lipschitz = kernel.Lipschitz(s.kern)
	s.bandpass.UpdateCutoffs(s.tauRise, s.tauDecay, s.fs)
}

// SetParams updates the solver parameters and rebuilds the kernel.
//
// When the FFT plans already exist and the new kernel still fits the cached
// padded length, only the kernel spectrum is recomputed; otherwise the plans
// are invalidated and rebuilt on the next solve or trace install.
func (s *Solver) SetParams(tauRise, tauDecay, lambda, fs float64) {
	s.tauRise = tauRise
	s.tauDecay = tauDecay
	s.lambda = lambda
	s.fs = fs

	s.rebuildKernel()

	if s.fft.FFTLen() > 0 && s.activeLen+len(s.kern)-1 <= s.fft.FFTLen() {
		must(s.fft.PrepareKernel(s.kern))
	} else {
		s.fft.Invalidate()
	}
}

// Params returns the current (tauRise, tauDecay, lambda, fs).
func (s *Solver) Params() (tauRise, tauDecay, lambda, fs float64) {
	return s.tauRise, s.tauDecay, s.lambda, s.fs
}

// SetTrace installs a fresh trace and resets all iteration state. Buffers
// grow if needed but never shrink.
func (s *Solver) SetTrace(trace []float32) {
	n := len(trace)
	s.activeLen = n

	s.trace = core.Grow(s.trace, n)
	s.solution = core.Grow(s.solution, n)
	s.solutionPrev = core.Grow(s.solutionPrev, n)
	s.gradient = core.Grow(s.gradient, n)
	s.reconv = core.Grow(s.reconv, n)
	s.residual = core.Grow(s.residual, n)

	copy(s.trace[:n], trace)
	core.Zero(s.solution[:n])
	core.Zero(s.solutionPrev[:n])
	core.Zero(s.gradient[:n])
	core.Zero(s.reconv[:n])
	core.Zero(s.residual[:n])

	s.iteration = 0
	s.tFISTA = 1
	s.converged = false
	s.prevObjective = math.Inf(1)
	s.baseline = 0
	s.reconvStale = true

	if n > 0 {
		must(s.fft.EnsureBuffers(n, s.kern))
	}
}

// ResetMomentum sets the momentum parameter back to 1 and re-seeds the
// extrapolated point with the current solution. Warm-starting callers invoke
// this after LoadState or a kernel change.
func (s *Solver) ResetMomentum() {
	s.tFISTA = 1
	n := s.activeLen
	copy(s.solutionPrev[:n], s.solution[:n])
}

// Solution returns a copy of the current spike estimate.
func (s *Solver) Solution() []float32 {
	return copyOf(s.solution[:s.activeLen])
}

// Reconvolution returns a copy of K * solution.
func (s *Solver) Reconvolution() []float32 {
	s.refreshReconvolution()
	return copyOf(s.reconv[:s.activeLen])
}

// ReconvolutionWithBaseline returns a copy of K * solution + baseline.
func (s *Solver) ReconvolutionWithBaseline() []float32 {
	s.refreshReconvolution()

	out := make([]float32, s.activeLen)
	b := float32(s.baseline)
	for i, v := range s.reconv[:s.activeLen] {
		out[i] = v + b
	}
	return out
}

// Trace returns a copy of the installed trace. After ApplyFilter this is the
// filtered trace.
func (s *Solver) Trace() []float32 {
	return copyOf(s.trace[:s.activeLen])
}

// Kernel returns a copy of the current kernel.
func (s *Solver) Kernel() []float32 {
	return copyOf(s.kern)
}

// Baseline returns the current baseline estimate.
func (s *Solver) Baseline() float64 {
	return s.baseline
}

// Converged reports whether the last StepBatch reached the tolerance.
func (s *Solver) Converged() bool {
	return s.converged
}

// IterationCount returns the number of iterations since the last SetTrace,
// including the count restored by LoadState.
func (s *Solver) IterationCount() uint32 {
	return s.iteration
}

// SetFilterEnabled toggles the bandpass pre-filter.
func (s *Solver) SetFilterEnabled(enabled bool) {
	s.bandpass.SetEnabled(enabled)
}

// FilterEnabled reports whether the bandpass pre-filter is enabled.
func (s *Solver) FilterEnabled() bool {
	return s.bandpass.Enabled()
}

// ApplyFilter runs the bandpass filter in place on the installed trace.
// It reports whether filtering was applied.
func (s *Solver) ApplyFilter() bool {
	return s.bandpass.Apply(s.trace[:s.activeLen])
}

// FilterCutoffs returns the bandpass [fHP, fLP] pair in Hz.
func (s *Solver) FilterCutoffs() [2]float32 {
	return s.bandpass.Cutoffs()
}

// PowerSpectrum returns the power spectrum (n/2+1 bins) cached by the
// bandpass filter for the current trace length; after ApplyFilter this is the
// spectrum of the trace before filtering. When none is cached it is computed
// from the installed trace. Returns nil for traces shorter than 8 samples.
func (s *Solver) PowerSpectrum() []float32 {
	n := s.activeLen
	if n < 8 {
		return nil
	}

	if ps := s.bandpass.PowerSpectrum(n); ps != nil {
		return ps
	}

	s.bandpass.ComputeSpectrumOnly(s.trace[:n])

	return s.bandpass.PowerSpectrum(n)
}

// SpectrumFrequencies returns the frequency axis in Hz for PowerSpectrum
// bins.
func (s *Solver) SpectrumFrequencies() []float32 {
	return s.bandpass.SpectrumFrequencies(s.activeLen)
}

// effectiveLambda is the sparsity weight after DC-gain normalization.
func (s *Solver) effectiveLambda() float64 {
	return s.lambda * s.dcGain
}

// refreshReconvolution brings the reconvolution buffer and baseline in sync
// with the current solution. During iterations the buffer holds K applied to
// the extrapolated point, not the solution, so getters re-convolve lazily.
func (s *Solver) refreshReconvolution() {
	n := s.activeLen
	if !s.reconvStale || n == 0 {
		return
	}

	must(s.fft.EnsureBuffers(n, s.kern))
	must(s.fft.Forward(s.reconv[:n], s.solution[:n], n))

	sum := 0.0
	for i := range n {
		sum += float64(s.trace[i]) - float64(s.reconv[i])
	}
	s.baseline = sum / float64(n)

	s.reconvStale = false
}

func copyOf(src []float32) []float32 {
	out := make([]float32, len(src))
	copy(out, src)
	return out
}

// must converts convolver errors into panics. The convolver only fails on
// programmer errors (operating without prepared plans, mismatched lengths),
// which are contract violations rather than recoverable conditions.
func must(err error) {
	if err != nil {
		panic(err)
	}
}
