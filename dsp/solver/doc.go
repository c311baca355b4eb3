// Package solver implements sparse non-negative deconvolution of a smoothed
// trace by accelerated proximal gradient descent (FISTA) with adaptive
// restart, joint baseline estimation, and FFT-based convolutions.
//
// A Solver is driven in batches:
//
//	s := solver.New()
//	s.SetParams(0.02, 0.4, 0.01, 30)
//	s.SetTrace(trace)
//	for !s.StepBatch(50) {
//		// interleave cancellation checks, progress reporting, ...
//	}
//	spikes := s.Solution()
//
// Batch sizing is the cooperative scheduling unit: StepBatch runs
// synchronously and returns between batches, so callers bound per-batch wall
// time by the step count. There is no internal locking; drive one Solver
// from one goroutine and instantiate independent Solvers for concurrent
// traces.
package solver
