package solver

import "math"

// primalEpsilon guards the primal-residual denominator against an all-zero
// previous iterate.
const primalEpsilon = 1e-20

// minIterationsBeforeConverge prevents premature convergence on the flat
// early iterations.
const minIterationsBeforeConverge = 5

// StepBatch runs up to nSteps iterations of the accelerated proximal
// gradient method and reports whether the solve has converged. An empty
// trace converges immediately.
//
// Each iteration evaluates the gradient at the extrapolated point, takes a
// proximal step (soft-threshold then non-negative projection), jointly
// re-estimates the baseline, applies Nesterov momentum, and restarts the
// momentum adaptively when the proximal step moves against the extrapolation
// direction (O'Donoghue & Candes 2015, gradient-mapping criterion).
//
// Convergence uses the primal residual ||x_{k+1}-x_k||/||x_k||, which is
// available without the extra forward convolution an objective-decrease test
// would cost per iteration.
//
// The method returns between batches so a caller can interleave cancellation
// checks or progress reporting; iterations within one batch run
// sequentially and deterministically.
func (s *Solver) StepBatch(nSteps uint32) bool {
	n := s.activeLen
	if n == 0 {
		s.converged = true
		return true
	}

	must(s.fft.EnsureBuffers(n, s.kern))

	step := 1.0 / s.lipschitz
	threshold := step * s.effectiveLambda()
	step32 := float32(step)
	threshold32 := float32(threshold)

	for range nSteps {
		if s.converged {
			return true
		}

		// Reconvolution at the extrapolated point: r = K * y_ext.
		must(s.fft.Forward(s.reconv[:n], s.solutionPrev[:n], n))

		// Joint baseline estimate: b = mean(trace - K*y_ext).
		sum := 0.0
		for i := range n {
			sum += float64(s.trace[i]) - float64(s.reconv[i])
		}
		s.baseline = sum / float64(n)

		// Residual at the extrapolated point.
		b32 := float32(s.baseline)
		for i := range n {
			s.residual[i] = s.reconv[i] + b32 - s.trace[i]
		}

		// Gradient of the data fit: g = K^T * residual.
		must(s.fft.Adjoint(s.gradient[:n], s.residual[:n], n))

		// The residual buffer is free again; park x_k there for the
		// restart check and the primal residual.
		copy(s.residual[:n], s.solution[:n])

		// Proximal step from y_ext: soft-threshold, then project onto
		// the non-negative orthant.
		for i := range n {
			z := s.solutionPrev[i] - step32*s.gradient[i] - threshold32
			if z < 0 {
				z = 0
			}
			s.solution[i] = z
		}

		s.iteration++

		// Primal residual ||x_{k+1} - x_k|| / ||x_k||.
		diffSq, prevSq := 0.0, 0.0
		for i := range n {
			xNew := float64(s.solution[i])
			xOld := float64(s.residual[i])
			d := xNew - xOld
			diffSq += d * d
			prevSq += xOld * xOld
		}
		relChange := math.Sqrt(diffSq / (prevSq + primalEpsilon))

		// Adaptive restart: (y_ext - x_{k+1}) · (x_{k+1} - x_k) > 0
		// means the proximal step undid the momentum direction.
		if s.iteration > 1 {
			dot := 0.0
			for i := range n {
				yMinusX := float64(s.solutionPrev[i]) - float64(s.solution[i])
				xDiff := float64(s.solution[i]) - float64(s.residual[i])
				dot += yMinusX * xDiff
			}
			if dot > 0 {
				s.tFISTA = 1
			}
		}

		// Momentum extrapolation:
		// y_{k+1} = max(0, x_{k+1} + mu*(x_{k+1} - x_k)).
		tNew := (1 + math.Sqrt(1+4*s.tFISTA*s.tFISTA)) / 2
		mu := float32((s.tFISTA - 1) / tNew)
		for i := range n {
			xPrev := s.residual[i]
			xNew := s.solution[i]
			y := xNew + mu*(xNew-xPrev)
			if y < 0 {
				y = 0
			}
			s.solutionPrev[i] = y
		}
		s.tFISTA = tNew

		if s.iteration > minIterationsBeforeConverge && relChange < s.tolerance {
			s.converged = true
		}

		// The reconvolution buffer holds K*y_ext, not K*x_{k+1}.
		s.reconvStale = true
	}

	return s.converged
}
