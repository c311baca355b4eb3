package solver

import (
	"encoding/binary"
	"math"
)

// Warm-start blob layout (little-endian, packed):
//
//	offset 0   u32  active length n
//	offset 4   f64  t_fista
//	offset 12  u32  iteration
//	offset 16  f64  baseline
//	offset 24  f32×n  solution
//	offset 24+4n  f32×n  extrapolated point
//
// Total size is exactly 24 + 8n bytes.
const stateHeaderSize = 24

// ExportState serializes the iterate, extrapolated point, and scalar
// iteration state for a warm-start cache.
func (s *Solver) ExportState() []byte {
	n := s.activeLen
	buf := make([]byte, stateHeaderSize+8*n)

	binary.LittleEndian.PutUint32(buf[0:], uint32(n))
	binary.LittleEndian.PutUint64(buf[4:], math.Float64bits(s.tFISTA))
	binary.LittleEndian.PutUint32(buf[12:], s.iteration)
	binary.LittleEndian.PutUint64(buf[16:], math.Float64bits(s.baseline))

	off := stateHeaderSize
	for _, v := range s.solution[:n] {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
		off += 4
	}
	for _, v := range s.solutionPrev[:n] {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
		off += 4
	}

	return buf
}

// LoadState restores a blob produced by ExportState. Empty input, a size
// mismatch, or a stored length that differs from the installed trace length
// silently leaves the cold-start state from SetTrace in place. On success
// the convergence flag is cleared so the solve resumes.
func (s *Solver) LoadState(state []byte) {
	if len(state) < stateHeaderSize {
		return
	}

	n := int(binary.LittleEndian.Uint32(state[0:]))
	if len(state) != stateHeaderSize+8*n || n != s.activeLen {
		return
	}

	s.tFISTA = math.Float64frombits(binary.LittleEndian.Uint64(state[4:]))
	s.iteration = binary.LittleEndian.Uint32(state[12:])
	s.baseline = math.Float64frombits(binary.LittleEndian.Uint64(state[16:]))
	s.converged = false
	s.prevObjective = math.Inf(1)
	s.reconvStale = true

	off := stateHeaderSize
	for i := range n {
		s.solution[i] = math.Float32frombits(binary.LittleEndian.Uint32(state[off:]))
		off += 4
	}
	for i := range n {
		s.solutionPrev[i] = math.Float32frombits(binary.LittleEndian.Uint32(state[off:]))
		off += 4
	}
}
