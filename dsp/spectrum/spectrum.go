package spectrum

import (
	"sync"

	"github.com/cwbudde/algo-vecmath"
)

// scratchBuf holds pooled scratch memory for complex-to-real unpacking.
type scratchBuf struct {
	data []float64
}

var scratchPool = sync.Pool{
	New: func() any { return &scratchBuf{} },
}

func getScratch(n int) (re, im, out []float64, buf *scratchBuf) {
	buf = scratchPool.Get().(*scratchBuf)
	need := 3 * n
	if cap(buf.data) < need {
		buf.data = make([]float64, need)
	} else {
		buf.data = buf.data[:need]
	}
	return buf.data[:n], buf.data[n : 2*n], buf.data[2*n : need], buf
}

func putScratch(buf *scratchBuf) {
	scratchPool.Put(buf)
}

// PowerInto computes |X[k]|^2 for each complex bin into dst.
//
// The squares are accumulated through the SIMD-optimized vecmath path in
// float64 before narrowing, so closely spaced bins keep full precision.
// Scratch buffers are pooled internally; in steady state this allocates
// nothing. dst must have at least len(in) elements.
func PowerInto(dst []float32, in []complex64) {
	n := len(in)
	if n == 0 {
		return
	}

	re, im, out, buf := getScratch(n)
	for i, c := range in {
		re[i] = float64(real(c))
		im[i] = float64(imag(c))
	}

	vecmath.Power(out, re, im)

	for i := range n {
		dst[i] = float32(out[i])
	}
	putScratch(buf)
}

// Power returns |X[k]|^2 for each complex bin as a new slice.
func Power(in []complex64) []float32 {
	if len(in) == 0 {
		return nil
	}
	out := make([]float32, len(in))
	PowerInto(out, in)
	return out
}

// FrequencyAxisInto fills dst with the bin center frequencies i*fs/n in Hz
// for the one-sided spectrum of an n-point real transform. dst must have at
// least n/2+1 elements.
func FrequencyAxisInto(dst []float32, n int, fs float64) {
	bins := n/2 + 1
	df := fs / float64(n)
	for i := range bins {
		dst[i] = float32(float64(i) * df)
	}
}

// FrequencyAxis returns the one-sided frequency axis for an n-point real
// transform at sample rate fs.
func FrequencyAxis(n int, fs float64) []float32 {
	if n <= 0 {
		return nil
	}
	out := make([]float32, n/2+1)
	FrequencyAxisInto(out, n, fs)
	return out
}
