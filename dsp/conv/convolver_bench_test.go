package conv

import (
	"testing"

	"github.com/cwbudde/algo-deconv/dsp/kernel"
)

func benchmarkForward(b *testing.B, n int) {
	k := kernel.Build(0.02, 0.4, 30)

	c := NewConvolver()
	if err := c.EnsureBuffers(n, k); err != nil {
		b.Fatal(err)
	}

	src := make([]float32, n)
	dst := make([]float32, n)
	for i := range src {
		src[i] = float32(i%17) * 0.1
	}

	b.ResetTimer()
	for b.Loop() {
		if err := c.Forward(dst, src, n); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkForward1k(b *testing.B)  { benchmarkForward(b, 1024) }
func BenchmarkForward16k(b *testing.B) { benchmarkForward(b, 16384) }

func BenchmarkDirect1k(b *testing.B) {
	k := kernel.Build(0.02, 0.4, 30)
	src := make([]float32, 1024)
	dst := make([]float32, 1024)
	for i := range src {
		src[i] = float32(i%17) * 0.1
	}

	b.ResetTimer()
	for b.Loop() {
		Direct(dst, src, k)
	}
}
