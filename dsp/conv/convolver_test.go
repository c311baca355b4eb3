package conv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cwbudde/algo-deconv/dsp/kernel"
	"github.com/cwbudde/algo-deconv/internal/testutil"
)

func TestForwardImpulseRecoversKernel(t *testing.T) {
	k := kernel.Build(0.02, 0.4, 30)
	n := len(k)

	c := NewConvolver()
	require.NoError(t, c.EnsureBuffers(n, k))

	impulse := make([]float32, n)
	impulse[0] = 1

	out := make([]float32, n)
	require.NoError(t, c.Forward(out, impulse, n))

	testutil.RequireFinite(t, out)
	testutil.RequireSliceNearlyEqual(t, out, k, 1e-5)
}

func TestForwardShiftedImpulse(t *testing.T) {
	k := kernel.Build(0.02, 0.4, 30)
	n := len(k) + 50
	shift := 7

	c := NewConvolver()
	require.NoError(t, c.EnsureBuffers(n, k))

	src := make([]float32, n)
	src[shift] = 1

	out := make([]float32, n)
	require.NoError(t, c.Forward(out, src, n))

	for i := range n {
		want := float32(0)
		if i >= shift && i-shift < len(k) {
			want = k[i-shift]
		}
		assert.InDelta(t, want, out[i], 1e-5, "sample %d", i)
	}
}

func TestAdjointIdentity(t *testing.T) {
	k := kernel.Build(0.02, 0.4, 30)
	n := 64

	c := NewConvolver()
	require.NoError(t, c.EnsureBuffers(n, k))

	x := make([]float32, n)
	y := make([]float32, n)
	for i := range n {
		x[i] = float32(math.Sin(float64(i) * 0.3))
		y[i] = float32(math.Cos(float64(i)*0.7 + 1))
	}

	kx := make([]float32, n)
	require.NoError(t, c.Forward(kx, x, n))

	kty := make([]float32, n)
	require.NoError(t, c.Adjoint(kty, y, n))

	lhs, rhs := 0.0, 0.0
	for i := range n {
		lhs += float64(kx[i]) * float64(y[i])
		rhs += float64(x[i]) * float64(kty[i])
	}

	relErr := math.Abs(lhs-rhs) / math.Max(math.Abs(lhs), 1e-10)
	assert.Less(t, relErr, 1e-4, "<Kx,y>=%v vs <x,K^Ty>=%v", lhs, rhs)
}

func TestAdjointIdentityProperty(t *testing.T) {
	k := kernel.Build(0.02, 0.4, 30)

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(8, 512).Draw(t, "n")

		c := NewConvolver()
		if err := c.EnsureBuffers(n, k); err != nil {
			t.Fatalf("EnsureBuffers: %v", err)
		}

		x := make([]float32, n)
		y := make([]float32, n)
		for i := range n {
			x[i] = float32(rapid.Float64Range(-1, 1).Draw(t, "x"))
			y[i] = float32(rapid.Float64Range(-1, 1).Draw(t, "y"))
		}

		kx := make([]float32, n)
		kty := make([]float32, n)
		if err := c.Forward(kx, x, n); err != nil {
			t.Fatalf("Forward: %v", err)
		}
		if err := c.Adjoint(kty, y, n); err != nil {
			t.Fatalf("Adjoint: %v", err)
		}

		lhs, rhs := 0.0, 0.0
		for i := range n {
			lhs += float64(kx[i]) * float64(y[i])
			rhs += float64(x[i]) * float64(kty[i])
		}

		scale := math.Max(math.Max(math.Abs(lhs), math.Abs(rhs)), 1e-6)
		if math.Abs(lhs-rhs)/scale > 1e-3 {
			t.Fatalf("adjoint identity violated: %v vs %v", lhs, rhs)
		}
	})
}

func TestForwardMatchesDirect(t *testing.T) {
	k := kernel.Build(0.02, 0.4, 30)
	n := 200

	src := make([]float32, n)
	for i := range n {
		src[i] = float32(math.Sin(float64(i) * 0.11))
	}

	c := NewConvolver()
	require.NoError(t, c.EnsureBuffers(n, k))

	fftOut := make([]float32, n)
	require.NoError(t, c.Forward(fftOut, src, n))

	tdOut := make([]float32, n)
	Direct(tdOut, src, k)

	for i := range n {
		diff := math.Abs(float64(fftOut[i] - tdOut[i]))
		rel := diff / math.Max(math.Abs(float64(tdOut[i])), 1e-6)
		assert.True(t, diff < 1e-4 || rel < 1e-3,
			"sample %d: fft=%v td=%v", i, fftOut[i], tdOut[i])
	}
}

func TestAdjointMatchesDirect(t *testing.T) {
	k := kernel.Build(0.02, 0.4, 30)
	n := 150

	src := make([]float32, n)
	for i := range n {
		src[i] = float32(math.Cos(float64(i) * 0.23))
	}

	c := NewConvolver()
	require.NoError(t, c.EnsureBuffers(n, k))

	fftOut := make([]float32, n)
	require.NoError(t, c.Adjoint(fftOut, src, n))

	tdOut := make([]float32, n)
	DirectAdjoint(tdOut, src, k)

	for i := range n {
		diff := math.Abs(float64(fftOut[i] - tdOut[i]))
		rel := diff / math.Max(math.Abs(float64(tdOut[i])), 1e-6)
		assert.True(t, diff < 1e-4 || rel < 1e-3,
			"sample %d: fft=%v td=%v", i, fftOut[i], tdOut[i])
	}
}

func TestEnsureBuffersNoopAtSameLength(t *testing.T) {
	k := kernel.Build(0.02, 0.4, 30)

	c := NewConvolver()
	require.NoError(t, c.EnsureBuffers(100, k))
	fftLen := c.FFTLen()
	require.Greater(t, fftLen, 0)

	// A slightly different signal length mapping to the same padded
	// length must not rebuild.
	require.NoError(t, c.EnsureBuffers(101, k))
	assert.Equal(t, fftLen, c.FFTLen())

	// A much longer signal grows the plan.
	require.NoError(t, c.EnsureBuffers(10*fftLen, k))
	assert.Greater(t, c.FFTLen(), fftLen)
}

func TestInvalidateForcesRebuild(t *testing.T) {
	k := kernel.Build(0.02, 0.4, 30)

	c := NewConvolver()
	require.NoError(t, c.EnsureBuffers(100, k))

	c.Invalidate()
	assert.Equal(t, 0, c.FFTLen())

	out := make([]float32, 10)
	assert.ErrorIs(t, c.Forward(out, out, 10), ErrNotPrepared)

	require.NoError(t, c.EnsureBuffers(100, k))
	require.NoError(t, c.Forward(out, make([]float32, 10), 10))
}

func TestPrepareKernelErrors(t *testing.T) {
	c := NewConvolver()
	assert.ErrorIs(t, c.PrepareKernel(nil), ErrEmptyKernel)
	assert.ErrorIs(t, c.PrepareKernel([]float32{1}), ErrNotPrepared)
}

func TestConvolveLengthMismatch(t *testing.T) {
	k := kernel.Build(0.02, 0.4, 30)

	c := NewConvolver()
	require.NoError(t, c.EnsureBuffers(64, k))

	short := make([]float32, 8)
	assert.ErrorIs(t, c.Forward(short, short, 64), ErrLengthMismatch)
}

func TestDirectKnownValues(t *testing.T) {
	src := []float32{1, 2, 3, 4, 5}
	k := []float32{0, 0, 1}

	dst := make([]float32, len(src))
	Direct(dst, src, k)
	assert.Equal(t, []float32{0, 0, 1, 2, 3}, dst)
}
