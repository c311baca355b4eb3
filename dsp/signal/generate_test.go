package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSine(t *testing.T) {
	g := NewGenerator(WithSampleRate(100))

	out, err := g.Sine(25, 1, 8)
	require.NoError(t, err)
	require.Len(t, out, 8)

	// 25 Hz at 100 Hz sampling: 0, 1, 0, -1, ...
	assert.InDelta(t, 0, out[0], 1e-6)
	assert.InDelta(t, 1, out[1], 1e-6)
	assert.InDelta(t, 0, out[2], 1e-6)
	assert.InDelta(t, -1, out[3], 1e-6)

	_, err = g.Sine(1, 1, 0)
	assert.Error(t, err)
}

func TestImpulse(t *testing.T) {
	g := NewGenerator()

	out, err := g.Impulse(2.5, 5, 3)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 0, 2.5, 0}, out)

	_, err = g.Impulse(1, 5, 5)
	assert.Error(t, err)
	_, err = g.Impulse(1, 5, -1)
	assert.Error(t, err)
}

func TestDC(t *testing.T) {
	g := NewGenerator()

	out, err := g.DC(5, 3)
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 5, 5}, out)
}

func TestNoiseDeterministic(t *testing.T) {
	a, err := NewGenerator(WithSeed(42)).Noise(1, 100)
	require.NoError(t, err)
	b, err := NewGenerator(WithSeed(42)).Noise(1, 100)
	require.NoError(t, err)

	assert.Equal(t, a, b)

	c, err := NewGenerator(WithSeed(7)).Noise(1, 100)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestSpikeTrain(t *testing.T) {
	g := NewGenerator()
	kernel := []float32{0, 1, 0.5}

	out, err := g.SpikeTrain(kernel, 8, []int{1, 3}, 2)
	require.NoError(t, err)

	// Spike at 1 contributes {_, 0, 2, 1}, spike at 3 contributes {_, _, _, 0, 2, 1}.
	assert.InDeltaSlice(t, []float32{0, 0, 2, 1, 2, 1, 0, 0}, out, 1e-6)
}

func TestSpikeTrainTruncatesTail(t *testing.T) {
	g := NewGenerator()
	kernel := []float32{0, 1, 0.5}

	out, err := g.SpikeTrain(kernel, 3, []int{2}, 1)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0, 0, 0}, out, 1e-6)

	_, err = g.SpikeTrain(kernel, 3, []int{3}, 1)
	assert.Error(t, err)
}

func TestAddAndOffset(t *testing.T) {
	sum, err := Add([]float32{1, 2}, []float32{3, 4})
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 6}, sum)

	_, err = Add([]float32{1}, []float32{1, 2})
	assert.Error(t, err)

	assert.Equal(t, []float32{6, 7}, Offset([]float32{1, 2}, 5))
}
