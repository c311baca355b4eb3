package signal

import (
	"fmt"
	"math"
	"math/rand"
)

const defaultSeed int64 = 1

// Generator creates deterministic traces from a shared configuration.
type Generator struct {
	sampleRate float64
	seed       int64
}

// Option configures a Generator.
type Option func(*Generator)

// WithSeed sets the deterministic random seed for noise generation.
func WithSeed(seed int64) Option {
	return func(g *Generator) {
		g.seed = seed
	}
}

// WithSampleRate sets the generator sample rate.
func WithSampleRate(sampleRate float64) Option {
	return func(g *Generator) {
		if sampleRate > 0 {
			g.sampleRate = sampleRate
		}
	}
}

// NewGenerator creates a configured trace generator. The default sample rate
// is 30 Hz and the default seed is 1.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		sampleRate: 30,
		seed:       defaultSeed,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	return g
}

// SampleRate returns the generator sample rate.
func (g *Generator) SampleRate() float64 {
	return g.sampleRate
}

// Sine generates a sine wave.
func (g *Generator) Sine(freqHz, amplitude float64, samples int) ([]float32, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("sine samples must be > 0: %d", samples)
	}

	out := make([]float32, samples)

	step := 2 * math.Pi * freqHz / g.sampleRate
	for i := range out {
		out[i] = float32(amplitude * math.Sin(step*float64(i)))
	}

	return out, nil
}

// Impulse generates an impulse with amplitude at pos and zeros elsewhere.
func (g *Generator) Impulse(amplitude float64, samples, pos int) ([]float32, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("impulse samples must be > 0: %d", samples)
	}
	if pos < 0 || pos >= samples {
		return nil, fmt.Errorf("impulse position out of range: %d", pos)
	}

	out := make([]float32, samples)
	out[pos] = float32(amplitude)

	return out, nil
}

// DC generates a constant trace.
func (g *Generator) DC(level float64, samples int) ([]float32, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("dc samples must be > 0: %d", samples)
	}

	out := make([]float32, samples)
	for i := range out {
		out[i] = float32(level)
	}

	return out, nil
}

// Noise generates seeded Gaussian noise with the given standard deviation.
func (g *Generator) Noise(sigma float64, samples int) ([]float32, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("noise samples must be > 0: %d", samples)
	}

	rng := rand.New(rand.NewSource(g.seed))

	out := make([]float32, samples)
	for i := range out {
		out[i] = float32(rng.NormFloat64() * sigma)
	}

	return out, nil
}

// SpikeTrain generates the superposition of kernel copies shifted to the
// spike positions, each scaled by amplitude. Kernel tails past the end of
// the trace are truncated.
func (g *Generator) SpikeTrain(kernel []float32, samples int, spikes []int, amplitude float64) ([]float32, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("spike train samples must be > 0: %d", samples)
	}
	if len(kernel) == 0 {
		return nil, fmt.Errorf("spike train kernel must not be empty")
	}

	out := make([]float32, samples)
	for _, s := range spikes {
		if s < 0 || s >= samples {
			return nil, fmt.Errorf("spike position out of range: %d", s)
		}
		for k, v := range kernel {
			if s+k >= samples {
				break
			}
			out[s+k] += float32(amplitude) * v
		}
	}

	return out, nil
}

// Add returns the elementwise sum of a and b, which must have equal length.
func Add(a, b []float32) ([]float32, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("length mismatch: %d vs %d", len(a), len(b))
	}

	out := make([]float32, len(a))
	for i := range out {
		out[i] = a[i] + b[i]
	}

	return out, nil
}

// Offset returns a copy of trace with level added to every sample.
func Offset(trace []float32, level float64) []float32 {
	out := make([]float32, len(trace))
	for i, v := range trace {
		out[i] = v + float32(level)
	}
	return out
}
