// Command deconv recovers a sparse non-negative spike train from a smoothed
// trace by FFT-accelerated proximal gradient descent.
//
// Usage:
//
//	deconv [flags]
//
// The trace is read from a WAV or CSV file (one sample per line), or
// generated with --demo. Kernel and solver parameters come from flags or a
// YAML parameter file.
//
// Examples:
//
//	deconv --demo
//	deconv -i trace.csv --lambda 0.02
//	deconv -i trace.wav -c params.yaml -o spikes.csv
package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/cwbudde/algo-deconv/dsp/kernel"
	"github.com/cwbudde/algo-deconv/dsp/signal"
	"github.com/cwbudde/algo-deconv/dsp/solver"
)

// params mirrors the YAML parameter file.
type params struct {
	TauRise    float64 `yaml:"tau_rise"`
	TauDecay   float64 `yaml:"tau_decay"`
	Lambda     float64 `yaml:"lambda"`
	SampleRate float64 `yaml:"sample_rate"`
	Filter     bool    `yaml:"filter"`
}

func defaultParams() params {
	return params{
		TauRise:    0.02,
		TauDecay:   0.4,
		Lambda:     0.01,
		SampleRate: 30,
	}
}

func main() {
	configFile := pflag.StringP("config", "c", "", "YAML parameter file")
	inputFile := pflag.StringP("input", "i", "", "Input trace (.wav or .csv, one sample per line)")
	outputFile := pflag.StringP("output", "o", "", "Write the recovered spike train as CSV")
	demo := pflag.Bool("demo", false, "Solve a generated demo spike train instead of a file")
	steps := pflag.Uint32("steps", 5000, "Maximum number of iterations")
	batch := pflag.Uint32("batch", 50, "Iterations per batch between progress checks")
	tauRise := pflag.Float64("tau-rise", 0, "Kernel rise time constant in seconds (overrides config)")
	tauDecay := pflag.Float64("tau-decay", 0, "Kernel decay time constant in seconds (overrides config)")
	lambda := pflag.Float64("lambda", 0, "Sparsity weight (overrides config)")
	sampleRate := pflag.Float64("sample-rate", 0, "Trace sample rate in Hz (overrides config)")
	filter := pflag.Bool("filter", false, "Apply the bandpass pre-filter before solving")
	verbose := pflag.BoolP("verbose", "v", false, "Per-batch progress output")
	pflag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}
	if *batch == 0 {
		*batch = 1
	}

	cfg := defaultParams()
	if *configFile != "" {
		if err := loadConfig(*configFile, &cfg); err != nil {
			log.Fatal("failed to load config", "file", *configFile, "err", err)
		}
	}
	if *tauRise > 0 {
		cfg.TauRise = *tauRise
	}
	if *tauDecay > 0 {
		cfg.TauDecay = *tauDecay
	}
	if *lambda > 0 {
		cfg.Lambda = *lambda
	}
	if *sampleRate > 0 {
		cfg.SampleRate = *sampleRate
	}
	if *filter {
		cfg.Filter = true
	}

	trace, err := loadTrace(*inputFile, *demo, cfg)
	if err != nil {
		log.Fatal("failed to load trace", "err", err)
	}
	if len(trace) == 0 {
		log.Fatal("empty trace")
	}

	s := solver.New()
	s.SetParams(cfg.TauRise, cfg.TauDecay, cfg.Lambda, cfg.SampleRate)
	s.SetTrace(trace)

	log.Info("trace installed",
		"samples", len(trace),
		"kernel_taps", len(s.Kernel()),
		"lambda", cfg.Lambda,
		"fs", cfg.SampleRate)

	if cfg.Filter {
		s.SetFilterEnabled(true)
		if s.ApplyFilter() {
			c := s.FilterCutoffs()
			log.Info("bandpass applied", "f_hp", c[0], "f_lp", c[1])
		} else {
			log.Warn("bandpass skipped (invalid cutoffs or trace too short)")
		}
	}

	converged := false
	for ran := uint32(0); ran < *steps; ran += *batch {
		if s.StepBatch(min(*batch, *steps-ran)) {
			converged = true
			break
		}
		log.Debug("batch done", "iterations", s.IterationCount())
	}

	solution := s.Solution()
	nonzeros := 0
	for _, v := range solution {
		if v > 1e-6 {
			nonzeros++
		}
	}

	log.Info("solve finished",
		"converged", converged,
		"iterations", s.IterationCount(),
		"baseline", fmt.Sprintf("%.4f", s.Baseline()),
		"spikes", nonzeros)

	if *outputFile != "" {
		if err := writeCSV(*outputFile, solution); err != nil {
			log.Fatal("failed to write output", "file", *outputFile, "err", err)
		}
		log.Info("spike train written", "file", *outputFile)
	}
}

func loadConfig(path string, cfg *params) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// loadTrace reads the input trace from a WAV or CSV file, or generates the
// demo spike train.
func loadTrace(path string, demo bool, cfg params) ([]float32, error) {
	if demo {
		k := kernel.Build(cfg.TauRise, cfg.TauDecay, cfg.SampleRate)
		gen := signal.NewGenerator(signal.WithSampleRate(cfg.SampleRate))
		return gen.SpikeTrain(k, 600, []int{30, 150, 300, 450}, 1)
	}
	if path == "" {
		return nil, fmt.Errorf("no input file (use -i or --demo)")
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return loadWAV(path)
	default:
		return loadCSV(path)
	}
}

func loadWAV(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file: %s", path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	return firstChannel(buf), nil
}

// firstChannel extracts channel 0 of a decoded PCM buffer as float32,
// scaled to [-1, 1) by the source bit depth.
func firstChannel(buf *audio.IntBuffer) []float32 {
	floats := buf.AsFloat32Buffer()

	channels := buf.Format.NumChannels
	if channels <= 1 {
		return floats.Data
	}

	out := make([]float32, len(floats.Data)/channels)
	for i := range out {
		out[i] = floats.Data[i*channels]
	}
	return out
}

func loadCSV(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []float32
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		v, err := strconv.ParseFloat(text, 32)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		out = append(out, float32(v))
	}
	return out, scanner.Err()
}

func writeCSV(path string, data []float32) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, v := range data {
		if _, err := fmt.Fprintf(w, "%g\n", v); err != nil {
			return err
		}
	}
	return w.Flush()
}
