// Package sample defines the complex sample representation and the
// buffer layouts shared by every stage of the decimation pipeline:
// antenna-major raw blocks, frequency-major filter banks, and the
// frequency/antenna/time-major decimated output blocks described in
// the data model.
package sample

import "fmt"

// Sample is a complex baseband sample represented as two 32-bit floats.
// Every buffer, host or device, uses this representation.
type Sample struct {
	I, Q float32
}

// Add returns the elementwise sum of two samples.
func (s Sample) Add(o Sample) Sample {
	return Sample{s.I + o.I, s.Q + o.Q}
}

// Mul returns the complex product of two samples.
func (s Sample) Mul(o Sample) Sample {
	return Sample{
		I: s.I*o.I - s.Q*o.Q,
		Q: s.I*o.Q + s.Q*o.I,
	}
}

// Scale multiplies a sample by a real scalar.
func (s Sample) Scale(a float32) Sample {
	return Sample{s.I * a, s.Q * a}
}

// MagnitudeSquared returns I^2 + Q^2, useful for magnitude comparisons
// without the cost of a square root.
func (s Sample) MagnitudeSquared() float64 {
	return float64(s.I)*float64(s.I) + float64(s.Q)*float64(s.Q)
}

// AntennaBlock is a contiguous array of samplesPerAntenna*numAntennas
// samples laid out antenna-major: all samples for antenna 0, then all
// for antenna 1, and so on.
type AntennaBlock struct {
	Data             []Sample
	SamplesPerAntenna int
	NumAntennas       int
}

// NewAntennaBlock allocates a zeroed antenna-major block.
func NewAntennaBlock(samplesPerAntenna, numAntennas int) AntennaBlock {
	return AntennaBlock{
		Data:              make([]Sample, samplesPerAntenna*numAntennas),
		SamplesPerAntenna: samplesPerAntenna,
		NumAntennas:       numAntennas,
	}
}

// At returns the sample at (antenna, t), t in [0, SamplesPerAntenna).
// Out-of-range t returns the zero sample, matching the kernel's edge
// policy of treating out-of-bounds reads as zero.
func (b AntennaBlock) At(antenna, t int) Sample {
	if t < 0 || t >= b.SamplesPerAntenna {
		return Sample{}
	}
	return b.Data[antenna*b.SamplesPerAntenna+t]
}

// Antenna returns the slice of samples belonging to one antenna.
func (b AntennaBlock) Antenna(antenna int) []Sample {
	start := antenna * b.SamplesPerAntenna
	return b.Data[start : start+b.SamplesPerAntenna]
}

// FilterBank is a contiguous array of numFreqs*numTaps complex taps,
// laid out frequency-major: each frequency's sub-array is the complex
// FIR centred at that frequency's offset from the local oscillator.
// Filter length must be a power of two — this is invariant for the
// reduction kernel.
type FilterBank struct {
	Taps     []Sample
	NumFreqs int
	NumTaps  int
}

// NewFilterBank allocates a zeroed filter bank. numTaps must already be
// a power of two; callers (filterdesign.BuildStageFilters) are
// responsible for rounding and zero-padding before calling this.
func NewFilterBank(numFreqs, numTaps int) (FilterBank, error) {
	if numTaps < 4 || numTaps > 2048 || numTaps&(numTaps-1) != 0 {
		return FilterBank{}, fmt.Errorf("sample: filter length %d must be a power of two in [4, 2048]", numTaps)
	}
	return FilterBank{
		Taps:     make([]Sample, numFreqs*numTaps),
		NumFreqs: numFreqs,
		NumTaps:  numTaps,
	}, nil
}

// Row returns the tap slice for one receive frequency.
func (fb FilterBank) Row(freq int) []Sample {
	start := freq * fb.NumTaps
	return fb.Taps[start : start+fb.NumTaps]
}

// SingleRow returns a one-frequency view of row freq. Stages 2 and 3
// replicate the same real lowpass across every row, so any row is
// representative; this is used to present a folded (frequency×antenna)
// stream to a kernel invocation that expects one filter row per thread.
func (fb FilterBank) SingleRow(freq int) FilterBank {
	return FilterBank{Taps: fb.Row(freq), NumFreqs: 1, NumTaps: fb.NumTaps}
}

// DecimatedBlock is a stage's output: numFreqs*numAntennas*samplesOut
// samples laid out frequency-major, then antenna-major within a
// frequency, then time-major within an antenna.
type DecimatedBlock struct {
	Data        []Sample
	NumFreqs    int
	NumAntennas int
	SamplesOut  int
}

// NewDecimatedBlock allocates a zeroed decimated output block.
func NewDecimatedBlock(numFreqs, numAntennas, samplesOut int) DecimatedBlock {
	return DecimatedBlock{
		Data:        make([]Sample, numFreqs*numAntennas*samplesOut),
		NumFreqs:    numFreqs,
		NumAntennas: numAntennas,
		SamplesOut:  samplesOut,
	}
}

func (b DecimatedBlock) index(freq, antenna, k int) int {
	return freq*b.NumAntennas*b.SamplesOut + antenna*b.SamplesOut + k
}

// At returns out[f, a, k].
func (b DecimatedBlock) At(freq, antenna, k int) Sample {
	return b.Data[b.index(freq, antenna, k)]
}

// Set writes out[f, a, k] = v.
func (b DecimatedBlock) Set(freq, antenna, k int, v Sample) {
	b.Data[b.index(freq, antenna, k)] = v
}

// AntennaChannel returns the contiguous time-series for one (freq,
// antenna) pair — the form stage s+1 consumes as its per-stream input.
func (b DecimatedBlock) AntennaChannel(freq, antenna int) []Sample {
	start := b.index(freq, antenna, 0)
	return b.Data[start : start+b.SamplesOut]
}
