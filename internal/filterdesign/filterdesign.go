// Package filterdesign builds the per-stage complex FIR tap arrays
// consumed by the decimation kernels. Stage 1 produces one complex
// bandpass filter per receive frequency (a baseband lowpass modulated
// by a complex exponential at the frequency's offset); stages 2 and 3
// produce a single real lowpass replicated across every frequency row.
//
// The lowpass prototype is a windowed-sinc design (Blackman window),
// generalized from the teacher pack's single-cutoff audio resampler
// kernel to a per-stage cutoff and tap count driven by the transition
// bandwidth between the stage's output Nyquist and input rate.
package filterdesign

import (
	"fmt"
	"math"

	"radar-dsp-core/pkg/sample"
)

// transitionFraction sets how gradual the stage's rolloff is, as a
// fraction of the output Nyquist frequency. Smaller means a sharper,
// longer filter.
const transitionFraction = 0.2

// sinc computes sin(pi*x)/(pi*x), with the x=0 limit handled explicitly.
func sinc(x float64) float64 {
	if math.Abs(x) < 1e-12 {
		return 1.0
	}
	pix := math.Pi * x
	return math.Sin(pix) / pix
}

// blackmanWindow returns the Blackman window value for position n in
// [0, length-1].
func blackmanWindow(n, length int) float64 {
	if length <= 1 {
		return 1.0
	}
	t := float64(n) / float64(length-1)
	return 0.42 - 0.5*math.Cos(2*math.Pi*t) + 0.08*math.Cos(4*math.Pi*t)
}

// nextPowerOfTwo returns the smallest power of two >= n, clamped to the
// [4, 2048] range the reduction kernel requires.
func nextPowerOfTwo(n int) int {
	p := 4
	for p < n {
		p *= 2
	}
	if p > 2048 {
		p = 2048
	}
	return p
}

// idealLength estimates the FIR length needed for the given transition
// bandwidth (both in Hz), using the standard rule of thumb that tap
// count scales as ~4/normalised-transition-width.
func idealLength(transitionHz, sampleRateHz float64) int {
	if transitionHz <= 0 {
		return 4
	}
	normalised := transitionHz / sampleRateHz
	n := int(math.Ceil(4.0 / normalised))
	if n < 4 {
		n = 4
	}
	return n
}

// lowpassPrototype builds a real windowed-sinc lowpass of the given
// length with cutoff cutoffHz at sample rate sampleRateHz, normalised so
// the taps sum to 1 (unity DC gain).
func lowpassPrototype(length int, cutoffHz, sampleRateHz float64) []float64 {
	h := make([]float64, length)
	fc := cutoffHz / sampleRateHz // normalised cutoff, cycles/sample
	center := float64(length-1) / 2.0

	var sum float64
	for n := 0; n < length; n++ {
		x := float64(n) - center
		h[n] = 2 * fc * sinc(2*fc*x) * blackmanWindow(n, length)
		sum += h[n]
	}

	if sum != 0 {
		for n := range h {
			h[n] /= sum
		}
	}
	return h
}

// BuildStageFilters returns a complex tap buffer of numFreqs x L taps
// for the given stage. stageIdx is 1-based (1, 2, 3). passFreqs are the
// receive centre frequencies for stage 1 (offsets from the local
// oscillator, in Hz); for stages 2 and 3 the frequency axis is only used
// to size the output (the taps are identical real lowpass across rows).
// inputRate/outputRate are the stage's sample rates in Hz.
func BuildStageFilters(stageIdx int, passFreqs []float64, inputRate, outputRate float64) (sample.FilterBank, error) {
	if stageIdx < 1 || stageIdx > 3 {
		return sample.FilterBank{}, fmt.Errorf("filterdesign: stage index must be 1..3, got %d", stageIdx)
	}
	if len(passFreqs) == 0 {
		return sample.FilterBank{}, fmt.Errorf("filterdesign: at least one receive frequency is required")
	}
	if inputRate <= 0 || outputRate <= 0 || outputRate > inputRate {
		return sample.FilterBank{}, fmt.Errorf("filterdesign: invalid rates in=%v out=%v", inputRate, outputRate)
	}

	nyquistOut := outputRate / 2
	transition := nyquistOut * transitionFraction
	ideal := idealLength(transition, inputRate)
	length := nextPowerOfTwo(ideal)

	proto := lowpassPrototype(length, nyquistOut, inputRate)

	numFreqs := len(passFreqs)
	bank, err := sample.NewFilterBank(numFreqs, length)
	if err != nil {
		return sample.FilterBank{}, fmt.Errorf("filterdesign: %w", err)
	}

	for i, offsetHz := range passFreqs {
		row := bank.Row(i)
		if stageIdx == 1 {
			modulateBandpass(row, proto, offsetHz, inputRate)
		} else {
			for n, h := range proto {
				row[n] = sample.Sample{I: float32(h), Q: 0}
			}
		}
	}

	return bank, nil
}

// modulateBandpass writes proto[n] * e^{-j*2*pi*offsetHz*n/sampleRate}
// into dst, producing a bandpass filter centred at offsetHz. The kernel
// computes out[k] = sum_n in[k*D+n] * tap[n] without time reversal, so a
// tone e^{+j*2*pi*offsetHz*n/fs} sees the gain
// sum_n proto[n] e^{j2*pi*offsetHz*n/fs} e^{-j2*pi*offsetHz*n/fs} = sum_n proto[n],
// which is exactly 1 because the prototype sums to 1.
func modulateBandpass(dst []sample.Sample, proto []float64, offsetHz, sampleRate float64) {
	w := 2 * math.Pi * offsetHz / sampleRate
	for n, h := range proto {
		angle := -w * float64(n)
		dst[n] = sample.Sample{
			I: float32(h * math.Cos(angle)),
			Q: float32(h * math.Sin(angle)),
		}
	}
}
