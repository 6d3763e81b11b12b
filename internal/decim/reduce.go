package decim

import "radar-dsp-core/pkg/sample"

// reduceRow implements the §4.4 parallel reduction: tree halving down
// to warpSize entries, then warp-synchronous shuffle-down for the
// remaining steps. Real hardware shuffles operate on 32-bit lanes, so a
// 64-bit complex sample is split into its I and Q lanes for the final
// phase and recombined at the end — the same numeric result a plain
// complex add would give, but structured the way the warp primitive
// forces it to be.
func reduceRow(products []sample.Sample, warpSize int) sample.Sample {
	if warpSize <= 0 {
		warpSize = 32
	}

	n := len(products)
	buf := make([]sample.Sample, n)
	copy(buf, products)

	for n > warpSize {
		half := n / 2
		for i := 0; i < half; i++ {
			buf[i] = buf[i].Add(buf[i+half])
		}
		n = half
	}

	if n == 0 {
		return sample.Sample{}
	}

	realLane := make([]float32, n)
	imagLane := make([]float32, n)
	for i := 0; i < n; i++ {
		realLane[i] = buf[i].I
		imagLane[i] = buf[i].Q
	}
	for n > 1 {
		half := n / 2
		for i := 0; i < half; i++ {
			realLane[i] += realLane[i+half]
			imagLane[i] += imagLane[i+half]
		}
		n = half
	}
	return sample.Sample{I: realLane[0], Q: imagLane[0]}
}
