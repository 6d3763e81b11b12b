// Package decim implements the C3 decimation kernels and the C4
// parallel reduction they use to sum each frequency row's tap
// products. No CUDA toolchain is available in this environment, so the
// grid/block/thread execution model is carried over structurally: one
// goroutine per grid block (one (antenna, output-sample) pair), with
// the block's threads — one per tap lane, or one per tap-pair lane in
// the large variant — run as a plain loop inside that goroutine. Blocks
// are independent by construction (§4.3), so this preserves the
// kernel's actual concurrency contract without needing real per-thread
// scheduling.
package decim

import (
	"fmt"
	"sync"

	"radar-dsp-core/internal/gpu"
	"radar-dsp-core/pkg/sample"
)

// loadSample implements the kernel's edge policy: an out-of-range time
// index reads as zero. Any output sample whose filter window ran past
// the end of the input is contaminated by those zeros (§4.3); Run and
// the pipeline orchestrator return such samples unchanged, and it is
// the consumer of the output that discards them.
func loadSample(in sample.AntennaBlock, antenna, idx int) sample.Sample {
	return in.At(antenna, idx)
}

// blockSmall computes out[:, antenna, k] for every frequency row, one
// tap per lane.
func blockSmall(in sample.AntennaBlock, filters sample.FilterBank, dmRate, warpSize, antenna, k int, out sample.DecimatedBlock) {
	decOffset := k * dmRate
	for ty := 0; ty < filters.NumFreqs; ty++ {
		taps := filters.Row(ty)
		products := make([]sample.Sample, filters.NumTaps)
		for tx := 0; tx < filters.NumTaps; tx++ {
			products[tx] = loadSample(in, antenna, decOffset+tx).Mul(taps[tx])
		}
		out.Set(ty, antenna, k, reduceRow(products, warpSize))
	}
}

// blockLarge differs only in the load step: each lane handles two
// adjacent samples and their two adjacent taps, pre-summing the pair of
// products before the row enters the same reduction with half as many
// entries as blockSmall would have needed.
func blockLarge(in sample.AntennaBlock, filters sample.FilterBank, dmRate, warpSize, antenna, k int, out sample.DecimatedBlock) {
	decOffset := k * dmRate
	halfTaps := filters.NumTaps / 2
	for ty := 0; ty < filters.NumFreqs; ty++ {
		taps := filters.Row(ty)
		products := make([]sample.Sample, halfTaps)
		for tx := 0; tx < halfTaps; tx++ {
			t0, t1 := 2*tx, 2*tx+1
			p0 := loadSample(in, antenna, decOffset+t0).Mul(taps[t0])
			p1 := loadSample(in, antenna, decOffset+t1).Mul(taps[t1])
			products[tx] = p0.Add(p1)
		}
		out.Set(ty, antenna, k, reduceRow(products, warpSize))
	}
}

// ErrInvalidDecimationRate is returned when dmRate is not positive.
var ErrInvalidDecimationRate = fmt.Errorf("decim: decimation rate must be positive")

// Run executes one decimation stage across every antenna and every
// output sample index, implementing out[f, a, k] = sum_t in[a,
// k*dmRate+t] * tap[f, t] (§4.3's output layout). The kernel variant is
// whatever gpu.SelectKernel reports for this stage's (taps, freqs)
// shape and device; Run returns that selection error unchanged so
// callers can treat a fatal configuration the same way a real launch
// failure would be treated.
func Run(in sample.AntennaBlock, filters sample.FilterBank, dmRate int, dev gpu.Device) (sample.DecimatedBlock, error) {
	if dmRate <= 0 {
		return sample.DecimatedBlock{}, fmt.Errorf("%w: got %d", ErrInvalidDecimationRate, dmRate)
	}

	variant, err := gpu.SelectKernel(filters.NumTaps, filters.NumFreqs, dev)
	if err != nil {
		return sample.DecimatedBlock{}, err
	}

	samplesOut := in.SamplesPerAntenna / dmRate
	out := sample.NewDecimatedBlock(filters.NumFreqs, in.NumAntennas, samplesOut)

	var wg sync.WaitGroup
	for antenna := 0; antenna < in.NumAntennas; antenna++ {
		for k := 0; k < samplesOut; k++ {
			wg.Add(1)
			go func(antenna, k int) {
				defer wg.Done()
				if variant == gpu.KernelLarge {
					blockLarge(in, filters, dmRate, dev.WarpSize, antenna, k, out)
				} else {
					blockSmall(in, filters, dmRate, dev.WarpSize, antenna, k, out)
				}
			}(antenna, k)
		}
	}
	wg.Wait()

	return out, nil
}
