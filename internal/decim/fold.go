package decim

import "radar-dsp-core/pkg/sample"

// FoldFrequencyIntoAntenna reshapes a frequency-major decimated block
// into an antenna-major block addressed by (frequency, antenna) pairs.
// Stages 2 and 3 run the same single real lowpass at every receive
// frequency, so the grid's antenna dimension is repurposed to range
// over frequency*antenna pairs instead of adding a second kernel
// variant that counts frequencies explicitly.
func FoldFrequencyIntoAntenna(in sample.DecimatedBlock) sample.AntennaBlock {
	return sample.AntennaBlock{
		Data:              in.Data,
		SamplesPerAntenna: in.SamplesOut,
		NumAntennas:       in.NumFreqs * in.NumAntennas,
	}
}

// UnfoldFrequencyFromAntenna reverses FoldFrequencyIntoAntenna on a
// folded kernel's output, which always has NumFreqs==1 because the
// filter bank passed to that kernel run is a FilterBank.SingleRow.
func UnfoldFrequencyFromAntenna(in sample.DecimatedBlock, numFreqs, numAntennas int) sample.DecimatedBlock {
	return sample.DecimatedBlock{
		Data:        in.Data,
		NumFreqs:    numFreqs,
		NumAntennas: numAntennas,
		SamplesOut:  in.SamplesOut,
	}
}
