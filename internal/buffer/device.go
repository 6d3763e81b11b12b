package buffer

import (
	"fmt"

	"radar-dsp-core/internal/gpu"
	"radar-dsp-core/pkg/sample"
)

// ErrAllocationFailure wraps any failure to size or allocate a per
// instance's device buffers. Per §4.2 this is fatal for the sequence
// only; the caller destroys the instance and continues with the next.
var ErrAllocationFailure = fmt.Errorf("buffer: device allocation failed")

// InstanceBuffers owns one sequence's device-side allocations: the raw
// sample buffer, the three stages' filter banks, the three intermediate
// (and final) outputs, and the host-side output the last D->H copy
// lands in. All fields are allocated together by Manager.Acquire and
// freed together by Free.
type InstanceBuffers struct {
	RFSamples sample.AntennaBlock

	FirstStageFilters  sample.FilterBank
	SecondStageFilters sample.FilterBank
	ThirdStageFilters  sample.FilterBank

	Stage1Output sample.DecimatedBlock
	Stage2Output sample.DecimatedBlock
	Stage3Output sample.DecimatedBlock

	// HostOutput mirrors Stage3Output; in real hardware this is a pinned
	// host buffer the final async D->H copy targets. There is no
	// separate host/device address space to model here, so it starts
	// as a distinct zeroed block and pipeline.Instance fills it via
	// the simulated D->H copy rather than aliasing Stage3Output.
	HostOutput sample.DecimatedBlock

	freed bool
}

// Manager allocates and tracks per-instance device buffers against one
// probed device's capability.
type Manager struct {
	device gpu.Device
}

// NewManager returns a Manager bound to dev's shared-memory and thread
// limits.
func NewManager(dev gpu.Device) *Manager {
	return &Manager{device: dev}
}

// Acquire validates the stage-1 filter bank's shared-memory footprint —
// the largest working set a block holds, since stage 1 carries one
// bandpass row per receive frequency — against the probed device, then
// allocates every per-instance buffer the sequence will need. A
// rejection here must not allocate anything.
func (m *Manager) Acquire(
	samplesPerAntenna, numAntennas int,
	firstStage, secondStage, thirdStage sample.FilterBank,
	samplesOut1, samplesOut2, samplesOut3 int,
) (*InstanceBuffers, error) {
	if err := gpu.CheckSharedMemory(firstStage.NumFreqs, firstStage.NumTaps, m.device); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAllocationFailure, err)
	}

	numFreqs := firstStage.NumFreqs

	return &InstanceBuffers{
		RFSamples:          sample.NewAntennaBlock(samplesPerAntenna, numAntennas),
		FirstStageFilters:  firstStage,
		SecondStageFilters: secondStage,
		ThirdStageFilters:  thirdStage,
		Stage1Output:       sample.NewDecimatedBlock(numFreqs, numAntennas, samplesOut1),
		Stage2Output:       sample.NewDecimatedBlock(numFreqs, numAntennas, samplesOut2),
		Stage3Output:       sample.NewDecimatedBlock(numFreqs, numAntennas, samplesOut3),
		HostOutput:         sample.NewDecimatedBlock(numFreqs, numAntennas, samplesOut3),
	}, nil
}

// Free releases an instance's buffers. It is idempotent so a
// finalisation callback and a failure-path teardown can both call it
// safely; in this software model there is no explicit device free, but
// the freed flag lets callers and tests assert teardown happened
// exactly the expected number of times.
func (b *InstanceBuffers) Free() {
	b.freed = true
}

// Freed reports whether Free has been called.
func (b *InstanceBuffers) Freed() bool {
	return b.freed
}
