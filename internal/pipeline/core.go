package pipeline

import (
	"log/slog"
	"sync"

	"radar-dsp-core/internal/buffer"
	"radar-dsp-core/internal/gpu"
	"radar-dsp-core/pkg/sample"
	"radar-dsp-core/pkg/wire"
)

// StageFilters bundles the three stages' precomputed filter banks and
// decimation rates, built once by filterdesign.BuildStageFilters and
// reused across every sequence that shares a receive-frequency set.
type StageFilters struct {
	First, Second, Third      sample.FilterBank
	DMRate1, DMRate2, DMRate3 int
}

// Core is "DSPCore": the per-process owner of the ring buffer, the
// device buffer manager, and the outbound ack/timing sinks. It has no
// per-sequence state of its own — each Submit call spawns an Instance
// that owns everything for its sequence, mirroring §4.5's model of the
// orchestrator as a per-sequence handle rather than a shared scoped
// resource.
type Core struct {
	ring    *buffer.RingBuffer
	manager *buffer.Manager
	device  gpu.Device

	ackSink    wire.OutboundSink
	timingSink wire.OutboundSink

	log *slog.Logger

	mu        sync.Mutex
	instances map[uint32]*Instance
}

// NewCore wires together a ring buffer, a device buffer manager, a
// probed device, and the two outbound sinks C6 requires.
func NewCore(ring *buffer.RingBuffer, manager *buffer.Manager, device gpu.Device, ackSink, timingSink wire.OutboundSink, logger *slog.Logger) *Core {
	if logger == nil {
		logger = slog.Default()
	}
	return &Core{
		ring:       ring,
		manager:    manager,
		device:     device,
		ackSink:    ackSink,
		timingSink: timingSink,
		log:        logger,
		instances:  make(map[uint32]*Instance),
	}
}

// Submit starts a new pipeline instance for sequence seqNum, reading a
// samplesPerAntenna x numAntennas raw block from the ring-buffer slot
// named slotName. Submit never blocks: the eight-step sequence in §4.5
// runs on a goroutine dedicated to this instance — the stand-in for the
// instance's own GPU stream — so sequences n, n+1, n+2 submitted
// back-to-back overlap instead of serialising.
func (c *Core) Submit(seqNum uint32, slotName string, samplesPerAntenna, numAntennas int, stages StageFilters) *Handle {
	inst := &Instance{
		core:              c,
		seqNum:            seqNum,
		slotName:          slotName,
		samplesPerAntenna: samplesPerAntenna,
		numAntennas:       numAntennas,
		stages:            stages,
		handle:            newHandle(),
	}

	c.mu.Lock()
	c.instances[seqNum] = inst
	c.mu.Unlock()

	go inst.run()
	return inst.handle
}

// untrack drops an instance from the live set once it reaches a
// terminal state. Safe to call more than once for the same sequence.
func (c *Core) untrack(seqNum uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.instances, seqNum)
}

// LiveSequenceCount reports how many instances have not yet reached a
// terminal state — useful for asserting overlap in tests.
func (c *Core) LiveSequenceCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.instances)
}
