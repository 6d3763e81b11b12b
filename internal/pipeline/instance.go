package pipeline

import (
	"time"

	"radar-dsp-core/internal/buffer"
	"radar-dsp-core/internal/decim"
	"radar-dsp-core/pkg/wire"
)

// Instance is a per-sequence handle: it owns the lease on a ring-buffer
// slot, the device buffers C2 hands out, and the three timing markers
// (initial, kernel-start, stop) from §4.5. It is created on Submit and
// destroyed at the end of run, win or lose — there is no reuse.
type Instance struct {
	core              *Core
	seqNum            uint32
	slotName          string
	samplesPerAntenna int
	numAntennas       int
	stages            StageFilters
	handle            *Handle
}

// run executes the eight-step sequence from §4.5 on its own goroutine,
// the stand-in for the instance's private GPU stream. It never leaves
// an instance half-torn-down: every exit path either completes all
// steps or fails and releases whatever it was holding.
func (inst *Instance) run() {
	initialStart := time.Now()
	inst.handle.setState(StateInit)

	slot, err := inst.core.ring.Lease(inst.slotName)
	if err != nil {
		inst.core.log.Warn("slot missing", "sequence", inst.seqNum, "slot", inst.slotName)
		inst.failSequence(wire.StatusSlotMissing, err)
		return
	}

	inst.handle.setState(StateCopying)

	samplesOut1 := inst.samplesPerAntenna / inst.stages.DMRate1
	samplesOut2 := samplesOut1 / inst.stages.DMRate2
	samplesOut3 := samplesOut2 / inst.stages.DMRate3

	buffers, err := inst.core.manager.Acquire(
		inst.samplesPerAntenna, inst.numAntennas,
		inst.stages.First, inst.stages.Second, inst.stages.Third,
		samplesOut1, samplesOut2, samplesOut3,
	)
	if err != nil {
		slot.Release()
		inst.core.log.Error("allocation failed", "sequence", inst.seqNum, "err", err)
		inst.failSequence(wire.StatusAllocationFailure, err)
		return
	}

	// Step 2: enqueue the H->D copy. There is no separate device address
	// space to model here, so the copy is a plain slice copy; a real
	// backend would issue this asynchronously on the instance's stream.
	copy(buffers.RFSamples.Data, slot.Data().Data)

	// Step 3: copy-complete callback. This must not block on GPU APIs —
	// sending the ack and arming kernelStart are the only work it does,
	// matching "any work beyond trivial messaging is handed off".
	inst.core.ackSink.Send(wire.EncodeAck(wire.AckMessage{SequenceNum: inst.seqNum}))
	inst.handle.setState(StateCopyAcked)
	kernelStart := time.Now()

	numFreqs := inst.stages.First.NumFreqs

	inst.handle.setState(StateStage1)
	stage1Out, err := decim.Run(buffers.RFSamples, inst.stages.First, inst.stages.DMRate1, inst.core.device)
	if err != nil {
		inst.teardownAfterKernelFailure(slot, buffers, err)
		return
	}

	inst.handle.setState(StateStage2)
	foldedIn2 := decim.FoldFrequencyIntoAntenna(stage1Out)
	foldedOut2, err := decim.Run(foldedIn2, inst.stages.Second.SingleRow(0), inst.stages.DMRate2, inst.core.device)
	if err != nil {
		inst.teardownAfterKernelFailure(slot, buffers, err)
		return
	}
	stage2Out := decim.UnfoldFrequencyFromAntenna(foldedOut2, numFreqs, inst.numAntennas)

	inst.handle.setState(StateStage3)
	foldedIn3 := decim.FoldFrequencyIntoAntenna(stage2Out)
	foldedOut3, err := decim.Run(foldedIn3, inst.stages.Third.SingleRow(0), inst.stages.DMRate3, inst.core.device)
	if err != nil {
		inst.teardownAfterKernelFailure(slot, buffers, err)
		return
	}
	stage3Out := decim.UnfoldFrequencyFromAntenna(foldedOut3, numFreqs, inst.numAntennas)

	// Step 6: pinned host output + async D->H copy, modelled as a copy
	// into a distinct host-side block.
	inst.handle.setState(StateDraining)
	copy(buffers.HostOutput.Data, stage3Out.Data)

	// Step 7/8: record stop, then the finalisation callback computes
	// both elapsed windows and reports kernel time over the wire — the
	// wire schema only carries kernel time, so total elapsed is a log
	// field rather than a message field.
	stop := time.Now()
	totalMs := float32(stop.Sub(initialStart).Seconds() * 1000)
	kernelMs := float32(stop.Sub(kernelStart).Seconds() * 1000)

	inst.core.timingSink.Send(wire.EncodeTiming(wire.TimingMessage{
		SequenceNum:  inst.seqNum,
		KernelTimeMs: kernelMs,
		Status:       wire.StatusOK,
	}))
	inst.core.log.Debug("sequence complete", "sequence", inst.seqNum, "total_ms", totalMs, "kernel_ms", kernelMs)

	buffers.Free()
	slot.Release()
	inst.core.untrack(inst.seqNum)
	inst.handle.finish(stage3Out)
}

// teardownAfterKernelFailure frees whatever this instance was holding
// and reports a kernel-config failure. A kernel-stage error can only be
// the fatal too-many-threads configuration error (§4.3 and §7); a
// pipeline that reaches this point has already sent its ack, so the
// sequence is reported lost via the sentinel timing message but the
// ack already in flight is not retracted (§5's "acks are per-sequence
// independent events").
func (inst *Instance) teardownAfterKernelFailure(slot *buffer.Slot, buffers *buffer.InstanceBuffers, cause error) {
	inst.core.log.Error("kernel configuration invalid", "sequence", inst.seqNum, "err", cause)
	buffers.Free()
	slot.Release()
	inst.failSequence(wire.StatusKernelConfigInvalid, cause)
}

// failSequence sends the sentinel timing message, tears down the
// tracking entry, and resolves the handle. No ack is sent for a
// sequence that fails before step 3.
func (inst *Instance) failSequence(status wire.StatusCode, cause error) {
	inst.core.timingSink.Send(wire.EncodeTiming(wire.TimingMessage{
		SequenceNum:  inst.seqNum,
		KernelTimeMs: wire.SentinelKernelTimeMs,
		Status:       status,
	}))
	inst.core.untrack(inst.seqNum)
	inst.handle.fail(cause)
}
