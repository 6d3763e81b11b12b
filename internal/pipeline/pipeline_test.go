package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radar-dsp-core/internal/buffer"
	"radar-dsp-core/internal/filterdesign"
	"radar-dsp-core/internal/gpu"
	"radar-dsp-core/pkg/sample"
	"radar-dsp-core/pkg/wire"
)

func newTestCore(t *testing.T) (*Core, *buffer.RingBuffer, *wire.ChannelSink, *wire.ChannelSink) {
	t.Helper()
	dev := gpu.Device{MaxThreadsPerBlock: 4096, WarpSize: 32, SharedMemPerBlock: 1 << 20}
	ring := buffer.NewRingBuffer()
	mgr := buffer.NewManager(dev)
	acks := wire.NewChannelSink(16)
	timings := wire.NewChannelSink(16)
	core := NewCore(ring, mgr, dev, acks, timings, nil)
	return core, ring, acks, timings
}

func buildStages(t *testing.T, freqs []float64, rate float64) StageFilters {
	t.Helper()
	rate1 := rate / 10
	rate2 := rate1 / 10
	rate3 := rate2 / 5

	first, err := filterdesign.BuildStageFilters(1, freqs, rate, rate1)
	require.NoError(t, err)
	second, err := filterdesign.BuildStageFilters(2, freqs, rate1, rate2)
	require.NoError(t, err)
	third, err := filterdesign.BuildStageFilters(3, freqs, rate2, rate3)
	require.NoError(t, err)

	return StageFilters{First: first, Second: second, Third: third, DMRate1: 10, DMRate2: 10, DMRate3: 5}
}

func TestSubmitRunsToCompletionAndEmitsAckThenTiming(t *testing.T) {
	core, ring, acks, timings := newTestCore(t)
	stages := buildStages(t, []float64{1e6}, 5e6)

	samplesPerAntenna := 1000
	numAntennas := 4
	ring.Publish("seq-1", sample.NewAntennaBlock(samplesPerAntenna, numAntennas))

	h := core.Submit(1, "seq-1", samplesPerAntenna, numAntennas, stages)
	h.Wait()

	require.NoError(t, h.Err())
	assert.Equal(t, StateDone, h.State())

	var ackMsg []byte
	select {
	case ackMsg = <-acks.C():
	case <-time.After(time.Second):
		t.Fatal("expected an ack message")
	}
	ack, err := wire.DecodeAck(ackMsg)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), ack.SequenceNum)

	var timingMsg []byte
	select {
	case timingMsg = <-timings.C():
	case <-time.After(time.Second):
		t.Fatal("expected a timing message")
	}
	timing, err := wire.DecodeTiming(timingMsg)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), timing.SequenceNum)
	assert.Equal(t, wire.StatusOK, timing.Status)
	assert.GreaterOrEqual(t, timing.KernelTimeMs, float32(0))

	assert.Equal(t, 0, core.LiveSequenceCount())
}

func TestSubmitMissingSlotEmitsSentinelWithoutAck(t *testing.T) {
	core, _, acks, timings := newTestCore(t)
	stages := buildStages(t, []float64{1e6}, 5e6)

	h := core.Submit(2, "does-not-exist", 1000, 4, stages)
	h.Wait()

	assert.Equal(t, StateFailed, h.State())
	require.Error(t, h.Err())

	select {
	case <-acks.C():
		t.Fatal("no ack should be sent for a slot-missing failure")
	default:
	}

	timingMsg := <-timings.C()
	timing, err := wire.DecodeTiming(timingMsg)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusSlotMissing, timing.Status)
	assert.Equal(t, wire.SentinelKernelTimeMs, timing.KernelTimeMs)
}

func TestZeroInputProducesZeroOutput(t *testing.T) {
	core, ring, acks, timings := newTestCore(t)
	stages := buildStages(t, []float64{1e6}, 5e6)

	samplesPerAntenna := 1000
	numAntennas := 2
	ring.Publish("seq-zero", sample.NewAntennaBlock(samplesPerAntenna, numAntennas))

	h := core.Submit(3, "seq-zero", samplesPerAntenna, numAntennas, stages)
	h.Wait()
	require.NoError(t, h.Err())

	out := h.Output()
	for _, s := range out.Data {
		assert.Equal(t, sample.Sample{}, s)
	}

	<-acks.C()
	<-timings.C()
}

func TestOverlappingSequencesAllComplete(t *testing.T) {
	core, ring, acks, timings := newTestCore(t)
	stages := buildStages(t, []float64{1e6}, 5e6)

	samplesPerAntenna := 1000
	numAntennas := 2
	for _, name := range []string{"n", "n+1", "n+2"} {
		ring.Publish(name, sample.NewAntennaBlock(samplesPerAntenna, numAntennas))
	}

	handles := []*Handle{
		core.Submit(10, "n", samplesPerAntenna, numAntennas, stages),
		core.Submit(11, "n+1", samplesPerAntenna, numAntennas, stages),
		core.Submit(12, "n+2", samplesPerAntenna, numAntennas, stages),
	}

	for _, h := range handles {
		h.Wait()
		assert.NoError(t, h.Err())
	}

	for i := 0; i < 3; i++ {
		select {
		case <-acks.C():
		case <-time.After(time.Second):
			t.Fatal("expected three acks")
		}
		select {
		case <-timings.C():
		case <-time.After(time.Second):
			t.Fatal("expected three timing messages")
		}
	}
}
