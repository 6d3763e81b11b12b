package pipeline

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radar-dsp-core/pkg/sample"
	"radar-dsp-core/pkg/wire"
)

// tone builds an antenna-major block where every antenna carries the
// same pure complex exponential at freqHz sampled at sampleRate.
func tone(samplesPerAntenna, numAntennas int, freqHz, sampleRate float64) sample.AntennaBlock {
	b := sample.NewAntennaBlock(samplesPerAntenna, numAntennas)
	w := 2 * math.Pi * freqHz / sampleRate
	for a := 0; a < numAntennas; a++ {
		row := b.Antenna(a)
		for n := range row {
			angle := w * float64(n)
			row[n] = sample.Sample{I: float32(math.Cos(angle)), Q: float32(math.Sin(angle))}
		}
	}
	return b
}

func magnitude(s sample.Sample) float64 {
	return math.Sqrt(s.MagnitudeSquared())
}

// validOutputs counts the leading final-stage output samples whose
// filter windows, through all three stages, stay inside the input.
// Later samples read the kernel's zero padding past the end of some
// stage's input and are contaminated.
func validOutputs(samplesPerAntenna int, stages StageFilters) int {
	n := samplesPerAntenna
	for _, s := range []struct{ taps, dm int }{
		{stages.First.NumTaps, stages.DMRate1},
		{stages.Second.NumTaps, stages.DMRate2},
		{stages.Third.NumTaps, stages.DMRate3},
	} {
		if n < s.taps {
			return 0
		}
		n = (n-s.taps)/s.dm + 1
	}
	return n
}

// TestSingleToneSingleFrequency is S1, scaled down from the literal
// 1,000,000-sample/16-antenna scenario to 50,000 samples per antenna so
// the goroutine-per-output-sample kernel model stays within a sane
// footprint for a unit test; the decimation plan (10x10x5), antenna
// count, and tolerance are kept as specified. Contaminated trailing
// outputs (see validOutputs) are skipped.
func TestSingleToneSingleFrequency(t *testing.T) {
	core, ring, acks, timings := newTestCore(t)

	sampleRate := 5e6
	freqs := []float64{1e6}
	stages := buildStages(t, freqs, sampleRate)

	samplesPerAntenna := 50000
	numAntennas := 16
	ring.Publish("s1", tone(samplesPerAntenna, numAntennas, freqs[0], sampleRate))

	h := core.Submit(1, "s1", samplesPerAntenna, numAntennas, stages)
	h.Wait()
	require.NoError(t, h.Err())

	out := h.Output()
	wantOut := samplesPerAntenna / (stages.DMRate1 * stages.DMRate2 * stages.DMRate3)
	assert.Equal(t, wantOut, out.SamplesOut)

	margin := 1
	valid := validOutputs(samplesPerAntenna, stages)
	require.Greater(t, valid, margin)
	for a := 0; a < numAntennas; a++ {
		for k := margin; k < valid; k++ {
			assert.InDelta(t, 1.0, magnitude(out.At(0, a, k)), 0.01)
		}
	}

	<-acks.C()
	<-timings.C()
}

// TestTwoTonesTwoFrequencies is S2: two receive channels, each locked
// to its own tone, must reject the other channel's tone.
func TestTwoTonesTwoFrequencies(t *testing.T) {
	core, ring, acks, timings := newTestCore(t)

	sampleRate := 5e6
	freqs := []float64{0.5e6, -0.5e6}
	stages := buildStages(t, freqs, sampleRate)

	samplesPerAntenna := 50000
	numAntennas := 2

	// Antenna 0 carries tone 0, antenna 1 carries tone 1, so each
	// antenna's own-channel / other-channel split is checked directly.
	block := sample.NewAntennaBlock(samplesPerAntenna, numAntennas)
	for a, f := range freqs {
		row := block.Antenna(a)
		w := 2 * math.Pi * f / sampleRate
		for n := range row {
			angle := w * float64(n)
			row[n] = sample.Sample{I: float32(math.Cos(angle)), Q: float32(math.Sin(angle))}
		}
	}
	ring.Publish("s2", block)

	h := core.Submit(2, "s2", samplesPerAntenna, numAntennas, stages)
	h.Wait()
	require.NoError(t, h.Err())

	out := h.Output()
	margin := 1
	valid := validOutputs(samplesPerAntenna, stages)
	require.Greater(t, valid, margin)
	for k := margin; k < valid; k++ {
		assert.InDelta(t, 1.0, magnitude(out.At(0, 0, k)), 0.1, "channel 0 should pass tone 0 on antenna 0")
		assert.Less(t, magnitude(out.At(1, 0, k)), 0.2, "channel 1 should reject tone 0 on antenna 0")
		assert.InDelta(t, 1.0, magnitude(out.At(1, 1, k)), 0.1, "channel 1 should pass tone 1 on antenna 1")
		assert.Less(t, magnitude(out.At(0, 1, k)), 0.2, "channel 0 should reject tone 1 on antenna 1")
	}

	<-acks.C()
	<-timings.C()
}

// TestAckPrecedesKernelCompletion is Property 6 at the orchestrator
// level: the ack is observable on the wire before the sequence's
// kernel work has finished, since instance.run sends it immediately
// after the H->D copy and before any decim.Run call.
func TestAckPrecedesKernelCompletion(t *testing.T) {
	core, ring, acks, _ := newTestCore(t)
	stages := buildStages(t, []float64{1e6}, 5e6)

	samplesPerAntenna := 2000
	numAntennas := 4
	ring.Publish("s6-timing", sample.NewAntennaBlock(samplesPerAntenna, numAntennas))

	h := core.Submit(42, "s6-timing", samplesPerAntenna, numAntennas, stages)

	var ackAt time.Time
	select {
	case msg := <-acks.C():
		ackAt = time.Now()
		ack, err := wire.DecodeAck(msg)
		require.NoError(t, err)
		assert.Equal(t, uint32(42), ack.SequenceNum)
	case <-time.After(time.Second):
		t.Fatal("expected an ack before the sequence completed")
	}

	h.Wait()
	completedAt := time.Now()

	assert.True(t, ackAt.Before(completedAt) || ackAt.Equal(completedAt))
}
