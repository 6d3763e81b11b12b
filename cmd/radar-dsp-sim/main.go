// Command radar-dsp-sim is a non-interactive driver that wires the
// receive-side decimation core together and feeds it a handful of
// synthetic pulse sequences, the way a real digital receiver would feed
// it sequences off the front-end ADC. It exists to exercise the full
// config -> probe -> filter design -> buffer -> pipeline chain end to
// end without a real GPU or a real antenna array.
package main

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"radar-dsp-core/config"
	"radar-dsp-core/internal/buffer"
	"radar-dsp-core/internal/filterdesign"
	"radar-dsp-core/internal/gpu"
	"radar-dsp-core/internal/pipeline"
	"radar-dsp-core/pkg/sample"
	"radar-dsp-core/pkg/wire"
)

func main() {
	var (
		freqList   = pflag.StringP("frequencies", "f", "1.5e6,2.3e6", "Comma-separated receive centre frequencies, in Hz.")
		numPulses  = pflag.IntP("pulses", "n", 3, "Number of synthetic pulse sequences to submit.")
		numSamples = pflag.IntP("samples", "s", 4096, "Raw samples per antenna in each pulse.")
		sampleRate = pflag.Float64P("sample-rate", "r", 5e6, "Raw ADC sample rate, in Hz.")
		verbose    = pflag.BoolP("verbose", "v", false, "Enable debug-level logging.")
		wsAddr     = pflag.StringP("ws-addr", "w", "", "If set, also broadcast ack/timing messages to websocket clients on this address (e.g. :8787), at /ack and /timing.")
	)
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "radar-dsp-sim - synthetic driver for the receive-side decimation core.\n\n")
		fmt.Fprintf(os.Stderr, "Usage: radar-dsp-sim [options]\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, ok, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if !ok {
		slog.Info("no radardsp.toml found, using built-in defaults")
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	freqs, err := parseFrequencies(*freqList)
	if err != nil {
		slog.Error("invalid -frequencies", "error", err)
		os.Exit(1)
	}

	devices, err := gpu.Probe(nil)
	if err != nil {
		slog.Error("device probe failed", "error", err)
		os.Exit(1)
	}
	dev := devices[0]
	slog.Info("probed compute device", "name", dev.Name, "max_threads_per_block", dev.MaxThreadsPerBlock, "shared_mem_per_block", dev.SharedMemPerBlock)

	stages, err := buildStages(freqs, *sampleRate)
	if err != nil {
		slog.Error("filter design failed", "error", err)
		os.Exit(1)
	}

	ring := buffer.NewRingBuffer()
	manager := buffer.NewManager(dev)
	acks := wire.NewChannelSink(64)
	timings := wire.NewChannelSink(64)
	core := pipeline.NewCore(ring, manager, dev, acks, timings, logger)

	var ackHub, timingHub *wire.WebSocketHub
	if *wsAddr != "" {
		ackHub, timingHub = startWebSocketBridge(*wsAddr)
	}

	done := make(chan struct{})
	go drainAcks(acks, done, ackHub)
	go drainTimings(timings, done, timingHub)

	numAntennas := cfg.TotalAntennas()
	handles := make([]*pipeline.Handle, 0, *numPulses)
	for seq := 0; seq < *numPulses; seq++ {
		slotName := fmt.Sprintf("pulse-%d", seq)
		ring.Publish(slotName, syntheticPulse(*numSamples, numAntennas, freqs[0], *sampleRate))
		h := core.Submit(uint32(seq), slotName, *numSamples, numAntennas, stages)
		handles = append(handles, h)
	}

	for i, h := range handles {
		h.Wait()
		if err := h.Err(); err != nil {
			slog.Error("sequence failed", "sequence", i, "error", err)
			continue
		}
		slog.Info("sequence complete", "sequence", i, "state", h.State().String(), "output_samples", len(h.Output().Data))
	}

	close(done)
}

// buildStages runs filter design once for all three decimation stages,
// mirroring the rate plan a real site would fix at start-up: a coarse
// first decimation followed by two successive narrowing stages.
func buildStages(freqs []float64, rawRate float64) (pipeline.StageFilters, error) {
	const dm1, dm2, dm3 = 10, 10, 5
	rate1 := rawRate / dm1
	rate2 := rate1 / dm2
	rate3 := rate2 / dm3

	first, err := filterdesign.BuildStageFilters(1, freqs, rawRate, rate1)
	if err != nil {
		return pipeline.StageFilters{}, err
	}
	second, err := filterdesign.BuildStageFilters(2, freqs, rate1, rate2)
	if err != nil {
		return pipeline.StageFilters{}, err
	}
	third, err := filterdesign.BuildStageFilters(3, freqs, rate2, rate3)
	if err != nil {
		return pipeline.StageFilters{}, err
	}

	return pipeline.StageFilters{
		First: first, Second: second, Third: third,
		DMRate1: dm1, DMRate2: dm2, DMRate3: dm3,
	}, nil
}

// syntheticPulse builds an antenna-major block of a single complex tone
// at toneHz across every antenna, standing in for a front-end capture
// until a real ADC source is wired in.
func syntheticPulse(samplesPerAntenna, numAntennas int, toneHz, sampleRate float64) sample.AntennaBlock {
	block := sample.NewAntennaBlock(samplesPerAntenna, numAntennas)
	w := 2 * math.Pi * toneHz / sampleRate
	for a := 0; a < numAntennas; a++ {
		row := block.Antenna(a)
		for n := range row {
			angle := w * float64(n)
			row[n] = sample.Sample{I: float32(math.Cos(angle)), Q: float32(math.Sin(angle))}
		}
	}
	return block
}

// parseFrequencies splits a comma-separated frequency list into Hz values.
func parseFrequencies(raw string) ([]float64, error) {
	parts := strings.Split(raw, ",")
	freqs := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a valid frequency: %w", p, err)
		}
		freqs = append(freqs, v)
	}
	if len(freqs) == 0 {
		return nil, fmt.Errorf("at least one frequency is required")
	}
	return freqs, nil
}

// startWebSocketBridge mounts one hub at /ack and one at /timing on addr
// and starts their event loops, so -ws-addr clients see the same wire
// messages the console logger decodes.
func startWebSocketBridge(addr string) (ackHub, timingHub *wire.WebSocketHub) {
	ackHub = wire.NewWebSocketHub()
	timingHub = wire.NewWebSocketHub()
	go ackHub.Run()
	go timingHub.Run()

	mux := http.NewServeMux()
	mux.Handle("/ack", ackHub)
	mux.Handle("/timing", timingHub)
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("websocket bridge stopped", "error", err)
		}
	}()
	slog.Info("websocket bridge listening", "addr", addr, "ack_path", "/ack", "timing_path", "/timing")
	return ackHub, timingHub
}

// drainAcks logs every ack the core emits and, when hub is non-nil,
// rebroadcasts the same encoded message to any attached websocket
// clients.
func drainAcks(sink *wire.ChannelSink, done <-chan struct{}, hub *wire.WebSocketHub) {
	for {
		select {
		case data := <-sink.C():
			ack, err := wire.DecodeAck(data)
			if err != nil {
				slog.Warn("malformed ack message", "error", err)
				continue
			}
			slog.Debug("ack received", "sequence", ack.SequenceNum)
			if hub != nil {
				_ = hub.Send(data)
			}
		case <-done:
			return
		case <-time.After(5 * time.Second):
			return
		}
	}
}

// drainTimings logs every timing report the core emits and, when hub is
// non-nil, rebroadcasts the same encoded message to any attached
// websocket clients.
func drainTimings(sink *wire.ChannelSink, done <-chan struct{}, hub *wire.WebSocketHub) {
	for {
		select {
		case data := <-sink.C():
			timing, err := wire.DecodeTiming(data)
			if err != nil {
				slog.Warn("malformed timing message", "error", err)
				continue
			}
			slog.Info("timing received", "sequence", timing.SequenceNum, "kernel_ms", timing.KernelTimeMs, "status", timing.Status.String())
			if hub != nil {
				_ = hub.Send(data)
			}
		case <-done:
			return
		case <-time.After(5 * time.Second):
			return
		}
	}
}
