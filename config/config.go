// Package config loads the immutable tuning parameters consumed by the
// filter designer, buffer manager and pipeline orchestrator. All tuning
// comes from a single configuration object loaded once at start-up; it
// is read-only for the lifetime of the process.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is the enumerated configuration surface described in the
// external interfaces section: antenna geometry, rate limits, filter
// stage bounds, the ring buffer identity, and the ack/timing channel
// endpoints.
type Config struct {
	MainAntennaCount int `mapstructure:"main_antenna_count"`
	IntfAntennaCount int `mapstructure:"intf_antenna_count"`

	MaxRxSampleRate     float64 `mapstructure:"max_rx_sample_rate"`
	MaxOutputSampleRate float64 `mapstructure:"max_output_sample_rate"`

	MaxFilteringStages    int `mapstructure:"max_filtering_stages"`
	MaxFilterTapsPerStage int `mapstructure:"max_filter_taps_per_stage"`

	RingbufferName      string `mapstructure:"ringbuffer_name"`
	RingbufferSizeBytes int64  `mapstructure:"ringbuffer_size_bytes"`

	AckChannelURI    string `mapstructure:"ack_channel_uri"`
	TimingChannelURI string `mapstructure:"timing_channel_uri"`
}

// defaultConfig mirrors the teacher pack's admitted stance on defaults:
// these are sane placeholder values, not a guarantee of correctness for
// any particular radar site. The only guarantee is that they let the
// pipeline run so failures manifest from real configuration, not from a
// missing file.
func defaultConfig() Config {
	return Config{
		MainAntennaCount:      16,
		IntfAntennaCount:      4,
		MaxRxSampleRate:       5e6,
		MaxOutputSampleRate:   10e3,
		MaxFilteringStages:    3,
		MaxFilterTapsPerStage: 2048,
		RingbufferName:        "/radar_rx_samples",
		RingbufferSizeBytes:   256 << 20,
		AckChannelURI:         "chan://ack",
		TimingChannelURI:      "chan://timing",
	}
}

// Load reads configuration from a TOML file named "radardsp" (without
// extension), looking in /opt first and then the working directory —
// the same search order the teacher pack's redpitaya radar config loader
// uses for "ogdar.toml". If no file is found, Load returns the hard-coded
// defaults and ok=false so the caller can log that fact.
func Load() (cfg Config, ok bool, err error) {
	v := viper.New()
	v.SetConfigName("radardsp")
	v.AddConfigPath("/opt")
	v.AddConfigPath(".")

	cfg = defaultConfig()
	if readErr := v.ReadInConfig(); readErr != nil {
		return cfg, false, nil
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return defaultConfig(), false, fmt.Errorf("config: parsing radardsp.toml: %w", err)
	}

	return cfg, true, nil
}

// Validate checks the invariants the rest of the pipeline depends on
// without inspecting a specific sequence request.
func (c Config) Validate() error {
	if c.MainAntennaCount <= 0 {
		return fmt.Errorf("config: main_antenna_count must be positive, got %d", c.MainAntennaCount)
	}
	if c.IntfAntennaCount < 0 {
		return fmt.Errorf("config: intf_antenna_count must be non-negative, got %d", c.IntfAntennaCount)
	}
	if c.MaxFilteringStages != 3 {
		return fmt.Errorf("config: max_filtering_stages is fixed at 3 in the present design, got %d", c.MaxFilteringStages)
	}
	if c.MaxFilterTapsPerStage <= 0 || c.MaxFilterTapsPerStage&(c.MaxFilterTapsPerStage-1) != 0 {
		return fmt.Errorf("config: max_filter_taps_per_stage must be a power of two, got %d", c.MaxFilterTapsPerStage)
	}
	if c.MaxRxSampleRate <= 0 || c.MaxOutputSampleRate <= 0 {
		return fmt.Errorf("config: sample rates must be positive")
	}
	return nil
}

// TotalAntennas returns the combined main + interferometer antenna count.
func (c Config) TotalAntennas() int {
	return c.MainAntennaCount + c.IntfAntennaCount
}
