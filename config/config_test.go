package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := defaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 20, cfg.TotalAntennas())
}

func TestLoadFallsBackToDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, ok, err := Load()
	require.NoError(t, err)
	assert.False(t, ok, "no radardsp.toml present, Load should report ok=false")
	assert.Equal(t, defaultConfig(), cfg)
}

func TestValidateRejectsBadStageCount(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxFilteringStages = 2
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPowerOfTwoTapBudget(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxFilterTapsPerStage = 100
	assert.Error(t, cfg.Validate())
}
