package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radar-dsp-core/internal/gpu"
	"radar-dsp-core/pkg/sample"
)

func bankOf(t *testing.T, numFreqs, numTaps int) sample.FilterBank {
	t.Helper()
	bank, err := sample.NewFilterBank(numFreqs, numTaps)
	require.NoError(t, err)
	return bank
}

func TestAcquireAllocatesAllBuffers(t *testing.T) {
	dev := gpu.Device{SharedMemPerBlock: 64 * 1024}
	mgr := NewManager(dev)

	first := bankOf(t, 4, 64)
	second := bankOf(t, 4, 32)
	third := bankOf(t, 4, 16)

	buf, err := mgr.Acquire(1000, 20, first, second, third, 100, 20, 4)
	require.NoError(t, err)

	assert.Equal(t, 1000*20, len(buf.RFSamples.Data))
	assert.Equal(t, 4*20*100, len(buf.Stage1Output.Data))
	assert.Equal(t, 4*20*20, len(buf.Stage2Output.Data))
	assert.Equal(t, 4*20*4, len(buf.Stage3Output.Data))
	assert.Equal(t, len(buf.Stage3Output.Data), len(buf.HostOutput.Data))
	assert.False(t, buf.Freed())

	buf.Free()
	assert.True(t, buf.Freed())
}

func TestAcquireRejectsOversizedSharedMemory(t *testing.T) {
	dev := gpu.Device{SharedMemPerBlock: 1024} // tiny device
	mgr := NewManager(dev)

	first := bankOf(t, 16, 256) // 16*256*8 = 32768 bytes, way over budget
	second := bankOf(t, 16, 16)
	third := bankOf(t, 16, 16)

	_, err := mgr.Acquire(1000, 20, first, second, third, 100, 20, 4)
	assert.ErrorIs(t, err, ErrAllocationFailure)
}
