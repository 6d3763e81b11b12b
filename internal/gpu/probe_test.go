package gpu

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeDefaultBackend(t *testing.T) {
	devices, err := Probe(nil)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, 1024, devices[0].MaxThreadsPerBlock)
	assert.Equal(t, 32, devices[0].WarpSize)
}

type emptyBackend struct{}

func (emptyBackend) Devices() ([]Device, error) { return nil, nil }

func TestProbeNoDevices(t *testing.T) {
	_, err := Probe(emptyBackend{})
	assert.Error(t, err)
}

func TestSelectKernel(t *testing.T) {
	dev := Device{MaxThreadsPerBlock: 1024}

	variant, err := SelectKernel(16, 4, dev) // 64 threads
	require.NoError(t, err)
	assert.Equal(t, KernelSmall, variant)

	variant, err = SelectKernel(512, 4, dev) // 2048 threads -> large
	require.NoError(t, err)
	assert.Equal(t, KernelLarge, variant)

	_, err = SelectKernel(1024, 4, dev) // 4096 threads -> fatal
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrKernelConfigInvalid))
}

func TestCheckSharedMemory(t *testing.T) {
	dev := Device{SharedMemPerBlock: 1024}

	assert.NoError(t, CheckSharedMemory(4, 32, dev)) // 4*32*8 = 1024
	err := CheckSharedMemory(4, 64, dev)              // 4*64*8 = 2048
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSharedMemExceeded))
}
