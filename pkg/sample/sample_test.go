package sample

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleArithmetic(t *testing.T) {
	a := Sample{I: 1, Q: 2}
	b := Sample{I: 3, Q: -1}

	assert.Equal(t, Sample{I: 4, Q: 1}, a.Add(b))
	assert.Equal(t, Sample{I: 1*3 - 2*-1, Q: 1*-1 + 2*3}, a.Mul(b))
	assert.Equal(t, Sample{I: 2, Q: 4}, a.Scale(2))
	assert.InDelta(t, 5.0, a.MagnitudeSquared(), 1e-9)
}

func TestAntennaBlockLayoutAndEdgePolicy(t *testing.T) {
	blk := NewAntennaBlock(4, 2)
	for a := range 2 {
		for t := range 4 {
			blk.Data[a*4+t] = Sample{I: float32(a*10 + t)}
		}
	}

	assert.Equal(t, Sample{I: 12}, blk.At(1, 2))
	assert.Equal(t, Sample{}, blk.At(1, 4), "out-of-range read must yield the zero sample")
	assert.Equal(t, Sample{}, blk.At(0, -1))
	assert.Len(t, blk.Antenna(1), 4)
}

func TestFilterBankRejectsNonPowerOfTwo(t *testing.T) {
	_, err := NewFilterBank(2, 6)
	require.Error(t, err)

	fb, err := NewFilterBank(2, 8)
	require.NoError(t, err)
	assert.Len(t, fb.Row(1), 8)

	single := fb.SingleRow(1)
	assert.Equal(t, 1, single.NumFreqs)
	assert.Equal(t, fb.Row(1), single.Row(0))
}

func TestDecimatedBlockLayout(t *testing.T) {
	blk := NewDecimatedBlock(2, 3, 5)
	v := Sample{I: 7, Q: -3}
	blk.Set(1, 2, 4, v)
	assert.Equal(t, v, blk.At(1, 2, 4))
	assert.Len(t, blk.AntennaChannel(1, 2), 5)
	assert.Equal(t, v, blk.AntennaChannel(1, 2)[4])
}
