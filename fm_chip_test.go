package adlmidi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNativeFMChipRegisterRoundTrip(t *testing.T) {
	chip := NewNativeFMChip(49716)
	chip.WriteReg(0x105, 0x01) // enable OPL3
	chip.WriteReg(0x20, 0x21)  // channel 0 modulator AVEKM
	chip.WriteReg(0x40, 0x10)
	chip.WriteReg(0xA0, 0x44) // fnum lo
	chip.WriteReg(0xB0, 0x2B) // block/fnum hi + key-on

	require.Equal(t, uint8(0x21), chip.ops[0][0].avekm)
	require.True(t, chip.chans[0][0].keyOn)
	require.NotZero(t, chip.ops[0][0].phaseIncr)
}

func TestNativeFMChipGenerateProducesAudio(t *testing.T) {
	chip := NewNativeFMChip(44100)
	chip.WriteReg(0x105, 0x01)
	chip.WriteReg(0x20, 0x01)
	chip.WriteReg(0x23, 0x01)
	chip.WriteReg(0x40, 0x00)
	chip.WriteReg(0x43, 0x08)
	chip.WriteReg(0xC0, 0x31) // additive connection, left and right outputs enabled
	chip.WriteReg(0xA0, 0xAC)
	chip.WriteReg(0xB0, 0x2A)

	out := make([]int16, 512*2)
	chip.Generate(out, 512)

	var nonZero bool
	for _, v := range out {
		if v != 0 {
			nonZero = true
			break
		}
	}
	require.True(t, nonZero, "expected non-silent output from a keyed-on voice")
}

func TestNativeFMChipResetSilences(t *testing.T) {
	chip := NewNativeFMChip(49716)
	chip.WriteReg(0xB0, 0x20)
	chip.Reset()
	require.False(t, chip.chans[0][0].keyOn)
	require.Equal(t, envOff, chip.ops[0][0].stage)
}

func TestChannelOperatorOffsetsMatchRealOPLLayout(t *testing.T) {
	cases := []struct {
		ch       int
		mod, car int
	}{
		{0, 0, 3}, {1, 1, 4}, {2, 2, 5},
		{3, 8, 11}, {4, 9, 12}, {5, 10, 13},
		{6, 16, 19}, {7, 17, 20}, {8, 18, 21},
	}
	for _, c := range cases {
		mod, car := channelOperatorOffsets(c.ch)
		require.Equal(t, c.mod, mod, "channel %d modulator offset", c.ch)
		require.Equal(t, c.car, car, "channel %d carrier offset", c.ch)
	}
}

func TestSlotOffsetValidMatchesRealGaps(t *testing.T) {
	valid := map[int]bool{}
	for _, off := range []int{0, 1, 2, 3, 4, 5, 8, 9, 10, 11, 12, 13, 16, 17, 18, 19, 20, 21} {
		valid[off] = true
	}
	for off := 0; off < slotsPerBank; off++ {
		require.Equal(t, valid[off], slotOffsetValid(off), "offset %d", off)
	}
}
