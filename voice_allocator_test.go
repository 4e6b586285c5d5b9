package adlmidi

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func testInstrument() *Instrument {
	return &Instrument{
		Timbre: Timbre{
			Modulator: Operator{AVEKM: 0x01},
			Carrier:   Operator{AVEKM: 0x01},
			FeedConn:  0x01,
		},
		Flags: Flag2Op,
	}
}

func TestVoiceAllocatorAllocatesAndReleases(t *testing.T) {
	f, err := NewChipFrontend(1, ChipOPL3, 0, 49716, "native")
	require.NoError(t, err)
	a := NewVoiceAllocator(f, AllocOffDelay)

	inst := testInstrument()
	res := a.Allocate(0, 60, inst, VolumeInputs{Velocity: 100, ChannelVolume: 100, ChannelExpr: 127, MasterVolume: 127})
	require.True(t, res.Ok)
	require.GreaterOrEqual(t, res.Primary, 0)

	voices := a.VoicesForNote(0, 60)
	require.NotEmpty(t, voices)

	a.Release(res.Primary, false)
	require.Empty(t, a.VoicesForNote(0, 60))
}

func TestVoiceAllocatorStealsLowestVolumeVoiceWhenAllOn(t *testing.T) {
	f, err := NewChipFrontend(1, ChipOPL3, 0, 49716, "native")
	require.NoError(t, err)
	a := NewVoiceAllocator(f, AllocOffDelay)
	inst := testInstrument()
	vol := VolumeInputs{Velocity: 100, ChannelVolume: 100, ChannelExpr: 127, MasterVolume: 127}

	for i := 0; i < f.NumVoices(); i++ {
		res := a.Allocate(0, i, inst, vol)
		require.True(t, res.Ok)
	}
	// every voice is now On; OffDelay's last tier steals the quietest one.
	res := a.Allocate(0, 200, inst, VolumeInputs{Velocity: 1, ChannelVolume: 1, ChannelExpr: 1, MasterVolume: 1})
	require.True(t, res.Ok, "OffDelay must steal an On voice rather than reject when the category is full")
}

func TestVoiceAllocatorSustainHoldsVoiceUntilPedalLift(t *testing.T) {
	f, err := NewChipFrontend(1, ChipOPL3, 0, 49716, "native")
	require.NoError(t, err)
	a := NewVoiceAllocator(f, AllocOffDelay)
	inst := testInstrument()
	vol := VolumeInputs{Velocity: 100, ChannelVolume: 100, ChannelExpr: 127, MasterVolume: 127}

	res := a.Allocate(0, 60, inst, vol)
	require.True(t, res.Ok)
	a.Release(res.Primary, true)
	require.True(t, f.IsKeyOn(res.Primary), "sustained voice must stay keyed on at the chip level")

	a.ReleaseSustained(0)
	require.False(t, f.IsKeyOn(res.Primary))
}

func TestVoiceAllocatorNeverDoubleBindsAVoice(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f, err := NewChipFrontend(1, ChipOPL3, 0, 49716, "native")
		require.NoError(rt, err)
		a := NewVoiceAllocator(f, AllocOffDelay)
		inst := testInstrument()
		vol := VolumeInputs{Velocity: 100, ChannelVolume: 100, ChannelExpr: 127, MasterVolume: 127}

		numNotes := rapid.IntRange(1, f.NumVoices()).Draw(rt, "numNotes")
		seen := map[int]bool{}
		for i := 0; i < numNotes; i++ {
			res := a.Allocate(0, i, inst, vol)
			require.True(rt, res.Ok)
			require.False(rt, seen[res.Primary], "voice %d bound twice", res.Primary)
			seen[res.Primary] = true
		}
	})
}
