package adlmidi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewMidiChannelStateGMDefaults(t *testing.T) {
	ch := NewMidiChannelState()
	require.EqualValues(t, 100, ch.Volume)
	require.EqualValues(t, 127, ch.Expression)
	require.EqualValues(t, 64, ch.Pan)
	require.False(t, ch.SustainHeld)
	require.EqualValues(t, 2, ch.PitchBendSemitones)
}

func TestApplyControllerSustainPedal(t *testing.T) {
	ch := NewMidiChannelState()
	res := ch.ApplyController(64, 127)
	require.True(t, res.PedalChanged)
	require.Equal(t, PedalSustain, res.Pedal)
	require.True(t, ch.SustainHeld)

	res = ch.ApplyController(64, 0)
	require.True(t, res.PedalChanged)
	require.False(t, ch.SustainHeld)
}

func TestApplyControllerAllNotesOff(t *testing.T) {
	ch := NewMidiChannelState()
	res := ch.ApplyController(123, 0)
	require.True(t, res.AllNotesOff)
}

func TestRPNPitchBendRangeDataEntry(t *testing.T) {
	ch := NewMidiChannelState()
	ch.ApplyController(101, 0) // RPN MSB 0
	ch.ApplyController(100, 0) // RPN LSB 0 -> pitch bend range
	ch.ApplyController(6, 12)  // data entry MSB: 12 semitones
	ch.ApplyController(38, 50) // data entry LSB: 50 cents

	require.EqualValues(t, 12, ch.PitchBendSemitones)
	require.EqualValues(t, 50, ch.PitchBendCents)
}

func TestRPNResetDisablesFurtherDataEntry(t *testing.T) {
	ch := NewMidiChannelState()
	ch.ApplyController(101, 0x7F)
	ch.ApplyController(100, 0x7F)
	ch.ApplyController(6, 99)
	require.False(t, ch.RPNActive)
	require.EqualValues(t, 2, ch.PitchBendSemitones, "reset RPN selection must not apply data entry")
}

func TestNRPNDataEntryDoesNotAffectPitchBendRange(t *testing.T) {
	ch := NewMidiChannelState()
	ch.ApplyController(99, 5)
	ch.ApplyController(98, 10)
	ch.ApplyController(6, 99)
	require.EqualValues(t, 2, ch.PitchBendSemitones, "NRPN data entry must never touch RPN-backed fields")
}

func TestEffectiveToneAppliesBendAndTuning(t *testing.T) {
	ch := NewMidiChannelState()
	ch.CoarseTuneSemis = 1
	ch.FineTuneCents = 50
	ch.PitchBend = 0
	tone := ch.EffectiveTone(60)
	require.InDelta(t, 61.5, tone, 0.01)
}

func TestApplyPitchBendMLMatchesRawValue(t *testing.T) {
	ch := NewMidiChannelState()
	ch.ApplyPitchBendML(0x40, 0x00) // center
	require.EqualValues(t, 0, ch.PitchBend)
}
