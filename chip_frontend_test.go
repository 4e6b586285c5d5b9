package adlmidi

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNewChipFrontendRejectsBadConfiguration(t *testing.T) {
	_, err := NewChipFrontend(0, ChipOPL3, 0, 49716, "native")
	require.Error(t, err)

	_, err = NewChipFrontend(1, ChipOPL3, 7, 49716, "native")
	require.Error(t, err, "num_four_ops must be <= chips*6")

	_, err = NewChipFrontend(1, ChipOPL2, 1, 49716, "native")
	require.Error(t, err, "OPL2 supports no 4-op voices")
}

func TestChipFrontendVoiceBudget(t *testing.T) {
	f, err := NewChipFrontend(1, ChipOPL3, 3, 49716, "native")
	require.NoError(t, err)
	require.Equal(t, 18-3, f.NumVoices(), "3 four-op pairs consume 6 physical channels, leaving 12")
}

func TestChipFrontendSetPatchAndNoteOnWritesRegisters(t *testing.T) {
	f, err := NewChipFrontend(1, ChipOPL3, 0, 49716, "native")
	require.NoError(t, err)

	timbre := &Timbre{
		Modulator: Operator{AVEKM: 0x21, KSLTL: 0x10, AttDec: 0xF0, SusRel: 0x0F, Waveform: 0},
		Carrier:   Operator{AVEKM: 0x01, KSLTL: 0x08, AttDec: 0xF0, SusRel: 0x0F, Waveform: 0},
		FeedConn:  0x01,
	}
	f.SetPatch(0, timbre, Flag2Op)
	f.SetFrequency(0, 0x204, 4)
	f.NoteOn(0)

	require.True(t, f.IsKeyOn(0))
	require.Equal(t, uint8(0x21), f.cache[0].avekm[0])
	require.Equal(t, uint8(0x01), f.cache[0].feedConn)

	f.NoteOff(0)
	require.False(t, f.IsKeyOn(0))
}

func TestChipFrontendRhythmModeTogglesRegister(t *testing.T) {
	f, err := NewChipFrontend(1, ChipOPL3, 0, 49716, "native")
	require.NoError(t, err)
	f.SetRhythmMode(true)
	require.True(t, f.rhythmEnabled)
	f.SetRhythmMode(false)
	require.False(t, f.rhythmEnabled)
}

func TestChipFrontendSilenceAllClearsEveryVoice(t *testing.T) {
	f, err := NewChipFrontend(2, ChipOPL3, 2, 49716, "native")
	require.NoError(t, err)
	for i := 0; i < f.NumVoices(); i++ {
		f.NoteOn(i)
	}
	f.SilenceAll()
	for i := 0; i < f.NumVoices(); i++ {
		require.False(t, f.IsKeyOn(i), "voice %d should be silenced", i)
	}
}

// TestChipFrontendNeverPanicsUnderRandomConfiguration is a property test
// (pgregory.net/rapid, grounded on doismellburning/samoyed's rapid usage)
// asserting spec.md §3's voice-budget invariant holds for any legal
// (numChips, numFourOp) pair: sum of regular + 2*(4-op pairs) never exceeds
// the physical 18-per-chip (OPL3) budget.
func TestChipFrontendNeverPanicsUnderRandomConfiguration(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		numChips := rapid.IntRange(1, 4).Draw(rt, "numChips")
		numFourOp := rapid.IntRange(0, numChips*6).Draw(rt, "numFourOp")

		f, err := NewChipFrontend(numChips, ChipOPL3, numFourOp, 49716, "native")
		require.NoError(rt, err)

		expectedVoices := numChips*18 - numFourOp
		require.Equal(rt, expectedVoices, f.NumVoices())
	})
}
