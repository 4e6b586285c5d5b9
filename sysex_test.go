package adlmidi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSysExGM1Reset(t *testing.T) {
	res := ParseSysEx([]byte{0xF0, 0x7E, 0x00, 0x09, 0x01, 0xF7})
	require.Equal(t, SysExGM1Reset, res.Kind)
}

func TestParseSysExGM2Reset(t *testing.T) {
	res := ParseSysEx([]byte{0xF0, 0x7E, 0x7F, 0x09, 0x03, 0xF7})
	require.Equal(t, SysExGM2Reset, res.Kind)
}

func TestParseSysExGSReset(t *testing.T) {
	res := ParseSysEx([]byte{0xF0, 0x41, 0x10, 0x42, 0x12, 0x40, 0x00, 0x7F, 0x00, 0x41, 0xF7})
	require.Equal(t, SysExGSReset, res.Kind)
}

func TestParseSysExXGReset(t *testing.T) {
	res := ParseSysEx([]byte{0xF0, 0x43, 0x10, 0x4C, 0x00, 0x00, 0x7E, 0x00, 0xF7})
	require.Equal(t, SysExXGReset, res.Kind)
}

func TestParseSysExGSDrumPart(t *testing.T) {
	res := ParseSysEx([]byte{0xF0, 0x41, 0x10, 0x42, 0x12, 0x40, 0x11, 0x15, 0x01, 0x00, 0xF7})
	require.Equal(t, SysExGSDrumPart, res.Kind)
	require.Equal(t, 1, res.Channel)
	require.True(t, res.DrumEnabled)
}

func TestParseSysExMasterVolume(t *testing.T) {
	res := ParseSysEx([]byte{0xF0, 0x7F, 0x7F, 0x04, 0x01, 0x00, 0x64, 0xF7})
	require.Equal(t, SysExMasterVolume, res.Kind)
	require.EqualValues(t, 0x64, res.MasterVolume)
}

func TestParseSysExUnknownDoesNotMatchAnything(t *testing.T) {
	res := ParseSysEx([]byte{0xF0, 0x00, 0x01, 0x02, 0xF7})
	require.Equal(t, SysExUnknown, res.Kind)
}

func TestXGBrightnessToOPLFullRangeLinear(t *testing.T) {
	require.EqualValues(t, 63, xgBrightnessToOPL(0, true))
	require.EqualValues(t, 0, xgBrightnessToOPL(127, true))
}

func TestXGBrightnessToOPLNonlinearStaysBrightAboveCenter(t *testing.T) {
	require.EqualValues(t, 0, xgBrightnessToOPL(64, false))
	require.EqualValues(t, 0, xgBrightnessToOPL(127, false))
	require.Greater(t, xgBrightnessToOPL(0, false), uint8(0))
}
