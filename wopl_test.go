package adlmidi

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func padName(name string, n int) []byte {
	b := make([]byte, n)
	copy(b, name)
	return b
}

func writeOperatorBytes(buf *bytes.Buffer, op Operator) {
	buf.WriteByte(op.AVEKM)
	buf.WriteByte(op.KSLTL)
	buf.WriteByte(op.AttDec)
	buf.WriteByte(op.SusRel)
	buf.WriteByte(op.Waveform)
}

func buildMinimalWOPLBank(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(woplMagic[:])
	binary.Write(&buf, binary.BigEndian, uint16(1)) // version
	binary.Write(&buf, binary.BigEndian, uint16(1)) // numMelodic
	binary.Write(&buf, binary.BigEndian, uint16(0)) // numPercussion
	buf.WriteByte(0)                                // setup flags

	buf.Write(padName("Test Melodic", woplInstrumentNameLen))

	buf.WriteByte(0) // bank id msb
	buf.WriteByte(0) // bank id lsb

	for p := 0; p < 128; p++ {
		name := "blank"
		flags := uint8(woplFlagIsBlank)
		if p == 0 {
			name = "Test Piano"
			flags = 0
		}
		buf.Write(padName(name, woplInstrumentNameLen))
		binary.Write(&buf, binary.BigEndian, int16(0)) // keyOn1
		binary.Write(&buf, binary.BigEndian, int16(0)) // keyOn2
		buf.WriteByte(0)                               // velOffset
		buf.WriteByte(0)                               // percKey
		buf.WriteByte(flags)                           // flags (1 byte)
		buf.WriteByte(0)                                // second-voice fine-tune

		writeOperatorBytes(&buf, Operator{AVEKM: 0x21, KSLTL: 0x10, AttDec: 0xF0, SusRel: 0x0F})
		writeOperatorBytes(&buf, Operator{AVEKM: 0x01, KSLTL: 0x08, AttDec: 0xF0, SusRel: 0x0F})

		buf.WriteByte(0x01) // fbConn1
		// version 1 bank: no delay-on/delay-off pair follows.
	}
	return buf.Bytes()
}

func TestLoadWOPLBankRoundTrip(t *testing.T) {
	data := buildMinimalWOPLBank(t)
	set, err := LoadWOPLBank(data)
	require.NoError(t, err)
	require.Contains(t, set.Melodic, uint16(0))

	bank := set.Melodic[0]
	require.Equal(t, "Test Melodic", bank.Name)
	require.NotNil(t, bank.Instruments[0])
	require.Equal(t, "Test Piano", bank.Instruments[0].Name)
	require.Nil(t, bank.Instruments[1], "blank-flagged slots must not populate an instrument")
}

func TestLoadWOPLBankRejectsBadMagic(t *testing.T) {
	_, err := LoadWOPLBank([]byte("not a bank file"))
	require.Error(t, err)
	var synthErr *SynthError
	require.ErrorAs(t, err, &synthErr)
	require.Equal(t, ErrBankLoad, synthErr.Kind)
}

func TestLoadWOPLBankRejectsTruncatedData(t *testing.T) {
	data := buildMinimalWOPLBank(t)
	_, err := LoadWOPLBank(data[:len(data)-10])
	require.Error(t, err)
}
