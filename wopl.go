// wopl.go - binary WOPL bank file loader (spec.md §6.2).
//
// Grounded on ahx_parser.go's style: a magic-byte check followed by
// sequential fixed-offset field reads via small helper functions, building
// up strongly-typed structs from a flat []byte rather than a generic binary
// decoder. music_common.go's parseNullTerminatedString/readUint32Byte family
// is the same idea; we write our own because WOPL's field widths (32-byte
// fixed-length names, big-endian multi-byte integers) don't match either.

package adlmidi

import "encoding/binary"

var woplMagic = [11]byte{'W', 'O', 'P', 'L', '3', '-', 'B', 'A', 'N', 'K', 0}

const (
	woplInstrumentNameLen = 32
	woplFlagBlank         = 1 << 0
	woplFlag2Op           = 0
	woplFlag4Op           = 1 << 1
	woplFlagPseudo4Op     = 1 << 2
	woplFlagIsBlank       = 1 << 3
)

type woplReader struct {
	data []byte
	pos  int
}

func (r *woplReader) remaining() int { return len(r.data) - r.pos }

func (r *woplReader) u8() (uint8, bool) {
	if r.remaining() < 1 {
		return 0, false
	}
	v := r.data[r.pos]
	r.pos++
	return v, true
}

func (r *woplReader) i8() (int8, bool) {
	v, ok := r.u8()
	return int8(v), ok
}

func (r *woplReader) u16() (uint16, bool) {
	if r.remaining() < 2 {
		return 0, false
	}
	v := binary.BigEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, true
}

func (r *woplReader) i16() (int16, bool) {
	v, ok := r.u16()
	return int16(v), ok
}

func (r *woplReader) bytes(n int) ([]byte, bool) {
	if r.remaining() < n {
		return nil, false
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, true
}

func (r *woplReader) fixedString(n int) (string, bool) {
	b, ok := r.bytes(n)
	if !ok {
		return "", false
	}
	end := 0
	for end < len(b) && b[end] != 0 {
		end++
	}
	return string(b[:end]), true
}

func readOperator(r *woplReader) (Operator, bool) {
	var op Operator
	avekm, ok1 := r.u8()
	kslTl, ok2 := r.u8()
	attDec, ok3 := r.u8()
	susRel, ok4 := r.u8()
	wave, ok5 := r.u8()
	if !(ok1 && ok2 && ok3 && ok4 && ok5) {
		return op, false
	}
	op.AVEKM, op.KSLTL, op.AttDec, op.SusRel, op.Waveform = avekm, kslTl, attDec, susRel, wave
	return op, true
}

// readInstrument parses one WOPL instrument record in the order spec.md §6.2
// lays out: name, note offsets, velocity offset, percussion key, a 1-byte
// flags field, a 1-byte second-voice fine-tune, 2 or 4 operators depending
// on the 4-op flag bit, feedback/connection byte(s), then (bank version 3+
// only) the delay-on/delay-off pair.
func readInstrument(r *woplReader, version uint16) (*Instrument, error) {
	name, ok := r.fixedString(woplInstrumentNameLen)
	if !ok {
		return nil, newBankError("truncated instrument name")
	}
	keyOn1, ok1 := r.i16()
	keyOn2, ok2 := r.i16()
	velOffset, ok3 := r.i8()
	percKey, ok4 := r.u8()
	flagsRaw, ok5 := r.u8()
	fineTune, ok6 := r.i8()
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6) {
		return nil, newBankError("truncated instrument header for %q", name)
	}

	inst := &Instrument{
		Name:           name,
		NoteOffset1:    keyOn1,
		NoteOffset2:    keyOn2,
		VelocityOffset: velOffset,
		PercussionKey:  percKey,
		Voice2FineTune: fineTune,
	}
	switch {
	case flagsRaw&woplFlagIsBlank != 0:
		inst.Flags |= FlagBlank
	case flagsRaw&woplFlag4Op != 0:
		inst.Flags |= Flag4Op
	case flagsRaw&woplFlagPseudo4Op != 0:
		inst.Flags |= FlagPseudo4Op
	default:
		inst.Flags |= Flag2Op
	}
	if percKey != 0 {
		inst.Flags |= FlagFixedPitch
	}

	mod, ok := readOperator(r)
	if !ok {
		return nil, newBankError("truncated modulator operator for %q", name)
	}
	car, ok := readOperator(r)
	if !ok {
		return nil, newBankError("truncated carrier operator for %q", name)
	}
	inst.Timbre.Modulator = mod
	inst.Timbre.Carrier = car
	inst.Timbre.ModulatorTLDefault = mod.KSLTL & 0x3F
	inst.Timbre.CarrierTLDefault = car.KSLTL & 0x3F

	var mod2, car2 Operator
	if inst.Flags&(Flag4Op|FlagPseudo4Op) != 0 {
		mod2, ok = readOperator(r)
		if !ok {
			return nil, newBankError("truncated second modulator for %q", name)
		}
		car2, ok = readOperator(r)
		if !ok {
			return nil, newBankError("truncated second carrier for %q", name)
		}
	}

	fbConn1, ok7 := r.u8()
	if !ok7 {
		return nil, newBankError("truncated feedback/connection byte for %q", name)
	}
	inst.Timbre.FeedConn = fbConn1
	if inst.Flags&(Flag4Op|FlagPseudo4Op) != 0 {
		fbConn2, ok8 := r.u8()
		if !ok8 {
			return nil, newBankError("truncated second feedback/connection byte for %q", name)
		}
		inst.Timbre.Modulator2 = mod2
		inst.Timbre.Carrier2 = car2
		inst.Timbre.FeedConn2 = fbConn2
	}

	if version >= 3 {
		delayOn, okA := r.u16()
		delayOff, okB := r.u16()
		if !(okA && okB) {
			return nil, newBankError("truncated delay pair for %q", name)
		}
		inst.DelayOnMs = delayOn
		inst.DelayOffMs = delayOff
	}
	return inst, nil
}

// LoadWOPLBank parses a binary WOPL bank file (spec.md §6.2) into a
// BankSet. Any structural error (bad magic, truncated records, bank-count
// mismatch) returns a BankLoadError; it never panics on malformed input.
func LoadWOPLBank(data []byte) (set *BankSet, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			set = nil
			err = newBankError("malformed bank data")
		}
	}()

	r := &woplReader{data: data}
	magic, ok := r.bytes(len(woplMagic))
	if !ok || string(magic) != string(woplMagic[:]) {
		return nil, newBankError("bad WOPL magic")
	}
	version, ok := r.u16()
	if !ok {
		return nil, newBankError("truncated version")
	}

	numMelodic, ok1 := r.u16()
	numPercussion, ok2 := r.u16()
	if !(ok1 && ok2) {
		return nil, newBankError("truncated bank counts")
	}

	setupByte, ok := r.u8()
	if !ok {
		return nil, newBankError("truncated global flags")
	}

	set = &BankSet{
		Melodic: make(map[uint16]*Bank, numMelodic),
		Drum:    make(map[uint16]*Bank, numPercussion),
		Setup: BankSetup{
			DeepTremolo: setupByte&0x01 != 0,
			DeepVibrato: setupByte&0x02 != 0,
		},
	}

	melodicNames := make([]string, numMelodic)
	for i := range melodicNames {
		name, ok := r.fixedString(woplInstrumentNameLen)
		if !ok {
			return nil, newBankError("truncated melodic bank name %d", i)
		}
		melodicNames[i] = name
	}
	drumNames := make([]string, numPercussion)
	for i := range drumNames {
		name, ok := r.fixedString(woplInstrumentNameLen)
		if !ok {
			return nil, newBankError("truncated percussion bank name %d", i)
		}
		drumNames[i] = name
	}

	melodicIDs := make([]uint16, numMelodic)
	for i := range melodicIDs {
		msb, ok1 := r.u8()
		lsb, ok2 := r.u8()
		if !(ok1 && ok2) {
			return nil, newBankError("truncated melodic bank id %d", i)
		}
		melodicIDs[i] = uint16(msb)<<8 | uint16(lsb)
	}
	drumIDs := make([]uint16, numPercussion)
	for i := range drumIDs {
		msb, ok1 := r.u8()
		lsb, ok2 := r.u8()
		if !(ok1 && ok2) {
			return nil, newBankError("truncated percussion bank id %d", i)
		}
		drumIDs[i] = uint16(msb)<<8 | uint16(lsb)
	}

	for i, id := range melodicIDs {
		bank := &Bank{Name: melodicNames[i]}
		for p := 0; p < 128; p++ {
			inst, err := readInstrument(r, version)
			if err != nil {
				return nil, err
			}
			if !inst.IsBlank() {
				bank.Instruments[p] = inst
			}
		}
		set.Melodic[id] = bank
	}
	for i, id := range drumIDs {
		bank := &Bank{Name: drumNames[i]}
		for p := 0; p < 128; p++ {
			inst, err := readInstrument(r, version)
			if err != nil {
				return nil, err
			}
			if !inst.IsBlank() {
				bank.Instruments[p] = inst
			}
		}
		set.Drum[id] = bank
	}

	return set, nil
}

func countInstruments(set *BankSet) int {
	n := 0
	for _, b := range set.Melodic {
		for _, inst := range b.Instruments {
			if inst != nil {
				n++
			}
		}
	}
	for _, b := range set.Drum {
		for _, inst := range b.Instruments {
			if inst != nil {
				n++
			}
		}
	}
	return n
}
