// types.go - the immutable instrument data model (spec.md §3).
//
// Operator/Timbre/Instrument mirror the bank entry shape the WOPL format
// serializes (spec.md §6.2); Bank and BankSetup are the in-memory lookup
// structures the PatchTranslator and ChipFrontend consume. All of this is
// immutable after load, the same lifecycle contract the teacher gives its
// embedded bank tables (spec.md §9, "Global mutable state... represent as
// process-wide immutable data").

package adlmidi

// Operator is one FM oscillator's register fields, packed the way OPL
// expects them. Immutable once loaded from a bank entry.
type Operator struct {
	AVEKM uint8 // AM/VIB/EGtype/KSR/Multi (register 0x20 block)
	KSLTL uint8 // KSL (bits 6-7) / Total Level (bits 0-5) (register 0x40 block)
	AttDec uint8 // Attack (bits 4-7) / Decay (bits 0-3) (register 0x60 block)
	SusRel uint8 // Sustain (bits 4-7) / Release (bits 0-3) (register 0x80 block)
	Waveform uint8 // Waveform select (register 0xE0 block)
}

// InstrumentFlags enumerates the voice-shape and percussion semantics a bank
// entry may carry. They are bit flags: an instrument may be 4-op AND
// fixed-pitch (a 4-op drum), for instance.
type InstrumentFlags uint16

const (
	Flag2Op InstrumentFlags = 1 << iota
	Flag4Op
	FlagPseudo4Op
	FlagBlank
	FlagFixedPitch // percussion: plays a fixed key regardless of MIDI note
	FlagRhythmMode // occupies one of the five OPL rhythm-mode slots
)

// RhythmSlot identifies which of the five OPL rhythm-mode percussion voices
// a FlagRhythmMode instrument drives.
type RhythmSlot int

const (
	RhythmNone RhythmSlot = iota
	RhythmBassDrum
	RhythmSnare
	RhythmTomTom
	RhythmCymbal
	RhythmHiHat
)

// Timbre is a complete 2-op or 4-op voice definition: operators plus the
// feedback/connection byte(s) and default total levels. Embedded by value in
// each Instrument; VoiceAllocator compares timbres by address (&inst.Timbre)
// instead of a deep struct comparison (spec.md §9).
type Timbre struct {
	Modulator Operator
	Carrier   Operator
	// Modulator2/Carrier2 are populated for 4-op and pseudo-4-op timbres.
	Modulator2 Operator
	Carrier2   Operator
	FeedConn   uint8 // feedback (bits 1-3) / connection (bit 0)
	FeedConn2  uint8 // second pair, 4-op only

	ModulatorTLDefault uint8
	CarrierTLDefault   uint8
}

// Is4Op reports whether this timbre uses the second operator pair.
func (t *Timbre) Is4Op(flags InstrumentFlags) bool {
	return flags&(Flag4Op|FlagPseudo4Op) != 0
}

// Instrument is one (MSB, LSB, program, drum?) bank slot: a timbre plus the
// MIDI-facing tuning/percussion metadata from spec.md §3.
type Instrument struct {
	Timbre Timbre

	VelocityOffset int8
	NoteOffset1    int16
	NoteOffset2    int16 // second voice, pseudo-4-op only
	PercussionKey  uint8 // fixed MIDI key number for FlagFixedPitch
	Voice2FineTune int8  // cents, second voice detune (pseudo-4-op)

	Flags InstrumentFlags
	Slot  RhythmSlot

	DelayOnMs  uint16
	DelayOffMs uint16

	Name string
}

// IsBlank reports whether this slot carries no playable instrument.
func (i *Instrument) IsBlank() bool {
	return i == nil || i.Flags&FlagBlank != 0
}

// BankKey identifies one 128-entry program table within a logical bank.
type BankKey struct {
	MSB  uint8
	LSB  uint8
	Drum bool
}

// Bank is one (MSB, LSB, drum?) program table: 128 instrument slots, any of
// which may be nil (blank).
type Bank struct {
	Name        string
	Instruments [128]*Instrument
}

// VolumeModel selects the TL-scaling formula a PatchTranslator uses.
type VolumeModel int

const (
	VolumeGeneric VolumeModel = iota
	VolumeNative
	VolumeRSXX
	VolumeDMXOrig
	VolumeDMXFixed
	VolumeApogeeOrig
	VolumeApogeeFixed
	Volume9xGeneric
	Volume9xSB16
	VolumeAIL
	VolumeHMIOld
	VolumeHMINew
	VolumeMSAdLib
	VolumeIMFCreator
	VolumeOConnell
)

// FrequencyModel selects the tone-to-F-number/Block formula.
type FrequencyModel int

const (
	FreqGeneric FrequencyModel = iota
	FreqDMX
	FreqApogee
	FreqWin9x
	FreqHMI
	FreqAIL
	FreqMSAdLib
	FreqOConnell
)

// BankSetup carries the global, load-time flags a bank file declares
// (spec.md §3 BankSetup). A Synth reads only DeepTremolo and DeepVibrato
// from it; ScaleModulators, MT32Defaults and VolumeModel are not applied when
// translating notes, and LoadWOPLBank sets only the two deep flags.
type BankSetup struct {
	DeepTremolo     bool
	DeepVibrato     bool
	ScaleModulators bool
	MT32Defaults    bool
	VolumeModel     VolumeModel
}

// BankSet is the full set of banks a Synth has loaded: a melodic and a
// percussion variant per logical 16-bit bank id (MSB<<8 | LSB), plus the
// load-time setup flags.
type BankSet struct {
	Setup    BankSetup
	Melodic  map[uint16]*Bank
	Drum     map[uint16]*Bank
}

// Lookup resolves (bank id, program, drum?) to an Instrument, falling back
// to bank 0 and then to nil (caller treats nil as "no sound", never an
// error — spec.md §7).
func (b *BankSet) Lookup(bankID uint16, program uint8, drum bool) *Instrument {
	table := b.Melodic
	if drum {
		table = b.Drum
	}
	if bank, ok := table[bankID]; ok {
		if inst := bank.Instruments[program]; inst != nil && !inst.IsBlank() {
			return inst
		}
	}
	if bankID != 0 {
		if bank, ok := table[0]; ok {
			if inst := bank.Instruments[program]; inst != nil && !inst.IsBlank() {
				return inst
			}
		}
	}
	return nil
}
