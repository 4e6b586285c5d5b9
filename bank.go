// bank.go - embedded default bank and bank-set helpers (spec.md §6.1 set_bank).
//
// libADLMIDI ships dozens of embedded WOPL banks extracted from real
// AdLib-era drivers; reproducing that binary data is out of scope here; the
// default below is a single procedurally generated GM-layout bank (128
// melodic programs, one percussion bank) so Synth works before any
// open_bank_file/open_bank_data call, in the same spirit as the teacher's
// component_reset.go always leaving a component in a playable default
// state after Reset().

package adlmidi

// EmbeddedBankID selects one of the synth's built-in banks by integer id,
// mirroring spec.md §6.1's set_bank(handle, embedded_id).
type EmbeddedBankID int

const DefaultEmbeddedBank EmbeddedBankID = 0

func defaultOperator(multiplier, attack, decay, sustain, release, totalLevel uint8) Operator {
	return Operator{
		AVEKM:  multiplier & 0x0F,
		KSLTL:  totalLevel & 0x3F,
		AttDec: (attack << 4) | (decay & 0x0F),
		SusRel: (sustain << 4) | (release & 0x0F),
	}
}

// proceduralTimbre synthesizes a simple 2-op FM voice whose brightness and
// envelope speed vary with program number, standing in for a real
// instrument's hand-tuned patch.
func proceduralTimbre(program int) Timbre {
	mult := uint8(1 + program%4)
	attack := uint8(12 - program%6)
	decay := uint8(4 + program%5)
	sustain := uint8(8 + program%4)
	release := uint8(3 + program%3)
	carrierTL := uint8(10 + program%20)

	return Timbre{
		Modulator:          defaultOperator(mult, attack, decay, sustain, release, 40),
		Carrier:            defaultOperator(1, attack, decay, sustain, release, carrierTL),
		FeedConn:           (uint8(program%6) << 1) | 0x01,
		ModulatorTLDefault: 40,
		CarrierTLDefault:   carrierTL,
	}
}

func proceduralDrumTimbre(key int) Timbre {
	mult := uint8(1 + key%8)
	return Timbre{
		Modulator:          defaultOperator(mult, 15, 8, 8, 6, 20),
		Carrier:            defaultOperator(1, 15, 10, 4, 8, 16),
		FeedConn:           0x07,
		ModulatorTLDefault: 20,
		CarrierTLDefault:   16,
	}
}

// NewDefaultBankSet builds the synth's built-in GM-layout bank: 128
// melodic programs at bank 0, and a percussion bank (drum=true, bank 0)
// covering the GM percussion key range 27..87.
func NewDefaultBankSet() *BankSet {
	melodic := &Bank{Name: "General MIDI"}
	for p := 0; p < 128; p++ {
		melodic.Instruments[p] = &Instrument{
			Timbre: proceduralTimbre(p),
			Flags:  Flag2Op,
			Name:   "GM Program",
		}
	}

	drum := &Bank{Name: "GM Percussion"}
	for p := 0; p < 128; p++ {
		key := 27 + p%61
		drum.Instruments[p] = &Instrument{
			Timbre:        proceduralDrumTimbre(key),
			Flags:         Flag2Op | FlagFixedPitch,
			PercussionKey: uint8(key),
			Name:          "GM Percussion",
		}
	}

	return &BankSet{
		Melodic: map[uint16]*Bank{0: melodic},
		Drum:    map[uint16]*Bank{0: drum},
		Setup:   BankSetup{VolumeModel: VolumeGeneric},
	}
}
