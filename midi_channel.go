// midi_channel.go - per-channel MIDI state and event interpretation (spec.md §4.3).
//
// Grounded on music_common.go's PlayerControlState (a flat struct of
// transport/runtime flags the teacher mutates directly from parsed player
// commands) generalized into one MidiChannelState per MIDI channel, plus an
// RPN/NRPN state machine and SysEx dispatch that have no teacher analogue
// (the teacher never parses live MIDI) and are instead grounded on
// original_source's documented GM/GS/XG reset byte sequences.

package adlmidi

const numMidiChannels = 16

// PedalKind distinguishes the three sustain-family controllers.
type PedalKind int

const (
	PedalSustain PedalKind = iota
	PedalSostenuto
	PedalSoft
)

type activeNote struct {
	key      int
	velocity uint8
	voices   []int
	// detune holds, per entry in voices, the additional cents offset that
	// voice should render at (spec.md §4.5 pseudo-4-op "secondVoiceDetune");
	// 0 for every voice except a pseudo-4-op pair's second voice.
	detune        []int8
	sostenutoHeld bool
}

// MidiChannelState is the complete mutable state of one of the synth's 16
// (or more, for multi-port hosts) MIDI channels.
type MidiChannelState struct {
	Program  uint8
	BankMSB  uint8
	BankLSB  uint8
	IsDrum   bool

	Volume     uint8 // CC7, default 100
	Expression uint8 // CC11, default 127
	Pan        uint8 // CC10, default 64 (center)
	Brightness uint8 // CC74, default 64

	SustainHeld   bool
	SostenutoHeld bool
	SoftHeld      bool

	PortamentoEnabled bool
	PortamentoTimeCC  uint8
	PortamentoSource  int

	PitchBend          int16 // signed 14-bit, 0 = center
	PitchBendSemitones uint8
	PitchBendCents     uint8

	FineTuneCents   int16
	CoarseTuneSemis int16

	SelectedRPNMSB  uint8
	SelectedRPNLSB  uint8
	SelectedNRPNMSB uint8
	SelectedNRPNLSB uint8
	RPNActive       bool // true selects RPN semantics for CC6/38, false NRPN
	DataEntryMSB    uint8
	DataEntryLSB    uint8

	ChannelAftertouch uint8

	VibratoDepth uint8 // CC1 modulation wheel

	GSDrumOverride bool

	Notes map[int]*activeNote
}

// NewMidiChannelState constructs a channel with the GM-default controller
// values (spec.md §7 "reset restores GM defaults").
func NewMidiChannelState() *MidiChannelState {
	s := &MidiChannelState{}
	s.resetControllers()
	s.Notes = make(map[int]*activeNote)
	return s
}

func (s *MidiChannelState) resetControllers() {
	s.Volume = 100
	s.Expression = 127
	s.Pan = 64
	s.Brightness = 64
	s.SustainHeld = false
	s.SostenutoHeld = false
	s.SoftHeld = false
	s.PortamentoEnabled = false
	s.PitchBend = 0
	s.PitchBendSemitones = 2
	s.PitchBendCents = 0
	s.FineTuneCents = 0
	s.CoarseTuneSemis = 0
	s.SelectedRPNMSB, s.SelectedRPNLSB = 0x7F, 0x7F
	s.SelectedNRPNMSB, s.SelectedNRPNLSB = 0x7F, 0x7F
	s.RPNActive = false
	s.ChannelAftertouch = 0
	s.VibratoDepth = 0
}

// ResetFull reinitializes the channel as "reset all controllers" does
// (CC121), but additionally clears program/bank/drum state, used for GM/GS/
// XG SysEx resets.
func (s *MidiChannelState) ResetFull() {
	s.resetControllers()
	s.Program = 0
	s.BankMSB = 0
	s.BankLSB = 0
	s.IsDrum = false
	s.GSDrumOverride = false
	s.Notes = make(map[int]*activeNote)
}

// BankID packs (MSB,LSB) into the 16-bit key BankSet.Lookup expects.
func (s *MidiChannelState) BankID() uint16 {
	return uint16(s.BankMSB)<<8 | uint16(s.BankLSB)
}

// EffectiveTone returns the fractional semitone value a note should render
// at, combining the MIDI key with pitch bend, fine tune, and coarse tune.
func (s *MidiChannelState) EffectiveTone(key int) float64 {
	bendRange := float64(s.PitchBendSemitones) + float64(s.PitchBendCents)/100
	bendFraction := float64(s.PitchBend) / 8192
	tone := float64(key) + bendFraction*bendRange
	tone += float64(s.CoarseTuneSemis)
	tone += float64(s.FineTuneCents) / 100
	return tone
}

// ApplyController dispatches one CC event per the table in spec.md §4.3.
// It returns which pedal (if any) changed state so the caller can drive the
// VoiceAllocator's sustain/sostenuto transitions, and whether an
// all-notes/all-sound-off was requested.
type controllerResult struct {
	PedalChanged   bool
	Pedal          PedalKind
	PedalDown      bool
	AllSoundOff    bool
	AllNotesOff    bool
	ResetRequested bool
}

func (s *MidiChannelState) ApplyController(number uint8, value uint8) controllerResult {
	switch number {
	case 0:
		s.BankMSB = value
	case 1:
		s.VibratoDepth = value
	case 5:
		s.PortamentoTimeCC = value
	case 6:
		s.DataEntryMSB = value
		s.applyDataEntry()
	case 7:
		s.Volume = value
	case 10:
		s.Pan = value
	case 11:
		s.Expression = value
	case 32:
		s.BankLSB = value
	case 38:
		s.DataEntryLSB = value
		s.applyDataEntry()
	case 64:
		down := value >= 64
		changed := down != s.SustainHeld
		s.SustainHeld = down
		return controllerResult{PedalChanged: changed, Pedal: PedalSustain, PedalDown: down}
	case 65:
		s.PortamentoEnabled = value >= 64
	case 66:
		down := value >= 64
		changed := down != s.SostenutoHeld
		s.SostenutoHeld = down
		return controllerResult{PedalChanged: changed, Pedal: PedalSostenuto, PedalDown: down}
	case 67:
		down := value >= 64
		changed := down != s.SoftHeld
		s.SoftHeld = down
		return controllerResult{PedalChanged: changed, Pedal: PedalSoft, PedalDown: down}
	case 71, 72, 73, 75, 91, 93:
		// accepted, no direct effect at this layer.
	case 74:
		s.Brightness = value
	case 98:
		s.SelectedNRPNLSB = value
		s.RPNActive = false
	case 99:
		s.SelectedNRPNMSB = value
		s.RPNActive = false
	case 100:
		s.SelectedRPNLSB = value
		s.RPNActive = true
	case 101:
		s.SelectedRPNMSB = value
		s.RPNActive = true
	case 120:
		return controllerResult{AllSoundOff: true}
	case 121:
		s.resetControllers()
		return controllerResult{ResetRequested: true}
	case 123:
		return controllerResult{AllNotesOff: true}
	case 126, 127:
		// mono/poly mode tracked nowhere else; OPL stays polyphonic.
	}
	return controllerResult{}
}

// applyDataEntry interprets CC6/38 against whichever of RPN/NRPN is
// currently selected, implementing the four required RPNs (spec.md §4.3
// "RPN contracts"). NRPN data entries are accepted and stored but produce
// no audible effect, matching the spec's "accepted silently" for anything
// beyond the four required RPNs.
func (s *MidiChannelState) applyDataEntry() {
	if !s.RPNActive {
		return
	}
	switch {
	case s.SelectedRPNMSB == 0 && s.SelectedRPNLSB == 0:
		s.PitchBendSemitones = s.DataEntryMSB
		s.PitchBendCents = s.DataEntryLSB
	case s.SelectedRPNMSB == 0 && s.SelectedRPNLSB == 1:
		fine := (int32(s.DataEntryMSB)<<7 | int32(s.DataEntryLSB)) - 8192
		s.FineTuneCents = int16(fine * 100 / 8192)
	case s.SelectedRPNMSB == 0 && s.SelectedRPNLSB == 2:
		s.CoarseTuneSemis = int16(s.DataEntryMSB) - 64
	case s.SelectedRPNMSB == 0x7F && s.SelectedRPNLSB == 0x7F:
		s.SelectedRPNMSB, s.SelectedRPNLSB = 0x7F, 0x7F
		s.RPNActive = false
	}
}

// ApplyPitchBend stores a 14-bit signed bend value (0 = center, matching
// MIDI's 0x2000 raw value pre-offset).
func (s *MidiChannelState) ApplyPitchBend(value14 int16) {
	s.PitchBend = value14
}

// ApplyPitchBendML combines raw MSB/LSB bytes into the signed 14-bit value
// (spec.md §6.1 rt_pitch_bend_ml).
func (s *MidiChannelState) ApplyPitchBendML(msb, lsb uint8) {
	raw := int16(msb)<<7 | int16(lsb)
	s.PitchBend = raw - 8192
}
