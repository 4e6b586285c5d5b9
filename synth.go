// synth.go - the top-level public API (spec.md §6.1).
//
// Grounded on music_interfaces.go's MusicPlayer contract (Load/Play/Stop/
// IsPlaying/DurationSeconds) generalized to the richer rt_* real-time event
// surface spec.md requires, and on psg_player.go's "one struct owns engine
// + bank + transport state" shape. Synth is the object every other module
// in this package exists to back.

package adlmidi

import (
	"os"
	"sync"
)

// Synth is the top-level General MIDI-to-OPL synthesizer. It is not safe
// for concurrent use (spec.md §5): callers must serialize rt_* calls and
// Generate from a single thread, typically the audio callback thread.
type Synth struct {
	mu sync.Mutex

	sampleRate uint32
	emulatorName string

	numChips   int
	numFourOps int
	chipType   ChipType

	frontend  *ChipFrontend
	allocator *VoiceAllocator
	arpeggio  *AutoArpeggio
	renderer  *Renderer

	bank *BankSet

	volumeModel         VolumeModel
	frequencyModel      FrequencyModel
	channelAlloc        ChanAlloc
	softPanEnabled      bool
	scaleModulators     bool
	fullRangeBrightness bool

	htremolo int8
	hvibrato int8

	gain float32

	autoArpeggio bool
	rhythmMode   bool

	channels [numMidiChannels]*MidiChannelState

	masterVolume uint8
}

// NewSynth constructs and fully configures a Synth from cfg. This is the
// conceptual init(sample_rate) of spec.md §6.1, generalized to take the
// whole SynthConfig rather than a bare sample rate.
func NewSynth(cfg SynthConfig) (*Synth, error) {
	if cfg.SampleRate == 0 {
		return nil, newConfigError("sample_rate must be > 0")
	}

	s := &Synth{
		sampleRate:          cfg.SampleRate,
		emulatorName:        cfg.Emulator,
		chipType:             ChipOPL3,
		volumeModel:         parseVolumeModelName(cfg.VolumeModel),
		frequencyModel:      parseFrequencyModelName(cfg.FrequencyModel),
		channelAlloc:        parseChannelAllocName(cfg.ChannelAlloc),
		softPanEnabled:      cfg.SoftPanEnabled,
		scaleModulators:     cfg.ScaleModulators,
		fullRangeBrightness: cfg.FullRangeBrightness,
		htremolo:            cfg.HTremolo,
		hvibrato:            cfg.HVibrato,
		rhythmMode:          cfg.RhythmMode,
		gain:                cfg.Gain,
		autoArpeggio:        cfg.AutoArpeggio,
		masterVolume:        127,
		bank:                NewDefaultBankSet(),
	}
	for i := range s.channels {
		s.channels[i] = NewMidiChannelState()
	}

	numChips := cfg.NumChips
	if numChips <= 0 {
		numChips = 1
	}
	if err := s.reconfigure(numChips, cfg.NumFourOps, s.emulatorName); err != nil {
		return nil, err
	}

	if cfg.BankFile != "" {
		if err := s.OpenBankFile(cfg.BankFile); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// reconfigure rebuilds the ChipFrontend/VoiceAllocator/AutoArpeggio/Renderer
// stack, called by init and by set_num_chips/set_num_four_ops/
// switch_emulator (spec.md §6.1: all three "trigger reconfigure").
func (s *Synth) reconfigure(numChips, numFourOps int, emulatorName string) error {
	frontend, err := NewChipFrontend(numChips, s.chipType, numFourOps, s.sampleRate, emulatorName)
	if err != nil {
		return err
	}
	frontend.SetSoftPanEnabled(s.softPanEnabled)

	s.frontend = frontend
	s.allocator = NewVoiceAllocator(frontend, s.channelAlloc)
	s.allocator.volumeModel = s.volumeModel
	s.arpeggio = NewAutoArpeggio(s.sampleRate)
	s.renderer = NewRenderer(s.sampleRate, frontend, s.allocator, s.arpeggio)

	s.numChips = numChips
	s.numFourOps = numFourOps
	s.emulatorName = emulatorName

	s.frontend.SetRhythmMode(s.rhythmMode)
	s.allocator.SetRhythmMode(s.rhythmMode)
	s.applyDeepFlagsLocked()
	s.renderer.SetGain(s.gain)
	s.arpeggio.SetEnabled(s.autoArpeggio)
	return nil
}

// SetGain changes the renderer's output gain (spec.md §6.1 set_gain),
// surviving any later SetNumChips/SetNumFourOps/SwitchEmulator rebuild of
// the renderer.
func (s *Synth) SetGain(gain float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gain = gain
	s.renderer.SetGain(gain)
}

// SetRhythmMode enables or disables OPL rhythm mode (spec.md §3 register
// 0xBD), reassigning the reserved bass/snare/tom-tom voices between the
// shared rhythm key bits and ordinary per-channel key-on (chip_frontend.go
// NoteOn/NoteOff, voice_allocator.go SetRhythmMode).
func (s *Synth) SetRhythmMode(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rhythmMode = enabled
	s.frontend.SetRhythmMode(enabled)
	s.allocator.SetRhythmMode(enabled)
}

// applyDeepFlagsLocked derives the 0xBD deep-tremolo/deep-vibrato bits from
// s.htremolo/s.hvibrato, falling back to the loaded bank's BankSetup when a
// field is left at its -1 "auto" sentinel (spec.md §3 BankSetup.DeepTremolo/
// DeepVibrato). Callers must already hold s.mu.
func (s *Synth) applyDeepFlagsLocked() {
	tremolo := s.bank.Setup.DeepTremolo
	if s.htremolo >= 0 {
		tremolo = s.htremolo != 0
	}
	vibrato := s.bank.Setup.DeepVibrato
	if s.hvibrato >= 0 {
		vibrato = s.hvibrato != 0
	}
	s.frontend.SetDeepFlags(tremolo, vibrato)
}

// Close releases the synth's chip resources. The zero value of Synth is
// not usable after Close; there is nothing further to clean up beyond
// letting the chips be garbage collected, but Close exists as the explicit
// lifecycle bookend spec.md §6.1 names.
func (s *Synth) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frontend = nil
	s.allocator = nil
	s.renderer = nil
}

// SetNumChips reconfigures the chip array (spec.md §6.1 set_num_chips,
// "triggers reconfigure (expensive)").
func (s *Synth) SetNumChips(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconfigure(n, s.numFourOps, s.emulatorName)
}

// SetNumFourOps reconfigures the 4-op pair budget.
func (s *Synth) SetNumFourOps(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconfigure(s.numChips, n, s.emulatorName)
}

// SwitchEmulator clears the chip array and rebuilds it against a different
// registered ChipEmulator factory. On failure the synth keeps its previous
// emulator (spec.md §7: configuration errors must not leave the synth in a
// half-configured state).
func (s *Synth) SwitchEmulator(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous := s.emulatorName
	if err := s.reconfigure(s.numChips, s.numFourOps, name); err != nil {
		logEmulatorFallback(name, previous)
		_ = s.reconfigure(s.numChips, s.numFourOps, previous)
		return err
	}
	return nil
}

// SetBank selects one of the synth's embedded banks.
func (s *Synth) SetBank(id EmbeddedBankID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == DefaultEmbeddedBank {
		s.bank = NewDefaultBankSet()
	}
	s.applyDeepFlagsLocked()
}

// OpenBankFile loads a WOPL bank from disk, replacing the current bank.
func (s *Synth) OpenBankFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return newBankError("reading bank file %s: %v", path, err)
	}
	return s.OpenBankData(data, path)
}

// OpenBankData loads a WOPL bank from an in-memory buffer.
func (s *Synth) OpenBankData(data []byte, sourceName string) error {
	set, err := LoadWOPLBank(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.bank = set
	s.applyDeepFlagsLocked()
	s.mu.Unlock()
	logBankLoad(sourceName, countInstruments(set))
	return nil
}

func (s *Synth) SetVolumeModel(name string)    { s.mu.Lock(); defer s.mu.Unlock(); s.volumeModel = parseVolumeModelName(name); s.allocator.volumeModel = s.volumeModel }
func (s *Synth) SetFrequencyModel(name string) { s.mu.Lock(); defer s.mu.Unlock(); s.frequencyModel = parseFrequencyModelName(name) }

// SetChannelAlloc changes the VoiceAllocator's selection policy for future
// allocations; already-bound voices are unaffected.
func (s *Synth) SetChannelAlloc(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelAlloc = parseChannelAllocName(name)
	s.allocator.policy = s.channelAlloc
}

func (s *Synth) SetSoftPanEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.softPanEnabled = enabled
	s.frontend.SetSoftPanEnabled(enabled)
}

func (s *Synth) SetScaleModulators(enabled bool)     { s.mu.Lock(); defer s.mu.Unlock(); s.scaleModulators = enabled }
func (s *Synth) SetFullRangeBrightness(enabled bool) { s.mu.Lock(); defer s.mu.Unlock(); s.fullRangeBrightness = enabled }
func (s *Synth) SetAutoArpeggio(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoArpeggio = enabled
	s.arpeggio.SetEnabled(enabled)
}
func (s *Synth) SetHTremolo(v int8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.htremolo = v
	s.applyDeepFlagsLocked()
}

func (s *Synth) SetHVibrato(v int8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hvibrato = v
	s.applyDeepFlagsLocked()
}

func (s *Synth) channel(ch int) *MidiChannelState {
	if ch < 0 || ch >= numMidiChannels {
		return nil
	}
	return s.channels[ch]
}

func (s *Synth) volumeInputsFor(ch *MidiChannelState, inst *Instrument, velocity uint8) VolumeInputs {
	brightness := ch.Brightness
	tlModDefault := inst.Timbre.ModulatorTLDefault
	if brightness < 64 || s.fullRangeBrightness {
		reduction := xgBrightnessToOPL(brightness, s.fullRangeBrightness)
		if int(tlModDefault)+int(reduction) > 63 {
			tlModDefault = 63
		} else {
			tlModDefault += reduction
		}
	}
	return VolumeInputs{
		Velocity:       velocity,
		ChannelVolume:  ch.Volume,
		ChannelExpr:    ch.Expression,
		MasterVolume:   s.masterVolume,
		Mode:           voiceModeOf(inst),
		FeedConn:       inst.Timbre.FeedConn,
		TLModDefault:   tlModDefault,
		TLCarDefault:   inst.Timbre.CarrierTLDefault,
		ScaleModulator: s.scaleModulators,
		IsDrum:         ch.IsDrum,
	}
}

func voiceModeOf(inst *Instrument) VoiceMode {
	switch {
	case inst.Flags&Flag4Op != 0:
		return VoiceMode4Op
	case inst.Flags&FlagPseudo4Op != 0:
		return VoiceModePseudo4Op
	case inst.Flags&FlagRhythmMode != 0:
		return VoiceModeRhythm
	default:
		return VoiceMode2Op
	}
}

// RtNoteOn implements spec.md §6.1 rt_note_on. A velocity of 0 is treated
// as note-off, per spec.md §4.3.
func (s *Synth) RtNoteOn(ch, key int, velocity uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if velocity == 0 {
		s.rtNoteOffLocked(ch, key)
		return
	}
	chState := s.channel(ch)
	if chState == nil {
		return
	}
	inst := s.bank.Lookup(chState.BankID(), chState.Program, chState.IsDrum)
	if inst == nil {
		logVoiceDropped(ch, key)
		return
	}
	if inst.Flags&FlagFixedPitch != 0 {
		key = int(inst.PercussionKey)
	}
	if inst.Flags&FlagRhythmMode != 0 && !s.rhythmMode {
		s.rhythmMode = true
		s.frontend.SetRhythmMode(true)
		s.allocator.SetRhythmMode(true)
	}
	vol := s.volumeInputsFor(chState, inst, velocity)
	result := s.allocator.Allocate(ch, key, inst, vol)
	if !result.Ok {
		if !s.arpeggio.Enqueue(ch, key, inst, vol) {
			logVoiceDropped(ch, key)
			return
		}
	}
	tone := chState.EffectiveTone(key)
	fnum, block := ToneToRegisters(s.frequencyModel, tone)
	isPseudo4OpPair := result.Secondary >= 0 && result.Secondary != result.Primary
	if result.Primary >= 0 {
		s.frontend.SetFrequency(result.Primary, fnum, block)
	}
	if isPseudo4OpPair {
		// spec.md §4.5: the second voice of a pseudo-4-op pair renders
		// Voice2FineTune cents away from the first, typically a few cents
		// of chorus-style detune rather than a second pitch.
		secondTone := tone + float64(inst.Voice2FineTune)/100
		fnum2, block2 := ToneToRegisters(s.frequencyModel, secondTone)
		s.frontend.SetFrequency(result.Secondary, fnum2, block2)
	}
	an := chState.Notes[key]
	if an == nil {
		an = &activeNote{key: key}
		chState.Notes[key] = an
	}
	an.velocity = velocity
	voices := []int{}
	detune := []int8{}
	if result.Primary >= 0 {
		voices = append(voices, result.Primary)
		detune = append(detune, 0)
	}
	if isPseudo4OpPair {
		voices = append(voices, result.Secondary)
		detune = append(detune, inst.Voice2FineTune)
	}
	an.voices = voices
	an.detune = detune
}

// RtNoteOff implements spec.md §6.1 rt_note_off.
func (s *Synth) RtNoteOff(ch, key int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rtNoteOffLocked(ch, key)
}

func (s *Synth) rtNoteOffLocked(ch, key int) {
	chState := s.channel(ch)
	if chState == nil {
		return
	}
	an := chState.Notes[key]
	if an == nil {
		s.arpeggio.Dequeue(ch, key)
		return
	}
	held := chState.SustainHeld || (chState.SostenutoHeld && an.sostenutoHeld)
	for _, v := range an.voices {
		s.allocator.Release(v, held)
	}
	delete(chState.Notes, key)
	s.arpeggio.Dequeue(ch, key)
}

// RtNoteAfterTouch implements spec.md §6.1 rt_note_after_touch. OPL has no
// native per-operator aftertouch channel; this package applies it as a
// transient touch_note volume nudge on the bound voice(s).
func (s *Synth) RtNoteAfterTouch(ch, key int, pressure uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyNoteAfterTouchLocked(ch, key, pressure)
}

func (s *Synth) applyNoteAfterTouchLocked(ch, key int, pressure uint8) {
	chState := s.channel(ch)
	if chState == nil {
		return
	}
	an := chState.Notes[key]
	if an == nil {
		return
	}
	inst := s.bank.Lookup(chState.BankID(), chState.Program, chState.IsDrum)
	if inst == nil {
		return
	}
	vol := s.volumeInputsFor(chState, inst, pressure)
	tlMod, tlCar := ApplyVolumeModel(s.volumeModel, vol)
	for _, v := range an.voices {
		s.frontend.TouchNote(v, tlCar, tlMod, s.scaleModulators)
	}
}

// RtChannelAfterTouch implements spec.md §6.1 rt_channel_after_touch,
// applying the pressure to every active note on the channel.
func (s *Synth) RtChannelAfterTouch(ch int, pressure uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chState := s.channel(ch)
	if chState == nil {
		return
	}
	chState.ChannelAftertouch = pressure
	for key := range chState.Notes {
		s.applyNoteAfterTouchLocked(ch, key, pressure)
	}
}

// RtControllerChange implements spec.md §6.1 rt_controller_change / §4.3's
// CC table.
func (s *Synth) RtControllerChange(ch int, number, value uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chState := s.channel(ch)
	if chState == nil {
		return
	}
	result := chState.ApplyController(number, value)
	switch {
	case result.AllSoundOff, result.AllNotesOff, result.ResetRequested:
		s.allocator.SilenceChannel(ch)
		chState.Notes = make(map[int]*activeNote)
	case result.PedalChanged && result.Pedal == PedalSustain && !result.PedalDown:
		s.allocator.ReleaseSustained(ch)
	case result.PedalChanged && result.Pedal == PedalSostenuto && result.PedalDown:
		for _, an := range chState.Notes {
			an.sostenutoHeld = true
		}
	case result.PedalChanged && result.Pedal == PedalSostenuto && !result.PedalDown:
		s.allocator.ReleaseSustained(ch)
		for _, an := range chState.Notes {
			an.sostenutoHeld = false
		}
	}
}

// RtPatchChange implements spec.md §6.1 rt_patch_change.
func (s *Synth) RtPatchChange(ch int, program uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if chState := s.channel(ch); chState != nil {
		chState.Program = program
	}
}

// RtPitchBend implements spec.md §6.1 rt_pitch_bend, retuning every
// sustaining voice of the channel.
func (s *Synth) RtPitchBend(ch int, value14 int16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chState := s.channel(ch)
	if chState == nil {
		return
	}
	chState.ApplyPitchBend(value14)
	s.retuneChannel(ch, chState)
}

// RtPitchBendML implements spec.md §6.1 rt_pitch_bend_ml(ch, msb, lsb).
func (s *Synth) RtPitchBendML(ch int, msb, lsb uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chState := s.channel(ch)
	if chState == nil {
		return
	}
	chState.ApplyPitchBendML(msb, lsb)
	s.retuneChannel(ch, chState)
}

func (s *Synth) retuneChannel(ch int, chState *MidiChannelState) {
	for key, an := range chState.Notes {
		tone := chState.EffectiveTone(key)
		for i, v := range an.voices {
			voiceTone := tone
			if i < len(an.detune) {
				voiceTone += float64(an.detune[i]) / 100
			}
			fnum, block := ToneToRegisters(s.frequencyModel, voiceTone)
			s.frontend.SetFrequency(v, fnum, block)
		}
	}
}

// RtSystemExclusive implements spec.md §6.1 rt_system_exclusive.
func (s *Synth) RtSystemExclusive(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := ParseSysEx(data)
	switch result.Kind {
	case SysExGM1Reset, SysExGM2Reset:
		s.resetAllChannelsLocked()
	case SysExGSReset:
		s.resetAllChannelsLocked()
	case SysExXGReset:
		s.resetAllChannelsLocked()
	case SysExGSDrumPart:
		if chState := s.channel(result.Channel); chState != nil {
			chState.IsDrum = result.DrumEnabled
			chState.GSDrumOverride = true
		}
	case SysExMasterVolume:
		s.masterVolume = result.MasterVolume
	}
}

func (s *Synth) resetAllChannelsLocked() {
	for i, chState := range s.channels {
		s.allocator.SilenceChannel(i)
		chState.ResetFull()
	}
}

// RtResetState implements spec.md §6.1 rt_reset_state.
func (s *Synth) RtResetState() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetAllChannelsLocked()
	s.frontend.Reset()
	s.masterVolume = 127
	s.frontend.SetRhythmMode(s.rhythmMode)
	s.allocator.SetRhythmMode(s.rhythmMode)
	s.applyDeepFlagsLocked()
}

// Panic implements spec.md §6.1 panic(): silence all.
func (s *Synth) Panic() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allocator.SilenceAll()
	for _, chState := range s.channels {
		chState.Notes = make(map[int]*activeNote)
	}
}

// Generate implements spec.md §4.6 mode A via the Renderer.
func (s *Synth) Generate(dest []int16, frames int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renderer.Generate(dest, frames)
}

// GenerateFormat implements spec.md §4.6's format-conversion wrapper.
func (s *Synth) GenerateFormat(dest []byte, frames int, format SampleFormat, bigEndian bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renderer.GenerateFormat(dest, frames, format, bigEndian)
}

// TickEvents implements spec.md §4.6 mode B via the Renderer.
func (s *Synth) TickEvents(deltaSeconds, minDelay float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renderer.TickEvents(deltaSeconds, minDelay)
}
