// voice_allocator.go - OplChannel state machine and voice selection (spec.md §4.5).
//
// Grounded on psg_engine.go's event-list/scheduling style (an engine that
// owns a flat array of hardware-voice state and scans it for the best
// candidate on each event) generalized to the three-policy algorithm spec.md
// describes. ChanAlloc mirrors an enum-selected strategy the same way
// VolumeModel/FrequencyModel select a pure function elsewhere in the
// package.

package adlmidi

// OplVoiceState is the state machine spec.md §3 assigns to every OplChannel.
type OplVoiceState int

const (
	VoiceOff OplVoiceState = iota
	VoiceOn
	VoiceSustained
	VoiceReleasing
)

// VoiceCategory distinguishes the role a physical slot plays, independent
// of what it is currently bound to.
type VoiceCategory int

const (
	CategoryRegular VoiceCategory = iota
	Category4OpFirst
	Category4OpSecond
	CategoryRhythmBass
	CategoryRhythmSnare
	CategoryRhythmTom
	CategoryRhythmCymbal
	CategoryRhythmHiHat
	CategoryDisabled
)

// ChanAlloc selects a VoiceAllocator selection policy.
type ChanAlloc int

const (
	AllocOffDelay ChanAlloc = iota
	AllocSameInstrument
	AllocAnyReleased
)

// oplVoice is one physical voice's allocator-visible bookkeeping. The
// register-level state lives in ChipFrontend; this is the ownership layer
// spec.md calls OplChannel.
type oplVoice struct {
	category VoiceCategory
	state    OplVoiceState

	boundChannel int
	boundKey     int
	boundInst    *Instrument
	pairIndex    int // index into second pseudo-4-op voice, or -1

	keyOnTick    int64
	offDelayLeft int64
	effVolume    float64

	lastTimbre *Timbre
}

// VoiceAllocator binds MIDI (channel,key) pairs to ChipFrontend voice
// indices, implementing the three selection policies of spec.md §4.5.
type VoiceAllocator struct {
	frontend *ChipFrontend
	voices   []oplVoice
	policy   ChanAlloc
	tick     int64

	volumeModel VolumeModel
}

// NewVoiceAllocator builds allocator bookkeeping that mirrors the frontend's
// slot layout one-to-one, classifying each slot's VoiceCategory from its
// VoiceMode.
func NewVoiceAllocator(f *ChipFrontend, policy ChanAlloc) *VoiceAllocator {
	a := &VoiceAllocator{frontend: f, policy: policy}
	a.voices = make([]oplVoice, f.NumVoices())
	for i := range a.voices {
		switch f.VoiceMode(i) {
		case VoiceMode4Op:
			a.voices[i].category = Category4OpFirst
		default:
			a.voices[i].category = CategoryRegular
		}
		a.voices[i].pairIndex = -1
	}
	return a
}

// SetRhythmMode flips the reserved percussion voices (frontend channels
// 6/7/8, tagged by buildSlots) between their rhythm category and
// CategoryRegular. Only bass/snare/tom-tom are independently addressable
// here: in OPL rhythm mode hi-hat shares channel 7 with the snare and cymbal
// shares channel 8 with the tom-tom, and they are not given their own
// logical voice slot (see DESIGN.md).
func (a *VoiceAllocator) SetRhythmMode(enabled bool) {
	roleCat := map[RhythmSlot]VoiceCategory{
		RhythmBassDrum: CategoryRhythmBass,
		RhythmSnare:    CategoryRhythmSnare,
		RhythmTomTom:   CategoryRhythmTom,
	}
	for i := range a.voices {
		cat, ok := roleCat[a.frontend.RhythmRoleOf(i)]
		if !ok {
			continue
		}
		if enabled {
			a.voices[i].category = cat
		} else {
			a.voices[i].category = CategoryRegular
		}
	}
}

// Tick advances the allocator's monotonic counter, used for off-delay and
// release-age tie-breaking. Callers advance it once per rendered sample
// chunk (spec.md §4.6 generate loop).
func (a *VoiceAllocator) Tick(frames int64) {
	a.tick += frames
	for i := range a.voices {
		if a.voices[i].state == VoiceOff && a.voices[i].offDelayLeft > 0 {
			a.voices[i].offDelayLeft -= frames
			if a.voices[i].offDelayLeft < 0 {
				a.voices[i].offDelayLeft = 0
			}
		}
	}
}

func (a *VoiceAllocator) candidateScore(idx int) (rank int, tiebreak int64) {
	v := &a.voices[idx]
	switch v.state {
	case VoiceOff:
		return 0, v.offDelayLeft
	case VoiceReleasing:
		return 1, -(a.tick - v.keyOnTick)
	case VoiceSustained:
		return 2, 0
	default: // VoiceOn
		return 3, int64(v.effVolume * 1_000_000)
	}
}

// findBest scans eligible voices (those passing filter) and returns the
// index with the lowest (rank, tiebreak) pair, or -1 if none are eligible.
func (a *VoiceAllocator) findBest(filter func(idx int) bool) int {
	best := -1
	var bestRank int
	var bestTie int64
	for i := range a.voices {
		if !filter(i) {
			continue
		}
		rank, tie := a.candidateScore(i)
		if best == -1 || rank < bestRank || (rank == bestRank && tie < bestTie) {
			best, bestRank, bestTie = i, rank, tie
		}
	}
	return best
}

// AllocateResult reports which voice(s) were bound for a note-on, or that
// none were available (spec.md §4.5 "rejection").
type AllocateResult struct {
	Primary   int
	Secondary int // -1 unless a pseudo-4-op pair or 4-op partner was bound
	Ok        bool
}

// Allocate binds channel/key/instrument to one or two voices and issues the
// necessary set_patch/touch_note/note_on calls on the frontend. It never
// returns an error: "no voice available" is a silent rejection per
// spec.md §7.
func (a *VoiceAllocator) Allocate(channel, key int, inst *Instrument, vol VolumeInputs) AllocateResult {
	if inst == nil || inst.IsBlank() {
		return AllocateResult{Primary: -1, Secondary: -1, Ok: false}
	}

	if inst.Flags&FlagRhythmMode != 0 {
		idx := a.rhythmVoiceFor(inst.Slot)
		if idx < 0 {
			return AllocateResult{Primary: -1, Secondary: -1, Ok: false}
		}
		a.bindVoice(idx, channel, key, inst, vol, false)
		return AllocateResult{Primary: idx, Secondary: -1, Ok: true}
	}

	if inst.Flags&Flag4Op != 0 {
		idx := a.pickVoice(Category4OpFirst)
		if idx < 0 {
			// downgrade to 2-op: fall through and pick any regular voice.
			idx = a.pickVoice(CategoryRegular)
			if idx < 0 {
				return AllocateResult{Primary: -1, Secondary: -1, Ok: false}
			}
			a.bindVoice(idx, channel, key, inst, vol, false)
			return AllocateResult{Primary: idx, Secondary: -1, Ok: true}
		}
		a.bindVoice(idx, channel, key, inst, vol, true)
		return AllocateResult{Primary: idx, Secondary: idx, Ok: true}
	}

	if inst.Flags&FlagPseudo4Op != 0 {
		first := a.pickVoice(CategoryRegular)
		if first < 0 {
			return AllocateResult{Primary: -1, Secondary: -1, Ok: false}
		}
		a.bindVoice(first, channel, key, inst, vol, false)
		second := a.pickVoice(CategoryRegular)
		if second < 0 {
			return AllocateResult{Primary: first, Secondary: -1, Ok: true}
		}
		a.bindVoice(second, channel, key, inst, vol, false)
		a.frontend.SetPan(first, true, false, 0)
		a.frontend.SetPan(second, false, true, 255)
		return AllocateResult{Primary: first, Secondary: second, Ok: true}
	}

	idx := a.pickVoice(CategoryRegular)
	if idx < 0 {
		return AllocateResult{Primary: -1, Secondary: -1, Ok: false}
	}
	a.bindVoice(idx, channel, key, inst, vol, false)
	return AllocateResult{Primary: idx, Secondary: -1, Ok: true}
}

func (a *VoiceAllocator) rhythmVoiceFor(slot RhythmSlot) int {
	want := CategoryDisabled
	switch slot {
	case RhythmBassDrum:
		want = CategoryRhythmBass
	case RhythmSnare:
		want = CategoryRhythmSnare
	case RhythmTomTom:
		want = CategoryRhythmTom
	case RhythmCymbal:
		want = CategoryRhythmCymbal
	case RhythmHiHat:
		want = CategoryRhythmHiHat
	default:
		return -1
	}
	for i := range a.voices {
		if a.voices[i].category == want {
			return i
		}
	}
	return -1
}

// pickVoice selects a voice of the given category using the allocator's
// configured policy.
func (a *VoiceAllocator) pickVoice(cat VoiceCategory) int {
	inCategory := func(idx int) bool { return a.voices[idx].category == cat }

	switch a.policy {
	case AllocSameInstrument:
		if idx := a.findBest(func(idx int) bool {
			return inCategory(idx) && a.voices[idx].state == VoiceOff && a.voices[idx].lastTimbre != nil
		}); idx >= 0 {
			return idx
		}
	case AllocAnyReleased:
		if idx := a.findBest(func(idx int) bool {
			return inCategory(idx) && (a.voices[idx].state == VoiceOff || a.voices[idx].state == VoiceReleasing)
		}); idx >= 0 {
			return idx
		}
	}
	return a.findBest(inCategory)
}

func (a *VoiceAllocator) bindVoice(idx, channel, key int, inst *Instrument, vol VolumeInputs, isFourOp bool) {
	v := &a.voices[idx]
	if v.lastTimbre != &inst.Timbre {
		a.frontend.SetPatch(idx, &inst.Timbre, inst.Flags)
		v.lastTimbre = &inst.Timbre
	}
	tlMod, tlCar := ApplyVolumeModel(a.volumeModel, vol)
	a.frontend.TouchNote(idx, tlCar, tlMod, vol.ScaleModulator)

	v.state = VoiceOn
	v.boundChannel = channel
	v.boundKey = key
	v.boundInst = inst
	v.keyOnTick = a.tick
	v.effVolume = combinedLevel(vol)

	a.frontend.NoteOn(idx)
}

// Release transitions a bound voice to Sustained (if a sustain/sostenuto
// pedal holds it) or directly issues note_off, per the state diagram in
// spec.md §4.6.
func (a *VoiceAllocator) Release(idx int, sustainHeld bool) {
	if idx < 0 || idx >= len(a.voices) {
		return
	}
	v := &a.voices[idx]
	if v.state == VoiceOff {
		return
	}
	if sustainHeld {
		v.state = VoiceSustained
		return
	}
	v.state = VoiceReleasing
	a.frontend.NoteOff(idx)
}

// ReleaseSustained drops every Sustained voice on a channel to Releasing,
// called when a held pedal is lifted.
func (a *VoiceAllocator) ReleaseSustained(channel int) {
	for i := range a.voices {
		if a.voices[i].state == VoiceSustained && a.voices[i].boundChannel == channel {
			a.voices[i].state = VoiceReleasing
			a.frontend.NoteOff(i)
		}
	}
}

// MarkOff finalizes a voice's release, called once the chip's envelope has
// had time to decay (or immediately for a hard silence). Idempotent.
func (a *VoiceAllocator) MarkOff(idx int) {
	if idx < 0 || idx >= len(a.voices) {
		return
	}
	a.voices[idx] = oplVoice{category: a.voices[idx].category, pairIndex: -1, state: VoiceOff}
}

// VoicesForNote returns every voice index currently bound to (channel,key)
// in the On or Sustained state, for note-off/aftertouch dispatch.
func (a *VoiceAllocator) VoicesForNote(channel, key int) []int {
	var out []int
	for i := range a.voices {
		v := &a.voices[i]
		if (v.state == VoiceOn || v.state == VoiceSustained) && v.boundChannel == channel && v.boundKey == key {
			out = append(out, i)
		}
	}
	return out
}

// SilenceChannel immediately marks off every voice bound to channel,
// without a release stage (spec.md CC120 "all sound off").
func (a *VoiceAllocator) SilenceChannel(channel int) {
	for i := range a.voices {
		if a.voices[i].boundChannel == channel && a.voices[i].state != VoiceOff {
			a.frontend.NoteOff(i)
			a.MarkOff(i)
		}
	}
}

// SilenceAll immediately marks off every voice (panic()).
func (a *VoiceAllocator) SilenceAll() {
	a.frontend.SilenceAll()
	for i := range a.voices {
		a.MarkOff(i)
	}
}
