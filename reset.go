// reset.go - component reset lifecycle (spec.md §3 "Lifecycle", §7).
//
// Grounded on component_reset.go, which gives every stateful component
// (SoundChip, PSGEngine, ...) its own Reset() that restores constructor
// defaults while preserving the parts of its wiring (output backend, bank
// reference) that shouldn't be torn down. Synth.RtResetState (synth.go) is
// the public entry point; the per-component Reset methods here are what it
// calls, kept separate so tests can reset one layer without going through
// the whole Synth.

package adlmidi

// Reset restores a MidiChannelState to GM defaults without discarding the
// struct (same pattern as the teacher's per-component Reset methods).
func (s *MidiChannelState) Reset() {
	s.ResetFull()
}

// Reset clears every allocator voice back to Off without touching the
// underlying ChipFrontend registers (callers that also want registers
// silenced should call ChipFrontend.Reset first).
func (a *VoiceAllocator) Reset() {
	for i := range a.voices {
		cat := a.voices[i].category
		a.voices[i] = oplVoice{category: cat, pairIndex: -1}
	}
	a.tick = 0
}

// Reset clears pending notes and the active-voice cursor.
func (a *AutoArpeggio) Reset() {
	a.pending = nil
	a.cursor = 0
	a.framesUntilSwitch = 0
	a.activeVoice = -1
	a.activeNote = nil
}

// Reset clears queued events and rewinds the tick counter, leaving the
// frontend/allocator/arpeggio wiring untouched.
func (r *Renderer) Reset() {
	r.events = nil
	r.currentTick = 0
}
