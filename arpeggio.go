// arpeggio.go - AutoArpeggio layer (spec.md §4.5, optional, off by default).
//
// When a channel asks for more simultaneous notes than voices exist, this
// keeps one FIFO of pending notes shared by all channels and time-slices a
// single shared voice among them at a fixed rate, releasing the active voice
// and handing the next note to the caller's allocate callback at each switch
// (see Renderer.Generate for the callback the renderer passes).
// Grounded on psg_player.go/psg_engine.go's event-queue-with-sample-position
// pattern (PSGEvent scheduled by sample position, drained as playback
// advances); here the queue is driven by the same tick counter the
// VoiceAllocator already keeps rather than a second independent clock.

package adlmidi

const defaultArpeggioRateHz = 25

type arpeggioNote struct {
	channel int
	key     int
	inst    *Instrument
	vol     VolumeInputs
}

// AutoArpeggio cycles a FIFO of notes that could not be allocated a voice,
// giving each one a short audible slice in round-robin order.
type AutoArpeggio struct {
	enabled  bool
	rateHz   float64
	sampleRate uint32

	pending     []arpeggioNote
	cursor      int
	framesUntilSwitch int
	activeVoice int
	activeNote  *arpeggioNote
}

// NewAutoArpeggio constructs a disabled-by-default arpeggiator at the given
// audio sample rate.
func NewAutoArpeggio(sampleRate uint32) *AutoArpeggio {
	return &AutoArpeggio{rateHz: defaultArpeggioRateHz, sampleRate: sampleRate, activeVoice: -1}
}

// SetEnabled toggles the layer; disabling drops any pending notes.
func (a *AutoArpeggio) SetEnabled(enabled bool) {
	a.enabled = enabled
	if !enabled {
		a.pending = nil
		a.activeVoice = -1
		a.activeNote = nil
	}
}

func (a *AutoArpeggio) Enabled() bool { return a.enabled }

// Enqueue records a note that the VoiceAllocator could not place. Returns
// false if the layer is disabled (caller should then treat it as a plain
// rejection).
func (a *AutoArpeggio) Enqueue(channel, key int, inst *Instrument, vol VolumeInputs) bool {
	if !a.enabled {
		return false
	}
	a.pending = append(a.pending, arpeggioNote{channel: channel, key: key, inst: inst, vol: vol})
	return true
}

// Dequeue removes every pending note matching (channel,key), called on a
// matching note-off so an arpeggio slot doesn't keep cycling a released key.
func (a *AutoArpeggio) Dequeue(channel, key int) {
	out := a.pending[:0]
	for _, n := range a.pending {
		if n.channel != channel || n.key != key {
			out = append(out, n)
		}
	}
	a.pending = out
	if a.activeNote != nil && a.activeNote.channel == channel && a.activeNote.key == key {
		a.activeNote = nil
	}
}

// Advance steps the arpeggiator by frames of audio, switching the active
// note at the configured rate. When it is time to switch, it calls
// releaseFn on the currently-active voice (if any) and allocateFn for the
// next pending note, recording the voice index allocateFn bound (or -1) as
// the active voice.
func (a *AutoArpeggio) Advance(frames int, releaseFn func(voice int), allocateFn func(n arpeggioNote) int) {
	if !a.enabled || len(a.pending) == 0 {
		return
	}
	a.framesUntilSwitch -= frames
	if a.framesUntilSwitch > 0 {
		return
	}
	sliceFrames := int(float64(a.sampleRate) / a.rateHz)
	a.framesUntilSwitch = sliceFrames

	if a.activeVoice >= 0 {
		releaseFn(a.activeVoice)
		a.activeVoice = -1
	}
	if len(a.pending) == 0 {
		return
	}
	a.cursor %= len(a.pending)
	next := a.pending[a.cursor]
	a.cursor = (a.cursor + 1) % len(a.pending)
	a.activeNote = &next
	a.activeVoice = allocateFn(next)
}
