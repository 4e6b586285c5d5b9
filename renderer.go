// renderer.go - the real-time sample loop (spec.md §4.6).
//
// Grounded on audio_backend_oto.go's Read(p []byte) io.Reader shape for the
// outer format-conversion wrapper, and on psg_player.go's event-scheduling
// loop for the inner chunked generate/tick_events split. The teacher always
// renders its own fixed internal format; we add the S16-native-plus-
// converter-wrapper layer spec.md §4.6 requires since the teacher never
// needed more than one output format.

package adlmidi

import "math"

const maxChunkFrames = 1024

// SampleFormat enumerates the output encodings Renderer.GenerateFormat can
// produce from its internal S16 stereo stream.
type SampleFormat int

const (
	FormatS16 SampleFormat = iota
	FormatU8
	FormatS8
	FormatU16
	FormatS32
	FormatF32
)

// scheduledEvent is one MIDI event queued for delivery at a future tick,
// used by TickEvents/Generate's event-delivery loop.
type scheduledEvent struct {
	atTick int64
	apply  func()
}

// Renderer drives VoiceAllocator/ChipFrontend/AutoArpeggio through the
// generate and tick_events loops of spec.md §4.6.
type Renderer struct {
	sampleRate uint32
	frontend   *ChipFrontend
	allocator  *VoiceAllocator
	arpeggio   *AutoArpeggio

	currentTick int64
	events      []scheduledEvent

	gain float32

	scratch []int16
}

// NewRenderer builds a Renderer at the given sample rate driving the given
// frontend/allocator/arpeggio trio. gain defaults to spec.md's 2.0x.
func NewRenderer(sampleRate uint32, frontend *ChipFrontend, allocator *VoiceAllocator, arp *AutoArpeggio) *Renderer {
	return &Renderer{
		sampleRate: sampleRate,
		frontend:   frontend,
		allocator:  allocator,
		arpeggio:   arp,
		gain:       2.0,
		scratch:    make([]int16, maxChunkFrames*2),
	}
}

// SetGain overrides the global post-mix gain multiplier.
func (r *Renderer) SetGain(gain float32) {
	r.gain = gain
}

// ScheduleEvent queues apply to run no later than the frame at atTick
// (absolute sample count), matching the "events timestamped at or before
// the start of frame N become audible no later than frame N" ordering
// guarantee.
func (r *Renderer) ScheduleEvent(atTick int64, apply func()) {
	r.events = append(r.events, scheduledEvent{atTick: atTick, apply: apply})
}

func (r *Renderer) deliverDueEvents(upToTick int64) {
	if len(r.events) == 0 {
		return
	}
	remaining := r.events[:0]
	for _, e := range r.events {
		if e.atTick <= upToTick {
			e.apply()
		} else {
			remaining = append(remaining, e)
		}
	}
	r.events = remaining
}

// Generate implements spec.md §4.6 mode A: pulls frames of stereo S16
// samples into dest (len(dest) must be >= frames*2), delivering due events
// at each chunk boundary and advancing the allocator/arpeggiator clocks in
// lockstep with the chip. The allocate callback passed to the arpeggiator
// always returns -1, so notes queued in AutoArpeggio are cycled through but
// never keyed on a voice.
func (r *Renderer) Generate(dest []int16, frames int) {
	remaining := frames
	pos := 0
	for remaining > 0 {
		r.deliverDueEvents(r.currentTick)

		n := remaining
		if n > maxChunkFrames {
			n = maxChunkFrames
		}

		chunk := dest[pos*2 : (pos+n)*2]
		r.frontend.Generate(chunk, n)

		r.allocator.Tick(int64(n))
		if r.arpeggio != nil {
			r.arpeggio.Advance(n, func(voice int) {
				r.allocator.Release(voice, false)
			}, func(arpeggioNote) int { return -1 })
		}

		r.currentTick += int64(n)
		pos += n
		remaining -= n
	}
}

// TickEvents implements spec.md §4.6 mode B: delivers every event due
// within deltaSeconds and reports the time in seconds until the next
// pending event (or a large sentinel if none are queued), never less than
// minDelay.
func (r *Renderer) TickEvents(deltaSeconds, minDelay float64) float64 {
	horizonTicks := r.currentTick + int64(deltaSeconds*float64(r.sampleRate))
	r.deliverDueEvents(horizonTicks)
	r.currentTick = horizonTicks

	const noEventSentinel = 3600.0
	next := noEventSentinel
	for _, e := range r.events {
		dt := float64(e.atTick-r.currentTick) / float64(r.sampleRate)
		if dt < next {
			next = dt
		}
	}
	if next < minDelay {
		next = minDelay
	}
	return next
}

// GenerateFormat renders frames of audio and converts from internal S16 to
// the requested output format with the configured gain and saturation,
// writing raw bytes into dest (little-endian, except where noted).
func (r *Renderer) GenerateFormat(dest []byte, frames int, format SampleFormat, bigEndian bool) {
	if cap(r.scratch) < frames*2 {
		r.scratch = make([]int16, frames*2)
	}
	buf := r.scratch[:frames*2]
	r.Generate(buf, frames)

	bytesPerSample := formatByteWidth(format)
	for i := 0; i < frames*2; i++ {
		v := float32(buf[i]) * r.gain
		off := i * bytesPerSample
		writeFormattedSample(dest[off:off+bytesPerSample], v, format, bigEndian)
	}
}

func formatByteWidth(format SampleFormat) int {
	switch format {
	case FormatU8, FormatS8:
		return 1
	case FormatU16, FormatS16:
		return 2
	case FormatS32, FormatF32:
		return 4
	default:
		return 2
	}
}

func writeFormattedSample(dest []byte, v float32, format SampleFormat, bigEndian bool) {
	switch format {
	case FormatU8:
		s := clampI16(v)
		dest[0] = byte(int16(s)/256 + 128)
	case FormatS8:
		s := clampI16(v)
		dest[0] = byte(int16(s) / 256)
	case FormatS16:
		putI16(dest, clampI16(v), bigEndian)
	case FormatU16:
		s := int32(clampI16(v)) + 32768
		putU16(dest, uint16(s), bigEndian)
	case FormatS32:
		s := int32(clampI16(v)) << 16
		putI32(dest, s, bigEndian)
	case FormatF32:
		f := v / 32768
		putF32(dest, f, bigEndian)
	}
}

func clampI16(v float32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

func putI16(dest []byte, v int16, bigEndian bool) {
	u := uint16(v)
	if bigEndian {
		dest[0], dest[1] = byte(u>>8), byte(u)
	} else {
		dest[0], dest[1] = byte(u), byte(u>>8)
	}
}

func putU16(dest []byte, u uint16, bigEndian bool) {
	if bigEndian {
		dest[0], dest[1] = byte(u>>8), byte(u)
	} else {
		dest[0], dest[1] = byte(u), byte(u>>8)
	}
}

func putI32(dest []byte, v int32, bigEndian bool) {
	u := uint32(v)
	if bigEndian {
		dest[0], dest[1], dest[2], dest[3] = byte(u>>24), byte(u>>16), byte(u>>8), byte(u)
	} else {
		dest[0], dest[1], dest[2], dest[3] = byte(u), byte(u>>8), byte(u>>16), byte(u>>24)
	}
}

func putF32(dest []byte, f float32, bigEndian bool) {
	putI32(dest, int32(math.Float32bits(f)), bigEndian)
}
