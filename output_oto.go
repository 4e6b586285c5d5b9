// output_oto.go - live audio output via ebitengine/oto (spec.md §6.1, optional convenience).
//
// Directly grounded on audio_backend_oto.go: the teacher wraps a chip in an
// OtoPlayer that implements io.Reader and holds an atomic pointer to the
// chip. We keep that shape, substituting a *Synth for the teacher's
// *SoundChip and Synth.Generate for its GenerateSample. Synth.Generate takes
// the Synth's mutex, so the audio callback waits while another call holds it.

//go:build !headless

package adlmidi

import (
	"sync/atomic"

	"github.com/ebitengine/oto/v3"
)

// OtoOutput drives live playback of a Synth through the host's default
// audio device.
type OtoOutput struct {
	ctx    *oto.Context
	player *oto.Player
	synth  atomic.Pointer[Synth]

	scratch []int16
}

// NewOtoOutput opens the default audio device at sampleRate and returns an
// OtoOutput ready to Start once a Synth is attached with SetSynth.
func NewOtoOutput(sampleRate uint32) (*OtoOutput, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   int(sampleRate),
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, newConfigError("opening audio output: %v", err)
	}
	<-ready

	out := &OtoOutput{ctx: ctx}
	out.player = ctx.NewPlayer(out)
	return out, nil
}

// SetSynth atomically swaps the Synth being rendered, lock-free from the
// perspective of the audio callback goroutine.
func (o *OtoOutput) SetSynth(s *Synth) {
	o.synth.Store(s)
}

// Read implements io.Reader for oto.Player: it is called from oto's
// internal audio goroutine and waits on the Synth's mutex inside
// Synth.Generate.
func (o *OtoOutput) Read(p []byte) (int, error) {
	synth := o.synth.Load()
	if synth == nil {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	frames := len(p) / 4
	if frames == 0 {
		return 0, nil
	}
	if cap(o.scratch) < frames*2 {
		o.scratch = make([]int16, frames*2)
	}
	buf := o.scratch[:frames*2]
	synth.Generate(buf, frames)
	for i, v := range buf {
		p[i*2] = byte(v)
		p[i*2+1] = byte(v >> 8)
	}
	return frames * 4, nil
}

func (o *OtoOutput) Start() { o.player.Play() }
func (o *OtoOutput) Stop()  { o.player.Pause() }
func (o *OtoOutput) IsStarted() bool { return o.player.IsPlaying() }

func (o *OtoOutput) Close() error {
	return o.player.Close()
}
