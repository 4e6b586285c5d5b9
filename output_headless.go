// output_headless.go - no-op output backend for headless builds.
//
// Grounded on the teacher's headless build variant of audio_backend_oto.go:
// CI/server builds tagged `headless` get a backend with the same method
// surface that drops samples instead of opening a device.

//go:build headless

package adlmidi

// OtoOutput is a no-op stand-in used when the package is built with the
// headless tag (no system audio device available).
type OtoOutput struct {
	synth *Synth
}

func NewOtoOutput(sampleRate uint32) (*OtoOutput, error) {
	return &OtoOutput{}, nil
}

func (o *OtoOutput) SetSynth(s *Synth)  { o.synth = s }
func (o *OtoOutput) Start()             {}
func (o *OtoOutput) Stop()              {}
func (o *OtoOutput) IsStarted() bool    { return false }
func (o *OtoOutput) Close() error       { return nil }
