// chip_emulator.go - the OPL2/OPL3 chip contract and the emulator registry.

package adlmidi

// ChipType identifies the hardware generation an emulator models.
type ChipType int

const (
	ChipOPL2 ChipType = iota
	ChipOPL3
)

// ChipEmulator is the narrow contract the core requires from any OPL2/OPL3
// emulator core. The core never assumes anything about an emulator's
// internal buffering beyond: a WriteReg performed before a Generate call is
// observable in the samples that call produces.
//
// Implementations are not required to be safe for concurrent use; a Synth
// owns its chips exclusively and drives them from a single goroutine.
type ChipEmulator interface {
	// SetRate reconfigures the output sample rate. May discard internal state.
	SetRate(sampleRate uint32)
	// Reset performs a full chip reset.
	Reset()
	// WriteReg writes an OPL register. On OPL3, addr's bit 8 (0x100) selects
	// the second register bank.
	WriteReg(addr uint16, value uint8)
	// WritePan writes a soft-pan register for emulators that support it.
	// Implementations that don't support soft panning treat this as a no-op.
	WritePan(addr uint16, value uint8)
	// Generate produces frames stereo samples (interleaved L,R) into out.
	// len(out) must be >= frames*2.
	Generate(out []int16, frames int)
	// GenerateAndMix is identical to Generate but additively mixes into the
	// existing contents of out, for layering multiple chips into one stream.
	GenerateAndMix(out []int16, frames int)
	// HasFullPanning reports whether WritePan has an effect.
	HasFullPanning() bool
	// ChipType reports which hardware generation this emulator models.
	ChipType() ChipType
}

// EmulatorFactory constructs a fresh ChipEmulator instance for a given
// sample rate. Registered factories let callers select an emulator by name
// (e.g. from SynthConfig) without the core importing every possible backend.
type EmulatorFactory func(sampleRate uint32) ChipEmulator

var emulatorRegistry = map[string]EmulatorFactory{}

// RegisterEmulator makes an emulator factory available to Synth by name.
// Host applications wiring in a third-party core (Nuked OPL3, DOSBox, Opal,
// ESFMu, YMFM) call this during their own init.
func RegisterEmulator(name string, factory EmulatorFactory) {
	emulatorRegistry[name] = factory
}

func init() {
	RegisterEmulator("native", func(sampleRate uint32) ChipEmulator {
		return NewNativeFMChip(sampleRate)
	})
}

// NewEmulator instantiates a registered emulator by name. Returns a
// BadConfiguration error if the name is unknown.
func NewEmulator(name string, sampleRate uint32) (ChipEmulator, error) {
	factory, ok := emulatorRegistry[name]
	if !ok {
		return nil, &SynthError{Kind: ErrBadConfiguration, Message: "unknown emulator: " + name}
	}
	return factory(sampleRate), nil
}
