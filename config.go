// config.go - declarative synth configuration (AMBIENT STACK: config, SPEC_FULL.md).
//
// Grounded on doismellburning/samoyed and mukunda/modlib, both of which
// load a top-level options struct with gopkg.in/yaml.v3 tags rather than
// parsing flags by hand. SynthConfig collects every field
// NewSynth would otherwise take as positional arguments, so
// a host can keep one checked-in YAML file per deployment profile (e.g.
// "dos-compat.yaml" selecting DMX frequency/volume models) and load it with
// LoadSynthConfig.

package adlmidi

import (
	"os"

	"gopkg.in/yaml.v3"
)

// SynthConfig is the full set of load-time options a Synth accepts.
type SynthConfig struct {
	SampleRate uint32 `yaml:"sample_rate"`
	NumChips   int    `yaml:"num_chips"`
	NumFourOps int    `yaml:"num_four_ops"`
	Emulator   string `yaml:"emulator"`

	VolumeModel    string `yaml:"volume_model"`
	FrequencyModel string `yaml:"frequency_model"`
	ChannelAlloc   string `yaml:"channel_alloc"`

	SoftPanEnabled      bool `yaml:"soft_pan_enabled"`
	ScaleModulators     bool `yaml:"scale_modulators"`
	FullRangeBrightness bool `yaml:"full_range_brightness"`
	AutoArpeggio        bool `yaml:"auto_arpeggio"`

	// HTremolo/HVibrato force the 0xBD deep-tremolo/deep-vibrato bits on (1)
	// or off (0); -1 leaves them to the loaded bank's BankSetup (spec.md §3).
	HTremolo int8 `yaml:"htremolo"`
	HVibrato int8 `yaml:"hvibrato"`

	// RhythmMode pre-enables OPL rhythm mode at load time; it is also
	// auto-enabled the first time a FlagRhythmMode instrument is played.
	RhythmMode bool `yaml:"rhythm_mode"`

	BankFile string `yaml:"bank_file"`
	Gain     float32 `yaml:"gain"`
}

// DefaultSynthConfig returns the GM-compatible defaults spec.md §6.1/§7
// describe (generic frequency/volume model, OffDelay allocation, 1 chip,
// no 4-op, 2.0x gain).
func DefaultSynthConfig() SynthConfig {
	return SynthConfig{
		SampleRate:     49716,
		NumChips:       1,
		NumFourOps:     0,
		Emulator:       "native",
		VolumeModel:    "generic",
		FrequencyModel: "generic",
		ChannelAlloc:   "off_delay",
		HTremolo:       -1,
		HVibrato:       -1,
		Gain:           2.0,
	}
}

// LoadSynthConfig reads a YAML configuration file, starting from
// DefaultSynthConfig so a partial file only overrides the fields it names.
func LoadSynthConfig(path string) (SynthConfig, error) {
	cfg := DefaultSynthConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, newConfigError("reading config %s: %v", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, newConfigError("parsing config %s: %v", path, err)
	}
	return cfg, nil
}

func parseVolumeModelName(name string) VolumeModel {
	switch name {
	case "native":
		return VolumeNative
	case "rsxx":
		return VolumeRSXX
	case "dmx_orig":
		return VolumeDMXOrig
	case "dmx_fixed":
		return VolumeDMXFixed
	case "apogee_orig":
		return VolumeApogeeOrig
	case "apogee_fixed":
		return VolumeApogeeFixed
	case "9x_generic":
		return Volume9xGeneric
	case "9x_sb16":
		return Volume9xSB16
	case "ail":
		return VolumeAIL
	case "hmi_old":
		return VolumeHMIOld
	case "hmi_new":
		return VolumeHMINew
	case "ms_adlib":
		return VolumeMSAdLib
	case "imf_creator":
		return VolumeIMFCreator
	case "oconnell":
		return VolumeOConnell
	default:
		return VolumeGeneric
	}
}

func parseFrequencyModelName(name string) FrequencyModel {
	switch name {
	case "dmx":
		return FreqDMX
	case "apogee":
		return FreqApogee
	case "win9x":
		return FreqWin9x
	case "hmi":
		return FreqHMI
	case "ail":
		return FreqAIL
	case "ms_adlib":
		return FreqMSAdLib
	case "oconnell":
		return FreqOConnell
	default:
		return FreqGeneric
	}
}

func parseChannelAllocName(name string) ChanAlloc {
	switch name {
	case "same_instrument":
		return AllocSameInstrument
	case "any_released":
		return AllocAnyReleased
	default:
		return AllocOffDelay
	}
}
