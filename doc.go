// Package adlmidi implements a software MIDI-to-FM translation engine that
// drives one or more emulated Yamaha OPL2/OPL3 (YMF262) chips.
//
// The package owns the MIDI channel model, the OPL voice allocator, the
// per-note register translation layer, the instrument bank model, and a
// real-time sample renderer. Chip emulation itself is pluggable behind the
// ChipEmulator interface; Synth ships a native FM chip implementation but
// host applications may supply their own (Nuked OPL3, DOSBox, etc.) as long
// as it satisfies the register/sample contract.
package adlmidi
