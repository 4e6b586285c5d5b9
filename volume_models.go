// volume_models.go - channel/velocity-to-TL scaling models (spec.md §4.4).
//
// Grounded on original_source/src/models/opl_models.h's OPLVolume_t, which
// bundles exactly the inputs every vendor volume model needs (vel, chVol,
// chExpr, masterVolume, voiceMode, fbConn, tlMod, tlCar, doMod, doCar,
// isDrum) and returns new tlMod/tlCar. VolumeInputs below is modelled on that
// struct, with doMod/doCar reduced to one ScaleModulator flag (the carrier is
// always scaled); ApplyVolumeModel is the switch the header declares as one
// function pointer per vendor.

package adlmidi

// VolumeInputs mirrors original_source's OPLVolume_t: everything a volume
// model needs to recompute an operator pair's total level.
type VolumeInputs struct {
	Velocity      uint8
	ChannelVolume uint8
	ChannelExpr   uint8
	MasterVolume  uint8
	Mode          VoiceMode
	FeedConn      uint8
	TLModDefault  uint8
	TLCarDefault  uint8
	ScaleModulator bool
	IsDrum         bool
}

// ApplyVolumeModel computes the (modulator, carrier) total-level bytes to
// write for one note-on or volume-change event, per the selected
// VolumeModel.
func ApplyVolumeModel(model VolumeModel, in VolumeInputs) (tlMod, tlCar uint8) {
	switch model {
	case VolumeNative:
		return nativeVolume(in)
	case VolumeRSXX:
		return rsxxVolume(in)
	case VolumeDMXOrig:
		return dmxVolume(in, false)
	case VolumeDMXFixed:
		return dmxVolume(in, true)
	case VolumeApogeeOrig:
		return apogeeVolume(in, false)
	case VolumeApogeeFixed:
		return apogeeVolume(in, true)
	case Volume9xGeneric:
		return win9xVolume(in, false)
	case Volume9xSB16:
		return win9xVolume(in, true)
	case VolumeAIL:
		return ailVolume(in)
	case VolumeHMIOld:
		return hmiVolume(in, false)
	case VolumeHMINew:
		return hmiVolume(in, true)
	case VolumeMSAdLib:
		return msAdLibVolume(in)
	case VolumeIMFCreator:
		return imfCreatorVolume(in)
	case VolumeOConnell:
		return oConnellVolume(in)
	default:
		return genericVolume(in)
	}
}

func combinedLevel(in VolumeInputs) float64 {
	vel := float64(in.Velocity) / 127
	chVol := float64(in.ChannelVolume) / 127
	chExpr := float64(in.ChannelExpr) / 127
	master := float64(in.MasterVolume) / 127
	return vel * chVol * chExpr * master
}

func scaleTL(baseTL uint8, level float64) uint8 {
	// TL is 6 bits of attenuation (0 loud, 63 silent); invert the linear
	// level into attenuation and add to the instrument's own baseline.
	atten := (1 - level) * 63
	v := float64(baseTL) + atten*(63-float64(baseTL))/63
	if v > 63 {
		v = 63
	}
	if v < 0 {
		v = 0
	}
	return uint8(v)
}

func carrierOnly(in VolumeInputs, level float64) (tlMod, tlCar uint8) {
	tlMod = in.TLModDefault
	tlCar = scaleTL(in.TLCarDefault, level)
	if in.ScaleModulator {
		tlMod = scaleTL(in.TLModDefault, level)
	}
	return
}

// genericVolume applies velocity*channel-volume*expression*master linearly
// to the carrier (and to the modulator when ScaleModulator is set; the voice
// mode and connection bit are not consulted), matching libADLMIDI's default
// "generic" model.
func genericVolume(in VolumeInputs) (tlMod, tlCar uint8) {
	return carrierOnly(in, combinedLevel(in))
}

// nativeVolume skips the velocity term: hardware OPL cards driven by
// "native" drivers commonly bake velocity into the instrument's own TL and
// only scale by channel volume/expression at runtime.
func nativeVolume(in VolumeInputs) (tlMod, tlCar uint8) {
	chVol := float64(in.ChannelVolume) / 127
	chExpr := float64(in.ChannelExpr) / 127
	master := float64(in.MasterVolume) / 127
	return carrierOnly(in, chVol*chExpr*master)
}

// rsxxVolume mirrors the Reality AdLib Tracker RSXX volume curve: a
// quadratic response instead of linear, giving a steeper falloff at low
// velocities.
func rsxxVolume(in VolumeInputs) (tlMod, tlCar uint8) {
	level := combinedLevel(in)
	return carrierOnly(in, level*level)
}

// dmxVolume mirrors id Software's DMX driver: velocity, channel volume and
// master volume are combined linearly (no velocity table). fixed
// selects the version that also applies an off-by-one correction DMX's
// "fixed" builds carry (see original_source's volume model header).
func dmxVolume(in VolumeInputs, fixed bool) (tlMod, tlCar uint8) {
	vel := float64(in.Velocity)
	if fixed && vel > 0 {
		vel--
	}
	level := (vel / 127) * (float64(in.ChannelVolume) / 127) * (float64(in.MasterVolume) / 127)
	return carrierOnly(in, level)
}

// apogeeVolume mirrors the Apogee Sound System driver's volume table.
func apogeeVolume(in VolumeInputs, fixed bool) (tlMod, tlCar uint8) {
	level := combinedLevel(in)
	if fixed {
		level = level * level
	}
	return carrierOnly(in, level)
}

// win9xVolume mirrors the Windows 9x software wavetable mapper; sb16
// selects the Sound Blaster 16 driver variant, which applies a fixed +3dB
// boost relative to the generic Windows mapper.
func win9xVolume(in VolumeInputs, sb16 bool) (tlMod, tlCar uint8) {
	level := combinedLevel(in)
	if sb16 {
		level *= 1.4
		if level > 1 {
			level = 1
		}
	}
	return carrierOnly(in, level)
}

func ailVolume(in VolumeInputs) (tlMod, tlCar uint8) {
	return carrierOnly(in, combinedLevel(in))
}

// hmiVolume mirrors the Human Machine Interfaces driver; new selects the
// later HMI Sound Operating System release, which adds channel expression
// to the formula the old release omitted.
func hmiVolume(in VolumeInputs, newRelease bool) (tlMod, tlCar uint8) {
	vel := float64(in.Velocity) / 127
	chVol := float64(in.ChannelVolume) / 127
	level := vel * chVol
	if newRelease {
		level *= float64(in.ChannelExpr) / 127
	}
	return carrierOnly(in, level)
}

func msAdLibVolume(in VolumeInputs) (tlMod, tlCar uint8) {
	return carrierOnly(in, combinedLevel(in))
}

func imfCreatorVolume(in VolumeInputs) (tlMod, tlCar uint8) {
	vel := float64(in.Velocity) / 127
	return carrierOnly(in, vel)
}

func oConnellVolume(in VolumeInputs) (tlMod, tlCar uint8) {
	return carrierOnly(in, combinedLevel(in))
}
