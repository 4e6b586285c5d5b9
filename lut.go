// lut.go - fast transcendental lookups for the native FM core.
//
// Grounded directly on audio_lut.go: the teacher precomputes a sine table
// and a tanh table at init() and interpolates between entries rather than
// calling math.Sin/math.Tanh on the hot path. We keep the same table sizes
// and linear-interpolation approach; the FM operator also needs to turn an
// attenuation into a linear amplitude (2^(-x/256)), which the teacher's chip
// never needed, so that table is added here in the same style.

package adlmidi

import "math"

const (
	sineLUTSize = 8192
	sineLUTMask = sineLUTSize - 1

	expLUTSize = 256
)

var sineLUT [sineLUTSize]float32

// expLUT maps an 8-bit attenuation fraction to 2^(-x/256), used to turn a
// TL/envelope attenuation level into a linear amplitude multiplier.
var expLUT [expLUTSize]float32

func init() {
	for i := 0; i < sineLUTSize; i++ {
		phase := (float64(i) / float64(sineLUTSize)) * 2 * math.Pi
		sineLUT[i] = float32(math.Sin(phase))
	}
	for i := 0; i < expLUTSize; i++ {
		expLUT[i] = float32(math.Exp2(-float64(i) / 256.0))
	}
}

// fastSin returns sin(phase) for phase expressed as a 0..1 fraction of a
// full cycle, interpolating between adjacent LUT entries.
func fastSin(phase float32) float32 {
	f := phase - float32(int32(phase))
	if f < 0 {
		f++
	}
	pos := f * float32(sineLUTSize)
	i0 := int32(pos) & sineLUTMask
	i1 := (i0 + 1) & sineLUTMask
	frac := pos - float32(int32(pos))
	return sineLUT[i0] + (sineLUT[i1]-sineLUT[i0])*frac
}

// attenToLinear converts a non-negative attenuation value expressed in
// 1/256-dB-like units (the OPL envelope's internal unit) to a linear [0,1]
// amplitude multiplier.
func attenToLinear(atten float32) float32 {
	if atten >= float32(expLUTSize)-1 {
		return 0
	}
	if atten < 0 {
		atten = 0
	}
	i0 := int32(atten)
	i1 := i0 + 1
	if i1 >= expLUTSize {
		i1 = expLUTSize - 1
	}
	frac := atten - float32(i0)
	return expLUT[i0] + (expLUT[i1]-expLUT[i0])*frac
}
