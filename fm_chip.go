// fm_chip.go - a native OPL2/OPL3-compatible FM chip emulator.
//
// This is the default ChipEmulator registered under the "native" name. It is
// not a bit-exact reproduction of the YMF262 die (spec.md explicitly treats
// chip emulation as pluggable and does not require one); it implements the
// same register layout, 2-op/4-op connection algorithms, and rhythm-mode
// mapping a host driving real OPL3 hardware would see, using the teacher's
// audio_chip.go envelope/oscillator style: a fixed-function per-operator
// state machine driven by register writes, advanced one sample at a time,
// with sinLUT/attenToLinear (lut.go, grounded on audio_lut.go) standing in
// for the teacher's fastSin/fastTanh.

package adlmidi

const (
	numBanks      = 2
	chansPerBank  = 9
	slotsPerBank  = 22
	opsPerChannel = 2
)

type envStage int

const (
	envAttack envStage = iota
	envDecay
	envSustain
	envRelease
	envOff
)

type fmOperator struct {
	avekm  uint8
	kslTl  uint8
	attDec uint8
	susRel uint8
	wave   uint8

	phase      float32
	phaseIncr  float32
	envLevel   float32 // 0 (loud) .. ~96 (silent), attenuation units
	stage      envStage
	keyOn      bool
}

type fmChannel struct {
	fnum     uint16
	block    uint8
	keyOn    bool
	feedConn uint8
	panL     bool
	panR     bool
	feedback [2]float32 // last two modulator outputs, for self-feedback
}

// NativeFMChip is the package's built-in software OPL2/OPL3 emulator.
type NativeFMChip struct {
	sampleRate uint32

	ops  [numBanks][slotsPerBank]fmOperator
	chans [numBanks][chansPerBank]fmChannel

	opl3Enabled  bool
	fourOpMask   uint8 // bits 0-5: 3 pairs per bank
	rhythmMode   bool
	tremoloDeep  bool
	vibratoDeep  bool
	rhythmBits   uint8

	lfoPhase float32
}

// NewNativeFMChip constructs a NativeFMChip at the given sample rate.
func NewNativeFMChip(sampleRate uint32) *NativeFMChip {
	c := &NativeFMChip{}
	c.SetRate(sampleRate)
	c.Reset()
	return c
}

func (c *NativeFMChip) SetRate(sampleRate uint32) {
	if sampleRate == 0 {
		sampleRate = 49716
	}
	c.sampleRate = sampleRate
	for b := 0; b < numBanks; b++ {
		for ch := 0; ch < chansPerBank; ch++ {
			c.updateChannelFreq(b, ch)
		}
	}
}

func (c *NativeFMChip) Reset() {
	*c = NativeFMChip{sampleRate: c.sampleRate}
	if c.sampleRate == 0 {
		c.sampleRate = 49716
	}
	for b := 0; b < numBanks; b++ {
		for s := 0; s < slotsPerBank; s++ {
			c.ops[b][s].stage = envOff
			c.ops[b][s].envLevel = 96
		}
		for ch := 0; ch < chansPerBank; ch++ {
			c.chans[b][ch].panL = true
			c.chans[b][ch].panR = true
		}
	}
}

func (c *NativeFMChip) ChipType() ChipType { return ChipOPL3 }
func (c *NativeFMChip) HasFullPanning() bool { return true }

// slotOffsetValid reports whether a within-bank register offset (0-21)
// addresses a real operator slot. OPL3's operator offsets skip 2 of every
// 8 (the hardware reuses the address space of a notional 4-operator-per-
// channel layout that OPL2/OPL3 never fully populate).
func slotOffsetValid(off int) bool {
	if off < 0 || off >= slotsPerBank {
		return false
	}
	return off%8 < 6
}

// channelOfSlot returns the channel index (0-8) and slot-within-channel
// (0=modulator,1=carrier) for a within-bank operator offset, mirroring the
// real OPL2/OPL3 address layout: channel n's operators sit at
// (n/3)*8+(n%3) and that plus 3.
func channelOfSlot(off int) (ch int, which int, ok bool) {
	group := off / 8
	pos := off % 8
	if group > 2 || pos > 5 {
		return 0, 0, false
	}
	which = pos / 3
	ch = group*3 + pos%3
	return ch, which, true
}

func channelOperatorOffsets(ch int) (mod, car int) {
	group := ch / 3
	pos := ch % 3
	mod = group*8 + pos
	return mod, mod + 3
}

func (c *NativeFMChip) WriteReg(addr uint16, value uint8) {
	bank := 0
	if addr&0x100 != 0 {
		bank = 1
	}
	reg := int(addr & 0xFF)

	switch {
	case reg == 0x04 && bank == 1:
		c.fourOpMask = value & 0x3F
		return
	case reg == 0x05 && bank == 1:
		c.opl3Enabled = value&0x01 != 0
		return
	case reg == 0xBD && bank == 0:
		c.tremoloDeep = value&0x80 != 0
		c.vibratoDeep = value&0x40 != 0
		c.rhythmMode = value&0x20 != 0
		c.rhythmBits = value & 0x1F
		return
	case reg >= 0x20 && reg <= 0x35:
		if off := reg - 0x20; slotOffsetValid(off) {
			c.ops[bank][off].avekm = value
			c.recalcOperatorPhaseIncr(bank, off)
		}
		return
	case reg >= 0x40 && reg <= 0x55:
		if off := reg - 0x40; slotOffsetValid(off) {
			c.ops[bank][off].kslTl = value
		}
		return
	case reg >= 0x60 && reg <= 0x75:
		if off := reg - 0x60; slotOffsetValid(off) {
			c.ops[bank][off].attDec = value
		}
		return
	case reg >= 0x80 && reg <= 0x95:
		if off := reg - 0x80; slotOffsetValid(off) {
			c.ops[bank][off].susRel = value
		}
		return
	case reg >= 0xE0 && reg <= 0xF5:
		if off := reg - 0xE0; slotOffsetValid(off) {
			wave := value & 0x07
			if !c.opl3Enabled {
				wave &= 0x03
			}
			c.ops[bank][off].wave = wave
		}
		return
	case reg >= 0xA0 && reg <= 0xA8:
		ch := reg - 0xA0
		c.chans[bank][ch].fnum = (c.chans[bank][ch].fnum &^ 0xFF) | uint16(value)
		c.updateChannelFreq(bank, ch)
		return
	case reg >= 0xB0 && reg <= 0xB8:
		ch := reg - 0xB0
		c.chans[bank][ch].fnum = (c.chans[bank][ch].fnum & 0xFF) | (uint16(value&0x03) << 8)
		c.chans[bank][ch].block = (value >> 2) & 0x07
		keyOn := value&0x20 != 0
		c.setChannelKeyOn(bank, ch, keyOn)
		c.updateChannelFreq(bank, ch)
		return
	case reg >= 0xC0 && reg <= 0xC8:
		ch := reg - 0xC0
		c.chans[bank][ch].feedConn = value & 0x0F
		c.chans[bank][ch].panL = value&0x10 != 0
		c.chans[bank][ch].panR = value&0x20 != 0
		if !c.opl3Enabled {
			c.chans[bank][ch].panL = true
			c.chans[bank][ch].panR = true
		}
		return
	default:
		logBadRegister(addr)
	}
}

// WritePan applies a finer-grained stereo position than the 2-bit L/R
// enable bits support. addr selects (bank, channel) exactly as WriteReg's
// 0xC0 range; value 0 is hard left, 255 hard right, 128 centre. The native
// chip only has binary L/R hardware panning, so this degrades to the
// nearest side but keeps both channels enabled near centre.
func (c *NativeFMChip) WritePan(addr uint16, value uint8) {
	bank := 0
	if addr&0x100 != 0 {
		bank = 1
	}
	reg := int(addr & 0xFF)
	if reg < 0xC0 || reg > 0xC8 {
		return
	}
	ch := reg - 0xC0
	switch {
	case value < 96:
		c.chans[bank][ch].panL, c.chans[bank][ch].panR = true, false
	case value > 160:
		c.chans[bank][ch].panL, c.chans[bank][ch].panR = false, true
	default:
		c.chans[bank][ch].panL, c.chans[bank][ch].panR = true, true
	}
}

func (c *NativeFMChip) setChannelKeyOn(bank, ch int, on bool) {
	ch2 := &c.chans[bank][ch]
	if ch2.keyOn == on {
		return
	}
	ch2.keyOn = on
	mod, car := channelOperatorOffsets(ch)
	c.setOperatorKeyOn(bank, mod, on)
	c.setOperatorKeyOn(bank, car, on)
}

func (c *NativeFMChip) setOperatorKeyOn(bank, off int, on bool) {
	op := &c.ops[bank][off]
	op.keyOn = on
	if on {
		op.stage = envAttack
		op.phase = 0
	} else if op.stage != envOff {
		op.stage = envRelease
	}
}

func (c *NativeFMChip) recalcOperatorPhaseIncr(bank, off int) {
	ch, which, ok := channelOfSlot(off)
	if !ok {
		return
	}
	_ = which
	c.updateChannelFreq(bank, ch)
}

// updateChannelFreq recomputes both operators' phase increments from a
// channel's (fnum, block) pair, using the standard OPL frequency relation
// Hz = fnum * 2^(block-20) * referenceClock with referenceClock the
// 49716Hz OPL3 reference rate.
func (c *NativeFMChip) updateChannelFreq(bank, ch int) {
	fnum := float64(c.chans[bank][ch].fnum)
	block := float64(c.chans[bank][ch].block)
	freqHz := fnum * pow2(block-20) * 49716.0
	mod, car := channelOperatorOffsets(ch)
	c.setOperatorFreq(bank, mod, freqHz)
	c.setOperatorFreq(bank, car, freqHz)
}

func (c *NativeFMChip) setOperatorFreq(bank, off int, baseHz float64) {
	op := &c.ops[bank][off]
	mult := multiplierTable[op.avekm&0x0F]
	hz := baseHz * mult
	op.phaseIncr = float32(hz / float64(c.sampleRate))
}

func pow2(x float64) float64 {
	result := 1.0
	if x >= 0 {
		for i := 0.0; i < x; i++ {
			result *= 2
		}
		return result * pow2frac(x-float64(int(x)))
	}
	for i := 0.0; i > x; i-- {
		result /= 2
	}
	return result * pow2frac(x-float64(int(x)))
}

func pow2frac(f float64) float64 {
	// first-order correction for the fractional block/fnum exponent.
	return 1.0 + 0.6931471805599453*f
}

var multiplierTable = [16]float64{
	0.5, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 10, 12, 12, 15, 15,
}

const envRate = 96.0 / 0.05 // attenuation units per second, one reference speed

func (c *NativeFMChip) advanceEnvelope(op *fmOperator, dt float32) {
	switch op.stage {
	case envAttack:
		rate := 4 + float32(op.attDec>>4)
		op.envLevel -= rate * envRate * dt / 16
		if op.envLevel <= 0 {
			op.envLevel = 0
			op.stage = envDecay
		}
	case envDecay:
		sustainLevel := float32(op.susRel>>4) * 3
		rate := 1 + float32(op.attDec&0x0F)
		op.envLevel += rate * envRate * dt / 48
		if op.envLevel >= sustainLevel {
			op.envLevel = sustainLevel
			op.stage = envSustain
		}
	case envSustain:
		if op.avekm&0x20 == 0 { // EG type 0: sustaining note still decays
			rate := 1 + float32(op.susRel&0x0F)
			op.envLevel += rate * envRate * dt / 96
		}
	case envRelease:
		rate := 1 + float32(op.susRel&0x0F)
		op.envLevel += rate * envRate * dt / 48
		if op.envLevel >= 96 {
			op.envLevel = 96
			op.stage = envOff
		}
	}
	if op.envLevel > 96 {
		op.envLevel = 96
	}
	if op.envLevel < 0 {
		op.envLevel = 0
	}
}

func (c *NativeFMChip) operatorSample(bank, off int, modInput float32) float32 {
	op := &c.ops[bank][off]
	dt := 1.0 / float32(c.sampleRate)
	c.advanceEnvelope(op, dt)

	op.phase += op.phaseIncr + modInput
	op.phase -= float32(int32(op.phase))
	if op.phase < 0 {
		op.phase++
	}

	raw := waveform(op.wave, op.phase)
	tl := float32(op.kslTl & 0x3F)
	atten := tl + op.envLevel
	return raw * attenToLinear(atten)
}

func waveform(wave uint8, phase float32) float32 {
	s := fastSin(phase)
	switch wave {
	case 0:
		return s
	case 1:
		if s < 0 {
			return 0
		}
		return s
	case 2:
		if s < 0 {
			return -s
		}
		return s
	case 3:
		if phase < 0.25 {
			return s
		}
		return 0
	default:
		return s
	}
}

func (c *NativeFMChip) fourOpPair(bank, pair int) (first, second int, enabled bool) {
	var bit uint8
	if bank == 0 {
		bit = 1 << uint(pair)
	} else {
		bit = 1 << uint(pair+3)
	}
	return pair, pair + 3, c.opl3Enabled && c.fourOpMask&bit != 0
}

// channelSample2op renders one sample of a single 2-op channel (used both
// standalone and as half of a 4-op voice).
func (c *NativeFMChip) channelSample2op(bank, ch int, feedbackOverride *float32) float32 {
	ch2 := &c.chans[bank][ch]
	mod, car := channelOperatorOffsets(ch)
	fb := ch2.feedConn >> 1 & 0x07
	conn := ch2.feedConn & 0x01

	var modIn float32
	if fb > 0 {
		avg := (ch2.feedback[0] + ch2.feedback[1]) / 2
		modIn = avg * feedbackScale[fb]
	}
	modOut := c.operatorSample(bank, mod, modIn)
	ch2.feedback[1] = ch2.feedback[0]
	ch2.feedback[0] = modOut

	if conn == 1 {
		carOut := c.operatorSample(bank, car, 0)
		return (modOut + carOut) / 2
	}
	carOut := c.operatorSample(bank, car, modOut)
	return carOut
}

var feedbackScale = [8]float32{0, 1.0 / 16, 1.0 / 8, 1.0 / 4, 1.0 / 2, 1, 2, 4}

// channelSample4op renders one pair of channels (first, second) as a single
// 4-op voice using the OPL3 4-op connection algorithm selected by each
// channel's own connection bit.
func (c *NativeFMChip) channelSample4op(bank, first, second int) float32 {
	mod1, car1 := channelOperatorOffsets(first)
	mod2, car2 := channelOperatorOffsets(second)
	ch1 := &c.chans[bank][first]
	ch2 := &c.chans[bank][second]

	fb := ch1.feedConn >> 1 & 0x07
	var modIn float32
	if fb > 0 {
		avg := (ch1.feedback[0] + ch1.feedback[1]) / 2
		modIn = avg * feedbackScale[fb]
	}
	op1Out := c.operatorSample(bank, mod1, modIn)
	ch1.feedback[1] = ch1.feedback[0]
	ch1.feedback[0] = op1Out

	c1 := ch1.feedConn & 0x01
	c2 := ch2.feedConn & 0x01

	switch {
	case c1 == 0 && c2 == 0:
		op2Out := c.operatorSample(bank, car1, op1Out)
		op3Out := c.operatorSample(bank, mod2, op2Out)
		return c.operatorSample(bank, car2, op3Out)
	case c1 == 1 && c2 == 0:
		op2Out := c.operatorSample(bank, car1, 0)
		op3Out := c.operatorSample(bank, mod2, op2Out)
		op4Out := c.operatorSample(bank, car2, op3Out)
		return (op1Out + op4Out) / 2
	case c1 == 0 && c2 == 1:
		op2Out := c.operatorSample(bank, car1, op1Out)
		op3Out := c.operatorSample(bank, mod2, 0)
		op4Out := c.operatorSample(bank, car2, op3Out)
		return (op2Out + op4Out) / 2
	default: // c1 == 1 && c2 == 1
		op2Out := c.operatorSample(bank, car1, 0)
		op3Out := c.operatorSample(bank, mod2, 0)
		op4Out := c.operatorSample(bank, car2, op3Out)
		return (op1Out + op2Out + op4Out) / 3
	}
}

func (c *NativeFMChip) rhythmSample(bank int) (bass, snareCymbalHat float32) {
	// Channels 6,7,8 of bank 0 become BassDrum(2op),Snare/HiHat,Tom/Cymbal
	// when rhythm mode is enabled, per the real OPL2/OPL3 rhythm layout.
	if bank != 0 || !c.rhythmMode {
		return 0, 0
	}
	bd := c.channelSample2op(0, 6, nil)
	sdHh := c.operatorSample(0, 17, 0) + c.operatorSample(0, 20, 0)
	tomCym := c.operatorSample(0, 18, 0) + c.operatorSample(0, 21, 0)
	return bd, sdHh + tomCym
}

func (c *NativeFMChip) generateFrame() (left, right float32) {
	for bank := 0; bank < numBanks; bank++ {
		fourOpUsed := [chansPerBank]bool{}
		for pair := 0; pair < 3; pair++ {
			first, second, enabled := c.fourOpPair(bank, pair)
			if !enabled {
				continue
			}
			fourOpUsed[first] = true
			fourOpUsed[second] = true
			sample := c.channelSample4op(bank, first, second)
			ch1 := &c.chans[bank][first]
			if ch1.panL {
				left += sample
			}
			if ch1.panR {
				right += sample
			}
		}
		for ch := 0; ch < chansPerBank; ch++ {
			if fourOpUsed[ch] {
				continue
			}
			if bank == 0 && c.rhythmMode && ch >= 6 {
				continue
			}
			ch2 := &c.chans[bank][ch]
			sample := c.channelSample2op(bank, ch, nil)
			if ch2.panL {
				left += sample
			}
			if ch2.panR {
				right += sample
			}
		}
		if bank == 0 && c.rhythmMode {
			bd, rest := c.rhythmSample(0)
			left += bd + rest
			right += bd + rest
		}
	}
	return left, right
}

func (c *NativeFMChip) Generate(out []int16, frames int) {
	for i := 0; i < frames; i++ {
		l, r := c.generateFrame()
		out[i*2] = clampSample(l)
		out[i*2+1] = clampSample(r)
	}
}

func (c *NativeFMChip) GenerateAndMix(out []int16, frames int) {
	for i := 0; i < frames; i++ {
		l, r := c.generateFrame()
		out[i*2] = addClampSample(out[i*2], l)
		out[i*2+1] = addClampSample(out[i*2+1], r)
	}
}

func clampSample(f float32) int16 {
	v := f * 4096
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

func addClampSample(existing int16, f float32) int16 {
	v := int32(existing) + int32(f*4096)
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
