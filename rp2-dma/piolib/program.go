package piolib

// Instruction encodings used by the sinks. See the PIO chapter of the RP2040
// datasheet.
const (
	_INSTR_BITS_JMP = 0x0000
	_INSTR_BITS_OUT = 0x6000
	_INSTR_BITS_SET = 0xe000
)

// Source/destination operand of out and set.
type SrcDest uint8

const (
	SrcDestPins    SrcDest = 0
	SrcDestX       SrcDest = 1
	SrcDestY       SrcDest = 2
	SrcDestNull    SrcDest = 3
	SrcDestPinDirs SrcDest = 4
)

func encodeInstrAndArgs(instr uint16, arg1 uint8, arg2 uint8) uint16 {
	return instr | (uint16(arg1) << 5) | uint16(arg2&0x1f)
}

// EncodeOut encodes "out dest, bitCount". A bitCount of 32 is encoded as 0.
func EncodeOut(dest SrcDest, bitCount uint8) uint16 {
	return encodeInstrAndArgs(_INSTR_BITS_OUT, uint8(dest)&7, bitCount)
}

// EncodeSet encodes "set dest, value".
func EncodeSet(dest SrcDest, value uint8) uint16 {
	return encodeInstrAndArgs(_INSTR_BITS_SET, uint8(dest)&7, value)
}

// EncodeJmp encodes an unconditional "jmp addr".
func EncodeJmp(addr uint8) uint16 {
	return encodeInstrAndArgs(_INSTR_BITS_JMP, 0, addr)
}

// bitShift
//
//	.wrap_target
//	    out pins, 1
//	.wrap
//
// With autopull at 32 bits the state machine drains one TX FIFO word every 32
// cycles and raises its TX DREQ for the next.
var bitShiftInstructions = []uint16{
	0x6001, //  0: out    pins, 1
}

const (
	bitShiftOrigin        = -1
	bitShiftWrapTarget    = 0
	bitShiftWrap          = 0
	bitShiftCyclesPerWord = 32
)

// Bit layout of the state machine registers.
const (
	clkdivFRAC_Pos = 8
	clkdivINT_Pos  = 16

	execWRAP_BOTTOM_Pos = 7
	execWRAP_BOTTOM_Msk = 0x1f << execWRAP_BOTTOM_Pos
	execWRAP_TOP_Pos    = 12
	execWRAP_TOP_Msk    = 0x1f << execWRAP_TOP_Pos

	shiftAUTOPULL_Pos     = 17
	shiftIN_SHIFTDIR_Pos  = 18
	shiftOUT_SHIFTDIR_Pos = 19
	shiftPULL_THRESH_Pos  = 25
	shiftPULL_THRESH_Msk  = 0x1f << shiftPULL_THRESH_Pos
	shiftFJOIN_TX_Pos     = 30
	shiftFJOIN_RX_Pos     = 31

	pinOUT_BASE_Pos  = 0
	pinOUT_BASE_Msk  = 0x1f << pinOUT_BASE_Pos
	pinSET_BASE_Pos  = 5
	pinSET_BASE_Msk  = 0x1f << pinSET_BASE_Pos
	pinOUT_COUNT_Pos = 20
	pinOUT_COUNT_Msk = 0x3f << pinOUT_COUNT_Pos
	pinSET_COUNT_Pos = 26
	pinSET_COUNT_Msk = 0x7 << pinSET_COUNT_Pos
)

// StateMachineConfig holds the register values that configure a PIO state
// machine, mirroring pio_sm_config in the c-sdk.
type StateMachineConfig struct {
	// Frequency = clock freq / (CLKDIV_INT + CLKDIV_FRAC / 256)
	ClkDiv    uint32
	ExecCtrl  uint32
	ShiftCtrl uint32
	PinCtrl   uint32
}

// DefaultStateMachineConfig mirrors pio_get_default_sm_config: divide by one,
// wrap over the whole instruction memory, both shift registers shifting right
// with a 32 bit threshold.
func DefaultStateMachineConfig() StateMachineConfig {
	cfg := StateMachineConfig{}
	cfg.SetClkDivIntFrac(1, 0)
	cfg.SetWrap(0, 31)
	cfg.ShiftCtrl |= 1 << shiftIN_SHIFTDIR_Pos
	cfg.SetOutShift(true, false, 32)
	return cfg
}

// SetClkDivIntFrac sets the clock divider from a whole and fractional part.
func (cfg *StateMachineConfig) SetClkDivIntFrac(whole uint16, frac uint8) {
	cfg.ClkDiv = uint32(frac)<<clkdivFRAC_Pos | uint32(whole)<<clkdivINT_Pos
}

// SetWrap sets the instruction range the program counter loops over.
func (cfg *StateMachineConfig) SetWrap(wrapTarget, wrap uint8) {
	cfg.ExecCtrl = cfg.ExecCtrl&^(execWRAP_TOP_Msk|execWRAP_BOTTOM_Msk) |
		uint32(wrapTarget&0x1f)<<execWRAP_BOTTOM_Pos |
		uint32(wrap&0x1f)<<execWRAP_TOP_Pos
}

// SetOutShift sets the output shift direction, autopull and pull threshold.
// A threshold of 32 is stored as 0.
func (cfg *StateMachineConfig) SetOutShift(shiftRight, autoPull bool, pullThreshold uint16) {
	setBit(&cfg.ShiftCtrl, shiftOUT_SHIFTDIR_Pos, shiftRight)
	setBit(&cfg.ShiftCtrl, shiftAUTOPULL_Pos, autoPull)
	cfg.ShiftCtrl = cfg.ShiftCtrl&^shiftPULL_THRESH_Msk | uint32(pullThreshold&0x1f)<<shiftPULL_THRESH_Pos
}

// JoinTxFIFO gives the TX FIFO the RX FIFO's storage, doubling its depth to 8.
func (cfg *StateMachineConfig) JoinTxFIFO() {
	setBit(&cfg.ShiftCtrl, shiftFJOIN_TX_Pos, true)
	setBit(&cfg.ShiftCtrl, shiftFJOIN_RX_Pos, false)
}

// SetOutPins sets the pins driven by out instructions.
func (cfg *StateMachineConfig) SetOutPins(base, count uint8) {
	cfg.PinCtrl = cfg.PinCtrl&^(pinOUT_BASE_Msk|pinOUT_COUNT_Msk) |
		uint32(base&0x1f)<<pinOUT_BASE_Pos | uint32(count&0x3f)<<pinOUT_COUNT_Pos
}

// SetSetPins sets the pins driven by set instructions.
func (cfg *StateMachineConfig) SetSetPins(base, count uint8) {
	cfg.PinCtrl = cfg.PinCtrl&^(pinSET_BASE_Msk|pinSET_COUNT_Msk) |
		uint32(base&0x1f)<<pinSET_BASE_Pos | uint32(count&0x7)<<pinSET_COUNT_Pos
}

// bitShiftProgramDefaultConfig returns the configuration for the bitShift
// program loaded at offset, driving pin at whole+frac/256 of the system clock.
func bitShiftProgramDefaultConfig(offset, pin uint8, whole uint16, frac uint8) StateMachineConfig {
	cfg := DefaultStateMachineConfig()
	cfg.SetWrap(offset+bitShiftWrapTarget, offset+bitShiftWrap)
	cfg.SetClkDivIntFrac(whole, frac)
	cfg.SetOutPins(pin, 1)
	cfg.SetSetPins(pin, 1)
	cfg.SetOutShift(true, true, 32)
	cfg.JoinTxFIFO()
	return cfg
}

func setBit(reg *uint32, pos uint32, bit bool) {
	if bit {
		*reg |= 1 << pos
	} else {
		*reg &^= 1 << pos
	}
}

// programSpace is a bitmask of the used slots of a PIO's 32 instruction memory
// words.
type programSpace uint32

// find returns the offset the program can be loaded at, or -1. Relocatable
// programs (origin < 0) are placed as high as possible.
func (s programSpace) find(instructions []uint16, origin int8) int8 {
	programLen := uint32(len(instructions))
	programMask := uint32((1 << programLen) - 1)

	// Program has fixed offset (not relocatable)
	if origin >= 0 {
		if uint32(origin) > 32-programLen {
			return -1
		}
		if uint32(s)&(programMask<<origin) != 0 {
			return -1
		}
		return origin
	}

	// work down from the top always
	for i := int8(32 - programLen); i >= 0; i-- {
		if uint32(s)&(programMask<<uint32(i)) == 0 {
			return i
		}
	}
	return -1
}

func (s *programSpace) use(offset uint8, length int) {
	*s |= programSpace(uint32((1<<length)-1) << offset)
}

func (s *programSpace) free(offset uint8, length int) {
	*s &^= programSpace(uint32((1<<length)-1) << offset)
}

// relocate returns instructions patched for loading at offset: jump targets
// are relative to the program start.
func relocate(instructions []uint16, offset uint8) []uint16 {
	out := make([]uint16, len(instructions))
	for i, instr := range instructions {
		if instr&0xe000 == _INSTR_BITS_JMP {
			instr += uint16(offset)
		}
		out[i] = instr
	}
	return out
}
