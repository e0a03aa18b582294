//go:build rp2040

package piolib

import (
	"device/rp"
	"errors"
	"machine"
	"runtime/volatile"
	"unsafe"

	dma "github.com/tinygo-org/rp2dma/rp2-dma"
)

// PIO errors.
var (
	ErrOutOfProgramSpace   = errors.New("piolib: out of program space")
	errStateMachineClaimed = errors.New("piolib: state machine already claimed")
)

// PIO register block, RP2040 layout. See rp.PIO0_Type.
type pioHW struct {
	CTRL              volatile.Register32 // 0x0
	FSTAT             volatile.Register32 // 0x4
	FDEBUG            volatile.Register32 // 0x8
	FLEVEL            volatile.Register32 // 0xC
	TXF               [4]volatile.Register32
	RXF               [4]volatile.Register32
	IRQ               volatile.Register32 // 0x30
	IRQ_FORCE         volatile.Register32 // 0x34
	INPUT_SYNC_BYPASS volatile.Register32 // 0x38
	DBG_PADOUT        volatile.Register32 // 0x3C
	DBG_PADOE         volatile.Register32 // 0x40
	DBG_CFGINFO       volatile.Register32 // 0x44
	INSTR_MEM         [32]volatile.Register32
	SM                [4]stateMachineHW // 0xC8
}

// State machine registers.
type stateMachineHW struct {
	CLKDIV    volatile.Register32 // 0xC8 for SM0
	EXECCTRL  volatile.Register32 // 0xCC for SM0
	SHIFTCTRL volatile.Register32 // 0xD0 for SM0
	ADDR      volatile.Register32 // 0xD4 for SM0
	INSTR     volatile.Register32 // 0xD8 for SM0
	PINCTRL   volatile.Register32 // 0xDC for SM0
}

var pioBlocks = [2]*pioHW{
	(*pioHW)(unsafe.Pointer(rp.PIO0)),
	(*pioHW)(unsafe.Pointer(rp.PIO1)),
}

// Bookkeeping per PIO block.
var (
	usedSpace [2]programSpace
	claimedSM [2]uint8
)

const (
	ctrlSM_ENABLE_Pos      = 0
	ctrlSM_RESTART_Pos     = 4
	ctrlCLKDIV_RESTART_Pos = 8

	fdebugMask = 0x0f0f0f0f
)

// BitSink is a PIO state machine that shifts each word of its TX FIFO out to a
// pin, least significant bit first, one bit per cycle. Fed BitRun words it
// emulates a PWM whose duty cycle is the number of set bits over 32.
type BitSink struct {
	block  uint8
	sm     uint8
	offset uint8
	whole  uint16
	frac   uint8
}

var _ dma.Pacer = (*BitSink)(nil)

// NewBitSink claims state machine sm of PIO block, loads the bitShift program
// and drives pin with it at whole + frac/256 of the system clock. The state
// machine starts stopped; the pipeline enables it on start.
func NewBitSink(block, sm uint8, pin machine.Pin, whole uint16, frac uint8) (*BitSink, error) {
	if block > 1 {
		panic(badPIO)
	}
	if sm > 3 {
		panic(badStateMachineIndex)
	}
	if claimedSM[block]&(1<<sm) != 0 {
		return nil, errStateMachineClaimed
	}
	off := usedSpace[block].find(bitShiftInstructions, bitShiftOrigin)
	if off < 0 {
		return nil, ErrOutOfProgramSpace
	}
	claimedSM[block] |= 1 << sm
	offset := uint8(off)
	hw := pioBlocks[block]
	for i, instr := range relocate(bitShiftInstructions, offset) {
		hw.INSTR_MEM[int(offset)+i].Set(uint32(instr))
	}
	usedSpace[block].use(offset, len(bitShiftInstructions))

	mode := machine.PinPIO0
	if block == 1 {
		mode = machine.PinPIO1
	}
	pin.Configure(machine.PinConfig{Mode: mode})

	s := &BitSink{block: block, sm: sm, offset: offset, whole: whole, frac: frac}
	s.SetEnabled(false)
	cfg := bitShiftProgramDefaultConfig(offset, uint8(pin), whole, frac)
	smhw := &hw.SM[sm]
	smhw.CLKDIV.Set(cfg.ClkDiv)
	smhw.EXECCTRL.Set(cfg.ExecCtrl)
	smhw.SHIFTCTRL.Set(cfg.ShiftCtrl)
	smhw.PINCTRL.Set(cfg.PinCtrl)
	hw.FDEBUG.Set(fdebugMask & (0x01010101 << sm))
	hw.CTRL.SetBits(1<<(ctrlSM_RESTART_Pos+sm) | 1<<(ctrlCLKDIV_RESTART_Pos+sm))
	smhw.INSTR.Set(uint32(EncodeSet(SrcDestPinDirs, 1)))
	smhw.INSTR.Set(uint32(EncodeJmp(offset)))
	return s, nil
}

// SetEnabled starts or stops the state machine, which gates its TX DREQ.
func (s *BitSink) SetEnabled(enabled bool) {
	pioBlocks[s.block].CTRL.ReplaceBits(boolToBit(enabled), 0x1, ctrlSM_ENABLE_Pos+s.sm)
}

// SetClkDiv changes the shift rate. SetClkDiv is safe to call while a pipeline
// is running.
func (s *BitSink) SetClkDiv(whole uint16, frac uint8) {
	cfg := StateMachineConfig{}
	cfg.SetClkDivIntFrac(whole, frac)
	pioBlocks[s.block].SM[s.sm].CLKDIV.Set(cfg.ClkDiv)
	s.whole, s.frac = whole, frac
}

// Register returns the state machine's TX FIFO register.
func (s *BitSink) Register() dma.Register { return PIOTxFIFO(s.block, s.sm) }

// DREQ returns the transfer request raised while the TX FIFO has room.
func (s *BitSink) DREQ() uint8 { return dma.PIOTxDREQ(s.block, s.sm) }

// Pacing returns the word cadence at the current system clock.
func (s *BitSink) Pacing() dma.Pacing {
	return dma.PIOPacing(machine.CPUFrequency(), s.whole, s.frac, bitShiftCyclesPerWord)
}

// Close stops the state machine, frees its program space and releases it.
func (s *BitSink) Close() {
	s.SetEnabled(false)
	usedSpace[s.block].free(s.offset, len(bitShiftInstructions))
	claimedSM[s.block] &^= 1 << s.sm
}
