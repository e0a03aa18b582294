//go:build rp2040

package piolib

import (
	"device/rp"
	"errors"
	"fmt"
	"machine"
	"runtime/volatile"
	"unsafe"

	dma "github.com/tinygo-org/rp2dma/rp2-dma"
)

var errPinSlice = errors.New("piolib: pin is not wired to PWM slice")

// Single PWM slice. See rp.PWM_Type.
type pwmSliceHW struct {
	CSR volatile.Register32 // 0x00
	DIV volatile.Register32 // 0x04
	CTR volatile.Register32 // 0x08
	CC  volatile.Register32 // 0x0C
	TOP volatile.Register32 // 0x10
}

var pwmHW = (*[pwmSlices]pwmSliceHW)(unsafe.Pointer(rp.PWM))

const (
	pwmCSR_EN_Pos  = 0
	pwmDIV_INT_Pos = 4
)

// PWMSink is a PWM slice used as a transfer sink. Its counter-compare register
// receives the waveform and its wrap DREQ paces the transfers, one element per
// counter period.
type PWMSink struct {
	slice uint8
	whole uint8
	frac  uint8
	top   uint16
}

var _ dma.Pacer = (*PWMSink)(nil)

// NewPWMSink configures the given pins for PWM on slice and sets the slice's
// clock to whole + frac/16 with the counter wrapping at top. The slice starts
// disabled; the pipeline enables it on start.
func NewPWMSink(slice uint8, whole, frac uint8, top uint16, pins ...machine.Pin) (*PWMSink, error) {
	if slice >= pwmSlices {
		panic(badSlice)
	}
	for _, pin := range pins {
		if s, _ := PWMSliceForPin(uint8(pin)); s != slice {
			return nil, errPinSlice
		}
		pin.Configure(machine.PinConfig{Mode: machine.PinPWM})
	}
	hw := &pwmHW[slice]
	hw.CSR.Set(0)
	hw.CTR.Set(0)
	hw.CC.Set(0)
	s := &PWMSink{slice: slice}
	if err := s.SetClock(whole, frac, top); err != nil {
		return nil, err
	}
	return s, nil
}

// SetClock changes the slice's divider and wrap value. SetClock is safe to call while
// a pipeline is running; the new cadence applies from the next wrap.
func (s *PWMSink) SetClock(whole, frac uint8, top uint16) error {
	if whole == 0 {
		return fmt.Errorf("piolib: PWM divider below 1: %w", dma.ErrConfigInvalid)
	}
	hw := &pwmHW[s.slice]
	hw.DIV.Set(uint32(whole)<<pwmDIV_INT_Pos | uint32(frac&0xf))
	hw.TOP.Set(uint32(top))
	s.whole, s.frac, s.top = whole, frac, top
	return nil
}

// SetEnabled starts or stops the slice's counter, which gates its DREQ.
func (s *PWMSink) SetEnabled(enabled bool) {
	pwmHW[s.slice].CSR.ReplaceBits(boolToBit(enabled), 0x1, pwmCSR_EN_Pos)
}

// Slice returns the slice index.
func (s *PWMSink) Slice() uint8 { return s.slice }

// Register returns the slice's counter-compare register.
func (s *PWMSink) Register() dma.Register { return PWMCompare(s.slice) }

// DREQ returns the transfer request raised on each counter wrap.
func (s *PWMSink) DREQ() uint8 { return dma.PWMWrapDREQ(s.slice) }

// Pacing returns the element cadence at the current system clock.
func (s *PWMSink) Pacing() dma.Pacing {
	return dma.PWMPacing(machine.CPUFrequency(), s.whole, s.frac, s.top)
}

func boolToBit(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
