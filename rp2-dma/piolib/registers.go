package piolib

import (
	"strconv"

	dma "github.com/tinygo-org/rp2dma/rp2-dma"
)

// Peripheral register blocks on the RP2040 bus.
const (
	pwmBase        = 0x40050000
	pwmSliceStride = 0x14
	pwmCC          = 0x0c
	pwmSlices      = 8

	pioBase        = 0x50200000
	pioBlockStride = 0x100000
	pioTXF0        = 0x10
)

// PWMCompare returns the counter-compare register of a PWM slice. Channel A is
// the low half of the register and channel B the high half; a 32 bit write
// sets both.
func PWMCompare(slice uint8) dma.Register {
	if slice >= pwmSlices {
		panic(badSlice)
	}
	return dma.Register{
		Name: "pwm" + strconv.Itoa(int(slice)) + ".cc",
		Addr: pwmBase + uint32(slice)*pwmSliceStride + pwmCC,
	}
}

// PIOTxFIFO returns the TX FIFO register of a PIO state machine. Every word
// written to it is pulled into the state machine's output shift register.
func PIOTxFIFO(block, sm uint8) dma.Register {
	if block > 1 {
		panic(badPIO)
	}
	if sm > 3 {
		panic(badStateMachineIndex)
	}
	return dma.Register{
		Name: "pio" + strconv.Itoa(int(block)) + ".txf" + strconv.Itoa(int(sm)),
		Addr: pioBase + uint32(block)*pioBlockStride + pioTXF0 + 4*uint32(sm),
	}
}

// PWMSliceForPin returns the PWM slice a GPIO is wired to and whether it is
// the slice's channel B.
func PWMSliceForPin(pin uint8) (slice uint8, channelB bool) {
	return (pin >> 1) & 7, pin&1 != 0
}

const (
	badSlice             = "piolib: invalid PWM slice"
	badPIO               = "piolib: invalid PIO"
	badStateMachineIndex = "piolib: invalid state machine index"
)
