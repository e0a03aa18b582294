package dma

// 2.5.3.1. System DREQ Table. Note: Another caveat is that multiple channels should not be connected to the same DREQ.
//
//goland:noinspection GoSnakeCaseUsage
const (
	DREQ_PIO0_TX0   = 0x0
	DREQ_PIO0_TX1   = 0x1
	DREQ_PIO0_TX2   = 0x2
	DREQ_PIO0_TX3   = 0x3
	DREQ_PIO0_RX0   = 0x4
	DREQ_PIO0_RX1   = 0x5
	DREQ_PIO0_RX2   = 0x6
	DREQ_PIO0_RX3   = 0x7
	DREQ_PIO1_TX0   = 0x8
	DREQ_PIO1_TX1   = 0x9
	DREQ_PIO1_TX2   = 0xa
	DREQ_PIO1_TX3   = 0xb
	DREQ_PIO1_RX0   = 0xc
	DREQ_PIO1_RX1   = 0xd
	DREQ_PIO1_RX2   = 0xe
	DREQ_PIO1_RX3   = 0xf
	DREQ_SPI0_TX    = 0x10
	DREQ_SPI0_RX    = 0x11
	DREQ_SPI1_TX    = 0x12
	DREQ_SPI1_RX    = 0x13
	DREQ_UART0_TX   = 0x14
	DREQ_UART0_RX   = 0x15
	DREQ_UART1_TX   = 0x16
	DREQ_UART1_RX   = 0x17
	DREQ_PWM_WRAP0  = 0x18
	DREQ_PWM_WRAP1  = 0x19
	DREQ_PWM_WRAP2  = 0x1a
	DREQ_PWM_WRAP3  = 0x1b
	DREQ_PWM_WRAP4  = 0x1c
	DREQ_PWM_WRAP5  = 0x1d
	DREQ_PWM_WRAP6  = 0x1e
	DREQ_PWM_WRAP7  = 0x1f
	DREQ_I2C0_TX    = 0x20
	DREQ_I2C0_RX    = 0x21
	DREQ_I2C1_TX    = 0x22
	DREQ_I2C1_RX    = 0x23
	DREQ_ADC        = 0x24
	DREQ_XIP_STREAM = 0x25
	DREQ_XIP_SSITX  = 0x26
	DREQ_XIP_SSIRX  = 0x27

	// Pacing timers 0..3, set up through the TIMERn fractional registers.
	TREQ_TIMER0 = 0x3b
	TREQ_TIMER1 = 0x3c
	TREQ_TIMER2 = 0x3d
	TREQ_TIMER3 = 0x3e
	// Unpaced transfers: the channel runs its whole block as fast as the bus allows.
	TREQ_PERMANENT = 0x3f
)

// PWMWrapDREQ returns the DREQ raised each time the given PWM slice wraps its counter.
func PWMWrapDREQ(slice uint8) uint8 {
	if slice > 7 {
		panic("dma: invalid PWM slice")
	}
	return DREQ_PWM_WRAP0 + slice
}

// PIOTxDREQ returns the Tx DREQ signal for a PIO state machine.
func PIOTxDREQ(block, sm uint8) uint8 {
	if block > 1 || sm > 3 {
		panic("dma: invalid PIO state machine")
	}
	return DREQ_PIO0_TX0 + block*8 + sm
}

// PIORxDREQ returns the Rx DREQ signal for a PIO state machine.
func PIORxDREQ(block, sm uint8) uint8 {
	return PIOTxDREQ(block, sm) + 4
}
