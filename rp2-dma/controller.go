package dma

// Channel is the index of a claimed hardware transfer channel.
type Channel uint8

// Program holds the register values that arm a channel for one block.
type Program struct {
	Read   uint32
	Write  uint32
	Count  uint32
	Config ChannelConfig
}

// Controller is the transfer engine a Pipeline drives. It is implemented by the
// RP2040 DMA block on target and by Simulator everywhere else.
//
// Methods called from a completion handler (Acknowledge, Trigger,
// SetReadAddrTrig) must be O(1) and must not allocate or block.
type Controller interface {
	// Claim reserves a free channel or returns ErrResourceExhausted.
	Claim() (Channel, error)
	// Unclaim releases a channel. The channel must be idle.
	Unclaim(ch Channel)
	// Place returns the bus address of the first element of m.
	Place(m Memory) (uint32, error)
	// Configure loads a channel's registers without starting it.
	Configure(ch Channel, p Program)
	// Trigger starts every channel in mask at once (MULTI_CHAN_TRIGGER).
	Trigger(mask uint32)
	// SetReadAddrTrig sets a channel's read address and starts it (AL3_READ_ADDR_TRIG).
	SetReadAddrTrig(ch Channel, addr uint32)
	// EnableIRQ routes the channel's completion interrupt to fn.
	EnableIRQ(ch Channel, fn func())
	// DisableIRQ masks the channel's completion interrupt.
	DisableIRQ(ch Channel)
	// Acknowledge clears the pending completion flags in mask. The status
	// register is write-to-clear: only the bits set in mask are affected.
	Acknowledge(mask uint32)
	// Abort cancels in-flight transfers on every channel in mask.
	Abort(mask uint32)
	// Aborting reports whether any channel in mask is still flushing an abort.
	Aborting(mask uint32) bool
	// Busy reports whether the channel is running a block.
	Busy(ch Channel) bool
}

// Pacer is implemented by peripheral sinks whose trigger pulses can be gated.
type Pacer interface {
	SetEnabled(enabled bool)
}

func channelMask(chans []Channel) (mask uint32) {
	for _, ch := range chans {
		mask |= 1 << ch
	}
	return mask
}
