package dma

// Bit layout of a channel's CTRL_TRIG register. Mirrors rp.DMA_CH0_CTRL_TRIG_*
// so the configuration can be built and inspected off-target.
const (
	ctrlEN_Pos            = 0
	ctrlHIGH_PRIORITY_Pos = 1
	ctrlDATA_SIZE_Pos     = 2
	ctrlDATA_SIZE_Msk     = 0x3 << ctrlDATA_SIZE_Pos
	ctrlINCR_READ_Pos     = 4
	ctrlINCR_WRITE_Pos    = 5
	ctrlRING_SIZE_Pos     = 6
	ctrlRING_SIZE_Msk     = 0xf << ctrlRING_SIZE_Pos
	ctrlRING_SEL_Pos      = 10
	ctrlCHAIN_TO_Pos      = 11
	ctrlCHAIN_TO_Msk      = 0xf << ctrlCHAIN_TO_Pos
	ctrlTREQ_SEL_Pos      = 15
	ctrlTREQ_SEL_Msk      = 0x3f << ctrlTREQ_SEL_Pos
	ctrlIRQ_QUIET_Pos     = 21
	ctrlBSWAP_Pos         = 22
	ctrlSNIFF_EN_Pos      = 23
	ctrlBUSY_Pos          = 24
)

// MaxRingBits is the largest ring size the RING_SIZE field can hold (1<<15 bytes).
const MaxRingBits = 15

// TxSize is the width of a single transfer.
type TxSize uint32

const (
	TxSize8 TxSize = iota
	TxSize16
	TxSize32
)

// Bytes returns the number of bytes moved per transfer.
func (s TxSize) Bytes() uint32 { return 1 << s }

func (s TxSize) String() string {
	switch s {
	case TxSize8:
		return "8bit"
	case TxSize16:
		return "16bit"
	case TxSize32:
		return "32bit"
	}
	return "invalid"
}

// ChannelConfig is the value written to a channel's control register.
type ChannelConfig struct {
	CTRL uint32
}

// DefaultChannelConfig returns the configuration the pico-sdk hands out with
// channel_config_get_default: 32 bit unpaced transfers, read increment,
// no ring, no chaining (chain to self) and the channel enabled.
func DefaultChannelConfig(channel uint8) (cc ChannelConfig) {
	cc.SetRing(false, 0)
	cc.SetBSwap(false)
	cc.SetIRQQuiet(false)
	cc.SetWriteIncrement(false)
	cc.SetSniffEnable(false)
	cc.SetHighPriority(false)

	cc.SetChainTo(channel)
	cc.SetTREQ_SEL(TREQ_PERMANENT)
	cc.SetReadIncrement(true)
	cc.SetTransferDataSize(TxSize32)
	cc.SetEnable(true)
	return cc
}

// Select a Transfer Request signal. The channel uses the transfer request signal
// to pace its data transfer rate. Sources for TREQ signals are internal (TIMERS)
// or external (DREQ, a Data Request from the system). 0x0 to 0x3a -> select DREQ n as TREQ
func (cc *ChannelConfig) SetTREQ_SEL(dreq uint8) {
	cc.CTRL = (cc.CTRL &^ ctrlTREQ_SEL_Msk) | (uint32(dreq) << ctrlTREQ_SEL_Pos & ctrlTREQ_SEL_Msk)
}

// SetChainTo sets the channel triggered when this one completes. Chaining to
// the channel's own index disables chaining.
func (cc *ChannelConfig) SetChainTo(chainTo uint8) {
	cc.CTRL = (cc.CTRL &^ ctrlCHAIN_TO_Msk) | (uint32(chainTo) << ctrlCHAIN_TO_Pos & ctrlCHAIN_TO_Msk)
}

func (cc *ChannelConfig) SetTransferDataSize(size TxSize) {
	cc.CTRL = (cc.CTRL &^ ctrlDATA_SIZE_Msk) | (uint32(size) << ctrlDATA_SIZE_Pos & ctrlDATA_SIZE_Msk)
}

// SetRing wraps the read (write=false) or write (write=true) address on a
// (1 << sizeBits) byte boundary. sizeBits of zero disables wrapping.
func (cc *ChannelConfig) SetRing(write bool, sizeBits uint8) {
	cc.CTRL = (cc.CTRL &^ ctrlRING_SIZE_Msk) |
		(uint32(sizeBits) << ctrlRING_SIZE_Pos & ctrlRING_SIZE_Msk)
	setBitPos(&cc.CTRL, ctrlRING_SEL_Pos, write)
}

func (cc *ChannelConfig) SetReadIncrement(incr bool) {
	setBitPos(&cc.CTRL, ctrlINCR_READ_Pos, incr)
}

func (cc *ChannelConfig) SetWriteIncrement(incr bool) {
	setBitPos(&cc.CTRL, ctrlINCR_WRITE_Pos, incr)
}

func (cc *ChannelConfig) SetBSwap(bswap bool) {
	setBitPos(&cc.CTRL, ctrlBSWAP_Pos, bswap)
}

// SetIRQQuiet suppresses the completion interrupt at the end of each block.
func (cc *ChannelConfig) SetIRQQuiet(irqQuiet bool) {
	setBitPos(&cc.CTRL, ctrlIRQ_QUIET_Pos, irqQuiet)
}

func (cc *ChannelConfig) SetHighPriority(highPriority bool) {
	setBitPos(&cc.CTRL, ctrlHIGH_PRIORITY_Pos, highPriority)
}

func (cc *ChannelConfig) SetEnable(enable bool) {
	setBitPos(&cc.CTRL, ctrlEN_Pos, enable)
}

func (cc *ChannelConfig) SetSniffEnable(sniffEnable bool) {
	setBitPos(&cc.CTRL, ctrlSNIFF_EN_Pos, sniffEnable)
}

func (cc ChannelConfig) TREQ() uint8 {
	return uint8((cc.CTRL & ctrlTREQ_SEL_Msk) >> ctrlTREQ_SEL_Pos)
}

func (cc ChannelConfig) ChainTo() uint8 {
	return uint8((cc.CTRL & ctrlCHAIN_TO_Msk) >> ctrlCHAIN_TO_Pos)
}

func (cc ChannelConfig) TransferDataSize() TxSize {
	return TxSize((cc.CTRL & ctrlDATA_SIZE_Msk) >> ctrlDATA_SIZE_Pos)
}

// Ring returns the wrapped side and the ring size in bits.
func (cc ChannelConfig) Ring() (write bool, sizeBits uint8) {
	return hasBitPos(cc.CTRL, ctrlRING_SEL_Pos), uint8((cc.CTRL & ctrlRING_SIZE_Msk) >> ctrlRING_SIZE_Pos)
}

func (cc ChannelConfig) ReadIncrement() bool  { return hasBitPos(cc.CTRL, ctrlINCR_READ_Pos) }
func (cc ChannelConfig) WriteIncrement() bool { return hasBitPos(cc.CTRL, ctrlINCR_WRITE_Pos) }
func (cc ChannelConfig) IRQQuiet() bool       { return hasBitPos(cc.CTRL, ctrlIRQ_QUIET_Pos) }
func (cc ChannelConfig) HighPriority() bool   { return hasBitPos(cc.CTRL, ctrlHIGH_PRIORITY_Pos) }
func (cc ChannelConfig) Enabled() bool        { return hasBitPos(cc.CTRL, ctrlEN_Pos) }

func setBitPos(cc *uint32, pos uint32, bit bool) {
	if bit {
		*cc = *cc | (1 << pos)
	} else {
		*cc = *cc & ^(1 << pos) // unset bit.
	}
}

func hasBitPos(v uint32, pos uint32) bool { return v&(1<<pos) != 0 }
