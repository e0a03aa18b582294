package dma

import "strconv"

// Bus addresses of the DMA block. A channel occupies 0x40 bytes of register
// space: the four base registers followed by three alias groups.
const (
	dmaBase       = 0x50000000
	channelStride = 0x40

	offREAD_ADDR            = 0x00
	offWRITE_ADDR           = 0x04
	offTRANS_COUNT          = 0x08
	offCTRL_TRIG            = 0x0c
	offAL1_CTRL             = 0x10
	offAL1_TRANS_COUNT_TRIG = 0x1c
	offAL2_WRITE_ADDR_TRIG  = 0x2c
	offAL3_READ_ADDR_TRIG   = 0x3c
)

// NumChannels is the number of DMA channels on the RP2040.
const NumChannels = 12

// Endpoint is one side of a transfer: a buffer in memory, a peripheral
// register or the trigger alias of another descriptor.
type Endpoint interface {
	endpoint()
}

// Memory is an Endpoint backed by RAM. Buffer implements it.
type Memory interface {
	Endpoint
	// Len returns the number of elements.
	Len() int
	// Size returns the element width.
	Size() TxSize
	// Bytes returns the buffer length in bytes.
	Bytes() uint32
	// Addr returns the CPU address of the first element.
	Addr() uintptr
	// Load returns element i zero-extended to 32 bits.
	Load(i int) uint32
}

// Register is a named handle to a fixed-address peripheral register, such as
// a PWM slice's counter-compare register or a PIO TX FIFO. Handles are created
// once at setup by the peripheral's package and never derived elsewhere.
type Register struct {
	Name string
	Addr uint32
}

func (Register) endpoint() {}

func (r Register) String() string {
	return r.Name + "@0x" + strconv.FormatUint(uint64(r.Addr), 16)
}

// Alias refers to the write-address trigger alias (AL2_WRITE_ADDR_TRIG) of
// another descriptor in the same pipeline. Writing a word to it sets that
// descriptor's destination and starts it.
type Alias struct {
	Target DescriptorID
}

func (Alias) endpoint() {}

// AliasAddr returns the bus address of the channel's AL2_WRITE_ADDR_TRIG register.
func AliasAddr(ch Channel) uint32 {
	return channelReg(ch, offAL2_WRITE_ADDR_TRIG)
}

func channelReg(ch Channel, off uint32) uint32 {
	if ch >= NumChannels {
		panic(badChannel)
	}
	return dmaBase + uint32(ch)*channelStride + off
}
