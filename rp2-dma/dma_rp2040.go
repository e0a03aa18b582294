//go:build rp2040

package dma

import (
	"device/rp"
	"math/bits"
	"runtime/interrupt"
	"runtime/volatile"
	"unsafe"
)

// DMA is the RP2040 DMA block. Completion interrupts are routed through
// DMA_IRQ_0.
var DMA = &Hardware{}

// Single DMA channel with its three alias groups. See rp.DMA_Type.
type channelHW struct {
	READ_ADDR            volatile.Register32 // 0x00
	WRITE_ADDR           volatile.Register32 // 0x04
	TRANS_COUNT          volatile.Register32 // 0x08
	CTRL_TRIG            volatile.Register32 // 0x0C
	AL1_CTRL             volatile.Register32 // 0x10
	AL1_READ_ADDR        volatile.Register32
	AL1_WRITE_ADDR       volatile.Register32
	AL1_TRANS_COUNT_TRIG volatile.Register32 // 0x1C
	AL2_CTRL             volatile.Register32
	AL2_TRANS_COUNT      volatile.Register32
	AL2_READ_ADDR        volatile.Register32
	AL2_WRITE_ADDR_TRIG  volatile.Register32 // 0x2C
	AL3_CTRL             volatile.Register32
	AL3_WRITE_ADDR       volatile.Register32
	AL3_TRANS_COUNT      volatile.Register32
	AL3_READ_ADDR_TRIG   volatile.Register32 // 0x3C
}

var channels = (*[NumChannels]channelHW)(unsafe.Pointer(rp.DMA))

// Hardware drives the DMA registers directly.
type Hardware struct {
	// Bitmask of claimed channels.
	claimed  uint32
	handlers [NumChannels]func()
	irq      interrupt.Interrupt
	irqOn    bool
}

var _ Controller = (*Hardware)(nil)

func (hw *Hardware) Claim() (Channel, error) {
	state := interrupt.Disable()
	defer interrupt.Restore(state)
	free := ^hw.claimed & (1<<NumChannels - 1)
	if free == 0 {
		return 0, ErrResourceExhausted
	}
	ch := Channel(bits.TrailingZeros32(free))
	hw.claimed |= 1 << ch
	return ch, nil
}

func (hw *Hardware) Unclaim(ch Channel) {
	if ch >= NumChannels {
		panic(badChannel)
	}
	state := interrupt.Disable()
	hw.claimed &^= 1 << ch
	interrupt.Restore(state)
}

// Place returns m's own address: buffers already live in SRAM.
func (hw *Hardware) Place(m Memory) (uint32, error) {
	addr := m.Addr()
	if addr == 0 || uint64(addr)+uint64(m.Bytes()) > 1<<32 {
		return 0, errNotMapped
	}
	return uint32(addr), nil
}

func (hw *Hardware) Configure(ch Channel, p Program) {
	c := &channels[ch]
	c.READ_ADDR.Set(p.Read)
	c.WRITE_ADDR.Set(p.Write)
	c.TRANS_COUNT.Set(p.Count)
	// AL1_CTRL does not trigger.
	c.AL1_CTRL.Set(p.Config.CTRL)
}

func (hw *Hardware) Trigger(mask uint32) {
	rp.DMA.MULTI_CHAN_TRIGGER.Set(mask)
}

func (hw *Hardware) SetReadAddrTrig(ch Channel, addr uint32) {
	channels[ch].AL3_READ_ADDR_TRIG.Set(addr)
}

func (hw *Hardware) EnableIRQ(ch Channel, fn func()) {
	if ch >= NumChannels {
		panic(badChannel)
	}
	state := interrupt.Disable()
	hw.handlers[ch] = fn
	rp.DMA.INTE0.SetBits(1 << ch)
	interrupt.Restore(state)
	if !hw.irqOn {
		hw.irq = interrupt.New(rp.IRQ_DMA_IRQ_0, handleIRQ0)
		hw.irq.Enable()
		hw.irqOn = true
	}
}

func (hw *Hardware) DisableIRQ(ch Channel) {
	state := interrupt.Disable()
	rp.DMA.INTE0.ClearBits(1 << ch)
	hw.handlers[ch] = nil
	interrupt.Restore(state)
}

func (hw *Hardware) Acknowledge(mask uint32) {
	// INTS0 is write-to-clear: zero bits leave other channels' flags alone.
	rp.DMA.INTS0.Set(mask)
}

func (hw *Hardware) Abort(mask uint32) {
	rp.DMA.CHAN_ABORT.Set(mask)
}

func (hw *Hardware) Aborting(mask uint32) bool {
	return rp.DMA.CHAN_ABORT.Get()&mask != 0
}

func (hw *Hardware) Busy(ch Channel) bool {
	return channels[ch].CTRL_TRIG.Get()&(1<<ctrlBUSY_Pos) != 0
}

func handleIRQ0(interrupt.Interrupt) {
	pending := rp.DMA.INTS0.Get()
	for pending != 0 {
		ch := bits.TrailingZeros32(pending)
		pending &^= 1 << ch
		if fn := DMA.handlers[ch]; fn != nil {
			fn()
		} else {
			rp.DMA.INTS0.Set(1 << ch)
		}
	}
}
