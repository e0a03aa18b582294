package dma

import (
	"fmt"
)

// DescriptorID identifies a descriptor within its Pipeline. The zero value
// means "none".
type DescriptorID uint8

// Valid reports whether id refers to a descriptor.
func (id DescriptorID) Valid() bool { return id != 0 }

func (id DescriptorID) index() int { return int(id) - 1 }

// Increment selects which side of a transfer advances after each element.
type Increment uint8

const (
	IncrementNone Increment = iota
	IncrementRead
	IncrementWrite
)

func (inc Increment) String() string {
	switch inc {
	case IncrementNone:
		return "none"
	case IncrementRead:
		return "read"
	case IncrementWrite:
		return "write"
	}
	return "invalid"
}

// Role tells data descriptors, which move waveform values into a sink, apart
// from control descriptors, which rearm a data descriptor through its alias.
type Role uint8

const (
	RoleData Role = iota
	RoleControl
)

func (r Role) String() string {
	if r == RoleControl {
		return "control"
	}
	return "data"
}

// Options configures a single transfer descriptor.
type Options struct {
	// Size is the element width. It must match the memory side.
	Size TxSize
	// Increment selects the side that advances; it must be the memory side.
	Increment Increment
	// RingBits wraps the incrementing side on a (1 << RingBits) byte boundary.
	// Zero disables wrapping.
	RingBits uint8
	// Trigger is the DREQ/TREQ that paces each element.
	Trigger uint8
	// Count is the number of elements moved per block.
	Count uint32
	// ChainTo is started when this descriptor's block completes.
	ChainTo DescriptorID
	// IRQ raises a completion interrupt at the end of each block.
	IRQ bool
	// HighPriority schedules this channel ahead of normal priority channels.
	HighPriority bool
}

// Descriptor is one autonomous copy: where from, where to, how wide, how many,
// which side moves, how it is paced and what runs next.
type Descriptor struct {
	Src Endpoint
	Dst Endpoint
	Options
}

// Build validates the transfer of opts.Count elements from src to dst and
// returns its descriptor. Exactly one side must be memory; the other side is a
// fixed peripheral register or descriptor alias and never increments. Ring
// wrapping must fit the buffer's length and alignment. All failures wrap
// ErrConfigInvalid and happen before any hardware is touched.
func Build(src, dst Endpoint, opts Options) (Descriptor, error) {
	d := Descriptor{Src: src, Dst: dst, Options: opts}
	if src == nil || dst == nil {
		return Descriptor{}, fmt.Errorf("%w: missing endpoint", ErrConfigInvalid)
	}
	if opts.Count == 0 {
		return Descriptor{}, fmt.Errorf("%w: zero transfer count", ErrConfigInvalid)
	}
	if opts.Size > TxSize32 {
		return Descriptor{}, fmt.Errorf("%w: transfer size %d", ErrConfigInvalid, opts.Size)
	}
	srcMem, srcIsMem := src.(Memory)
	dstMem, dstIsMem := dst.(Memory)
	var mem Memory
	switch {
	case srcIsMem && dstIsMem:
		return Descriptor{}, fmt.Errorf("%w: memory to memory copies are not supported", ErrConfigInvalid)
	case srcIsMem:
		mem = srcMem
	case dstIsMem:
		mem = dstMem
	default:
		return Descriptor{}, fmt.Errorf("%w: one endpoint must be memory", ErrConfigInvalid)
	}
	if mem.Size() != opts.Size {
		return Descriptor{}, fmt.Errorf("%w: %s transfers from %s buffer", ErrConfigInvalid, opts.Size, mem.Size())
	}
	if _, ok := dst.(Alias); ok && opts.Size != TxSize32 {
		return Descriptor{}, fmt.Errorf("%w: alias writes must be 32bit", ErrConfigInvalid)
	}
	if _, ok := src.(Alias); ok {
		return Descriptor{}, fmt.Errorf("%w: alias is write-only", ErrConfigInvalid)
	}

	switch opts.Increment {
	case IncrementNone:
	case IncrementRead:
		if !srcIsMem {
			return Descriptor{}, fmt.Errorf("%w: register side must not increment", ErrConfigInvalid)
		}
	case IncrementWrite:
		if !dstIsMem {
			return Descriptor{}, fmt.Errorf("%w: register side must not increment", ErrConfigInvalid)
		}
	default:
		return Descriptor{}, fmt.Errorf("%w: increment %d", ErrConfigInvalid, opts.Increment)
	}

	if opts.RingBits != 0 {
		if opts.Increment == IncrementNone {
			return Descriptor{}, fmt.Errorf("%w: ring wrap without an incrementing side", ErrConfigInvalid)
		}
		if err := checkRing(mem, opts.RingBits); err != nil {
			return Descriptor{}, err
		}
	} else if opts.Increment != IncrementNone {
		if uint64(opts.Count)*uint64(opts.Size.Bytes()) > uint64(mem.Bytes()) {
			return Descriptor{}, fmt.Errorf("%w: %d elements overrun %d element buffer", ErrConfigInvalid, opts.Count, mem.Len())
		}
	}
	return d, nil
}

// Role reports whether d rearms another descriptor.
func (d Descriptor) Role() Role {
	if _, ok := d.Dst.(Alias); ok {
		return RoleControl
	}
	return RoleData
}

// Memory returns the memory side of the transfer.
func (d Descriptor) Memory() Memory {
	if m, ok := d.Src.(Memory); ok {
		return m
	}
	m, _ := d.Dst.(Memory)
	return m
}

// ChannelConfig encodes d for channel self, chaining to channel chain.
// Passing chain == self disables chaining.
func (d Descriptor) ChannelConfig(self, chain Channel) ChannelConfig {
	cc := DefaultChannelConfig(uint8(self))
	cc.SetTransferDataSize(d.Size)
	cc.SetReadIncrement(d.Increment == IncrementRead)
	cc.SetWriteIncrement(d.Increment == IncrementWrite)
	cc.SetRing(d.Increment == IncrementWrite, d.RingBits)
	cc.SetTREQ_SEL(d.Trigger)
	cc.SetChainTo(uint8(chain))
	cc.SetIRQQuiet(!d.IRQ)
	cc.SetHighPriority(d.HighPriority)
	return cc
}
