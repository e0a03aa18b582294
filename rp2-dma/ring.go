package dma

import (
	"fmt"
	"math/bits"

	"golang.org/x/exp/constraints"
)

// RingNext returns the address that follows addr after an increment of inc
// bytes when the low ringBits of the address wrap. A ringBits of zero means no
// wrapping. This is the address arithmetic the channel performs on the side
// selected by RING_SEL.
func RingNext(addr, inc uint32, ringBits uint8) uint32 {
	if ringBits == 0 {
		return addr + inc
	}
	mask := uint32(1)<<ringBits - 1
	return addr&^mask | (addr+inc)&mask
}

// RingBits returns the ring size that wraps over the whole of m.
func RingBits(m Memory) (uint8, error) {
	n, ok := log2(m.Bytes())
	if !ok {
		return 0, fmt.Errorf("%w: %d byte buffer cannot be ring wrapped", ErrConfigInvalid, m.Bytes())
	}
	if n > MaxRingBits {
		return 0, fmt.Errorf("%w: %d byte buffer exceeds the %d byte ring limit", ErrConfigInvalid, m.Bytes(), 1<<MaxRingBits)
	}
	return n, nil
}

// checkRing validates that a ring of ringBits can wrap over m: the ring span
// must evenly divide the buffer and the buffer must start on a span boundary,
// otherwise the masked address lands outside the buffer.
func checkRing(m Memory, ringBits uint8) error {
	if ringBits > MaxRingBits {
		return fmt.Errorf("%w: ring size %d bits exceeds %d", ErrConfigInvalid, ringBits, MaxRingBits)
	}
	span := uint32(1) << ringBits
	if span < m.Size().Bytes() {
		return fmt.Errorf("%w: %d byte ring is narrower than one %s element", ErrConfigInvalid, span, m.Size())
	}
	if m.Bytes()%span != 0 {
		return fmt.Errorf("%w: %d byte ring does not divide %d byte buffer", ErrConfigInvalid, span, m.Bytes())
	}
	if uint64(m.Addr())%uint64(span) != 0 {
		return fmt.Errorf("%w: buffer at %#x is not aligned to its %d byte ring", ErrConfigInvalid, m.Addr(), span)
	}
	return nil
}

func isPow2[T constraints.Integer](n T) bool {
	return n > 0 && n&(n-1) == 0
}

func log2[T constraints.Unsigned](n T) (uint8, bool) {
	if !isPow2(n) {
		return 0, false
	}
	return uint8(bits.Len64(uint64(n)) - 1), true
}

func alignUp[T constraints.Unsigned](v, align T) T {
	return (v + align - 1) &^ (align - 1)
}
