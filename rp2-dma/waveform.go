package dma

import (
	"fmt"
	"math/bits"
	"unsafe"
)

// Word is an element type a channel can move in a single transfer.
type Word interface {
	~uint8 | ~uint16 | ~uint32
}

// Buffer is an immutable, power-of-two sized sequence of transfer elements whose
// base address is aligned to its own length in bytes, so that ring wrapping over
// the whole buffer is always possible. Index order is time order.
type Buffer[T Word] struct {
	data []T
	// raw keeps the over-allocated backing array alive.
	raw []T
}

var _ Memory = (*Buffer[uint32])(nil)

// NewBuffer returns a buffer holding a copy of values.
// len(values) must be a power of two.
func NewBuffer[T Word](values []T) (*Buffer[T], error) {
	n := len(values)
	if !isPow2(n) {
		return nil, fmt.Errorf("%w: buffer length %d is not a power of two", ErrConfigInvalid, n)
	}
	b := alignedBuffer[T](n)
	copy(b.data, values)
	return b, nil
}

// Generate returns a buffer of n elements where element i is gen(i).
// gen is called once per element, in index order.
func Generate[T Word](n int, gen func(i int) T) (*Buffer[T], error) {
	if !isPow2(n) {
		return nil, fmt.Errorf("%w: buffer length %d is not a power of two", ErrConfigInvalid, n)
	}
	b := alignedBuffer[T](n)
	for i := range b.data {
		b.data[i] = gen(i)
	}
	return b, nil
}

func alignedBuffer[T Word](n int) *Buffer[T] {
	elem := uintptr(unsafe.Sizeof(T(0)))
	span := uintptr(n) * elem
	// Any window of n elements inside 2n elements contains exactly one
	// span-aligned start, since the backing array is at least element aligned.
	raw := make([]T, 2*n)
	base := uintptr(unsafe.Pointer(&raw[0]))
	off := int((alignUp(base, span) - base) / elem)
	return &Buffer[T]{data: raw[off : off+n : off+n], raw: raw}
}

func (b *Buffer[T]) endpoint() {}

func (b *Buffer[T]) Len() int { return len(b.data) }

func (b *Buffer[T]) Size() TxSize { return sizeOf[T]() }

func (b *Buffer[T]) Bytes() uint32 { return uint32(len(b.data)) * sizeOf[T]().Bytes() }

func (b *Buffer[T]) Addr() uintptr { return uintptr(unsafe.Pointer(&b.data[0])) }

func (b *Buffer[T]) Load(i int) uint32 { return uint32(b.data[i]) }

// At returns element i.
func (b *Buffer[T]) At(i int) T { return b.data[i] }

// Values returns a copy of the buffer contents.
func (b *Buffer[T]) Values() []T {
	return append([]T(nil), b.data...)
}

func sizeOf[T Word]() TxSize {
	var zero T
	switch unsafe.Sizeof(zero) {
	case 1:
		return TxSize8
	case 2:
		return TxSize16
	default:
		return TxSize32
	}
}

func bitsOf[T Word]() int {
	var zero T
	return int(unsafe.Sizeof(zero)) * 8
}

// QuadraticFade returns a perceptually smooth brightness ramp of steps values:
//
//	value[i] = round(i² × maxLevel / (steps-1)²)
//
// value[0] is 0 and value[steps-1] is maxLevel.
func QuadraticFade[T Word](steps int, maxLevel T) []T {
	if steps <= 0 {
		return nil
	}
	out := make([]T, steps)
	if steps == 1 {
		return out
	}
	d := uint64(steps-1) * uint64(steps-1)
	for i := range out {
		sq := uint64(i) * uint64(i)
		hi, lo := bits.Mul64(sq, uint64(maxLevel))
		lo, carry := bits.Add64(lo, d/2, 0)
		hi += carry
		q, _ := bits.Div64(hi, lo, d) // q <= maxLevel, so hi < d always holds.
		out[i] = T(q)
	}
	return out
}

// ClampedSquare returns value[i] = min(i², ceiling) for i in 0..steps-1, the
// unscaled fade table used when the ramp saturates the counter-compare range.
func ClampedSquare[T Word](steps int, ceiling T) []T {
	if steps <= 0 {
		return nil
	}
	out := make([]T, steps)
	for i := range out {
		sq := uint64(i) * uint64(i)
		if sq > uint64(ceiling) {
			sq = uint64(ceiling)
		}
		out[i] = T(sq)
	}
	return out
}

// Palindrome returns ramp followed by ramp reversed, so one period fades in
// and then out. The result is twice as long as ramp.
func Palindrome[T Word](ramp []T) []T {
	n := len(ramp)
	out := make([]T, 2*n)
	for i, v := range ramp {
		out[i] = v
		out[2*n-1-i] = v
	}
	return out
}

// Mirror returns ramp followed by ramp reversed without repeating either end,
// so the peak and the floor each appear once per period. The result holds
// 2×len(ramp)-2 elements; a 257 point ramp gives a 512 element cycle.
func Mirror[T Word](ramp []T) []T {
	n := len(ramp)
	if n < 2 {
		return append([]T(nil), ramp...)
	}
	out := make([]T, 0, 2*n-2)
	out = append(out, ramp...)
	for i := n - 2; i > 0; i-- {
		out = append(out, ramp[i])
	}
	return out
}

// BitRun returns one word per level in 0..width-1, where width is the bit width
// of T, with the low level bits set:
//
//	value[level] = (1 << level) - 1
//
// Shifting a word out one bit per sub-cycle at a fixed rate keeps the output
// high for level of width sub-cycles, emulating a duty cycle of level/width.
func BitRun[T Word]() []T {
	width := bitsOf[T]()
	out := make([]T, width)
	for level := range out {
		out[level] = T(uint64(1)<<level - 1)
	}
	return out
}

// ShiftLanes returns values shifted left by shift bits. A PWM slice's
// counter-compare register holds channel A in the low half and channel B in
// the high half; ShiftLanes(v, 16) moves a channel A table to channel B.
func ShiftLanes[T Word](values []T, shift uint) []T {
	out := make([]T, len(values))
	for i, v := range values {
		out[i] = v << shift
	}
	return out
}
