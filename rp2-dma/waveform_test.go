package dma

import (
	"math/bits"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuadraticFade(t *testing.T) {
	v := QuadraticFade[uint32](256, 65535)
	require.Len(t, v, 256)
	assert.Equal(t, uint32(0), v[0])
	assert.Equal(t, uint32(65535), v[255])
	for i := 1; i < len(v); i++ {
		assert.GreaterOrEqual(t, v[i], v[i-1], "index %d", i)
	}
	// round(1 * 65535 / 65025)
	assert.Equal(t, uint32(1), v[1])

	small := QuadraticFade[uint8](5, 16)
	assert.Equal(t, []uint8{0, 1, 4, 9, 16}, small)

	assert.Nil(t, QuadraticFade[uint16](0, 1))
	assert.Equal(t, []uint16{0}, QuadraticFade[uint16](1, 100))
}

func TestClampedSquare(t *testing.T) {
	v := ClampedSquare[uint32](257, 65535)
	assert.Equal(t, uint32(255*255), v[255])
	assert.Equal(t, uint32(65535), v[256])
	assert.Equal(t, []uint16{0, 1, 4, 5}, ClampedSquare[uint16](4, 5))
}

func TestBitRun(t *testing.T) {
	v := BitRun[uint32]()
	require.Len(t, v, 32)
	for level, w := range v {
		assert.Equal(t, level, bits.OnesCount32(w), "level %d", level)
		assert.Equal(t, level, bits.Len32(w), "level %d sets only low bits", level)
	}
	assert.Equal(t, []uint8{0, 1, 3, 7, 15, 31, 63, 127}, BitRun[uint8]())
}

func TestPalindrome(t *testing.T) {
	assert.Equal(t, []uint16{1, 2, 3, 3, 2, 1}, Palindrome([]uint16{1, 2, 3}))
	assert.Empty(t, Palindrome[uint8](nil))
}

func TestMirror(t *testing.T) {
	assert.Equal(t, []uint16{1, 2, 3, 2}, Mirror([]uint16{1, 2, 3}))
	assert.Equal(t, []uint8{5}, Mirror([]uint8{5}))

	fade := Mirror(ClampedSquare[uint32](257, 0xffff))
	require.Len(t, fade, 512)
	peaks := 0
	for _, v := range fade {
		if v == 0xffff {
			peaks++
		}
	}
	assert.Equal(t, 1, peaks, "peak appears once per cycle")
	assert.Equal(t, uint32(0xffff), fade[256])
	assert.Equal(t, uint32(255*255), fade[257])
	assert.Equal(t, uint32(1), fade[511])
}

func TestShiftLanes(t *testing.T) {
	assert.Equal(t, []uint32{0, 1 << 16, 0xffff << 16}, ShiftLanes([]uint32{0, 1, 0xffff}, 16))
}

func TestNewBuffer(t *testing.T) {
	_, err := NewBuffer([]uint32{1, 2, 3})
	assert.ErrorIs(t, err, ErrConfigInvalid)
	_, err = NewBuffer([]uint32{})
	assert.ErrorIs(t, err, ErrConfigInvalid)

	values := QuadraticFade[uint16](512, 1000)
	b, err := NewBuffer(values)
	require.NoError(t, err)
	assert.Equal(t, 512, b.Len())
	assert.Equal(t, TxSize16, b.Size())
	assert.Equal(t, uint32(1024), b.Bytes())
	assert.Zero(t, uint64(b.Addr())%1024, "base aligned to buffer size")
	assert.Equal(t, values, b.Values())
	assert.Equal(t, uint32(values[511]), b.Load(511))

	// The buffer owns its copy.
	values[0] = 42
	assert.Equal(t, uint16(0), b.At(0))
}

func TestGenerate(t *testing.T) {
	b, err := Generate(8, func(i int) uint8 { return uint8(i * 3) })
	require.NoError(t, err)
	assert.Equal(t, []uint8{0, 3, 6, 9, 12, 15, 18, 21}, b.Values())
	assert.Zero(t, uint64(b.Addr())%8)

	_, err = Generate(6, func(int) uint8 { return 0 })
	assert.ErrorIs(t, err, ErrConfigInvalid)
}
