package dma

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingNextWrapsToStart(t *testing.T) {
	for _, tc := range []struct {
		length int
		size   uint32
	}{
		{256, 4},
		{512, 4},
		{32, 4},
		{64, 2},
		{16, 1},
	} {
		span := uint32(tc.length) * tc.size
		bits, ok := log2(span)
		require.True(t, ok)
		base := uint32(0x20000000) + 4*span
		addr := base
		for i := 0; i < tc.length; i++ {
			assert.Equal(t, base+uint32(i)*tc.size, addr)
			addr = RingNext(addr, tc.size, bits)
		}
		assert.Equal(t, base, addr, "length %d wraps after length elements", tc.length)
	}
}

func TestRingNextUnwrapped(t *testing.T) {
	assert.Equal(t, uint32(0x20000400), RingNext(0x200003fc, 4, 0))
}

func TestRingBits(t *testing.T) {
	b, err := NewBuffer(make([]uint32, 512))
	require.NoError(t, err)
	bits, err := RingBits(b)
	require.NoError(t, err)
	assert.Equal(t, uint8(11), bits)

	huge, err := NewBuffer(make([]uint32, 16384))
	require.NoError(t, err)
	_, err = RingBits(huge)
	assert.ErrorIs(t, err, ErrConfigInvalid)
}

func TestCheckRing(t *testing.T) {
	b, err := NewBuffer(make([]uint32, 64))
	require.NoError(t, err)

	assert.NoError(t, checkRing(b, 8))
	assert.NoError(t, checkRing(b, 4))
	assert.ErrorIs(t, checkRing(b, 16), ErrConfigInvalid, "beyond RING_SIZE")
	assert.ErrorIs(t, checkRing(b, 1), ErrConfigInvalid, "narrower than an element")
	assert.ErrorIs(t, checkRing(b, 9), ErrConfigInvalid, "does not divide the buffer")
}

func TestPow2Helpers(t *testing.T) {
	assert.True(t, isPow2(1))
	assert.True(t, isPow2(uint16(1024)))
	assert.False(t, isPow2(0))
	assert.False(t, isPow2(-4))
	assert.False(t, isPow2(12))

	n, ok := log2(uint32(2048))
	assert.True(t, ok)
	assert.Equal(t, uint8(11), n)
	_, ok = log2(uint32(3))
	assert.False(t, ok)

	assert.Equal(t, uint32(0x20000800), alignUp(uint32(0x20000404), 0x800))
	assert.Equal(t, uint32(0x20000800), alignUp(uint32(0x20000800), 0x800))
}
