package dma

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSink = Register{Name: "pwm0.cc", Addr: 0x4005000c}

func TestBuild(t *testing.T) {
	words, err := NewBuffer(make([]uint32, 256))
	require.NoError(t, err)
	halves, err := NewBuffer(make([]uint16, 16))
	require.NoError(t, err)

	for _, tc := range []struct {
		name     string
		src, dst Endpoint
		opts     Options
		ok       bool
	}{
		{"replay", words, testSink, Options{Size: TxSize32, Increment: IncrementRead, RingBits: 10, Count: 256}, true},
		{"ring allows long blocks", words, testSink, Options{Size: TxSize32, Increment: IncrementRead, RingBits: 10, Count: 1 << 20}, true},
		{"fixed source repeats", words, testSink, Options{Size: TxSize32, Count: 10000}, true},
		{"control", words, Alias{Target: 1}, Options{Size: TxSize32, Increment: IncrementRead, Count: 1}, true},
		{"capture", testSink, halves, Options{Size: TxSize16, Increment: IncrementWrite, Count: 16}, true},

		{"missing source", nil, testSink, Options{Size: TxSize32, Count: 1}, false},
		{"zero count", words, testSink, Options{Size: TxSize32}, false},
		{"bad size", words, testSink, Options{Size: 3, Count: 1}, false},
		{"size mismatch", halves, testSink, Options{Size: TxSize32, Count: 1}, false},
		{"memory to memory", words, words, Options{Size: TxSize32, Count: 1}, false},
		{"register to register", testSink, testSink, Options{Size: TxSize32, Count: 1}, false},
		{"narrow alias write", halves, Alias{Target: 1}, Options{Size: TxSize16, Count: 1}, false},
		{"alias source", Alias{Target: 1}, words, Options{Size: TxSize32, Count: 1}, false},
		{"register increments", words, testSink, Options{Size: TxSize32, Increment: IncrementWrite, Count: 1}, false},
		{"bad increment", words, testSink, Options{Size: TxSize32, Increment: 7, Count: 1}, false},
		{"ring without increment", words, testSink, Options{Size: TxSize32, RingBits: 10, Count: 1}, false},
		{"ring wider than buffer", words, testSink, Options{Size: TxSize32, Increment: IncrementRead, RingBits: 12, Count: 1}, false},
		{"overrun", words, testSink, Options{Size: TxSize32, Increment: IncrementRead, Count: 257}, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			d, err := Build(tc.src, tc.dst, tc.opts)
			if tc.ok {
				require.NoError(t, err)
				assert.Equal(t, tc.opts.Count, d.Count)
				return
			}
			assert.ErrorIs(t, err, ErrConfigInvalid)
		})
	}
}

func TestDescriptorRole(t *testing.T) {
	buf, err := NewBuffer(make([]uint32, 4))
	require.NoError(t, err)

	data, err := Build(buf, testSink, Options{Size: TxSize32, Increment: IncrementRead, Count: 4})
	require.NoError(t, err)
	assert.Equal(t, RoleData, data.Role())
	assert.Same(t, buf, data.Memory())

	control, err := Build(buf, Alias{Target: 2}, Options{Size: TxSize32, Increment: IncrementRead, Count: 1})
	require.NoError(t, err)
	assert.Equal(t, RoleControl, control.Role())
	assert.Equal(t, "control", control.Role().String())
}

func TestDescriptorChannelConfig(t *testing.T) {
	buf, err := NewBuffer(make([]uint32, 256))
	require.NoError(t, err)
	d, err := Build(buf, testSink, Options{
		Size:      TxSize32,
		Increment: IncrementRead,
		RingBits:  10,
		Trigger:   DREQ_PWM_WRAP0,
		Count:     256,
		IRQ:       true,
	})
	require.NoError(t, err)

	cc := d.ChannelConfig(2, 5)
	assert.True(t, cc.Enabled())
	assert.Equal(t, uint8(DREQ_PWM_WRAP0), cc.TREQ())
	assert.Equal(t, uint8(5), cc.ChainTo())
	assert.Equal(t, TxSize32, cc.TransferDataSize())
	assert.True(t, cc.ReadIncrement())
	assert.False(t, cc.WriteIncrement())
	assert.False(t, cc.IRQQuiet())
	assert.False(t, cc.HighPriority())
	write, ring := cc.Ring()
	assert.False(t, write)
	assert.Equal(t, uint8(10), ring)

	d.IRQ = false
	d.HighPriority = true
	cc = d.ChannelConfig(2, 2)
	assert.True(t, cc.IRQQuiet())
	assert.True(t, cc.HighPriority())
	assert.Equal(t, uint8(2), cc.ChainTo(), "chaining to itself disables chaining")
}

// offsetMemory reports a base address one element past its buffer's, so it
// is never aligned to a ring spanning the whole buffer.
type offsetMemory struct {
	*Buffer[uint32]
}

func (m offsetMemory) Addr() uintptr { return m.Buffer.Addr() + 4 }

func TestBuildRejectsMisalignedRing(t *testing.T) {
	buf, err := NewBuffer(make([]uint32, 64))
	require.NoError(t, err)
	opts := Options{Size: TxSize32, Increment: IncrementRead, RingBits: 8, Count: 64}

	_, err = Build(buf, testSink, opts)
	require.NoError(t, err)

	_, err = Build(offsetMemory{buf}, testSink, opts)
	assert.ErrorIs(t, err, ErrConfigInvalid)
	assert.Contains(t, err.Error(), "not aligned")

	// Without a ring the base address does not matter.
	opts.RingBits = 0
	_, err = Build(offsetMemory{buf}, testSink, opts)
	assert.NoError(t, err)
}
