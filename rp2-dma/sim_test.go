package dma

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulatorPlace(t *testing.T) {
	s := NewSimulator()
	big, _ := NewBuffer(make([]uint32, 256))
	small, _ := NewBuffer(make([]uint8, 4))
	mid, _ := NewBuffer(make([]uint32, 16))

	addr, err := s.Place(big)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x20000000), addr)
	addr, err = s.Place(small)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x20000400), addr)
	addr, err = s.Place(mid)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x20000440), addr)

	again, err := s.Place(big)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x20000000), again)

	huge, _ := NewBuffer(make([]uint32, 1<<17))
	_, err = s.Place(huge)
	assert.ErrorIs(t, err, ErrResourceExhausted)
}

func TestSimulatorClaim(t *testing.T) {
	s := NewSimulator()
	s.Exhaust(NumChannels - 1)
	ch, err := s.Claim()
	require.NoError(t, err)
	assert.Equal(t, Channel(NumChannels-1), ch)
	_, err = s.Claim()
	assert.ErrorIs(t, err, ErrResourceExhausted)

	s.Unclaim(3)
	ch, err = s.Claim()
	require.NoError(t, err)
	assert.Equal(t, Channel(3), ch)
	assert.Panics(t, func() { s.Unclaim(NumChannels) })
}

func TestSimulatorAliasTrigger(t *testing.T) {
	s := NewSimulator()
	buf, _ := NewBuffer([]uint32{7, 8})
	probe := s.Attach(testSink)
	base, err := s.Place(buf)
	require.NoError(t, err)

	cc := DefaultChannelConfig(1)
	cc.SetIRQQuiet(true)
	s.Configure(1, Program{Read: base, Count: 2, Config: cc})
	assert.False(t, s.Busy(1), "configure does not start")

	// A control block writing the alias sets the destination and starts
	// the channel; permanently paced blocks run to completion at once.
	s.busWrite(AliasAddr(1), testSink.Addr)
	s.run()
	assert.Equal(t, []uint32{7, 8}, probe.Values())
	assert.False(t, s.Busy(1))
	assert.Equal(t, testSink.Addr, s.WriteAddr(1))
	assert.Equal(t, base+8, s.ReadAddr(1))
	assert.Zero(t, s.Pending())

	probe.Reset()
	s.busWrite(channelReg(1, offREAD_ADDR), base)
	assert.False(t, s.Busy(1), "READ_ADDR does not trigger")
	s.busWrite(channelReg(1, offAL1_TRANS_COUNT_TRIG), 1)
	s.run()
	assert.Equal(t, []uint32{7}, probe.Values(), "count trigger alias starts the channel")

	probe.Reset()
	s.busWrite(channelReg(1, offTRANS_COUNT), 1)
	assert.False(t, s.Busy(1), "TRANS_COUNT does not trigger")
	s.SetReadAddrTrig(1, base+4)
	assert.Equal(t, []uint32{8}, probe.Values(), "starts from the new read address")
}

func TestSimulatorPacedChannel(t *testing.T) {
	s := NewSimulator()
	buf, _ := NewBuffer([]uint32{1, 2, 3, 4})
	probe := s.Attach(testSink)
	base, _ := s.Place(buf)

	cc := DefaultChannelConfig(2)
	cc.SetTREQ_SEL(DREQ_PWM_WRAP0)
	s.Configure(2, Program{Read: base, Write: testSink.Addr, Count: 4, Config: cc})
	s.Trigger(1 << 2)
	assert.True(t, s.Busy(2))
	assert.Equal(t, uint32(4), s.Remaining(2))

	s.Trigger(1 << 2)
	assert.Equal(t, uint64(1), s.Stats().Ignored, "trigger on a busy channel")

	s.Pulse(DREQ_PWM_WRAP0)
	assert.Equal(t, uint32(3), s.Remaining(2))
	s.Pulse(DREQ_PWM_WRAP1)
	assert.Equal(t, uint64(1), s.Stats().Underruns)

	s.Run(DREQ_PWM_WRAP0, 3)
	assert.Equal(t, []uint32{1, 2, 3, 4}, probe.Values())
	assert.Equal(t, []uint64{1, 3, 4, 5}, probe.Ticks())
	assert.False(t, s.Busy(2))
	assert.Equal(t, uint32(1<<2), s.Pending(), "completion raised without a handler")
	s.Acknowledge(1 << 2)
	assert.Zero(t, s.Pending())

	st := s.Stats()
	assert.Equal(t, uint64(5), st.Pulses)
	assert.Equal(t, uint64(4), st.Elements)
	assert.Equal(t, uint64(1), st.Blocks)
}

func TestSimulatorAbort(t *testing.T) {
	s := NewSimulator(SimAbortLatency(2))
	buf, _ := NewBuffer([]uint32{1, 2})
	base, _ := s.Place(buf)
	cc := DefaultChannelConfig(0)
	cc.SetTREQ_SEL(DREQ_PWM_WRAP0)
	s.Configure(0, Program{Read: base, Write: testSink.Addr, Count: 2, Config: cc})
	s.Trigger(1)
	require.True(t, s.Busy(0))

	s.Abort(1)
	assert.False(t, s.Busy(0))
	assert.Equal(t, uint32(1), s.Pending())
	assert.True(t, s.Aborting(1))
	assert.True(t, s.Aborting(1))
	assert.False(t, s.Aborting(1))

	trace := s.Trace()
	require.NotEmpty(t, trace)
	assert.Equal(t, EventAbort, trace[len(trace)-1].Kind)
}

func TestSimulatorFaults(t *testing.T) {
	s := NewSimulator()
	cc := DefaultChannelConfig(3)
	cc.SetIRQQuiet(true)
	s.Configure(3, Program{Read: 0x1000, Write: 0x2000, Count: 1, Config: cc})
	s.Trigger(1 << 3)
	assert.Equal(t, uint64(2), s.Stats().Faults)

	_, err := s.Peek(0x1000)
	assert.Error(t, err)
}

func TestSimulatorChain(t *testing.T) {
	s := NewSimulator()
	a, _ := NewBuffer([]uint32{1, 2})
	b, _ := NewBuffer([]uint32{3, 4})
	probe := s.Attach(testSink)
	baseA, _ := s.Place(a)
	baseB, _ := s.Place(b)

	// Channel 5 chains to 4; 4 chains to itself, which ends the chain.
	first := DefaultChannelConfig(4)
	first.SetIRQQuiet(true)
	last := DefaultChannelConfig(4)
	last.SetIRQQuiet(true)
	s.Configure(5, Program{Read: baseA, Write: testSink.Addr, Count: 2, Config: first})
	s.Configure(4, Program{Read: baseB, Write: testSink.Addr, Count: 2, Config: last})
	s.Trigger(1 << 5)
	assert.Equal(t, []uint32{1, 2, 3, 4}, probe.Values())

	var kinds []EventKind
	for _, e := range s.Trace() {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []EventKind{
		EventBlockStart, EventWrite, EventWrite, EventBlockEnd,
		EventBlockStart, EventWrite, EventWrite, EventBlockEnd,
	}, kinds)
	assert.Contains(t, s.Trace()[1].String(), "write")
}
