package dma

import (
	"fmt"
	"io"
	"math/bits"

	"github.com/sirupsen/logrus"
)

// SRAM window the simulator places buffers in.
const (
	sramBase = 0x20000000
	sramSize = 264 << 10
)

// maxSteps bounds one run of the simulator's event loop. A cycle made only of
// permanently paced channels never yields and is cut off here.
const maxSteps = 1 << 20

// EventKind classifies trace events.
type EventKind uint8

const (
	EventBlockStart EventKind = iota
	EventBlockEnd
	EventWrite
	EventIRQ
	EventAbort
)

func (k EventKind) String() string {
	switch k {
	case EventBlockStart:
		return "start"
	case EventBlockEnd:
		return "end"
	case EventWrite:
		return "write"
	case EventIRQ:
		return "irq"
	case EventAbort:
		return "abort"
	}
	return "unknown"
}

// Event is one entry of the simulator's execution trace. Tick counts trigger
// pulses delivered so far.
type Event struct {
	Tick    uint64
	Kind    EventKind
	Channel Channel
	Addr    uint32
	Value   uint32
}

func (e Event) String() string {
	switch e.Kind {
	case EventWrite:
		return fmt.Sprintf("%8d ch%-2d %-5s %#08x <- %#x", e.Tick, e.Channel, e.Kind, e.Addr, e.Value)
	default:
		return fmt.Sprintf("%8d ch%-2d %s", e.Tick, e.Channel, e.Kind)
	}
}

// Stats counts what the simulator has done since it was created.
type Stats struct {
	Pulses   uint64
	Elements uint64
	Blocks   uint64
	IRQs     uint64
	// Ignored counts triggers that hit a busy or disabled channel.
	Ignored uint64
	// Underruns counts pulses that found no busy channel paced by them.
	Underruns uint64
	// Faults counts accesses to unmapped or read-only addresses.
	Faults uint64
}

// Probe records every value written to one peripheral register.
type Probe struct {
	Register
	writes []uint32
	ticks  []uint64
}

// Values returns the recorded writes in order.
func (p *Probe) Values() []uint32 { return append([]uint32(nil), p.writes...) }

// Ticks returns the pulse count at which each write happened.
func (p *Probe) Ticks() []uint64 { return append([]uint64(nil), p.ticks...) }

// Len returns the number of recorded writes.
func (p *Probe) Len() int { return len(p.writes) }

// Reset drops the recorded writes.
func (p *Probe) Reset() {
	p.writes = p.writes[:0]
	p.ticks = p.ticks[:0]
}

type simChannel struct {
	read, write uint32
	count       uint32
	reload      uint32
	ctrl        ChannelConfig
	busy        bool
	// aborting is the number of Aborting polls left before the abort settles.
	aborting int
}

type placement struct {
	base uint32
	mem  Memory
}

// Simulator is a host model of the RP2040 DMA block implementing Controller.
// It decodes bus writes into the channel register space, so control blocks
// that write another channel's trigger alias behave as on hardware. Channels
// paced by a DREQ move one element per Pulse; permanently paced channels run
// their whole block as soon as they are triggered.
//
// Completion interrupts are delivered synchronously: a handler runs to
// completion before the pulse that raised it returns, and a completion raised
// while a handler runs is delivered after it returns.
//
// A Simulator is not safe for concurrent use.
type Simulator struct {
	log          logrus.FieldLogger
	abortLatency int
	tracing      bool

	ch       [NumChannels]simChannel
	claimed  uint32
	intr     uint32
	inte     uint32
	handlers [NumChannels]func()

	next   uint32
	placed map[uintptr]placement
	order  []placement
	probes map[uint32]*Probe

	ready   []Channel
	running bool
	tick    uint64
	trace   []Event
	stats   Stats
}

var _ Controller = (*Simulator)(nil)

// SimOption configures a Simulator.
type SimOption func(*Simulator)

// SimLogger sets the logger faults are reported to.
func SimLogger(l logrus.FieldLogger) SimOption {
	return func(s *Simulator) { s.log = l }
}

// SimAbortLatency sets how many Aborting polls an abort takes to settle.
func SimAbortLatency(polls int) SimOption {
	return func(s *Simulator) { s.abortLatency = polls }
}

// SimTrace enables or disables the execution trace. It is enabled by default.
func SimTrace(enabled bool) SimOption {
	return func(s *Simulator) { s.tracing = enabled }
}

// NewSimulator returns a simulator with every channel free and idle.
func NewSimulator(opts ...SimOption) *Simulator {
	s := &Simulator{
		tracing: true,
		next:    sramBase,
		placed:  make(map[uintptr]placement),
		probes:  make(map[uint32]*Probe),
	}
	for i := range s.ch {
		s.ch[i].ctrl = DefaultChannelConfig(uint8(i))
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		l := logrus.New()
		l.Out = io.Discard
		s.log = l
	}
	return s
}

// Attach starts recording writes to r.
func (s *Simulator) Attach(r Register) *Probe {
	if p, ok := s.probes[r.Addr]; ok {
		return p
	}
	p := &Probe{Register: r}
	s.probes[r.Addr] = p
	return p
}

// Exhaust claims n free channels on behalf of some other user.
func (s *Simulator) Exhaust(n int) {
	for ; n > 0; n-- {
		if _, err := s.Claim(); err != nil {
			return
		}
	}
}

func (s *Simulator) Claim() (Channel, error) {
	free := ^s.claimed & (1<<NumChannels - 1)
	if free == 0 {
		return 0, ErrResourceExhausted
	}
	ch := Channel(bits.TrailingZeros32(free))
	s.claimed |= 1 << ch
	return ch, nil
}

func (s *Simulator) Unclaim(ch Channel) {
	s.check(ch)
	s.claimed &^= 1 << ch
}

// Claimed returns the mask of claimed channels.
func (s *Simulator) Claimed() uint32 { return s.claimed }

// Place assigns m a bus address aligned to its size rounded up to a power of
// two. Placing the same buffer twice returns the same address.
func (s *Simulator) Place(m Memory) (uint32, error) {
	if p, ok := s.placed[m.Addr()]; ok {
		return p.base, nil
	}
	align := uint32(4)
	if n := m.Bytes(); n > align {
		align = 1 << bits.Len32(n-1)
	}
	base := alignUp(s.next, align)
	if base+m.Bytes() > sramBase+sramSize || base < s.next {
		return 0, fmt.Errorf("%w: %d byte buffer does not fit in SRAM", ErrResourceExhausted, m.Bytes())
	}
	s.next = base + m.Bytes()
	p := placement{base: base, mem: m}
	s.placed[m.Addr()] = p
	s.order = append(s.order, p)
	return base, nil
}

func (s *Simulator) Configure(ch Channel, p Program) {
	s.check(ch)
	c := &s.ch[ch]
	c.read = p.Read
	c.write = p.Write
	c.reload = p.Count
	c.ctrl = p.Config
}

func (s *Simulator) Trigger(mask uint32) {
	for ch := Channel(0); ch < NumChannels; ch++ {
		if mask&(1<<ch) != 0 {
			s.ready = append(s.ready, ch)
		}
	}
	s.run()
}

func (s *Simulator) SetReadAddrTrig(ch Channel, addr uint32) {
	s.busWrite(channelReg(ch, offAL3_READ_ADDR_TRIG), addr)
	s.run()
}

func (s *Simulator) EnableIRQ(ch Channel, fn func()) {
	s.check(ch)
	s.handlers[ch] = fn
	s.inte |= 1 << ch
	s.run()
}

func (s *Simulator) DisableIRQ(ch Channel) {
	s.check(ch)
	s.inte &^= 1 << ch
	s.handlers[ch] = nil
}

func (s *Simulator) Acknowledge(mask uint32) { s.intr &^= mask }

// Pending returns the raw completion flags (INTR).
func (s *Simulator) Pending() uint32 { return s.intr }

func (s *Simulator) Abort(mask uint32) {
	for ch := Channel(0); ch < NumChannels; ch++ {
		if mask&(1<<ch) == 0 {
			continue
		}
		c := &s.ch[ch]
		if c.busy && !c.ctrl.IRQQuiet() {
			s.intr |= 1 << ch
		}
		c.busy = false
		c.count = 0
		c.aborting = s.abortLatency
		s.record(Event{Kind: EventAbort, Channel: ch})
	}
	ready := s.ready[:0]
	for _, ch := range s.ready {
		if mask&(1<<ch) == 0 {
			ready = append(ready, ch)
		}
	}
	s.ready = ready
}

func (s *Simulator) Aborting(mask uint32) bool {
	pending := false
	for ch := Channel(0); ch < NumChannels; ch++ {
		if mask&(1<<ch) != 0 && s.ch[ch].aborting > 0 {
			s.ch[ch].aborting--
			pending = true
		}
	}
	return pending
}

func (s *Simulator) Busy(ch Channel) bool {
	s.check(ch)
	return s.ch[ch].busy
}

// Remaining returns the live transfer count of ch.
func (s *Simulator) Remaining(ch Channel) uint32 {
	s.check(ch)
	return s.ch[ch].count
}

// ReadAddr returns the live read address of ch.
func (s *Simulator) ReadAddr(ch Channel) uint32 {
	s.check(ch)
	return s.ch[ch].read
}

// WriteAddr returns the live write address of ch.
func (s *Simulator) WriteAddr(ch Channel) uint32 {
	s.check(ch)
	return s.ch[ch].write
}

// Pulse delivers one transfer request on dreq: every busy channel paced by it
// moves one element, high priority channels first.
func (s *Simulator) Pulse(dreq uint8) {
	s.tick++
	s.stats.Pulses++
	served := false
	for _, high := range [2]bool{true, false} {
		for ch := Channel(0); ch < NumChannels; ch++ {
			c := &s.ch[ch]
			if !c.busy || c.ctrl.TREQ() != dreq || c.ctrl.HighPriority() != high {
				continue
			}
			served = true
			s.transfer(ch)
			if c.count == 0 {
				s.complete(ch)
			}
		}
	}
	if !served {
		s.stats.Underruns++
	}
	s.run()
}

// Run delivers n pulses on dreq.
func (s *Simulator) Run(dreq uint8, n int) {
	for i := 0; i < n; i++ {
		s.Pulse(dreq)
	}
}

// Peek reads the element at a placed bus address.
func (s *Simulator) Peek(addr uint32) (uint32, error) {
	for _, p := range s.order {
		if addr < p.base || addr >= p.base+p.mem.Bytes() {
			continue
		}
		stride := p.mem.Size().Bytes()
		if (addr-p.base)%stride != 0 {
			break
		}
		return p.mem.Load(int((addr - p.base) / stride)), nil
	}
	return 0, fmt.Errorf("%w: %#08x", errNotMapped, addr)
}

// Trace returns the recorded events.
func (s *Simulator) Trace() []Event { return append([]Event(nil), s.trace...) }

// ResetTrace drops the recorded events.
func (s *Simulator) ResetTrace() { s.trace = s.trace[:0] }

// Stats returns the counters.
func (s *Simulator) Stats() Stats { return s.stats }

// Tick returns the number of pulses delivered.
func (s *Simulator) Tick() uint64 { return s.tick }

func (s *Simulator) check(ch Channel) {
	if ch >= NumChannels {
		panic(badChannel)
	}
}

func (s *Simulator) record(e Event) {
	if !s.tracing {
		return
	}
	e.Tick = s.tick
	s.trace = append(s.trace, e)
}

func (s *Simulator) fault(msg string, addr uint32) {
	s.stats.Faults++
	s.log.WithFields(logrus.Fields{
		"addr": fmt.Sprintf("%#08x", addr),
		"tick": s.tick,
	}).Warn(msg)
}

// run starts queued channels and delivers pending interrupts until neither is
// left. It is reentrant only in the sense that nested calls return at once;
// the outermost call does all the work.
func (s *Simulator) run() {
	if s.running {
		return
	}
	s.running = true
	defer func() { s.running = false }()
	for step := 0; step < maxSteps; step++ {
		if len(s.ready) > 0 {
			ch := s.ready[0]
			s.ready = s.ready[1:]
			s.start(ch)
			continue
		}
		if !s.deliver() {
			return
		}
	}
	s.fault("simulator made no progress, dropping queued triggers", 0)
	s.ready = s.ready[:0]
}

// deliver calls the handler of every channel whose completion flag is raised
// and enabled. It reports whether any handler acknowledged its flag.
func (s *Simulator) deliver() bool {
	pending := s.intr & s.inte
	if pending == 0 {
		return false
	}
	progress := false
	for ch := Channel(0); ch < NumChannels; ch++ {
		if pending&(1<<ch) == 0 || s.handlers[ch] == nil {
			continue
		}
		s.stats.IRQs++
		s.record(Event{Kind: EventIRQ, Channel: ch})
		s.handlers[ch]()
		if s.intr&(1<<ch) == 0 {
			progress = true
		}
	}
	return progress || len(s.ready) > 0
}

func (s *Simulator) start(ch Channel) {
	c := &s.ch[ch]
	if c.busy || !c.ctrl.Enabled() {
		s.stats.Ignored++
		return
	}
	c.busy = true
	c.count = c.reload
	s.record(Event{Kind: EventBlockStart, Channel: ch, Addr: c.write})
	if c.ctrl.TREQ() == TREQ_PERMANENT {
		for c.busy && c.count > 0 {
			s.transfer(ch)
		}
	}
	if c.busy && c.count == 0 {
		s.complete(ch)
	}
}

func (s *Simulator) complete(ch Channel) {
	c := &s.ch[ch]
	c.busy = false
	s.stats.Blocks++
	s.record(Event{Kind: EventBlockEnd, Channel: ch})
	if !c.ctrl.IRQQuiet() {
		s.intr |= 1 << ch
	}
	if to := Channel(c.ctrl.ChainTo()); to != ch {
		s.ready = append(s.ready, to)
	}
}

func (s *Simulator) transfer(ch Channel) {
	c := &s.ch[ch]
	inc := c.ctrl.TransferDataSize().Bytes()
	v, err := s.Peek(c.read)
	if err != nil {
		s.fault("read from unmapped address", c.read)
	}
	write := c.write
	ringWrite, ringBits := c.ctrl.Ring()
	if c.ctrl.ReadIncrement() {
		if ringWrite {
			c.read += inc
		} else {
			c.read = RingNext(c.read, inc, ringBits)
		}
	}
	if c.ctrl.WriteIncrement() {
		if ringWrite {
			c.write = RingNext(c.write, inc, ringBits)
		} else {
			c.write += inc
		}
	}
	c.count--
	s.stats.Elements++
	if s.busWrite(write, v) {
		s.record(Event{Kind: EventWrite, Channel: ch, Addr: write, Value: v})
	}
}

// busWrite performs a write from a channel or the CPU to addr and reports
// whether it landed on an attached probe.
func (s *Simulator) busWrite(addr, v uint32) bool {
	if addr >= dmaBase && addr < dmaBase+NumChannels*channelStride {
		ch := Channel((addr - dmaBase) / channelStride)
		c := &s.ch[ch]
		switch (addr - dmaBase) % channelStride {
		case offREAD_ADDR:
			c.read = v
		case offWRITE_ADDR:
			c.write = v
		case offTRANS_COUNT:
			c.reload = v
		case offCTRL_TRIG:
			c.ctrl = ChannelConfig{CTRL: v}
			s.ready = append(s.ready, ch)
		case offAL1_CTRL:
			c.ctrl = ChannelConfig{CTRL: v}
		case offAL1_TRANS_COUNT_TRIG:
			c.reload = v
			s.ready = append(s.ready, ch)
		case offAL2_WRITE_ADDR_TRIG:
			c.write = v
			s.ready = append(s.ready, ch)
		case offAL3_READ_ADDR_TRIG:
			c.read = v
			s.ready = append(s.ready, ch)
		default:
			s.fault("write to unmodelled channel register", addr)
		}
		return false
	}
	if p, ok := s.probes[addr]; ok {
		p.writes = append(p.writes, v)
		p.ticks = append(p.ticks, s.tick)
		return true
	}
	if _, err := s.Peek(addr); err == nil {
		s.fault("write to read-only buffer", addr)
		return false
	}
	s.fault("write to unmapped address", addr)
	return false
}
