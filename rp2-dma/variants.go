package dma

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// NewReplay returns a pipeline that plays buf into sink over and over, one
// element per trigger pulse. The read side ring-wraps over the whole buffer, so
// at each block end the channel already points at element 0 and the completion
// handler only has to restart it.
func NewReplay[T Word](ctl Controller, buf *Buffer[T], sink Register, trigger uint8, opts ...Option) (*Pipeline, error) {
	ring, err := RingBits(buf)
	if err != nil {
		return nil, err
	}
	d, err := Build(buf, sink, Options{
		Size:      buf.Size(),
		Increment: IncrementRead,
		RingBits:  ring,
		Trigger:   trigger,
		Count:     uint32(buf.Len()),
		IRQ:       true,
	})
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	p := NewPipeline(ctl, opts...)
	id := p.Add(d)
	if err := p.Watch(id, RearmReplay); err != nil {
		return nil, err
	}
	p.log.WithFields(logrus.Fields{
		"variant": "replay",
		"length":  buf.Len(),
		"sink":    sink,
		"ring":    ring,
	}).Debug("pipeline built")
	return p, nil
}

// NewStepped returns a pipeline that writes each element of buf to sink repeat
// times before moving on to the next, wrapping after the last. The source never
// increments; the completion handler points it at the next element. A sink
// that shifts each word out bit by bit turns a BitRun buffer into a duty cycle
// ramp this way.
func NewStepped[T Word](ctl Controller, buf *Buffer[T], sink Register, trigger uint8, repeat uint32, opts ...Option) (*Pipeline, error) {
	d, err := Build(buf, sink, Options{
		Size:      buf.Size(),
		Increment: IncrementNone,
		Trigger:   trigger,
		Count:     repeat,
		IRQ:       true,
	})
	if err != nil {
		return nil, fmt.Errorf("stepped: %w", err)
	}
	p := NewPipeline(ctl, opts...)
	id := p.Add(d)
	if err := p.Watch(id, RearmStep); err != nil {
		return nil, err
	}
	p.log.WithFields(logrus.Fields{
		"variant": "stepped",
		"length":  buf.Len(),
		"sink":    sink,
		"repeat":  repeat,
	}).Debug("pipeline built")
	return p, nil
}

// AlternatingConfig describes a pair of fades that take turns on a rotating
// set of sinks.
type AlternatingConfig struct {
	// A and B are played in turn, one full buffer each.
	A, B *Buffer[uint32]
	// Sinks are visited in order, one per A/B pair. The number of sinks must
	// be a power of two.
	Sinks []Register
	// Trigger paces both data descriptors.
	Trigger uint8
}

// Descriptor ids of an alternating pipeline.
const (
	AltDataA DescriptorID = iota + 1
	AltDataB
	AltControlA
	AltControlB
)

// NewAlternating returns the four descriptor cycle
//
//	control A -> data A -> control B -> data B -> control A
//
// Each control descriptor copies the next sink address from a ring-wrapped
// table into the write-address trigger alias of its data descriptor, which
// starts it. Each data descriptor chains to the other pair's control
// descriptor. Once seeded the cycle needs no CPU at all.
func NewAlternating(ctl Controller, cfg AlternatingConfig, opts ...Option) (*Pipeline, error) {
	if cfg.A == nil || cfg.B == nil {
		return nil, fmt.Errorf("alternating: %w: missing buffer", ErrConfigInvalid)
	}
	if len(cfg.Sinks) == 0 {
		return nil, fmt.Errorf("alternating: %w: no sinks", ErrConfigInvalid)
	}
	addrs := make([]uint32, len(cfg.Sinks))
	for i, s := range cfg.Sinks {
		addrs[i] = s.Addr
	}
	table, err := NewBuffer(addrs)
	if err != nil {
		return nil, fmt.Errorf("alternating: sink table: %w", err)
	}
	tableRing, err := RingBits(table)
	if err != nil {
		return nil, fmt.Errorf("alternating: sink table: %w", err)
	}

	data := func(buf *Buffer[uint32], chain DescriptorID) (Descriptor, error) {
		ring, err := RingBits(buf)
		if err != nil {
			return Descriptor{}, err
		}
		return Build(buf, cfg.Sinks[0], Options{
			Size:      TxSize32,
			Increment: IncrementRead,
			RingBits:  ring,
			Trigger:   cfg.Trigger,
			Count:     uint32(buf.Len()),
			ChainTo:   chain,
		})
	}
	control := func(target DescriptorID) (Descriptor, error) {
		return Build(table, Alias{Target: target}, Options{
			Size:      TxSize32,
			Increment: IncrementRead,
			RingBits:  tableRing,
			Trigger:   TREQ_PERMANENT,
			Count:     1,
		})
	}

	var descs [4]Descriptor
	build := []func() error{
		func() (err error) { descs[0], err = data(cfg.A, AltControlB); return },
		func() (err error) { descs[1], err = data(cfg.B, AltControlA); return },
		func() (err error) { descs[2], err = control(AltDataA); return },
		func() (err error) { descs[3], err = control(AltDataB); return },
	}
	for _, fn := range build {
		if err := fn(); err != nil {
			return nil, fmt.Errorf("alternating: %w", err)
		}
	}

	p := NewPipeline(ctl, opts...)
	for _, d := range descs {
		p.Add(d)
	}
	if err := p.SetSeed(AltControlA); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("alternating: %w", err)
	}
	p.log.WithFields(logrus.Fields{
		"variant": "alternating",
		"length":  cfg.A.Len(),
		"sinks":   len(cfg.Sinks),
	}).Debug("pipeline built")
	return p, nil
}
