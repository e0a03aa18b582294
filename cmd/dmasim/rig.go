package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tinygo-org/rp2dma/internal/simconfig"
	dma "github.com/tinygo-org/rp2dma/rp2-dma"
	"github.com/tinygo-org/rp2dma/rp2-dma/piolib"
)

// observeEvery is the number of pulses between metric updates.
const observeEvery = 64

// rig is a pipeline wired to a simulator with a probe on every sink.
type rig struct {
	log    logrus.FieldLogger
	sim    *dma.Simulator
	p      *dma.Pipeline
	dreq   uint8
	probes []*dma.Probe
	pacing dma.Pacing
	length int
}

// newRig builds the pipeline described by c on sim.
func newRig(sim *dma.Simulator, c simconfig.Config, l logrus.FieldLogger) (*rig, error) {
	r := &rig{log: l, sim: sim, pacing: c.DMAPacing()}
	values, err := waveform(c)
	if err != nil {
		return nil, err
	}
	opts := []dma.Option{dma.WithLogger(l)}

	switch c.Mode {
	case simconfig.ModeReplay:
		buf, err := dma.NewBuffer(values)
		if err != nil {
			return nil, err
		}
		sink := piolib.PWMCompare(uint8(c.Sinks[0]))
		r.dreq = dma.PWMWrapDREQ(uint8(c.Sinks[0]))
		r.length = buf.Len()
		r.p, err = dma.NewReplay(sim, buf, sink, r.dreq, opts...)
		if err != nil {
			return nil, err
		}
		r.probes = append(r.probes, sim.Attach(sink))

	case simconfig.ModeStepped:
		buf, err := dma.NewBuffer(values)
		if err != nil {
			return nil, err
		}
		sink := piolib.PIOTxFIFO(0, 0)
		r.dreq = dma.PIOTxDREQ(0, 0)
		r.length = buf.Len() * int(c.BlockCount)
		r.p, err = dma.NewStepped(sim, buf, sink, r.dreq, c.BlockCount, opts...)
		if err != nil {
			return nil, err
		}
		r.probes = append(r.probes, sim.Attach(sink))

	case simconfig.ModeAlternating:
		a, err := dma.NewBuffer(values)
		if err != nil {
			return nil, err
		}
		b, err := dma.NewBuffer(dma.ShiftLanes(values, 16))
		if err != nil {
			return nil, err
		}
		sinks := make([]dma.Register, len(c.Sinks))
		for i, s := range c.Sinks {
			sinks[i] = piolib.PWMCompare(uint8(s))
			r.probes = append(r.probes, sim.Attach(sinks[i]))
		}
		r.dreq = dma.PWMWrapDREQ(uint8(c.Sinks[0]))
		r.length = 2 * a.Len() * len(sinks)
		r.p, err = dma.NewAlternating(sim, dma.AlternatingConfig{
			A:       a,
			B:       b,
			Sinks:   sinks,
			Trigger: r.dreq,
		}, opts...)
		if err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("unknown mode %q", c.Mode)
	}
	return r, nil
}

// waveform returns the buffer contents selected by c.
func waveform(c simconfig.Config) ([]uint32, error) {
	var values []uint32
	switch c.Buffer.Generator {
	case simconfig.GenQuadratic:
		values = dma.QuadraticFade(c.Buffer.Length, c.Buffer.MaxLevel)
	case simconfig.GenClamped:
		values = dma.ClampedSquare(c.Buffer.Length, c.Buffer.MaxLevel)
	case simconfig.GenBitRun:
		return dma.BitRun[uint32](), nil
	default:
		return nil, fmt.Errorf("unknown generator %q", c.Buffer.Generator)
	}
	if c.Buffer.Palindrome {
		values = dma.Palindrome(values)
	}
	return values, nil
}

// simulate starts the pipeline, delivers n pulses, stops it and prints the
// report. The pipeline is stopped and reported even when ctx ends the run
// early; the returned error is then ctx's.
func (r *rig) simulate(ctx context.Context, n int, m *metrics, w io.Writer, trace bool) error {
	if err := r.start(); err != nil {
		return err
	}
	pulseErr := r.pulse(ctx, n, m)
	if pulseErr != nil {
		r.log.WithError(pulseErr).Warn("simulation interrupted")
	}
	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.stop(stopCtx); err != nil {
		return err
	}
	r.report(w, trace)
	return pulseErr
}

func (r *rig) start() error { return r.p.Start() }

func (r *rig) stop(ctx context.Context) error { return r.p.Stop(ctx) }

// pulse delivers n trigger pulses, updating m as it goes.
func (r *rig) pulse(ctx context.Context, n int, m *metrics) error {
	for i := 0; i < n; i++ {
		if i%observeEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			m.observe(r.sim.Stats(), r.p.Handler())
		}
		r.sim.Pulse(r.dreq)
	}
	m.observe(r.sim.Stats(), r.p.Handler())
	return nil
}

// report prints a summary of what reached the sinks.
func (r *rig) report(w io.Writer, trace bool) {
	if trace {
		for _, e := range r.sim.Trace() {
			fmt.Fprintln(w, e)
		}
	}
	st := r.sim.Stats()
	fmt.Fprintf(w, "pulses %d  elements %d  blocks %d  irqs %d  underruns %d  faults %d\n",
		st.Pulses, st.Elements, st.Blocks, st.IRQs, st.Underruns, st.Faults)
	fmt.Fprintf(w, "element period %v  period %v  simulated %v\n",
		r.pacing.ElementPeriod(), r.pacing.CycleDuration(r.length), r.pacing.CycleDuration(int(st.Pulses)))
	for _, p := range r.probes {
		v := p.Values()
		fmt.Fprintf(w, "%-10s %6d writes", p.Name, len(v))
		if len(v) > 0 {
			fmt.Fprintf(w, "  first %#x  last %#x", v[0], v[len(v)-1])
		}
		fmt.Fprintln(w)
	}
}
