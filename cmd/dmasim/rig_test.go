package main

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinygo-org/rp2dma/internal/simconfig"
	dma "github.com/tinygo-org/rp2dma/rp2-dma"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}

func TestRigReplay(t *testing.T) {
	c := simconfig.Default()
	require.NoError(t, c.Validate())

	sim := dma.NewSimulator()
	r, err := newRig(sim, c, quietLogger())
	require.NoError(t, err)
	m := newMetrics(prometheus.NewRegistry())

	require.NoError(t, r.start())
	require.NoError(t, r.pulse(context.Background(), 257, m))
	require.NoError(t, r.stop(context.Background()))

	want := dma.QuadraticFade[uint32](256, 0xffff)
	got := r.probes[0].Values()
	require.Len(t, got, 257)
	assert.Equal(t, want, got[:256])
	assert.Equal(t, want[0], got[256])
	assert.Equal(t, uint64(257), m.last.Elements)
	assert.Zero(t, m.last.Faults)
	assert.Zero(t, sim.Claimed())
}

func TestRigSimulateInterrupted(t *testing.T) {
	c := simconfig.Default()
	sim := dma.NewSimulator()
	r, err := newRig(sim, c, quietLogger())
	require.NoError(t, err)
	m := newMetrics(prometheus.NewRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	err = r.simulate(ctx, 1024, m, &out, false)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, r.p.Running())
	assert.Zero(t, sim.Claimed(), "channels released after an interrupted run")
	assert.Contains(t, out.String(), "pwm0.cc")
	assert.Zero(t, sim.Stats().Pulses)
}

func TestRigStepped(t *testing.T) {
	c := simconfig.Default()
	c.Mode = simconfig.ModeStepped
	c.Buffer.Generator = simconfig.GenBitRun
	c.BlockCount = 3
	require.NoError(t, c.Validate())

	sim := dma.NewSimulator()
	r, err := newRig(sim, c, quietLogger())
	require.NoError(t, err)
	require.NoError(t, r.start())
	require.NoError(t, r.pulse(context.Background(), 9, newMetrics(prometheus.NewRegistry())))

	assert.Equal(t, []uint32{0, 0, 0, 1, 1, 1, 3, 3, 3}, r.probes[0].Values())
}

func TestRigAlternating(t *testing.T) {
	c := simconfig.Default()
	c.Mode = simconfig.ModeAlternating
	c.Buffer.Length = 4
	c.Buffer.Generator = simconfig.GenClamped
	c.Sinks = []int{0, 1}
	require.NoError(t, c.Validate())

	sim := dma.NewSimulator()
	r, err := newRig(sim, c, quietLogger())
	require.NoError(t, err)
	require.NoError(t, r.start())
	require.NoError(t, r.pulse(context.Background(), 16, newMetrics(prometheus.NewRegistry())))

	a := []uint32{0, 1, 4, 9}
	b := []uint32{0, 1 << 16, 4 << 16, 9 << 16}
	cat := func(parts ...[]uint32) (out []uint32) {
		for _, p := range parts {
			out = append(out, p...)
		}
		return out
	}
	assert.Equal(t, cat(a, b), r.probes[0].Values())
	assert.Equal(t, cat(a, b), r.probes[1].Values())

	var out bytes.Buffer
	r.report(&out, false)
	assert.Contains(t, out.String(), "pwm1.cc")
}
