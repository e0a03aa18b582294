package main

import (
	"github.com/prometheus/client_golang/prometheus"
	dma "github.com/tinygo-org/rp2dma/rp2-dma"
)

const namespace = "dmasim"

type metrics struct {
	pulses    prometheus.Counter
	elements  prometheus.Counter
	blocks    prometheus.Counter
	irqs      prometheus.Counter
	underruns prometheus.Counter
	faults    prometheus.Counter
	cursor    prometheus.Gauge

	last dma.Stats
}

func newMetrics(pr prometheus.Registerer) *metrics {
	counter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		})
		pr.MustRegister(c)
		return c
	}
	m := &metrics{
		pulses:    counter("pulses_total", "Trigger pulses delivered"),
		elements:  counter("elements_total", "Elements moved by all channels"),
		blocks:    counter("blocks_total", "Blocks completed by all channels"),
		irqs:      counter("irqs_total", "Completion interrupts delivered"),
		underruns: counter("underruns_total", "Pulses that found no channel ready"),
		faults:    counter("faults_total", "Bus accesses to unmapped or read-only addresses"),
		cursor: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cursor",
			Help:      "Index of the element the completion handler arms next",
		}),
	}
	pr.MustRegister(m.cursor)
	return m
}

// observe adds the simulator's progress since the previous call.
func (m *metrics) observe(s dma.Stats, h *dma.RearmHandler) {
	m.pulses.Add(float64(s.Pulses - m.last.Pulses))
	m.elements.Add(float64(s.Elements - m.last.Elements))
	m.blocks.Add(float64(s.Blocks - m.last.Blocks))
	m.irqs.Add(float64(s.IRQs - m.last.IRQs))
	m.underruns.Add(float64(s.Underruns - m.last.Underruns))
	m.faults.Add(float64(s.Faults - m.last.Faults))
	if h != nil {
		m.cursor.Set(float64(h.Cursor()))
	}
	m.last = s
}
