//go:build rp2040

package main

import (
	"machine"
	"time"

	"github.com/jangala-dev/tinygo-uartx/uartx"
	"github.com/sirupsen/logrus"
	dma "github.com/tinygo-org/rp2dma/rp2-dma"
	"github.com/tinygo-org/rp2dma/rp2-dma/piolib"
)

/*
This example walks a fade across the LEDs on GPIO0 to GPIO7. Each PWM slice
in turn fades its channel A LED in and out, then its channel B LED, then the
next slice takes over. Four DMA channels keep it going with no CPU at all:
two stream the fade tables and two write the next slice's compare register
address into them.
tinygo flash -target=$TARGET_NAME ./examples/altfade/
*/
func main() {
	log := newLogger()
	sinks := make([]dma.Register, 4)
	var pacers []*piolib.PWMSink
	for slice := uint8(0); slice < 4; slice++ {
		a, b := machine.Pin(2*slice), machine.Pin(2*slice+1)
		sink, err := piolib.NewPWMSink(slice, 8, 0, 0xffff, a, b)
		if err != nil {
			panic(err.Error())
		}
		sinks[slice] = sink.Register()
		pacers = append(pacers, sink)
	}

	// 0, 1, 4 ... 65025, 65535, 65025 ... 4, 1: 512 elements.
	ramp := dma.ClampedSquare[uint32](257, 0xffff)
	fade := dma.Mirror(ramp)
	fadeA, err := dma.NewBuffer(fade)
	if err != nil {
		panic(err.Error())
	}
	fadeB, err := dma.NewBuffer(dma.ShiftLanes(fade, 16))
	if err != nil {
		panic(err.Error())
	}

	// Slice 0 paces every transfer; the others only need to be counting.
	for _, s := range pacers[1:] {
		s.SetEnabled(true)
	}
	p, err := dma.NewAlternating(dma.DMA, dma.AlternatingConfig{
		A:       fadeA,
		B:       fadeB,
		Sinks:   sinks,
		Trigger: pacers[0].DREQ(),
	}, dma.WithLogger(log), dma.WithPacer(pacers[0]))
	if err != nil {
		panic(err.Error())
	}
	if err := p.Start(); err != nil {
		panic(err.Error())
	}
	pacing := pacers[0].Pacing()
	log.WithFields(logrus.Fields{
		"fade": pacing.CycleDuration(fadeA.Len()),
		"lap":  pacing.CycleDuration(2 * fadeA.Len() * len(sinks)),
	}).Info("walking")

	for {
		time.Sleep(10 * time.Second)
		log.Info("still walking")
	}
}

func newLogger() *logrus.Logger {
	if err := uartx.UART0.Configure(uartx.UARTConfig{BaudRate: 115200}); err != nil {
		panic(err.Error())
	}
	log := logrus.New()
	log.Out = uartx.UART0
	log.Formatter = &logrus.TextFormatter{DisableColors: true, DisableTimestamp: true}
	return log
}
