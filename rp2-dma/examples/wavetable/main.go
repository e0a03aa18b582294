//go:build rp2040

package main

import (
	"context"
	"machine"
	"strconv"
	"time"

	"github.com/jangala-dev/tinygo-uartx/uartx"
	"github.com/sirupsen/logrus"
	dma "github.com/tinygo-org/rp2dma/rp2-dma"
	"github.com/tinygo-org/rp2dma/rp2-dma/piolib"
)

var wavePin string

/*
This example dims an LED through a PIO state machine that shifts 32 bit words
out to the pin one bit at a time. Word n has its low n bits set, so repeating
it keeps the LED on for n of every 32 cycles. The DMA completion interrupt
steps to the next word every 10000 repeats. After a few ramps the pipeline is
stopped and the state machine released. Specify the GPIO number via the
-ldflags flag like so:
tinygo flash -target=$TARGET_NAME -ldflags "-X main.wavePin=$GPIO_NUMBER" ./examples/wavetable/
*/
func main() {
	log := newLogger()
	pinNum, err := strconv.Atoi(wavePin)
	if err != nil {
		log.WithField("pin", wavePin).Warn("invalid pin number, using GPIO16")
		pinNum = 16
	}
	const (
		shiftHz = 12_500_000
		repeats = 10000
		ramps   = 8
	)
	whole, frac, err := dma.ClkDivFromFrequency(shiftHz, machine.CPUFrequency())
	if err != nil {
		panic(err.Error())
	}
	sink, err := piolib.NewBitSink(0, 0, machine.Pin(pinNum), whole, frac)
	if err != nil {
		panic(err.Error())
	}
	defer sink.Close()
	buf, err := dma.NewBuffer(dma.BitRun[uint32]())
	if err != nil {
		panic(err.Error())
	}
	p, err := dma.NewStepped(dma.DMA, buf, sink.Register(), sink.DREQ(), repeats,
		dma.WithLogger(log), dma.WithPacer(sink))
	if err != nil {
		panic(err.Error())
	}
	if err := p.Start(); err != nil {
		panic(err.Error())
	}
	pacing := sink.Pacing()
	log.WithFields(logrus.Fields{
		"pin":   pinNum,
		"word":  pacing.ElementPeriod(),
		"level": pacing.CycleDuration(repeats),
		"ramp":  pacing.CycleDuration(repeats * buf.Len()),
	}).Info("dimming")

	h := p.Handler()
	for h.Cycles() < ramps*uint32(buf.Len()) {
		time.Sleep(time.Second)
		log.WithFields(logrus.Fields{
			"level":  h.Cursor(),
			"blocks": h.Cycles(),
		}).Info("still dimming")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		panic(err.Error())
	}
	log.WithField("blocks", h.Cycles()).Info("done")
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
