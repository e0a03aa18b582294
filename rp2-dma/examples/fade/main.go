//go:build rp2040

package main

import (
	"machine"
	"strconv"
	"time"

	"github.com/jangala-dev/tinygo-uartx/uartx"
	"github.com/sirupsen/logrus"
	dma "github.com/tinygo-org/rp2dma/rp2-dma"
	"github.com/tinygo-org/rp2dma/rp2-dma/piolib"
)

var fadePin string

/*
This example fades an LED in with a quadratic brightness curve, replaying the
curve forever without the CPU touching a single sample. Specify the GPIO
number via the -ldflags flag like so:
tinygo flash -target=$TARGET_NAME -ldflags "-X main.fadePin=$GPIO_NUMBER" ./examples/fade/
*/
func main() {
	log := newLogger()
	pinNum, err := strconv.Atoi(fadePin)
	if err != nil {
		log.WithField("pin", fadePin).Warn("invalid pin number, using GPIO0")
		pinNum = 0
	}
	pin := machine.Pin(pinNum)
	slice, channelB := piolib.PWMSliceForPin(uint8(pinNum))

	// 125MHz / 8 / 65536 is about 238 samples a second.
	sink, err := piolib.NewPWMSink(slice, 8, 0, 0xffff, pin)
	if err != nil {
		panic(err.Error())
	}
	// Fade in, then back out: 256 elements, about a second per cycle.
	values := dma.Palindrome(dma.QuadraticFade[uint32](128, 0xffff))
	if channelB {
		values = dma.ShiftLanes(values, 16)
	}
	buf, err := dma.NewBuffer(values)
	if err != nil {
		panic(err.Error())
	}
	p, err := dma.NewReplay(dma.DMA, buf, sink.Register(), sink.DREQ(),
		dma.WithLogger(log), dma.WithPacer(sink))
	if err != nil {
		panic(err.Error())
	}
	if err := p.Start(); err != nil {
		panic(err.Error())
	}
	pacing := sink.Pacing()
	log.WithFields(logrus.Fields{
		"pin":    pinNum,
		"slice":  slice,
		"sample": pacing.ElementPeriod(),
		"cycle":  pacing.CycleDuration(buf.Len()),
	}).Info("fading")

	for {
		time.Sleep(3 * time.Second)
		log.WithField("cycles", p.Handler().Cycles()).Info("still fading")
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
