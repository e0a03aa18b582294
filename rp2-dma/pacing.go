package dma

import (
	"fmt"
	"math"
	"math/bits"
	"time"
)

// Pacing describes the cadence at which a peripheral raises its transfer
// request: a source clock, divided by a fractional divider, counted for
// PeriodTicks divided ticks per request.
type Pacing struct {
	SourceHz uint32
	// DivQ8 is the clock divider in 1/256 units. 256 means divide by one.
	DivQ8 uint32
	// PeriodTicks is the number of divided clock ticks between requests.
	PeriodTicks uint32
}

// PWMPacing returns the pacing of a PWM slice that wraps at top with the
// 8.4 fixed point divider whole + frac/16. The slice raises its DREQ once per
// wrap, every top+1 counts.
func PWMPacing(sysHz uint32, whole, frac uint8, top uint16) Pacing {
	return Pacing{
		SourceHz:    sysHz,
		DivQ8:       uint32(whole)<<8 | uint32(frac&0xf)<<4,
		PeriodTicks: uint32(top) + 1,
	}
}

// PIOPacing returns the pacing of a state machine running at the 16.8 fixed
// point divider whole + frac/256 that drains one TX FIFO word every
// cyclesPerWord instructions.
func PIOPacing(sysHz uint32, whole uint16, frac uint8, cyclesPerWord uint32) Pacing {
	return Pacing{
		SourceHz:    sysHz,
		DivQ8:       uint32(whole)<<8 | uint32(frac),
		PeriodTicks: cyclesPerWord,
	}
}

// Validate reports whether p describes a realisable cadence.
func (p Pacing) Validate() error {
	switch {
	case p.SourceHz == 0:
		return fmt.Errorf("%w: zero source clock", ErrConfigInvalid)
	case p.DivQ8 < 256:
		return fmt.Errorf("%w: clock divider %d/256 below 1", ErrConfigInvalid, p.DivQ8)
	case p.PeriodTicks == 0:
		return fmt.Errorf("%w: zero period", ErrConfigInvalid)
	}
	return nil
}

// TriggerRate returns the number of transfer requests per second.
func (p Pacing) TriggerRate() float64 {
	if p.DivQ8 == 0 || p.PeriodTicks == 0 {
		return 0
	}
	return float64(p.SourceHz) * 256 / float64(p.DivQ8) / float64(p.PeriodTicks)
}

// ElementPeriod returns the time between two transfer requests, which is how
// long each element stays on the sink.
func (p Pacing) ElementPeriod() time.Duration {
	return p.CycleDuration(1)
}

// CycleDuration returns how long n elements take, rounded down to the
// nanosecond. A full pass over a buffer is CycleDuration(buf.Len()).
func (p Pacing) CycleDuration(n int) time.Duration {
	if p.SourceHz == 0 || n <= 0 {
		return 0
	}
	ticks := uint64(n) * uint64(p.PeriodTicks)
	num := ticks * uint64(p.DivQ8)
	if ticks != 0 && num/ticks != uint64(p.DivQ8) {
		return time.Duration(math.MaxInt64)
	}
	hi, lo := bits.Mul64(num, uint64(time.Second))
	den := 256 * uint64(p.SourceHz)
	if hi >= den {
		return time.Duration(math.MaxInt64)
	}
	q, _ := bits.Div64(hi, lo, den)
	if q > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(q)
}

// ClkDivFromFrequency returns the 16.8 fixed point divider that brings
// cpuFreq down to freq.
func ClkDivFromFrequency(freq, cpuFreq uint32) (whole uint16, frac uint8, err error) {
	if freq == 0 {
		return 0, 0, fmt.Errorf("%w: zero frequency", ErrConfigInvalid)
	}
	//  freq = 256*clockfreq / (256*whole + frac)
	//  256*whole + frac = 256*clockfreq / freq
	return splitClkdiv(256 * uint64(cpuFreq) / uint64(freq))
}

func splitClkdiv(clkdiv uint64) (whole uint16, frac uint8, err error) {
	if clkdiv > 256*math.MaxUint16 {
		return 0, 0, fmt.Errorf("%w: clock divider: too large period or CPU frequency", ErrConfigInvalid)
	} else if clkdiv < 256 {
		return 0, 0, fmt.Errorf("%w: clock divider: too small period or CPU frequency", ErrConfigInvalid)
	}
	whole = uint16(clkdiv / 256)
	frac = uint8(clkdiv % 256)
	return whole, frac, nil
}
