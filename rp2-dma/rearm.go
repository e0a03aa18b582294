package dma

import (
	"sync/atomic"
)

// RearmMode selects what the completion handler reprograms.
type RearmMode uint8

const (
	// RearmStep points the channel's source at the next buffer element and
	// restarts it, so each block repeats one element (a PIO-fed wavetable).
	RearmStep RearmMode = iota
	// RearmReplay restarts the channel over the same span. The ring has
	// already wrapped the read address back to the buffer start.
	RearmReplay
)

func (m RearmMode) String() string {
	if m == RearmReplay {
		return "replay"
	}
	return "step"
}

// HandlerState is the state of a RearmHandler.
type HandlerState uint32

const (
	// Idle: no block in flight. Only seen before Seed and after Stop.
	Idle HandlerState = iota
	// Running: the pipeline is self-sustaining.
	Running
)

func (s HandlerState) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// RearmHandler is the only software on the transfer path once a pipeline runs.
// Handle is invoked from the completion interrupt of one channel and runs to
// completion before normal flow resumes; it does O(1) index arithmetic and
// register writes only. The cursor is the single value shared with normal
// flow and is accessed atomically so that a reader on another core sees a
// consistent value.
type RearmHandler struct {
	ctl    Controller
	ch     Channel
	mode   RearmMode
	base   uint32 // bus address of element 0
	stride uint32 // element size in bytes
	mask   uint32 // buffer length - 1

	cursor atomic.Uint32
	cycles atomic.Uint32
	state  atomic.Uint32
}

func newRearmHandler(ctl Controller, ch Channel, mode RearmMode, base uint32, m Memory) *RearmHandler {
	return &RearmHandler{
		ctl:    ctl,
		ch:     ch,
		mode:   mode,
		base:   base,
		stride: m.Size().Bytes(),
		mask:   uint32(m.Len() - 1),
	}
}

// Handle acknowledges the watched channel's completion, advances the cursor
// and restarts the channel for the next block.
func (h *RearmHandler) Handle() {
	// Write-to-clear: any other bit would drop another channel's pending flag.
	h.ctl.Acknowledge(1 << h.ch)
	switch h.mode {
	case RearmStep:
		level := h.cursor.Load()
		h.cursor.Store((level + 1) & h.mask)
		h.ctl.SetReadAddrTrig(h.ch, h.base+level*h.stride)
	case RearmReplay:
		h.ctl.Trigger(1 << h.ch)
	}
	h.cycles.Add(1)
	h.state.Store(uint32(Running))
}

// Seed performs the first invocation synchronously, before any hardware
// completion can occur, and moves the handler from Idle to Running.
func (h *RearmHandler) Seed() {
	h.cursor.Store(0)
	h.Handle()
}

// Cursor returns the index of the element the next block will emit.
func (h *RearmHandler) Cursor() uint32 { return h.cursor.Load() }

// Cycles returns how many blocks the handler has armed, including the seed.
func (h *RearmHandler) Cycles() uint32 { return h.cycles.Load() }

// State returns the handler state.
func (h *RearmHandler) State() HandlerState { return HandlerState(h.state.Load()) }

// Channel returns the watched channel.
func (h *RearmHandler) Channel() Channel { return h.ch }

// Mode returns what the handler reprograms.
func (h *RearmHandler) Mode() RearmMode { return h.mode }

func (h *RearmHandler) stop() { h.state.Store(uint32(Idle)) }
