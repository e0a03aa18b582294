package dma

import "errors"

// DMA errors.
var (
	// ErrResourceExhausted is returned when no free transfer channel is left to claim.
	ErrResourceExhausted = errors.New("dma: no free channel")
	// ErrConfigInvalid is wrapped by every build-time configuration error.
	ErrConfigInvalid = errors.New("dma: invalid configuration")
	// ErrAlreadyStarted is returned by Start on a running pipeline.
	ErrAlreadyStarted = errors.New("dma: pipeline already started")

	errNotMapped = errors.New("dma: memory not placed on bus")
	errDraining  = errors.New("dma: channels still draining")
)

const (
	badChannel    = "dma: invalid channel"
	badDescriptor = "dma: invalid descriptor id"
)
