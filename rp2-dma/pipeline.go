package dma

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
)

// Pipeline is a set of descriptors joined by chain edges and alias triggers
// that, once started, keeps producing output without CPU involvement. The
// descriptors live in an arena addressed by DescriptorID so the graph can be
// inspected and validated before any channel is claimed.
//
// A Pipeline is not safe for concurrent use; Start and Stop belong to normal
// flow. The completion handler only touches its RearmHandler.
type Pipeline struct {
	ctl   Controller
	log   logrus.FieldLogger
	pacer Pacer
	// drainInterval is the poll interval while waiting for aborted channels.
	drainInterval time.Duration

	descs []Descriptor
	seed  DescriptorID
	watch DescriptorID
	mode  RearmMode

	chans   []Channel
	handler *RearmHandler
	running bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used for construction, start and stop. Nothing is
// logged from the completion handler.
func WithLogger(l logrus.FieldLogger) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithPacer sets the trigger source that Start enables and Stop disables.
func WithPacer(pacer Pacer) Option {
	return func(p *Pipeline) { p.pacer = pacer }
}

// WithDrainInterval sets the poll interval used by Stop while aborted
// transfers drain.
func WithDrainInterval(d time.Duration) Option {
	return func(p *Pipeline) { p.drainInterval = d }
}

// NewPipeline returns an empty pipeline driving ctl.
func NewPipeline(ctl Controller, opts ...Option) *Pipeline {
	p := &Pipeline{
		ctl:           ctl,
		drainInterval: 10 * time.Microsecond,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		l := logrus.New()
		l.Out = io.Discard
		p.log = l
	}
	return p
}

// Add appends d to the pipeline and returns its identifier. The first
// descriptor added is the seed unless SetSeed says otherwise.
func (p *Pipeline) Add(d Descriptor) DescriptorID {
	if len(p.descs) >= NumChannels {
		panic("dma: pipeline has more descriptors than channels")
	}
	p.descs = append(p.descs, d)
	id := DescriptorID(len(p.descs))
	if !p.seed.Valid() {
		p.seed = id
	}
	return id
}

// Chain makes to start when from completes.
func (p *Pipeline) Chain(from, to DescriptorID) error {
	if !p.has(from) || !p.has(to) {
		return fmt.Errorf("%w: chain %d -> %d references unknown descriptor", ErrConfigInvalid, from, to)
	}
	if from == to {
		return fmt.Errorf("%w: descriptor %d chains to itself", ErrConfigInvalid, from)
	}
	p.descs[from.index()].ChainTo = to
	return nil
}

// SetSeed selects the descriptor started first.
func (p *Pipeline) SetSeed(id DescriptorID) error {
	if !p.has(id) {
		return fmt.Errorf("%w: seed %d", ErrConfigInvalid, id)
	}
	p.seed = id
	return nil
}

// Watch installs a RearmHandler on the completion interrupt of id.
func (p *Pipeline) Watch(id DescriptorID, mode RearmMode) error {
	if !p.has(id) {
		return fmt.Errorf("%w: watch %d", ErrConfigInvalid, id)
	}
	p.watch = id
	p.mode = mode
	p.descs[id.index()].IRQ = true
	return nil
}

// Len returns the number of descriptors.
func (p *Pipeline) Len() int { return len(p.descs) }

// Descriptor returns the descriptor with the given id.
func (p *Pipeline) Descriptor(id DescriptorID) Descriptor {
	if !p.has(id) {
		panic(badDescriptor)
	}
	return p.descs[id.index()]
}

// Seed returns the descriptor started first.
func (p *Pipeline) Seed() DescriptorID { return p.seed }

// Next returns the descriptor started when id completes, if any: its chain
// target, or for a control descriptor the data descriptor it rearms.
func (p *Pipeline) Next(id DescriptorID) (DescriptorID, bool) {
	d := p.Descriptor(id)
	if a, ok := d.Dst.(Alias); ok {
		return a.Target, true
	}
	if d.ChainTo.Valid() {
		return d.ChainTo, true
	}
	return 0, false
}

// Period returns the descriptors in execution order for one full period,
// starting at the seed.
func (p *Pipeline) Period() []DescriptorID {
	if !p.seed.Valid() {
		return nil
	}
	var order []DescriptorID
	seen := make(map[DescriptorID]bool, len(p.descs))
	for id, ok := p.seed, true; ok && p.has(id) && !seen[id]; id, ok = p.Next(id) {
		seen[id] = true
		order = append(order, id)
	}
	return order
}

// Validate checks that the graph is a single cycle, or a single descriptor the
// completion handler rearms. Every descriptor must be reached exactly once per
// period and no edge may dangle. A longer chain that ends at the watched
// descriptor is rejected: the handler restarts only its own channel, so the
// head of the chain would run once.
func (p *Pipeline) Validate() error {
	if len(p.descs) == 0 {
		return fmt.Errorf("%w: empty pipeline", ErrConfigInvalid)
	}
	indeg := make([]int, len(p.descs))
	for i, d := range p.descs {
		id := DescriptorID(i + 1)
		if a, ok := d.Dst.(Alias); ok {
			if d.ChainTo.Valid() {
				return fmt.Errorf("%w: control descriptor %d both chains and rearms", ErrConfigInvalid, id)
			}
			if !p.has(a.Target) {
				return fmt.Errorf("%w: descriptor %d rearms unknown descriptor %d", ErrConfigInvalid, id, a.Target)
			}
			if a.Target == id {
				return fmt.Errorf("%w: descriptor %d rearms itself", ErrConfigInvalid, id)
			}
		}
		if d.ChainTo.Valid() && !p.has(d.ChainTo) {
			return fmt.Errorf("%w: descriptor %d chains to unknown descriptor %d", ErrConfigInvalid, id, d.ChainTo)
		}
		if next, ok := p.Next(id); ok {
			indeg[next.index()]++
			if indeg[next.index()] > 1 {
				return fmt.Errorf("%w: descriptor %d is started by more than one descriptor", ErrConfigInvalid, next)
			}
		}
	}
	period := p.Period()
	if len(period) != len(p.descs) {
		return fmt.Errorf("%w: %d of %d descriptors unreachable from seed %d", ErrConfigInvalid, len(p.descs)-len(period), len(p.descs), p.seed)
	}
	last := period[len(period)-1]
	next, ok := p.Next(last)
	switch {
	case ok && next != p.seed:
		return fmt.Errorf("%w: cycle re-enters at %d instead of seed %d", ErrConfigInvalid, next, p.seed)
	case !ok && last != p.watch:
		return fmt.Errorf("%w: chain ends at %d with no handler to rearm it", ErrConfigInvalid, last)
	case !ok && len(period) > 1:
		return fmt.Errorf("%w: handler on %d rearms only the tail of a %d descriptor chain", ErrConfigInvalid, last, len(period))
	}
	return nil
}

// Start claims a channel per descriptor, programs them all, arms the
// completion handler and seeds the first block. Channels are claimed before any
// register is written; if any claim fails the partial claims are released and
// nothing is started.
func (p *Pipeline) Start() error {
	if p.running {
		return ErrAlreadyStarted
	}
	if err := p.Validate(); err != nil {
		return err
	}

	chans := make([]Channel, 0, len(p.descs))
	for range p.descs {
		ch, err := p.ctl.Claim()
		if err != nil {
			p.release(chans)
			return fmt.Errorf("claiming channel %d of %d: %w", len(chans)+1, len(p.descs), err)
		}
		chans = append(chans, ch)
	}

	progs := make([]Program, len(p.descs))
	for i, d := range p.descs {
		read, err := p.resolve(d.Src, chans)
		if err == nil {
			progs[i].Write, err = p.resolve(d.Dst, chans)
		}
		if err != nil {
			p.release(chans)
			return fmt.Errorf("resolving descriptor %d: %w", i+1, err)
		}
		progs[i].Read = read
		progs[i].Count = d.Count
		chain := chans[i]
		if d.ChainTo.Valid() {
			chain = chans[d.ChainTo.index()]
		}
		progs[i].Config = d.ChannelConfig(chans[i], chain)
	}
	for i, prog := range progs {
		p.ctl.Configure(chans[i], prog)
		p.log.WithFields(logrus.Fields{
			"descriptor": i + 1,
			"role":       p.descs[i].Role(),
			"channel":    chans[i],
			"read":       fmt.Sprintf("%#x", prog.Read),
			"write":      fmt.Sprintf("%#x", prog.Write),
			"count":      prog.Count,
			"ctrl":       fmt.Sprintf("%#08x", prog.Config.CTRL),
		}).Debug("configured channel")
	}
	p.chans = chans
	p.running = true

	var handler *RearmHandler
	if p.watch.Valid() {
		i := p.watch.index()
		handler = newRearmHandler(p.ctl, chans[i], p.mode, progs[i].Read, p.descs[i].Memory())
		p.ctl.EnableIRQ(chans[i], handler.Handle)
	}
	p.handler = handler
	if p.pacer != nil {
		p.pacer.SetEnabled(true)
	}

	if handler != nil && p.watch == p.seed {
		handler.Seed()
	} else {
		p.ctl.Trigger(1 << chans[p.seed.index()])
	}
	p.log.WithFields(logrus.Fields{
		"descriptors": len(p.descs),
		"channels":    chans,
		"seed":        p.seed,
	}).Info("pipeline started")
	return nil
}

// Stop disables the trigger source and the completion interrupt, aborts every
// channel, waits for in-flight transfers to drain and releases the channels.
// If ctx expires before the channels drain they stay claimed and Stop may be
// called again. Stop on a stopped pipeline does nothing.
func (p *Pipeline) Stop(ctx context.Context) error {
	if !p.running {
		return nil
	}
	if p.pacer != nil {
		p.pacer.SetEnabled(false)
	}
	if p.handler != nil {
		p.ctl.DisableIRQ(p.handler.Channel())
		p.handler.stop()
	}
	mask := channelMask(p.chans)
	p.ctl.Abort(mask)
	drained := func() error {
		if p.ctl.Aborting(mask) {
			return errDraining
		}
		for _, ch := range p.chans {
			if p.ctl.Busy(ch) {
				return errDraining
			}
		}
		return nil
	}
	b := backoff.WithContext(backoff.NewConstantBackOff(p.drainInterval), ctx)
	if err := backoff.Retry(drained, b); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return fmt.Errorf("stopping pipeline: %w", err)
	}
	if p.handler != nil {
		// Drop a completion flag raised by the final aborted block.
		p.ctl.Acknowledge(1 << p.handler.Channel())
	}
	p.release(p.chans)
	p.chans = nil
	p.running = false
	p.log.WithField("descriptors", len(p.descs)).Info("pipeline stopped")
	return nil
}

// Running reports whether the pipeline has been started and not stopped.
func (p *Pipeline) Running() bool { return p.running }

// Handler returns the completion handler, or nil if the pipeline has none or
// has not been started.
func (p *Pipeline) Handler() *RearmHandler { return p.handler }

// Channel returns the channel claimed for id while the pipeline runs.
func (p *Pipeline) Channel(id DescriptorID) (Channel, bool) {
	if !p.running || !p.has(id) {
		return 0, false
	}
	return p.chans[id.index()], true
}

func (p *Pipeline) resolve(e Endpoint, chans []Channel) (uint32, error) {
	switch e := e.(type) {
	case Memory:
		return p.ctl.Place(e)
	case Register:
		return e.Addr, nil
	case Alias:
		return AliasAddr(chans[e.Target.index()]), nil
	}
	return 0, fmt.Errorf("%w: unknown endpoint %T", ErrConfigInvalid, e)
}

func (p *Pipeline) release(chans []Channel) {
	for _, ch := range chans {
		p.ctl.Unclaim(ch)
	}
}

func (p *Pipeline) has(id DescriptorID) bool {
	return id.Valid() && id.index() < len(p.descs)
}
