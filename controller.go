package btpad

import (
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

// Update is one normalized control change, emitted on the optional
// diagnostic update stream.
type Update struct {
	Name  string
	Value float64
}

// Controller owns the background pipeline that reads raw events from a
// Source, normalizes them through the mapping table and folds them into
// the published snapshot. Consumers call Poll from their own control-loop
// cadence; Poll never blocks on the reader and never fails.
//
// Lifecycle: New (constructed) → Start (running) → Stop or source failure
// (stopped). Stopped is terminal: the last snapshot stays available, the
// run flag stays false, and re-pairing means building a new Controller.
type Controller struct {
	src    Source
	table  *Table
	state  *controlState
	meter  *RateMeter
	logger *slog.Logger

	// updates is nil unless WithUpdates was given. Owned by the producer,
	// which closes it on exit. Sends are non-blocking: a slow observer
	// loses updates, it never stalls the pipeline.
	updates chan Update

	started atomic.Bool
	running atomic.Bool
	done    chan struct{}
}

type options struct {
	table       *Table
	mappingPath string
	family      string
	updatesBuf  int
	meterWindow time.Duration
	logger      *slog.Logger
}

// Option configures a Controller at construction.
type Option func(*options)

// WithTable uses an already-built mapping table. Takes precedence over
// WithMappingFile and WithFamily.
func WithTable(t *Table) Option {
	return func(o *options) { o.table = t }
}

// WithMappingFile loads the mapping from a YAML file. Takes precedence
// over WithFamily.
func WithMappingFile(path string) Option {
	return func(o *options) { o.mappingPath = path }
}

// WithFamily selects a built-in controller family mapping.
func WithFamily(family string) Option {
	return func(o *options) { o.family = family }
}

// WithUpdates enables the diagnostic update stream with the given channel
// buffer. Read it via Updates.
func WithUpdates(buf int) Option {
	return func(o *options) {
		if buf <= 0 {
			buf = 64
		}
		o.updatesBuf = buf
	}
}

// WithRateWindow sets the sampling window of the events-per-second meter.
func WithRateWindow(window time.Duration) Option {
	return func(o *options) { o.meterWindow = window }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New builds a Controller reading from src. With no mapping option the
// built-in table for DefaultFamily is used. A bad mapping config fails
// here, before any goroutine starts; the source is left untouched so the
// caller can close it.
func New(src Source, opts ...Option) (*Controller, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	table := o.table
	var err error
	switch {
	case table != nil:
	case o.mappingPath != "":
		table, err = LoadMappingFile(o.mappingPath)
	case o.family != "":
		table, err = BuiltinTable(o.family)
	default:
		table, err = BuiltinTable(DefaultFamily)
	}
	if err != nil {
		return nil, err
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Controller{
		src:    src,
		table:  table,
		state:  newControlState(table.Names()),
		meter:  NewRateMeter(o.meterWindow),
		logger: logger,
		done:   make(chan struct{}),
	}
	if o.updatesBuf > 0 {
		c.updates = make(chan Update, o.updatesBuf)
	}
	return c, nil
}

// Table returns the mapping table the controller was built with.
func (c *Controller) Table() *Table { return c.table }

// Updates returns the diagnostic update stream, or nil when WithUpdates
// was not given. The channel is closed when the producer exits.
func (c *Controller) Updates() <-chan Update { return c.updates }

// Rate returns the raw events-per-second over the meter's sampling
// window. Unmapped events count too: the meter sits in front of the
// mapping lookup.
func (c *Controller) Rate() float64 { return c.meter.Rate() }

// Start launches the producer goroutine. Calling Start again, or after
// Stop, is a no-op.
func (c *Controller) Start() {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	c.running.Store(true)
	c.logger.Info("controller starting", "family", c.table.Family(), "controls", c.table.Len())
	go c.run()
}

// Poll returns the current snapshot and whether the pipeline is still
// running. It returns in bounded time regardless of reader activity:
// polling faster than the producer simply re-reads the same snapshot.
// Once the source has failed or Stop was called, Poll keeps returning the
// last snapshot with running=false — disconnection never surfaces as an
// error here.
func (c *Controller) Poll() (*Snapshot, bool) {
	return c.state.snapshot(), c.running.Load()
}

// Stop drops the run flag, closes the source to unblock the in-progress
// read and waits for the producer to drain. Terminal; safe to call more
// than once.
func (c *Controller) Stop() {
	c.running.Store(false)
	_ = c.src.Close()
	if c.started.Load() {
		<-c.done
	}
}

// run is the producer loop: blocking read, normalize, publish, forever,
// until the source fails or is closed. It never retries the source —
// reconnecting a Bluetooth pad is an OS-level affair, not ours.
func (c *Controller) run() {
	defer func() {
		c.running.Store(false)
		if c.updates != nil {
			close(c.updates)
		}
		close(c.done)
	}()

	for {
		ev, err := c.src.ReadEvent()
		if err != nil {
			if errors.Is(err, ErrSourceClosed) {
				c.logger.Info("event source closed, producer exiting")
			} else {
				c.logger.Warn("event source failed, producer exiting", "error", err)
			}
			return
		}

		c.meter.Mark()

		entry, ok := c.table.Lookup(ev.Code)
		if !ok {
			// The vast majority of raw events are unmapped noise.
			continue
		}

		value := Normalize(ev, entry)
		c.state.apply(entry.Name, value)
		c.logger.Debug("control", "name", entry.Name, "value", value)

		if c.updates != nil {
			select {
			case c.updates <- Update{Name: entry.Name, Value: value}:
			default:
			}
		}
	}
}
