// Package analytics provides the analytics variants: a no-op provider and a
// buffered provider that writes batches to a sink.
package analytics

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/cmskit/core/capability"
	"github.com/artpar/cmskit/ports"
)

// Noop discards every event.
type Noop struct{}

// NewNoop creates a no-op analytics provider.
func NewNoop() Noop { return Noop{} }

func (Noop) Name() string                            { return "noop" }
func (Noop) Track(context.Context, capability.Event) {}
func (Noop) Flush(context.Context) error             { return nil }

// Config configures a buffered provider.
type Config struct {
	// Name is the variant name reported by the provider.
	Name string

	// BatchSize is the number of events written per sink call.
	BatchSize int

	// FlushInterval is the maximum time an event waits in the buffer.
	FlushInterval time.Duration

	// BufferSize bounds the queue. Events tracked while it is full are dropped.
	BufferSize int

	Clock  ports.Clock
	Logger zerolog.Logger
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "buffered"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = time.Second
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 10000
	}
	return c
}

// ErrClosed is returned by Flush after Close.
var ErrClosed = errors.New("analytics provider closed")

// Buffered queues events and writes them to a sink in the background.
// Track never blocks; Close stops the flusher and writes what is left.
// Only the flusher goroutine touches the pending batch and the sink.
type Buffered struct {
	name      string
	sink      ports.AnalyticsSink
	clock     ports.Clock
	log       zerolog.Logger
	batchSize int
	interval  time.Duration

	buffer  chan ports.AnalyticsRecord
	flushes chan flushRequest
	done    chan struct{}
	wg      sync.WaitGroup

	closeOnce sync.Once
	closed    atomic.Bool
	dropped   atomic.Int64
}

type flushRequest struct {
	ctx  context.Context
	errc chan error
}

// NewBuffered starts a buffered provider that writes to sink.
func NewBuffered(sink ports.AnalyticsSink, cfg Config) *Buffered {
	cfg = cfg.withDefaults()
	b := &Buffered{
		name:      cfg.Name,
		sink:      sink,
		clock:     cfg.Clock,
		log:       cfg.Logger,
		batchSize: cfg.BatchSize,
		interval:  cfg.FlushInterval,
		buffer:    make(chan ports.AnalyticsRecord, cfg.BufferSize),
		flushes:   make(chan flushRequest),
		done:      make(chan struct{}),
	}
	b.wg.Add(1)
	go b.flusher()
	return b
}

func (b *Buffered) Name() string { return b.name }

// Track queues an event. A full buffer or a closed provider drops it.
func (b *Buffered) Track(_ context.Context, ev capability.Event) {
	if b.closed.Load() {
		b.dropped.Add(1)
		return
	}
	if ev.At.IsZero() {
		ev.At = b.now()
	}
	rec := ports.AnalyticsRecord{
		Name:       ev.Name,
		ContextID:  ev.ContextID,
		UserID:     ev.UserID,
		Properties: ev.Properties,
		At:         ev.At,
	}
	select {
	case b.buffer <- rec:
	default:
		b.dropped.Add(1)
	}
}

// Dropped returns how many events were discarded.
func (b *Buffered) Dropped() int64 {
	return b.dropped.Load()
}

// Flush writes every event tracked before the call.
func (b *Buffered) Flush(ctx context.Context) error {
	req := flushRequest{ctx: ctx, errc: make(chan error, 1)}
	select {
	case b.flushes <- req:
	case <-b.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the flusher and writes the remaining events.
func (b *Buffered) Close() error {
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		close(b.done)
	})
	b.wg.Wait()
	return nil
}

func (b *Buffered) flusher() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	var pending []ports.AnalyticsRecord
	take := func() []ports.AnalyticsRecord {
		events := pending
		pending = nil
		for {
			select {
			case e := <-b.buffer:
				events = append(events, e)
			default:
				return events
			}
		}
	}

	for {
		select {
		case <-b.done:
			batch := take()
			if err := b.write(context.Background(), batch); err != nil {
				b.log.Warn().Err(err).Int("events", len(batch)).Msg("analytics final flush failed")
			}
			return

		case req := <-b.flushes:
			req.errc <- b.write(req.ctx, take())

		case e := <-b.buffer:
			pending = append(pending, e)
			if len(pending) >= b.batchSize {
				b.writeLogged(take())
			}

		case <-ticker.C:
			b.writeLogged(take())
		}
	}
}

func (b *Buffered) writeLogged(batch []ports.AnalyticsRecord) {
	if err := b.write(context.Background(), batch); err != nil {
		b.log.Warn().Err(err).Int("events", len(batch)).Msg("analytics write failed")
	}
}

func (b *Buffered) write(ctx context.Context, events []ports.AnalyticsRecord) error {
	for start := 0; start < len(events); start += b.batchSize {
		end := min(start+b.batchSize, len(events))
		if err := b.sink.Record(ctx, events[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (b *Buffered) now() time.Time {
	if b.clock != nil {
		return b.clock.Now()
	}
	return time.Now().UTC()
}

var (
	_ capability.AnalyticsProvider = Noop{}
	_ capability.AnalyticsProvider = (*Buffered)(nil)
)
