package host

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/yaap/device-oneplus-sm8150-common/internal/correction"
)

// Reading is one processed sensor event.
type Reading struct {
	Seq    uint64 `json:"seq"`
	Handle int32  `json:"handle"`
	correction.Result
}

// Stats counts processed events by outcome.
type Stats struct {
	Events   uint64 `json:"events"`
	Dropped  uint64 `json:"dropped"`
	Cached   uint64 `json:"cached"`
	Fresh    uint64 `json:"fresh"`
	Bypassed uint64 `json:"bypassed"`
}

func (s *Stats) count(o correction.Outcome) {
	s.Events++
	switch o {
	case correction.Dropped:
		s.Dropped++
	case correction.Cached:
		s.Cached++
	case correction.Fresh:
		s.Fresh++
	case correction.Bypassed:
		s.Bypassed++
	}
}

// Pipeline feeds sensor events through the engine on a single goroutine
// and publishes every reading.
type Pipeline struct {
	engine  *correction.Engine
	source  Source
	history *History

	mu    sync.RWMutex
	subs  map[string]chan Reading
	stats Stats
	seq   uint64
}

// NewPipeline creates a pipeline. source may be nil when events are fed
// through Process directly.
func NewPipeline(engine *correction.Engine, source Source) *Pipeline {
	return &Pipeline{
		engine:  engine,
		source:  source,
		history: NewHistory(HistorySize),
		subs:    make(map[string]chan Reading),
	}
}

// Run reads events from the source until ctx is done or the source fails.
func (p *Pipeline) Run(ctx context.Context) error {
	events := make(chan correction.Event, EventBuffer)
	errCh := make(chan error, 1)
	go func() { errCh <- p.source.Run(ctx, events) }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if ctx.Err() != nil {
				return nil
			}
			return err
		case ev := <-events:
			p.Process(ctx, &ev)
		}
	}
}

// Process corrects one event and publishes the reading. It must not be
// called concurrently with Run.
func (p *Pipeline) Process(ctx context.Context, ev *correction.Event) Reading {
	handle := ev.SensorHandle
	res := p.engine.Process(ctx, ev)

	p.mu.Lock()
	p.seq++
	r := Reading{Seq: p.seq, Handle: handle, Result: res}
	p.stats.count(res.Outcome)
	p.mu.Unlock()

	p.history.Add(r)

	p.mu.RLock()
	for _, ch := range p.subs {
		select {
		case ch <- r:
		default:
		}
	}
	p.mu.RUnlock()
	if res.Outcome == correction.Fresh {
		slog.Debug("published reading", "seq", r.Seq, "lux", r.Lux)
	}
	return r
}

// Subscribe registers a reading subscriber.
func (p *Pipeline) Subscribe() (string, <-chan Reading) {
	id := uuid.NewString()
	ch := make(chan Reading, SubscriberBuffer)

	p.mu.Lock()
	p.subs[id] = ch
	p.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (p *Pipeline) Unsubscribe(id string) {
	p.mu.Lock()
	ch, ok := p.subs[id]
	delete(p.subs, id)
	p.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Recent returns up to n of the latest readings.
func (p *Pipeline) Recent(n int) []Reading {
	return p.history.Recent(n)
}

// Last returns the newest reading, if any.
func (p *Pipeline) Last() (Reading, bool) {
	return p.history.Last()
}

// Stats returns the outcome counters.
func (p *Pipeline) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stats
}
