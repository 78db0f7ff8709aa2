package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/pws-feed-service/internal/domain"
	"github.com/couchcryptid/pws-feed-service/internal/observability"
	"github.com/couchcryptid/pws-feed-service/internal/wustream"
)

// Fetcher performs one bounded fetch into out. *wustream.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, q wustream.Query, out []domain.Record) wustream.Result
}

// BatchLoader writes multiple output events to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, events []domain.OutputEvent) error
}

// Options configures the poll loop.
type Options struct {
	Query       wustream.Query
	Interval    time.Duration
	DedupWindow int
	// Clock drives the poll ticker. Defaults to the real clock.
	Clock clockwork.Clock
}

// Pipeline polls the WU API on an interval and publishes new observations.
type Pipeline struct {
	fetcher  Fetcher
	loader   BatchLoader
	query    wustream.Query
	interval time.Duration
	clock    clockwork.Clock
	records  []domain.Record
	seen     *seenWindow
	logger   *slog.Logger
	metrics  *observability.Metrics
	ready    atomic.Bool
	last     atomic.Pointer[PollStatus]
}

// PollStatus summarizes the most recent poll.
type PollStatus struct {
	At        time.Time `json:"at"`
	Stage     string    `json:"stage"`
	Outcome   string    `json:"outcome"`
	Decoded   int       `json:"decoded"`
	Published int       `json:"published"`
	Error     string    `json:"error,omitempty"`
}

// New creates a Pipeline. The record buffer is sized from Query.MaxData once
// and reused by every poll.
func New(f Fetcher, l BatchLoader, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		fetcher:  f,
		loader:   l,
		query:    opts.Query,
		interval: opts.Interval,
		clock:    clock,
		records:  make([]domain.Record, max(opts.Query.MaxData, 0)),
		seen:     newSeenWindow(opts.DedupWindow),
		logger:   logger,
		metrics:  metrics,
	}
}

// CheckReadiness returns nil once a fetch has reached the observation array,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no successful fetch from the WU API yet")
	}
	return nil
}

// LastPoll returns the summary of the most recent poll, or false before the
// first poll finishes.
func (p *Pipeline) LastPoll() (PollStatus, bool) {
	st := p.last.Load()
	if st == nil {
		return PollStatus{}, false
	}
	return *st, true
}

// Run polls immediately and then on every interval until the context is
// cancelled. Fetch failures are logged and the next tick retries.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started",
		"station_id", p.query.StationID,
		"endpoint", p.query.Endpoint,
		"interval", p.interval,
		"max_records", p.query.MaxData,
	)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		published, err := p.PollOnce(ctx)
		if err != nil && ctx.Err() == nil {
			p.logger.Warn("poll incomplete", "published", published, "error", err)
		} else {
			p.logger.Debug("poll complete", "published", published)
		}

		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
		}
	}
}

// PollOnce runs one fetch-transform-load cycle and returns how many
// observations were published. Records decoded before a partial failure are
// still published; the fetch error is returned alongside the count.
func (p *Pipeline) PollOnce(ctx context.Context) (int, error) {
	res := p.fetcher.Fetch(ctx, p.query, p.records)
	published, err := p.publish(ctx, res)
	p.record(res, published, err)
	return published, err
}

func (p *Pipeline) publish(ctx context.Context, res wustream.Result) (int, error) {
	if res.TotalFailure() {
		return 0, res.Err
	}
	p.ready.Store(true)

	events, ids := p.transform(p.records[:res.Count])
	if len(events) == 0 {
		return 0, res.Err
	}

	if err := p.loader.LoadBatch(ctx, events); err != nil {
		p.metrics.LoadErrors.Inc()
		p.logger.Error("load batch failed", "error", err, "batch_size", len(events))
		return 0, errors.Join(res.Err, fmt.Errorf("load batch: %w", err))
	}

	for _, id := range ids {
		p.seen.add(id)
	}
	p.metrics.RecordsPublished.Add(float64(len(events)))
	return len(events), res.Err
}

func (p *Pipeline) record(res wustream.Result, published int, err error) {
	st := &PollStatus{
		At:        p.clock.Now().UTC(),
		Stage:     res.Stage.String(),
		Outcome:   res.Outcome(),
		Decoded:   res.Count,
		Published: published,
	}
	if err != nil {
		st.Error = err.Error()
	}
	p.last.Store(st)
}

// transform attributes decoded records to the station, drops those already
// published, and serializes the rest. IDs are returned so they can be marked
// seen once the load succeeds.
func (p *Pipeline) transform(records []domain.Record) ([]domain.OutputEvent, []string) {
	events := make([]domain.OutputEvent, 0, len(records))
	ids := make([]string, 0, len(records))
	batch := make(map[string]struct{}, len(records))

	for _, rec := range records {
		obs := domain.NewObservation(p.query.StationID, rec)
		if _, dup := batch[obs.ID]; dup || p.seen.contains(obs.ID) {
			p.metrics.DuplicatesSkipped.Inc()
			continue
		}

		out, err := domain.SerializeObservation(obs)
		if err != nil {
			p.logger.Warn("serialize failed, skipping observation", "error", err, "id", obs.ID)
			continue
		}
		batch[obs.ID] = struct{}{}
		events = append(events, out)
		ids = append(ids, obs.ID)
	}
	return events, ids
}
