// Package recorder appends opportunities and running-maximum spread records to
// two newline-delimited JSON logs and restores the maximum on startup.
package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

const (
	OpportunitiesFile = "opportunities.log"
	MaxSpreadFile     = "max-spread.log"

	defaultQueueSize = 1024
	sinkTimeout      = 5 * time.Second
	sinkDrainTimeout = 10 * time.Second
)

// Config configures a Recorder. Store, Publisher and Alerter are optional
// sinks that receive every record after it has been appended to disk. They
// run on their own queue, so a slow sink never delays the file appends.
type Config struct {
	Dir       string
	QueueSize int
	Store     domain.OpportunityStore
	Publisher domain.OpportunityPublisher
	Alerter   domain.Alerter
	Logger    *slog.Logger
}

type entry struct {
	opp *domain.Opportunity
	max *domain.MaxSpreadRecord
}

// Stats counts recorder activity since start.
type Stats struct {
	Opportunities int64 `json:"opportunities"`
	MaxSpreads    int64 `json:"max_spreads"`
	Dropped       int64 `json:"dropped"`
	SinkDropped   int64 `json:"sink_dropped"`
	WriteErrors   int64 `json:"write_errors"`
}

// Recorder is the durable opportunity log. Record calls never block on I/O.
// Opportunities go through a bounded queue that drops when full. Max-spread
// records are rare and strictly increasing, so they are kept in an unbounded
// pending list and never dropped.
type Recorder struct {
	oppPath string
	maxPath string
	oppFile *os.File
	maxFile *os.File

	store     domain.OpportunityStore
	publisher domain.OpportunityPublisher
	alerter   domain.Alerter
	logger    *slog.Logger
	now       func() time.Time

	mu         sync.Mutex
	currentMax float64
	lastMax    *domain.MaxSpreadRecord
	pendingMax []domain.MaxSpreadRecord
	closed     bool

	queue    chan entry
	maxReady chan struct{}
	started  atomic.Bool
	stopped  chan struct{}

	sinkQueue  chan entry
	sinkCtx    context.Context
	sinkCancel context.CancelFunc
	sinksDone  chan struct{}

	opps, maxes, dropped, sinkDropped, writeErrs atomic.Int64
}

// New opens (creating if needed) both logs under cfg.Dir and restores the
// current maximum from the last max-spread record. A missing, empty or
// unparseable log starts the maximum at zero.
func New(cfg Config) (*Recorder, error) {
	if cfg.Dir == "" {
		cfg.Dir = "logs"
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("recorder: create dir: %w", err)
	}

	r := &Recorder{
		oppPath:   filepath.Join(cfg.Dir, OpportunitiesFile),
		maxPath:   filepath.Join(cfg.Dir, MaxSpreadFile),
		store:     cfg.Store,
		publisher: cfg.Publisher,
		alerter:   cfg.Alerter,
		logger:    cfg.Logger.With(slog.String("component", "recorder")),
		now:       time.Now,
		queue:     make(chan entry, cfg.QueueSize),
		maxReady:  make(chan struct{}, 1),
		stopped:   make(chan struct{}),
		sinkQueue: make(chan entry, cfg.QueueSize),
		sinksDone: make(chan struct{}),
	}
	r.sinkCtx, r.sinkCancel = context.WithCancel(context.Background())

	line, ok, err := lastMaxSpread(r.maxPath)
	switch {
	case err != nil:
		r.logger.Warn("could not restore max spread, starting from zero",
			slog.String("path", r.maxPath),
			slog.String("error", err.Error()),
		)
	case ok:
		rec := line.record()
		r.currentMax = rec.Fraction
		r.lastMax = &rec
		r.logger.Info("restored max spread",
			slog.String("spread", domain.Pct(rec.Fraction)),
			slog.String("sell_venue", string(rec.SellVenue)),
			slog.String("buy_venue", string(rec.BuyVenue)),
		)
	}

	if r.oppFile, err = openLog(r.oppPath); err != nil {
		r.sinkCancel()
		return nil, err
	}
	if r.maxFile, err = openLog(r.maxPath); err != nil {
		r.oppFile.Close()
		r.sinkCancel()
		return nil, err
	}
	return r, nil
}

func openLog(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("recorder: open %s: %w", path, err)
	}
	if err := sealTail(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("recorder: seal %s: %w", path, err)
	}
	return f, nil
}

// OpportunitiesPath returns the opportunity log path.
func (r *Recorder) OpportunitiesPath() string { return r.oppPath }

// MaxSpreadPath returns the max-spread log path.
func (r *Recorder) MaxSpreadPath() string { return r.maxPath }

// CurrentMaxSpread returns the largest spread fraction recorded so far.
func (r *Recorder) CurrentMaxSpread() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentMax
}

// LastMaxSpread returns the latest max-spread record, if any.
func (r *Recorder) LastMaxSpread() (domain.MaxSpreadRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastMax == nil {
		return domain.MaxSpreadRecord{}, false
	}
	return *r.lastMax, true
}

// RecordOpportunity appends one opportunity record. Records are never
// deduplicated.
func (r *Recorder) RecordOpportunity(sr domain.SpreadResult, profitable bool) domain.Opportunity {
	opp := domain.NewOpportunity(uuid.New().String(), r.now(), sr, profitable)
	if profitable {
		r.logger.Info("profitable opportunity",
			slog.String("spread", domain.Pct(sr.Fraction)),
			slog.String("sell_venue", string(sr.SellVenue)),
			slog.String("buy_venue", string(sr.BuyVenue)),
		)
	}

	r.mu.Lock()
	r.enqueueLocked(entry{opp: &opp})
	r.mu.Unlock()
	return opp
}

// CheckAndRecordMaxSpread appends a max-spread record only when sr strictly
// exceeds the current maximum. It reports whether a record was made. The
// maximum only moves once the record is pending, so the log always replays to
// CurrentMaxSpread.
func (r *Recorder) CheckAndRecordMaxSpread(sr domain.SpreadResult) bool {
	r.mu.Lock()
	if !(sr.Fraction > r.currentMax) {
		r.mu.Unlock()
		return false
	}
	if r.closed {
		r.mu.Unlock()
		r.logger.Error("recorder closed, max spread not recorded",
			slog.String("spread", domain.Pct(sr.Fraction)))
		return false
	}
	rec := domain.NewMaxSpreadRecord(r.now(), sr)
	r.pendingMax = append(r.pendingMax, rec)
	r.currentMax = sr.Fraction
	r.lastMax = &rec
	r.mu.Unlock()

	select {
	case r.maxReady <- struct{}{}:
	default:
	}

	r.logger.Info("new record spread",
		slog.String("spread", domain.Pct(sr.Fraction)),
		slog.String("sell_venue", string(sr.SellVenue)),
		slog.String("buy_venue", string(sr.BuyVenue)),
	)
	return true
}

func (r *Recorder) enqueueLocked(e entry) {
	if r.closed {
		r.dropped.Add(1)
		r.logger.Error("recorder closed, record dropped")
		return
	}
	select {
	case r.queue <- e:
	default:
		r.dropped.Add(1)
		r.logger.Error("recorder queue full, record dropped", slog.Int("queue_size", cap(r.queue)))
	}
}

// takePendingMax hands over the pending max-spread records in the order they
// were made.
func (r *Recorder) takePendingMax() []domain.MaxSpreadRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	pending := r.pendingMax
	r.pendingMax = nil
	return pending
}

func (r *Recorder) flushMax() {
	for _, rec := range r.takePendingMax() {
		r.write(entry{max: &rec})
	}
}

// Run appends queued records until ctx is cancelled and starts the sink
// worker. Close must be called afterwards to flush what is left.
func (r *Recorder) Run(ctx context.Context) error {
	r.started.Store(true)
	defer close(r.stopped)
	go r.runSinks()

	r.logger.Info("recorder started", slog.String("dir", filepath.Dir(r.oppPath)))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.maxReady:
			r.flushMax()
		case e := <-r.queue:
			r.write(e)
		}
	}
}

// Close stops accepting records, waits for Run to return, writes whatever is
// still queued and closes both files.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if r.started.Load() {
		<-r.stopped
	}

	r.flushMax()
	for drained := false; !drained; {
		select {
		case e := <-r.queue:
			r.write(e)
		default:
			drained = true
		}
	}
	errOpp := r.oppFile.Close()
	errMax := r.maxFile.Close()

	close(r.sinkQueue)
	if r.started.Load() {
		select {
		case <-r.sinksDone:
		case <-time.After(sinkDrainTimeout):
			r.logger.Warn("sinks still busy, abandoning remaining records")
			r.sinkCancel()
			<-r.sinksDone
		}
	}
	r.sinkCancel()

	r.logger.Info("recorder closed",
		slog.Int64("dropped", r.dropped.Load()),
		slog.Int64("sink_dropped", r.sinkDropped.Load()),
	)
	if errOpp != nil {
		return fmt.Errorf("recorder: close opportunities log: %w", errOpp)
	}
	if errMax != nil {
		return fmt.Errorf("recorder: close max-spread log: %w", errMax)
	}
	return nil
}

// Stats returns a snapshot of the activity counters.
func (r *Recorder) Stats() Stats {
	return Stats{
		Opportunities: r.opps.Load(),
		MaxSpreads:    r.maxes.Load(),
		Dropped:       r.dropped.Load(),
		SinkDropped:   r.sinkDropped.Load(),
		WriteErrors:   r.writeErrs.Load(),
	}
}

// write appends e to its log and then offers it to the sink worker.
func (r *Recorder) write(e entry) {
	switch {
	case e.opp != nil:
		if err := appendJSON(r.oppFile, toOpportunityLine(*e.opp)); err != nil {
			r.writeErrs.Add(1)
			r.logger.Error("append opportunity failed", slog.String("error", err.Error()))
		} else {
			r.opps.Add(1)
		}
	case e.max != nil:
		if err := appendJSON(r.maxFile, toMaxSpreadLine(*e.max)); err != nil {
			r.writeErrs.Add(1)
			r.logger.Error("append max spread failed", slog.String("error", err.Error()))
		} else {
			r.maxes.Add(1)
		}
	}
	if r.hasSinks() {
		r.offerSink(e)
	}
}

func appendJSON(f *os.File, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = f.Write(append(b, '\n'))
	return err
}
