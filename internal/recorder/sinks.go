package recorder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

func (r *Recorder) hasSinks() bool {
	return r.store != nil || r.publisher != nil || r.alerter != nil
}

// offerSink hands e to the sink worker, dropping it when the worker is behind.
// The record is already on disk at this point.
func (r *Recorder) offerSink(e entry) {
	select {
	case r.sinkQueue <- e:
	default:
		r.sinkDropped.Add(1)
		r.logger.Warn("sink queue full, record not mirrored", slog.Int("queue_size", cap(r.sinkQueue)))
	}
}

// runSinks mirrors records to the optional sinks until the sink queue is
// closed. Once sinkCtx is cancelled the remainder is discarded.
func (r *Recorder) runSinks() {
	defer close(r.sinksDone)
	for e := range r.sinkQueue {
		if r.sinkCtx.Err() != nil {
			r.sinkDropped.Add(1)
			continue
		}
		switch {
		case e.opp != nil:
			r.fanOutOpportunity(r.sinkCtx, *e.opp)
		case e.max != nil:
			r.fanOutMaxSpread(r.sinkCtx, *e.max)
		}
	}
}

func (r *Recorder) fanOutOpportunity(ctx context.Context, opp domain.Opportunity) {
	ctx, cancel := context.WithTimeout(ctx, sinkTimeout)
	defer cancel()

	if r.store != nil {
		if err := r.store.InsertOpportunity(ctx, opp); err != nil {
			r.sinkFailed("store", err)
		}
	}
	if r.publisher != nil {
		if err := r.publisher.PublishOpportunity(ctx, opp); err != nil {
			r.sinkFailed("publisher", err)
		}
	}
	if r.alerter != nil {
		msg := fmt.Sprintf("%s: sell %s @ %g, buy %s @ %g, spread %s",
			opp.Instrument, opp.SellVenue, opp.SellPrice, opp.BuyVenue, opp.BuyPrice, domain.Pct(opp.Fraction))
		if err := r.alerter.Notify(ctx, domain.EventOpportunity, "Profitable opportunity", msg); err != nil {
			r.sinkFailed("alerter", err)
		}
	}
}

func (r *Recorder) fanOutMaxSpread(ctx context.Context, rec domain.MaxSpreadRecord) {
	ctx, cancel := context.WithTimeout(ctx, sinkTimeout)
	defer cancel()

	if r.store != nil {
		if err := r.store.InsertMaxSpread(ctx, rec); err != nil {
			r.sinkFailed("store", err)
		}
	}
	if r.publisher != nil {
		if err := r.publisher.PublishMaxSpread(ctx, rec); err != nil {
			r.sinkFailed("publisher", err)
		}
	}
	if r.alerter != nil {
		msg := fmt.Sprintf("%s: %s (sell %s, buy %s)",
			rec.Instrument, domain.Pct(rec.Fraction), rec.SellVenue, rec.BuyVenue)
		if err := r.alerter.Notify(ctx, domain.EventMaxSpread, "New record spread", msg); err != nil {
			r.sinkFailed("alerter", err)
		}
	}
}

func (r *Recorder) sinkFailed(sink string, err error) {
	r.logger.Warn("recorder sink failed",
		slog.String("sink", sink),
		slog.String("error", err.Error()),
	)
}
