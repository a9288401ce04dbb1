package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

// OpportunityLister is the read side of domain.OpportunityStore.
type OpportunityLister interface {
	ListRecent(ctx context.Context, limit int) ([]domain.Opportunity, error)
}

// OpportunityHandler serves recorded opportunities from the database mirror.
type OpportunityHandler struct {
	store  OpportunityLister
	logger *slog.Logger
}

// NewOpportunityHandler creates an OpportunityHandler. store may be nil when
// postgres is disabled; the endpoint then answers 503.
func NewOpportunityHandler(store OpportunityLister, logger *slog.Logger) *OpportunityHandler {
	return &OpportunityHandler{store: store, logger: logger.With(slog.String("handler", "opportunities"))}
}

type opportunityView struct {
	ID         string       `json:"id"`
	Timestamp  time.Time    `json:"timestamp"`
	Instrument string       `json:"symbol"`
	SellVenue  domain.Venue `json:"sell_venue"`
	BuyVenue   domain.Venue `json:"buy_venue"`
	SellPrice  float64      `json:"sell_price"`
	BuyPrice   float64      `json:"buy_price"`
	Spread     float64      `json:"spread"`
	SpreadPct  string       `json:"spread_pct"`
	Profitable bool         `json:"profitable"`
}

// ListRecent handles GET /api/opportunities/recent?limit=N.
func (h *OpportunityHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "opportunity history requires postgres")
		return
	}

	opps, err := h.store.ListRecent(r.Context(), parseLimit(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list opportunities failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}

	out := make([]opportunityView, 0, len(opps))
	for _, o := range opps {
		out = append(out, opportunityView{
			ID:         o.ID,
			Timestamp:  o.Timestamp,
			Instrument: o.Instrument,
			SellVenue:  o.SellVenue,
			BuyVenue:   o.BuyVenue,
			SellPrice:  o.SellPrice,
			BuyPrice:   o.BuyPrice,
			Spread:     o.Fraction,
			SpreadPct:  domain.Pct(o.Fraction),
			Profitable: o.Profitable,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"opportunities": out, "count": len(out)})
}
