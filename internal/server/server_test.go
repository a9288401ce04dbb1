package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alanyoungcy/spreadarb/internal/domain"
	"github.com/alanyoungcy/spreadarb/internal/engine"
	"github.com/alanyoungcy/spreadarb/internal/server/handler"
)

type fakeLister struct {
	opps      []domain.Opportunity
	err       error
	lastLimit int
}

func (f *fakeLister) ListRecent(_ context.Context, limit int) ([]domain.Opportunity, error) {
	f.lastLimit = limit
	return f.opps, f.err
}

func newTestServer(t *testing.T, apiKey string, lister handler.OpportunityLister) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	snapshot := func() handler.Snapshot {
		return handler.Snapshot{
			Engine: engine.Status{Instrument: "BTC/USDT", DryRun: true, CurrentMaxSpread: 0.004},
			Feeds:  []handler.FeedStatus{{Venue: domain.VenueBinance, Connected: true, Quotes: 3}},
		}
	}
	srv := NewServer(Config{APIKey: apiKey}, Handlers{
		Health:        handler.NewHealthHandler(time.Now()),
		Status:        handler.NewStatusHandler(snapshot),
		Opportunities: handler.NewOpportunityHandler(lister, logger),
	}, logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, url string, header map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, url, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body map[string]any
	json.NewDecoder(resp.Body).Decode(&body)
	return resp, body
}

func TestHealthIsPublic(t *testing.T) {
	ts := newTestServer(t, "secret", nil)
	resp, body := get(t, ts.URL+"/api/health", nil)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("health = %d %v", resp.StatusCode, body)
	}
}

func TestStatusRequiresKey(t *testing.T) {
	ts := newTestServer(t, "secret", nil)

	resp, _ := get(t, ts.URL+"/api/status", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no key: status = %d", resp.StatusCode)
	}
	resp, _ = get(t, ts.URL+"/api/status", map[string]string{"X-API-Key": "wrong"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong key: status = %d", resp.StatusCode)
	}

	resp, body := get(t, ts.URL+"/api/status", map[string]string{"Authorization": "Bearer secret"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("bearer: status = %d", resp.StatusCode)
	}
	eng, _ := body["engine"].(map[string]any)
	if eng["instrument"] != "BTC/USDT" || eng["current_max_spread"] != 0.004 {
		t.Fatalf("engine = %v", eng)
	}
	feeds, _ := body["feeds"].([]any)
	if len(feeds) != 1 {
		t.Fatalf("feeds = %v", body["feeds"])
	}
}

func TestRecentOpportunities(t *testing.T) {
	lister := &fakeLister{opps: []domain.Opportunity{{
		ID:         "o1",
		Timestamp:  time.UnixMilli(1700000000000).UTC(),
		Instrument: "BTC/USDT",
		SellVenue:  domain.VenueBinance,
		BuyVenue:   domain.VenueOKX,
		Fraction:   0.004016,
		Profitable: true,
	}}}
	ts := newTestServer(t, "", lister)

	resp, body := get(t, ts.URL+"/api/opportunities/recent?limit=9999", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if lister.lastLimit != 500 {
		t.Fatalf("limit = %d, want capped 500", lister.lastLimit)
	}
	list, _ := body["opportunities"].([]any)
	if len(list) != 1 {
		t.Fatalf("opportunities = %v", body)
	}
	first := list[0].(map[string]any)
	if first["id"] != "o1" || first["spread_pct"] != "0.4016%" {
		t.Fatalf("opportunity = %v", first)
	}
}

func TestRecentOpportunitiesErrors(t *testing.T) {
	ts := newTestServer(t, "", nil)
	if resp, _ := get(t, ts.URL+"/api/opportunities/recent", nil); resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("without store: status = %d", resp.StatusCode)
	}

	ts = newTestServer(t, "", &fakeLister{err: errors.New("db down")})
	if resp, _ := get(t, ts.URL+"/api/opportunities/recent", nil); resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("store error: status = %d", resp.StatusCode)
	}
}
