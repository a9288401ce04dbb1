package okx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/spreadarb/internal/crypto"
	"github.com/alanyoungcy/spreadarb/internal/domain"
)

// Client is the REST client for the OKX v5 API. It serves both as the venue's
// rules provider and its order client.
type Client struct {
	baseURL    string
	auth       *crypto.OKXAuth
	simulated  bool
	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates an OKX REST client. baseURL is the API root, e.g.
// "https://www.okx.com". simulated routes orders to the demo trading
// environment.
func NewClient(baseURL string, auth *crypto.OKXAuth, simulated bool) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		auth:      auth,
		simulated: simulated,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		now: time.Now,
	}
}

var (
	_ domain.RulesProvider = (*Client)(nil)
	_ domain.OrderClient   = (*Client)(nil)
)

// LoadMarketConstraint reads lotSz for instrument. OKX publishes no minimum
// notional for spot, so MinNotional is zero.
func (c *Client) LoadMarketConstraint(ctx context.Context, instrument string) (domain.MarketConstraint, error) {
	id, err := InstID(instrument)
	if err != nil {
		return domain.MarketConstraint{}, err
	}

	params := url.Values{}
	params.Set("instType", "SPOT")
	params.Set("instId", id)
	data, err := c.do(ctx, http.MethodGet, "/api/v5/public/instruments?"+params.Encode(), nil, false)
	if err != nil {
		return domain.MarketConstraint{}, fmt.Errorf("okx: instruments %s: %w", id, err)
	}

	var insts []instrumentInfo
	if err := json.Unmarshal(data, &insts); err != nil {
		return domain.MarketConstraint{}, fmt.Errorf("okx: decode instruments: %w", err)
	}
	for _, inst := range insts {
		if inst.InstID != id {
			continue
		}
		step, err := decimal.NewFromString(inst.LotSz)
		if err != nil || !step.IsPositive() {
			return domain.MarketConstraint{}, fmt.Errorf("okx: %s lotSz %q: %w", id, inst.LotSz, domain.ErrMissingConstraint)
		}
		minQty := decimal.Zero
		if inst.MinSz != "" {
			if minQty, err = decimal.NewFromString(inst.MinSz); err != nil {
				return domain.MarketConstraint{}, fmt.Errorf("okx: %s minSz %q: %w", id, inst.MinSz, err)
			}
		}
		return domain.MarketConstraint{
			Venue:       domain.VenueOKX,
			Instrument:  instrument,
			StepSize:    step,
			MinQty:      minQty,
			MinNotional: decimal.Zero,
		}, nil
	}
	return domain.MarketConstraint{}, fmt.Errorf("okx: instrument %s: %w", id, domain.ErrNotFound)
}

// PlaceMarketOrder submits a cash market order sized in base currency.
func (c *Client) PlaceMarketOrder(ctx context.Context, instrument string, side domain.OrderSide, qty decimal.Decimal) (domain.OrderResult, error) {
	if c.auth == nil {
		return domain.OrderResult{}, errors.New("okx: api credentials not configured")
	}
	id, err := InstID(instrument)
	if err != nil {
		return domain.OrderResult{}, err
	}

	body, err := json.Marshal(orderRequest{
		InstID:  id,
		TdMode:  "cash",
		Side:    string(side),
		OrdType: "market",
		Sz:      qty.String(),
		TgtCcy:  "base_ccy",
	})
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("okx: marshal order: %w", err)
	}

	data, err := c.do(ctx, http.MethodPost, "/api/v5/trade/order", body, true)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("okx: place %s order: %w", side, err)
	}

	var acks []orderAck
	if err := json.Unmarshal(data, &acks); err != nil || len(acks) == 0 {
		return domain.OrderResult{}, fmt.Errorf("okx: decode order ack: %s", string(data))
	}
	ack := acks[0]
	if ack.SCode != "" && ack.SCode != "0" {
		return domain.OrderResult{}, fmt.Errorf("okx: place %s order: %w: %s (%s)", side, domain.ErrOrderRejected, ack.SMsg, ack.SCode)
	}
	return domain.OrderResult{
		OrderID: ack.OrdID,
		Status:  "accepted",
		Raw:     string(data),
	}, nil
}

// do sends a request and returns the envelope's data on code "0". Signed
// requests carry OK-ACCESS-* headers computed over the exact path and body.
func (c *Client) do(ctx context.Context, method, pathAndQuery string, body []byte, signed bool) (json.RawMessage, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+pathAndQuery, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if signed {
		for k, v := range c.auth.HeadersAt(method, pathAndQuery, string(body), c.now()) {
			req.Header.Set(k, v)
		}
	}
	if c.simulated {
		req.Header.Set("x-simulated-trading", "1")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(respBody, &env)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("unauthorized: %s (%s)", env.Msg, env.Code)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("rate limited: %s (%s)", env.Msg, env.Code)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("HTTP %d: %s (%s)", resp.StatusCode, env.Msg, env.Code)
	case decodeErr != nil:
		return nil, fmt.Errorf("decode envelope: %w", decodeErr)
	case env.Code != "0":
		// Order endpoints put the per-order reason in data[].sMsg.
		var acks []orderAck
		if json.Unmarshal(env.Data, &acks) == nil && len(acks) > 0 && acks[0].SMsg != "" {
			return nil, fmt.Errorf("%w: %s (%s)", domain.ErrOrderRejected, acks[0].SMsg, acks[0].SCode)
		}
		return nil, fmt.Errorf("%w: %s (%s)", domain.ErrOrderRejected, env.Msg, env.Code)
	}
	return env.Data, nil
}
