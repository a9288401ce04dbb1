package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/spreadarb/internal/crypto"
	"github.com/alanyoungcy/spreadarb/internal/domain"
)

// Client is the REST client for the Binance spot API. It serves both as the
// venue's rules provider and its order client.
type Client struct {
	baseURL      string
	auth         *crypto.BinanceAuth
	recvWindowMs int
	httpClient   *http.Client
	now          func() time.Time
}

// NewClient creates a Binance REST client. baseURL is the API root, e.g.
// "https://api.binance.com". auth may be nil when only public endpoints are
// used.
func NewClient(baseURL string, auth *crypto.BinanceAuth, recvWindowMs int) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		auth:         auth,
		recvWindowMs: recvWindowMs,
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

// LoadMarketConstraint reads LOT_SIZE.stepSize and the minimum notional
// (NOTIONAL or the older MIN_NOTIONAL filter) for instrument.
func (c *Client) LoadMarketConstraint(ctx context.Context, instrument string) (domain.MarketConstraint, error) {
	sym, err := Symbol(instrument)
	if err != nil {
		return domain.MarketConstraint{}, err
	}

	body, err := c.do(ctx, http.MethodGet, "/api/v3/exchangeInfo?symbol="+url.QueryEscape(sym), nil)
	if err != nil {
		return domain.MarketConstraint{}, fmt.Errorf("binance: exchange info %s: %w", sym, err)
	}

	var resp exchangeInfo
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.MarketConstraint{}, fmt.Errorf("binance: decode exchange info: %w", err)
	}

	for _, s := range resp.Symbols {
		if s.Symbol != sym {
			continue
		}
		mc := domain.MarketConstraint{
			Venue:       domain.VenueBinance,
			Instrument:  instrument,
			MinNotional: decimal.Zero,
		}
		for _, f := range s.Filters {
			switch f.FilterType {
			case "LOT_SIZE":
				step, err := decimal.NewFromString(f.StepSize)
				if err != nil {
					return domain.MarketConstraint{}, fmt.Errorf("binance: parse stepSize %q: %w", f.StepSize, err)
				}
				mc.StepSize = step
				if f.MinQty != "" {
					minQty, err := decimal.NewFromString(f.MinQty)
					if err != nil {
						return domain.MarketConstraint{}, fmt.Errorf("binance: parse minQty %q: %w", f.MinQty, err)
					}
					mc.MinQty = minQty
				}
			case "NOTIONAL", "MIN_NOTIONAL":
				if f.MinNotional == "" {
					continue
				}
				minNotional, err := decimal.NewFromString(f.MinNotional)
				if err != nil {
					return domain.MarketConstraint{}, fmt.Errorf("binance: parse minNotional %q: %w", f.MinNotional, err)
				}
				mc.MinNotional = minNotional
			}
		}
		if !mc.StepSize.IsPositive() {
			return domain.MarketConstraint{}, fmt.Errorf("binance: %s has no LOT_SIZE filter: %w", sym, domain.ErrMissingConstraint)
		}
		return mc, nil
	}
	return domain.MarketConstraint{}, fmt.Errorf("binance: symbol %s: %w", sym, domain.ErrNotFound)
}

// PlaceMarketOrder submits a MARKET order for qty base units.
func (c *Client) PlaceMarketOrder(ctx context.Context, instrument string, side domain.OrderSide, qty decimal.Decimal) (domain.OrderResult, error) {
	if c.auth == nil {
		return domain.OrderResult{}, errors.New("binance: api credentials not configured")
	}
	sym, err := Symbol(instrument)
	if err != nil {
		return domain.OrderResult{}, err
	}

	params := url.Values{}
	params.Set("symbol", sym)
	params.Set("side", strings.ToUpper(string(side)))
	params.Set("type", "MARKET")
	params.Set("quantity", qty.String())
	query := c.auth.SignedQuery(params, c.now(), c.recvWindowMs)

	body, err := c.do(ctx, http.MethodPost, "/api/v3/order?"+query, c.auth.Headers())
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("binance: place %s order: %w", side, err)
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.OrderResult{}, fmt.Errorf("binance: decode order response: %w", err)
	}
	return domain.OrderResult{
		OrderID: strconv.FormatInt(resp.OrderID, 10),
		Status:  resp.Status,
		Raw:     string(body),
	}, nil
}

func (c *Client) do(ctx context.Context, method, pathAndQuery string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+pathAndQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if err := checkStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

// checkStatus maps non-2xx responses to errors. Rejections reported by the
// matching engine wrap domain.ErrOrderRejected.
func checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr apiError
	_ = json.Unmarshal(body, &apiErr)

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return fmt.Errorf("unauthorized: %s (%d)", apiErr.Msg, apiErr.Code)
	case statusCode == http.StatusTooManyRequests || statusCode == 418:
		return fmt.Errorf("rate limited: %s (%d)", apiErr.Msg, apiErr.Code)
	case statusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: %s (%d)", domain.ErrOrderRejected, apiErr.Msg, apiErr.Code)
	default:
		return fmt.Errorf("HTTP %d: %s (%d)", statusCode, apiErr.Msg, apiErr.Code)
	}
}
