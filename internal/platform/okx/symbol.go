// Package okx adapts the OKX v5 spot API: tickers quotes, instrument rules
// and signed market orders.
package okx

import (
	"fmt"
	"strings"
)

// InstID maps a canonical BASE/QUOTE instrument to OKX's BASE-QUOTE form.
func InstID(instrument string) (string, error) {
	base, quote, ok := strings.Cut(instrument, "/")
	if !ok || base == "" || quote == "" {
		return "", fmt.Errorf("okx: invalid instrument %q", instrument)
	}
	return strings.ToUpper(base + "-" + quote), nil
}
