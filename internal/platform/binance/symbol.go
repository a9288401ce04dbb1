// Package binance adapts the Binance spot API: bookTicker quotes, symbol
// trading rules and signed market orders.
package binance

import (
	"fmt"
	"strings"
)

// Symbol maps a canonical BASE/QUOTE instrument to Binance's BASEQUOTE form.
func Symbol(instrument string) (string, error) {
	base, quote, ok := strings.Cut(instrument, "/")
	if !ok || base == "" || quote == "" {
		return "", fmt.Errorf("binance: invalid instrument %q", instrument)
	}
	return strings.ToUpper(base + quote), nil
}
