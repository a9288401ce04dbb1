package domain

import (
	"fmt"
	"strings"
)

// Venue identifies one of the two exchanges the bot arbitrages between.
type Venue string

const (
	VenueBinance Venue = "binance"
	VenueOKX     Venue = "okx"
)

// Venues lists the supported venues in evaluation order: the first entry is
// venue A, the second venue B.
var Venues = [2]Venue{VenueBinance, VenueOKX}

// ParseVenue maps a case-insensitive name to a Venue.
func ParseVenue(s string) (Venue, error) {
	switch v := Venue(strings.ToLower(strings.TrimSpace(s))); v {
	case VenueBinance, VenueOKX:
		return v, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownVenue, s)
	}
}

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)
