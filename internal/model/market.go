package model

import (
	"fmt"
	"time"
)

// Bar represents a single OHLCV bar.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// TimestampKey returns the bar's own timestamp as the canonical history key.
// Keys are RFC3339 in UTC so lexical order matches chronological order.
func (b Bar) TimestampKey() string {
	return b.Time.UTC().Format(time.RFC3339)
}

// ParseTimestampKey parses a history key back into an instant.
func ParseTimestampKey(key string) (time.Time, error) {
	return time.Parse(time.RFC3339, key)
}

// Timeframe is a supported bar size for historical data requests.
type Timeframe string

const (
	Timeframe15Min Timeframe = "15 mins"
	Timeframe1Hour Timeframe = "1 hour"
	Timeframe1Day  Timeframe = "1 day"
)

// ParseTimeframe validates a timeframe string from config or the gateway.
func ParseTimeframe(s string) (Timeframe, error) {
	switch Timeframe(s) {
	case Timeframe15Min, Timeframe1Hour, Timeframe1Day:
		return Timeframe(s), nil
	}
	return "", fmt.Errorf("unsupported timeframe %q", s)
}

// Duration returns the bar length of the timeframe.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case Timeframe1Hour:
		return time.Hour
	case Timeframe1Day:
		return 24 * time.Hour
	default:
		return 15 * time.Minute
	}
}

// MarketStatus is the session status of a symbol's market.
type MarketStatus string

const (
	MarketActiveRegular  MarketStatus = "ACTIVE (regular hours)"
	MarketActiveExtended MarketStatus = "ACTIVE (extended hours)"
	MarketClosed         MarketStatus = "CLOSED"
	MarketUnknown        MarketStatus = "UNKNOWN"
)
