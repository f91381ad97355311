package types

import "time"

// Ticker is a last-trade price observation for one symbol.
type Ticker struct {
	Symbol    string
	Price     float64
	Timestamp time.Time
}
