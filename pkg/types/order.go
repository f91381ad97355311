package types

import (
	"fmt"
	"strings"
)

// Side represents the direction of a proposed order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide normalizes a side string from the trading engine.
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY":
		return SideBuy, nil
	case "SELL":
		return SideSell, nil
	default:
		return "", fmt.Errorf("unknown order side %q", s)
	}
}

// OrderProposal is a proposed order submitted for risk validation.
// It is consumed by a single ValidateOrder call and never stored.
type OrderProposal struct {
	Symbol   string
	Side     Side
	Quantity float64
	Price    float64
}

// Notional returns the order value in quote currency.
func (p OrderProposal) Notional() float64 {
	return p.Quantity * p.Price
}

// PortfolioSnapshot is the caller-supplied view of the portfolio at
// validation time.
type PortfolioSnapshot struct {
	Value            float64
	AvailableBalance float64
}

// Fill reports an executed order back into the risk manager.
type Fill struct {
	Symbol      string
	Side        Side
	Quantity    float64
	Price       float64
	RealizedPnL float64
	Closed      bool
}

// Position describes an open position tracked by the risk manager.
type Position struct {
	Symbol     string
	Side       Side
	Quantity   float64
	EntryPrice float64
	MarkPrice  float64
	StopLoss   float64
	TakeProfit float64
}

// Notional returns the position value at the entry price.
func (p Position) Notional() float64 {
	return p.Quantity * p.EntryPrice
}

// UnrealizedPnL returns the open profit at the last known mark price, or
// zero when no mark price has been observed yet.
func (p Position) UnrealizedPnL() float64 {
	if p.MarkPrice <= 0 {
		return 0
	}
	pnl := (p.MarkPrice - p.EntryPrice) * p.Quantity
	if p.Side == SideSell {
		pnl = -pnl
	}
	return pnl
}
