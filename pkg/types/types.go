// Package types holds the wire-level models shared between the gateway,
// the candle synchronizer and the trading components.
package types

// Candle is one OHLC bar keyed by its bucket start time (unix seconds)
type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// OrderSide is the direction of an order
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// Order is the server's record of a submitted order. AvgFillPrice is nil
// until the order has (partially) filled.
type Order struct {
	OrderID      int64     `json:"order_id"`
	Side         OrderSide `json:"side"`
	Quantity     int       `json:"quantity"`
	Status       string    `json:"status"`
	AvgFillPrice *float64  `json:"avg_fill_price"`
}

// Position is one authoritative position snapshot. Size is signed:
// positive long, negative short, zero flat.
type Position struct {
	Symbol        string  `json:"symbol"`
	Size          float64 `json:"size"`
	AvgCost       float64 `json:"avg_cost"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	MarketValue   float64 `json:"market_value"`
}

// IsFlat reports whether the position carries no exposure
func (p Position) IsFlat() bool {
	return p.Size == 0
}

// IsLong reports whether the position direction is long
func (p Position) IsLong() bool {
	return p.Size > 0
}

// AccountSummary is the account-level snapshot polled alongside positions
type AccountSummary struct {
	NetLiquidation float64 `json:"net_liquidation"`
	AvailableFunds float64 `json:"available_funds"`
	BuyingPower    float64 `json:"buying_power"`
	MarginUsed     float64 `json:"margin_used"`
}
