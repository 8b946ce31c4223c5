package models

import "time"

// Raw stream messages produced by the binance readers. Decoding happens at
// the reader boundary so the processor only deals with typed values.

// RawFundingMessage carries one mark-price update for a single symbol.
type RawFundingMessage struct {
	Symbol      string // lowercase stream symbol, e.g. "btcusdt"
	FundingRate float64
	MarkPrice   float64
	EventTime   time.Time
}

// RawTradeMessage carries one aggregated trade for a single symbol.
type RawTradeMessage struct {
	Symbol     string
	Price      float64
	Quantity   float64
	TradeTime  int64 // exchange epoch millis
	BuyerMaker bool
}

// RawLiquidationMessage carries one forced order from the global stream.
type RawLiquidationMessage struct {
	Symbol    string
	Side      string // side of the forced order, BUY or SELL
	Price     float64
	FilledQty float64
	TradeTime int64
}

// FundingSnapshot is the latest funding state for one symbol as rendered on
// the dashboard. The map entry stays nil until the first message arrives.
type FundingSnapshot struct {
	SymbolDisplay string  `json:"symbol_display"`
	FundingRate   float64 `json:"funding_rate"`
	YearlyRate    float64 `json:"yearly_rate"`
	StyleClass    string  `json:"style_class"`
}

// LiquidationAlert is one display-ready liquidation row.
type LiquidationAlert struct {
	Symbol     string `json:"symbol"`
	Side       string `json:"side"`
	SideText   string `json:"side_text"`
	USDSize    string `json:"usd_size"`
	Time       string `json:"time"`
	ColorClass string `json:"color_class"`
}

// TradeAlert is one display-ready large-trade row.
type TradeAlert struct {
	Symbol     string  `json:"symbol"`
	Type       string  `json:"type"`
	USDSize    string  `json:"usd_size"`
	Price      float64 `json:"price"`
	Time       string  `json:"time"`
	ColorClass string  `json:"color_class"`
}

// WhaleAlert extends a trade alert with the raw notional and size tier. The
// embedded fields marshal flat so the dashboard reads one object shape.
type WhaleAlert struct {
	TradeAlert
	USDValue      float64 `json:"usd_value"`
	SizeIndicator string  `json:"size_indicator"`
	WhaleClass    string  `json:"whale_class"`
}
