package models

// Discriminator values for updates pushed to dashboard clients.
const (
	TypeInitialData = "initial_data"
	TypeFunding     = "funding_update"
	TypeLiquidation = "liquidation_update"
	TypeTrade       = "trade_update"
	TypeWhaleAlert  = "whale_alert_update"
)

// Every update carries the full container, never a delta, so clients replace
// their state wholesale regardless of how updates from different streams
// interleave. The buffers are small and bounded, which keeps this cheap.

// FundingUpdate replaces the whole funding table.
type FundingUpdate struct {
	Type string                      `json:"type"`
	Data map[string]*FundingSnapshot `json:"data"`
}

// LiquidationUpdate replaces the recent-liquidations list, newest first.
type LiquidationUpdate struct {
	Type string             `json:"type"`
	Data []LiquidationAlert `json:"data"`
}

// TradeUpdate replaces the recent-trades list, newest first.
type TradeUpdate struct {
	Type string       `json:"type"`
	Data []TradeAlert `json:"data"`
}

// WhaleAlertUpdate replaces the whale-alerts list, newest first.
type WhaleAlertUpdate struct {
	Type string       `json:"type"`
	Data []WhaleAlert `json:"data"`
}

// InitialData is the catch-up snapshot sent once to every client on join.
type InitialData struct {
	Type         string                      `json:"type"`
	FundingData  map[string]*FundingSnapshot `json:"funding_data"`
	Liquidations []LiquidationAlert          `json:"liquidations"`
	Trades       []TradeAlert                `json:"trades"`
	WhaleAlerts  []WhaleAlert                `json:"whale_alerts"`
}

func NewFundingUpdate(data map[string]*FundingSnapshot) FundingUpdate {
	return FundingUpdate{Type: TypeFunding, Data: data}
}

func NewLiquidationUpdate(data []LiquidationAlert) LiquidationUpdate {
	return LiquidationUpdate{Type: TypeLiquidation, Data: data}
}

func NewTradeUpdate(data []TradeAlert) TradeUpdate {
	return TradeUpdate{Type: TypeTrade, Data: data}
}

func NewWhaleAlertUpdate(data []WhaleAlert) WhaleAlertUpdate {
	return WhaleAlertUpdate{Type: TypeWhaleAlert, Data: data}
}

func NewInitialData(funding map[string]*FundingSnapshot, liqs []LiquidationAlert, trades []TradeAlert, whales []WhaleAlert) InitialData {
	return InitialData{
		Type:         TypeInitialData,
		FundingData:  funding,
		Liquidations: liqs,
		Trades:       trades,
		WhaleAlerts:  whales,
	}
}
