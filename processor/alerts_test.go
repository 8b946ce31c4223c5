package processor

import (
	"sync"
	"testing"

	"cryptomon/config"
	"cryptomon/internal/channel"
	"cryptomon/models"
	"cryptomon/store"
)

// fakeBroadcaster records every event handed to Broadcast in order.
type fakeBroadcaster struct {
	mu     sync.Mutex
	events []interface{}
}

func (f *fakeBroadcaster) Broadcast(v interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, v)
}

func (f *fakeBroadcaster) all() []interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]interface{}, len(f.events))
	copy(out, f.events)
	return out
}

func testAlertConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Alerts.FundingPeriodsPerDay = 3
	cfg.Alerts.LiquidationMinUSD = 5000
	cfg.Alerts.TradeMinUSD = 15000
	cfg.Alerts.WhaleMinUSD = 100000
	return cfg
}

func newTestProcessor(t *testing.T) (*AlertProcessor, *fakeBroadcaster, *store.History) {
	t.Helper()
	cfg := testAlertConfig()
	hub := &fakeBroadcaster{}
	history := store.NewHistory([]string{"btcusdt", "ethusdt"}, 25, 30, 15)
	p := NewAlertProcessor(cfg, channel.NewChannels(10), history, hub)
	return p, hub, history
}

func TestHandleFunding(t *testing.T) {
	p, hub, _ := newTestProcessor(t)

	p.handleFunding(models.RawFundingMessage{Symbol: "btcusdt", FundingRate: 0.0001, MarkPrice: 50000})

	events := hub.all()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	update, ok := events[0].(models.FundingUpdate)
	if !ok {
		t.Fatalf("unexpected event type %T", events[0])
	}
	if update.Type != models.TypeFunding {
		t.Errorf("Type = %q", update.Type)
	}

	snap := update.Data["btcusdt"]
	if snap == nil {
		t.Fatal("btcusdt snapshot missing")
	}
	// 0.0001 rate is 0.01 percent per period, 10.95 percent annualised.
	if snap.FundingRate != 0.01 {
		t.Errorf("FundingRate = %v, want 0.01", snap.FundingRate)
	}
	wantYearly := 0.01 * 3 * 365
	if snap.YearlyRate != wantYearly {
		t.Errorf("YearlyRate = %v, want %v", snap.YearlyRate, wantYearly)
	}
	if snap.StyleClass != "funding-positive" {
		t.Errorf("StyleClass = %q", snap.StyleClass)
	}
	if snap.SymbolDisplay != "BTC" {
		t.Errorf("SymbolDisplay = %q", snap.SymbolDisplay)
	}
	if update.Data["ethusdt"] != nil {
		t.Errorf("ethusdt should stay nil before its first message")
	}
}

func TestHandleTradeBelowThreshold(t *testing.T) {
	p, hub, _ := newTestProcessor(t)

	p.handleTrade(models.RawTradeMessage{Symbol: "BTCUSDT", Price: 14999.99, Quantity: 1, TradeTime: 1700000000000})

	if len(hub.all()) != 0 {
		t.Fatal("expected no events below the trade threshold")
	}
}

func TestHandleTradeAtThreshold(t *testing.T) {
	p, hub, _ := newTestProcessor(t)

	p.handleTrade(models.RawTradeMessage{Symbol: "BTCUSDT", Price: 15000, Quantity: 1, TradeTime: 1700000000000})

	events := hub.all()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	update, ok := events[0].(models.TradeUpdate)
	if !ok {
		t.Fatalf("unexpected event type %T", events[0])
	}
	if len(update.Data) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(update.Data))
	}
	got := update.Data[0]
	if got.Symbol != "BTC" {
		t.Errorf("Symbol = %q", got.Symbol)
	}
	if got.Type != "BUY" || got.ColorClass != "trade-buy" {
		t.Errorf("direction = %q / %q, want BUY / trade-buy", got.Type, got.ColorClass)
	}
	if got.USDSize != "$15.0K" {
		t.Errorf("USDSize = %q", got.USDSize)
	}
}

func TestHandleTradeSellDirection(t *testing.T) {
	p, hub, _ := newTestProcessor(t)

	p.handleTrade(models.RawTradeMessage{Symbol: "ETHUSDT", Price: 20000, Quantity: 1, BuyerMaker: true, TradeTime: 1700000000000})

	update := hub.all()[0].(models.TradeUpdate)
	if update.Data[0].Type != "SELL" || update.Data[0].ColorClass != "trade-sell" {
		t.Errorf("direction = %q / %q, want SELL / trade-sell", update.Data[0].Type, update.Data[0].ColorClass)
	}
}

func TestHandleTradeWhale(t *testing.T) {
	p, hub, history := newTestProcessor(t)

	// 50000 * 3 = 150000 notional crosses the whale threshold as BIG.
	p.handleTrade(models.RawTradeMessage{Symbol: "BTCUSDT", Price: 50000, Quantity: 3, TradeTime: 1700000000000})

	events := hub.all()
	if len(events) != 2 {
		t.Fatalf("expected whale then trade events, got %d", len(events))
	}

	whale, ok := events[0].(models.WhaleAlertUpdate)
	if !ok {
		t.Fatalf("first event should be the whale update, got %T", events[0])
	}
	if whale.Data[0].SizeIndicator != "BIG" || whale.Data[0].WhaleClass != "whale-big" {
		t.Errorf("tier = %q / %q", whale.Data[0].SizeIndicator, whale.Data[0].WhaleClass)
	}
	if whale.Data[0].USDValue != 150000 {
		t.Errorf("USDValue = %v", whale.Data[0].USDValue)
	}
	if whale.Data[0].Type != "BUY" {
		t.Errorf("whale direction = %q", whale.Data[0].Type)
	}

	if _, ok := events[1].(models.TradeUpdate); !ok {
		t.Fatalf("second event should be the trade update, got %T", events[1])
	}

	_, _, trades, whales := history.Snapshot()
	if len(trades) != 1 || len(whales) != 1 {
		t.Errorf("history lengths = %d trades, %d whales", len(trades), len(whales))
	}
}

func TestHandleTradeWhaleTiers(t *testing.T) {
	p, hub, _ := newTestProcessor(t)

	p.handleTrade(models.RawTradeMessage{Symbol: "BTCUSDT", Price: 600000, Quantity: 1, TradeTime: 1700000000000})
	p.handleTrade(models.RawTradeMessage{Symbol: "BTCUSDT", Price: 2000000, Quantity: 1, TradeTime: 1700000000000})

	events := hub.all()
	first := events[0].(models.WhaleAlertUpdate)
	if first.Data[0].SizeIndicator != "HUGE" {
		t.Errorf("tier = %q, want HUGE", first.Data[0].SizeIndicator)
	}

	second := events[2].(models.WhaleAlertUpdate)
	// Newest entry sits at the head.
	if second.Data[0].SizeIndicator != "MEGA" {
		t.Errorf("tier = %q, want MEGA", second.Data[0].SizeIndicator)
	}
}

func TestHandleLiquidation(t *testing.T) {
	p, hub, _ := newTestProcessor(t)

	p.handleLiquidation(models.RawLiquidationMessage{Symbol: "SOLUSDT", Side: "SELL", Price: 100, FilledQty: 50, TradeTime: 1700000000000})

	events := hub.all()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	update := events[0].(models.LiquidationUpdate)
	if update.Type != models.TypeLiquidation {
		t.Errorf("Type = %q", update.Type)
	}
	got := update.Data[0]
	if got.SideText != "LONG LIQ" || got.ColorClass != "liquidation-long" {
		t.Errorf("side = %q / %q", got.SideText, got.ColorClass)
	}
	if got.Symbol != "SOL" {
		t.Errorf("Symbol = %q", got.Symbol)
	}
	if got.USDSize != "$5.0K" {
		t.Errorf("USDSize = %q", got.USDSize)
	}
}

func TestHandleLiquidationBelowThreshold(t *testing.T) {
	p, hub, _ := newTestProcessor(t)

	p.handleLiquidation(models.RawLiquidationMessage{Symbol: "SOLUSDT", Side: "BUY", Price: 100, FilledQty: 49.99, TradeTime: 1700000000000})

	if len(hub.all()) != 0 {
		t.Fatal("expected no events below the liquidation threshold")
	}
}

func TestHandleLiquidationShortSide(t *testing.T) {
	p, hub, _ := newTestProcessor(t)

	p.handleLiquidation(models.RawLiquidationMessage{Symbol: "ETHUSDT", Side: "BUY", Price: 3000, FilledQty: 10, TradeTime: 1700000000000})

	update := hub.all()[0].(models.LiquidationUpdate)
	if update.Data[0].SideText != "SHORT LIQ" || update.Data[0].ColorClass != "liquidation-short" {
		t.Errorf("side = %q / %q", update.Data[0].SideText, update.Data[0].ColorClass)
	}
}
