package processor

import (
	"context"
	"sync"

	"cryptomon/config"
	"cryptomon/internal/channel"
	"cryptomon/logger"
	"cryptomon/models"
	"cryptomon/store"
)

// Broadcaster pushes a display update to every connected client.
type Broadcaster interface {
	Broadcast(v interface{})
}

// AlertProcessor consumes raw stream messages, applies the alert thresholds,
// updates the shared history and broadcasts the resulting full-state events.
// One worker per stream keeps ordering within a stream intact.
type AlertProcessor struct {
	cfg      *config.Config
	channels *channel.Channels
	history  *store.History
	hub      Broadcaster
	log      *logger.Log

	mu      sync.RWMutex
	running bool
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

func NewAlertProcessor(cfg *config.Config, channels *channel.Channels, history *store.History, hub Broadcaster) *AlertProcessor {
	return &AlertProcessor{
		cfg:      cfg,
		channels: channels,
		history:  history,
		hub:      hub,
		log:      logger.GetLogger(),
	}
}

func (p *AlertProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.running = true

	p.wg.Add(3)
	go p.fundingWorker(ctx)
	go p.tradeWorker(ctx)
	go p.liquidationWorker(ctx)

	p.log.WithComponent("alert_processor").Info("alert processor started")
	return nil
}

func (p *AlertProcessor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
	p.log.WithComponent("alert_processor").Info("alert processor stopped")
}

func (p *AlertProcessor) fundingWorker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-p.channels.Funding:
			if !ok {
				return
			}
			p.handleFunding(msg)
		}
	}
}

func (p *AlertProcessor) tradeWorker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-p.channels.Trades:
			if !ok {
				return
			}
			p.handleTrade(msg)
		}
	}
}

func (p *AlertProcessor) liquidationWorker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-p.channels.Liquidations:
			if !ok {
				return
			}
			p.handleLiquidation(msg)
		}
	}
}

func (p *AlertProcessor) handleFunding(msg models.RawFundingMessage) {
	ratePercent := msg.FundingRate * 100
	yearly := ratePercent * float64(p.cfg.Alerts.FundingPeriodsPerDay) * 365

	snap := models.FundingSnapshot{
		SymbolDisplay: DisplaySymbol(msg.Symbol, 0),
		FundingRate:   ratePercent,
		YearlyRate:    yearly,
		StyleClass:    FundingStyleClass(yearly),
	}

	table := p.history.SetFunding(msg.Symbol, snap)
	p.hub.Broadcast(models.NewFundingUpdate(table))
}

func (p *AlertProcessor) handleTrade(msg models.RawTradeMessage) {
	usd := msg.Price * msg.Quantity
	if usd < p.cfg.Alerts.TradeMinUSD {
		return
	}

	direction := "BUY"
	colorClass := "trade-buy"
	if msg.BuyerMaker {
		direction = "SELL"
		colorClass = "trade-sell"
	}

	alert := models.TradeAlert{
		Symbol:     DisplaySymbol(msg.Symbol, 4),
		Type:       direction,
		USDSize:    FormatUSD(usd),
		Price:      msg.Price,
		Time:       ClockEastern(msg.TradeTime),
		ColorClass: colorClass,
	}

	// Whale alerts go out first so clients render the tiered banner before
	// the plain trade row for the same fill.
	if usd >= p.cfg.Alerts.WhaleMinUSD {
		label, class := WhaleTier(usd)
		whale := models.WhaleAlert{
			TradeAlert:    alert,
			USDValue:      usd,
			SizeIndicator: label,
			WhaleClass:    class,
		}
		whales := p.history.AddWhale(whale)
		p.hub.Broadcast(models.NewWhaleAlertUpdate(whales))
	}

	trades := p.history.AddTrade(alert)
	p.hub.Broadcast(models.NewTradeUpdate(trades))
}

func (p *AlertProcessor) handleLiquidation(msg models.RawLiquidationMessage) {
	usd := msg.Price * msg.FilledQty
	if usd < p.cfg.Alerts.LiquidationMinUSD {
		return
	}

	// A forced SELL closes long positions, a forced BUY closes shorts.
	sideText := "SHORT LIQ"
	colorClass := "liquidation-short"
	if msg.Side == "SELL" {
		sideText = "LONG LIQ"
		colorClass = "liquidation-long"
	}

	alert := models.LiquidationAlert{
		Symbol:     DisplaySymbol(msg.Symbol, 4),
		Side:       msg.Side,
		SideText:   sideText,
		USDSize:    FormatUSD(usd),
		Time:       ClockEastern(msg.TradeTime),
		ColorClass: colorClass,
	}

	liqs := p.history.AddLiquidation(alert)
	p.hub.Broadcast(models.NewLiquidationUpdate(liqs))
}
