package channel

import (
	"context"
	"sync"
	"time"

	"cryptomon/logger"
	"cryptomon/models"
)

// Channels carries decoded market messages from the exchange readers to the
// alert processor. Each stream has its own buffered channel so a stalled
// consumer on one feed does not hold up the others.
type Channels struct {
	Funding      chan models.RawFundingMessage
	Trades       chan models.RawTradeMessage
	Liquidations chan models.RawLiquidationMessage

	stats Stats
	mu    sync.RWMutex
	log   *logger.Log
}

// Stats tracks message counts for monitoring.
type Stats struct {
	FundingSent        int64
	FundingDropped     int64
	TradeSent          int64
	TradeDropped       int64
	LiquidationSent    int64
	LiquidationDropped int64
}

// NewChannels creates buffered channels sized by bufferSize.
func NewChannels(bufferSize int) *Channels {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &Channels{
		Funding:      make(chan models.RawFundingMessage, bufferSize),
		Trades:       make(chan models.RawTradeMessage, bufferSize),
		Liquidations: make(chan models.RawLiquidationMessage, bufferSize),
		log:          logger.GetLogger(),
	}
}

// SendFunding attempts to enqueue a funding message without blocking.
// Messages are dropped when the buffer is full.
func (c *Channels) SendFunding(ctx context.Context, msg models.RawFundingMessage) bool {
	select {
	case c.Funding <- msg:
		c.mu.Lock()
		c.stats.FundingSent++
		c.mu.Unlock()
		return true
	case <-ctx.Done():
		return false
	default:
		c.mu.Lock()
		c.stats.FundingDropped++
		dropped := c.stats.FundingDropped
		c.mu.Unlock()
		if dropped%1000 == 1 {
			c.log.WithComponent("channels").WithFields(logger.Fields{
				"channel": "funding",
				"dropped": dropped,
			}).Warn("channel full, dropping messages")
		}
		return false
	}
}

// SendTrade attempts to enqueue a trade message without blocking.
func (c *Channels) SendTrade(ctx context.Context, msg models.RawTradeMessage) bool {
	select {
	case c.Trades <- msg:
		c.mu.Lock()
		c.stats.TradeSent++
		c.mu.Unlock()
		return true
	case <-ctx.Done():
		return false
	default:
		c.mu.Lock()
		c.stats.TradeDropped++
		dropped := c.stats.TradeDropped
		c.mu.Unlock()
		if dropped%1000 == 1 {
			c.log.WithComponent("channels").WithFields(logger.Fields{
				"channel": "trades",
				"dropped": dropped,
			}).Warn("channel full, dropping messages")
		}
		return false
	}
}

// SendLiquidation attempts to enqueue a liquidation message without blocking.
func (c *Channels) SendLiquidation(ctx context.Context, msg models.RawLiquidationMessage) bool {
	select {
	case c.Liquidations <- msg:
		c.mu.Lock()
		c.stats.LiquidationSent++
		c.mu.Unlock()
		return true
	case <-ctx.Done():
		return false
	default:
		c.mu.Lock()
		c.stats.LiquidationDropped++
		dropped := c.stats.LiquidationDropped
		c.mu.Unlock()
		if dropped%1000 == 1 {
			c.log.WithComponent("channels").WithFields(logger.Fields{
				"channel": "liquidations",
				"dropped": dropped,
			}).Warn("channel full, dropping messages")
		}
		return false
	}
}

// GetStats returns a copy of the current counters.
func (c *Channels) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// StartMetricsReporting logs channel utilisation every interval until the
// context is cancelled.
func (c *Channels) StartMetricsReporting(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := c.GetStats()
				c.log.WithComponent("channels").WithFields(logger.Fields{
					"funding_sent":        stats.FundingSent,
					"funding_dropped":     stats.FundingDropped,
					"funding_buffered":    len(c.Funding),
					"trade_sent":          stats.TradeSent,
					"trade_dropped":       stats.TradeDropped,
					"trade_buffered":      len(c.Trades),
					"liquidation_sent":    stats.LiquidationSent,
					"liquidation_dropped": stats.LiquidationDropped,
					"liquidation_buffered": len(c.Liquidations),
				}).Info("channel stats")
			}
		}
	}()
}

// Close closes all channels. Callers must ensure no further sends happen.
func (c *Channels) Close() {
	close(c.Funding)
	close(c.Trades)
	close(c.Liquidations)
}
