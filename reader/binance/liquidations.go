package binance

import (
	"context"
	"sync"

	"github.com/adshao/go-binance/v2/futures"

	"cryptomon/config"
	"cryptomon/internal/channel"
	"cryptomon/logger"
	"cryptomon/models"
)

// LiquidationReader subscribes to the exchange-wide forced order stream. The
// feed covers every symbol, so a single connection is enough.
type LiquidationReader struct {
	cfg      *config.Config
	channels *channel.Channels
	log      *logger.Log
	policy   reconnectPolicy

	mu      sync.RWMutex
	running bool
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

func NewLiquidationReader(cfg *config.Config, channels *channel.Channels) *LiquidationReader {
	return &LiquidationReader{
		cfg:      cfg,
		channels: channels,
		log:      logger.GetLogger(),
		policy:   newReconnectPolicy(cfg.Source.Binance.Future.ReconnectDelay),
	}
}

func (r *LiquidationReader) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}

	ctx, r.cancel = context.WithCancel(ctx)
	r.running = true

	r.wg.Add(1)
	go r.stream(ctx)
	return nil
}

func (r *LiquidationReader) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	cancel := r.cancel
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
	r.log.WithComponent("binance_liquidation_reader").Info("liquidation stream stopped")
}

func (r *LiquidationReader) stream(ctx context.Context) {
	defer r.wg.Done()

	log := r.log.WithComponent("binance_liquidation_reader")

	handler := func(event *futures.WsLiquidationOrderEvent) {
		msg, ok := r.parse(event)
		if !ok {
			return
		}
		logger.IncrementLiquidationRead(len(event.LiquidationOrder.Price) + len(event.LiquidationOrder.AccumulatedFilledQty))
		r.channels.SendLiquidation(ctx, msg)
	}

	errHandler := func(err error) {
		log.WithError(err).Warn("liquidation stream error")
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		doneC, stopC, err := futures.WsAllLiquidationOrderServe(handler, errHandler)
		if err != nil {
			log.WithError(err).Warn("subscribe failed, retrying")
			if !r.policy.Wait(ctx) {
				return
			}
			continue
		}

		log.Info("connected to liquidation stream")

		select {
		case <-ctx.Done():
			close(stopC)
			<-doneC
			return
		case <-doneC:
			log.Warn("liquidation stream closed, reconnecting")
		}

		if !r.policy.Wait(ctx) {
			return
		}
	}
}

func (r *LiquidationReader) parse(event *futures.WsLiquidationOrderEvent) (models.RawLiquidationMessage, bool) {
	order := event.LiquidationOrder

	price, err := parseFloat(order.Price)
	if err != nil {
		r.log.WithComponent("binance_liquidation_reader").WithError(err).Debug("invalid liquidation price")
		return models.RawLiquidationMessage{}, false
	}
	qty, err := parseFloat(order.AccumulatedFilledQty)
	if err != nil {
		r.log.WithComponent("binance_liquidation_reader").WithError(err).Debug("invalid liquidation quantity")
		return models.RawLiquidationMessage{}, false
	}

	return models.RawLiquidationMessage{
		Symbol:    order.Symbol,
		Side:      string(order.Side),
		Price:     price,
		FilledQty: qty,
		TradeTime: order.TradeTime,
	}, true
}
