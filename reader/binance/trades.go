package binance

import (
	"context"
	"strings"
	"sync"

	"github.com/adshao/go-binance/v2/futures"

	"cryptomon/config"
	"cryptomon/internal/channel"
	"cryptomon/logger"
	"cryptomon/models"
)

// TradeReader subscribes to the aggregated trade stream for each configured
// symbol using the exchange SDK.
type TradeReader struct {
	cfg      *config.Config
	channels *channel.Channels
	log      *logger.Log
	policy   reconnectPolicy

	mu      sync.RWMutex
	running bool
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

func NewTradeReader(cfg *config.Config, channels *channel.Channels) *TradeReader {
	return &TradeReader{
		cfg:      cfg,
		channels: channels,
		log:      logger.GetLogger(),
		policy:   newReconnectPolicy(cfg.Source.Binance.Future.ReconnectDelay),
	}
}

func (r *TradeReader) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}

	ctx, r.cancel = context.WithCancel(ctx)
	r.running = true

	symbols := r.cfg.Source.Binance.Future.Symbols
	r.log.WithComponent("binance_trade_reader").WithFields(logger.Fields{
		"symbols": strings.Join(symbols, ","),
	}).Info("starting aggTrade streams")

	for _, symbol := range symbols {
		r.wg.Add(1)
		go r.streamSymbol(ctx, strings.ToUpper(symbol))
	}
	return nil
}

func (r *TradeReader) Stop() {
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
	r.log.WithComponent("binance_trade_reader").Info("aggTrade streams stopped")
}

func (r *TradeReader) streamSymbol(ctx context.Context, symbol string) {
	defer r.wg.Done()

	log := r.log.WithComponent("binance_trade_reader").WithFields(logger.Fields{"symbol": symbol})

	handler := func(event *futures.WsAggTradeEvent) {
		msg, ok := r.parse(event)
		if !ok {
			return
		}
		logger.IncrementTradeRead(len(event.Price) + len(event.Quantity))
		r.channels.SendTrade(ctx, msg)
	}

	errHandler := func(err error) {
		log.WithError(err).Warn("aggTrade stream error")
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		doneC, stopC, err := futures.WsAggTradeServe(symbol, handler, errHandler)
		if err != nil {
			log.WithError(err).Warn("subscribe failed, retrying")
			if !r.policy.Wait(ctx) {
				return
			}
			continue
		}

		log.Info("connected to aggTrade stream")

		select {
		case <-ctx.Done():
			close(stopC)
			<-doneC
			return
		case <-doneC:
			log.Warn("aggTrade stream closed, reconnecting")
		}

		if !r.policy.Wait(ctx) {
			return
		}
	}
}

func (r *TradeReader) parse(event *futures.WsAggTradeEvent) (models.RawTradeMessage, bool) {
	price, err := parseFloat(event.Price)
	if err != nil {
		r.log.WithComponent("binance_trade_reader").WithError(err).Debug("invalid trade price")
		return models.RawTradeMessage{}, false
	}
	qty, err := parseFloat(event.Quantity)
	if err != nil {
		r.log.WithComponent("binance_trade_reader").WithError(err).Debug("invalid trade quantity")
		return models.RawTradeMessage{}, false
	}

	return models.RawTradeMessage{
		Symbol:     event.Symbol,
		Price:      price,
		Quantity:   qty,
		TradeTime:  event.TradeTime,
		BuyerMaker: event.Maker,
	}, true
}
