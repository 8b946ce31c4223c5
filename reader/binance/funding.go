package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"cryptomon/config"
	"cryptomon/internal/channel"
	"cryptomon/logger"
	"cryptomon/models"
)

// FundingReader maintains one markPrice stream per configured symbol and
// pushes decoded funding updates into the shared channels.
type FundingReader struct {
	cfg      *config.Config
	channels *channel.Channels
	log      *logger.Log
	policy   reconnectPolicy

	mu      sync.RWMutex
	running bool
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// binanceMarkPricePayload mirrors the markPrice stream message.
type binanceMarkPricePayload struct {
	EventType       string `json:"e"`
	EventTime       int64  `json:"E"`
	Symbol          string `json:"s"`
	MarkPrice       string `json:"p"`
	IndexPrice      string `json:"i"`
	EstimatedSettle string `json:"P"`
	FundingRate     string `json:"r"`
	NextFundingTime int64  `json:"T"`
}

func NewFundingReader(cfg *config.Config, channels *channel.Channels) *FundingReader {
	return &FundingReader{
		cfg:      cfg,
		channels: channels,
		log:      logger.GetLogger(),
		policy:   newReconnectPolicy(cfg.Source.Binance.Future.ReconnectDelay),
	}
}

// Start launches one stream goroutine per symbol. It is a no-op when the
// reader is already running.
func (r *FundingReader) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}

	ctx, r.cancel = context.WithCancel(ctx)
	r.running = true

	symbols := r.cfg.Source.Binance.Future.Symbols
	r.log.WithComponent("binance_funding_reader").WithFields(logger.Fields{
		"symbols": strings.Join(symbols, ","),
	}).Info("starting funding streams")

	for _, symbol := range symbols {
		r.wg.Add(1)
		go r.streamSymbol(ctx, strings.ToLower(symbol))
	}
	return nil
}

// Stop cancels all stream goroutines and waits for them to exit.
func (r *FundingReader) Stop() {
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
	r.log.WithComponent("binance_funding_reader").Info("funding streams stopped")
}

func (r *FundingReader) streamSymbol(ctx context.Context, symbol string) {
	defer r.wg.Done()

	url := fmt.Sprintf("%s/%s@markPrice", r.cfg.Source.Binance.Future.URL, symbol)
	log := r.log.WithComponent("binance_funding_reader").WithFields(logger.Fields{"symbol": symbol})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			log.WithError(err).Warn("dial failed, retrying")
			if !r.policy.Wait(ctx) {
				return
			}
			continue
		}

		log.Info("connected to markPrice stream")
		r.readLoop(ctx, conn, symbol)
		conn.Close()

		if !r.policy.Wait(ctx) {
			return
		}
	}
}

func (r *FundingReader) readLoop(ctx context.Context, conn *websocket.Conn, symbol string) {
	log := r.log.WithComponent("binance_funding_reader").WithFields(logger.Fields{"symbol": symbol})

	// The closer is scoped to this connection so it exits with the read
	// loop instead of piling up across reconnects.
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-connCtx.Done()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.WithError(err).Warn("read failed, reconnecting")
			}
			return
		}

		msg, ok := r.parse(data)
		if !ok {
			continue
		}

		logger.IncrementFundingRead(len(data))
		r.channels.SendFunding(ctx, msg)
	}
}

func (r *FundingReader) parse(data []byte) (models.RawFundingMessage, bool) {
	var payload binanceMarkPricePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		r.log.WithComponent("binance_funding_reader").WithError(err).Debug("failed to parse markPrice payload")
		return models.RawFundingMessage{}, false
	}
	if payload.Symbol == "" {
		return models.RawFundingMessage{}, false
	}

	rate, err := parseFloat(payload.FundingRate)
	if err != nil {
		r.log.WithComponent("binance_funding_reader").WithError(err).Debug("invalid funding rate")
		return models.RawFundingMessage{}, false
	}
	mark, err := parseFloat(payload.MarkPrice)
	if err != nil {
		r.log.WithComponent("binance_funding_reader").WithError(err).Debug("invalid mark price")
		return models.RawFundingMessage{}, false
	}

	return models.RawFundingMessage{
		Symbol:      strings.ToLower(payload.Symbol),
		FundingRate: rate,
		MarkPrice:   mark,
		EventTime:   time.UnixMilli(payload.EventTime),
	}, true
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
