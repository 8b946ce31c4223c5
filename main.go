package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cryptomon/config"
	"cryptomon/internal/channel"
	"cryptomon/logger"
	"cryptomon/processor"
	"cryptomon/reader/binance"
	"cryptomon/server"
	"cryptomon/store"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(config.ResolveConfigPath(*configPath))
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Cryptomon.Name,
		"version": cfg.Cryptomon.Version,
	}).Info("starting cryptomon")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Logging.CloudWatch {
		logger.InitCloudWatch("", "CryptoMon", cfg.Logging.DashboardName)
	}

	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	channels := channel.NewChannels(cfg.Channels.RawBuffer)
	channels.StartMetricsReporting(ctx, 30*time.Second)

	history := store.NewHistory(
		cfg.Source.Binance.Future.Symbols,
		cfg.Alerts.LiquidationHistory,
		cfg.Alerts.TradeHistory,
		cfg.Alerts.WhaleHistory,
	)

	hub := server.NewHub(history)
	srv := server.NewServer(cfg, hub)

	alertProcessor := processor.NewAlertProcessor(cfg, channels, history, hub)
	if err := alertProcessor.Start(ctx); err != nil {
		log.WithError(err).Error("failed to start alert processor")
		os.Exit(1)
	}

	fundingReader := binance.NewFundingReader(cfg, channels)
	tradeReader := binance.NewTradeReader(cfg, channels)
	liquidationReader := binance.NewLiquidationReader(cfg, channels)

	var wg sync.WaitGroup

	if cfg.Source.Binance.Future.Funding.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fundingReader.Start(ctx); err != nil {
				log.WithError(err).Warn("funding reader failed to start")
			}
		}()
	}

	if cfg.Source.Binance.Future.Trades.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := tradeReader.Start(ctx); err != nil {
				log.WithError(err).Warn("trade reader failed to start")
			}
		}()
	}

	if cfg.Source.Binance.Future.Liquidations.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := liquidationReader.Start(ctx); err != nil {
				log.WithError(err).Warn("liquidation reader failed to start")
			}
		}()
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Run(ctx)
	}()

	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			log.WithError(err).Error("dashboard server failed")
		}
	}

	log.Info("starting graceful shutdown")
	cancel()

	log.Info("stopping readers")
	fundingReader.Stop()
	tradeReader.Stop()
	liquidationReader.Stop()

	log.Info("stopping alert processor")
	alertProcessor.Stop()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timeout exceeded")
	}

	log.Info("cryptomon stopped")
}
