package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Cryptomon CryptomonConfig `yaml:"cryptomon"`
	Server    ServerConfig    `yaml:"server"`
	Channels  ChannelsConfig  `yaml:"channels"`
	Source    SourceConfig    `yaml:"source"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type CryptomonConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type ChannelsConfig struct {
	RawBuffer int `yaml:"raw_buffer"`
}

type SourceConfig struct {
	Binance BinanceSourceConfig `yaml:"binance"`
}

type BinanceSourceConfig struct {
	Future BinanceFutureConfig `yaml:"future"`
}

type BinanceFutureConfig struct {
	URL            string        `yaml:"url"`
	Symbols        []string      `yaml:"symbols"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	Funding        StreamConfig  `yaml:"funding"`
	Trades         StreamConfig  `yaml:"trades"`
	Liquidations   StreamConfig  `yaml:"liquidations"`
}

type StreamConfig struct {
	Enabled bool `yaml:"enabled"`
}

type AlertsConfig struct {
	FundingPeriodsPerDay int     `yaml:"funding_periods_per_day"`
	LiquidationMinUSD    float64 `yaml:"liquidation_min_usd"`
	TradeMinUSD          float64 `yaml:"trade_min_usd"`
	WhaleMinUSD          float64 `yaml:"whale_min_usd"`
	LiquidationHistory   int     `yaml:"liquidation_history"`
	TradeHistory         int     `yaml:"trade_history"`
	WhaleHistory         int     `yaml:"whale_history"`
}

type LoggingConfig struct {
	Level         string `yaml:"level"`
	Format        string `yaml:"format"`
	Output        string `yaml:"output"`
	MaxAge        int    `yaml:"max_age"`
	CloudWatch    bool   `yaml:"cloudwatch"`
	DashboardName string `yaml:"dashboard_name"`
}

// DefaultSymbols is the watch list used when the configuration does not name
// any symbols.
var DefaultSymbols = []string{"btcusdt", "ethusdt", "solusdt", "bnbusdt", "dogeusdt", "wifusdt"}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&config)

	// Environment overrides take precedence over the file.
	if v := os.Getenv("SERVER_HOST"); v != "" {
		config.Server.Host = strings.TrimSpace(v)
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(strings.TrimSpace(v), "%d", &port); err == nil && port > 0 {
			config.Server.Port = port
		}
	}
	if v := os.Getenv("BINANCE_FUTURE_URL"); v != "" {
		config.Source.Binance.Future.URL = strings.TrimSpace(v)
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		parts := strings.Split(v, ",")
		symbols := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := strings.ToLower(strings.TrimSpace(p)); s != "" {
				symbols = append(symbols, s)
			}
		}
		if len(symbols) > 0 {
			config.Source.Binance.Future.Symbols = symbols
		}
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8765
	}
	if cfg.Channels.RawBuffer == 0 {
		cfg.Channels.RawBuffer = 1000
	}
	if cfg.Source.Binance.Future.URL == "" {
		cfg.Source.Binance.Future.URL = "wss://fstream.binance.com/ws"
	}
	if len(cfg.Source.Binance.Future.Symbols) == 0 {
		cfg.Source.Binance.Future.Symbols = append([]string(nil), DefaultSymbols...)
	}
	for i, s := range cfg.Source.Binance.Future.Symbols {
		cfg.Source.Binance.Future.Symbols[i] = strings.ToLower(strings.TrimSpace(s))
	}
	if cfg.Source.Binance.Future.ReconnectDelay == 0 {
		cfg.Source.Binance.Future.ReconnectDelay = 5 * time.Second
	}
	if cfg.Alerts.FundingPeriodsPerDay == 0 {
		cfg.Alerts.FundingPeriodsPerDay = 3
	}
	if cfg.Alerts.LiquidationMinUSD == 0 {
		cfg.Alerts.LiquidationMinUSD = 5000
	}
	if cfg.Alerts.TradeMinUSD == 0 {
		cfg.Alerts.TradeMinUSD = 15000
	}
	if cfg.Alerts.WhaleMinUSD == 0 {
		cfg.Alerts.WhaleMinUSD = 100000
	}
	if cfg.Alerts.LiquidationHistory == 0 {
		cfg.Alerts.LiquidationHistory = 25
	}
	if cfg.Alerts.TradeHistory == 0 {
		cfg.Alerts.TradeHistory = 30
	}
	if cfg.Alerts.WhaleHistory == 0 {
		cfg.Alerts.WhaleHistory = 15
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Cryptomon.Name == "" {
		return fmt.Errorf("cryptomon.name is required")
	}

	if cfg.Cryptomon.Version == "" {
		return fmt.Errorf("cryptomon.version is required")
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	if cfg.Channels.RawBuffer <= 0 {
		return fmt.Errorf("channels.raw_buffer must be greater than 0")
	}

	if len(cfg.Source.Binance.Future.Symbols) == 0 {
		return fmt.Errorf("source.binance.future.symbols must not be empty")
	}

	if cfg.Source.Binance.Future.ReconnectDelay <= 0 {
		return fmt.Errorf("source.binance.future.reconnect_delay must be greater than 0")
	}

	if cfg.Alerts.WhaleMinUSD < cfg.Alerts.TradeMinUSD {
		return fmt.Errorf("alerts.whale_min_usd must not be below alerts.trade_min_usd")
	}

	if cfg.Alerts.LiquidationHistory <= 0 || cfg.Alerts.TradeHistory <= 0 || cfg.Alerts.WhaleHistory <= 0 {
		return fmt.Errorf("alerts history sizes must be greater than 0")
	}

	return nil
}
