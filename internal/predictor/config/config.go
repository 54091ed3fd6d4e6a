package config

import (
	"golang-portfolio-predictor/pkg/config"
)

// Gemini holds the configuration for the Gemini API.
type Gemini struct {
	APIKey              string `mapstructure:"api_key"`
	BaseURL             string `mapstructure:"base_url"`
	Model               string `mapstructure:"model"`
	MaxRequestPerMinute int    `mapstructure:"max_request_per_minute"`
	MaxTokenPerMinute   int    `mapstructure:"max_token_per_minute"`
}

// MarketData holds the configuration for the market data provider.
type MarketData struct {
	BaseURL             string `mapstructure:"base_url"`
	MaxRequestPerMinute int    `mapstructure:"max_request_per_minute"`
	IntradayCacheTTL    string `mapstructure:"intraday_cache_ttl"`
	CloseCacheTTL       string `mapstructure:"close_cache_ttl"`
}

// Prediction holds generation and evaluation tuning.
type Prediction struct {
	// PriceThresholdPercent is the allowed relative error for a price
	// forecast to count as accurate.
	PriceThresholdPercent float64 `mapstructure:"price_threshold_percent"`
	// SidewaysBandPercent is the dead-band around zero movement inside
	// which the observed direction counts as sideways.
	SidewaysBandPercent float64 `mapstructure:"sideways_band_percent"`
	// EvaluationSchedule is a cron expression for the evaluation pass.
	EvaluationSchedule string `mapstructure:"evaluation_schedule"`
	// MinIntradaySamples is the sample count below which longer-horizon
	// forecasts are flagged as data-limited.
	MinIntradaySamples int `mapstructure:"min_intraday_samples"`
}

// Telegram holds configuration for the evaluation summary notifier.
type Telegram struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

// Config holds the full configuration for the prediction service.
type Config struct {
	App        config.App      `mapstructure:"app"`
	Logger     config.Logger   `mapstructure:"logger"`
	Database   config.Database `mapstructure:"database"`
	Redis      config.Redis    `mapstructure:"redis"`
	API        config.API      `mapstructure:"api"`
	Gemini     Gemini          `mapstructure:"gemini"`
	MarketData MarketData      `mapstructure:"market_data"`
	Prediction Prediction      `mapstructure:"prediction"`
	Telegram   Telegram        `mapstructure:"telegram"`
}

// Load loads the prediction service configuration from the given path.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.Prediction.PriceThresholdPercent == 0 {
		cfg.Prediction.PriceThresholdPercent = 5.0
	}
	if cfg.Prediction.SidewaysBandPercent == 0 {
		cfg.Prediction.SidewaysBandPercent = 0.5
	}
	if cfg.Prediction.MinIntradaySamples == 0 {
		cfg.Prediction.MinIntradaySamples = 200
	}
	return &cfg, nil
}
