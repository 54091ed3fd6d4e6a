package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang-portfolio-predictor/internal/predictor/config"
	"golang-portfolio-predictor/internal/predictor/dto"
	"golang-portfolio-predictor/pkg/common"
	"golang-portfolio-predictor/pkg/logger"

	gocache "github.com/patrickmn/go-cache"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// ErrPriceUnavailable is returned when the provider has no close price for
// the requested date, for example a market holiday.
var ErrPriceUnavailable = fmt.Errorf("close price unavailable for requested date")

// MarketDataRepository fetches price data from the external quote provider.
type MarketDataRepository interface {
	GetIntradaySeries(ctx context.Context, symbol string) ([]dto.PricePoint, float64, error)
	GetDailyClose(ctx context.Context, symbol string, date time.Time) (float64, error)
}

type marketDataRepository struct {
	cfg            *config.Config
	log            *logger.Logger
	httpClient     *http.Client
	requestLimiter *rate.Limiter
	// intradayCache memoizes series per symbol so one logical request does
	// not hit the provider twice.
	intradayCache *gocache.Cache
	redisClient   *goredis.Client
	closeCacheTTL time.Duration
}

// NewMarketDataRepository creates a rate-limited market data repository.
// Intraday series are memoized in-process; daily closes are cached in Redis
// since they are immutable once the session has ended.
func NewMarketDataRepository(cfg *config.Config, log *logger.Logger, redisClient *goredis.Client) (MarketDataRepository, error) {
	secondsPerRequest := time.Minute / time.Duration(cfg.MarketData.MaxRequestPerMinute)
	requestLimiter := rate.NewLimiter(rate.Every(secondsPerRequest), 1)

	intradayTTL, err := time.ParseDuration(cfg.MarketData.IntradayCacheTTL)
	if err != nil {
		return nil, fmt.Errorf("invalid intraday_cache_ttl: %w", err)
	}
	closeTTL, err := time.ParseDuration(cfg.MarketData.CloseCacheTTL)
	if err != nil {
		return nil, fmt.Errorf("invalid close_cache_ttl: %w", err)
	}

	return &marketDataRepository{
		cfg: cfg,
		log: log,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		requestLimiter: requestLimiter,
		intradayCache:  gocache.New(intradayTTL, 2*intradayTTL),
		redisClient:    redisClient,
		closeCacheTTL:  closeTTL,
	}, nil
}

type intradayResult struct {
	series      []dto.PricePoint
	marketPrice float64
}

// GetIntradaySeries returns the most recent session's five-minute samples and
// the current market price.
func (r *marketDataRepository) GetIntradaySeries(ctx context.Context, symbol string) ([]dto.PricePoint, float64, error) {
	if cached, found := r.intradayCache.Get(symbol); found {
		result := cached.(intradayResult)
		return result.series, result.marketPrice, nil
	}

	url := fmt.Sprintf("%s/v8/finance/chart/%s?interval=5m&range=1d", r.cfg.MarketData.BaseURL, symbol)
	body, err := r.sendRequest(ctx, url)
	if err != nil {
		return nil, 0, err
	}

	var response dto.ChartResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal chart response: %w", err)
	}
	if response.Chart.Error != nil {
		return nil, 0, fmt.Errorf("provider error: %s - %s", response.Chart.Error.Code, response.Chart.Error.Description)
	}
	if len(response.Chart.Result) == 0 || len(response.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, 0, fmt.Errorf("empty chart response for %s", symbol)
	}

	result := response.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	var series []dto.PricePoint
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == nil {
			continue
		}
		point := dto.PricePoint{
			Timestamp: time.Unix(ts, 0),
			Price:     *quote.Close[i],
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			point.Volume = *quote.Volume[i]
		}
		series = append(series, point)
	}
	if len(series) == 0 {
		return nil, 0, fmt.Errorf("no usable samples in chart response for %s", symbol)
	}

	marketPrice := result.Meta.RegularMarketPrice
	if marketPrice == 0 {
		marketPrice = series[len(series)-1].Price
	}

	r.intradayCache.Set(symbol, intradayResult{series: series, marketPrice: marketPrice}, gocache.DefaultExpiration)

	r.log.DebugContext(ctx, "Fetched intraday series",
		logger.StringField("symbol", symbol),
		logger.IntField("samples", len(series)),
	)

	return series, marketPrice, nil
}

// GetDailyClose returns the official close for the given calendar date, or
// ErrPriceUnavailable when the provider has no bar for it.
func (r *marketDataRepository) GetDailyClose(ctx context.Context, symbol string, date time.Time) (float64, error) {
	cacheKey := fmt.Sprintf("%s.%s.%s", common.RedisKeyDailyClosePrefix, symbol, date.Format("2006-01-02"))
	if cached, err := r.redisClient.Get(ctx, cacheKey).Float64(); err == nil {
		return cached, nil
	}

	// Fetch a window around the target date; the provider returns daily
	// bars keyed by session open time.
	start := date.AddDate(0, 0, -1)
	end := date.AddDate(0, 0, 1)
	url := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&period1=%d&period2=%d",
		r.cfg.MarketData.BaseURL, symbol, start.Unix(), end.Unix())

	body, err := r.sendRequest(ctx, url)
	if err != nil {
		return 0, err
	}

	var response dto.ChartResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return 0, fmt.Errorf("failed to unmarshal chart response: %w", err)
	}
	if response.Chart.Error != nil || len(response.Chart.Result) == 0 || len(response.Chart.Result[0].Indicators.Quote) == 0 {
		return 0, ErrPriceUnavailable
	}

	result := response.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	target := date.Format("2006-01-02")
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == nil {
			continue
		}
		if time.Unix(ts, 0).UTC().Format("2006-01-02") == target {
			close := *quote.Close[i]
			if err := r.redisClient.Set(ctx, cacheKey, close, r.closeCacheTTL).Err(); err != nil {
				r.log.Warn("Failed to cache daily close", logger.ErrorField(err), logger.StringField("key", cacheKey))
			}
			return close, nil
		}
	}

	return 0, ErrPriceUnavailable
}

func (r *marketDataRepository) sendRequest(ctx context.Context, url string) ([]byte, error) {
	if err := r.requestLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for request limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create new http request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.log.ErrorContext(ctx, "Failed to send request to market data provider", logger.ErrorField(err), logger.StringField("url", url))
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		r.log.ErrorContext(ctx, "Received non-OK response from market data provider",
			logger.IntField("status_code", resp.StatusCode),
			logger.StringField("url", url),
		)
		return nil, fmt.Errorf("received non-OK response from market data provider: %d - %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}
