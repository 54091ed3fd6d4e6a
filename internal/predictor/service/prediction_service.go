package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang-portfolio-predictor/internal/entity"
	"golang-portfolio-predictor/internal/predictor/config"
	"golang-portfolio-predictor/internal/predictor/dto"
	"golang-portfolio-predictor/internal/predictor/repository"
	"golang-portfolio-predictor/internal/predictor/technical"
	"golang-portfolio-predictor/pkg/logger"
	"golang-portfolio-predictor/pkg/utils"

	"gorm.io/datatypes"
)

var (
	// ErrMarketClosed means generation was refused for a non-trading day.
	// It is an expected state, not a failure, and must not be retried.
	ErrMarketClosed = errors.New("market is closed, predictions are not generated on non-trading days")

	// ErrGenerationFailed means the reasoning model call errored or
	// returned unparseable output. The user may retry explicitly.
	ErrGenerationFailed = errors.New("prediction generation failed")
)

// PredictionService generates, fetches and deletes multi-horizon predictions.
// Generation is idempotent per (user, symbol, trading day).
type PredictionService interface {
	GetTodayPrediction(ctx context.Context, userID int64, symbol string) (*dto.TodayPredictionResponse, error)
	GeneratePrediction(ctx context.Context, userID int64, symbol string) (*entity.StockPrediction, bool, error)
	DeletePrediction(ctx context.Context, userID int64, id int64) error
}

// NewPredictionService creates a new prediction service.
func NewPredictionService(
	cfg *config.Config,
	log *logger.Logger,
	predictionRepo repository.PredictionRepository,
	marketData repository.MarketDataRepository,
	aiRepo repository.AIRepository,
	calendar MarketCalendar,
) PredictionService {
	return &predictionService{
		cfg:            cfg,
		log:            log,
		predictionRepo: predictionRepo,
		marketData:     marketData,
		aiRepo:         aiRepo,
		calendar:       calendar,
	}
}

type predictionService struct {
	cfg            *config.Config
	log            *logger.Logger
	predictionRepo repository.PredictionRepository
	marketData     repository.MarketDataRepository
	aiRepo         repository.AIRepository
	calendar       MarketCalendar
}

// GetTodayPrediction returns today's prediction if one exists. On
// non-trading days it returns the most recent prediction instead, flagged
// with the market status.
func (s *predictionService) GetTodayPrediction(ctx context.Context, userID int64, symbol string) (*dto.TodayPredictionResponse, error) {
	now := utils.TimeNowMarket()
	today := utils.MarketDay(now)

	if !s.calendar.IsTradingDay(now) {
		mostRecent, err := s.predictionRepo.FindMostRecent(ctx, userID, symbol)
		if err != nil {
			return nil, err
		}
		return &dto.TodayPredictionResponse{
			HasPrediction:        false,
			IsWeekend:            true,
			MostRecentPrediction: mostRecent,
			MarketStatus:         "closed",
		}, nil
	}

	prediction, err := s.predictionRepo.FindByUserSymbolDay(ctx, userID, symbol, today)
	if err != nil {
		return nil, err
	}

	return &dto.TodayPredictionResponse{
		HasPrediction: prediction != nil,
		Prediction:    prediction,
		MarketStatus:  "open",
	}, nil
}

// GeneratePrediction produces and stores today's prediction for the symbol.
// The boolean result reports whether this call created the stored record;
// when a concurrent request won the insert race, the existing record is
// returned with created=false. The database uniqueness constraint is the
// arbiter; the lookup before generation only optimizes the common case.
func (s *predictionService) GeneratePrediction(ctx context.Context, userID int64, symbol string) (*entity.StockPrediction, bool, error) {
	now := utils.TimeNowMarket()
	today := utils.MarketDay(now)

	if !s.calendar.IsTradingDay(now) {
		return nil, false, ErrMarketClosed
	}

	existing, err := s.predictionRepo.FindByUserSymbolDay(ctx, userID, symbol, today)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	series, marketPrice, err := s.marketData.GetIntradaySeries(ctx, symbol)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	snapshot, err := technical.Compute(series)
	if err != nil {
		// Empty series; surfaced as-is so the boundary can report an
		// unavailable state rather than a generation failure.
		return nil, false, err
	}

	result, err := s.aiRepo.PredictMultiHorizon(ctx, &repository.PredictionInput{
		Symbol:       symbol,
		CurrentPrice: marketPrice,
		Series:       series,
		Indicators:   snapshot,
	})
	if err != nil {
		s.log.Error("Reasoning model call failed", logger.ErrorField(err), logger.StringField("symbol", symbol))
		return nil, false, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	candidate := s.buildRecord(userID, symbol, today, now, marketPrice, snapshot, len(series), result)

	if err := s.predictionRepo.Create(ctx, candidate); err != nil {
		if errors.Is(err, repository.ErrDuplicatePrediction) {
			// A concurrent request inserted first; converge on its row.
			winner, fetchErr := s.predictionRepo.FindByUserSymbolDay(ctx, userID, symbol, today)
			if fetchErr != nil {
				return nil, false, fetchErr
			}
			if winner == nil {
				return nil, false, fmt.Errorf("duplicate reported but existing prediction not found for %s", symbol)
			}
			return winner, false, nil
		}
		return nil, false, err
	}

	s.log.Info("Prediction generated",
		logger.StringField("symbol", symbol),
		logger.Field("user_id", userID),
		logger.Float64Field("current_price", marketPrice),
	)
	return candidate, true, nil
}

// DeletePrediction removes a prediction owned by the user.
func (s *predictionService) DeletePrediction(ctx context.Context, userID int64, id int64) error {
	return s.predictionRepo.Delete(ctx, id, userID)
}

// buildRecord normalizes the model output into a candidate row. Horizons the
// model omitted keep a nil price and direction with zero confidence.
func (s *predictionService) buildRecord(
	userID int64,
	symbol string,
	day time.Time,
	generatedAt time.Time,
	marketPrice float64,
	snapshot *technical.Snapshot,
	sampleCount int,
	result *dto.MultiHorizonPredictionResult,
) *entity.StockPrediction {
	record := &entity.StockPrediction{
		UserID:          userID,
		Symbol:          symbol,
		PredictionDate:  day,
		CurrentPrice:    marketPrice,
		RSI:             snapshot.RSI14,
		Trend:           trendLabel(result.Forecast.Trend, snapshot.TrendSlope),
		Recommendation:  recommendationLabel(result.Forecast.Recommendation, snapshot.RSI14),
		DataLimitations: sampleCount < s.cfg.Prediction.MinIntradaySamples,
		PriceThreshold:  s.cfg.Prediction.PriceThresholdPercent,
		ModelOutput:     datatypes.JSON(result.RawOutput),
		GeneratedAt:     generatedAt,
	}

	for _, horizon := range entity.AllHorizons {
		*record.HorizonBlock(horizon) = normalizeHorizon(result.Forecast.Outcome(horizon))
	}
	return record
}

// normalizeHorizon converts one model outcome into the stored block. A nil
// or priceless outcome never carries a fabricated confidence.
func normalizeHorizon(outcome *dto.HorizonOutcome) entity.HorizonPrediction {
	if outcome == nil || outcome.PredictedPrice == nil {
		var block entity.HorizonPrediction
		if outcome != nil {
			block.Reasoning = outcome.Reasoning
		}
		return block
	}

	confidence := outcome.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 100 {
		confidence = 100
	}

	block := entity.HorizonPrediction{
		PredictedPrice: outcome.PredictedPrice,
		Confidence:     confidence,
		Reasoning:      outcome.Reasoning,
	}
	switch entity.Direction(outcome.Direction) {
	case entity.DirectionUp, entity.DirectionDown, entity.DirectionSideways:
		direction := entity.Direction(outcome.Direction)
		block.Direction = &direction
	}
	return block
}

func trendLabel(modelTrend string, slope float64) string {
	switch modelTrend {
	case "bullish", "bearish", "neutral":
		return modelTrend
	}
	if slope > 0 {
		return "bullish"
	}
	if slope < 0 {
		return "bearish"
	}
	return "neutral"
}

func recommendationLabel(modelRecommendation string, rsi float64) string {
	switch modelRecommendation {
	case "buy", "hold", "sell":
		return modelRecommendation
	}
	if rsi < 30 {
		return "buy"
	}
	if rsi > 70 {
		return "sell"
	}
	return "hold"
}
