package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang-portfolio-predictor/internal/entity"
	"golang-portfolio-predictor/internal/predictor/config"
	"golang-portfolio-predictor/internal/predictor/dto"
	"golang-portfolio-predictor/internal/predictor/repository"
	"golang-portfolio-predictor/pkg/logger"
	"golang-portfolio-predictor/pkg/telegram"
	"golang-portfolio-predictor/pkg/utils"
)

// ErrEvaluationDataUnavailable means the close price for a matured horizon is
// not available yet. The horizon stays ungraded and is retried on a later
// pass.
var ErrEvaluationDataUnavailable = errors.New("actual close price not yet available")

// EvaluationService grades matured predictions against observed closes and
// serves aggregate accuracy statistics.
type EvaluationService interface {
	EvaluatePending(ctx context.Context) (*dto.EvaluationSummary, error)
	GetAccuracyStats(ctx context.Context, userID int64, symbol string) (*dto.AccuracyStatsResponse, error)
	GetEnhancedAccuracyStats(ctx context.Context, userID int64, symbol string) (*dto.EnhancedAccuracyStatsResponse, error)
}

// NewEvaluationService creates a new evaluation service. The notifier is
// optional and may be nil.
func NewEvaluationService(
	cfg *config.Config,
	log *logger.Logger,
	predictionRepo repository.PredictionRepository,
	marketData repository.MarketDataRepository,
	notifier telegram.Notifier,
) EvaluationService {
	return &evaluationService{
		cfg:            cfg,
		log:            log,
		predictionRepo: predictionRepo,
		marketData:     marketData,
		notifier:       notifier,
	}
}

type evaluationService struct {
	cfg            *config.Config
	log            *logger.Logger
	predictionRepo repository.PredictionRepository
	marketData     repository.MarketDataRepository
	notifier       telegram.Notifier
}

// EvaluatePending walks all three horizons and grades every matured,
// unevaluated block for which a close price is available. Failures are
// per-horizon and never abort the pass; evaluation has no interactive caller
// waiting on it.
func (s *evaluationService) EvaluatePending(ctx context.Context) (*dto.EvaluationSummary, error) {
	asOf := utils.MarketDay(utils.TimeNowMarket())
	summary := &dto.EvaluationSummary{}

	for _, horizon := range entity.AllHorizons {
		predictions, err := s.predictionRepo.FindMaturedUnevaluated(ctx, horizon, asOf)
		if err != nil {
			s.log.Error("Failed to list matured predictions", logger.ErrorField(err), logger.StringField("horizon", string(horizon)))
			summary.Failed++
			continue
		}

		for i := range predictions {
			if err := s.evaluateHorizon(ctx, &predictions[i], horizon); err != nil {
				if errors.Is(err, ErrEvaluationDataUnavailable) {
					summary.Deferred++
					continue
				}
				s.log.Error("Failed to evaluate prediction",
					logger.ErrorField(err),
					logger.Field("prediction_id", predictions[i].ID),
					logger.StringField("horizon", string(horizon)),
				)
				summary.Failed++
				continue
			}
			summary.Graded++
		}
	}

	s.log.Info("Evaluation pass completed",
		logger.IntField("graded", summary.Graded),
		logger.IntField("deferred", summary.Deferred),
		logger.IntField("failed", summary.Failed),
	)

	if s.notifier != nil && summary.Graded > 0 {
		if err := s.notifier.SendMessage(telegram.FormatEvaluationSummary(asOf, summary)); err != nil {
			s.log.Warn("Failed to send evaluation summary notification", logger.ErrorField(err))
		}
	}

	return summary, nil
}

// evaluateHorizon grades one horizon of one prediction. Grading a block whose
// actual price is already set is a no-op; the repository re-checks the same
// condition inside the update.
func (s *evaluationService) evaluateHorizon(ctx context.Context, prediction *entity.StockPrediction, horizon entity.Horizon) error {
	block := prediction.HorizonBlock(horizon)
	if block == nil {
		return fmt.Errorf("unknown horizon %q", horizon)
	}
	if block.Evaluated() {
		return nil
	}

	targetDate := prediction.TargetDate(horizon)
	actualPrice, err := s.marketData.GetDailyClose(ctx, prediction.Symbol, targetDate)
	if err != nil {
		if errors.Is(err, repository.ErrPriceUnavailable) {
			s.log.Debug("Close price not yet available, deferring",
				logger.StringField("symbol", prediction.Symbol),
				logger.StringField("target_date", targetDate.Format("2006-01-02")),
			)
			return ErrEvaluationDataUnavailable
		}
		return err
	}

	eval := s.grade(prediction, block, actualPrice)
	return s.predictionRepo.RecordEvaluation(ctx, prediction.ID, horizon, eval)
}

// grade applies the accuracy rubric to one horizon block. A block the model
// left without a price forecast grades as inaccurate with a zero weighted
// score; its confidence was already forced to zero at generation time.
func (s *evaluationService) grade(prediction *entity.StockPrediction, block *entity.HorizonPrediction, actualPrice float64) repository.HorizonEvaluation {
	threshold := prediction.PriceThreshold
	if threshold <= 0 {
		threshold = s.cfg.Prediction.PriceThresholdPercent
	}

	priceAccurate := false
	if block.PredictedPrice != nil && actualPrice != 0 {
		relativeError := math.Abs(actualPrice-*block.PredictedPrice) / actualPrice
		priceAccurate = relativeError <= threshold/100
	}

	actualDirection := ObservedDirection(prediction.CurrentPrice, actualPrice, s.cfg.Prediction.SidewaysBandPercent)
	directionAccurate := block.Direction != nil && *block.Direction == actualDirection

	accurate := priceAccurate && directionAccurate

	weightedScore := 0.0
	if accurate {
		weightedScore = float64(block.Confidence) / 100
	}

	return repository.HorizonEvaluation{
		ActualPrice:       actualPrice,
		PriceAccurate:     priceAccurate,
		DirectionAccurate: directionAccurate,
		Accurate:          accurate,
		WeightedScore:     weightedScore,
	}
}

// ObservedDirection maps a realized price move to a direction label, with a
// dead-band of bandPercent around zero counting as sideways.
func ObservedDirection(currentPrice, actualPrice, bandPercent float64) entity.Direction {
	if currentPrice == 0 {
		return entity.DirectionSideways
	}
	changePct := 100 * (actualPrice - currentPrice) / currentPrice
	if math.Abs(changePct) <= bandPercent {
		return entity.DirectionSideways
	}
	if changePct > 0 {
		return entity.DirectionUp
	}
	return entity.DirectionDown
}

// GetAccuracyStats returns per-horizon accuracy aggregates, optionally
// filtered by symbol.
func (s *evaluationService) GetAccuracyStats(ctx context.Context, userID int64, symbol string) (*dto.AccuracyStatsResponse, error) {
	return s.predictionRepo.GetAccuracyStats(ctx, userID, symbol)
}

// GetEnhancedAccuracyStats adds confidence calibration and per-symbol
// extremes on top of the basic aggregates.
func (s *evaluationService) GetEnhancedAccuracyStats(ctx context.Context, userID int64, symbol string) (*dto.EnhancedAccuracyStatsResponse, error) {
	stats, err := s.predictionRepo.GetAccuracyStats(ctx, userID, symbol)
	if err != nil {
		return nil, err
	}

	avgWhenRight, avgWhenWrong, err := s.predictionRepo.GetConfidenceCalibration(ctx, userID, symbol)
	if err != nil {
		return nil, err
	}

	resp := &dto.EnhancedAccuracyStatsResponse{
		AccuracyStatsResponse:  *stats,
		AvgConfidenceWhenRight: avgWhenRight,
		AvgConfidenceWhenWrong: avgWhenWrong,
	}

	if symbol == "" {
		symbols, err := s.predictionRepo.GetSymbolAccuracy(ctx, userID)
		if err != nil {
			return nil, err
		}
		if len(symbols) > 0 {
			best := symbols[0]
			worst := symbols[len(symbols)-1]
			resp.BestSymbol = &best
			resp.WorstSymbol = &worst
		}
	}

	return resp, nil
}
