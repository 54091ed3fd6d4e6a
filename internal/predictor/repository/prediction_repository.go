package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang-portfolio-predictor/internal/entity"
	"golang-portfolio-predictor/internal/predictor/dto"

	"gorm.io/gorm"
)

// ErrDuplicatePrediction is returned by Create when a prediction already
// exists for the same (user, symbol, day). Callers treat it as the signal to
// fetch the existing row, not as a failure.
var ErrDuplicatePrediction = errors.New("prediction already exists for this user, symbol and day")

// HorizonEvaluation carries the graded fields written for one horizon.
type HorizonEvaluation struct {
	ActualPrice       float64
	PriceAccurate     bool
	DirectionAccurate bool
	Accurate          bool
	WeightedScore     float64
}

// PredictionRepository defines the persistence surface for stock predictions.
type PredictionRepository interface {
	Create(ctx context.Context, prediction *entity.StockPrediction) error
	FindByID(ctx context.Context, id int64) (*entity.StockPrediction, error)
	FindByUserSymbolDay(ctx context.Context, userID int64, symbol string, day time.Time) (*entity.StockPrediction, error)
	FindMostRecent(ctx context.Context, userID int64, symbol string) (*entity.StockPrediction, error)
	FindMaturedUnevaluated(ctx context.Context, horizon entity.Horizon, asOf time.Time) ([]entity.StockPrediction, error)
	RecordEvaluation(ctx context.Context, id int64, horizon entity.Horizon, eval HorizonEvaluation) error
	Delete(ctx context.Context, id int64, userID int64) error
	GetAccuracyStats(ctx context.Context, userID int64, symbol string) (*dto.AccuracyStatsResponse, error)
	GetConfidenceCalibration(ctx context.Context, userID int64, symbol string) (avgWhenRight, avgWhenWrong float64, err error)
	GetSymbolAccuracy(ctx context.Context, userID int64) ([]dto.SymbolAccuracy, error)
}

// NewPredictionRepository creates a new GORM-based prediction repository.
func NewPredictionRepository(db *gorm.DB) PredictionRepository {
	return &predictionRepository{db: db}
}

type predictionRepository struct {
	db *gorm.DB
}

// Create inserts a new prediction. The unique index on
// (user_id, symbol, prediction_date) is the arbiter under concurrent inserts;
// a duplicate key violation is translated to ErrDuplicatePrediction.
func (r *predictionRepository) Create(ctx context.Context, prediction *entity.StockPrediction) error {
	if err := r.db.WithContext(ctx).Create(prediction).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicatePrediction
		}
		return err
	}
	return nil
}

// FindByID retrieves a prediction by its ID.
func (r *predictionRepository) FindByID(ctx context.Context, id int64) (*entity.StockPrediction, error) {
	var prediction entity.StockPrediction
	if err := r.db.WithContext(ctx).First(&prediction, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &prediction, nil
}

// FindByUserSymbolDay retrieves the prediction for one calendar trading day,
// or nil when none exists.
func (r *predictionRepository) FindByUserSymbolDay(ctx context.Context, userID int64, symbol string, day time.Time) (*entity.StockPrediction, error) {
	var prediction entity.StockPrediction
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND symbol = ? AND prediction_date = ?", userID, symbol, day.Format("2006-01-02")).
		First(&prediction).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &prediction, nil
}

// FindMostRecent retrieves the latest prediction for a symbol, used as the
// weekend fallback display.
func (r *predictionRepository) FindMostRecent(ctx context.Context, userID int64, symbol string) (*entity.StockPrediction, error) {
	var prediction entity.StockPrediction
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND symbol = ?", userID, symbol).
		Order("prediction_date DESC").
		First(&prediction).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &prediction, nil
}

// FindMaturedUnevaluated returns predictions whose horizon has elapsed as of
// asOf and whose horizon block has not been graded yet.
func (r *predictionRepository) FindMaturedUnevaluated(ctx context.Context, horizon entity.Horizon, asOf time.Time) ([]entity.StockPrediction, error) {
	prefix := horizon.ColumnPrefix()
	if prefix == "" {
		return nil, fmt.Errorf("unknown horizon %q", horizon)
	}

	cutoff := asOf.AddDate(0, 0, -horizon.OffsetDays())

	var predictions []entity.StockPrediction
	err := r.db.WithContext(ctx).
		Where(fmt.Sprintf("prediction_date <= ? AND %sactual_price IS NULL", prefix), cutoff.Format("2006-01-02")).
		Order("prediction_date ASC").
		Find(&predictions).Error
	if err != nil {
		return nil, err
	}
	return predictions, nil
}

// RecordEvaluation writes the graded fields for exactly one horizon. Only
// that horizon's columns and last_evaluated_at are touched, so passes grading
// different horizons of the same row never overwrite each other. The
// actual_price IS NULL guard makes re-grading a no-op.
func (r *predictionRepository) RecordEvaluation(ctx context.Context, id int64, horizon entity.Horizon, eval HorizonEvaluation) error {
	prefix := horizon.ColumnPrefix()
	if prefix == "" {
		return fmt.Errorf("unknown horizon %q", horizon)
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		prefix + "actual_price":       eval.ActualPrice,
		prefix + "price_accurate":     eval.PriceAccurate,
		prefix + "direction_accurate": eval.DirectionAccurate,
		prefix + "accurate":           eval.Accurate,
		prefix + "weighted_score":     eval.WeightedScore,
		"last_evaluated_at":           now,
		"updated_at":                  now,
	}

	return r.db.WithContext(ctx).
		Model(&entity.StockPrediction{}).
		Where(fmt.Sprintf("id = ? AND %sactual_price IS NULL", prefix), id).
		Updates(updates).Error
}

// Delete removes a prediction owned by the user.
func (r *predictionRepository) Delete(ctx context.Context, id int64, userID int64) error {
	return r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&entity.StockPrediction{}).Error
}

type horizonAggregates struct {
	Evaluated         int64
	PriceAccurate     int64
	DirectionAccurate int64
	Accurate          int64
	AvgWeightedScore  float64
	AvgConfidence     float64
}

// GetAccuracyStats aggregates evaluation results per horizon, optionally
// filtered by symbol. Symbol may be empty.
func (r *predictionRepository) GetAccuracyStats(ctx context.Context, userID int64, symbol string) (*dto.AccuracyStatsResponse, error) {
	base := r.db.WithContext(ctx).Model(&entity.StockPrediction{}).Where("user_id = ?", userID)
	if symbol != "" {
		base = base.Where("symbol = ?", symbol)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}

	resp := &dto.AccuracyStatsResponse{
		Symbol:           symbol,
		TotalPredictions: total,
	}

	for _, horizon := range entity.AllHorizons {
		prefix := horizon.ColumnPrefix()
		var agg horizonAggregates
		err := base.Session(&gorm.Session{}).
			Select(fmt.Sprintf(`
				COUNT(*) FILTER (WHERE %[1]sactual_price IS NOT NULL) AS evaluated,
				COUNT(*) FILTER (WHERE %[1]sprice_accurate) AS price_accurate,
				COUNT(*) FILTER (WHERE %[1]sdirection_accurate) AS direction_accurate,
				COUNT(*) FILTER (WHERE %[1]saccurate) AS accurate,
				COALESCE(AVG(%[1]sweighted_score) FILTER (WHERE %[1]sactual_price IS NOT NULL), 0) AS avg_weighted_score`, prefix)).
			Scan(&agg).Error
		if err != nil {
			return nil, err
		}

		stats := dto.HorizonAccuracy{
			Horizon:           horizon,
			Evaluated:         agg.Evaluated,
			PriceAccurate:     agg.PriceAccurate,
			DirectionAccurate: agg.DirectionAccurate,
			Accurate:          agg.Accurate,
			AvgWeightedScore:  agg.AvgWeightedScore,
		}
		if agg.Evaluated > 0 {
			stats.PriceAccuracyPct = 100 * float64(agg.PriceAccurate) / float64(agg.Evaluated)
			stats.DirectionAccPct = 100 * float64(agg.DirectionAccurate) / float64(agg.Evaluated)
			stats.OverallAccuracyPct = 100 * float64(agg.Accurate) / float64(agg.Evaluated)
		}
		resp.Horizons = append(resp.Horizons, stats)
	}

	return resp, nil
}

// GetConfidenceCalibration returns the average stated confidence of accurate
// versus inaccurate one-day forecasts, a cheap calibration signal.
func (r *predictionRepository) GetConfidenceCalibration(ctx context.Context, userID int64, symbol string) (float64, float64, error) {
	base := r.db.WithContext(ctx).Model(&entity.StockPrediction{}).
		Where("user_id = ? AND one_day_actual_price IS NOT NULL", userID)
	if symbol != "" {
		base = base.Where("symbol = ?", symbol)
	}

	var result struct {
		AvgWhenRight float64
		AvgWhenWrong float64
	}
	err := base.
		Select(`
			COALESCE(AVG(one_day_confidence) FILTER (WHERE one_day_accurate), 0) AS avg_when_right,
			COALESCE(AVG(one_day_confidence) FILTER (WHERE NOT one_day_accurate), 0) AS avg_when_wrong`).
		Scan(&result).Error
	if err != nil {
		return 0, 0, err
	}
	return result.AvgWhenRight, result.AvgWhenWrong, nil
}

// GetSymbolAccuracy returns per-symbol overall accuracy over evaluated
// one-day horizons, ordered best first.
func (r *predictionRepository) GetSymbolAccuracy(ctx context.Context, userID int64) ([]dto.SymbolAccuracy, error) {
	var rows []dto.SymbolAccuracy
	err := r.db.WithContext(ctx).Model(&entity.StockPrediction{}).
		Select(`
			symbol,
			COUNT(*) FILTER (WHERE one_day_actual_price IS NOT NULL) AS evaluated,
			COALESCE(100.0 * COUNT(*) FILTER (WHERE one_day_accurate) / NULLIF(COUNT(*) FILTER (WHERE one_day_actual_price IS NOT NULL), 0), 0) AS overall_accuracy_pct`).
		Where("user_id = ?", userID).
		Group("symbol").
		Having("COUNT(*) FILTER (WHERE one_day_actual_price IS NOT NULL) > 0").
		Order("overall_accuracy_pct DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
