package dto

import "golang-portfolio-predictor/internal/entity"

// TodayPredictionResponse is the payload for GET /predictions/:symbol/today.
type TodayPredictionResponse struct {
	HasPrediction        bool                    `json:"has_prediction"`
	Prediction           *entity.StockPrediction `json:"prediction,omitempty"`
	IsWeekend            bool                    `json:"is_weekend,omitempty"`
	MostRecentPrediction *entity.StockPrediction `json:"most_recent_prediction,omitempty"`
	MarketStatus         string                  `json:"market_status,omitempty"`
}

// GeneratePredictionRequest is the payload for POST /predictions/generate.
type GeneratePredictionRequest struct {
	Symbol string `json:"symbol"`
}

// HorizonAccuracy aggregates evaluation results for one timeframe.
type HorizonAccuracy struct {
	Horizon            entity.Horizon `json:"horizon"`
	Evaluated          int64          `json:"evaluated"`
	PriceAccurate      int64          `json:"price_accurate"`
	DirectionAccurate  int64          `json:"direction_accurate"`
	Accurate           int64          `json:"accurate"`
	PriceAccuracyPct   float64        `json:"price_accuracy_pct"`
	DirectionAccPct    float64        `json:"direction_accuracy_pct"`
	OverallAccuracyPct float64        `json:"overall_accuracy_pct"`
	AvgWeightedScore   float64        `json:"avg_weighted_score"`
}

// AccuracyStatsResponse is the payload for GET /predictions/accuracy.
type AccuracyStatsResponse struct {
	Symbol           string            `json:"symbol,omitempty"`
	TotalPredictions int64             `json:"total_predictions"`
	Horizons         []HorizonAccuracy `json:"horizons"`
}

// SymbolAccuracy is one symbol's overall accuracy over evaluated horizons.
type SymbolAccuracy struct {
	Symbol             string  `json:"symbol"`
	Evaluated          int64   `json:"evaluated"`
	OverallAccuracyPct float64 `json:"overall_accuracy_pct"`
}

// EnhancedAccuracyStatsResponse adds calibration and per-symbol detail on top
// of the basic accuracy aggregates.
type EnhancedAccuracyStatsResponse struct {
	AccuracyStatsResponse
	AvgConfidenceWhenRight float64         `json:"avg_confidence_when_right"`
	AvgConfidenceWhenWrong float64         `json:"avg_confidence_when_wrong"`
	BestSymbol             *SymbolAccuracy `json:"best_symbol,omitempty"`
	WorstSymbol            *SymbolAccuracy `json:"worst_symbol,omitempty"`
}

// EvaluationSummary reports the outcome of one evaluation pass.
type EvaluationSummary struct {
	Graded   int `json:"graded"`
	Deferred int `json:"deferred"`
	Failed   int `json:"failed"`
}
