package entity

import (
	"time"

	"gorm.io/datatypes"
)

// Direction labels a predicted or observed price move.
type Direction string

const (
	DirectionUp       Direction = "up"
	DirectionDown     Direction = "down"
	DirectionSideways Direction = "sideways"
)

// Horizon identifies one of the three forecast timeframes.
type Horizon string

const (
	HorizonOneDay   Horizon = "1d"
	HorizonOneWeek  Horizon = "1w"
	HorizonOneMonth Horizon = "1m"
)

// AllHorizons lists the horizons in maturity order.
var AllHorizons = []Horizon{HorizonOneDay, HorizonOneWeek, HorizonOneMonth}

// OffsetDays returns the calendar-day offset after which the horizon matures.
func (h Horizon) OffsetDays() int {
	switch h {
	case HorizonOneDay:
		return 1
	case HorizonOneWeek:
		return 7
	case HorizonOneMonth:
		return 30
	}
	return 0
}

// ColumnPrefix returns the database column prefix for the horizon's block.
func (h Horizon) ColumnPrefix() string {
	switch h {
	case HorizonOneDay:
		return "one_day_"
	case HorizonOneWeek:
		return "one_week_"
	case HorizonOneMonth:
		return "one_month_"
	}
	return ""
}

// HorizonPrediction holds one timeframe's forecast and, once matured and
// graded, its evaluation result. PredictedPrice and Direction are nil when
// the model could not produce a forecast for the timeframe; Confidence is 0
// in that case.
type HorizonPrediction struct {
	PredictedPrice    *float64   `json:"predicted_price"`
	Confidence        int        `json:"confidence"`
	Direction         *Direction `json:"direction"`
	Reasoning         string     `json:"reasoning"`
	ActualPrice       *float64   `json:"actual_price"`
	PriceAccurate     *bool      `json:"price_accurate"`
	DirectionAccurate *bool      `json:"direction_accurate"`
	Accurate          *bool      `json:"accurate"`
	WeightedScore     *float64   `json:"weighted_score"`
}

// Evaluated reports whether the horizon has already been graded. ActualPrice
// is written exactly once, so it doubles as the evaluation marker.
func (p HorizonPrediction) Evaluated() bool {
	return p.ActualPrice != nil
}

// StockPrediction is one multi-horizon forecast for a (user, symbol, trading
// day). The per-day uniqueness is enforced by a database constraint, not by
// application logic.
type StockPrediction struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id" gorm:"uniqueIndex:uq_stock_predictions_user_symbol_day"`
	Symbol         string    `json:"symbol" gorm:"uniqueIndex:uq_stock_predictions_user_symbol_day"`
	PredictionDate time.Time `json:"prediction_date" gorm:"type:date;uniqueIndex:uq_stock_predictions_user_symbol_day"`

	CurrentPrice float64 `json:"current_price"`

	OneDay   HorizonPrediction `json:"one_day" gorm:"embedded;embeddedPrefix:one_day_"`
	OneWeek  HorizonPrediction `json:"one_week" gorm:"embedded;embeddedPrefix:one_week_"`
	OneMonth HorizonPrediction `json:"one_month" gorm:"embedded;embeddedPrefix:one_month_"`

	// Technical context captured at generation time.
	RSI             float64 `json:"rsi"`
	Trend           string  `json:"trend"`
	Recommendation  string  `json:"recommendation"`
	DataLimitations bool    `json:"data_limitations"`

	PriceThreshold  float64        `json:"price_threshold" gorm:"default:5.00"`
	LastEvaluatedAt *time.Time     `json:"last_evaluated_at"`
	ModelOutput     datatypes.JSON `json:"model_output,omitempty" gorm:"type:jsonb"`

	GeneratedAt time.Time `json:"generated_at"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (StockPrediction) TableName() string {
	return "stock_predictions"
}

// HorizonBlock returns the horizon's forecast block.
func (p *StockPrediction) HorizonBlock(h Horizon) *HorizonPrediction {
	switch h {
	case HorizonOneDay:
		return &p.OneDay
	case HorizonOneWeek:
		return &p.OneWeek
	case HorizonOneMonth:
		return &p.OneMonth
	}
	return nil
}

// TargetDate returns the calendar date the horizon's forecast refers to.
func (p *StockPrediction) TargetDate(h Horizon) time.Time {
	return p.PredictionDate.AddDate(0, 0, h.OffsetDays())
}
