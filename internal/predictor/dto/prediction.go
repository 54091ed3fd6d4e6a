package dto

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang-portfolio-predictor/internal/entity"
)

// HorizonOutcome is one timeframe's forecast as produced by the model.
type HorizonOutcome struct {
	PredictedPrice *float64 `json:"predicted_price"`
	Confidence     int      `json:"confidence"`
	Direction      string   `json:"direction"`
	Reasoning      string   `json:"reasoning"`
}

// horizonOutcomeWithKey is an element of the array-shaped model output, where
// each entry names its own timeframe.
type horizonOutcomeWithKey struct {
	Horizon   string `json:"horizon"`
	Timeframe string `json:"timeframe"`
	HorizonOutcome
}

// MultiHorizonForecast is the normalized model output. It accepts both
// response shapes the model has been observed to produce: a flat object keyed
// by timeframe and an array of per-timeframe objects.
type MultiHorizonForecast struct {
	OneDay   *HorizonOutcome
	OneWeek  *HorizonOutcome
	OneMonth *HorizonOutcome

	Recommendation string
	Trend          string
}

// Outcome returns the parsed outcome for the horizon, which is nil when the
// model omitted that timeframe.
func (f *MultiHorizonForecast) Outcome(h entity.Horizon) *HorizonOutcome {
	switch h {
	case entity.HorizonOneDay:
		return f.OneDay
	case entity.HorizonOneWeek:
		return f.OneWeek
	case entity.HorizonOneMonth:
		return f.OneMonth
	}
	return nil
}

func normalizeHorizonKey(key string) (entity.Horizon, bool) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(key), "-", "_")) {
	case "1d", "1_day", "1day", "one_day", "day":
		return entity.HorizonOneDay, true
	case "1w", "1_week", "1week", "one_week", "week":
		return entity.HorizonOneWeek, true
	case "1m", "1_month", "1month", "one_month", "month":
		return entity.HorizonOneMonth, true
	}
	return "", false
}

func (f *MultiHorizonForecast) setOutcome(h entity.Horizon, o *HorizonOutcome) {
	switch h {
	case entity.HorizonOneDay:
		f.OneDay = o
	case entity.HorizonOneWeek:
		f.OneWeek = o
	case entity.HorizonOneMonth:
		f.OneMonth = o
	}
}

// UnmarshalJSON decodes either supported model output shape.
func (f *MultiHorizonForecast) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		return f.unmarshalArray(data)
	}
	return f.unmarshalFlat(data)
}

// unmarshalFlat handles {"1d": {...}, "1w": {...}, "1m": {...}, ...}.
// Unknown keys that do not name a timeframe are checked for the top-level
// recommendation and trend fields and otherwise ignored.
func (f *MultiHorizonForecast) unmarshalFlat(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("forecast is neither a timeframe object nor an array: %w", err)
	}

	found := false
	for key, value := range raw {
		horizon, ok := normalizeHorizonKey(key)
		if !ok {
			switch strings.ToLower(key) {
			case "recommendation":
				_ = json.Unmarshal(value, &f.Recommendation)
			case "trend":
				_ = json.Unmarshal(value, &f.Trend)
			}
			continue
		}

		var outcome HorizonOutcome
		if err := json.Unmarshal(value, &outcome); err != nil {
			return fmt.Errorf("invalid forecast for timeframe %q: %w", key, err)
		}
		f.setOutcome(horizon, &outcome)
		found = true
	}

	if !found {
		return fmt.Errorf("forecast object contains no recognizable timeframe keys")
	}
	return nil
}

// unmarshalArray handles [{"horizon": "1d", ...}, ...].
func (f *MultiHorizonForecast) unmarshalArray(data []byte) error {
	var items []horizonOutcomeWithKey
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("invalid forecast array: %w", err)
	}

	found := false
	for _, item := range items {
		key := item.Horizon
		if key == "" {
			key = item.Timeframe
		}
		horizon, ok := normalizeHorizonKey(key)
		if !ok {
			continue
		}
		outcome := item.HorizonOutcome
		f.setOutcome(horizon, &outcome)
		found = true
	}

	if !found {
		return fmt.Errorf("forecast array contains no recognizable timeframes")
	}
	return nil
}

// MultiHorizonPredictionResult is the Generator's normalized output before it
// is persisted.
type MultiHorizonPredictionResult struct {
	Symbol       string
	CurrentPrice float64
	Forecast     MultiHorizonForecast
	RawOutput    json.RawMessage
}
