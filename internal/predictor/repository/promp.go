package repository

import (
	"fmt"
	"strings"
)

// BuildMultiHorizonPredictionPrompt renders the forecast request. Every value
// in the prompt is precomputed by the caller; the model only interprets.
func BuildMultiHorizonPredictionPrompt(input *PredictionInput) string {
	var seriesBuilder strings.Builder
	for _, point := range input.Series {
		seriesBuilder.WriteString(fmt.Sprintf("%s,%.4f,%d\n",
			point.Timestamp.Format("2006-01-02 15:04"), point.Price, point.Volume))
	}

	sma20 := "null (fewer than 20 samples)"
	if input.Indicators.SMA20 != nil {
		sma20 = fmt.Sprintf("%.4f", *input.Indicators.SMA20)
	}

	promptTemplate := `You are an experienced equity analyst. Based ONLY on the data below, forecast the price of %s over three timeframes. Do not invent data that is not provided.

### CURRENT STATE
- Symbol: %s
- Current price: %.4f

### PRECOMPUTED TECHNICAL INDICATORS
- SMA20: %s
- RSI14: %.2f
- Support: %.4f
- Resistance: %.4f
- Trend slope (OLS, last 10 samples): %.6f

### INTRADAY SERIES (timestamp,price,volume)
%s
### REQUIRED OUTPUT
Respond with JSON only, using this exact structure:

{
  "1d": {
    "predicted_price": <float>,
    "confidence": <int 0-100>,
    "direction": "up | down | sideways",
    "reasoning": "<string>"
  },
  "1w": { ... same fields ... },
  "1m": { ... same fields ... },
  "trend": "bullish | bearish | neutral",
  "recommendation": "buy | hold | sell"
}

Rules:
- If a timeframe cannot be forecast from the data given, set its predicted_price and direction to null and its confidence to 0.
- confidence must reflect how strongly the provided indicators and series support the forecast.
- reasoning must reference the provided indicators, not outside knowledge.

Answer with JSON only.`

	return fmt.Sprintf(promptTemplate,
		input.Symbol,
		input.Symbol,
		input.CurrentPrice,
		sma20,
		input.Indicators.RSI14,
		input.Indicators.Support,
		input.Indicators.Resistance,
		input.Indicators.TrendSlope,
		seriesBuilder.String(),
	)
}
