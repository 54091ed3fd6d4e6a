package repository

import (
	"context"

	"golang-portfolio-predictor/internal/predictor/dto"
	"golang-portfolio-predictor/internal/predictor/technical"
)

// PredictionInput carries everything the reasoning model is given. The model
// is never asked to derive data it was not handed.
type PredictionInput struct {
	Symbol       string
	CurrentPrice float64
	Series       []dto.PricePoint
	Indicators   *technical.Snapshot
}

// AIRepository is the reasoning model used to produce multi-horizon forecasts.
type AIRepository interface {
	PredictMultiHorizon(ctx context.Context, input *PredictionInput) (*dto.MultiHorizonPredictionResult, error)
}
