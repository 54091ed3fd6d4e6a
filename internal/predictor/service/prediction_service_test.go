package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"golang-portfolio-predictor/internal/entity"
	"golang-portfolio-predictor/internal/predictor/config"
	"golang-portfolio-predictor/internal/predictor/dto"
	"golang-portfolio-predictor/internal/predictor/repository"
	"golang-portfolio-predictor/internal/predictor/technical"
	"golang-portfolio-predictor/pkg/logger"
	"golang-portfolio-predictor/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePredictionRepo is an in-memory PredictionRepository that enforces the
// per-day uniqueness the way the database constraint does.
type fakePredictionRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[string]*entity.StockPrediction
}

func newFakePredictionRepo() *fakePredictionRepo {
	return &fakePredictionRepo{rows: make(map[string]*entity.StockPrediction)}
}

func dayKey(userID int64, symbol string, day time.Time) string {
	return fmt.Sprintf("%d|%s|%s", userID, symbol, day.Format("2006-01-02"))
}

func (f *fakePredictionRepo) Create(_ context.Context, prediction *entity.StockPrediction) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := dayKey(prediction.UserID, prediction.Symbol, prediction.PredictionDate)
	if _, exists := f.rows[key]; exists {
		return repository.ErrDuplicatePrediction
	}

	f.nextID++
	prediction.ID = f.nextID
	stored := *prediction
	f.rows[key] = &stored
	return nil
}

func (f *fakePredictionRepo) FindByID(_ context.Context, id int64) (*entity.StockPrediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.ID == id {
			copied := *row
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakePredictionRepo) FindByUserSymbolDay(_ context.Context, userID int64, symbol string, day time.Time) (*entity.StockPrediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.rows[dayKey(userID, symbol, day)]; ok {
		copied := *row
		return &copied, nil
	}
	return nil, nil
}

func (f *fakePredictionRepo) FindMostRecent(_ context.Context, userID int64, symbol string) (*entity.StockPrediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *entity.StockPrediction
	for _, row := range f.rows {
		if row.UserID != userID || row.Symbol != symbol {
			continue
		}
		if latest == nil || row.PredictionDate.After(latest.PredictionDate) {
			latest = row
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (f *fakePredictionRepo) FindMaturedUnevaluated(_ context.Context, horizon entity.Horizon, asOf time.Time) ([]entity.StockPrediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matured []entity.StockPrediction
	for _, row := range f.rows {
		if row.TargetDate(horizon).After(asOf) {
			continue
		}
		if row.HorizonBlock(horizon).Evaluated() {
			continue
		}
		matured = append(matured, *row)
	}
	return matured, nil
}

func (f *fakePredictionRepo) RecordEvaluation(_ context.Context, id int64, horizon entity.Horizon, eval repository.HorizonEvaluation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.ID != id {
			continue
		}
		block := row.HorizonBlock(horizon)
		if block.Evaluated() {
			return nil
		}
		actual := eval.ActualPrice
		priceAccurate := eval.PriceAccurate
		directionAccurate := eval.DirectionAccurate
		accurate := eval.Accurate
		weighted := eval.WeightedScore
		block.ActualPrice = &actual
		block.PriceAccurate = &priceAccurate
		block.DirectionAccurate = &directionAccurate
		block.Accurate = &accurate
		block.WeightedScore = &weighted
		now := time.Now()
		row.LastEvaluatedAt = &now
		return nil
	}
	return fmt.Errorf("prediction %d not found", id)
}

func (f *fakePredictionRepo) Delete(_ context.Context, id int64, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, row := range f.rows {
		if row.ID == id && row.UserID == userID {
			delete(f.rows, key)
		}
	}
	return nil
}

func (f *fakePredictionRepo) GetAccuracyStats(_ context.Context, _ int64, symbol string) (*dto.AccuracyStatsResponse, error) {
	return &dto.AccuracyStatsResponse{Symbol: symbol}, nil
}

func (f *fakePredictionRepo) GetConfidenceCalibration(_ context.Context, _ int64, _ string) (float64, float64, error) {
	return 0, 0, nil
}

func (f *fakePredictionRepo) GetSymbolAccuracy(_ context.Context, _ int64) ([]dto.SymbolAccuracy, error) {
	return nil, nil
}

type fakeMarketData struct {
	mu        sync.Mutex
	series    []dto.PricePoint
	price     float64
	closes    map[string]float64
	seriesErr error
}

func closeKey(symbol string, date time.Time) string {
	return symbol + "|" + date.Format("2006-01-02")
}

func (f *fakeMarketData) GetIntradaySeries(_ context.Context, _ string) ([]dto.PricePoint, float64, error) {
	if f.seriesErr != nil {
		return nil, 0, f.seriesErr
	}
	return f.series, f.price, nil
}

func (f *fakeMarketData) GetDailyClose(_ context.Context, symbol string, date time.Time) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if close, ok := f.closes[closeKey(symbol, date)]; ok {
		return close, nil
	}
	return 0, repository.ErrPriceUnavailable
}

type fakeAIRepo struct {
	result *dto.MultiHorizonPredictionResult
	err    error
	calls  int
	mu     sync.Mutex
}

func (f *fakeAIRepo) PredictMultiHorizon(_ context.Context, input *repository.PredictionInput) (*dto.MultiHorizonPredictionResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	result := *f.result
	result.Symbol = input.Symbol
	result.CurrentPrice = input.CurrentPrice
	return &result, nil
}

type fixedCalendar struct{ open bool }

func (c fixedCalendar) IsTradingDay(time.Time) bool { return c.open }

func testConfig() *config.Config {
	return &config.Config{
		Prediction: config.Prediction{
			PriceThresholdPercent: 5.0,
			SidewaysBandPercent:   0.5,
			MinIntradaySamples:    200,
		},
	}
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("error", "json")
	require.NoError(t, err)
	return log
}

func floatPtr(v float64) *float64 { return &v }

func testForecast() *dto.MultiHorizonPredictionResult {
	up := "up"
	return &dto.MultiHorizonPredictionResult{
		Forecast: dto.MultiHorizonForecast{
			OneDay:         &dto.HorizonOutcome{PredictedPrice: floatPtr(204), Confidence: 72, Direction: up, Reasoning: "momentum"},
			OneWeek:        &dto.HorizonOutcome{PredictedPrice: floatPtr(210), Confidence: 55, Direction: up, Reasoning: "trend"},
			OneMonth:       &dto.HorizonOutcome{PredictedPrice: floatPtr(215), Confidence: 40, Direction: up, Reasoning: "slope"},
			Trend:          "bullish",
			Recommendation: "buy",
		},
		RawOutput: []byte(`{}`),
	}
}

func testSeries(n int) []dto.PricePoint {
	base := time.Date(2026, 8, 28, 9, 30, 0, 0, time.UTC)
	series := make([]dto.PricePoint, n)
	for i := range series {
		series[i] = dto.PricePoint{Timestamp: base.Add(time.Duration(i) * 5 * time.Minute), Price: 200 + float64(i%5), Volume: 1000}
	}
	return series
}

func newTestPredictionService(t *testing.T, repo repository.PredictionRepository, market repository.MarketDataRepository, ai repository.AIRepository, calendar MarketCalendar) PredictionService {
	t.Helper()
	return NewPredictionService(testConfig(), testLogger(t), repo, market, ai, calendar)
}

func TestGeneratePredictionCreatesRecord(t *testing.T) {
	repo := newFakePredictionRepo()
	market := &fakeMarketData{series: testSeries(250), price: 200}
	ai := &fakeAIRepo{result: testForecast()}
	svc := newTestPredictionService(t, repo, market, ai, fixedCalendar{open: true})

	prediction, created, err := svc.GeneratePrediction(context.Background(), 1, "AAPL")
	require.NoError(t, err)
	assert.True(t, created)
	require.NotNil(t, prediction)
	assert.NotZero(t, prediction.ID)
	assert.Equal(t, "AAPL", prediction.Symbol)
	assert.Equal(t, 200.0, prediction.CurrentPrice)
	assert.Equal(t, "bullish", prediction.Trend)
	assert.Equal(t, "buy", prediction.Recommendation)
	assert.False(t, prediction.DataLimitations)

	require.NotNil(t, prediction.OneDay.PredictedPrice)
	assert.Equal(t, 204.0, *prediction.OneDay.PredictedPrice)
	assert.Equal(t, 72, prediction.OneDay.Confidence)
	require.NotNil(t, prediction.OneDay.Direction)
	assert.Equal(t, entity.DirectionUp, *prediction.OneDay.Direction)
}

func TestGeneratePredictionSecondCallReturnsExisting(t *testing.T) {
	repo := newFakePredictionRepo()
	market := &fakeMarketData{series: testSeries(250), price: 200}
	ai := &fakeAIRepo{result: testForecast()}
	svc := newTestPredictionService(t, repo, market, ai, fixedCalendar{open: true})

	first, created, err := svc.GeneratePrediction(context.Background(), 1, "AAPL")
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := svc.GeneratePrediction(context.Background(), 1, "AAPL")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, ai.calls, "existing prediction must not trigger another model call")
}

func TestGeneratePredictionConcurrentRequestsConverge(t *testing.T) {
	repo := newFakePredictionRepo()
	market := &fakeMarketData{series: testSeries(250), price: 200}
	ai := &fakeAIRepo{result: testForecast()}
	svc := newTestPredictionService(t, repo, market, ai, fixedCalendar{open: true})

	const callers = 8
	type outcome struct {
		prediction *entity.StockPrediction
		created    bool
		err        error
	}

	results := make([]outcome, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, c, err := svc.GeneratePrediction(context.Background(), 1, "AAPL")
			results[i] = outcome{prediction: p, created: c, err: err}
		}(i)
	}
	wg.Wait()

	createdCount := 0
	var id int64
	for _, r := range results {
		require.NoError(t, r.err)
		require.NotNil(t, r.prediction)
		if r.created {
			createdCount++
		}
		if id == 0 {
			id = r.prediction.ID
		}
		assert.Equal(t, id, r.prediction.ID, "all callers must converge on the same record")
	}
	assert.Equal(t, 1, createdCount, "exactly one caller creates the record")
	assert.Len(t, repo.rows, 1)
}

func TestGeneratePredictionMarketClosed(t *testing.T) {
	repo := newFakePredictionRepo()
	ai := &fakeAIRepo{result: testForecast()}
	svc := newTestPredictionService(t, repo, &fakeMarketData{}, ai, fixedCalendar{open: false})

	_, _, err := svc.GeneratePrediction(context.Background(), 1, "AAPL")
	assert.ErrorIs(t, err, ErrMarketClosed)
	assert.Zero(t, ai.calls)
	assert.Empty(t, repo.rows)
}

func TestGeneratePredictionModelFailure(t *testing.T) {
	repo := newFakePredictionRepo()
	market := &fakeMarketData{series: testSeries(250), price: 200}
	ai := &fakeAIRepo{err: fmt.Errorf("model timeout")}
	svc := newTestPredictionService(t, repo, market, ai, fixedCalendar{open: true})

	_, _, err := svc.GeneratePrediction(context.Background(), 1, "AAPL")
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.Empty(t, repo.rows)
}

func TestGeneratePredictionEmptySeries(t *testing.T) {
	repo := newFakePredictionRepo()
	market := &fakeMarketData{series: nil, price: 0}
	svc := newTestPredictionService(t, repo, market, &fakeAIRepo{result: testForecast()}, fixedCalendar{open: true})

	_, _, err := svc.GeneratePrediction(context.Background(), 1, "AAPL")
	assert.ErrorIs(t, err, technical.ErrInsufficientData)
}

func TestGeneratePredictionNullHorizonHasZeroConfidence(t *testing.T) {
	forecast := testForecast()
	// The model fabricated a confidence for a horizon it could not price
	// and omitted the monthly horizon entirely.
	forecast.Forecast.OneWeek = &dto.HorizonOutcome{PredictedPrice: nil, Confidence: 80, Reasoning: "insufficient data"}
	forecast.Forecast.OneMonth = nil

	repo := newFakePredictionRepo()
	market := &fakeMarketData{series: testSeries(250), price: 200}
	svc := newTestPredictionService(t, repo, market, &fakeAIRepo{result: forecast}, fixedCalendar{open: true})

	prediction, _, err := svc.GeneratePrediction(context.Background(), 1, "AAPL")
	require.NoError(t, err)

	assert.Nil(t, prediction.OneWeek.PredictedPrice)
	assert.Nil(t, prediction.OneWeek.Direction)
	assert.Zero(t, prediction.OneWeek.Confidence)
	assert.Equal(t, "insufficient data", prediction.OneWeek.Reasoning)

	assert.Nil(t, prediction.OneMonth.PredictedPrice)
	assert.Nil(t, prediction.OneMonth.Direction)
	assert.Zero(t, prediction.OneMonth.Confidence)
}

func TestGeneratePredictionClampsConfidence(t *testing.T) {
	forecast := testForecast()
	forecast.Forecast.OneDay.Confidence = 140
	forecast.Forecast.OneWeek.Confidence = -10

	repo := newFakePredictionRepo()
	market := &fakeMarketData{series: testSeries(250), price: 200}
	svc := newTestPredictionService(t, repo, market, &fakeAIRepo{result: forecast}, fixedCalendar{open: true})

	prediction, _, err := svc.GeneratePrediction(context.Background(), 1, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 100, prediction.OneDay.Confidence)
	assert.Equal(t, 0, prediction.OneWeek.Confidence)
}

func TestGeneratePredictionFlagsDataLimitations(t *testing.T) {
	repo := newFakePredictionRepo()
	market := &fakeMarketData{series: testSeries(40), price: 200}
	svc := newTestPredictionService(t, repo, market, &fakeAIRepo{result: testForecast()}, fixedCalendar{open: true})

	prediction, _, err := svc.GeneratePrediction(context.Background(), 1, "AAPL")
	require.NoError(t, err)
	assert.True(t, prediction.DataLimitations)
}

func TestGetTodayPredictionWeekendFallback(t *testing.T) {
	repo := newFakePredictionRepo()
	yesterday := utils.MarketDay(utils.TimeNowMarket()).AddDate(0, 0, -1)
	require.NoError(t, repo.Create(context.Background(), &entity.StockPrediction{
		UserID:         1,
		Symbol:         "AAPL",
		PredictionDate: yesterday,
		CurrentPrice:   200,
	}))

	svc := newTestPredictionService(t, repo, &fakeMarketData{}, &fakeAIRepo{result: testForecast()}, fixedCalendar{open: false})

	resp, err := svc.GetTodayPrediction(context.Background(), 1, "AAPL")
	require.NoError(t, err)
	assert.False(t, resp.HasPrediction)
	assert.True(t, resp.IsWeekend)
	assert.Equal(t, "closed", resp.MarketStatus)
	require.NotNil(t, resp.MostRecentPrediction)
	assert.Equal(t, yesterday, resp.MostRecentPrediction.PredictionDate)
}

func TestGetTodayPredictionOpenMarket(t *testing.T) {
	repo := newFakePredictionRepo()
	svc := newTestPredictionService(t, repo, &fakeMarketData{}, &fakeAIRepo{result: testForecast()}, fixedCalendar{open: true})

	resp, err := svc.GetTodayPrediction(context.Background(), 1, "AAPL")
	require.NoError(t, err)
	assert.False(t, resp.HasPrediction)
	assert.Nil(t, resp.Prediction)
	assert.Equal(t, "open", resp.MarketStatus)

	today := utils.MarketDay(utils.TimeNowMarket())
	require.NoError(t, repo.Create(context.Background(), &entity.StockPrediction{
		UserID:         1,
		Symbol:         "AAPL",
		PredictionDate: today,
		CurrentPrice:   200,
	}))

	resp, err = svc.GetTodayPrediction(context.Background(), 1, "AAPL")
	require.NoError(t, err)
	assert.True(t, resp.HasPrediction)
	require.NotNil(t, resp.Prediction)
}
