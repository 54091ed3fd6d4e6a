package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"golang-portfolio-predictor/internal/predictor/dto"
	"golang-portfolio-predictor/internal/predictor/service"
	"golang-portfolio-predictor/internal/predictor/technical"
	"golang-portfolio-predictor/pkg/common"
	"golang-portfolio-predictor/pkg/logger"

	"github.com/labstack/echo/v4"
)

// PredictionHandler handles HTTP requests for predictions.
type PredictionHandler struct {
	predictionService service.PredictionService
	evaluationService service.EvaluationService
	logger            *logger.Logger
}

// NewPredictionHandler creates a new PredictionHandler.
func NewPredictionHandler(predictionService service.PredictionService, evaluationService service.EvaluationService, logger *logger.Logger) *PredictionHandler {
	return &PredictionHandler{
		predictionService: predictionService,
		evaluationService: evaluationService,
		logger:            logger,
	}
}

// RegisterRoutes registers the prediction routes to the Echo group.
func (h *PredictionHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/:symbol/today", h.GetTodayPrediction)
	g.POST("/generate", h.GeneratePrediction)
	g.GET("/accuracy", h.GetAccuracyStats)
	g.GET("/accuracy/enhanced", h.GetEnhancedAccuracyStats)
	g.DELETE("/:id", h.DeletePrediction)
}

// userID resolves the authenticated user from the request. Authentication is
// handled upstream; the handler only consumes the resolved identity.
func (h *PredictionHandler) userID(c echo.Context) (int64, error) {
	raw := c.Request().Header.Get(common.HeaderUserID)
	if raw == "" {
		return 0, errors.New("missing user identity")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid user identity")
	}
	return id, nil
}

// GetTodayPrediction godoc
// @Summary Get today's prediction for a symbol
// @Description Returns today's prediction, or the most recent one on non-trading days
// @Tags predictions
// @Produce  json
// @Param   symbol  path    string true    "Stock symbol"
// @Success 200 {object} dto.TodayPredictionResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /predictions/{symbol}/today [get]
func (h *PredictionHandler) GetTodayPrediction(c echo.Context) error {
	userID, err := h.userID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
	}

	symbol := strings.ToUpper(c.Param("symbol"))
	if symbol == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Missing symbol"})
	}

	resp, err := h.predictionService.GetTodayPrediction(c.Request().Context(), userID, symbol)
	if err != nil {
		h.logger.Error("Failed to get today's prediction", logger.ErrorField(err), logger.StringField("symbol", symbol))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to get prediction"})
	}

	return c.JSON(http.StatusOK, resp)
}

// GeneratePrediction godoc
// @Summary Generate today's prediction
// @Description Generates a multi-horizon prediction; idempotent per user, symbol and trading day
// @Tags predictions
// @Accept  json
// @Produce  json
// @Param   request  body    dto.GeneratePredictionRequest   true    "Symbol to predict"
// @Success 200 {object} entity.StockPrediction
// @Failure 400 {object} dto.MarketClosedResponse
// @Failure 409 {object} entity.StockPrediction
// @Failure 422 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /predictions/generate [post]
func (h *PredictionHandler) GeneratePrediction(c echo.Context) error {
	userID, err := h.userID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
	}

	var req dto.GeneratePredictionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request payload"})
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Missing symbol"})
	}

	prediction, created, err := h.predictionService.GeneratePrediction(c.Request().Context(), userID, symbol)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMarketClosed):
			return c.JSON(http.StatusBadRequest, dto.MarketClosedResponse{
				MarketClosed: true,
				Reason:       err.Error(),
			})
		case errors.Is(err, technical.ErrInsufficientData):
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
		case errors.Is(err, service.ErrGenerationFailed):
			h.logger.Error("Prediction generation failed", logger.ErrorField(err), logger.StringField("symbol", symbol))
			return c.JSON(http.StatusBadGateway, echo.Map{"error": "Prediction generation failed, please retry"})
		default:
			h.logger.Error("Failed to generate prediction", logger.ErrorField(err), logger.StringField("symbol", symbol))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to generate prediction"})
		}
	}

	if !created {
		// A prediction already existed for today; the existing record is
		// the response body so all callers converge on the same row.
		return c.JSON(http.StatusConflict, prediction)
	}
	return c.JSON(http.StatusOK, prediction)
}

// GetAccuracyStats godoc
// @Summary Get prediction accuracy statistics
// @Tags predictions
// @Produce  json
// @Param   symbol  query   string false   "Filter by symbol"
// @Success 200 {object} dto.AccuracyStatsResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /predictions/accuracy [get]
func (h *PredictionHandler) GetAccuracyStats(c echo.Context) error {
	userID, err := h.userID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
	}

	symbol := strings.ToUpper(c.QueryParam("symbol"))
	stats, err := h.evaluationService.GetAccuracyStats(c.Request().Context(), userID, symbol)
	if err != nil {
		h.logger.Error("Failed to get accuracy stats", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to get accuracy statistics"})
	}

	return c.JSON(http.StatusOK, stats)
}

// GetEnhancedAccuracyStats godoc
// @Summary Get enhanced prediction accuracy statistics
// @Description Adds confidence calibration and best/worst symbol breakdowns
// @Tags predictions
// @Produce  json
// @Param   symbol  query   string false   "Filter by symbol"
// @Success 200 {object} dto.EnhancedAccuracyStatsResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /predictions/accuracy/enhanced [get]
func (h *PredictionHandler) GetEnhancedAccuracyStats(c echo.Context) error {
	userID, err := h.userID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
	}

	symbol := strings.ToUpper(c.QueryParam("symbol"))
	stats, err := h.evaluationService.GetEnhancedAccuracyStats(c.Request().Context(), userID, symbol)
	if err != nil {
		h.logger.Error("Failed to get enhanced accuracy stats", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to get accuracy statistics"})
	}

	return c.JSON(http.StatusOK, stats)
}

// DeletePrediction godoc
// @Summary Delete a prediction
// @Tags predictions
// @Produce  json
// @Param   id  path    int true    "Prediction ID"
// @Success 204 {object} nil
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /predictions/{id} [delete]
func (h *PredictionHandler) DeletePrediction(c echo.Context) error {
	userID, err := h.userID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid prediction ID"})
	}

	if err := h.predictionService.DeletePrediction(c.Request().Context(), userID, id); err != nil {
		h.logger.Error("Failed to delete prediction", logger.ErrorField(err), logger.Field("prediction_id", id))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to delete prediction"})
	}

	return c.NoContent(http.StatusNoContent)
}
