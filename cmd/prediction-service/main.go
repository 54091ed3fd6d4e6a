package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang-portfolio-predictor/internal/predictor/config"
	delivery "golang-portfolio-predictor/internal/predictor/delivery/http"
	_ "golang-portfolio-predictor/internal/predictor/docs"
	"golang-portfolio-predictor/internal/predictor/repository"
	"golang-portfolio-predictor/internal/predictor/service"
	"golang-portfolio-predictor/pkg/logger"
	"golang-portfolio-predictor/pkg/postgres"
	"golang-portfolio-predictor/pkg/redis"
	"golang-portfolio-predictor/pkg/telegram"

	"github.com/labstack/echo/v4"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	swagger "github.com/swaggo/echo-swagger"
	"google.golang.org/genai"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the prediction service",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	// Create a context that is canceled on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	appLogger.Info("Starting Prediction Service", logger.Field("name", cfg.App.Name))

	// Initialize database
	postgresCfg := postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}
	db, err := postgres.NewDB(postgresCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize database", logger.ErrorField(err))
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		defer sqlDB.Close()
	}

	// Initialize Redis
	redisCfg := redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}
	redisClient, err := redis.NewClient(redisCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize Redis", logger.ErrorField(err))
	}
	defer redisClient.Close()

	// Initialize repositories
	predictionRepo := repository.NewPredictionRepository(db.DB)
	marketDataRepo, err := repository.NewMarketDataRepository(cfg, appLogger, redisClient.Client)
	if err != nil {
		appLogger.Fatal("Failed to initialize market data repository", logger.ErrorField(err))
	}

	genAiClient, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.Gemini.APIKey,
	})
	if err != nil {
		appLogger.Fatal("Failed to initialize Gemini AI client", logger.ErrorField(err))
	}
	aiRepo, err := repository.NewGeminiAIRepository(cfg, appLogger, genAiClient)
	if err != nil {
		appLogger.Fatal("Failed to initialize Gemini AI repository", logger.ErrorField(err))
	}

	// Optional evaluation summary notifier
	var notifier telegram.Notifier
	if cfg.Telegram.Enabled {
		notifier, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			appLogger.Fatal("Failed to initialize Telegram notifier", logger.ErrorField(err))
		}
	}

	// Initialize services
	calendar := service.NewWeekdayCalendar()
	predictionSvc := service.NewPredictionService(cfg, appLogger, predictionRepo, marketDataRepo, aiRepo, calendar)
	evaluationSvc := service.NewEvaluationService(cfg, appLogger, predictionRepo, marketDataRepo, notifier)

	// Schedule the evaluation pass
	cronRunner := cron.New()
	if _, err := cronRunner.AddFunc(cfg.Prediction.EvaluationSchedule, func() {
		evalCtx, cancel := context.WithTimeout(ctx, 30*time.Minute)
		defer cancel()
		if _, err := evaluationSvc.EvaluatePending(evalCtx); err != nil {
			appLogger.Error("Evaluation pass failed", logger.ErrorField(err))
		}
	}); err != nil {
		appLogger.Fatal("Invalid evaluation schedule", logger.ErrorField(err))
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	// Initialize Echo server
	e := echo.New()
	e.HideBanner = true

	// Initialize handlers and routes
	predictionHandler := delivery.NewPredictionHandler(predictionSvc, evaluationSvc, appLogger)
	apiV1 := e.Group("/api/v1")
	predictionsGroup := apiV1.Group("/predictions")
	predictionHandler.RegisterRoutes(predictionsGroup)

	e.GET("/swagger/*", swagger.WrapHandler)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.API.Port)
		appLogger.Info("HTTP server starting", logger.Field("address", addr))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server failed to start", logger.ErrorField(err))
			stop() // trigger shutdown
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	appLogger.Info("Shutting down server...")

	// Gracefully shutdown the server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Fatal("Server forced to shutdown", logger.ErrorField(err))
	}

	appLogger.Info("Server exiting")
}

// @title Portfolio Prediction Service API
// @version 1.0
// @description Multi-horizon stock prediction generation and accuracy evaluation.
// @BasePath /api/v1
func main() {
	rootCmd := &cobra.Command{Use: "prediction-service"}

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing prediction-service CLI: %s\n", err)
		os.Exit(1)
	}
}
