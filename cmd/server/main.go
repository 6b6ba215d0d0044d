package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"imgclassd/internal/config"
	"imgclassd/internal/handlers"
	"imgclassd/internal/model"
	"imgclassd/internal/workflow"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newLogger(mode string, debug bool) (*zap.Logger, error) {
	var cfg zap.Config
	if mode == "release" && !debug {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

func main() {
	// .env is optional; real config comes from config.yaml plus the
	// IMGCLASSD_DEBUG / IMGCLASSD_MODEL_CACHE overrides.
	_ = godotenv.Load()

	cfg := config.New()

	logger, err := newLogger(cfg.Server.Mode, cfg.Model.Debug)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := os.MkdirAll(cfg.Model.CacheDir, 0755); err != nil {
		logger.Fatal("failed to create model cache dir", zap.Error(err))
	}

	runtime, err := model.NewRuntime(cfg.Model.CacheDir, logger)
	if err != nil {
		logger.Fatal("failed to initialize model runtime", zap.Error(err))
	}
	defer runtime.Close()

	feed := workflow.NewFeed(logger, 20)
	ctrl := workflow.NewController(workflow.NewRuntime(runtime), feed, logger, workflow.Options{
		MaxUploadBytes: cfg.Upload.MaxSize,
		AllowedFormats: cfg.Upload.AllowedTypes,
		TopK:           cfg.Model.TopK,
		Device:         cfg.Model.Device,
	})

	handler := handlers.NewHandler(ctrl, feed, logger)

	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(handlers.Logger(logger))
	r.Use(handlers.CORS())
	r.MaxMultipartMemory = cfg.Upload.MaxSize

	r.Static("/static", cfg.Server.StaticDir)
	r.StaticFile("/", filepath.Join(cfg.Server.StaticDir, "index.html"))

	r.GET("/health", handler.Health)

	api := r.Group("/api/v1")
	{
		api.GET("/models", handler.Models)
		api.POST("/upload", handler.Upload)
		api.POST("/classify", handler.Classify)
		api.GET("/status", handler.Status)
	}

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info("server starting",
		zap.String("addr", cfg.Server.Port),
		zap.String("device", cfg.Model.Device),
		zap.String("model_cache", cfg.Model.CacheDir))
	if err := server.ListenAndServe(); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}
