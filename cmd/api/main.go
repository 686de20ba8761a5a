package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/labelscan/backend/internal/api/handlers"
	"github.com/labelscan/backend/internal/cache/additive"
	"github.com/labelscan/backend/internal/cache/redis"
	"github.com/labelscan/backend/internal/classify"
	"github.com/labelscan/backend/internal/enrich"
	"github.com/labelscan/backend/internal/ingestion"
	"github.com/labelscan/backend/internal/llm"
	"github.com/labelscan/backend/internal/metrics"
	"github.com/labelscan/backend/internal/middleware/ratelimit"
	"github.com/labelscan/backend/internal/middleware/security"
	"github.com/labelscan/backend/internal/middleware/validation"
	"github.com/labelscan/backend/internal/registry"
	"github.com/labelscan/backend/internal/scan"
	"github.com/labelscan/backend/internal/storage/sqlite"
	"github.com/labelscan/backend/internal/translate"
	"github.com/labelscan/backend/internal/vector/milvus"
	"github.com/labelscan/backend/pkg/config"
	appLogger "github.com/labelscan/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting label scanner API server")
	metrics.Register()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, scan caching disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	var vectorClient *milvus.Client
	if cfg.Vector.Endpoint != "" {
		vectorClient, err = milvus.NewClient(cfg.Vector.Endpoint, cfg.Vector.CollectionName, cfg.Vector.VectorDim)
		if err != nil {
			appLogger.Warn("Milvus unavailable, guide retrieval disabled", zap.Error(err))
			vectorClient = nil
		} else {
			defer vectorClient.Close()
			if err := vectorClient.CreateCollection(context.Background()); err != nil {
				appLogger.Fatal("Failed to create collection", zap.Error(err))
			}
		}
	}

	var llmClient *llm.Client
	if cfg.LLM.APIKey != "" {
		llmClient = llm.NewClient(llm.Config{
			APIKey:         cfg.LLM.APIKey,
			Model:          cfg.LLM.Model,
			VisionModel:    cfg.LLM.VisionModel,
			EmbeddingModel: cfg.LLM.EmbeddingModel,
			Temperature:    cfg.LLM.Temperature,
			MaxTokens:      cfg.LLM.MaxTokens,
			TimeoutSec:     cfg.LLM.TimeoutSec,
		})
	} else {
		appLogger.Warn("No LLM API key configured, classification and translation disabled")
	}

	registryClient := registry.NewClient(registry.Config{
		BaseURL:    cfg.Registry.BaseURL,
		APIVersion: cfg.Registry.APIVersion,
		HeaderKey:  cfg.Registry.HeaderKey,
		QueryKey:   cfg.Registry.QueryKey,
		Timeout:    time.Duration(cfg.Registry.TimeoutSec) * time.Second,
		DataDir:    cfg.Registry.DataDir,
	})

	store := additive.NewStore(sqliteClient, time.Duration(cfg.Registry.TTLDays)*24*time.Hour)

	var translator *translate.Translator
	if cfg.Translate.Enabled && llmClient != nil {
		translator = translate.NewTranslator(llmClient)
	} else {
		translator = translate.NewTranslator(nil)
	}

	enrichService := enrich.NewService(store, registryClient, translator,
		time.Duration(cfg.Registry.PaceMS)*time.Millisecond)

	var scanCache classify.Cache
	var invalidator ingestion.ScanCache
	if redisClient != nil {
		scanCache = redisClient
		invalidator = redisClient
	}

	var scanClassifier scan.Classifier
	var ocrReader scan.OCRReader
	if llmClient != nil {
		var index classify.VectorIndex
		if vectorClient != nil {
			index = vectorClient
		}
		scanClassifier = classify.NewClassifier(llmClient, llmClient, index, enrichService, scanCache)
		ocrReader = llmClient
	}

	processor := ingestion.NewProcessor(sqliteClient, vectorClient, llmClient, invalidator)
	scanEngine := scan.NewEngine(sqliteClient, scanClassifier, ocrReader)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))

	limiter := ratelimit.New(ratelimit.Config{Logger: appLogger.GetLogger()})
	defer limiter.Stop()
	app.Use(limiter.Middleware())
	app.Use(validation.Middleware(validation.Config{Logger: appLogger.GetLogger()}))

	scanHandler := handlers.NewScanHandler(scanEngine)
	additivesHandler := handlers.NewAdditivesHandler(enrichService, registryClient)
	guideHandler := handlers.NewGuideHandler(processor)
	reportHandler := handlers.NewReportHandler()
	wsHandler := handlers.NewWebSocketHandler(scanEngine)

	api := app.Group("/api/v1")

	api.Post("/scan", scanHandler.HandleScan)
	api.Post("/scan/image", scanHandler.HandleImageScan)
	api.Get("/scan/history", scanHandler.GetScanHistory)

	api.Get("/additives/probe", additivesHandler.ProbeRegistry)
	api.Get("/additives/recent", additivesHandler.RecentAdditives)
	api.Get("/additives/:code/fip", additivesHandler.GetFipSummary)
	api.Get("/additives/:code", additivesHandler.GetAdditive)
	api.Post("/additives/refresh", additivesHandler.RefreshAdditives)

	api.Post("/guide", guideHandler.UploadGuide)
	api.Post("/report", reportHandler.MakeReport)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	app.Get("/metrics", metrics.Handler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/scan", websocket.New(wsHandler.HandleConnection))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
