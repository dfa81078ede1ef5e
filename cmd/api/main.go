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

	"github.com/chat-pd-poa/backend/internal/api/handlers"
	"github.com/chat-pd-poa/backend/internal/cache/redis"
	"github.com/chat-pd-poa/backend/internal/evaluation"
	"github.com/chat-pd-poa/backend/internal/extractor"
	"github.com/chat-pd-poa/backend/internal/gaps"
	"github.com/chat-pd-poa/backend/internal/ingestion"
	"github.com/chat-pd-poa/backend/internal/kg/builder"
	"github.com/chat-pd-poa/backend/internal/kg/neo4j"
	"github.com/chat-pd-poa/backend/internal/llm"
	"github.com/chat-pd-poa/backend/internal/metrics"
	"github.com/chat-pd-poa/backend/internal/middleware/ratelimit"
	"github.com/chat-pd-poa/backend/internal/middleware/security"
	reqvalidation "github.com/chat-pd-poa/backend/internal/middleware/validation"
	"github.com/chat-pd-poa/backend/internal/query"
	"github.com/chat-pd-poa/backend/internal/retrieval/kb"
	"github.com/chat-pd-poa/backend/internal/retrieval/legal"
	"github.com/chat-pd-poa/backend/internal/retrieval/semantic"
	"github.com/chat-pd-poa/backend/internal/retrieval/structured"
	"github.com/chat-pd-poa/backend/internal/storage/sqlite"
	"github.com/chat-pd-poa/backend/internal/sweep"
	"github.com/chat-pd-poa/backend/internal/synthesis"
	"github.com/chat-pd-poa/backend/internal/validation"
	"github.com/chat-pd-poa/backend/internal/vector/milvus"
	"github.com/chat-pd-poa/backend/pkg/config"
	appLogger "github.com/chat-pd-poa/backend/pkg/logger"
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

	appLogger.Info("Starting Chat PD-POA API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	neo4jClient, err := neo4j.NewClient(
		cfg.Neo4j.URI,
		cfg.Neo4j.Username,
		cfg.Neo4j.Password,
		cfg.Neo4j.Database,
	)
	if err != nil {
		appLogger.Fatal("Failed to create Neo4j client", zap.Error(err))
	}
	defer neo4jClient.Close(context.Background())

	milvusClient, err := milvus.NewClient(
		cfg.Milvus.Endpoint,
		cfg.Milvus.APIKey,
		cfg.Milvus.CollectionName,
		cfg.Milvus.VectorDim,
	)
	if err != nil {
		appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
	}
	defer milvusClient.Close()

	err = milvusClient.CreateCollection(context.Background())
	if err != nil {
		appLogger.Fatal("Failed to create collection", zap.Error(err))
	}

	cachePolicy := redis.Policy{
		MinConfidence: cfg.Cache.MinConfidence,
		BaseTTL:       time.Duration(cfg.Cache.BaseTTLMin) * time.Minute,
	}
	cacheClient, err := redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, cachePolicy)
	if err != nil {
		appLogger.Warn("Redis unavailable, running without response cache", zap.Error(err))
		cacheClient = nil
	} else {
		defer cacheClient.Close()
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.EmbeddingModel,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
	)

	kgBuilder := builder.NewBuilder(sqliteClient, neo4jClient)
	processor := ingestion.NewProcessor(sqliteClient, milvusClient, llmClient, kgBuilder)

	structuredAgent := structured.New(sqliteClient)
	semanticAgent := semantic.New(llmClient, milvusClient, cfg.Pipeline.SemanticTopK)
	legalAgent := legal.New(neo4jClient, sqliteClient, cfg.Pipeline.LegalPerLevel)
	kbAgent := kb.New(sqliteClient, 5)

	synthesizer := synthesis.New(llmClient)
	validator := validation.New(cfg.Pipeline.ContradictionDelta, cfg.Pipeline.BetaThreshold)
	gapService := gaps.NewService(sqliteClient, llmClient, cfg.Pipeline.GapThreshold)

	queryEngine := query.NewEngine(
		extractor.New(),
		structuredAgent, semanticAgent, legalAgent, kbAgent,
		synthesizer,
		validator,
		gapService,
		cacheClient,
		sqliteClient,
		query.Options{
			SubQueryTimeout: time.Duration(cfg.Pipeline.SubQueryTimeoutSec) * time.Second,
			MemoryTurns:     cfg.Pipeline.SessionMemoryTurns,
		},
	)

	qualityScorer := evaluation.NewScorer()
	sweepRunner := sweep.NewRunner(sqliteClient, queryEngine, qualityScorer, cfg.Sweep.Concurrency)

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

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: 60,
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()
	app.Use(limiter.Middleware())

	app.Use(reqvalidation.Middleware(reqvalidation.Config{
		Logger: appLogger.GetLogger(),
	}))

	queryHandler := handlers.NewQueryHandler(queryEngine)
	gapsHandler := handlers.NewGapsHandler(gapService, sqliteClient, validator)
	adminHandler := handlers.NewAdminHandler(processor, sweepRunner, qualityScorer)
	wsHandler := handlers.NewWebSocketHandler(queryEngine)

	api := app.Group("/api/v1")

	api.Post("/query", queryHandler.HandleQuery)
	api.Post("/validate", gapsHandler.HandleValidate)
	api.Post("/gaps/detect", gapsHandler.HandleDetect)
	api.Get("/gaps", gapsHandler.HandleList)
	api.Put("/gaps/:id/resolve", gapsHandler.HandleResolve)
	api.Post("/sweep", adminHandler.HandleSweep)
	api.Post("/ingest", adminHandler.HandleIngest)
	api.Post("/evaluate", adminHandler.HandleEvaluate)

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

	app.Get("/metrics", metrics.MetricsHandler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/query", websocket.New(wsHandler.HandleConnection))

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
