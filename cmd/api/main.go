package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/AZEINMU1911/CVATS-Vibe/internal/application"
	appanalysis "github.com/AZEINMU1911/CVATS-Vibe/internal/application/analysis"
	appdocs "github.com/AZEINMU1911/CVATS-Vibe/internal/application/documents"
	"github.com/AZEINMU1911/CVATS-Vibe/internal/config"
	domai "github.com/AZEINMU1911/CVATS-Vibe/internal/domain/ai"
	"github.com/AZEINMU1911/CVATS-Vibe/internal/domain/analysis"
	"github.com/AZEINMU1911/CVATS-Vibe/internal/domain/documents"
	geminiclient "github.com/AZEINMU1911/CVATS-Vibe/internal/infra/ai/gemini"
	openaiclient "github.com/AZEINMU1911/CVATS-Vibe/internal/infra/ai/openai"
	mysqlp "github.com/AZEINMU1911/CVATS-Vibe/internal/infra/db/mysql"
	postgresp "github.com/AZEINMU1911/CVATS-Vibe/internal/infra/db/postgres"
	"github.com/AZEINMU1911/CVATS-Vibe/internal/infra/delivery"
	"github.com/AZEINMU1911/CVATS-Vibe/internal/infra/extract"
	"github.com/AZEINMU1911/CVATS-Vibe/internal/infra/httpserver"
	minioStore "github.com/AZEINMU1911/CVATS-Vibe/internal/infra/storage"
	"github.com/AZEINMU1911/CVATS-Vibe/internal/logger"
	"github.com/AZEINMU1911/CVATS-Vibe/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	lg, err := logger.New(cfg.Log.JSON, cfg.Log.Debug)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer lg.Sync()

	ctx := context.Background()

	// connect database
	var (
		docRepo      documents.Repository
		analysisRepo analysis.Repository
	)
	var db *sql.DB
	switch cfg.Database.Driver {
	case "postgres":
		conn, err := postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			lg.Fatal("postgres connect error", zap.Error(err))
		}
		defer conn.Close()
		docRepo = postgresp.NewDocumentRepository(conn)
		analysisRepo = postgresp.NewAnalysisRepository(conn)
		db = conn
	default:
		conn, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			lg.Fatal("mysql connect error", zap.Error(err))
		}
		defer conn.Close()
		docRepo = mysqlp.NewDocumentRepository(conn)
		analysisRepo = mysqlp.NewAnalysisRepository(conn)
		db = conn
	}

	// init minio
	store, err := minioStore.New(ctx,
		cfg.Minio.Endpoint,
		cfg.Minio.Region,
		cfg.Minio.BucketName,
		cfg.Minio.AccessKey,
		cfg.Minio.SecretKey,
		cfg.Minio.UseSSL,
	)
	if err != nil {
		lg.Fatal("minio init error", zap.Error(err))
	}

	extractor := extract.New()
	resolver := delivery.NewResolver(nil, store, cfg.MaxFileBytes(), lg)

	// init AI provider
	var aiClient domai.Client
	switch cfg.AI.Provider {
	case "gemini":
		client, err := geminiclient.NewClient(ctx, geminiclient.Config{
			APIKey:          cfg.AI.GeminiAPIKey,
			Model:           cfg.AI.Model,
			MaxOutputTokens: cfg.AI.MaxOutputTokens,
			MaxRetries:      cfg.AI.MaxRetries,
			MaxBackoff:      cfg.AIMaxBackoff(),
			Deadline:        cfg.AIDeadline(),
			Production:      cfg.Production(),
		}, lg)
		if err != nil {
			lg.Fatal("gemini init error", zap.Error(err))
		}
		aiClient = client
	case "openai":
		aiClient = openaiclient.NewClient(cfg.AI.OpenAIAPIKey, cfg.AI.Model, extractor.Extract)
	default:
		lg.Warn("no AI provider configured, all analyses use the local scorer")
	}

	analysisThrottle := middleware.NewSlidingWindow(cfg.ThrottleWindow(), cfg.Throttle.Limit)
	httpLimiter := middleware.NewSlidingWindow(time.Minute, 120)

	clock := application.SystemClock{}

	docsSvc := &appdocs.Service{
		Repo:         docRepo,
		Blobs:        store,
		Clock:        clock,
		Logger:       lg,
		MaxFileBytes: cfg.MaxFileBytes(),
	}

	analysisSvc := &appanalysis.Service{
		Documents:       docRepo,
		Analyses:        analysisRepo,
		Resolver:        resolver,
		AI:              aiClient,
		Extractor:       extractor,
		Throttle:        analysisThrottle,
		Clock:           clock,
		Logger:          lg,
		MaxFileBytes:    cfg.MaxFileBytes(),
		DefaultKeywords: cfg.Analysis.DefaultKeywords,
	}

	handler := httpserver.NewRouter(httpserver.Deps{
		Documents: docsSvc,
		Analysis:  analysisSvc,
		Limiter:   httpLimiter,
		APIKeys:   cfg.Auth.APIKeys,
		Checkers: map[string]middleware.HealthChecker{
			"database": &middleware.DatabaseHealthChecker{DB: db},
		},
		Logger: lg,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		lg.Info("server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lg.Fatal("server error", zap.Error(err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	lg.Info("shutting down server")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		lg.Error("shutdown error", zap.Error(err))
	}
}
