package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/motordesk/docindex/internal/chunk"
	"github.com/motordesk/docindex/internal/config"
	"github.com/motordesk/docindex/internal/convert"
	"github.com/motordesk/docindex/internal/db"
	dbRedis "github.com/motordesk/docindex/internal/db/redis"
	"github.com/motordesk/docindex/internal/domain"
	"github.com/motordesk/docindex/internal/index"
	flatIdx "github.com/motordesk/docindex/internal/index/flat"
	hnswIdx "github.com/motordesk/docindex/internal/index/hnsw"
	qdrantIdx "github.com/motordesk/docindex/internal/index/qdrant"
	logpkg "github.com/motordesk/docindex/internal/logger"
	"github.com/motordesk/docindex/internal/metrics"
	"github.com/motordesk/docindex/internal/repository/embcache"
	"github.com/motordesk/docindex/internal/repository/registry"
	chiTransport "github.com/motordesk/docindex/internal/transport/chi"
	openaiEmb "github.com/motordesk/docindex/internal/transport/openai"
	healthuc "github.com/motordesk/docindex/internal/usecase/health"
	ingestuc "github.com/motordesk/docindex/internal/usecase/ingest"
	retrievaluc "github.com/motordesk/docindex/internal/usecase/retrieval"
	statsuc "github.com/motordesk/docindex/internal/usecase/stats"
	"github.com/motordesk/docindex/internal/version"
)

func main() {
	// Local development convenience; a missing .env is fine.
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting docindex API server",
		zap.String("build", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("backends", cfg.Index.Backends),
	)

	ctx := context.Background()

	// Register embedding metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()

	// Optional embedding cache store
	var store db.Store
	if len(cfg.Cache.Addrs) > 0 {
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer store.Close()

		if err := store.WaitForReady(ctx, 10*time.Second); err != nil {
			logger.Fatal("Cache store not ready", zap.Error(err))
		}
		logger.Info("Connected to embedding cache", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	// Embedder chain: OpenAI -> Cached
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:        cfg.Embedding.APIKey,
		BaseURL:       cfg.Embedding.BaseURL,
		Model:         cfg.Embedding.Model,
		Dimensions:    cfg.Embedding.Dimensions,
		MaxInputChars: cfg.Embedding.MaxInputChars,
	})
	var embedder domain.Embedder = base
	if store != nil {
		embedder = embcache.New(base, store, metrics.EmbeddingCacheTotal, logger)
	}
	logger.Info("Embedder created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Bool("cached", store != nil),
	)

	// AI-assisted conversion shares the embedding provider credentials.
	var restructurer convert.Restructurer
	if !cfg.Convert.Disable && cfg.Embedding.APIKey != "" {
		clientCfg := openai.DefaultConfig(cfg.Embedding.APIKey)
		if cfg.Embedding.BaseURL != "" {
			clientCfg.BaseURL = cfg.Embedding.BaseURL
		}
		restructurer = convert.NewOpenAIRestructurer(openai.NewClientWithConfig(clientCfg), cfg.Convert.Model)
	}
	converter := convert.New(restructurer)

	reg, err := registry.New(cfg.Storage.DocumentsDir())
	if err != nil {
		logger.Fatal("Failed to open document registry", zap.Error(err))
	}

	backends, closeBackends, err := buildBackends(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to build index backends", zap.Error(err))
	}
	defer closeBackends()

	splitter := chunk.NewSplitter(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap, cfg.Chunking.MaxTextChars)

	ingestSvc := ingestuc.New(converter, reg, splitter, embedder, backends, ingestuc.Options{
		BatchSize:    cfg.Embedding.BatchSize,
		BatchDelay:   time.Duration(cfg.Embedding.BatchDelayMS) * time.Millisecond,
		Dimensions:   cfg.Embedding.Dimensions,
		MaxTextChars: cfg.Chunking.MaxTextChars,
	})
	retrievalSvc := retrievaluc.New(embedder, backends, reg, cfg.Index.DefaultTopK)
	statsSvc := statsuc.New(reg, backends)

	var cachePinger healthuc.CachePinger
	if store != nil {
		cachePinger = store
	}
	healthSvc := healthuc.New(base, cachePinger, backends)

	server := chiTransport.NewServer(ingestSvc, retrievalSvc, statsSvc, healthSvc, logger, cfg.HTTP.MaxUploadMB)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APITokens))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildBackends instantiates the configured index backends in fallback order.
func buildBackends(ctx context.Context, cfg config.Config) ([]index.Backend, func(), error) {
	var backends []index.Backend
	var closers []func()

	for _, name := range cfg.Index.Backends {
		switch name {
		case "flat":
			b, err := flatIdx.New(cfg.Storage.VectorstoreDir())
			if err != nil {
				return nil, nil, fmt.Errorf("flat backend: %w", err)
			}
			backends = append(backends, b)

		case "hnsw":
			b, err := hnswIdx.New(hnswIdx.Config{
				Dir:        cfg.Storage.IndexDir(),
				Dimensions: cfg.Embedding.Dimensions,
				M:          cfg.Index.HNSWM,
				EfSearch:   cfg.Index.HNSWEf,
			})
			if err != nil {
				return nil, nil, fmt.Errorf("hnsw backend: %w", err)
			}
			backends = append(backends, b)

		case "qdrant":
			b, err := qdrantIdx.New(ctx, qdrantIdx.Config{
				Host:       cfg.Index.Qdrant.Host,
				Port:       cfg.Index.Qdrant.Port,
				Collection: cfg.Index.Qdrant.Collection,
				Dimensions: cfg.Embedding.Dimensions,
			})
			if err != nil {
				return nil, nil, fmt.Errorf("qdrant backend: %w", err)
			}
			backends = append(backends, b)
			closers = append(closers, func() { _ = b.Close() })
		}
	}

	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	return backends, closeAll, nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
