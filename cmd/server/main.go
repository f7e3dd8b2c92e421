package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/skillmeter-io/skillmeter/internal/cache"
	"github.com/skillmeter-io/skillmeter/internal/config"
	"github.com/skillmeter-io/skillmeter/internal/errors"
	"github.com/skillmeter-io/skillmeter/internal/monitoring"
	"github.com/skillmeter-io/skillmeter/internal/ratelimit"
	"github.com/skillmeter-io/skillmeter/internal/reference"
	"github.com/skillmeter-io/skillmeter/internal/score"
	"github.com/skillmeter-io/skillmeter/internal/security"
	"github.com/skillmeter-io/skillmeter/internal/types"
)

const appVersion = "0.2.0"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	dataDir := getEnvOrDefault("DATA_DIR", "./data")
	configPath := os.Getenv("SCORE_CONFIG")
	redisAddr := os.Getenv("REDIS_ADDR")
	port := getEnvOrDefault("PORT", "8080")

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("Failed to load scoring config", "path", configPath, "error", err)
		os.Exit(1)
	}

	engine, err := score.NewEngine(cfg)
	if err != nil {
		slog.Error("Invalid scoring config", "error", err)
		os.Exit(1)
	}

	refs, err := reference.NewStore(dataDir)
	if err != nil {
		slog.Error("Failed to open reference store", "error", err)
		os.Exit(1)
	}
	defer errors.SafeClose(refs, "reference store")

	resultCache := cache.New(10*time.Minute, redisAddr)
	defer errors.SafeClose(resultCache, "score cache")

	limiter := ratelimit.New(ratelimit.NewRedisClient(redisAddr), ratelimit.DefaultConfig())

	appMetrics := monitoring.NewMetrics()
	appLogger := monitoring.NewLogger()

	srv := &server{
		engine:  engine,
		refs:    refs,
		cache:   resultCache,
		metrics: appMetrics,
		logger:  appLogger,
	}

	r := buildRouter(srv, limiter)

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		slog.Info("Starting score API server", "port", port, "version", appVersion)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("Forced shutdown", "error", err)
	}
}

// server bundles the handler dependencies.
type server struct {
	engine  *score.Engine
	refs    *reference.Store
	cache   *cache.Cache
	metrics *monitoring.Metrics
	logger  *monitoring.Logger
}

func buildRouter(srv *server, limiter *ratelimit.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(monitoring.RequestIDMiddleware())
	r.Use(monitoring.MonitoringMiddleware(srv.metrics, srv.logger))
	r.Use(security.SecurityHeadersMiddleware())
	r.Use(errors.ErrorHandler())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "X-Request-ID"}
	r.Use(cors.New(corsConfig))

	r.GET("/health", srv.handleHealth)
	r.GET("/metrics", srv.handleMetrics)

	api := r.Group("/api/v1")
	if limiter != nil {
		api.Use(ratelimit.Middleware(limiter))
	}
	api.POST("/score/raw", srv.handleScoreRaw)
	api.POST("/score/rank", srv.handleScoreRank)

	return r
}

func (s *server) handleScoreRaw(c *gin.Context) {
	var req types.ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError("Invalid score request", err.Error()))
		return
	}
	if id, ok := s.unknownSignal(req); ok {
		c.Error(errors.NewValidationError("Unknown signal id", id))
		return
	}

	s.computeAndRespond(c, req, func() (*score.ScoreResult, error) {
		return s.engine.ScoreRaw(req.SignalSet())
	})
}

func (s *server) handleScoreRank(c *gin.Context) {
	var req types.ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError("Invalid score request", err.Error()))
		return
	}
	if id, ok := s.unknownSignal(req); ok {
		c.Error(errors.NewValidationError("Unknown signal id", id))
		return
	}

	s.computeAndRespond(c, req, func() (*score.ScoreResult, error) {
		return s.engine.ScoreRank(c.Request.Context(), req.SignalSet(), s.refs,
			score.RankOptions{ReferencePerson: req.ReferencePerson})
	})
}

// unknownSignal reports the first request signal the scoring configuration
// does not consume, so bad input is a 400 instead of surfacing from the
// engine as a configuration fault.
func (s *server) unknownSignal(req types.ScoreRequest) (string, bool) {
	cfg := s.engine.Config()
	for _, in := range req.Signals {
		known := in.ID == cfg.Composite.ReferenceID
		for _, axis := range cfg.Axes {
			for _, sig := range axis.Signals {
				if sig.ID == in.ID {
					known = true
				}
			}
		}
		if !known {
			return in.ID, true
		}
	}
	return "", false
}

// computeAndRespond serves identical requests from cache; the pipelines are
// pure, so a cached result is always current for its inputs.
func (s *server) computeAndRespond(c *gin.Context, req types.ScoreRequest, compute func() (*score.ScoreResult, error)) {
	start := time.Now()

	payload, err := json.Marshal(req)
	if err != nil {
		c.Error(errors.NewInternalError("Failed to serialize request", err))
		return
	}
	key := cache.Key(append([]byte(c.FullPath()), payload...))

	if data, ok := s.cache.Get(c.Request.Context(), key); ok {
		s.metrics.IncrementCacheHit()
		var cached score.ScoreResult
		if err := json.Unmarshal(data, &cached); err == nil {
			s.logger.ScoreLogger(cached.Version, len(cached.Axes), cached.Composite != nil,
				time.Since(start), true)
			c.JSON(http.StatusOK, cached)
			return
		}
	}
	s.metrics.IncrementCacheMiss()

	result, err := compute()
	if err != nil {
		c.Error(err)
		return
	}
	s.metrics.RecordScore(result.Version)

	if data, err := json.Marshal(result); err == nil {
		s.cache.Set(c.Request.Context(), key, data)
	}

	s.logger.ScoreLogger(result.Version, len(result.Axes), result.Composite != nil,
		time.Since(start), false)
	c.JSON(http.StatusOK, result)
}

func (s *server) handleHealth(c *gin.Context) {
	components := map[string]string{
		"engine": "ok",
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := s.refs.HealthCheck(ctx); err != nil {
		components["reference_store"] = "unavailable"
	} else {
		components["reference_store"] = "ok"
	}

	c.JSON(http.StatusOK, types.HealthResponse{
		Status:     "healthy",
		Version:    appVersion,
		Components: components,
	})
}

func (s *server) handleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.metrics.GetStats())
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
