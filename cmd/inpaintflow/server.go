package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/BaSui01/inpaintflow/api/handlers"
	"github.com/BaSui01/inpaintflow/config"
	"github.com/BaSui01/inpaintflow/inpaint"
	"github.com/BaSui01/inpaintflow/inpaint/pipeline"
	"github.com/BaSui01/inpaintflow/internal/lock"
	"github.com/BaSui01/inpaintflow/internal/metrics"
	"github.com/BaSui01/inpaintflow/internal/server"
	"github.com/BaSui01/inpaintflow/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 inpaintflow 的主服务器
type Server struct {
	cfg              *config.Config
	logger           *zap.Logger
	otel             *telemetry.Providers
	metricsNamespace string

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// 推理
	pipeline inpaint.Pipeline
	gate     lock.Gate
	invoker  *inpaint.Invoker

	// Handlers
	healthHandler  *handlers.HealthHandler
	inpaintHandler *handlers.InpaintHandler

	// 指标收集器
	metricsCollector *metrics.Collector

	// Rate limiter 生命周期管理
	rateLimiterCancel context.CancelFunc
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger, otelProviders *telemetry.Providers) *Server {
	return &Server{
		cfg:              cfg,
		logger:           logger,
		otel:             otelProviders,
		metricsNamespace: "inpaintflow",
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务
func (s *Server) Start() error {
	// 1. 初始化指标收集器
	s.metricsCollector = metrics.NewCollector(s.metricsNamespace, s.logger)

	// 2. 加载模型后端
	p, err := pipeline.New(s.modelConfig(), s.logger)
	if err != nil {
		return err
	}
	s.pipeline = p

	// 3. 推理闸门
	gate, err := s.newGate()
	if err != nil {
		return fmt.Errorf("failed to init inference gate: %w", err)
	}
	s.gate = gate

	// 4. 推理调用器
	s.invoker = inpaint.NewInvoker(s.pipeline, s.settings(), s.logger,
		inpaint.WithGate(s.gate),
		inpaint.WithRecorder(s.metricsCollector),
		inpaint.WithTimeout(s.cfg.Inference.Timeout),
		inpaint.WithTracer(otel.Tracer("inpaintflow/inpaint")),
	)

	// 5. 初始化 Handlers
	s.initHandlers()

	// 6. 启动 HTTP 服务器
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// 7. 启动 Metrics 服务器
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.String("provider", s.invoker.Pipeline().Name()),
		zap.String("model", s.invoker.Pipeline().Model()),
		zap.Int("steps", s.invoker.Settings().Steps),
		zap.String("concurrency_mode", s.gate.Mode()),
		zap.Int("concurrency_slots", s.gate.Slots()),
	)

	return nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

func (s *Server) modelConfig() pipeline.Config {
	return pipeline.Config{
		Provider:  s.cfg.Model.Provider,
		Model:     s.cfg.Model.Name,
		BaseURL:   s.cfg.Model.BaseURL,
		APIKey:    s.cfg.Model.APIKey,
		AccountID: s.cfg.Model.AccountID,
		Timeout:   s.cfg.Model.Timeout,
	}
}

func (s *Server) settings() inpaint.Settings {
	g := s.cfg.Generation
	return inpaint.Settings{
		Prompt:         g.Prompt,
		NegativePrompt: g.NegativePrompt,
		GuidanceScale:  g.GuidanceScale,
		Strength:       g.Strength,
		Steps:          g.NumInferenceSteps,
		JPEGQuality:    g.JPEGQuality,
	}
}

// newGate 按 concurrency.mode 构造推理闸门
func (s *Server) newGate() (lock.Gate, error) {
	switch s.cfg.Concurrency.Mode {
	case lock.ModeRedis:
		return lock.NewRedisLock(lock.RedisConfig{
			Addr:         s.cfg.Redis.Addr,
			Password:     s.cfg.Redis.Password,
			DB:           s.cfg.Redis.DB,
			PoolSize:     s.cfg.Redis.PoolSize,
			MinIdleConns: s.cfg.Redis.MinIdleConns,
			TLS:          s.cfg.Redis.TLS,
			Key:          s.cfg.Concurrency.LockKey,
			Slots:        s.cfg.Inference.MaxConcurrent,
			TTL:          s.cfg.Concurrency.LockTTL,
			PollInterval: s.cfg.Concurrency.PollInterval,
		}, s.logger)
	case lock.ModeLocal, "":
		return lock.NewLocalLock(s.cfg.Inference.MaxConcurrent), nil
	default:
		return nil, fmt.Errorf("unknown concurrency mode %q", s.cfg.Concurrency.Mode)
	}
}

// initHandlers 初始化所有 handlers 与就绪检查
func (s *Server) initHandlers() {
	s.healthHandler = handlers.NewHealthHandler(s.logger)

	if pinger, ok := s.pipeline.(pipeline.Pinger); ok {
		s.healthHandler.RegisterCheck(handlers.NewFuncCheck("pipeline", pinger.Ping))
	}
	if rl, ok := s.gate.(*lock.RedisLock); ok {
		s.healthHandler.RegisterCheck(handlers.NewFuncCheck("redis", rl.Ping))
	}

	s.inpaintHandler = handlers.NewInpaintHandler(s.invoker, handlers.InpaintOptions{
		MaxUploadBytes: s.cfg.Server.MaxUploadBytes,
		MaxDimension:   s.cfg.Validation.MaxDimension,
		MultipleOf:     s.cfg.Validation.MultipleOf,
	}, s.metricsCollector, s.logger)

	s.logger.Info("Handlers initialized")
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// routes 注册 API 路由并构建中间件链
func (s *Server) routes(ctx context.Context) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", s.healthHandler.HandleHealth)
	mux.HandleFunc("/ready", s.healthHandler.HandleReady)
	mux.HandleFunc("/readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("/version", s.healthHandler.HandleVersion(handlers.VersionInfo{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
		Provider:  s.pipeline.Name(),
		Model:     s.pipeline.Model(),
	}))

	mux.HandleFunc("/inpaint/", s.inpaintHandler.HandleInpaint)

	return Chain(mux,
		Recovery(s.logger),
		RequestID(),
		OTelTracing(),
		MetricsMiddleware(s.metricsCollector),
		SecurityHeaders(),
		RequestLogger(s.logger),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(ctx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger),
	)
}

// startHTTPServer 启动 API 服务器
func (s *Server) startHTTPServer() error {
	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel

	serverConfig := server.Config{
		Name:              "api",
		Addr:              fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:       s.cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.Server.WriteTimeout,
		IdleTimeout:       2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:    1 << 20, // 1 MB
		ShutdownTimeout:   s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(s.routes(rateLimiterCtx), serverConfig, s.logger)
	return s.httpManager.Start()
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

// startMetricsServer 启动 Metrics 服务器
func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Name:              "metrics",
		Addr:              fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:       s.cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		ShutdownTimeout:   s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)
	return s.metricsManager.Start()
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号或服务器异常，然后优雅关闭
func (s *Server) WaitForShutdown() error {
	managers := make([]*server.Manager, 0, 2)
	for _, m := range []*server.Manager{s.httpManager, s.metricsManager} {
		if m != nil {
			managers = append(managers, m)
		}
	}
	err := server.WaitForSignal(context.Background(), s.logger, managers...)
	s.Shutdown()
	return err
}

// Shutdown 优雅关闭所有服务
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx := context.Background()

	// 0. 停止 rate limiter 清理 goroutine
	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	// 1. 关闭 HTTP 服务器，等待进行中的推理写完
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	// 2. 关闭 Metrics 服务器
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	// 3. 释放推理闸门
	if s.gate != nil {
		if err := s.gate.Close(); err != nil {
			s.logger.Error("Inference gate close error", zap.Error(err))
		}
	}

	// 4. 刷新遥测数据
	if s.otel != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := s.otel.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Telemetry shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("Graceful shutdown completed")
}
