package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	//nolint:gosec // only exposed if pprofAddr config is set
	_ "net/http/pprof"

	"github.com/go-co-op/gocron"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	r "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ethpandaops/structlog-decoder/pkg/api"
	"github.com/ethpandaops/structlog-decoder/pkg/config"
	"github.com/ethpandaops/structlog-decoder/pkg/ethereum"
	"github.com/ethpandaops/structlog-decoder/pkg/nametag"
	"github.com/ethpandaops/structlog-decoder/pkg/redis"
	"github.com/ethpandaops/structlog-decoder/pkg/tracer"
)

type Server struct {
	log       logrus.FieldLogger
	config    *config.Config
	namespace string

	redis  *r.Client
	pool   *ethereum.Pool
	cache  *nametag.Cache
	tracer *tracer.Service
	memory *MemoryStatsCollector

	scheduler *gocron.Scheduler

	metricsServer *http.Server
	pprofServer   *http.Server
	healthServer  *http.Server
	apiServer     *http.Server
}

func NewServer(ctx context.Context, log logrus.FieldLogger, namespace string, conf *config.Config) (*Server, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	var (
		redisClient *r.Client
		redisPrefix string
	)

	if conf.NameTags.Store == nametag.StoreRedis {
		client, err := redis.New(ctx, conf.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis client: %w", err)
		}

		redisClient = client
		redisPrefix = conf.Redis.Prefix
	}

	pool := ethereum.NewPool(log.WithField("component", "ethereum"), namespace, &conf.Ethereum)

	var caller nametag.ChainCaller
	if pool.HasExecutionNodes() {
		caller = pool
	}

	resolver, cache, err := nametag.Setup(log, &conf.NameTags, caller, redisClient, redisPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to set up name tags: %w", err)
	}

	var nodes tracer.NodeSource
	if pool.HasExecutionNodes() {
		nodes = pool
	}

	svc, err := tracer.New(log, &conf.Decoder, nodes, resolver, conf.NameTags.Concurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	return &Server{
		log:       log,
		config:    conf,
		namespace: namespace,
		redis:     redisClient,
		pool:      pool,
		cache:     cache,
		tracer:    svc,
		memory:    NewMemoryStatsCollector(log, conf.MemoryMonitor),
		scheduler: gocron.NewScheduler(time.UTC),
	}, nil
}

func (s *Server) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := s.cache.Load(ctx); err != nil {
		s.log.WithError(err).Warn("Failed to load name cache, starting empty")
	}

	// Servers are built before any goroutine runs so stop sees them all.
	s.metricsServer = s.newMetricsServer()
	s.apiServer = s.newAPIServer()

	if s.config.PProfAddr != nil {
		s.pprofServer = s.newPProfServer()
	}

	if s.config.HealthCheckAddr != nil {
		s.healthServer = s.newHealthServer()
	}

	g, ctx := errgroup.WithContext(ctx)

	for _, srv := range []*http.Server{s.metricsServer, s.apiServer, s.pprofServer, s.healthServer} {
		if srv == nil {
			continue
		}

		g.Go(func() error {
			return ignoreClosed(srv.ListenAndServe())
		})
	}

	g.Go(func() error {
		s.pool.Start(ctx)

		return nil
	})

	g.Go(func() error {
		s.memory.Run(ctx)

		return nil
	})

	if err := s.scheduleCacheFlush(ctx); err != nil {
		return err
	}

	// Wait for shutdown signal
	g.Go(func() error {
		<-ctx.Done()

		return s.stop()
	})

	return g.Wait()
}

func ignoreClosed(err error) error {
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) scheduleCacheFlush(ctx context.Context) error {
	_, err := s.scheduler.Every(s.config.NameTags.FlushInterval).Do(func() {
		if err := s.cache.Save(ctx); err != nil {
			s.log.WithError(err).Warn("Failed to flush name cache")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule name cache flush: %w", err)
	}

	s.scheduler.StartAsync()

	return nil
}

func (s *Server) stop() error {
	cleanupCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.log.Info("Starting graceful shutdown...")

	s.scheduler.Stop()

	if err := s.cache.Save(cleanupCtx); err != nil {
		s.log.WithError(err).Error("failed to save name cache")
	}

	if err := s.pool.Stop(cleanupCtx); err != nil {
		s.log.WithError(err).Error("failed to stop pool")
	}

	if s.redis != nil {
		s.log.Info("Closing Redis connection...")

		if err := s.redis.Close(); err != nil {
			s.log.WithError(err).Error("failed to close redis")
		}
	}

	for name, srv := range map[string]*http.Server{
		"api":     s.apiServer,
		"pprof":   s.pprofServer,
		"health":  s.healthServer,
		"metrics": s.metricsServer,
	} {
		if srv == nil {
			continue
		}

		if err := srv.Shutdown(cleanupCtx); err != nil {
			s.log.WithError(err).WithField("server", name).Error("failed to shutdown http server")
		}
	}

	s.log.Info("Decoder stopped gracefully")

	return nil
}

func (s *Server) newMetricsServer() *http.Server {
	s.log.WithField("addr", s.config.MetricsAddr).Info("Starting metrics server")

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &http.Server{
		Addr:              s.config.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
	}
}

func (s *Server) newAPIServer() *http.Server {
	s.log.WithField("addr", s.config.APIAddr).Info("Starting API server")

	mux := http.NewServeMux()
	api.NewHandler(s.log, s.tracer).RegisterRoutes(mux)

	return &http.Server{
		Addr:              s.config.APIAddr,
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
	}
}

func (s *Server) newPProfServer() *http.Server {
	s.log.WithField("addr", *s.config.PProfAddr).Info("Starting pprof server")

	return &http.Server{
		Addr:              *s.config.PProfAddr,
		ReadHeaderTimeout: 120 * time.Second,
	}
}

func (s *Server) newHealthServer() *http.Server {
	s.log.WithField("addr", *s.config.HealthCheckAddr).Info("Starting healthcheck server")

	return &http.Server{
		Addr:              *s.config.HealthCheckAddr,
		ReadHeaderTimeout: 120 * time.Second,
		Handler:           s.healthHandler(),
	}
}

// healthHandler reports unhealthy while nodes are configured but none is ready.
func (s *Server) healthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if s.pool.HasExecutionNodes() && !s.pool.HasHealthyExecutionNodes() {
			w.WriteHeader(http.StatusServiceUnavailable)

			return
		}

		w.WriteHeader(http.StatusOK)
	})
}
