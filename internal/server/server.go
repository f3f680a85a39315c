/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/infoscreen/internal/api"
	"github.com/friendsincode/infoscreen/internal/cache"
	"github.com/friendsincode/infoscreen/internal/config"
	"github.com/friendsincode/infoscreen/internal/db"
	"github.com/friendsincode/infoscreen/internal/eventbus"
	"github.com/friendsincode/infoscreen/internal/events"
	"github.com/friendsincode/infoscreen/internal/leadership"
	"github.com/friendsincode/infoscreen/internal/logbuffer"
	"github.com/friendsincode/infoscreen/internal/playlist"
	"github.com/friendsincode/infoscreen/internal/slides"
	"github.com/friendsincode/infoscreen/internal/storage"
	"github.com/friendsincode/infoscreen/internal/telemetry"
	"github.com/friendsincode/infoscreen/internal/webhooks"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg           *config.Config
	logger        zerolog.Logger
	router        chi.Router
	httpServer    *http.Server
	metricsServer *http.Server
	closers       []func() error

	db        *gorm.DB
	cache     *cache.Cache
	bus       events.Broker
	publisher *playlist.Publisher
	election  *leadership.Election
	api       *api.API
	webhooks  *webhooks.Service
	logBuffer *logbuffer.Buffer

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies. logBuf may be nil.
func New(cfg *config.Config, logBuf *logbuffer.Buffer, logger zerolog.Logger) (*Server, error) {
	for _, warn := range cfg.LegacyEnvWarnings {
		logger.Warn().Msg(warn)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware("infoscreen-api"))
	router.Use(telemetry.MetricsMiddleware)
	// The event stream is long-lived; every other route gets a deadline.
	router.Use(func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(60 * time.Second)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, r)
				return
			}
			timeout(next).ServeHTTP(w, r)
		})
	})

	srv := &Server{
		cfg:       cfg,
		logger:    logger,
		router:    router,
		logBuffer: logBuf,
	}

	if err := srv.initDependencies(); err != nil {
		_ = srv.Close()
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	srv.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort),
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	if cfg.MetricsBind != "" {
		srv.metricsServer = &http.Server{
			Addr:              cfg.MetricsBind,
			Handler:           telemetry.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'; base-uri 'none'")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

// requestLogger writes one zerolog line per request.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	logger = logger.With().Str("component", "http").Logger()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request")
		})
	}
}

func (s *Server) initDependencies() error {
	database, err := db.Connect(s.cfg)
	if err != nil {
		return err
	}
	s.db = database
	s.DeferClose(func() error { return db.Close(database) })
	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	store, err := storage.New(context.Background(), s.cfg)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	s.logger.Info().Str("backend", string(s.cfg.StorageBackend)).Msg("playlist storage ready")

	if s.cfg.CacheEnabled() {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.RedisAddr = s.cfg.RedisAddr
		cacheCfg.RedisPassword = s.cfg.RedisPassword
		cacheCfg.RedisDB = s.cfg.RedisDB
		if s.cfg.CacheTTL > 0 {
			cacheCfg.ManifestTTL = s.cfg.CacheTTL
		}
		manifestCache, err := cache.New(cacheCfg, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("cache initialization failed, continuing without cache")
		} else {
			s.cache = manifestCache
			s.DeferClose(manifestCache.Close)
		}
	}

	s.bus = s.initEventBus()

	builder := playlist.NewBuilder(s.cfg.ExpansionPolicy, s.logger)
	s.publisher = playlist.NewPublisher(database, builder, store, s.cfg.PublishInterval, s.logger)
	s.publisher.SetCache(s.cache)
	s.publisher.SetBus(s.bus)

	slideSvc := slides.NewService(database, s.bus, s.logger)
	s.api = api.New(database, slideSvc, s.publisher, s.bus, s.logger)
	s.api.SetCache(s.cache)
	s.api.SetLogBuffer(s.logBuffer)

	s.webhooks = webhooks.NewService(database, s.bus, s.logger)
	s.api.SetWebhooks(s.webhooks)

	if s.cfg.LeaderElectionEnabled {
		electionCfg := leadership.DefaultConfig()
		electionCfg.RedisAddr = s.cfg.RedisAddr
		electionCfg.RedisPassword = s.cfg.RedisPassword
		electionCfg.RedisDB = s.cfg.RedisDB
		election, err := leadership.NewElection(electionCfg, s.logger)
		if err != nil {
			return fmt.Errorf("init leader election: %w", err)
		}
		s.election = election
	}

	return nil
}

// initEventBus connects the configured cross-instance bus and falls back to
// an in-process bus when it is unreachable.
func (s *Server) initEventBus() events.Broker {
	switch s.cfg.EventBus {
	case config.EventBusNATS:
		natsCfg := eventbus.DefaultNATSConfig()
		natsCfg.URL = s.cfg.NATSURL
		natsCfg.Token = s.cfg.NATSToken
		bus, err := eventbus.NewNATSBus(natsCfg, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("NATS unavailable, events stay local to this instance")
			return events.NewBus()
		}
		s.DeferClose(bus.Close)
		return bus

	case config.EventBusRedis:
		redisCfg := eventbus.DefaultRedisConfig()
		redisCfg.Addr = s.cfg.RedisAddr
		redisCfg.Password = s.cfg.RedisPassword
		redisCfg.DB = s.cfg.RedisDB
		bus, err := eventbus.NewRedisBus(redisCfg, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Redis event bus unavailable, events stay local to this instance")
			return events.NewBus()
		}
		s.DeferClose(bus.Close)
		return bus

	default:
		return events.NewBus()
	}
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// MetricsServer exposes the metrics listener, or nil when metrics share the API listener.
func (s *Server) MetricsServer() *http.Server {
	return s.metricsServer
}

// Publisher exposes the playlist publisher for one-shot commands.
func (s *Server) Publisher() *playlist.Publisher {
	return s.publisher
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	// Publisher loop (leader-aware if configured, otherwise direct)
	if s.election != nil {
		runner := leadership.NewRunner(s.election, s.publisher.Run, s.logger)
		s.goBackground(ctx, "leader-aware publisher", runner.Run)
	} else {
		s.goBackground(ctx, "publisher", s.publisher.Run)
	}

	s.goBackground(ctx, "webhooks", s.webhooks.Run)

	s.goBackground(ctx, "db metrics", func(ctx context.Context) error {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			db.UpdateConnectionMetrics(s.db)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	})
}

func (s *Server) goBackground(ctx context.Context, name string, run func(context.Context) error) {
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error().Err(err).Str("worker", name).Msg("background worker exited")
		}
	}()
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		response := `{"status":"ok"`
		if s.election != nil {
			if s.election.IsLeader() {
				response += `,"leader":true`
			} else {
				response += `,"leader":false`
			}
		}
		response += `}`
		_, _ = w.Write([]byte(response))
	})

	if s.cfg.MetricsBind == "" {
		s.router.Handle("/metrics", telemetry.Handler())
	}

	s.api.Routes(s.router)
}
