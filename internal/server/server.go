/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server assembles the station process: storage, event bus, audio
// backend, playback services and the HTTP surface.
package server

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gorm.io/gorm"

	"github.com/friendsincode/skald_radio/internal/api"
	"github.com/friendsincode/skald_radio/internal/audio"
	"github.com/friendsincode/skald_radio/internal/audio/lavalink"
	"github.com/friendsincode/skald_radio/internal/blacklist"
	"github.com/friendsincode/skald_radio/internal/catalog"
	"github.com/friendsincode/skald_radio/internal/clock"
	"github.com/friendsincode/skald_radio/internal/config"
	"github.com/friendsincode/skald_radio/internal/db"
	"github.com/friendsincode/skald_radio/internal/engine"
	"github.com/friendsincode/skald_radio/internal/eventbus"
	"github.com/friendsincode/skald_radio/internal/events"
	"github.com/friendsincode/skald_radio/internal/jingle"
	"github.com/friendsincode/skald_radio/internal/logbuffer"
	"github.com/friendsincode/skald_radio/internal/playlist"
	"github.com/friendsincode/skald_radio/internal/scheduler"
	"github.com/friendsincode/skald_radio/internal/selector"
	"github.com/friendsincode/skald_radio/internal/sources"
	"github.com/friendsincode/skald_radio/internal/stats"
	"github.com/friendsincode/skald_radio/internal/telemetry"
	"github.com/friendsincode/skald_radio/internal/votes"
	"github.com/friendsincode/skald_radio/internal/watchdog"
)

// Server bundles the HTTP API and the playback services.
type Server struct {
	cfg    *config.Config
	logger zerolog.Logger

	router        chi.Router
	httpServer    *http.Server
	metricsServer *http.Server

	database *gorm.DB
	bus      events.Broker
	manager  *audio.Manager
	engine   *engine.Engine
	sched    *scheduler.Service
	agg      *stats.Aggregator
	socket   *lavalink.Socket

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New wires the full station. A nil gateway falls back to the no-op
// implementation so the process can run without a chat platform attached.
func New(cfg *config.Config, gateway audio.Gateway, logBuf *logbuffer.Buffer, logger zerolog.Logger) (*Server, error) {
	if gateway == nil {
		gateway = audio.NopGateway{}
	}

	database, err := db.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.RegisterCallbacks(database); err != nil {
		return nil, fmt.Errorf("register db callbacks: %w", err)
	}
	if err := db.Migrate(database); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	bus, err := newBus(cfg, logger)
	if err != nil {
		return nil, err
	}

	store, err := newSourceStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load programme catalog: %w", err)
	}

	bl, err := blacklist.Load(cfg.BlacklistPath, logger)
	if err != nil {
		return nil, fmt.Errorf("load blacklist: %w", err)
	}

	client := lavalink.NewClient(cfg.LavalinkURL, cfg.LavalinkPassword, logger)
	manager := audio.NewManager(client)
	socket := lavalink.NewSocket(client, manager, bus, cfg.BotUserID, logger)

	sched := scheduler.New(cat, bus, logger)
	pools := playlist.NewPools()
	loader := playlist.NewLoader(pools, store, client, bus, playlist.LoaderConfig{
		HighFile:   path.Join(cfg.PlaylistsDir, cfg.HighPlaylist),
		MediumFile: path.Join(cfg.PlaylistsDir, cfg.MediumPlaylist),
		LowFile:    path.Join(cfg.PlaylistsDir, cfg.LowPlaylist),
		DelayMin:   cfg.LoadDelayMin,
		DelayMax:   cfg.LoadDelayMax,
	}, logger)
	sel := selector.New(pools, cfg.MaxAutoQueueDuration, logger)
	jingles := jingle.New(store, client, bus, cfg.JingleMinInterval, cfg.JingleMaxInterval, logger)
	arbiter := votes.New(gateway, bus, cfg.OwnerID, logger)
	dog := watchdog.New(gateway, logger)

	statsStore := stats.NewStore(database, logger)
	agg := stats.NewAggregator(manager, gateway, statsStore, bl, database, cfg.StatsInterval, logger)

	eng := engine.New(engine.Config{
		TickInterval:       cfg.TickInterval,
		OwnerID:            cfg.OwnerID,
		UserQueueLimit:     cfg.UserQueueLimit,
		MaxRequestDuration: cfg.MaxRequestDuration,
		DefaultJingleDir:   cfg.JinglesDir,
	}, engine.Deps{
		Manager:   manager,
		Gateway:   gateway,
		Search:    client,
		Scheduler: sched,
		Pools:     pools,
		Loader:    loader,
		Selector:  sel,
		Jingles:   jingles,
		Votes:     arbiter,
		Watchdog:  dog,
		Stats:     statsStore,
		Bus:       bus,
		Clock:     clock.Real{},
	}, logger)

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		database: database,
		bus:      bus,
		manager:  manager,
		engine:   eng,
		sched:    sched,
		agg:      agg,
		socket:   socket,
	}
	s.buildRouters(api.New(eng, sched, manager, statsStore, bus, logBuf, []byte(cfg.JWTSigningKey), logger))

	return s, nil
}

func newBus(cfg *config.Config, logger zerolog.Logger) (events.Broker, error) {
	nodeID := cfg.InstanceID
	if nodeID == "" {
		nodeID = uuid.NewString()
	}

	switch cfg.EventBusBackend {
	case config.BusMemory:
		return events.NewBus(), nil

	case config.BusRedis:
		redisCfg := eventbus.DefaultRedisConfig()
		redisCfg.Addr = cfg.RedisAddr
		redisCfg.Password = cfg.RedisPassword
		redisCfg.DB = cfg.RedisDB
		return eventbus.NewRedisBus(redisCfg, nodeID, logger)

	case config.BusNATS:
		natsCfg := eventbus.DefaultNATSConfig()
		natsCfg.URL = cfg.NATSURL
		return eventbus.NewNATSBus(natsCfg, nodeID, logger)

	default:
		return nil, fmt.Errorf("unsupported event bus backend %q", cfg.EventBusBackend)
	}
}

func newSourceStore(cfg *config.Config, logger zerolog.Logger) (sources.Store, error) {
	switch cfg.SourceBackend {
	case config.SourceFS:
		return sources.NewFilesystemStore(".", logger), nil

	case config.SourceS3:
		return sources.NewS3Store(context.Background(), sources.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKeyID,
			SecretKey: cfg.S3SecretAccessKey,
		}, logger)

	default:
		return nil, fmt.Errorf("unsupported source backend %q", cfg.SourceBackend)
	}
}

func (s *Server) buildRouters(apiHandler *api.API) {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Timeout(60 * time.Second))
	router.Use(telemetry.MetricsMiddleware)

	apiHandler.Routes(router)
	s.router = router

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.HTTPBind, s.cfg.HTTPPort),
		Handler:           otelhttp.NewHandler(router, "http.api"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", telemetry.Handler())
	s.metricsServer = &http.Server{
		Addr:              s.cfg.MetricsBind,
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Start launches the background services: engine loop, stats aggregation,
// node socket, metrics listener.
func (s *Server) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	s.bgWG.Add(3)
	go func() {
		defer s.bgWG.Done()
		if err := s.engine.Run(ctx); err != nil && err != context.Canceled {
			s.logger.Error().Err(err).Msg("engine exited")
		}
	}()
	go func() {
		defer s.bgWG.Done()
		if err := s.agg.Run(ctx); err != nil && err != context.Canceled {
			s.logger.Error().Err(err).Msg("stats aggregator exited")
		}
	}()
	go func() {
		defer s.bgWG.Done()
		if err := s.socket.Run(ctx); err != nil && err != context.Canceled {
			s.logger.Error().Err(err).Msg("node socket exited")
		}
	}()

	go func() {
		s.logger.Info().Str("addr", s.metricsServer.Addr).Msg("metrics server listening")
		if err := s.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("metrics server error")
		}
	}()
}

// HTTPServer exposes the main listener for the caller to run.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Engine exposes the playback engine, for embedding behind a bot gateway.
func (s *Server) Engine() *engine.Engine {
	return s.engine
}

// Close stops background services and releases resources.
func (s *Server) Close() error {
	if s.bgCancel != nil {
		s.bgCancel()
	}
	s.bgWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.metricsServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn().Err(err).Msg("metrics server shutdown failed")
	}

	if err := s.bus.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("event bus close failed")
	}

	if err := db.Close(s.database); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
