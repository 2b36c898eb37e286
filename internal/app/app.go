// Package app wires the transcriber service together and runs it.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	grpcapi "github.com/pedrobernardi/sonara-meet-transcriber/internal/api/grpc"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/config"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/events"
	httpapi "github.com/pedrobernardi/sonara-meet-transcriber/internal/http"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/models"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/notify"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/observability"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/observability/logging"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/observability/metrics"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/schema"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/service/engine"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/service/source"
	kafkasource "github.com/pedrobernardi/sonara-meet-transcriber/internal/service/source/kafka"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/service/source/mock"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/storage"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/storage/file"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/storage/postgres"
)

const (
	shutdownTimeout = 10 * time.Second
	storageTimeout  = 5 * time.Second
	kafkaQueueSize  = 256
	watchBuffer     = 32
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config

	Engine *engine.Engine

	store     storage.Store
	saver     *storage.AsyncSaver
	publisher *events.Publisher
	kafka     *notify.Async
	hub       *notify.Broadcaster
	source    source.Source
	obs       *observability.Server
	http      *http.Server
	grpc      *grpc.Server
	health    *health.Server
}

// New builds every component from cfg and restores the stored snapshot.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	a := &Application{Cfg: cfg}
	a.setupLogger()

	appLogger := a.Logger.With().
		Str("method", "New").
		Logger()

	store, backend, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.store = store

	snapshot, err := loadSnapshot(ctx, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	meetingID := cfg.Meeting.ID
	if meetingID == "" && snapshot != nil {
		meetingID = snapshot.MeetingID
	}

	a.publisher = events.New(&events.Config{
		Enabled:         cfg.Kafka.Enabled,
		Brokers:         cfg.Kafka.Brokers,
		TopicTranscript: cfg.Kafka.TopicTranscript,
		TopicStatus:     cfg.Kafka.TopicStatus,
		Principal:       cfg.Kafka.Principal,
	})
	a.kafka = notify.NewAsync("kafka", a.publisher, kafkaQueueSize)
	a.hub = notify.NewBroadcaster(watchBuffer)

	opts := []engine.Option{
		engine.WithObserver(a.kafka),
		engine.WithObserver(a.hub),
	}
	if backend != config.StorageNone {
		a.saver = storage.NewAsyncSaver(store, backend, storageTimeout)
		opts = append(opts, engine.WithPersister(a.saver))
	}

	a.Engine = engine.New(engine.Config{
		MeetingID:             meetingID,
		BufferWindow:          cfg.Engine.BufferWindow,
		ConsolidationInterval: cfg.Engine.ConsolidationInterval,
		NotificationThrottle:  cfg.Engine.NotificationThrottle,
		SpeakerAliases:        cfg.Meeting.SpeakerAliases,
	}, opts...)
	if snapshot != nil && (cfg.Meeting.ID == "" || snapshot.MeetingID == cfg.Meeting.ID) {
		a.Engine.Restore(*snapshot)
	}

	validator := schema.New()
	a.source = newSource(cfg, validator)

	a.obs = observability.NewServer(cfg.Service.MetricsAddr)
	a.http = &http.Server{
		Addr:              cfg.Service.HTTPAddr,
		Handler:           httpapi.NewRouter(a.Engine, a.hub, validator),
		ReadHeaderTimeout: 5 * time.Second,
	}
	a.grpc, a.health = grpcapi.NewServer(a.Engine, a.hub, validator, metrics.DefaultMetrics)

	appLogger.Info().
		Str("meetingId", a.Engine.MeetingID()).
		Str("source", cfg.Source.Kind).
		Str("storage", cfg.Storage.Kind).
		Bool("kafka", cfg.Kafka.Enabled).
		Msg("Sonara transcriber application created")
	return a, nil
}

// setupLogger configures zerolog for the service.
func (a *Application) setupLogger() {
	logging.Init(logging.Config{
		Level:      a.Cfg.Observability.LogLevel,
		Format:     a.Cfg.Observability.LogFormat,
		TimeFormat: time.RFC3339,
	})
	a.Logger = logging.WithComponent("application").With().
		Str("service", a.Cfg.Service.Principal).
		Logger()

	a.Logger.Info().
		Str("logLevel", zerolog.GlobalLevel().String()).
		Str("logFormat", a.Cfg.Observability.LogFormat).
		Msg("Logger setup completed")
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, string, error) {
	switch cfg.Storage.Kind {
	case config.StorageFile:
		return file.New(cfg.Storage.Path), config.StorageFile, nil
	case config.StoragePostgres:
		ctx, cancel := context.WithTimeout(ctx, storageTimeout)
		defer cancel()
		store, err := postgres.New(ctx, cfg.Storage.PostgresDSN, cfg.Meeting.ID)
		if err != nil {
			return nil, "", err
		}
		return store, config.StoragePostgres, nil
	default:
		return storage.Nop{}, config.StorageNone, nil
	}
}

// loadSnapshot returns nil when nothing is stored yet.
func loadSnapshot(ctx context.Context, store storage.Store) (*models.State, error) {
	ctx, cancel := context.WithTimeout(ctx, storageTimeout)
	defer cancel()
	s, err := store.Load(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return &s, nil
}

func newSource(cfg *config.Config, validator *schema.Validator) source.Source {
	switch cfg.Source.Kind {
	case config.SourceKafka:
		return kafkasource.New(kafkasource.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.TopicCaptions,
			GroupID: cfg.Kafka.GroupID,
		}, validator)
	case config.SourceMock:
		return mock.New(mock.DefaultConfig())
	default:
		return source.Nop{}
	}
}

// Start serves every endpoint and feeds the source into the engine until ctx
// is cancelled or a server fails. It does not release resources; call
// Shutdown afterwards.
func (a *Application) Start(ctx context.Context) error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	grpcLis, err := net.Listen("tcp", ":"+a.Cfg.Service.GRPCPort)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	a.StartupTime = time.Now().UTC()
	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Str("grpcPort", a.Cfg.Service.GRPCPort).
		Str("httpAddr", a.Cfg.Service.HTTPAddr).
		Msg("Sonara transcriber starting")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.hub.Run(gctx) })
	g.Go(a.obs.ListenAndServe)
	g.Go(func() error {
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := a.grpc.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := a.source.Run(gctx, a.Engine); err != nil {
			return fmt.Errorf("source: %w", err)
		}
		return nil
	})

	if a.Cfg.Engine.AutoStart {
		a.Engine.StartRecording()
	}
	a.obs.SetReady(true)

	g.Go(func() error {
		<-gctx.Done()
		a.stopServers()
		return nil
	})

	return g.Wait()
}

func (a *Application) stopServers() {
	a.obs.SetReady(false)
	a.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("HTTP shutdown error")
	}
	a.grpc.GracefulStop()
	if err := a.obs.Shutdown(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("Observability shutdown error")
	}
}

// Shutdown flushes buffered captions and releases every resource: the
// recording is stopped so pending sentences reach the transcript, then the
// final snapshot and queued events are written out.
func (a *Application) Shutdown() {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	shutdownLogger.Info().Msg("Sonara transcriber shutting down")

	a.Engine.StopRecording()
	a.Engine.Close()

	if err := a.source.Close(); err != nil {
		shutdownLogger.Warn().Err(err).Msg("Source close error")
	}
	if a.saver != nil {
		a.saver.Close()
	}
	a.kafka.Close()
	if err := a.publisher.Close(); err != nil {
		shutdownLogger.Warn().Err(err).Msg("Kafka publisher close error")
	}
	if err := a.store.Close(); err != nil {
		shutdownLogger.Warn().Err(err).Msg("Storage close error")
	}
	shutdownLogger.Info().Msg("Sonara transcriber stopped")
}
