// Package app initializes and holds the long-lived services of one rosterctl
// invocation, acting as a dependency injection container for the commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/JakeFAU/rosterctl/internal/api"
	"github.com/JakeFAU/rosterctl/internal/archive"
	"github.com/JakeFAU/rosterctl/internal/archive/gcs"
	"github.com/JakeFAU/rosterctl/internal/archive/local"
	"github.com/JakeFAU/rosterctl/internal/catalog"
	"github.com/JakeFAU/rosterctl/internal/config"
	"github.com/JakeFAU/rosterctl/internal/history"
	"github.com/JakeFAU/rosterctl/internal/history/postgres"
	"github.com/JakeFAU/rosterctl/internal/id/uuid"
	"github.com/JakeFAU/rosterctl/internal/metrics"
	"github.com/JakeFAU/rosterctl/internal/progress"
	"github.com/JakeFAU/rosterctl/internal/progress/sinks"
	"github.com/JakeFAU/rosterctl/internal/publisher"
	pubsubpublisher "github.com/JakeFAU/rosterctl/internal/publisher/pubsub"
	"github.com/JakeFAU/rosterctl/internal/session"
	"github.com/JakeFAU/rosterctl/internal/stream"
	"github.com/JakeFAU/rosterctl/internal/submit"
)

const shutdownTimeout = 10 * time.Second

// App holds the shared services of one command invocation.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	sessionID string
	loc       *time.Location

	registry *prometheus.Registry
	client   *api.Client
	catalog  *catalog.Loader
	hub      *progress.Hub
	metrics  *metrics.Server

	history   history.Repository
	publisher publisher.Publisher
	archive   archive.Store

	closers   []func(context.Context) error
	closeOnce sync.Once
}

// Option overrides a collaborator, mainly for tests.
type Option func(*options)

type options struct {
	history   history.Repository
	publisher publisher.Publisher
	archive   archive.Store
	transport http.RoundTripper
}

// WithHistory uses repo instead of dialing Postgres.
func WithHistory(repo history.Repository) Option {
	return func(o *options) { o.history = repo }
}

// WithPublisher uses pub instead of dialing Pub/Sub.
func WithPublisher(pub publisher.Publisher) Option {
	return func(o *options) { o.publisher = pub }
}

// WithArchive uses store instead of the configured archive.
func WithArchive(store archive.Store) Option {
	return func(o *options) { o.archive = store }
}

// WithTransport replaces the base HTTP transport of the API client.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// New builds the container from cfg. Optional integrations are only dialed
// when configured; failure to reach one of them aborts start-up.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	sessionID, err := uuid.NewUUIDGenerator().NewID()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	a := &App{
		cfg:       cfg,
		logger:    logger.With(zap.String("session_id", sessionID)),
		sessionID: sessionID,
		loc:       loc,
		registry:  metrics.NewRegistry(),
	}
	if err := a.init(ctx, o); err != nil {
		a.Close()
		return nil, err
	}
	a.logger.Debug("application services initialized")
	return a, nil
}

func (a *App) init(ctx context.Context, o options) error {
	clientMetrics, err := metrics.NewClientMetrics(a.registry)
	if err != nil {
		return err
	}
	transport := o.transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	a.client, err = api.NewClient(api.Options{
		BaseURL:   a.cfg.API.BaseURL,
		Timeout:   a.cfg.Timeout(),
		UserAgent: a.cfg.API.UserAgent,
		SessionID: a.sessionID,
		Transport: clientMetrics.InstrumentRoundTripper(transport),
		Logger:    a.logger.Named("api"),
	})
	if err != nil {
		return fmt.Errorf("init api client: %w", err)
	}
	a.catalog = catalog.NewLoader(a.client, a.logger.Named("catalog"))

	a.history = o.history
	if a.history == nil && a.cfg.HistoryEnabled() {
		store, err := postgres.NewRunStore(ctx, postgres.Config{DSN: a.cfg.History.DSN, Table: a.cfg.History.Table})
		if err != nil {
			return fmt.Errorf("init run history: %w", err)
		}
		a.history = store
		a.addCloser(func(context.Context) error { store.Close(); return nil })
		a.logger.Info("run history enabled", zap.String("table", a.cfg.History.Table))
	}

	a.publisher = o.publisher
	if a.publisher == nil && a.cfg.NotificationsEnabled() {
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
		pub, err := pubsubpublisher.New(ctx, a.cfg.PubSub.ProjectID, a.cfg.PubSub.Topic)
		if err != nil {
			return fmt.Errorf("init notifications: %w", err)
		}
		a.publisher = pub
		a.addCloser(func(context.Context) error { return pub.Close() })
		a.logger.Info("completion notifications enabled", zap.String("topic", pub.Topic()))
	}
	a.archive = o.archive

	promSink, err := sinks.NewPrometheusSink(a.registry)
	if err != nil {
		return err
	}
	hubSinks := []progress.Sink{sinks.NewLogSink(a.logger.Named("progress")), promSink}
	if a.history != nil {
		hubSinks = append(hubSinks, sinks.NewHistorySink(a.history, a.logger.Named("history")))
	}
	if a.publisher != nil {
		hubSinks = append(hubSinks, sinks.NewNotifySink(a.publisher, a.logger.Named("notify")))
	}
	a.hub = progress.NewHub(progress.Config{
		BufferSize:   a.cfg.Progress.BufferSize,
		MaxBatchWait: a.cfg.MaxBatchWait(),
		BaseContext:  context.WithoutCancel(ctx),
		Logger:       a.logger.Named("hub"),
	}, hubSinks...)

	if a.cfg.Metrics.Addr != "" {
		srv, err := metrics.Start(a.cfg.Metrics.Addr, a.registry, a.logger.Named("metrics"))
		if err != nil {
			return err
		}
		a.metrics = srv
	}
	return nil
}

func (a *App) addCloser(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the session-scoped logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// SessionID identifies this invocation in headers, events and history rows.
func (a *App) SessionID() string { return a.sessionID }

// Location is the zone log stamps are rendered in.
func (a *App) Location() *time.Location { return a.loc }

// Client returns the workflow service client.
func (a *App) Client() *api.Client { return a.client }

// Registry returns the client metrics registry.
func (a *App) Registry() *prometheus.Registry { return a.registry }

// Emitter returns the progress hub.
func (a *App) Emitter() progress.Emitter { return a.hub }

// MetricsAddr returns the bound metrics address, or "" when disabled.
func (a *App) MetricsAddr() string {
	if a.metrics == nil {
		return ""
	}
	return a.metrics.Addr()
}

// Catalog loads the field catalog once. On failure it returns an empty
// catalog with the error; callers decide whether that is fatal.
func (a *App) Catalog(ctx context.Context) (catalog.Catalog, error) {
	return a.catalog.Load(ctx)
}

// History returns the run history repository, if configured.
func (a *App) History() (history.Repository, bool) {
	return a.history, a.history != nil
}

// NewSession builds a session that submits through the client and reports to
// the hub. observer, when set, sees every applied stream update.
func (a *App) NewSession(observer stream.Observer) *session.Session {
	return session.New(session.Options{
		Sender: submit.NewGateway(a.client, a.logger.Named("submit")),
		Opener: a.client,
		Stream: stream.Config{
			MaxEventBytes: a.cfg.Stream.MaxEventBytes,
			Location:      a.loc,
			Logger:        a.logger.Named("stream"),
			Observer:      observer,
		},
		Emitter:   a.hub,
		Logger:    a.logger.Named("session"),
		SessionID: a.sessionID,
	})
}

// Archive returns the download store, creating it on first use. A GCS bucket
// takes precedence over the local directory.
func (a *App) Archive(ctx context.Context) (archive.Store, error) {
	if a.archive != nil {
		return a.archive, nil
	}
	if bucket := a.cfg.Archive.GCSBucket; bucket != "" {
		store, err := gcs.New(ctx, gcs.Config{Bucket: bucket, Prefix: a.cfg.Archive.Prefix})
		if err != nil {
			return nil, fmt.Errorf("init gcs archive: %w", err)
		}
		a.addCloser(func(context.Context) error { return store.Close() })
		a.archive = store
		a.logger.Info("archiving downloads to gcs", zap.String("bucket", bucket))
		return a.archive, nil
	}
	store, err := local.New(local.Config{BaseDir: a.cfg.Archive.Dir})
	if err != nil {
		return nil, fmt.Errorf("init local archive: %w", err)
	}
	a.archive = store
	return a.archive, nil
}

// Close flushes the hub, then releases integrations in reverse order and
// stops the metrics server. Only the first call has an effect.
func (a *App) Close() {
	a.closeOnce.Do(a.close)
}

func (a *App) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			a.logger.Warn("error flushing progress hub", zap.Error(err))
		}
		if dropped := a.hub.Dropped(); dropped > 0 {
			a.logger.Warn("progress events dropped", zap.Int64("count", dropped))
		}
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if a.metrics != nil {
		if err := a.metrics.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("error closing application services", zap.Error(err))
	}
}
