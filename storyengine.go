// Package storyengine turns an editor's story submission into a publishable
// web story: it resolves the cover image, extracts the custom style and
// story pages from uploaded HTML, fills the master template and packs the
// result with its metadata manifest.
//
// The same pipeline backs the storyengine CLI and the HTTP API served by App.
package storyengine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/eringen/storyengine/asset"
	"github.com/eringen/storyengine/blob"
	"github.com/eringen/storyengine/bundle"
	"github.com/eringen/storyengine/logger"
	"github.com/eringen/storyengine/oracle"
)

// App wires the storage, resolver, emitter, template cache and oracle
// together and serves them over HTTP.
type App struct {
	Config Config
	Echo   *echo.Echo

	log       logger.Logger
	metrics   *Metrics
	registry  *prometheus.Registry
	store     blob.Store
	completer oracle.Completer
	client    *http.Client
	resolver  *asset.Resolver
	emitter   *bundle.Emitter
	templates *TemplateCache
	drafter   *oracle.Drafter
	limiter   *SubmissionLimiter
	now       func() time.Time
	newRand   func() *rand.Rand
}

// Option configures additional App behavior.
type Option func(*App)

// WithStore replaces the blob store built from Config.Storage.
func WithStore(s blob.Store) Option {
	return func(a *App) { a.store = s }
}

// WithCompleter replaces the Anthropic completer built from Config.Oracle.
func WithCompleter(c oracle.Completer) Option {
	return func(a *App) { a.completer = c }
}

// WithRand sets the source of per-submission random generators.
func WithRand(fn func() *rand.Rand) Option {
	return func(a *App) { a.newRand = fn }
}

// WithClock sets the time source used for timestamps and archive entries.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// WithLogger sets the application logger.
func WithLogger(l logger.Logger) Option {
	return func(a *App) { a.log = l }
}

// WithHTTPClient sets the client used to fetch source images.
func WithHTTPClient(c *http.Client) Option {
	return func(a *App) { a.client = c }
}

// WithRegistry registers metrics on reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(a *App) { a.registry = reg }
}

// New creates an App from cfg. Defaults are applied to cfg first.
func New(cfg Config, opts ...Option) (*App, error) {
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("storyengine: invalid config: %w", err)
	}

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
		now:    time.Now,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.log == nil {
		l, err := logger.New(cfg.Log)
		if err != nil {
			return nil, fmt.Errorf("storyengine: init logger: %w", err)
		}
		a.log = l
	}
	a.metrics = NewMetrics(a.registry)

	if a.store == nil {
		s, err := newStore(cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("storyengine: init storage: %w", err)
		}
		a.store = s
	}

	if a.completer == nil && cfg.Oracle.APIKey != "" {
		c, err := oracle.NewAnthropic(cfg.Oracle)
		if err != nil {
			return nil, fmt.Errorf("storyengine: init oracle: %w", err)
		}
		a.completer = c
	}
	if a.completer != nil {
		a.drafter = oracle.NewDrafter(a.completer)
	}

	resolverOpts := []asset.Option{asset.WithLogger(a.log.With(logger.String("component", "asset")))}
	if a.client != nil {
		resolverOpts = append(resolverOpts, asset.WithHTTPClient(a.client))
	}
	a.resolver = asset.NewResolver(cfg.Assets, a.store, resolverOpts...)

	a.emitter = bundle.NewEmitter(a.store, cfg.Storage.HTMLBucket, cfg.Site.StoryBase,
		bundle.WithClock(a.now),
		bundle.WithLogger(a.log.With(logger.String("component", "bundle"))))

	a.templates = NewTemplateCache(cfg.Template.Path, cfg.Template.CacheTTL)
	a.limiter = NewSubmissionLimiter(cfg.Server.RateLimit, cfg.Server.RateWindow)

	a.Echo.HideBanner = true
	a.Echo.HidePort = true
	a.setupMiddleware()
	a.setupRoutes()

	return a, nil
}

// newStore builds the blob store selected by cfg.Driver. Remote and disk
// stores are wrapped with retries.
func newStore(cfg StorageConfig) (blob.Store, error) {
	switch cfg.Driver {
	case DriverMemory:
		return blob.NewMemoryStore(), nil
	case DriverDir:
		return blob.NewRetrying(blob.NewDirStore(cfg.Root), cfg.Retry), nil
	case DriverS3:
		s3, err := blob.NewS3Store(cfg.S3)
		if err != nil {
			return nil, err
		}
		return blob.NewRetrying(s3, cfg.Retry), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Logger returns the application logger.
func (a *App) Logger() logger.Logger { return a.log }

// Metrics returns the pipeline collectors.
func (a *App) Metrics() *Metrics { return a.metrics }

// Start serves the HTTP API on Config.Server.Addr until Shutdown is called.
func (a *App) Start() error {
	a.log.Info("storyengine listening", logger.String("addr", a.Config.Server.Addr))
	if err := a.Echo.Start(a.Config.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Echo.Shutdown(ctx)
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.limiter != nil {
		a.limiter.Stop()
	}
	_ = a.log.Sync()
	return nil
}
