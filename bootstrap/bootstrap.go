// Package bootstrap builds the signature pipeline and its collaborators from
// one configuration. The HTTP server and the operator CLI share it.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/altovisual/artist-management-sub002/config"
	"github.com/altovisual/artist-management-sub002/pkg/logger"
	"github.com/altovisual/artist-management-sub002/service"
)

// App holds every component built from a configuration
type App struct {
	Config     *config.Config
	Store      *service.Store
	Provider   *service.AucoClient
	Templates  *service.TemplateLibrary
	Compositor *service.Compositor
	Renderer   *service.PDFShiftRenderer
	Dispatcher *service.Dispatcher
	Pipeline   *service.Pipeline
	Reconciler *service.Reconciler
	Lock       service.DispatchLock
	// Archive is nil unless MinIO is enabled
	Archive *service.MinioArchive

	closers []func()
}

// InitLogger configures the global logger from cfg
func InitLogger(cfg *config.Config) {
	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
}

// New connects the database, the optional Redis lock and the optional PDF
// archive, then wires the pipeline. Call Close when done.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &App{Config: cfg}

	templates, err := service.NewTemplateLibrary(cfg.Document.DefaultTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}
	app.Templates = templates

	store, err := service.NewStore(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}
	app.Store = store
	app.closers = append(app.closers, store.Close)

	if cfg.Database.AutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			app.Close()
			return nil, err
		}
		logger.Info(ctx, "database schema ensured")
	}

	lock, closeLock := NewDispatchLock(ctx, &cfg.Redis)
	app.Lock = lock
	app.closers = append(app.closers, closeLock)

	deps := service.PipelineDeps{Store: store, Lock: lock}

	if cfg.Minio.Enabled {
		archive, err := service.NewMinioArchive(&cfg.Minio)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to initialize MinIO archive: %w", err)
		}
		if err := archive.EnsureBucket(ctx); err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to ensure MinIO bucket: %w", err)
		}
		app.Archive = archive
		deps.Archive = archive
	}

	app.Provider = service.NewAucoClient(&cfg.Auco)
	app.Compositor = service.NewCompositor(templates, cfg.Document.DateLayout)
	app.Renderer = service.NewPDFShiftRenderer(&cfg.PDF)
	app.Dispatcher = service.NewDispatcher(app.Provider, &cfg.Auco)

	deps.Compositor = app.Compositor
	deps.Renderer = app.Renderer
	deps.Dispatcher = app.Dispatcher
	app.Pipeline = service.NewPipeline(cfg, deps)
	app.Reconciler = service.NewReconciler(store, app.Provider)

	return app, nil
}

// NewDispatchLock returns a Redis-backed lock when an address is configured
// and a no-op lock otherwise. An unreachable Redis is logged, not fatal: the
// lock degrades per dispatch.
func NewDispatchLock(ctx context.Context, cfg *config.RedisConfig) (service.DispatchLock, func()) {
	if cfg.Addr == "" {
		logger.Info(ctx, "redis not configured; dispatch lock disabled")
		return service.NoopDispatchLock{}, func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn(ctx, "redis unreachable; dispatches will run unlocked until it recovers", "addr", cfg.Addr, "error", err)
	} else {
		logger.Info(ctx, "connected to redis", "addr", cfg.Addr)
	}

	ttl := time.Duration(cfg.LockTTLSec) * time.Second
	return service.NewRedisDispatchLock(client, ttl), func() { _ = client.Close() }
}

// Close releases connections in reverse order of creation
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
