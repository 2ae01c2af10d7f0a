package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"proxysharing/app/handler"
	"proxysharing/app/router"
	"proxysharing/internal/jobs"
	"proxysharing/internal/sweep"
	"proxysharing/pkg/config"
	"proxysharing/pkg/delegateproxy"
	"proxysharing/pkg/dispatcher"
	"proxysharing/pkg/eventbus"
	"proxysharing/pkg/lock"
	"proxysharing/pkg/logger"
	"proxysharing/pkg/metrics"
	"proxysharing/pkg/proxy"
	"proxysharing/pkg/proxyspec"
	"proxysharing/pkg/redismirror"
	"proxysharing/pkg/runtimevalue"
	"proxysharing/pkg/seat"

	"github.com/gin-gonic/gin"
)

// Application manages the lifecycle of the entire process.
type Application struct {
	// Infrastructure components
	config      *config.Config
	redisMirror *redismirror.Client
	seatMirror  *redismirror.SeatMirror

	// Core domain components, shared by every dispatcher
	bus       *eventbus.Bus
	registry  *runtimevalue.Registry
	seats     *seat.InMemoryStore
	delegates *delegateproxy.InMemoryStore
	proxies   *proxy.InMemoryStore
	metrics   metrics.Sink

	// One dispatcher per configured spec, keyed by spec id
	dispatchers map[string]*dispatcher.Dispatcher

	// Background sweep
	sweepLock   lock.DistributedLock
	jobsManager *jobs.Manager

	// HTTP admin surface
	adminHandler *handler.AdminHandler
	ginEngine    *gin.Engine
	httpServer   *http.Server

	// Context management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	cleanupFuncs []func()
}

// NewApplication creates a new Application instance.
func NewApplication() *Application {
	ctx, cancel := context.WithCancel(context.Background())
	return &Application{
		ctx:          ctx,
		cancel:       cancel,
		dispatchers:  make(map[string]*dispatcher.Dispatcher),
		cleanupFuncs: make([]func(), 0),
	}
}

// Initialize initializes all application components in dependency order.
func (app *Application) Initialize() error {
	steps := []struct {
		name string
		fn   func() error
	}{
		{"Configuration", app.initConfig},
		{"Logging", app.initLogger},
		{"Redis", app.initRedis},
		{"Runtime Value Registry", app.initRegistry},
		{"Domain Stores", app.initStores},
		{"Dispatchers", app.initDispatchers},
		{"Background Jobs", app.initJobs},
		{"HTTP Server", app.initHTTPServer},
	}

	for _, step := range steps {
		logger.InfoCtx(app.ctx, "Initializing %s...", step.name)
		if err := step.fn(); err != nil {
			return fmt.Errorf("failed to initialize %s: %w", step.name, err)
		}
		logger.InfoCtx(app.ctx, "%s initialized successfully", step.name)
	}

	logger.InfoCtx(app.ctx, "Application initialization completed")
	return nil
}

func (app *Application) initConfig() error {
	if err := config.Init(); err != nil {
		return err
	}
	app.config = config.GlobalConfig
	return nil
}

func (app *Application) initLogger() error {
	if err := logger.Init(); err != nil {
		return err
	}
	app.registerCleanup(func() {
		logger.Sync()
	})
	return nil
}

// initRedis connects the optional cross-replica seat mirror and the
// distributed sweep lock. An empty Redis.Addr keeps both in
// single-instance mode: the mirror is skipped entirely and the lock
// runs with a nil client, always acquiring.
func (app *Application) initRedis() error {
	if app.config.Redis.Addr == "" {
		logger.InfoCtx(app.ctx, "no redis address configured, running single-instance")
		app.sweepLock = lock.NewRedisLock(nil, "proxysharing:sweep-lock")
		return nil
	}

	client, err := redismirror.NewClient(app.config)
	if err != nil {
		return err
	}
	app.redisMirror = client
	app.registerCleanup(func() {
		if err := client.Close(); err != nil {
			logger.WarnCtx(app.ctx, "error closing redis client: %v", err)
		}
	})

	app.seatMirror = redismirror.NewSeatMirror(client)
	app.sweepLock = lock.NewRedisLock(client.GetClient(), "proxysharing:sweep-lock")
	return nil
}

func (app *Application) initRegistry() error {
	app.registry = runtimevalue.NewCoreRegistry()
	return nil
}

func (app *Application) initStores() error {
	app.bus = eventbus.New()
	app.seats = seat.NewInMemoryStore(app.bus)
	if app.seatMirror != nil {
		app.seats.SetMirror(app.seatMirror)
	}
	app.delegates = delegateproxy.NewInMemoryStore()
	app.proxies = proxy.NewInMemoryStore()
	app.metrics = metrics.LogSink{}
	return nil
}

// initDispatchers builds one Dispatcher per spec id named in
// sharing.spec_ids. A production deployment would source the full
// ProxySpec (container spec, sharing extension) from a spec catalog;
// that lookup is out of this module's scope, so each spec here carries
// only the id the dispatcher actually needs.
func (app *Application) initDispatchers() error {
	sharingCfg := app.config.Sharing

	var opts []dispatcher.Option
	if sharingCfg.WaitUnitSeconds > 0 {
		opts = append(opts, dispatcher.WithWaitUnit(time.Duration(sharingCfg.WaitUnitSeconds)*time.Second))
	}
	if sharingCfg.MaxAttempts > 0 {
		opts = append(opts, dispatcher.WithMaxAttempts(sharingCfg.MaxAttempts))
	}
	if sharingCfg.PendingTTLMinutes > 0 {
		opts = append(opts, dispatcher.WithPendingTTL(time.Duration(sharingCfg.PendingTTLMinutes)*time.Minute))
	}
	opts = append(opts, dispatcher.WithMetrics(app.metrics))

	for _, specID := range sharingCfg.SpecIDs {
		spec := &proxyspec.Spec{ID: specID}
		app.dispatchers[specID] = dispatcher.New(spec, app.seats, app.delegates, app.proxies, app.bus, opts...)
		logger.InfoCtx(app.ctx, "dispatcher registered for spec %s", specID)
	}

	return nil
}

func (app *Application) initJobs() error {
	manager := jobs.NewManager(app.ctx)

	sweepInterval := time.Duration(app.config.Sharing.SweepIntervalSeconds) * time.Second
	if sweepInterval <= 0 {
		sweepInterval = 30 * time.Second
	}

	sweepables := make([]sweep.Sweepable, 0, len(app.dispatchers))
	for _, d := range app.dispatchers {
		sweepables = append(sweepables, d)
	}

	manager.Register(sweep.New(sweepables, app.sweepLock, sweepInterval))
	app.jobsManager = manager
	return nil
}

func (app *Application) initHTTPServer() error {
	var mirrorReader handler.SeatMirrorReader
	if app.seatMirror != nil {
		mirrorReader = app.seatMirror
	}
	app.adminHandler = handler.NewAdminHandler(app.seats, app.proxies, app.dispatchers, mirrorReader)
	r := router.NewRouter(app.adminHandler)

	gin.SetMode(app.config.Server.Mode)
	app.ginEngine = gin.New()
	r.Setup(app.ginEngine)

	app.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", app.config.Server.Port),
		Handler: app.ginEngine,
	}
	return nil
}

// Start starts all application components.
func (app *Application) Start() error {
	logger.InfoCtx(app.ctx, "Starting application components...")

	logger.InfoCtx(app.ctx, "Starting background job manager")
	app.jobsManager.Start()
	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.jobsManager.Wait()
	}()

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		logger.InfoCtx(app.ctx, "HTTP server listening on %s", app.httpServer.Addr)
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.FatalCtx(app.ctx, "HTTP server error: %v", err)
		}
	}()

	logger.InfoCtx(app.ctx, "All components started successfully")
	return nil
}

// Shutdown gracefully shuts down the application within timeout.
func (app *Application) Shutdown(timeout time.Duration) error {
	logger.InfoCtx(app.ctx, "Starting graceful shutdown (timeout: %v)...", timeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	app.cancel()
	app.jobsManager.Stop()

	logger.InfoCtx(app.ctx, "Shutting down HTTP server...")
	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.ErrorCtx(app.ctx, "HTTP server shutdown error: %v", err)
	}

	done := make(chan struct{})
	go func() {
		app.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.InfoCtx(app.ctx, "All background tasks completed")
	case <-shutdownCtx.Done():
		logger.WarnCtx(app.ctx, "Shutdown timeout, some tasks may not have completed")
	}

	for i := len(app.cleanupFuncs) - 1; i >= 0; i-- {
		app.cleanupFuncs[i]()
	}

	logger.InfoCtx(app.ctx, "Graceful shutdown completed")
	return nil
}

func (app *Application) registerCleanup(cleanup func()) {
	app.cleanupFuncs = append(app.cleanupFuncs, cleanup)
}
