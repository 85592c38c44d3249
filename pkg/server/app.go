package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	drepo "StockSage/internal/domain/repository"
	mid "StockSage/internal/middleware"
	"StockSage/internal/usecase"
	pkgch "StockSage/pkg/clickhouse"
	"StockSage/pkg/config"
	xhttp "StockSage/pkg/http"
	applogger "StockSage/pkg/logger"

	"github.com/labstack/echo/v4"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	handler    xhttp.Handler
	pipeline   *mid.ResultPipeline
	processor  *usecase.ResultProcessor
	archive    drepo.Archive
	chClient   *pkgch.Client
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	handler xhttp.Handler,
	pipeline *mid.ResultPipeline,
	processor *usecase.ResultProcessor,
	archive drepo.Archive,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:       cfg,
		log:       log,
		handler:   handler,
		pipeline:  pipeline,
		processor: processor,
		archive:   archive,
		chClient:  chClient,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithRequestLogger(a.log),
	)
	a.httpServer.Echo().GET("/health", a.healthHandler)
	a.httpServer.Echo().GET("/api/health", a.healthHandler)

	// Start archive retry loop
	if a.pipeline != nil {
		a.pipeline.Start(ctx)
	}

	// Start HTTP server
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("server started",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.String("llm_provider", a.cfg.LLM.Provider),
		applogger.String("archive_backend", a.cfg.Archive.Backend),
	)

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	// Stop archive retry loop before closing its backend
	if a.pipeline != nil {
		a.pipeline.Stop()
	}
	if a.processor != nil {
		a.processor.Close()
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}

// healthHandler checks infrastructure dependencies. The analysis path
// itself has no persistent state, so only the optional archive backend
// is probed.
func (a *App) healthHandler(c echo.Context) error {
	status := map[string]string{"status": "ok"}

	if a.archive != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := a.archive.Health(ctx); err != nil {
			status["status"] = "degraded"
			status["archive"] = err.Error()
			return c.JSON(http.StatusServiceUnavailable, status)
		}
		status["archive"] = "ok"
	}

	return c.JSON(http.StatusOK, status)
}
