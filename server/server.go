package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/customeros/idlesync/api"
	"github.com/customeros/idlesync/config"
	"github.com/customeros/idlesync/internal/cron"
	"github.com/customeros/idlesync/internal/logger"
	"github.com/customeros/idlesync/internal/tracing"
	"github.com/customeros/idlesync/services"
)

const shutdownTimeout = 15 * time.Second

type Server struct {
	config       *config.Config
	log          logger.Logger
	httpServer   *http.Server
	router       *gin.Engine
	services     *services.Services
	cronManager  *cron.CronManager
	tracerCloser io.Closer
}

func NewServer(cfg *config.Config) (*Server, error) {
	if cfg.Watch == nil {
		return nil, errors.New("no account configuration loaded")
	}

	appLogger := logger.NewAppLogger(cfg.Logger)
	if err := appLogger.InitLogger(); err != nil {
		return nil, errors.Wrap(err, "could not initialize logger")
	}

	tracer, closer, err := tracing.NewJaegerTracer(cfg.Tracing, appLogger)
	if err != nil {
		return nil, errors.Wrap(err, "could not initialize jaeger tracer")
	}
	opentracing.SetGlobalTracer(tracer)

	svcs, err := services.InitServices(cfg, appLogger)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}

	s := &Server{
		config:       cfg,
		log:          appLogger,
		services:     svcs,
		cronManager:  cron.NewCronManager(cfg.CronConfig, appLogger, svcs.Supervisor),
		tracerCloser: closer,
	}

	if cfg.AppConfig.StatusAddr != "" {
		gin.SetMode(gin.ReleaseMode)
		s.router = gin.New()
		api.RegisterRoutes(s.router, svcs.Supervisor, cfg.AppConfig.APIKey)
		s.httpServer = &http.Server{
			Addr:              cfg.AppConfig.StatusAddr,
			Handler:           s.router,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	return s, nil
}

func (s *Server) recoverWithJaeger(name string) {
	if r := recover(); r != nil {
		span := opentracing.GlobalTracer().StartSpan(
			fmt.Sprintf("panic.%s", name),
		)
		defer span.Finish()

		ext.Error.Set(span, true)

		span.LogKV(
			"event", "panic",
			"process", name,
			"error", fmt.Sprintf("%v", r),
			"stack", string(debug.Stack()),
		)

		s.log.Error("Panic recovered", zap.String("process", name), zap.Any("panic", r), zap.String("stack", string(debug.Stack())))
	}
}

func (s *Server) wrapGoroutine(name string, fn func()) {
	defer s.recoverWithJaeger(name)
	fn()
}

// Run starts every component and blocks until SIGINT or SIGTERM.
func (s *Server) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.RunContext(ctx)
}

// RunContext is Run with the shutdown trigger supplied by the caller.
func (s *Server) RunContext(ctx context.Context) error {
	defer s.log.Sync()

	workersDone := make(chan struct{})
	go s.wrapGoroutine("supervisor", func() {
		defer close(workersDone)
		if err := s.services.Supervisor.Run(ctx); err != nil {
			s.log.Error("Supervisor error", zap.Error(err))
		}
	})

	if err := s.cronManager.StartCron(); err != nil {
		s.log.Error("Could not start cron manager", zap.Error(err))
	}

	if s.httpServer != nil {
		go s.wrapGoroutine("http_server", func() {
			s.log.Info("Starting HTTP server", zap.String("addr", s.httpServer.Addr))
			if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.log.Error("HTTP server error", zap.Error(err))
			}
		})
	}
	s.log.Infof("idlesync is now running with %d account(s). Press Ctrl+C to exit.", len(s.config.Watch.Accounts))

	<-ctx.Done()
	return s.shutdown(workersDone)
}

func (s *Server) shutdown(workersDone <-chan struct{}) error {
	defer s.recoverWithJaeger("shutdown")
	s.log.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	s.cronManager.Stop()

	select {
	case <-workersDone:
		s.log.Info("All account workers stopped")
	case <-shutdownCtx.Done():
		s.log.Warn("Account workers did not stop in time, forcing exit")
	}

	if err := s.services.Close(); err != nil {
		s.log.Error("Error closing event publisher", zap.Error(err))
	}
	if s.tracerCloser != nil {
		_ = s.tracerCloser.Close()
	}

	return nil
}
