// Package server wires configuration, storage and transports into a running
// identity service and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/beesrs/identity/internal/cryptox"
	"github.com/beesrs/identity/internal/logging"
	"github.com/beesrs/identity/internal/server/auth"
	"github.com/beesrs/identity/internal/server/config"
	gs "github.com/beesrs/identity/internal/server/grpc"
	"github.com/beesrs/identity/internal/server/identity"
	"github.com/beesrs/identity/internal/server/limiters"
	"github.com/beesrs/identity/internal/server/metrics"
	"github.com/beesrs/identity/internal/server/notify"
	"github.com/beesrs/identity/internal/server/repositories/repomanager"
	"github.com/beesrs/identity/internal/server/services"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	tokens  *auth.Manager
	metrics *metrics.Recorder
	service *services.AuthService
	closers []io.Closer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(os.Stdout, c.LogLevel)

	db, err := repomanager.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app := &App{config: c, logger: logger, db: db, closers: []io.Closer{db}}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		app.close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	hasher, err := cryptox.NewHasher(cryptox.DefaultParams)
	if err != nil {
		app.close()
		return nil, err
	}

	limiter, err := app.newLimiter(ctx)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("redis init error: %w", err)
	}

	notifier, err := newNotifier(ctx, c, logger)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("notifier init error: %w", err)
	}

	app.tokens = auth.NewManager([]byte(c.SecretKey), c.Issuer, c.AccessTokenValidityDuration)
	app.metrics = metrics.NewRecorder()
	app.service = services.NewAuthService(db, rm, c, services.Dependencies{
		Hasher:   hasher,
		Tokens:   app.tokens,
		Identity: identity.NewGoogleValidator(c.GoogleClientID),
		Notifier: notifier,
		Limiter:  limiter,
		Metrics:  app.metrics,
		Logger:   logger,
	})

	return app, nil
}

// newLimiter returns a Redis-backed limiter when an address is configured
// and a no-op one otherwise.
func (app *App) newLimiter(ctx context.Context) (limiters.Limiter, error) {
	if app.config.RedisAddr == "" {
		return limiters.Noop{}, nil
	}
	client, err := limiters.NewRedisClient(ctx, app.config.RedisAddr)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, client)
	return limiters.NewRedisLimiter(client, "identity:reset", app.config.ResetRequestLimit, app.config.ResetRequestWindow), nil
}

func newNotifier(ctx context.Context, c *config.Config, logger logging.Logger) (notify.Sender, error) {
	switch c.NotificationBackend {
	case "", "log":
		return notify.NewLogSender(logger), nil
	case "s3":
		client, err := notify.NewS3Client(ctx, notify.S3Settings{
			User:         c.S3RootUser,
			Password:     c.S3RootPassword,
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
		})
		if err != nil {
			return nil, err
		}
		return notify.NewS3OutboxSender(client, c.S3Bucket), nil
	default:
		return nil, fmt.Errorf("unknown notification backend %q", c.NotificationBackend)
	}
}

func (app *App) close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			app.logger.Warn(context.Background(), "close failed", "error", err)
		}
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.service, app.tokens, app.metrics)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startMetricsServer(ctx context.Context, cancelFunc context.CancelFunc) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", app.metrics.Handler())

	srv := &http.Server{Addr: app.config.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info(ctx, "Starting metrics server", "address", app.config.MetricsAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until a termination signal arrives or a server fails, then
// releases the database and Redis connections.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startMetricsServer(ctx, cancelFunc)
	}()

	wg.Wait()
	app.close()
	app.logger.Info(context.Background(), "App stopped")
}
