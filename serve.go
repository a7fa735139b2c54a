package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"event-scheduler/api"
	"event-scheduler/changefeed"
	"event-scheduler/config"
	"event-scheduler/storage"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(conf *viper.Viper, envFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the GraphQL API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(conf, *envFile)
			if err != nil {
				log.Fatalf("config: %v", err)
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().Int("port", 0, "Listen port (env PORT)")
	_ = conf.BindPFlag(config.KeyPort, cmd.Flags().Lookup("port"))
	return cmd
}

func configureLogging(debug bool) *log.Logger {
	logger := log.StandardLogger()
	if debug {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

// openBackend connects the configured store. Connection failures are fatal
// for the caller; the returned closer releases the connection.
func openBackend(ctx context.Context, cfg config.Config) (storage.Backend, func(context.Context) error, error) {
	switch cfg.Backend {
	case config.BackendAzTables:
		t, err := storage.NewTables(cfg.StorageConnectionString, cfg.EventsTable)
		if err != nil {
			return nil, nil, err
		}
		if err := t.Ping(ctx); err != nil {
			return nil, nil, err
		}
		return t, func(context.Context) error { return nil }, nil
	default:
		conn := storage.NewConnector(cfg.MongoURI, cfg.MongoDatabase)
		db, err := conn.Database(ctx)
		if err != nil {
			return nil, nil, err
		}
		return storage.NewMongo(db.Collection(cfg.MongoCollection)), conn.Disconnect, nil
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	logger := configureLogging(cfg.Debug)
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer func() {
		if err := closeBackend(context.Background()); err != nil {
			logger.WithError(err).Warn("close storage")
		}
	}()
	logger.WithField("backend", cfg.Backend).Info("connected to event store")

	var store storage.Backend = backend
	if cfg.RedisConnectionString != "" {
		opts, err := config.RedisOptions(cfg.RedisConnectionString)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		rc := redis.NewClient(opts)
		defer rc.Close()
		store = storage.NewCache(backend, rc, cfg.CacheTTL)
		logger.WithField("ttl", cfg.CacheTTL).Info("redis read cache enabled")
	}

	var notifier api.Notifier
	if cfg.ChangesQueue != "" {
		pub, err := changefeed.NewQueuePublisher(cfg.StorageConnectionString, cfg.ChangesQueue)
		if err != nil {
			log.Fatalf("changes queue: %v", err)
		}
		dispatcher := changefeed.NewDispatcher(pub, cfg.Notify, logger)
		defer dispatcher.Close()
		notifier = dispatcher
		logger.WithField("queue", cfg.ChangesQueue).Info("change notifications enabled")
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(newLogExporter(logger))),
	)
	otel.SetTracerProvider(tp)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	schema, err := api.NewSchema(api.NewResolver(store, notifier, logger))
	if err != nil {
		log.Fatalf("schema: %v", err)
	}

	e := newEcho()
	api.Register(e, schema, store, logger)

	addr := ":" + strconv.Itoa(cfg.Port)
	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", addr).Info("graphql server listening")
		errCh <- e.Start(addr)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(middleware.Decompress())
	e.Use(middleware.Recover())
	e.Use(echoprometheus.NewMiddleware("event_scheduler"))
	e.GET("/metrics", echoprometheus.NewHandler())
	return e
}
