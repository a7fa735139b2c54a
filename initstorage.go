package main

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"event-scheduler/changefeed"
	"event-scheduler/config"
	"event-scheduler/storage"
)

const initTimeout = 2 * time.Minute

func newInitStorageCmd(conf *viper.Viper, envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "init-storage",
		Short: "Create indexes, tables and queues used by the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(conf, *envFile)
			if err != nil {
				log.Fatalf("config: %v", err)
			}
			configureLogging(cfg.Debug)
			ctx, cancel := context.WithTimeout(cmd.Context(), initTimeout)
			defer cancel()
			return initStorage(ctx, cfg)
		},
	}
}

func initStorage(ctx context.Context, cfg config.Config) error {
	log.Info("storage init starting")

	switch cfg.Backend {
	case config.BackendAzTables:
		t, err := storage.NewTables(cfg.StorageConnectionString, cfg.EventsTable)
		if err != nil {
			return err
		}
		if err := t.EnsureTable(ctx); err != nil {
			return err
		}
		log.WithField("table", cfg.EventsTable).Info("events table ready")
	default:
		conn := storage.NewConnector(cfg.MongoURI, cfg.MongoDatabase)
		defer func() { _ = conn.Disconnect(context.Background()) }()
		db, err := conn.Database(ctx)
		if err != nil {
			return err
		}
		if err := storage.NewMongo(db.Collection(cfg.MongoCollection)).EnsureIndexes(ctx); err != nil {
			return err
		}
		log.WithField("collection", cfg.MongoCollection).Info("startTime index ready")
	}

	if cfg.ChangesQueue != "" {
		pub, err := changefeed.NewQueuePublisher(cfg.StorageConnectionString, cfg.ChangesQueue)
		if err != nil {
			return err
		}
		if err := pub.EnsureQueue(ctx); err != nil {
			return err
		}
		log.WithField("queue", cfg.ChangesQueue).Info("changes queue ready")
	}

	log.Info("storage init complete")
	return nil
}
