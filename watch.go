package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"event-scheduler/changefeed"
	"event-scheduler/config"
)

func newWatchChangesCmd(conf *viper.Viper, envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "watch-changes",
		Short: "Follow the change queue and log every event mutation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(conf, *envFile)
			if err != nil {
				log.Fatalf("config: %v", err)
			}
			if cfg.ChangesQueue == "" {
				return errors.Errorf("%s is not set", config.KeyChangesQueue)
			}
			logger := configureLogging(cfg.Debug)
			consumer, err := changefeed.NewQueueConsumer(cfg.StorageConnectionString, cfg.ChangesQueue, logger)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			logger.WithField("queue", cfg.ChangesQueue).Info("watching changes")
			return consumer.Run(ctx, logChange(logger))
		},
	}
}

func logChange(logger *log.Logger) func(context.Context, changefeed.Change) error {
	return func(ctx context.Context, ch changefeed.Change) error {
		logger.WithFields(log.Fields{
			"type": ch.Type,
			"id":   ch.ID,
			"at":   time.Unix(0, ch.Time).UTC().Format(time.RFC3339Nano),
		}).Info("event changed")
		return nil
	}
}
