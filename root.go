package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRootCmd() *cobra.Command {
	conf := viper.New()
	var envFile string

	root := &cobra.Command{
		Use:          "event-scheduler",
		Short:        "GraphQL API for scheduling events",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env",
		"Optional dotenv file. Environment variables take precedence over it.")

	serve := newServeCmd(conf, &envFile)
	root.AddCommand(serve, newInitStorageCmd(conf, &envFile), newWatchChangesCmd(conf, &envFile))
	// serve is the default when no subcommand is given.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())
	return root
}
