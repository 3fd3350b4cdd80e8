package main

import (
	"github.com/spf13/cobra"

	"github.com/koustreak/pgdescribe/internal/config"
	"github.com/koustreak/pgdescribe/internal/logger"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "pgdescribe",
		Short:         "Describe the parameters and result columns of Postgres statements",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	cmd.AddCommand(newDescribeCmd(opts), newServeCmd(opts))
	return cmd
}

// load reads the config and builds the logger every subcommand shares.
func (o *rootOptions) load() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	log := logger.New(cfg.Log)
	cfg.Describe.Logger = log
	return cfg, log, nil
}
