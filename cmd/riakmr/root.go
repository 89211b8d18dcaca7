package main

import (
	"fmt"

	"github.com/danmuck/riakmr/internal/config"
	"github.com/danmuck/riakmr/internal/logging"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	cfgFile  string
	logLevel string
	cfg      config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "riakmr",
		Short:         "Run map-reduce jobs against a Riak protocol-buffers endpoint",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}
	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (.toml, .yaml or .yml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log level")

	root.AddCommand(newFetchCmd(opts))
	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newConfigCmd())
	return root
}

func (o *rootOptions) load() error {
	cfg := config.Default()
	if o.cfgFile != "" {
		loaded, err := config.Load(o.cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if o.logLevel != "" {
		if _, ok := logging.ParseLevel(o.logLevel); !ok {
			return fmt.Errorf("unknown log level %q", o.logLevel)
		}
		cfg.Log.Level = o.logLevel
	}
	o.cfg = cfg
	logging.ConfigureWith(cfg.Logging(logging.DefaultConfig(logging.ProfileRuntime)))
	return nil
}
