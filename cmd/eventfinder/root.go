package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eventfinder/agent/internal/config"
	"github.com/eventfinder/agent/internal/logging"
)

// rootOptions holds global flags and the configuration they resolve to.
type rootOptions struct {
	configFile string
	format     string

	v         *viper.Viper
	cfg       config.Config
	logCloser io.Closer
}

// newRootCommand creates the root command for the eventfinder CLI.
func newRootCommand() *cobra.Command {
	opts := &rootOptions{v: config.NewViper()}

	cmd := &cobra.Command{
		Use:          "eventfinder",
		Short:        "Offline-first event cache and sync agent",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.format != "text" && opts.format != "json" {
				return fmt.Errorf("invalid format %q: must be text or json", opts.format)
			}

			cfg, err := config.Load(opts.v, opts.configFile)
			if err != nil {
				return err
			}
			opts.cfg = cfg

			closer, err := logging.Setup(cfg.Log)
			if err != nil {
				return fmt.Errorf("setting up logging: %w", err)
			}
			opts.logCloser = closer
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logCloser != nil {
				opts.logCloser.Close()
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (default ./eventfinder.yaml or ~/.config/eventfinder/eventfinder.yaml)")
	flags.StringVar(&opts.format, "format", "text", "output format (json|text)")
	flags.String("listen", "", "HTTP listen address")
	flags.String("data-dir", "", "directory for the SQLite cache")
	flags.String("remote-url", "", "base URL of the remote event API")
	flags.String("schedule", "", "sync schedule: cron expression, @every spec or duration")

	opts.v.BindPFlag("listen", flags.Lookup("listen"))
	opts.v.BindPFlag("data_dir", flags.Lookup("data-dir"))
	opts.v.BindPFlag("remote.base_url", flags.Lookup("remote-url"))
	opts.v.BindPFlag("sync.schedule", flags.Lookup("schedule"))

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newSyncCommand(opts))
	cmd.AddCommand(newListCommand(opts))
	cmd.AddCommand(newConfigCommand(opts))
	cmd.AddCommand(newHealthCommand(opts))

	return cmd
}
