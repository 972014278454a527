package main

import (
	"github.com/KarpelesLab/rangefile"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))

type options struct {
	configPath string
	chunkSize  int64
	debug      bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "rangepeek",
		Short:         "Read parts of remote files without downloading them",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	cmd.PersistentFlags().Int64Var(&opts.chunkSize, "chunk-size", 0, "Fetch granularity in bytes (overrides config)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(newSizeCmd(opts))
	cmd.AddCommand(newDumpCmd(opts))
	return cmd
}

// manager builds the Manager from the config file and flags.
func (o *options) manager() (*rangefile.Manager, error) {
	cfg := rangefile.DefaultConfig()
	if o.configPath != "" {
		var err error
		cfg, err = rangefile.LoadConfig(o.configPath)
		if err != nil {
			return nil, err
		}
	}
	if o.chunkSize > 0 {
		cfg.ChunkSize = o.chunkSize
	}

	m, err := cfg.NewManager()
	if err != nil {
		return nil, err
	}
	m.Logger = initLogger(o.debug || cfg.Debug)
	return m, nil
}
