package main

import (
	"github.com/spf13/cobra"

	"github.com/reasonchip/reasonchip/internal/config"
	"github.com/reasonchip/reasonchip/internal/rclog"
)

// rootFlags are the universal flags every subcommand inherits (spec §6
// "Universal flags").
type rootFlags struct {
	logLevels  []string
	ssl        sslFlags
	configPath string

	cfg     config.File
	cfgErr  error
	cfgOnce bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "reasonchip",
		Short:         "ReasonChip runs declarative YAML pipelines through a broker/worker/client routing fabric",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringArrayVar(&flags.logLevels, "log-level", nil, "[LOGGER=]LEVEL, repeatable")
	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "INI-style config file providing flag defaults")

	cmd.AddCommand(newBrokerCmd(flags))
	cmd.AddCommand(newWorkerCmd(flags))
	cmd.AddCommand(newRunCmd(flags))
	cmd.AddCommand(newRunLocalCmd(flags))

	return cmd
}

// logContext builds the rclog.Context every subcommand's RunE starts from,
// applying each accumulated --log-level token in flag order.
func (f *rootFlags) logContext() *rclog.Context {
	lc := rclog.Default()
	for _, spec := range f.logLevels {
		lc.ApplySpec(spec)
	}
	return lc
}

// config lazily loads --config on first use, memoizing the result (or its
// error) for the lifetime of this rootFlags.
func (f *rootFlags) config() (config.File, error) {
	if f.configPath == "" {
		return nil, nil
	}
	if !f.cfgOnce {
		f.cfg, f.cfgErr = config.Load(f.configPath)
		f.cfgOnce = true
	}
	return f.cfg, f.cfgErr
}

// applyConfigDefault fills *dst from the config file's [section]/key when
// the flag wasn't explicitly set on the command line, per spec §6's
// "config files" carrying only substituted default values, never
// overriding an explicit flag.
func applyConfigDefault(cmd *cobra.Command, root *rootFlags, flagName, section, key string, dst *string) error {
	if cmd.Flags().Changed(flagName) {
		return nil
	}
	cfg, err := root.config()
	if err != nil {
		return err
	}
	if v, ok := cfg.Get(section, key); ok {
		*dst = v
	}
	return nil
}

func main() {
	cmd := newRootCmd()
	err := cmd.Execute()
	exitWith(err)
}
