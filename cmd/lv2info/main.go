// Command lv2info prints details about installed plugins.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wippyai/lv2-runtime/config"
	"github.com/wippyai/lv2-runtime/errors"
	"github.com/wippyai/lv2-runtime/internal/inspect"
	"github.com/wippyai/lv2-runtime/world"
)

// usageError marks command line mistakes, which print the usage.
type usageError struct{ error }

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var (
		configFile string
		noColor    bool
	)
	cmd := &cobra.Command{
		Use:   "lv2info PLUGIN_URI...",
		Short: "Print information about installed LV2 plugins",
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.MinimumNArgs(1)(cmd, args); err != nil {
				return usageError{err}
			}
			return nil
		},
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			logger, err := cfg.Logger()
			if err != nil {
				return err
			}
			w := world.New(append(cfg.WorldOptions(), world.WithLogger(logger.Named("world")))...)
			defer w.Close()
			w.LoadAll()

			missing := 0
			for i, uri := range args {
				p, ok := w.Plugin(uri)
				if !ok {
					color.New(color.FgRed).Fprintf(stderr, "Plugin not found: %s\n", uri)
					missing++
					continue
				}
				if i > 0 {
					fmt.Fprintln(stdout)
				}
				inspect.Plugin(stdout, p, inspect.Options{NoColor: noColor})
			}
			if missing > 0 {
				return fmt.Errorf("%d of %d plugins not found", missing, len(args))
			}
			return nil
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageError{err} })
	cmd.Flags().StringVar(&configFile, "config", "", "config file (default lv2host.yaml)")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	return cmd
}

func run(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "lv2info: %v\n", err)
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Fprint(stderr, cmd.UsageString())
		}
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
