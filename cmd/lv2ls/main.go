// Command lv2ls lists the installed plugins.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/lv2-runtime/config"
	"github.com/wippyai/lv2-runtime/errors"
	"github.com/wippyai/lv2-runtime/world"
)

// Version is set at build time.
var Version = "dev"

// usageError marks command line mistakes, which print the usage.
type usageError struct{ error }

type options struct {
	configFile  string
	names       bool
	version     bool
	interactive bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "lv2ls",
		Short: "List all installed LV2 plugins",
		Long: `List all installed LV2 plugins.

The environment variable LV2_PATH can be used to control where
this (and all other LV2 hosts) will search for plugins.`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usageError{fmt.Errorf("unexpected argument %q", args[0])}
			}
			return nil
		},
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.version {
				fmt.Fprintf(stdout, "lv2ls %s\n", Version)
				return nil
			}
			w, err := loadWorld(opts.configFile)
			if err != nil {
				return err
			}
			defer w.Close()

			if opts.interactive {
				if isTerminal() {
					return runInteractive(w)
				}
				fmt.Fprintln(stderr, "lv2ls: not a terminal, listing instead")
			}
			list(stdout, w.AllPlugins(), opts.names)
			return nil
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageError{err} })
	cmd.Flags().BoolVarP(&opts.names, "names", "n", false, "show names instead of URIs")
	cmd.Flags().BoolVarP(&opts.version, "version", "V", false, "output version information and exit")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "browse plugins in a terminal UI")
	cmd.Flags().StringVar(&opts.configFile, "config", "", "config file (default lv2host.yaml)")
	return cmd
}

func loadWorld(configFile string) (*world.World, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	logger, err := cfg.Logger()
	if err != nil {
		return nil, err
	}
	w := world.New(append(cfg.WorldOptions(), world.WithLogger(logger.Named("world")))...)
	w.LoadAll()
	logger.Debug("plugins discovered", zap.Int("count", w.AllPlugins().Len()))
	return w, nil
}

func list(out io.Writer, plugins world.Plugins, names bool) {
	for p := range plugins.All() {
		if names {
			if name, ok := p.Name(); ok {
				fmt.Fprintln(out, name.AsString())
				continue
			}
		}
		fmt.Fprintln(out, p.URI())
	}
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func run(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "lv2ls: %v\n", err)
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
