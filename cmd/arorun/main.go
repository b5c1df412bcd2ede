// Command arorun loads and runs an ARO application (spec §6).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aro-lang/aro/driver"
	ilogging "github.com/aro-lang/aro/internal/logging"
	"github.com/aro-lang/aro/logging"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var logLevel, logFormat string

	root := &cobra.Command{
		Use:   "arorun <app-dir>",
		Short: "Load and run an ARO application",
		Long: `arorun parses an ARO application's .aro sources, loads its
managed plugins, and drives it from Application-Start through shutdown.

The application directory may contain aro.yaml for configuration and a
Plugins/ directory of managed plugins (spec §6).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appDir := "."
			if len(args) == 1 {
				appDir = args[0]
			}

			level, err := ilogging.GetLevel(logLevel)
			if err != nil {
				return err
			}
			log := logging.Get()
			log.SetLevel(level)
			log.SetFormatter(ilogging.GetFormatter(logFormat, ""))

			d, err := driver.Load(appDir)
			if err != nil {
				return fmt.Errorf("compiling %s: %w", appDir, err)
			}

			return d.Run(context.Background())
		},
	}

	root.Flags().StringVar(&logLevel, "log-level", "info", "set log verbosity: debug, info, warn, error")
	root.Flags().StringVar(&logFormat, "log-format", "json", "set log format: json, json-pretty, text")
	return root
}
