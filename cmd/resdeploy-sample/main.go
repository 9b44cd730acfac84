// resdeploy-sample deploys a resource set and prints the deployment
// path, exercising the engine the way the concurrency test harness
// drives it: `OK!: <path>` is the final line of stdout on success.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/resdeploy/pkg/config"
	"github.com/arthur-debert/resdeploy/pkg/deploy"
	"github.com/arthur-debert/resdeploy/pkg/janitor"
	"github.com/arthur-debert/resdeploy/pkg/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		from      string
		to        string
		bundleURL string
		overwrite bool
		noLoad    bool
		suffix    string
		timeoutMs int
		verbosity int
	)

	cmd := &cobra.Command{
		Use:   "resdeploy-sample",
		Short: "Deploy a resource set from a bundle and load its libraries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if verbosity == 0 {
				verbosity = cfg.Verbosity
			}
			logging.SetupLogger(verbosity)

			// Go has no atexit hook; sweep the registered fallback
			// paths on the way out instead.
			if cfg.CleanupOnExit {
				defer janitor.Cleanup()
			}

			b := deploy.From(from).To(to).
				AlwaysOverwrite(overwrite).
				ShouldLoadLibraries(!noLoad).
				WithBundleURL(bundleURL)

			if suffix != "" {
				b.AddLibrarySuffix(suffix)
			}
			switch {
			case timeoutMs > 0:
				b.RetryTimeout(timeoutMs)
			case cfg.RetryTimeoutMs > 0:
				b.RetryTimeout(cfg.RetryTimeoutMs)
			}

			d, err := b.Load()
			if err != nil {
				return err
			}

			fmt.Printf("OK!: %s\n", d.ActualDeploymentPath())
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "resource path template (required)")
	cmd.Flags().StringVar(&to, "to", "", "deployment path template (required)")
	cmd.Flags().StringVar(&bundleURL, "bundle", ".", "bundle URL: directory, zip, or zip!/inner.zip")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "always overwrite deployed files")
	cmd.Flags().BoolVar(&noLoad, "no-load", false, "skip loading dynamic libraries")
	cmd.Flags().StringVar(&suffix, "suffix", "", "library name suffix inserted before the extension")
	cmd.Flags().IntVar(&timeoutMs, "timeout", 0, "retry timeout in milliseconds (0 = size-derived)")
	cmd.Flags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity")

	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")

	cmd.SilenceUsage = true
	return cmd
}
