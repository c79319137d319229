// Package cli implements the planctl operator commands.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Options carries the process wiring of the command tree.
type Options struct {
	Stdout io.Writer
	Stderr io.Writer
	// NewJobs opens the queue helpers. Defaults to NewJobsCLI.
	NewJobs func(redisAddr string) (*JobsCLI, error)
}

func (o Options) withDefaults() Options {
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	if o.NewJobs == nil {
		o.NewJobs = NewJobsCLI
	}
	return o
}

// NewRootCommand builds the planctl command tree.
func NewRootCommand(opts Options) *cobra.Command {
	opts = opts.withDefaults()
	root := &cobra.Command{
		Use:           "planctl",
		Short:         "Media plan operations",
		Long:          "Preview forecasts offline, validate hierarchy orders and manage background jobs.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(opts.Stdout)
	root.SetErr(opts.Stderr)

	root.AddCommand(
		newForecastCommand(opts),
		newHierarchyCommand(opts),
		newJobsCommand(opts),
	)
	return root
}

// Execute runs the command tree with os.Args and returns the exit code.
func Execute(ctx context.Context, opts Options) int {
	opts = opts.withDefaults()
	root := NewRootCommand(opts)
	if err := root.ExecuteContext(ctx); err != nil {
		var exit exitError
		if asExit(err, &exit) {
			return exit.code
		}
		root.PrintErrln("error:", err)
		return 1
	}
	return 0
}
