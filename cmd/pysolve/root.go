package main

import (
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var globalUsage = `Inspect and manipulate Python dependency metadata.

pysolve exposes the constraint, version and environment marker algebra
used during dependency resolution: evaluate and simplify PEP 508
markers, and combine version constraints.
`

func newRootCmd(logger *logrus.Logger, out io.Writer) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:           "pysolve",
		Short:         "Inspect and manipulate Python dependency metadata",
		Long:          globalUsage,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logger.SetLevel(logrus.DebugLevel)
			}
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(
		newMarkerCmd(logger, out),
		newVersionCmd(logger, out),
	)

	return cmd
}
