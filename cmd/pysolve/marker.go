package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pysolve/pysolve/marker"
	"github.com/pysolve/pysolve/version"
)

func newMarkerCmd(logger *logrus.Logger, out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "marker",
		Short: "Work with PEP 508 environment markers",
	}

	cmd.AddCommand(
		newMarkerEvalCmd(logger, out),
		newMarkerSimplifyCmd(logger, out),
	)

	return cmd
}

func newMarkerEvalCmd(logger *logrus.Logger, out io.Writer) *cobra.Command {
	var envPairs []string
	var extras []string

	cmd := &cobra.Command{
		Use:   "eval <marker>",
		Short: "Evaluate a marker against an environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := marker.Parse(args[0])
			if err != nil {
				return errors.Wrap(err, "unable to parse marker")
			}

			env := &marker.Environment{Values: map[string]string{}}
			for _, pair := range envPairs {
				key, value, found := strings.Cut(pair, "=")
				if !found {
					return errors.Errorf("invalid environment entry %q, expected key=value", pair)
				}
				env.Values[key] = value
			}
			if cmd.Flags().Changed("extra") {
				env.Extras = extras
			}

			logger.WithField("marker", m.String()).Debug("evaluating marker")
			fmt.Fprintln(out, m.Matches(env))
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&envPairs, "env", "e", nil, "environment entry as key=value, repeatable")
	cmd.Flags().StringArrayVar(&extras, "extra", nil, "active extra, repeatable")

	return cmd
}

func newMarkerSimplifyCmd(logger *logrus.Logger, out io.Writer) *cobra.Command {
	var pythonConstraint string

	cmd := &cobra.Command{
		Use:   "simplify <marker>",
		Short: "Parse a marker and print its simplified form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := marker.Parse(args[0])
			if err != nil {
				return errors.Wrap(err, "unable to parse marker")
			}

			if pythonConstraint != "" {
				c, err := version.ParseConstraint(pythonConstraint)
				if err != nil {
					return errors.Wrap(err, "unable to parse python constraint")
				}
				m = m.ReduceByPythonConstraint(c)
			}

			if m.IsAny() {
				fmt.Fprintln(out, `""`)
				return nil
			}
			fmt.Fprintln(out, m.String())
			return nil
		},
	}

	cmd.Flags().StringVar(&pythonConstraint, "python", "", "drop conditions covered by this python constraint")

	return cmd
}
