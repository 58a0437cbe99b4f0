package main

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pysolve/pysolve/version"
)

func newVersionCmd(logger *logrus.Logger, out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Work with version constraints",
	}

	cmd.AddCommand(
		newVersionCombineCmd(logger, out, "intersect", "Intersect two version constraints",
			func(a, b version.Constraint) version.Constraint { return a.Intersect(b) }),
		newVersionCombineCmd(logger, out, "union", "Union two version constraints",
			func(a, b version.Constraint) version.Constraint { return a.Union(b) }),
		newVersionAllowsCmd(out),
	)

	return cmd
}

func newVersionCombineCmd(
	logger *logrus.Logger, out io.Writer,
	name, short string,
	combine func(a, b version.Constraint) version.Constraint,
) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <constraint> <constraint>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := version.ParseConstraint(args[0])
			if err != nil {
				return errors.Wrapf(err, "unable to parse constraint %q", args[0])
			}
			b, err := version.ParseConstraint(args[1])
			if err != nil {
				return errors.Wrapf(err, "unable to parse constraint %q", args[1])
			}

			result := combine(a, b)
			logger.WithFields(logrus.Fields{
				"left": a.String(), "right": b.String(),
			}).Debugf("computed %s", name)

			if result.IsEmpty() {
				fmt.Fprintln(out, "<empty>")
				return nil
			}
			fmt.Fprintln(out, result.String())
			return nil
		},
	}
}

func newVersionAllowsCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "allows <constraint> <version>",
		Short: "Check whether a constraint allows a version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := version.ParseConstraint(args[0])
			if err != nil {
				return errors.Wrapf(err, "unable to parse constraint %q", args[0])
			}
			v, err := version.Parse(args[1])
			if err != nil {
				return errors.Wrapf(err, "unable to parse version %q", args[1])
			}
			fmt.Fprintln(out, c.Allows(v))
			return nil
		},
	}
}
