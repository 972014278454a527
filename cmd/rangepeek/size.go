package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSizeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "size [SOURCE]",
		Short: "Print the size of a remote file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := opts.manager()
			if err != nil {
				return err
			}
			r, err := m.Open(args[0])
			if err != nil {
				return err
			}
			if err := r.Initialize(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), r.Size())
			return nil
		},
	}
}
