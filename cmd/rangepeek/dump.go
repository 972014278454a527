package main

import (
	"encoding/hex"
	"fmt"

	"github.com/KarpelesLab/rangefile"
	"github.com/spf13/cobra"
)

func newDumpCmd(opts *options) *cobra.Command {
	var offset, length int64

	cmd := &cobra.Command{
		Use:   "dump [SOURCE] [--offset N] [--length N]",
		Short: "Hex dump a byte range of a remote file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if offset < 0 || length <= 0 {
				return fmt.Errorf("invalid range: offset %d length %d", offset, length)
			}
			m, err := opts.manager()
			if err != nil {
				return err
			}
			r, err := m.Open(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := r.Initialize(ctx); err != nil {
				return err
			}
			end := offset + length - 1
			if size := r.Size(); end >= size {
				end = size - 1
			}
			if err := r.LoadRange(ctx, offset, end); err != nil {
				return err
			}
			b, err := rangefile.BytesAt(r, offset, int(end-offset+1))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, headingStyle.Render(fmt.Sprintf("%s [%d,%d] of %d bytes", args[0], offset, end, r.Size())))
			fmt.Fprint(out, hex.Dump(b))

			if f, ok := r.(*rangefile.File); ok {
				fmt.Fprintln(out, headingStyle.Render("cache"))
				fmt.Fprintf(out, "requests: %d\n", f.Requests())
				for _, rg := range f.Store().Ranges() {
					fmt.Fprintf(out, "cached: %s\n", rg)
				}
			}
			return nil
		},
	}

	cmd.Flags().Int64VarP(&offset, "offset", "o", 0, "First byte to dump")
	cmd.Flags().Int64VarP(&length, "length", "n", 256, "Number of bytes to dump")
	return cmd
}
