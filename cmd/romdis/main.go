// romdis disassembles and pads ROM images for the IntuitionXT machine.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func parseHex(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimPrefix(s, "$"), "0x"), "0X")
	return strconv.ParseUint(s, 16, 32)
}

func newDisCmd() *cobra.Command {
	var origin string
	var top bool
	cmd := &cobra.Command{
		Use:   "dis <image>",
		Short: "Disassemble a raw image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if top {
				return WriteListing(cmd.OutOrStdout(), ResetVector(code))
			}
			org, err := parseHex(origin)
			if err != nil || org >= 0x100000 {
				return fmt.Errorf("invalid --origin %q", origin)
			}
			return WriteListing(cmd.OutOrStdout(), Decode(code, uint32(org)))
		},
	}
	cmd.Flags().StringVar(&origin, "origin", "0", "linear load address (hex)")
	cmd.Flags().BoolVar(&top, "reset-vector", false, "only show the reset vector of a top-mapped ROM")
	return cmd
}

func newPadCmd() *cobra.Command {
	var (
		out   string
		sizeK int
		fill  string
	)
	cmd := &cobra.Command{
		Use:   "pad <image>",
		Short: "Front-pad an image to a ROM size so it ends at the reset vector",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			f, err := parseHex(fill)
			if err != nil || f > 0xFF {
				return fmt.Errorf("invalid --fill %q", fill)
			}
			rom, err := Pad(image, sizeK*1024, byte(f))
			if err != nil {
				return err
			}
			if out == "" {
				out = strings.TrimSuffix(args[0], ".bin") + ".rom"
			}
			if err := os.WriteFile(out, rom, 0644); err != nil {
				return fmt.Errorf("error writing %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d bytes (%d padding)\n", out, len(rom), len(rom)-len(image))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: input with .rom)")
	cmd.Flags().IntVar(&sizeK, "size", 256, "ROM size in KB")
	cmd.Flags().StringVar(&fill, "fill", "FF", "padding byte (hex)")
	return cmd
}

func main() {
	root := &cobra.Command{
		Use:          "romdis",
		Short:        "ROM image tools for IntuitionXT",
		SilenceUsage: true,
	}
	root.AddCommand(newDisCmd(), newPadCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
