package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sarchlab/hyperbus/mem/hyperbus"
)

var caCmd = &cobra.Command{
	Use:   "ca <byte-address>...",
	Short: "Print the command-address packet of word reads.",
	Long: `Ca prints the chip select and the 48-bit command-address packet ` +
		`the controller sends to read the word at each given byte address. ` +
		`Addresses may be decimal or 0x-prefixed hex.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, arg := range args {
			addr, err := strconv.ParseUint(arg, 0, 32)
			if err != nil {
				return errors.Wrapf(err, "parsing address %q", arg)
			}

			printCommand(cmd.OutOrStdout(), uint32(addr))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(caCmd)
}

func printCommand(w io.Writer, byteAddr uint32) {
	info := hyperbus.DescribeRead(byteAddr)

	fmt.Fprintf(w, "address %#08x (word %#x)\n", byteAddr, info.WordAddr)
	fmt.Fprintf(w, "  chip select:   %d\n", info.Chip)
	fmt.Fprintf(w, "  packet:        %s\n", info.Packet)
	fmt.Fprintf(w, "  bytes:        ")

	for _, b := range info.Bytes {
		fmt.Fprintf(w, " %02x", b)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  upper address: %#x\n", info.UpperAddress)
	fmt.Fprintf(w, "  lower address: %#x\n", info.LowerAddress)
	fmt.Fprintf(w, "  half-word:     %d\n", info.HalfWordSelect)
	fmt.Fprintf(w, "  device byte:   %#x\n", info.DeviceByteAddr)
	fmt.Fprintf(w, "  linear burst:  %t\n", info.IsLinearBurst)
}
