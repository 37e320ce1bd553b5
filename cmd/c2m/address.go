package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// hexValue is a pflag.Value holding an address written in hex, with or
// without a 0x prefix.
type hexValue uint64

var _ pflag.Value = (*hexValue)(nil)

func (h *hexValue) String() string { return fmt.Sprintf("%#x", uint64(*h)) }

func (h *hexValue) Set(s string) error {
	v, err := parseHex(s)
	if err != nil {
		return err
	}
	*h = hexValue(v)
	return nil
}

func (h *hexValue) Type() string { return "hex" }

func parseHex(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid hex address %q: %w", s, err)
	}
	return v, nil
}

var (
	rvaBatch batchFlags
	vaBatch  batchFlags
	vaBase   hexValue
)

var rvaCmd = &cobra.Command{
	Use:   "rva <pe-file> [rva]",
	Short: "Find the exports at a relative virtual address",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runRVA,
}

var vaCmd = &cobra.Command{
	Use:   "va <pe-file> [va]",
	Short: "Find the exports at a virtual address",
	Long: `Find the exports at a virtual address of a loaded image.

The address is rebased with --base before the lookup and results are shown
with their virtual addresses.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runVA,
}

func init() {
	rvaBatch.register(rvaCmd)
	vaBatch.register(vaCmd)
	vaCmd.Flags().Var(&vaBase, "base", "image base address (hex)")
	_ = vaCmd.MarkFlagRequired("base")
}

func runRVA(cmd *cobra.Command, args []string) error {
	if err := rvaBatch.validate(len(args) - 1); err != nil {
		return err
	}

	ix, err := loadIndex(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	return runBatch(cmd.Context(), &rvaBatch, args[1:], func(query string) error {
		rva, err := parseHex(query)
		if err != nil {
			return err
		}
		printAddressResult(output, ix.ByRVA(rva), 0, false)
		return nil
	})
}

func runVA(cmd *cobra.Command, args []string) error {
	if err := vaBatch.validate(len(args) - 1); err != nil {
		return err
	}

	ix, err := loadIndex(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	base := uint64(vaBase)
	return runBatch(cmd.Context(), &vaBatch, args[1:], func(query string) error {
		va, err := parseHex(query)
		if err != nil {
			return err
		}
		printAddressResult(output, ix.ByAddress(base, va), base, true)
		return nil
	})
}
