package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/skdltmxn/clear2mangled/c2m"
)

var (
	exportsKind  string
	exportsLimit int
)

var exportsCmd = &cobra.Command{
	Use:   "exports <pe-file>",
	Short: "List the demangled exports of a PE image",
	Long: `List the demangled export records of a PE image.

Use --kind to filter by classification (cfunc, variable, function).`,
	Args: cobra.ExactArgs(1),
	RunE: runExports,
}

func init() {
	exportsCmd.Flags().StringVarP(&exportsKind, "kind", "k", "", "filter by kind (cfunc, variable, function)")
	exportsCmd.Flags().IntVarP(&exportsLimit, "limit", "n", 0, "limit number of exports shown (0 = unlimited)")
}

// kindFilter returns the predicate selecting records of kind.
func kindFilter(kind string) (func(c2m.Export) bool, error) {
	switch strings.ToLower(kind) {
	case "":
		return func(c2m.Export) bool { return true }, nil
	case "cfunc":
		return func(e c2m.Export) bool { return e.Details.CFunction }, nil
	case "variable":
		return func(e c2m.Export) bool { return e.Details.Variable }, nil
	case "function":
		return func(e c2m.Export) bool { return !e.Details.CFunction && !e.Details.Variable }, nil
	default:
		return nil, fmt.Errorf("unknown export kind: %s", kind)
	}
}

func runExports(cmd *cobra.Command, args []string) error {
	match, err := kindFilter(exportsKind)
	if err != nil {
		return err
	}

	ix, err := loadIndex(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	exports := ix.Filter(match)
	total := len(exports)
	if exportsLimit > 0 && len(exports) > exportsLimit {
		exports = exports[:exportsLimit]
	}

	table := tablewriter.NewWriter(output)
	table.SetHeader([]string{"Ordinal", "RVA", "Kind", "Name", "Mangled"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	for _, e := range exports {
		table.Append([]string{
			strconv.FormatUint(uint64(e.Ordinal), 10),
			fmt.Sprintf("%08X", e.RVA),
			e.Details.Kind(),
			e.Details.Name,
			e.MangledDeclaration,
		})
	}
	table.Render()

	fmt.Fprintf(output, "\nShown: %d of %d exports\n", len(exports), total)
	return nil
}
