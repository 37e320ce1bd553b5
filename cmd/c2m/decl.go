package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skdltmxn/clear2mangled/c2m"
)

var (
	declBatch         batchFlags
	declFuzzy         int
	declMatchVariable bool
)

var declCmd = &cobra.Command{
	Use:   "decl <pe-file> [declaration]",
	Short: "Find the mangled names of a clear declaration",
	Long: `Find the exports of a PE image whose demangled declaration matches
the given C or C++ declaration.

Declarations are compared by callable name and by the C function,
constructor and destructor flags, so every overload of a name is listed.
Use --fuzzy to rank templated declarations by edit distance instead.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runDecl,
}

func init() {
	declBatch.register(declCmd)
	declCmd.Flags().IntVar(&declFuzzy, "fuzzy", 0, "rank matches by edit distance below this threshold (0 = exact lookup)")
	declCmd.Flags().Lookup("fuzzy").NoOptDefVal = fmt.Sprint(c2m.DefaultMaxDistance)
	declCmd.Flags().BoolVar(&declMatchVariable, "match-variable", false, "also require the variable flag to match")
}

func runDecl(cmd *cobra.Command, args []string) error {
	if err := declBatch.validate(len(args) - 1); err != nil {
		return err
	}

	ix, err := loadIndex(cmd.Context(), args[0], declOptions()...)
	if err != nil {
		return err
	}

	return runBatch(cmd.Context(), &declBatch, args[1:], func(query string) error {
		if declFuzzy > 0 {
			printMatches(output, query, ix.Similar(query, declFuzzy))
			return nil
		}
		printDeclResult(output, query, ix.ByDeclaration(query))
		return nil
	})
}

func declOptions() []c2m.Option {
	if declMatchVariable {
		return []c2m.Option{c2m.WithVariableMatching()}
	}
	return nil
}
