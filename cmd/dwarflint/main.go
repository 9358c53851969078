// Command dwarflint is a pedantic structural checker for DWARF debugging
// information embedded in ELF object files.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dwarflint/dwarflint/pkg/config"
)

var rootCmd = &cobra.Command{
	Use:   "dwarflint",
	Short: "Check DWARF debugging information for structural defects",
	Long: `dwarflint parses the DWARF debugging information embedded in one or more
ELF object files and reports every structural defect it finds: malformed
encodings, dangling references, missing relocations in relocatable
objects, unnecessary bloat, and address ranges that don't add up.

By default only high-impact findings and explicit errors affect the exit
code; --strict, --gnu and --tolerant change which findings count.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	config.BindFlags(rootCmd)
	rootCmd.AddCommand(lintCmd, criteriaCmd)
	cobra.OnInitialize(config.Init)
}

func exitCodeFor(anyErrors bool) int {
	if anyErrors {
		return 1
	}
	return 0
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(2)
}
