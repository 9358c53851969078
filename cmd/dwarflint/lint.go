package main

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwarflint/dwarflint/pkg/browse"
	"github.com/dwarflint/dwarflint/pkg/config"
	"github.com/dwarflint/dwarflint/pkg/lint/diag"
	"github.com/dwarflint/dwarflint/pkg/lint/engine"
	"github.com/dwarflint/dwarflint/pkg/logging"
	"github.com/dwarflint/dwarflint/pkg/utils"
)

var (
	errLabel  = color.New(color.FgRed, color.Bold)
	warnLabel = color.New(color.FgYellow)
	pathLabel = color.New(color.FgCyan)
)

var lintCmd = &cobra.Command{
	Use:   "lint <file>...",
	Short: "Lint one or more ELF object files' DWARF debugging information",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runLint,
}

func runLint(cmd *cobra.Command, args []string) error {
	settings := config.Load()

	cleanup, err := logging.Setup(logging.Options{
		Verbose: settings.Verbose,
		Quiet:   settings.Quiet,
		LogFile: settings.LogFile,
		JSON:    settings.LogJSON,
	})
	if err != nil {
		fatalf("failed to set up logging: %v", err)
	}
	defer cleanup()

	flags := engine.Flags{
		Strict:        settings.Strict,
		GNU:           settings.GNU,
		Tolerant:      settings.Tolerant,
		IgnoreMissing: settings.IgnoreMissing,
	}

	slog.Debug("linting files", "paths", utils.FormatSlice(args, ", "))

	anyErrors := false

	for _, path := range args {
		slog.Debug("linting file", "path", path)

		report, err := engine.Run(path, flags)
		if err != nil {
			errLabel.Fprint(os.Stderr, "error: ")
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			anyErrors = true
			continue
		}

		if report.Sink.HasError() {
			anyErrors = true
		}

		if settings.Browse {
			if err := browse.Run(path, report.Sink); err != nil {
				fatalf("browser failed: %v", err)
			}
			continue
		}

		printReport(path, report.Sink, settings)
	}

	if anyErrors {
		os.Exit(exitCodeFor(true))
	}
	return nil
}

func printReport(path string, sink *diag.Sink, settings config.Settings) {
	if !settings.Quiet {
		pathLabel.Fprintf(os.Stdout, "%s", path)
		fmt.Printf(": %d error(s), %d warning(s)\n", sink.ErrorCount(), sink.WarningCount())
	}

	for _, m := range sink.Messages() {
		if settings.Quiet && m.Severity != diag.Err {
			continue
		}
		switch m.Severity {
		case diag.Err:
			errLabel.Fprint(os.Stdout, "error")
		case diag.Warning:
			warnLabel.Fprint(os.Stdout, "warning")
		}
		rest := sink.Format(m, settings.ShowRef)
		fmt.Print(rest[len(m.Severity.String()):])
	}

	printCategoryBreakdown(sink)
}

// printCategoryBreakdown prints a per-category tally of accepted
// diagnostics, sorted by finding count then by category bitmask, alongside
// each category's raw bitmask for correlating against `dwarflint criteria`.
func printCategoryBreakdown(sink *diag.Sink) {
	counts := sink.CategoryCounts()
	if len(counts) == 0 {
		return
	}

	total := utils.Accumulate(utils.Values(counts), func(v int) int { return v })
	fmt.Printf("  %d distinct categories, %d total finding(s):\n", len(utils.Keys(counts)), total)

	pairs := utils.ZipMap(counts)
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Second != pairs[j].Second {
			return pairs[i].Second > pairs[j].Second
		}
		return pairs[i].First < pairs[j].First
	})
	for _, p := range pairs {
		cat, count := p.Decompose()
		fmt.Printf("    %-28s %s: %d\n", cat.String(), utils.FormatUintHex(uint64(cat), 4), count)
	}
}
