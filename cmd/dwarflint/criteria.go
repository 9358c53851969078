package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/dwarflint/dwarflint/pkg/lint/category"
	"github.com/dwarflint/dwarflint/pkg/utils"
)

var criteriaCmd = &cobra.Command{
	Use:   "criteria",
	Short: "Print the default warning/error classification and exit",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		warn := category.DefaultWarnCriterion()
		errC := category.DefaultErrorCriterion()

		fmt.Println("default warning criterion terms:")
		printTerms(warn.Terms())

		fmt.Println("\ndefault error criterion terms:")
		printTerms(errC.Terms())
	},
}

func printTerms(terms []category.Term) {
	names := utils.Map(terms, termString)
	sort.Strings(names)
	for _, n := range names {
		fmt.Println("  " + n)
	}
}

func termString(t category.Term) string {
	s := t.Positive.String()
	if t.Negative != 0 {
		s += " AND NOT (" + t.Negative.String() + ")"
	}
	return s
}
