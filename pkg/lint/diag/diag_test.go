package diag

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dwarflint/dwarflint/pkg/lint/category"
	"github.com/dwarflint/dwarflint/pkg/lint/where"
)

func TestReportClassifiesAsError(t *testing.T) {
	sink := NewSink(category.DefaultWarnCriterion(), category.DefaultErrorCriterion())
	sev := sink.Report(category.Error, where.Where{Section: ".debug_info"}, "broken: %d", 1)
	assert.Equal(t, Err, sev)
	assert.Equal(t, 1, sink.ErrorCount())
	assert.True(t, sink.HasError())
}

func TestReportClassifiesAsWarning(t *testing.T) {
	sink := NewSink(category.DefaultWarnCriterion(), category.DefaultErrorCriterion())
	sev := sink.Report(category.Bloat, where.Where{Section: ".debug_abbrev"}, "bloated uleb")
	assert.Equal(t, Warning, sev)
	assert.Equal(t, 1, sink.WarningCount())
	assert.False(t, sink.HasError())
}

func TestReportSuppressedWhenNeitherCriterionAccepts(t *testing.T) {
	sink := NewSink(category.Empty(), category.Empty())
	sev := sink.Report(category.Info, where.Where{Section: ".debug_info"}, "fyi")
	assert.Equal(t, Suppressed, sev)
	assert.Empty(t, sink.Messages())
	assert.Equal(t, 0, sink.ErrorCount())
	assert.Equal(t, 0, sink.WarningCount())
}

func TestReportExplicitErrorIgnoresCriteria(t *testing.T) {
	sink := NewSink(category.Empty(), category.Empty())
	sink.ReportExplicitError(category.Info, where.Where{Section: ".debug_info"}, "missing section")
	assert.Equal(t, 1, sink.ErrorCount())
	msgs := sink.Messages()
	assert.Len(t, msgs, 1)
	assert.Equal(t, Err, msgs[0].Severity)
	assert.True(t, msgs[0].Category.Has(category.Error))
}

func TestFormatWithoutChain(t *testing.T) {
	sink := NewSink(category.DefaultWarnCriterion(), category.DefaultErrorCriterion())
	sink.Report(category.Bloat, where.Where{Section: ".debug_abbrev"}, "bloated")
	got := sink.Format(sink.Messages()[0], false)
	assert.Equal(t, "warning: .debug_abbrev: bloated\n", got)
}

func TestFormatWithChainWalksReferences(t *testing.T) {
	sink := NewSink(category.DefaultWarnCriterion(), category.DefaultErrorCriterion())
	ref := sink.Arena.New(where.Where{Section: ".debug_info"})
	w := where.Where{Section: ".debug_loc"}.WithNext(ref)
	sink.Report(category.Bloat, w, "bad list")

	got := sink.Format(sink.Messages()[0], true)
	assert.Equal(t, "warning: .debug_loc\n    referenced from .debug_info: bad list\n", got)
}

func TestCategoryCountsTracksAcceptedAndExplicitReports(t *testing.T) {
	sink := NewSink(category.DefaultWarnCriterion(), category.DefaultErrorCriterion())
	sink.Report(category.Bloat, where.Where{Section: ".debug_abbrev"}, "bloated")
	sink.Report(category.Bloat, where.Where{Section: ".debug_abbrev"}, "bloated again")
	sink.ReportExplicitError(category.Info, where.Where{Section: ".debug_info"}, "missing section")

	counts := sink.CategoryCounts()
	assert.Equal(t, 2, counts[category.Bloat])
	assert.Equal(t, 1, counts[category.Info|category.Error])
}

func TestCategoryCountsNilWhenNothingReported(t *testing.T) {
	sink := NewSink(category.Empty(), category.Empty())
	assert.Nil(t, sink.CategoryCounts())
}

func TestSeverityString(t *testing.T) {
	assert.Equal(t, "warning", Warning.String())
	assert.Equal(t, "error", Err.String())
	assert.Equal(t, "suppressed", Suppressed.String())
}
