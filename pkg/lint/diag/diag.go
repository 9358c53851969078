// Package diag threads the where.Arena and category.Criterion pair through
// parsing as a single context object, classifying and collecting every
// finding instead of reaching for a mutable global counter.
package diag

import (
	"fmt"

	"github.com/dwarflint/dwarflint/pkg/lint/category"
	"github.com/dwarflint/dwarflint/pkg/lint/where"
)

// Severity classifies an accepted diagnostic.
type Severity int

const (
	Suppressed Severity = iota
	Warning
	Err
)

func (s Severity) String() string {
	switch s {
	case Warning:
		return "warning"
	case Err:
		return "error"
	default:
		return "suppressed"
	}
}

// Message is one classified finding.
type Message struct {
	Category category.Category
	Where    where.Where
	Text     string
	Severity Severity
}

// Sink accumulates diagnostics for a single file and applies the configured
// warning/error criteria to each one as it is reported. It is created once
// per file and discarded at the end of processing, so resources stay
// strictly scoped to one file.
type Sink struct {
	Arena *where.Arena

	WarnCriteria  category.Criterion
	ErrorCriteria category.Criterion

	messages       []Message
	errorCount     int
	warnCount      int
	categoryCounts map[category.Category]int
}

// NewSink creates a sink with the given criteria, backed by a fresh arena.
func NewSink(warn, err category.Criterion) *Sink {
	return &Sink{
		Arena:         where.NewArena(),
		WarnCriteria:  warn,
		ErrorCriteria: err,
	}
}

// Report classifies and records one diagnostic. It returns the assigned
// severity so callers can short-circuit further checks on Err when the
// section has become meaningless to continue.
func (s *Sink) Report(cat category.Category, w where.Where, format string, args ...any) Severity {
	sev := Suppressed
	switch {
	case s.ErrorCriteria.Accepts(cat):
		sev = Err
	case s.WarnCriteria.Accepts(cat):
		sev = Warning
	}

	if sev == Suppressed {
		return sev
	}

	msg := Message{
		Category: cat,
		Where:    w,
		Text:     fmt.Sprintf(format, args...),
		Severity: sev,
	}
	s.messages = append(s.messages, msg)
	s.countCategory(cat)

	if sev == Err {
		s.errorCount++
	} else {
		s.warnCount++
	}
	return sev
}

func (s *Sink) countCategory(cat category.Category) {
	if s.categoryCounts == nil {
		s.categoryCounts = map[category.Category]int{}
	}
	s.categoryCounts[cat]++
}

// ReportExplicitError always records an error regardless of criteria, for
// unrecoverable conditions such as a broken ELF or a missing mandatory
// section.
func (s *Sink) ReportExplicitError(cat category.Category, w where.Where, format string, args ...any) {
	msg := Message{
		Category: cat | category.Error,
		Where:    w,
		Text:     fmt.Sprintf(format, args...),
		Severity: Err,
	}
	s.messages = append(s.messages, msg)
	s.countCategory(msg.Category)
	s.errorCount++
}

// Messages returns every recorded diagnostic in report order.
func (s *Sink) Messages() []Message { return s.messages }

// ErrorCount returns the number of diagnostics classified as errors.
func (s *Sink) ErrorCount() int { return s.errorCount }

// WarningCount returns the number of diagnostics classified as warnings.
func (s *Sink) WarningCount() int { return s.warnCount }

// HasError reports whether any error was recorded: the CLI exits 0 iff
// no diagnostic of category error or impact_4 was emitted.
func (s *Sink) HasError() bool { return s.errorCount > 0 }

// CategoryCounts returns how many accepted diagnostics were reported under
// each exact category bitmask, for the CLI's per-category summary.
func (s *Sink) CategoryCounts() map[category.Category]int { return s.categoryCounts }

// Format renders a single message as:
// "<severity>: <section>[: <coord>]*[ (<ref-where>)]: <message>\n"
func (s *Sink) Format(m Message, withChain bool) string {
	var loc string
	if withChain {
		loc = s.Arena.FormatChain(m.Where)
	} else {
		loc = s.Arena.Format(m.Where)
	}
	return fmt.Sprintf("%s: %s: %s\n", m.Severity, loc, m.Text)
}
