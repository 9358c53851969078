package covmap

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dwarflint/dwarflint/pkg/lint/category"
	"github.com/dwarflint/dwarflint/pkg/lint/diag"
	"github.com/dwarflint/dwarflint/pkg/lint/elfsrc"
	"github.com/dwarflint/dwarflint/pkg/lint/where"
)

func newSink() *diag.Sink {
	return diag.NewSink(category.DefaultWarnCriterion(), category.DefaultErrorCriterion())
}

func testSections() []elfsrc.AllocSection {
	return []elfsrc.AllocSection{
		{Name: ".text", Addr: 0x1000, Size: 0x100, Exec: true},
		{Name: ".data", Addr: 0x2000, Size: 0x100, Write: true},
		{Name: ".rodata", Addr: 0x3000, Size: 0x100},
	}
}

func TestBuildFiltersByRequiredMask(t *testing.T) {
	m := Build(testSections(), BuildOptions{RequiredMask: DefaultRequired()})
	assert.Len(t, m.sections, 3)
}

func TestAddWithinSingleSection(t *testing.T) {
	m := Build(testSections(), BuildOptions{RequiredMask: DefaultRequired()})
	sink := newSink()

	m.Add(0x1000, 0x10, where.Where{Section: ".debug_info"}, category.Info, sink)
	assert.Empty(t, sink.Messages())
	assert.True(t, m.sections[0].cov.IsCovered(0x1000, 0x10))
}

func TestAddStraddlingSectionsWarns(t *testing.T) {
	m := Build(testSections(), BuildOptions{RequiredMask: DefaultRequired()})
	sink := newSink()

	// [0x1000+0xf0, 0x2000+0x10) straddles .text and .data.
	m.Add(0x10f0, 0xf20, where.Where{Section: ".debug_info"}, category.Info, sink)
	found := false
	for _, msg := range sink.Messages() {
		if msg.Category.Has(category.Impact2) {
			found = true
		}
	}
	assert.True(t, found)
}

func TestAddOverlapReportsError(t *testing.T) {
	m := Build(testSections(), BuildOptions{RequiredMask: DefaultRequired()})
	sink := newSink()

	m.Add(0x1000, 0x10, where.Where{Section: ".debug_info"}, category.Info, sink)
	m.Add(0x1005, 0x10, where.Where{Section: ".debug_info"}, category.Info, sink)

	assert.True(t, sink.HasError())
}

func TestAddOutsideAnySectionIsIgnored(t *testing.T) {
	m := Build(testSections(), BuildOptions{RequiredMask: DefaultRequired()})
	sink := newSink()

	m.Add(0x9000, 0x10, where.Where{Section: ".debug_info"}, category.Info, sink)
	assert.Empty(t, sink.Messages())
}

func TestFindHolesSkipsNonExecSections(t *testing.T) {
	m := Build(testSections(), BuildOptions{RequiredMask: DefaultRequired()})
	var holes []string
	m.FindHoles(0, func(sectionName string, start, length uint64, warnOnly bool) {
		holes = append(holes, sectionName)
	})
	// Only .text is exec; .data/.rodata holes are suppressed by default.
	assert.Equal(t, []string{".text"}, holes)
}

func TestFindHolesReportsUncoveredExecRange(t *testing.T) {
	m := Build(testSections(), BuildOptions{RequiredMask: DefaultRequired()})
	sink := newSink()
	m.Add(0x1000, 0x10, where.Where{Section: ".debug_info"}, category.Info, sink)

	var got []uint64
	m.FindHoles(0, func(sectionName string, start, length uint64, warnOnly bool) {
		got = append(got, start)
	})
	assert.Contains(t, got, uint64(0x1010))
}

func TestSectionFor(t *testing.T) {
	m := Build(testSections(), BuildOptions{RequiredMask: DefaultRequired()})
	name, ok := m.SectionFor(0x2050)
	assert.True(t, ok)
	assert.Equal(t, ".data", name)

	_, ok = m.SectionFor(0x9999)
	assert.False(t, ok)
}
