package reloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTableSortsByOffset(t *testing.T) {
	tbl := NewTable(TypeRel, []Entry{
		{Offset: 20},
		{Offset: 5},
		{Offset: 10},
	}, nil)
	assert.Equal(t, uint64(5), tbl.entries[0].Offset)
	assert.Equal(t, uint64(10), tbl.entries[1].Offset)
	assert.Equal(t, uint64(20), tbl.entries[2].Offset)
}

func TestNextExactMatch(t *testing.T) {
	tbl := NewTable(TypeRel, []Entry{{Offset: 10}, {Offset: 20}}, nil)

	e, ok := tbl.Next(10, SkipSilently, nil)
	assert.True(t, ok)
	assert.Equal(t, uint64(10), e.Offset)
	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, 1, tbl.Remaining())
}

func TestNextNoMatchLeavesCursorBeforeFuture(t *testing.T) {
	tbl := NewTable(TypeRel, []Entry{{Offset: 10}, {Offset: 20}}, nil)

	_, ok := tbl.Next(15, SkipSilently, nil)
	assert.False(t, ok)
	assert.Equal(t, 1, tbl.Remaining(), "offset-10 relocation should have been skipped, not offset-20")
}

func TestNextSkipsAndReportsPassedEntries(t *testing.T) {
	tbl := NewTable(TypeRel, []Entry{{Offset: 1}, {Offset: 2}, {Offset: 10}}, nil)

	var skipped []Entry
	e, ok := tbl.Next(10, SkipMismatched, func(en Entry, mode SkipMode) {
		assert.Equal(t, SkipMismatched, mode)
		skipped = append(skipped, en)
	})

	assert.True(t, ok)
	assert.Equal(t, uint64(10), e.Offset)
	require.Len(t, skipped, 2)
	assert.Equal(t, uint64(1), skipped[0].Offset)
	assert.Equal(t, uint64(2), skipped[1].Offset)
}

func TestSkipRestDrainsRemainder(t *testing.T) {
	tbl := NewTable(TypeRel, []Entry{{Offset: 1}, {Offset: 2}}, nil)

	var skipped []Entry
	tbl.SkipRest(func(e Entry, mode SkipMode) {
		assert.Equal(t, SkipMismatched, mode)
		skipped = append(skipped, e)
	})

	assert.Len(t, skipped, 2)
	assert.Equal(t, 0, tbl.Remaining())
}

func TestRelocateOneSymbolValue(t *testing.T) {
	symbols := []Symbol{{Name: "foo", Value: 0x1000, SectionName: ".text", Class: ClassRelExec}}
	tbl := NewTable(TypeRela, nil, symbols)

	res, err := tbl.RelocateOne(Entry{Symndx: 0, Addend: 0x10}, Width4, []SectionClass{ClassRelExec})
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1010), res.Value)
	assert.Equal(t, ".text", res.SectionTarget)
}

func TestRelocateOneSectionSymbolUsesSectionAddr(t *testing.T) {
	symbols := []Symbol{{IsSection: true, SectionName: ".data", SectionAddr: 0x2000}}
	tbl := NewTable(TypeRela, nil, symbols)

	res, err := tbl.RelocateOne(Entry{Symndx: 0, Addend: 4}, Width4, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x2004), res.Value)
}

func TestRelocateOneSymbolOutOfRange(t *testing.T) {
	tbl := NewTable(TypeRela, nil, nil)
	_, err := tbl.RelocateOne(Entry{Symndx: 0}, Width4, nil)
	assert.Error(t, err)
}

func TestRelocateOneWrongClass(t *testing.T) {
	symbols := []Symbol{{Class: ClassDebug}}
	tbl := NewTable(TypeRela, nil, symbols)

	_, err := tbl.RelocateOne(Entry{Symndx: 0}, Width4, []SectionClass{ClassRelExec})
	assert.Error(t, err)
}

func TestPCClassNonAllocWarning(t *testing.T) {
	assert.False(t, PCClassNonAllocWarning(Symbol{SectionAlloc: true, SectionExec: true}, ClassRelExec))
	assert.True(t, PCClassNonAllocWarning(Symbol{SectionAlloc: false}, ClassRelExec))
	assert.True(t, PCClassNonAllocWarning(Symbol{SectionAlloc: true, SectionExec: false}, ClassRelExec))
	assert.False(t, PCClassNonAllocWarning(Symbol{SectionAlloc: true}, ClassDebug))
}
