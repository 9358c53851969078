package loc

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dwarflint/dwarflint/pkg/lint/category"
	"github.com/dwarflint/dwarflint/pkg/lint/cu"
	"github.com/dwarflint/dwarflint/pkg/lint/diag"
	"github.com/dwarflint/dwarflint/pkg/lint/rdr"
)

func newSink() *diag.Sink {
	return diag.NewSink(category.DefaultWarnCriterion(), category.DefaultErrorCriterion())
}

func hasMessage(msgs []diag.Message, text string) bool {
	for _, m := range msgs {
		if m.Text == text {
			return true
		}
	}
	return false
}

// locListEntry builds one non-base (begin,end[,block]) entry plus the list's
// (0,0) terminator, for a 32-bit-address .debug_loc-shaped buffer.
func locListEntry(begin, end uint32, withBlock bool) []byte {
	buf := binary.LittleEndian.AppendUint32(nil, begin)
	buf = binary.LittleEndian.AppendUint32(buf, end)
	if withBlock {
		buf = binary.LittleEndian.AppendUint16(buf, 0) // zero-length block
	}
	buf = binary.LittleEndian.AppendUint32(buf, 0) // terminator
	buf = binary.LittleEndian.AppendUint32(buf, 0)
	return buf
}

func TestCheckLocWithNoBaseAddressIsError(t *testing.T) {
	buf := locListEntry(0x10, 0x20, true)
	u := &cu.CU{Offset: 0, HasLowPC: false}
	u.LocRefs.Add(0, nil)
	chain := &cu.Chain{Units: []*cu.CU{u}}

	sink := newSink()
	CheckLoc(rdr.Init(buf, binary.LittleEndian), chain, sink, Options{})

	assert.True(t, hasMessage(sink.Messages(), "range entry with no base address in scope"))
	assert.True(t, sink.HasError())
}

func TestCheckLocWithLowPCBaseIsFine(t *testing.T) {
	buf := locListEntry(0x10, 0x20, true)
	u := &cu.CU{Offset: 0, HasLowPC: true, LowPC: 0x1000}
	u.LocRefs.Add(0, nil)
	chain := &cu.Chain{Units: []*cu.CU{u}}

	sink := newSink()
	CheckLoc(rdr.Init(buf, binary.LittleEndian), chain, sink, Options{})

	assert.False(t, hasMessage(sink.Messages(), "range entry with no base address in scope"))
}

func TestCheckLocEmptyRangeIsBloat(t *testing.T) {
	buf := locListEntry(0x10, 0x10, true) // begin == end
	u := &cu.CU{Offset: 0, HasLowPC: true, LowPC: 0x1000}
	u.LocRefs.Add(0, nil)
	chain := &cu.Chain{Units: []*cu.CU{u}}

	sink := newSink()
	CheckLoc(rdr.Init(buf, binary.LittleEndian), chain, sink, Options{})

	found := false
	for _, m := range sink.Messages() {
		if m.Category.Has(category.Loc | category.Bloat) {
			found = true
		}
	}
	assert.True(t, found)
}

func TestCheckRangesFoldsIntoCoverage(t *testing.T) {
	buf := locListEntry(0x10, 0x20, false)
	u := &cu.CU{Offset: 0, HasLowPC: true, LowPC: 0x1000}
	u.RangeRefs.Add(0, nil)
	chain := &cu.Chain{Units: []*cu.CU{u}}
	cov := &cu.Coverage{NeedRanges: true}
	covs := map[*cu.CU]*cu.Coverage{u: cov}

	sink := newSink()
	CheckRanges(rdr.Init(buf, binary.LittleEndian), chain, sink, Options{}, covs)

	assert.True(t, cov.Cov.IsCovered(0x1010, 0x10))
	assert.False(t, cov.NeedRanges)
}

func TestCheckRangesBaseAddressSelectionEntryShiftsBase(t *testing.T) {
	buf := binary.LittleEndian.AppendUint32(nil, 0xffffffff) // base-selection sentinel (32-bit)
	buf = binary.LittleEndian.AppendUint32(buf, 0x2000)       // new base
	buf = binary.LittleEndian.AppendUint32(buf, 0x10)         // begin, relative to new base
	buf = binary.LittleEndian.AppendUint32(buf, 0x20)         // end
	buf = binary.LittleEndian.AppendUint32(buf, 0)            // terminator
	buf = binary.LittleEndian.AppendUint32(buf, 0)

	u := &cu.CU{Offset: 0, HasLowPC: false}
	u.RangeRefs.Add(0, nil)
	chain := &cu.Chain{Units: []*cu.CU{u}}
	cov := &cu.Coverage{}
	covs := map[*cu.CU]*cu.Coverage{u: cov}

	sink := newSink()
	CheckRanges(rdr.Init(buf, binary.LittleEndian), chain, sink, Options{}, covs)

	assert.True(t, cov.Cov.IsCovered(0x2010, 0x10))
	assert.False(t, sink.HasError())
}
