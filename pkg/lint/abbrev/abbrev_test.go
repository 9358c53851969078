package abbrev

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwarflint/dwarflint/pkg/lint/category"
	"github.com/dwarflint/dwarflint/pkg/lint/diag"
	"github.com/dwarflint/dwarflint/pkg/lint/rdr"
)

// uleb encodes small values (<0x80) as a single ULEB128 byte, sufficient for
// every tag/attr/form constant exercised here.
func uleb(v byte) byte { return v }

func newSink() *diag.Sink {
	return diag.NewSink(category.DefaultWarnCriterion(), category.DefaultErrorCriterion())
}

func TestLoadSingleTable(t *testing.T) {
	buf := []byte{
		uleb(1),    // code
		uleb(0x11), // DW_TAG_compile_unit
		1,          // has_children
		uleb(0x03), uleb(0x08), // DW_AT_name, DW_FORM_string
		0, 0, // attr terminator
		0, // table terminator
	}
	ctx := rdr.Init(buf, binary.LittleEndian)
	sink := newSink()

	chain := Load(ctx, sink)

	table := chain.TableAt(0)
	require.NotNil(t, table)
	entry, ok := table.Lookup(1)
	require.True(t, ok)
	assert.EqualValues(t, 0x11, entry.Tag)
	assert.True(t, entry.HasChildren)
	assert.Len(t, entry.Attribs, 1)
	assert.Empty(t, sink.Messages())
}

func TestLoadDuplicateCodeReportsError(t *testing.T) {
	buf := []byte{
		uleb(1), uleb(0x11), 0, 0, 0, // code 1, no attribs
		uleb(1), uleb(0x11), 0, 0, 0, // code 1 again: duplicate
		0, // table terminator
	}
	ctx := rdr.Init(buf, binary.LittleEndian)
	sink := newSink()

	chain := Load(ctx, sink)

	table := chain.TableAt(0)
	require.NotNil(t, table)
	assert.Len(t, table.Entries(), 1)
	assert.True(t, sink.HasError())
}

func TestLoadTwoTablesSeparatedByTerminator(t *testing.T) {
	buf := []byte{
		uleb(1), uleb(0x11), 0, 0, 0, // table at offset 0
		0,                            // terminate table at 0
		uleb(1), uleb(0x11), 0, 0, 0, // new table starting here
	}
	ctx := rdr.Init(buf, binary.LittleEndian)
	sink := newSink()

	chain := Load(ctx, sink)

	first := chain.TableAt(0)
	require.NotNil(t, first)
	second := chain.TableAt(6)
	require.NotNil(t, second)
	assert.NotSame(t, first, second)
}

func TestMarkUsed(t *testing.T) {
	buf := []byte{uleb(1), uleb(0x11), 0, 0, 0, 0}
	ctx := rdr.Init(buf, binary.LittleEndian)
	chain := Load(ctx, newSink())

	table := chain.TableAt(0)
	table.MarkUsed(1)
	entry, _ := table.Lookup(1)
	assert.True(t, entry.Used)
}

func TestValidateSiblingOnChildlessIsBloat(t *testing.T) {
	buf := []byte{
		uleb(1), uleb(0x11), 0, // has_children = 0
		uleb(0x01), uleb(0x10), // DW_AT_sibling, DW_FORM_ref_addr
		0, 0, 0,
	}
	ctx := rdr.Init(buf, binary.LittleEndian)
	sink := newSink()
	Load(ctx, sink)

	found := false
	for _, m := range sink.Messages() {
		if m.Category.Has(category.Bloat) {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateSiblingNonReferenceFormIsError(t *testing.T) {
	buf := []byte{
		uleb(1), uleb(0x11), 1, // has_children = 1
		uleb(0x01), uleb(0x06), // DW_AT_sibling, DW_FORM_data4 (not a reference form)
		0, 0, 0,
	}
	ctx := rdr.Init(buf, binary.LittleEndian)
	sink := newSink()
	Load(ctx, sink)

	assert.True(t, sink.HasError())
}

func TestValidateHighPcWithoutLowPcIsError(t *testing.T) {
	buf := []byte{
		uleb(1), uleb(0x11), 1,
		uleb(0x12), uleb(0x01), // DW_AT_high_pc, DW_FORM_addr
		0, 0, 0,
	}
	ctx := rdr.Init(buf, binary.LittleEndian)
	sink := newSink()
	Load(ctx, sink)

	assert.True(t, sink.HasError())
}

func TestValidateLowAndHighPcTogetherIsFine(t *testing.T) {
	buf := []byte{
		uleb(1), uleb(0x11), 1,
		uleb(0x11), uleb(0x01), // DW_AT_low_pc, DW_FORM_addr
		uleb(0x12), uleb(0x01), // DW_AT_high_pc, DW_FORM_addr
		0, 0, 0,
	}
	ctx := rdr.Init(buf, binary.LittleEndian)
	sink := newSink()
	Load(ctx, sink)

	assert.False(t, sink.HasError())
}
