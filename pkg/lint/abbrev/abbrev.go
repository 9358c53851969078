// Package abbrev implements the .debug_abbrev loader: parsing the section
// into per-offset tables of (code, tag, has_children, attributes) and
// validating each entry's shape.
package abbrev

import (
	"sort"

	"github.com/dwarflint/dwarflint/pkg/lint/category"
	"github.com/dwarflint/dwarflint/pkg/lint/diag"
	"github.com/dwarflint/dwarflint/pkg/lint/dwconst"
	"github.com/dwarflint/dwarflint/pkg/lint/rdr"
	"github.com/dwarflint/dwarflint/pkg/lint/where"
)

// Attrib is one (name, form) pair within an abbreviation.
type Attrib struct {
	Name  dwconst.Attr
	Form  dwconst.Form
	Where where.Where
}

// Entry is a single abbreviation: a DIE schema keyed by its code.
type Entry struct {
	Code        uint64
	Tag         dwconst.Tag
	HasChildren bool
	Attribs     []Attrib
	Where       where.Where
	Used        bool
}

// Table is the abbreviations declared starting at one .debug_abbrev offset,
// sorted by code for binary lookup.
type Table struct {
	Offset  uint64
	entries []Entry
}

// Lookup finds the abbreviation for code, or ok=false if undeclared.
func (t *Table) Lookup(code uint64) (*Entry, bool) {
	i := sort.Search(len(t.entries), func(i int) bool { return t.entries[i].Code >= code })
	if i < len(t.entries) && t.entries[i].Code == code {
		return &t.entries[i], true
	}
	return nil, false
}

// Entries returns every abbreviation in the table, sorted by code. Callers
// must not mutate the slice's Used flags directly except through MarkUsed.
func (t *Table) Entries() []Entry { return t.entries }

// MarkUsed flags the abbreviation for code as having been applied to at
// least one DIE, feeding the end-of-CU "unused abbreviation" bloat check.
func (t *Table) MarkUsed(code uint64) {
	i := sort.Search(len(t.entries), func(i int) bool { return t.entries[i].Code >= code })
	if i < len(t.entries) && t.entries[i].Code == code {
		t.entries[i].Used = true
	}
}

// Chain is every abbreviation table in a .debug_abbrev section, keyed by
// its starting offset.
type Chain struct {
	tables map[uint64]*Table
}

// TableAt returns the table starting at offset, or nil if none exists.
func (c *Chain) TableAt(offset uint64) *Table { return c.tables[offset] }

func newWhere(offset uint64) where.Where {
	o := offset
	return where.Where{Section: ".debug_abbrev", Addr1: &o}
}

// Load parses the whole .debug_abbrev buffer into a Chain: entries
// accumulate into the table for the current starting
// offset; a code of zero ends that table (and, if it's the very first code
// read at a prospective table start, is accepted as padding rather than an
// error) and the next non-zero code starts a fresh table at its own offset.
func Load(ctx *rdr.Ctx, sink *diag.Sink) *Chain {
	chain := &Chain{tables: make(map[uint64]*Table)}

	var cur *Table
	byCodeSeen := map[uint64]int{} // code -> index within cur.entries, reset per table

	for !ctx.Eof() {
		tableStart := ctx.GetOffset()

		code, _, err := ctx.Uleb128()
		if err != nil {
			sink.Report(category.Abbrevs|category.Error, newWhere(tableStart), "%v", err)
			return chain
		}

		if code == 0 {
			// Padding/terminator: close the current table, if any.
			cur = nil
			byCodeSeen = map[uint64]int{}
			continue
		}

		if cur == nil {
			cur = &Table{Offset: tableStart}
			chain.tables[tableStart] = cur
			byCodeSeen = map[uint64]int{}
		}

		entryWhere := newWhere(cur.Offset).WithNext(0)
		ea := tableStart
		entryWhere.Addr2 = &ea

		tag, _, err := ctx.Uleb128()
		if err != nil {
			sink.Report(category.Abbrevs|category.Error, entryWhere, "%v", err)
			return chain
		}
		if tag > uint64(dwconst.TagHiUser) {
			sink.Report(category.Abbrevs|category.Error, entryWhere, "invalid tag 0x%x exceeds DW_TAG_hi_user", tag)
		}

		hasChildrenByte, err := ctx.Ubyte()
		if err != nil {
			sink.Report(category.Abbrevs|category.Error, entryWhere, "%v", err)
			return chain
		}
		if hasChildrenByte != 0 && hasChildrenByte != 1 {
			sink.Report(category.Abbrevs|category.Error, entryWhere, "invalid has_children value %d", hasChildrenByte)
		}

		entry := Entry{
			Code:        code,
			Tag:         dwconst.Tag(tag),
			HasChildren: hasChildrenByte != 0,
			Where:       entryWhere,
		}

		for {
			name, _, err := ctx.Uleb128()
			if err != nil {
				sink.Report(category.Abbrevs|category.Error, entryWhere, "%v", err)
				return chain
			}
			form, _, err := ctx.Uleb128()
			if err != nil {
				sink.Report(category.Abbrevs|category.Error, entryWhere, "%v", err)
				return chain
			}
			if name == 0 && form == 0 {
				break
			}
			entry.Attribs = append(entry.Attribs, Attrib{
				Name:  dwconst.Attr(name),
				Form:  dwconst.Form(form),
				Where: entryWhere,
			})
		}

		validateEntry(&entry, entryWhere, sink)

		if prevIdx, dup := byCodeSeen[code]; dup {
			sink.Report(category.Abbrevs|category.Error, entryWhere,
				"duplicate abbreviation code %d (first declared at entry %d)", code, prevIdx)
			continue
		}
		byCodeSeen[code] = len(cur.entries)
		cur.entries = append(cur.entries, entry)
	}

	for _, t := range chain.tables {
		sort.Slice(t.entries, func(i, j int) bool { return t.entries[i].Code < t.entries[j].Code })
	}

	return chain
}

func validateEntry(e *Entry, w where.Where, sink *diag.Sink) {
	var siblingSeen bool

	for _, a := range e.Attribs {
		switch a.Name {
		case dwconst.AttrSibling:
			if siblingSeen {
				sink.Report(category.Abbrevs|category.Error, w, "DW_AT_sibling appears more than once")
			}
			siblingSeen = true

			if a.Form == dwconst.FormRefAddr {
				sink.Report(category.Abbrevs|category.Impact2, w, "DW_AT_sibling with DW_FORM_ref_addr")
			} else if !dwconst.IsReferenceClass(a.Form) {
				sink.Report(category.Abbrevs|category.Error, w, "DW_AT_sibling form is not of the reference class")
			}

			if !e.HasChildren {
				sink.Report(category.Abbrevs|category.Bloat, w, "DW_AT_sibling attribute on a childless abbreviation")
			}

		case dwconst.AttrLocation, dwconst.AttrFrameBase, dwconst.AttrDataLocation, dwconst.AttrDataMemberLocation:
			if !(a.Form == dwconst.FormData4 || a.Form == dwconst.FormData8 ||
				dwconst.IsBlockForm(a.Form) || a.Form == dwconst.FormIndirect) {
				sink.Report(category.Abbrevs|category.Error, w, "location attribute has unsupported form")
			}

		case dwconst.AttrRanges, dwconst.AttrStmtList:
			if !(a.Form == dwconst.FormData4 || a.Form == dwconst.FormData8 || a.Form == dwconst.FormIndirect) {
				sink.Report(category.Abbrevs|category.Error, w, "rangeptr/lineptr attribute has unsupported form")
			}
		}
	}

	var hasLow, hasHigh, hasRanges bool
	for _, a := range e.Attribs {
		switch a.Name {
		case dwconst.AttrLowpc:
			hasLow = true
			if !(a.Form == dwconst.FormAddr || a.Form == dwconst.FormRefAddr) {
				sink.Report(category.Abbrevs|category.Error, w, "DW_AT_low_pc has unsupported form")
			}
		case dwconst.AttrHighpc:
			hasHigh = true
			if !(a.Form == dwconst.FormAddr || a.Form == dwconst.FormRefAddr) {
				sink.Report(category.Abbrevs|category.Error, w, "DW_AT_high_pc has unsupported form")
			}
		case dwconst.AttrRanges:
			hasRanges = true
		}
	}

	if hasHigh && !hasLow {
		sink.Report(category.Abbrevs|category.Error, w, "DW_AT_high_pc without DW_AT_low_pc")
	}
	if hasHigh && hasLow && hasRanges {
		sink.Report(category.Abbrevs|category.Error, w, "DW_AT_high_pc, DW_AT_low_pc and DW_AT_ranges together")
	}
}
