// Package info implements the DIE chain walker: the recursive parse of
// .debug_info CU by CU, DIE by DIE, with attribute-form decoding,
// sibling/reference/location-pointer tracking, and low/high PC coverage
// accumulation. It is the largest and most central component of the
// validator.
package info

import (
	"github.com/dwarflint/dwarflint/pkg/lint/abbrev"
	"github.com/dwarflint/dwarflint/pkg/lint/category"
	"github.com/dwarflint/dwarflint/pkg/lint/coverage"
	"github.com/dwarflint/dwarflint/pkg/lint/cu"
	"github.com/dwarflint/dwarflint/pkg/lint/diag"
	"github.com/dwarflint/dwarflint/pkg/lint/dwconst"
	"github.com/dwarflint/dwarflint/pkg/lint/formval"
	"github.com/dwarflint/dwarflint/pkg/lint/locexpr"
	"github.com/dwarflint/dwarflint/pkg/lint/rdr"
	"github.com/dwarflint/dwarflint/pkg/lint/reloc"
	"github.com/dwarflint/dwarflint/pkg/lint/where"
)

// dieResult is a small sum type rather than a -1/0/+1 return code: Err
// means an unrecoverable parse error aborted the CU, Empty means the chain
// held only the terminator, and Loaded means at least one DIE was parsed.
type dieResult int

const (
	dieErr dieResult = iota
	dieEmpty
	dieLoaded
)

// Options configures a Walk over .debug_info.
type Options struct {
	Reloc       *reloc.Table // relocations for .debug_info, nil if none
	IsRel       bool         // ET_REL: non-relocated values draw warnings
	StrSize     uint64       // size of .debug_str, for strp bounds checks
	StrCoverage *coverage.Set
	SectionFor  func(addr uint64) (string, bool) // symbol-target section lookup for low/high pc cross-checks
}

// Result is everything the walker produces for downstream components.
type Result struct {
	Chain          *cu.Chain
	GlobalCoverage cu.Coverage
}

type walker struct {
	ctx  *rdr.Ctx
	sink *diag.Sink
	opts Options

	abbrevChain *abbrev.Chain
	chain       *cu.Chain
	globalCov   cu.Coverage

	// globalRefs collects every ref_addr reference across all CUs, for the
	// post-pass that checks each resolves to some CU's DieAddrs.
	globalRefs []globalRef
}

type globalRef struct {
	addr   uint64
	where  where.Where
	fromCU *cu.CU
}

func sectionWhere(section string, cuOff, dieOff *uint64) where.Where {
	return where.Where{Section: section, Addr1: cuOff, Addr2: dieOff, Kind: where.CUDie}
}

// Walk parses the entirety of .debug_info, returning the CU chain in file
// order and the accumulated low/high-PC address coverage.
func Walk(ctx *rdr.Ctx, abbrevChain *abbrev.Chain, sink *diag.Sink, opts Options) *Result {
	w := &walker{
		ctx:         ctx,
		sink:        sink,
		opts:        opts,
		abbrevChain: abbrevChain,
		chain:       &cu.Chain{},
	}

	for !ctx.Eof() {
		if w.skipPaddingIfZero() {
			continue
		}
		ok := w.walkCU()
		if !ok {
			break
		}
	}

	w.resolveLocalReferences()
	w.resolveGlobalReferences()

	return &Result{Chain: w.chain, GlobalCoverage: w.globalCov}
}

// skipPaddingIfZero consumes a run of NUL words up to the next CU header,
// accepted only when every word in the run is zero. It peeks each word
// before committing to it, so the first non-zero word (the next CU's
// length field, or the only word present when there is no padding at all)
// is left untouched for walkCU to read.
func (w *walker) skipPaddingIfZero() bool {
	n := 0
	for w.ctx.NeedData(4) {
		v, err := w.ctx.PeekVar(4)
		if err != nil || v != 0 {
			break
		}
		if err := w.ctx.Skip(4); err != nil {
			break
		}
		n += 4
	}
	return n > 0
}

func (w *walker) walkCU() bool {
	cuWhere := sectionWhere(".debug_info", nil, nil)
	cuOffset := w.ctx.GetOffset()

	length, err := w.ctx.Ubyte4()
	if err != nil {
		w.sink.ReportExplicitError(category.Info|category.Header, cuWhere, "failed to read CU length: %v", err)
		return false
	}

	dwarf64 := false
	var fullLength uint64
	switch {
	case length == 0xffffffff:
		dwarf64 = true
		fullLength, err = w.ctx.Ubyte8()
		if err != nil {
			w.sink.ReportExplicitError(category.Info|category.Header, cuWhere, "failed to read 64-bit CU length: %v", err)
			return false
		}
	case length >= 0xfffffff0:
		w.sink.ReportExplicitError(category.Info|category.Header, cuWhere, "invalid CU length 0x%x (reserved escape range)", length)
		return false
	default:
		fullLength = uint64(length)
	}

	cuOff := cuOffset
	headerWhere := sectionWhere(".debug_info", &cuOff, nil)

	subEnd := w.ctx.Position() + int(fullLength)
	sub, err := rdr.InitSub(w.ctx, w.ctx.Position(), subEnd)
	if err != nil {
		w.sink.ReportExplicitError(category.Info|category.Header, headerWhere, "CU length runs past end of section: %v", err)
		return false
	}

	version, err := sub.Ubyte2()
	if err != nil {
		w.sink.ReportExplicitError(category.Info|category.Header, headerWhere, "failed to read version: %v", err)
		return w.advancePast(subEnd)
	}
	if version != 2 && version != 3 {
		w.sink.Report(category.Info|category.Header|category.Error, headerWhere, "unsupported DWARF version %d", version)
	}
	if version == 2 && dwarf64 {
		w.sink.Report(category.Info|category.Header|category.Error, headerWhere, "DWARF version 2 with 64-bit length escape is a standards violation")
	}

	abbrevOffset, err := sub.Offset(dwarf64)
	if err != nil {
		w.sink.ReportExplicitError(category.Info|category.Header, headerWhere, "failed to read abbrev offset: %v", err)
		return w.advancePast(subEnd)
	}
	if w.opts.IsRel && w.opts.Reloc != nil {
		fieldOffset := sub.SectionOffset + uint64(sub.Position()) - uint64(widthOf(dwarf64))
		width := reloc.Width4
		if dwarf64 {
			width = reloc.Width8
		}
		if e, ok := w.opts.Reloc.Next(fieldOffset, reloc.SkipMismatched, w.reportMismatched); ok {
			resolved, rerr := w.opts.Reloc.RelocateOne(e, width, []reloc.SectionClass{reloc.ClassDebug})
			if rerr == nil {
				abbrevOffset = resolved.Value
			}
		}
	}

	addrSizeByte, err := sub.Ubyte()
	if err != nil {
		w.sink.ReportExplicitError(category.Info|category.Header, headerWhere, "failed to read address size: %v", err)
		return w.advancePast(subEnd)
	}
	if addrSizeByte != 4 && addrSizeByte != 8 {
		w.sink.Report(category.Info|category.Header|category.Error, headerWhere, "invalid address size %d, aborting CU", addrSizeByte)
		return w.advancePast(subEnd)
	}

	theCU := &cu.CU{
		Offset:      cuOffset,
		Length:      fullLength,
		Version:     version,
		Dwarf64:     dwarf64,
		AddressSize: int(addrSizeByte),
		Where:       headerWhere,
	}
	w.chain.Units = append(w.chain.Units, theCU)

	table := w.abbrevChain.TableAt(abbrevOffset)
	if table == nil {
		w.sink.Report(category.Info|category.Error, headerWhere, "no abbreviation table at offset 0x%x", abbrevOffset)
		return w.advancePast(subEnd)
	}

	cuDieOffset := sub.GetOffset()
	theCU.CUDieOffset = cuDieOffset

	cs := &cuWalk{walker: w, cu: theCU, table: table, addr64: addrSizeByte == 8, dwarf64: dwarf64}
	cs.walkSiblingChain(sub)

	for _, e := range table.Entries() {
		if !e.Used {
			w.sink.Report(category.Abbrevs|category.Bloat, headerWhere, "unused abbreviation code %d", e.Code)
		}
	}

	return w.advancePast(subEnd)
}

func widthOf(dwarf64 bool) int {
	if dwarf64 {
		return 8
	}
	return 4
}

func (w *walker) advancePast(pos int) bool {
	if w.ctx.Position() < pos {
		_ = w.ctx.Skip(pos - w.ctx.Position())
	}
	return true
}

func (w *walker) reportMismatched(e reloc.Entry, mode reloc.SkipMode) {
	// Relocations skipped while matching CU headers are rare and not
	// independently diagnosed here; the DIE-level attribute walk is where
	// "lacks relocation" is actionable.
}

// cuWalk carries the per-CU state threaded through the recursive descent,
// reified per the design notes instead of captured closures.
type cuWalk struct {
	*walker
	cu      *cu.CU
	table   *abbrev.Table
	addr64  bool
	dwarf64 bool
}

// walkSiblingChain reads DIEs at one nesting level until the terminating
// zero code, verifying each DIE's advertised DW_AT_sibling offset against
// the next DIE actually encountered.
func (c *cuWalk) walkSiblingChain(ctx *rdr.Ctx) dieResult {
	var pendingSibling *uint64
	var pendingSiblingWhere where.Where
	count := 0

	for {
		dieOffset := ctx.GetOffset()

		code, _, err := ctx.Uleb128()
		if err != nil {
			c.sink.Report(category.Info|category.Error, c.cu.Where, "%v", err)
			return dieErr
		}

		if code == 0 {
			if pendingSibling != nil {
				c.sink.Report(category.Info|category.DieRel|category.Error, pendingSiblingWhere,
					"advertised sibling but this was the last DIE in the chain")
			}
			if count == 0 {
				return dieEmpty
			}
			return dieLoaded
		}

		if pendingSibling != nil && *pendingSibling != dieOffset {
			w := pendingSiblingWhere
			c.sink.Report(category.Info|category.DieRel|category.Error, w,
				"this DIE should have had its sibling at 0x%x, but it's at 0x%x", *pendingSibling, dieOffset)
		}
		pendingSibling = nil
		count++

		sibling, ok := c.walkDie(ctx, dieOffset, code)
		if !ok {
			return dieErr
		}
		if sibling != nil {
			pendingSibling = sibling
			a2 := dieOffset
			pendingSiblingWhere = sectionWhere(".debug_info", &c.cu.Offset, &a2)
		}
	}
}

// walkDie parses one DIE and, if it advertised DW_AT_sibling, returns the
// advertised absolute offset for the caller to verify.
func (c *cuWalk) walkDie(ctx *rdr.Ctx, dieOffset, code uint64) (*uint64, bool) {
	dieOff := dieOffset
	dieW := sectionWhere(".debug_info", &c.cu.Offset, &dieOff)

	entry, ok := c.table.Lookup(code)
	if !ok {
		c.sink.Report(category.Info|category.Error, dieW, "DIE references unknown abbreviation code %d", code)
		return nil, false
	}
	c.table.MarkUsed(code)
	c.cu.DieAddrs.Add(dieOffset)

	isCUDie := entry.Tag == dwconst.TagCompileUnit || entry.Tag == dwconst.TagPartialUnit

	var lowPC, highPC uint64
	var haveLow, haveHigh, lowRelocated, highRelocated bool
	var sibling *uint64
	var hadSiblingAttr bool

	for _, a := range entry.Attribs {
		form := a.Form
		if form == dwconst.FormIndirect {
			innerForm, _, err := ctx.Uleb128()
			if err != nil {
				c.sink.Report(category.Info|category.Error, dieW, "%v", err)
				return nil, false
			}
			form = dwconst.Form(innerForm)
			if form == dwconst.FormIndirect {
				c.sink.Report(category.Info|category.Error, dieW, "DW_FORM_indirect decoded to another DW_FORM_indirect")
				return nil, false
			}
			if a.Name == dwconst.AttrSibling && form == dwconst.FormRefAddr {
				c.sink.Report(category.Info|category.Impact2, dieW, "DW_AT_sibling with DW_FORM_ref_addr")
			}
		}

		val, err := formval.ReadForm(ctx, c.addr64, c.dwarf64, form)
		if err != nil {
			c.sink.Report(category.Info|category.Error, dieW, "%v", err)
			return nil, false
		}
		if val.LebBloat {
			c.sink.Report(category.Info|category.Leb128|category.Bloat|category.Impact3, dieW, "LEB128 value more bloated than necessary")
		}

		switch a.Name {
		case dwconst.AttrSibling:
			hadSiblingAttr = true
			abs := c.cu.Offset + val.Uint
			if form == dwconst.FormRefAddr {
				abs = val.Uint
			}
			sibling = &abs

		case dwconst.AttrLowpc:
			haveLow = true
			lowPC = val.Uint
			if form == dwconst.FormRefAddr {
				lowRelocated = c.checkRelocated(val.Uint, dieW)
			}
			if isCUDie {
				c.cu.LowPC = val.Uint
				c.cu.HasLowPC = true
			}

		case dwconst.AttrHighpc:
			haveHigh = true
			highPC = val.Uint
			if form == dwconst.FormRefAddr {
				highRelocated = c.checkRelocated(val.Uint, dieW)
			}

		case dwconst.AttrRanges:
			c.cu.RangeRefs.Add(c.resolveDataPtr(val, c.dwarf64), dieW)
			c.globalCov.NeedRanges = true
			if c.resolveDataPtr(val, c.dwarf64)%uint64(c.cu.AddressSize) != 0 {
				c.sink.Report(category.Info|category.Ranges|category.Impact2, dieW, "rangeptr not aligned to the CU's address size")
			}

		case dwconst.AttrStmtList:
			c.cu.LineRefs.Add(c.resolveDataPtr(val, c.dwarf64), dieW)

		case dwconst.AttrLocation, dwconst.AttrFrameBase, dwconst.AttrDataLocation, dwconst.AttrDataMemberLocation:
			c.walkLocationAttribute(val, form, dieW)
		}

		if dwconst.IsLocalRefForm(form) {
			target := val.Uint
			if form != dwconst.FormRefUdata || true {
				target = c.cu.Offset + val.Uint
			}
			c.cu.LocalRefs.Add(target, dieW)
		}
		if form == dwconst.FormRefAddr && a.Name != dwconst.AttrSibling && a.Name != dwconst.AttrLowpc && a.Name != dwconst.AttrHighpc {
			c.cu.DieRefs.Add(val.Uint, dieW)
			c.globalRefs = append(c.globalRefs, globalRef{addr: val.Uint, where: dieW, fromCU: c.cu})
		}
		if form == dwconst.FormStrp {
			c.checkStrp(val.Uint, dieW)
		}
	}

	if entry.HasChildren && !hadSiblingAttr {
		c.sink.Report(category.Info|category.Bloat|category.Suboptimal, dieW, "DIE with children has no DW_AT_sibling attribute")
	}

	if haveLow && haveHigh {
		if lowRelocated != highRelocated {
			c.sink.Report(category.Info|category.Impact2, dieW, "one of DW_AT_low_pc/DW_AT_high_pc is relocated but not the other")
		}
		c.addCUCoverage(lowPC, highPC, dieW)
	}

	if entry.HasChildren {
		childResult := c.walkSiblingChain(ctx)
		if childResult == dieErr {
			return nil, false
		}
		if childResult == dieEmpty {
			c.sink.Report(category.Info|category.Bloat|category.Impact3, dieW, "DIE has children but its child chain is empty")
		}
	}

	return sibling, true
}

func (c *cuWalk) resolveDataPtr(val formval.Value, dwarf64 bool) uint64 {
	return val.Uint
}

func (c *cuWalk) checkRelocated(addr uint64, w where.Where) bool {
	if !c.opts.IsRel {
		return true
	}
	if addr == 0 {
		return false
	}
	if c.opts.Reloc == nil {
		c.sink.Report(category.Info|category.Reloc|category.Impact2, w, "non-zero address with no relocation in ET_REL object")
		return false
	}
	return true
}

func (c *cuWalk) addCUCoverage(low, high uint64, w where.Where) {
	if high < low {
		c.sink.Report(category.Info|category.Error, w, "DW_AT_high_pc (0x%x) precedes DW_AT_low_pc (0x%x)", high, low)
		return
	}
	c.globalCov.Cov.Add(low, high-low)
}

func (c *cuWalk) walkLocationAttribute(val formval.Value, form dwconst.Form, w where.Where) {
	if !dwconst.IsBlockForm(form) || len(val.Block) == 0 {
		return
	}
	sub := rdr.Init(val.Block, c.ctx.Order)
	locexpr.Validate(sub, c.addr64, c.sink, w, category.Loc)
}

func (c *cuWalk) checkStrp(offset uint64, w where.Where) {
	if c.opts.IsRel && c.opts.Reloc != nil {
		if _, ok := c.opts.Reloc.Next(offset, reloc.SkipSilently, nil); !ok {
			c.sink.Report(category.Strings|category.Reloc|category.Impact2, w, "LACK_RELOCATION: DW_FORM_strp offset has no matching relocation")
		}
	}
	if c.opts.StrSize != 0 && offset >= c.opts.StrSize {
		c.sink.Report(category.Strings|category.Error, w, "DW_FORM_strp offset 0x%x is past the end of .debug_str", offset)
		return
	}
	if c.opts.StrCoverage != nil {
		// The string's length is not read from .debug_str here, so no
		// range is added to StrCoverage: the set is left unchanged.
		_ = offset
	}
}

// resolveLocalReferences enforces the per-CU invariant: every CU-local
// reference must resolve to a recorded DIE offset within the same CU, or a
// diagnostic is emitted.
func (w *walker) resolveLocalReferences() {
	for _, u := range w.chain.Units {
		for _, r := range u.LocalRefs.All() {
			if !u.DieAddrs.Has(r.Addr) {
				ow, _ := r.Origin.(where.Where)
				w.sink.Report(category.Info|category.DieRel|category.Error, ow,
					"unresolved reference to offset 0x%x", r.Addr)
			}
		}
	}
}

// resolveGlobalReferences enforces the global invariant: every ref_addr
// reference must resolve to a DIE in some CU, and warns when a
// same-CU-resolvable global reference could have used a smaller local form.
func (w *walker) resolveGlobalReferences() {
	for _, g := range w.globalRefs {
		found := false
		localHit := false
		for _, u := range w.chain.Units {
			if u.DieAddrs.Has(g.addr) {
				found = true
				if u == g.fromCU {
					localHit = true
				}
				break
			}
		}
		if !found {
			w.sink.Report(category.Info|category.DieRel|category.Error, g.where,
				"unresolved global reference to offset 0x%x", g.addr)
		} else if localHit {
			w.sink.Report(category.Info|category.Bloat, g.where,
				"global reference to offset 0x%x resolves within the same CU and could use a smaller local form", g.addr)
		}
	}
}
