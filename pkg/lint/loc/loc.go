// Package loc implements the .debug_loc and .debug_ranges checkers: both
// sections share the same begin/end-pair-terminated-by-zero wire format,
// with a reserved "base address selection" entry, but differ in what they
// mean once parsed — a loc-list describes a variable's storage across PC
// ranges, while a range-list extends a DIE's code coverage.
package loc

import (
	"github.com/dwarflint/dwarflint/pkg/lint/addrset"
	"github.com/dwarflint/dwarflint/pkg/lint/category"
	"github.com/dwarflint/dwarflint/pkg/lint/cu"
	"github.com/dwarflint/dwarflint/pkg/lint/diag"
	"github.com/dwarflint/dwarflint/pkg/lint/locexpr"
	"github.com/dwarflint/dwarflint/pkg/lint/rdr"
	"github.com/dwarflint/dwarflint/pkg/lint/reloc"
	"github.com/dwarflint/dwarflint/pkg/lint/where"
)

// Options configures CheckLoc/CheckRanges.
type Options struct {
	Reloc  *reloc.Table
	IsRel  bool
	Addr64 bool
}

func sectionWhere(section string, listOff *uint64) where.Where {
	return where.Where{Section: section, Addr1: listOff, Kind: where.Plain}
}

func baseSentinel(addr64 bool) uint64 {
	if addr64 {
		return ^uint64(0)
	}
	return 0xffffffff
}

// entry is one parsed (begin,end[,block]) record, or a base-address
// selection when isBase is set.
type entry struct {
	begin, end uint64
	block      []byte
	isBase     bool
	newBase    uint64
}

// readList reads one entry list from offset until the (0,0) terminator.
func readList(ctx *rdr.Ctx, addr64 bool, hasBlock bool) ([]entry, bool) {
	var out []entry
	width := 4
	if addr64 {
		width = 8
	}
	sentinel := baseSentinel(addr64)

	for {
		if ctx.Eof() {
			return out, false
		}
		begin, err := ctx.Var(width)
		if err != nil {
			return out, false
		}
		end, err := ctx.Var(width)
		if err != nil {
			return out, false
		}

		if begin == 0 && end == 0 {
			return out, true
		}

		if begin == sentinel {
			out = append(out, entry{isBase: true, newBase: end})
			continue
		}

		e := entry{begin: begin, end: end}
		if hasBlock {
			n, err := ctx.Ubyte2()
			if err != nil {
				return out, false
			}
			b, err := ctx.Bytes(int(n))
			if err != nil {
				return out, false
			}
			e.block = b
		}
		out = append(out, e)
	}
}

// CheckLoc validates every .debug_loc list referenced from the CU chain.
// Location lists describe where a variable lives across PC ranges; they do
// not contribute to address coverage.
func CheckLoc(ctx *rdr.Ctx, chain *cu.Chain, sink *diag.Sink, opts Options) {
	for _, u := range chain.Units {
		refs := addrset.SortedByAddr(u.LocRefs.All())
		for _, r := range refs {
			checkOneList(ctx, u, r, sink, opts, ".debug_loc", true, nil)
		}
	}
}

// CheckRanges validates every .debug_ranges list referenced from the CU
// chain and folds each resolved range into the owning CU's coverage.
func CheckRanges(ctx *rdr.Ctx, chain *cu.Chain, sink *diag.Sink, opts Options, covs map[*cu.CU]*cu.Coverage) {
	for _, u := range chain.Units {
		refs := addrset.SortedByAddr(u.RangeRefs.All())
		if len(refs) == 0 {
			continue
		}
		cov := covs[u]
		for _, r := range refs {
			checkOneList(ctx, u, r, sink, opts, ".debug_ranges", false, cov)
		}
		if cov != nil {
			cov.NeedRanges = false
		}
	}
}

func categoryFor(section string) category.Category {
	if section == ".debug_loc" {
		return category.Loc
	}
	return category.Ranges
}

func checkOneList(ctx *rdr.Ctx, u *cu.CU, r addrset.Ref, sink *diag.Sink, opts Options, section string, hasBlock bool, cov *cu.Coverage) {
	listOff := r.Addr
	w := sectionWhere(section, &listOff)
	cat := categoryFor(section)

	sub, err := rdr.InitSub(ctx, int(listOff), ctx.Len())
	if err != nil {
		sink.Report(cat|category.Error, w, "list offset 0x%x is out of bounds", listOff)
		return
	}

	entries, ok := readList(sub, opts.Addr64, hasBlock)
	if !ok {
		sink.Report(cat|category.Error, w, "unterminated or truncated list at offset 0x%x", listOff)
		return
	}

	base := u.LowPC
	haveBase := u.HasLowPC

	for _, e := range entries {
		if e.isBase {
			base = e.newBase
			haveBase = true
			continue
		}

		if e.begin == e.end {
			sink.Report(cat|category.Bloat|category.Impact3, w, "empty range [0x%x, 0x%x)", e.begin, e.end)
			continue
		}
		if e.end < e.begin {
			sink.Report(cat|category.Error, w, "range end 0x%x precedes begin 0x%x", e.end, e.begin)
			continue
		}
		if !haveBase {
			sink.Report(cat|category.Error, w, "range entry with no base address in scope")
			continue
		}

		if opts.IsRel && opts.Reloc != nil {
			checkRelocated(opts, e.begin, w, cat, sink)
		}

		if hasBlock && len(e.block) > 0 {
			exprCtx := rdr.Init(e.block, ctx.Order)
			locexpr.Validate(exprCtx, opts.Addr64, sink, w, category.Loc)
		}

		if cov != nil {
			cov.Cov.Add(base+e.begin, (base+e.end)-(base+e.begin))
		}
	}
}

func checkRelocated(opts Options, addr uint64, w where.Where, cat category.Category, sink *diag.Sink) {
	if addr == 0 {
		return
	}
	if _, ok := opts.Reloc.Next(addr, reloc.SkipSilently, nil); !ok {
		sink.Report(cat|category.Reloc|category.Impact2, w, "address in ET_REL object lacks a relocation")
	}
}
