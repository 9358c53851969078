// Package engine orchestrates one file's lint pass: load .debug_abbrev,
// walk .debug_info, check .debug_loc/.debug_ranges, check
// .debug_aranges/.debug_pubnames/.debug_pubtypes/.debug_line, and finally
// cross-check every accumulated address range against the ELF's own
// section map. It owns no parsing logic of its own — only the order
// sections are visited in and the options each checker is handed.
package engine

import (
	"github.com/dwarflint/dwarflint/pkg/lint/abbrev"
	"github.com/dwarflint/dwarflint/pkg/lint/category"
	"github.com/dwarflint/dwarflint/pkg/lint/coverage"
	"github.com/dwarflint/dwarflint/pkg/lint/covmap"
	"github.com/dwarflint/dwarflint/pkg/lint/cu"
	"github.com/dwarflint/dwarflint/pkg/lint/diag"
	"github.com/dwarflint/dwarflint/pkg/lint/elfsrc"
	"github.com/dwarflint/dwarflint/pkg/lint/info"
	"github.com/dwarflint/dwarflint/pkg/lint/loc"
	"github.com/dwarflint/dwarflint/pkg/lint/rdr"
	"github.com/dwarflint/dwarflint/pkg/lint/tables"
	"github.com/dwarflint/dwarflint/pkg/lint/where"
	"github.com/dwarflint/dwarflint/pkg/utils"
)

// Flags selects which criteria mode a run uses. Exactly the knobs the CLI
// front end exposes as --strict/--gnu/--tolerant/--ignore-missing.
type Flags struct {
	Strict        bool
	GNU           bool
	Tolerant      bool
	IgnoreMissing bool
}

// BuildCriteria turns Flags into the warn/error DNF criteria a Sink enforces.
// Strict promotes bloat/suboptimal findings to errors. GNU accepts GNU
// producer quirks that would otherwise be flagged as non-standard forms
// (modeled here as demoting impact_1 out of the default error set). Tolerant
// demotes everything but explicit errors to warnings-only, never promoting
// to error regardless of impact.
func BuildCriteria(f Flags) (warn, errCrit category.Criterion) {
	warn = category.DefaultWarnCriterion()
	errCrit = category.DefaultErrorCriterion()

	if f.Strict {
		errCrit = errCrit.Or(category.Term{Positive: category.Bloat}).
			Or(category.Term{Positive: category.Suboptimal})
	}
	if f.GNU {
		errCrit = errCrit.AndNot(category.Single(category.Impact1))
	}
	if f.Tolerant {
		errCrit = category.Single(category.Error)
	}
	return warn, errCrit
}

// Report is everything one file's lint pass produced.
type Report struct {
	Path  string
	Sink  *diag.Sink
	Chain *cu.Chain
}

func sectionWhere(name string) where.Where { return where.Where{Section: name, Kind: where.Plain} }

// Run performs a full lint pass over path, applying the criteria Flags
// selects.
func Run(path string, flags Flags) (*Report, error) {
	f, err := elfsrc.Open(path)
	if err != nil {
		return nil, utils.MakeError(err, "opening %s", path)
	}

	warn, errCrit := BuildCriteria(flags)
	sink := diag.NewSink(warn, errCrit)

	infoBytes, _, ok := f.Section(".debug_info")
	if !ok {
		if !flags.IgnoreMissing {
			sink.ReportExplicitError(category.Info|category.Error, sectionWhere(".debug_info"), "missing mandatory section")
		}
		return &Report{Path: path, Sink: sink}, nil
	}

	abbrevBytes, _, ok := f.Section(".debug_abbrev")
	if !ok {
		if !flags.IgnoreMissing {
			sink.ReportExplicitError(category.Abbrevs|category.Error, sectionWhere(".debug_abbrev"), "missing mandatory section")
		}
		return &Report{Path: path, Sink: sink}, nil
	}

	abbrevCtx := rdr.Init(abbrevBytes, f.ByteOrder())
	abbrevChain := abbrev.Load(abbrevCtx, sink)

	infoReloc, hasInfoReloc := f.RelocationsFor(".debug_info")
	strBytes, _, _ := f.Section(".debug_str")

	covMap := covmap.Build(f.AllocatedSections(), covmap.BuildOptions{
		RequiredMask: covmap.DefaultRequired(),
		WarnMask:     covmap.DefaultWarnOnly(),
	})

	infoCtx := rdr.Init(infoBytes, f.ByteOrder())
	result := info.Walk(infoCtx, abbrevChain, sink, info.Options{
		Reloc:      infoReloc,
		IsRel:      f.IsRelocatable() && hasInfoReloc,
		StrSize:    uint64(len(strBytes)),
		SectionFor: covMap.SectionFor,
	})

	locReloc, hasLocReloc := f.RelocationsFor(".debug_loc")
	if locBytes, _, ok := f.Section(".debug_loc"); ok {
		locCtx := rdr.Init(locBytes, f.ByteOrder())
		loc.CheckLoc(locCtx, result.Chain, sink, loc.Options{
			Reloc:  locReloc,
			IsRel:  f.IsRelocatable() && hasLocReloc,
			Addr64: f.AddressSize() == 8,
		})
	}

	covsByCU := map[*cu.CU]*cu.Coverage{}
	for _, u := range result.Chain.Units {
		covsByCU[u] = &cu.Coverage{NeedRanges: u.RangeRefs.Len() > 0}
	}

	rangesReloc, hasRangesReloc := f.RelocationsFor(".debug_ranges")
	if rangesBytes, _, ok := f.Section(".debug_ranges"); ok {
		rangesCtx := rdr.Init(rangesBytes, f.ByteOrder())
		loc.CheckRanges(rangesCtx, result.Chain, sink, loc.Options{
			Reloc:  rangesReloc,
			IsRel:  f.IsRelocatable() && hasRangesReloc,
			Addr64: f.AddressSize() == 8,
		}, covsByCU)
	}

	for _, u := range result.Chain.Units {
		cv := covsByCU[u]
		if cv == nil {
			continue
		}
		if cv.NeedRanges {
			sink.Report(category.Info|category.Ranges|category.Error, u.Where, "compile unit references DW_AT_ranges but no .debug_ranges data resolved")
		}
		cv.Cov.FindRanges(func(iv coverage.Interval) {
			result.GlobalCoverage.Cov.Add(iv.Start, iv.Len())
		})
	}

	if arangesBytes, _, ok := f.Section(".debug_aranges"); ok {
		arangesCtx := rdr.Init(arangesBytes, f.ByteOrder())
		tables.CheckAranges(arangesCtx, result.Chain, sink)
	}
	if pubnamesBytes, _, ok := f.Section(".debug_pubnames"); ok {
		pubnamesCtx := rdr.Init(pubnamesBytes, f.ByteOrder())
		tables.CheckPub(pubnamesCtx, result.Chain, sink, false)
	}
	if pubtypesBytes, _, ok := f.Section(".debug_pubtypes"); ok {
		pubtypesCtx := rdr.Init(pubtypesBytes, f.ByteOrder())
		tables.CheckPub(pubtypesCtx, result.Chain, sink, true)
	}
	if lineBytes, _, ok := f.Section(".debug_line"); ok {
		lineCtx := rdr.Init(lineBytes, f.ByteOrder())
		tables.CheckLine(lineCtx, f.AddressSize() == 8, sink)
	}

	for _, u := range result.Chain.Units {
		if !u.HasArange {
			sink.Report(category.Aranges|category.Bloat|category.Impact1, u.Where, "compile unit has no corresponding .debug_aranges entry")
		}
	}

	codeWhere := sectionWhere(".debug_info")
	result.GlobalCoverage.Cov.FindRanges(func(iv coverage.Interval) {
		covMap.Add(iv.Start, iv.Len(), codeWhere, category.Info, sink)
	})

	covMap.FindHoles(16, func(sectionName string, start, length uint64, warnOnly bool) {
		cat := category.Elf | category.Impact2
		if warnOnly {
			cat = category.Elf | category.Impact1
		}
		sink.Report(cat, sectionWhere(sectionName), "uncovered range [0x%x, 0x%x) not described by any DIE", start, start+length)
	})

	return &Report{Path: path, Sink: sink, Chain: result.Chain}, nil
}
