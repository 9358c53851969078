// Package covmap implements the ELF-section-indexed coverage map, used to
// compare CU-derived address ranges against the sections an ELF file
// actually allocated, and to detect cross-section straddles.
package covmap

import (
	"sort"

	"github.com/dwarflint/dwarflint/pkg/lint/category"
	"github.com/dwarflint/dwarflint/pkg/lint/coverage"
	"github.com/dwarflint/dwarflint/pkg/lint/diag"
	"github.com/dwarflint/dwarflint/pkg/lint/elfsrc"
	"github.com/dwarflint/dwarflint/pkg/lint/where"
	"github.com/dwarflint/dwarflint/pkg/utils"
)

// sectionFlags packs a section's EXEC/WRITE/warn-only bits so the holes-check's
// "non-executable and non-init/fini/plt" rule can be expressed as a bit
// test rather than three separate booleans threaded everywhere.
type sectionFlags uint8

const (
	flagExec sectionFlags = 1 << iota
	flagWrite
	flagWarnOnly
)

// section wraps one allocated ELF section with its own coverage set.
type section struct {
	Name  string
	Addr  uint64
	Size  uint64
	flags utils.BitView[sectionFlags]
	bits  sectionFlags
	cov   coverage.Set
	hit   bool
}

func (s *section) end() uint64 { return s.Addr + s.Size }

// Map is the ordered list of section coverages for one ELF file.
type Map struct {
	sections []*section
}

// BuildOptions filters an ELF's sections by flag mask: a section is
// included when (flags & RequiredMask) == RequiredMask, and its holes are
// demoted to warn-only when (flags & WarnMask) == WarnMask.
type BuildOptions struct {
	RequiredMask sectionFlagsOption
	WarnMask     sectionFlagsOption
}

// sectionFlagsOption mirrors the ELF SHF_* bits a caller cares about; kept
// separate from sectionFlags (the internal compact encoding) so BuildOptions
// stays a plain value type at the package boundary.
type sectionFlagsOption struct {
	Alloc bool
	Exec  bool
	Write bool
}

// DefaultRequired accepts every SHF_ALLOC section (the normal coverage map).
func DefaultRequired() sectionFlagsOption { return sectionFlagsOption{Alloc: true} }

// DefaultWarnOnly accepts allocated, writable sections (data-like sections
// where coverage holes are reported only as warnings).
func DefaultWarnOnly() sectionFlagsOption { return sectionFlagsOption{Alloc: true, Write: true} }

// Build constructs a Map from an ELF's allocated sections, ordered by
// address.
func Build(secs []elfsrc.AllocSection, opts BuildOptions) *Map {
	m := &Map{}
	for _, s := range secs {
		var bits sectionFlags
		warnOnly := true

		if opts.RequiredMask.Exec && !s.Exec {
			continue
		}
		if opts.RequiredMask.Write && !s.Write {
			continue
		}
		if opts.WarnMask.Exec && !s.Exec {
			warnOnly = false
		}
		if opts.WarnMask.Write && !s.Write {
			warnOnly = false
		}

		if s.Exec {
			bits |= flagExec
		}
		if s.Write {
			bits |= flagWrite
		}
		if warnOnly {
			bits |= flagWarnOnly
		}

		sec := &section{Name: s.Name, Addr: s.Addr, Size: s.Size, bits: bits}
		sec.flags = utils.CreateBitView(&sec.bits)
		m.sections = append(m.sections, sec)
	}

	sort.Slice(m.sections, func(i, j int) bool { return m.sections[i].Addr < m.sections[j].Addr })
	return m
}

// intersecting returns every section index whose [Addr,end) range
// intersects [addr,addr+length).
func (m *Map) intersecting(addr, length uint64) []int {
	end := addr + length
	var idx []int
	for i, s := range m.sections {
		if s.Addr < end && s.end() > addr {
			idx = append(idx, i)
		}
	}
	return idx
}

// Add distributes [addr,addr+length) across intersecting sections,
// reporting cross-section straddles and per-section overlaps, and updating
// each intersected section's coverage.
func (m *Map) Add(addr, length uint64, w where.Where, cat category.Category, sink *diag.Sink) {
	hit := m.intersecting(addr, length)

	if len(hit) == 0 {
		return
	}

	if len(hit) > 1 {
		sink.Report(cat|category.Impact2, w, "address range [0x%x, 0x%x) straddles %d sections", addr, addr+length, len(hit))
	}

	for _, i := range hit {
		s := m.sections[i]
		clampedStart := addr
		if clampedStart < s.Addr {
			clampedStart = s.Addr
		}
		clampedEnd := addr + length
		if clampedEnd > s.end() {
			clampedEnd = s.end()
		}

		if s.cov.IsOverlap(clampedStart, clampedEnd-clampedStart) {
			sink.Report(cat|category.Impact2|category.Error, w, "address range [0x%x, 0x%x) overlaps previously covered bytes in section %s", clampedStart, clampedEnd, s.Name)
		}

		s.cov.Add(clampedStart, clampedEnd-clampedStart)
		s.hit = true
	}
}

// FindHoles reports every per-section hole: a hole is skipped when the
// section is non-executable and not init/fini/plt-like, or the hole fits
// within one alignment unit.
func (m *Map) FindHoles(align uint64, cb func(sectionName string, start, length uint64, warnOnly bool)) {
	for _, s := range m.sections {
		isExec := s.flags.Read(0, 1) != 0
		if !isExec && !isExecLikeName(s.Name) {
			// Non-executable, non-special section: holes are expected
			// (e.g. .debug_str, .rodata padding) and are not reported.
			continue
		}

		s.cov.FindHoles(s.Addr, s.end(), func(start, length uint64) {
			if align > 0 && length <= align {
				return
			}
			cb(s.Name, start, length, s.flags.Read(2, 1) != 0)
		})
	}
}

func isExecLikeName(name string) bool {
	switch name {
	case ".init", ".fini", ".plt", ".plt.sec":
		return true
	default:
		return false
	}
}

// SectionFor returns the name of the section containing addr, or ok=false.
func (m *Map) SectionFor(addr uint64) (string, bool) {
	for _, s := range m.sections {
		if addr >= s.Addr && addr < s.end() {
			return s.Name, true
		}
	}
	return "", false
}
