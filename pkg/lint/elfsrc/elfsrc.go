// Package elfsrc is the ELF container adapter: an external collaborator
// that enumerates sections by name, reads a section as a byte buffer with
// length and alignment, reads a symbol by index, classifies a relocation
// type into a width category, and byte-swaps primitive integers as needed.
// It wraps the standard library's debug/elf, generalized to the
// width/endian combinations DWARF 2/3 requires rather than one fixed
// machine type.
package elfsrc

import (
	"debug/elf"
	"encoding/binary"

	"github.com/dwarflint/dwarflint/pkg/lint/reloc"
	"github.com/dwarflint/dwarflint/pkg/utils"
)

// File wraps a parsed ELF object, exposing only the contract the lint core
// needs: section lookup, symbol lookup, and relocation classification.
type File struct {
	elf     *elf.File
	byOrder binary.ByteOrder
	symbols []elf.Symbol
}

// Open parses path as an ELF object file.
func Open(path string) (*File, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, utils.MakeError(err, "broken ELF")
	}
	return wrap(f)
}

func wrap(f *elf.File) (*File, error) {
	order := binary.ByteOrder(binary.BigEndian)
	if f.Data == elf.ELFDATA2LSB {
		order = binary.LittleEndian
	}

	syms, err := f.Symbols()
	if err != nil && err != elf.ErrNoSymbols {
		return nil, utils.MakeError(err, "broken ELF: failed to read symbols")
	}

	return &File{elf: f, byOrder: order, symbols: syms}, nil
}

// Class reports ELFCLASS32/ELFCLASS64.
func (f *File) Class() elf.Class { return f.elf.Class }

// AddressSize returns 4 or 8, matching the ELF class.
func (f *File) AddressSize() int {
	if f.elf.Class == elf.ELFCLASS64 {
		return 8
	}
	return 4
}

// ByteOrder returns the file's endianness for primitive decoding.
func (f *File) ByteOrder() binary.ByteOrder { return f.byOrder }

// IsRelocatable reports whether the file is ET_REL (relocations must be
// resolved against debug-section bytes in lock-step with parsing).
func (f *File) IsRelocatable() bool { return f.elf.Type == elf.ET_REL }

// Section returns a named section's raw bytes, or ok=false if the section
// is absent.
func (f *File) Section(name string) (data []byte, align uint64, ok bool) {
	s := f.elf.Section(name)
	if s == nil {
		return nil, 0, false
	}
	b, err := s.Data()
	if err != nil {
		return nil, 0, false
	}
	return b, s.Addralign, true
}

// HasSection reports whether a named section is present.
func (f *File) HasSection(name string) bool {
	return f.elf.Section(name) != nil
}

// AllocatedSections returns every SHF_ALLOC section in file order, used to
// build the coverage map.
func (f *File) AllocatedSections() []AllocSection {
	var out []AllocSection
	for _, s := range f.elf.Sections {
		if s.Flags&elf.SHF_ALLOC == 0 {
			continue
		}
		out = append(out, AllocSection{
			Name:  s.Name,
			Addr:  s.Addr,
			Size:  s.Size,
			Exec:  s.Flags&elf.SHF_EXECINSTR != 0,
			Write: s.Flags&elf.SHF_WRITE != 0,
		})
	}
	return out
}

// AllocSection is the subset of SHF_ALLOC section metadata the coverage map
// needs.
type AllocSection struct {
	Name  string
	Addr  uint64
	Size  uint64
	Exec  bool
	Write bool
}

// symbolToReloc classifies a symbol's section-of-origin per the ELF format's
// special st_shndx values (SHN_ABS, SHN_UNDEF, SHN_COMMON) and otherwise by
// the name of the section st_shndx points at. SHN_XINDEX is not resolved
// through the extended section index table: such a symbol, like one whose
// index lies past the section table, gets no section fields filled in.
func (f *File) symbolToReloc(s elf.Symbol) reloc.Symbol {
	rs := reloc.Symbol{
		Name:  s.Name,
		Value: s.Value,
	}

	switch {
	case s.Section == elf.SHN_ABS:
		rs.SectionAbs = true
		rs.Class = reloc.ClassRelValue
	case s.Section == elf.SHN_UNDEF:
		rs.SectionUndef = true
		rs.Class = reloc.ClassOther
	case s.Section == elf.SHN_COMMON:
		rs.SectionCommon = true
		rs.Class = reloc.ClassOther
	default:
		if int(s.Section) < len(f.elf.Sections) {
			sec := f.elf.Sections[s.Section]
			rs.SectionName = sec.Name
			rs.SectionAddr = sec.Addr
			rs.SectionAlloc = sec.Flags&elf.SHF_ALLOC != 0
			rs.SectionExec = sec.Flags&elf.SHF_EXECINSTR != 0
			rs.Class = classifySection(sec.Name)
		}
	}

	rs.IsSection = elf.ST_TYPE(s.Info) == elf.STT_SECTION
	return rs
}

func classifySection(name string) reloc.SectionClass {
	switch {
	case len(name) >= 6 && name[:6] == ".debug":
		return reloc.ClassDebug
	case name == ".text":
		return reloc.ClassRelExec
	default:
		return reloc.ClassRelAddress
	}
}

// Symbols returns every ELF symbol translated into the relocation matcher's
// narrower Symbol contract, indexed the same as the ELF symbol table.
func (f *File) Symbols() []reloc.Symbol {
	out := make([]reloc.Symbol, len(f.symbols))
	for i, s := range f.symbols {
		out[i] = f.symbolToReloc(s)
	}
	return out
}

// RelocationsFor loads and classifies the RELA/REL table associated with a
// debug section, or returns ok=false if the ELF carries none for it (a
// common case outside ET_REL files).
func (f *File) RelocationsFor(debugSectionName string) (*reloc.Table, bool) {
	symbols := f.Symbols()

	for _, name := range []string{".rela" + debugSectionName, ".rel" + debugSectionName} {
		s := f.elf.Section(name)
		if s == nil {
			continue
		}

		kind := reloc.TypeRel
		if s.Type == elf.SHT_RELA {
			kind = reloc.TypeRela
		}

		entries, err := f.decodeRelocs(s, kind)
		if err != nil {
			return nil, false
		}

		return reloc.NewTable(kind, entries, symbols), true
	}

	return nil, false
}

func (f *File) decodeRelocs(s *elf.Section, kind reloc.Type) ([]reloc.Entry, error) {
	data, err := s.Data()
	if err != nil {
		return nil, err
	}

	wordSize := 4
	relSize := 8
	relaSize := 12
	if f.elf.Class == elf.ELFCLASS64 {
		wordSize = 8
		relSize = 16
		relaSize = 24
	}

	entrySize := relSize
	if kind == reloc.TypeRela {
		entrySize = relaSize
	}

	var out []reloc.Entry
	for off := 0; off+entrySize <= len(data); off += entrySize {
		rec := data[off : off+entrySize]

		var offset uint64
		var info uint64
		var addend int64

		if wordSize == 8 {
			offset = f.byOrder.Uint64(rec[0:8])
			info = f.byOrder.Uint64(rec[8:16])
			if kind == reloc.TypeRela {
				addend = int64(f.byOrder.Uint64(rec[16:24]))
			}
		} else {
			offset = uint64(f.byOrder.Uint32(rec[0:4]))
			info = uint64(f.byOrder.Uint32(rec[4:8]))
			if kind == reloc.TypeRela {
				addend = int64(int32(f.byOrder.Uint32(rec[8:12])))
			}
		}

		var symndx uint32
		var relType uint32
		if wordSize == 8 {
			symndx = uint32(info >> 32)
			relType = uint32(info & 0xffffffff)
		} else {
			symndx = uint32(info >> 8)
			relType = info & 0xff
		}

		out = append(out, reloc.Entry{
			Offset:  offset,
			RelType: relType,
			Symndx:  symndx,
			Addend:  addend,
		})
	}

	return out, nil
}

// WidthOf classifies a raw ELF relocation type into the width category the
// matcher checks against, for the architectures DWARF debug info commonly
// targets (x86-64 and i386 relocation numbering is reused here; an unknown
// machine/type pair is treated as Width4, the common case).
func (f *File) WidthOf(relType uint32) reloc.WidthCategory {
	switch f.elf.Machine {
	case elf.EM_X86_64:
		switch elf.R_X86_64(relType) {
		case elf.R_X86_64_64:
			return reloc.Width8
		case elf.R_X86_64_32, elf.R_X86_64_32S, elf.R_X86_64_PC32:
			return reloc.Width4
		case elf.R_X86_64_16:
			return reloc.Width2
		case elf.R_X86_64_8:
			return reloc.Width1
		}
	case elf.EM_386:
		switch elf.R_386(relType) {
		case elf.R_386_32, elf.R_386_PC32:
			return reloc.Width4
		case elf.R_386_16:
			return reloc.Width2
		case elf.R_386_8:
			return reloc.Width1
		}
	}
	return reloc.Width4
}
