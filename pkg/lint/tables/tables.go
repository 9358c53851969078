// Package tables implements the remaining per-section structural checkers
// that round out a compile unit's side tables: .debug_aranges (address
// range summaries), .debug_pubnames/.debug_pubtypes (name lookup tables),
// and .debug_line (the line-number program header and opcode stream).
// Each checker cross-references the compile-unit chain the DIE walker
// produced rather than re-parsing .debug_info.
package tables

import (
	"github.com/dwarflint/dwarflint/pkg/lint/category"
	"github.com/dwarflint/dwarflint/pkg/lint/cu"
	"github.com/dwarflint/dwarflint/pkg/lint/diag"
	"github.com/dwarflint/dwarflint/pkg/lint/dwconst"
	"github.com/dwarflint/dwarflint/pkg/lint/rdr"
	"github.com/dwarflint/dwarflint/pkg/lint/where"
)

func plainWhere(section string, addr1 *uint64) where.Where {
	return where.Where{Section: section, Addr1: addr1, Kind: where.Plain}
}

// readInitialLength reads the 32/64-bit DWARF length escape, returning the
// unit's payload length and whether it is 64-bit DWARF.
func readInitialLength(ctx *rdr.Ctx) (length uint64, dwarf64 bool, ok bool) {
	v, err := ctx.Ubyte4()
	if err != nil {
		return 0, false, false
	}
	if v == 0xffffffff {
		v8, err := ctx.Ubyte8()
		if err != nil {
			return 0, false, false
		}
		return v8, true, true
	}
	if v >= 0xfffffff0 {
		return 0, false, false
	}
	return uint64(v), false, true
}

// CheckAranges validates every unit in .debug_aranges: header fields, tuple
// shape, and that the named CU exists with the same address size, marking
// that CU as having aranges. Tuple ranges are not compared with the
// address ranges the CU's DIEs advertised.
func CheckAranges(ctx *rdr.Ctx, chain *cu.Chain, sink *diag.Sink) {
	for !ctx.Eof() {
		unitOff := ctx.GetOffset()
		w := plainWhere(".debug_aranges", addrPtr(unitOff))

		length, dwarf64, ok := readInitialLength(ctx)
		if !ok {
			sink.ReportExplicitError(category.Aranges|category.Header, w, "failed to read unit length")
			return
		}
		end := ctx.Position() + int(length)
		sub, err := rdr.InitSub(ctx, ctx.Position(), end)
		if err != nil {
			sink.ReportExplicitError(category.Aranges|category.Header, w, "unit length runs past end of section")
			return
		}

		version, err := sub.Ubyte2()
		if err != nil {
			sink.ReportExplicitError(category.Aranges|category.Header, w, "failed to read version")
			advanceTo(ctx, end)
			continue
		}
		if version != 2 {
			sink.Report(category.Aranges|category.Header|category.Error, w, "unsupported .debug_aranges version %d", version)
		}

		cuOffset, err := sub.Offset(dwarf64)
		if err != nil {
			sink.ReportExplicitError(category.Aranges|category.Header, w, "failed to read debug_info offset")
			advanceTo(ctx, end)
			continue
		}

		addrSize, err := sub.Ubyte()
		if err != nil {
			sink.ReportExplicitError(category.Aranges|category.Header, w, "failed to read address size")
			advanceTo(ctx, end)
			continue
		}
		segSize, err := sub.Ubyte()
		if err != nil {
			sink.ReportExplicitError(category.Aranges|category.Header, w, "failed to read segment size")
			advanceTo(ctx, end)
			continue
		}
		if segSize != 0 {
			sink.Report(category.Aranges|category.Header|category.Error, w, "non-zero segment selector size %d is not supported", segSize)
			advanceTo(ctx, end)
			continue
		}

		tupleSize := int(addrSize) * 2
		pad := sub.Position() % tupleSize
		if pad != 0 {
			_ = sub.Skip(tupleSize - pad)
		}

		target := chain.FindByCUOffset(cuOffset)
		if target == nil {
			sink.Report(category.Aranges|category.Error, w, "debug_info offset 0x%x does not name a known compile unit", cuOffset)
		} else {
			target.HasArange = true
			if int(addrSize) != target.AddressSize {
				sink.Report(category.Aranges|category.Impact2, w, "address size %d does not match compile unit's address size %d", addrSize, target.AddressSize)
			}
		}

		for !sub.Eof() {
			addr, err := sub.Var(int(addrSize))
			if err != nil {
				break
			}
			length, err := sub.Var(int(addrSize))
			if err != nil {
				break
			}
			if addr == 0 && length == 0 {
				break
			}
			if length == 0 {
				sink.Report(category.Aranges|category.Bloat, w, "zero-length address range tuple at 0x%x", addr)
				continue
			}
		}

		if sub.Position() < sub.Len() {
			padStart := sub.SectionOffset + uint64(sub.Position())
			padEnd := sub.SectionOffset + uint64(sub.Len())
			sink.Report(category.Aranges|category.Bloat, w, "[0x%x, 0x%x): unnecessary padding with zero bytes", padStart, padEnd)
		}

		advanceTo(ctx, end)
	}
}

func addrPtr(v uint64) *uint64 { return &v }

func advanceTo(ctx *rdr.Ctx, pos int) {
	if ctx.Position() < pos {
		_ = ctx.Skip(pos - ctx.Position())
	}
}

// CheckPub validates a .debug_pubnames or .debug_pubtypes section. isTypes
// selects which CU flag and category to record against.
func CheckPub(ctx *rdr.Ctx, chain *cu.Chain, sink *diag.Sink, isTypes bool) {
	sectionName := ".debug_pubnames"
	cat := category.Pubnames
	if isTypes {
		sectionName = ".debug_pubtypes"
		cat = category.Pubtypes
	}
	cat |= category.Pubtables

	for !ctx.Eof() {
		unitOff := ctx.GetOffset()
		w := plainWhere(sectionName, addrPtr(unitOff))

		length, dwarf64, ok := readInitialLength(ctx)
		if !ok {
			sink.ReportExplicitError(cat|category.Header, w, "failed to read unit length")
			return
		}
		end := ctx.Position() + int(length)
		sub, err := rdr.InitSub(ctx, ctx.Position(), end)
		if err != nil {
			sink.ReportExplicitError(cat|category.Header, w, "unit length runs past end of section")
			return
		}

		version, err := sub.Ubyte2()
		if err != nil {
			sink.ReportExplicitError(cat|category.Header, w, "failed to read version")
			advanceTo(ctx, end)
			continue
		}
		if version != 2 {
			sink.Report(cat|category.Header|category.Error, w, "unsupported version %d", version)
		}

		cuOffset, err := sub.Offset(dwarf64)
		if err != nil {
			sink.ReportExplicitError(cat|category.Header, w, "failed to read debug_info offset")
			advanceTo(ctx, end)
			continue
		}
		if _, err := sub.Offset(dwarf64); err != nil {
			sink.ReportExplicitError(cat|category.Header, w, "failed to read debug_info length")
			advanceTo(ctx, end)
			continue
		}

		target := chain.FindByCUOffset(cuOffset)
		if target == nil {
			sink.Report(cat|category.Error, w, "debug_info offset 0x%x does not name a known compile unit", cuOffset)
		} else if isTypes {
			target.HasPubtypes = true
		} else {
			target.HasPubnames = true
		}

		for !sub.Eof() {
			dieOff, err := sub.Offset(dwarf64)
			if err != nil {
				break
			}
			if dieOff == 0 {
				break
			}
			name, err := sub.Str()
			if err != nil {
				sink.Report(cat|category.Error, w, "unterminated name at offset 0x%x", dieOff)
				break
			}
			if name == "" {
				sink.Report(cat|category.Bloat, w, "empty name for DIE offset 0x%x", dieOff)
			}
			if target != nil && !target.DieAddrs.Has(target.Offset+dieOff) {
				sink.Report(cat|category.Error, w, "entry %q references offset 0x%x, which is not a DIE in its compile unit", name, dieOff)
			}
		}

		advanceTo(ctx, end)
	}
}

// lineProgramHeader is the decoded fixed portion of a .debug_line unit.
type lineProgramHeader struct {
	version               uint16
	minInstructionLength  byte
	defaultIsStmt         bool
	lineBase              int8
	lineRange             byte
	opcodeBase            byte
	standardOpcodeLengths []byte
	includeDirs           []string
	fileNames             []string
	programStart          int
}

func readLineHeader(ctx *rdr.Ctx, dwarf64 bool) (*lineProgramHeader, error) {
	h := &lineProgramHeader{}

	v, err := ctx.Ubyte2()
	if err != nil {
		return nil, err
	}
	h.version = v

	headerLength, err := ctx.Offset(dwarf64)
	if err != nil {
		return nil, err
	}
	afterHeaderLength := ctx.Position()
	h.programStart = afterHeaderLength + int(headerLength)

	minLen, err := ctx.Ubyte()
	if err != nil {
		return nil, err
	}
	h.minInstructionLength = minLen

	isStmt, err := ctx.Ubyte()
	if err != nil {
		return nil, err
	}
	h.defaultIsStmt = isStmt != 0

	lb, err := ctx.Ubyte()
	if err != nil {
		return nil, err
	}
	h.lineBase = int8(lb)

	lr, err := ctx.Ubyte()
	if err != nil {
		return nil, err
	}
	h.lineRange = lr

	ob, err := ctx.Ubyte()
	if err != nil {
		return nil, err
	}
	h.opcodeBase = ob

	for i := 0; i < int(ob)-1; i++ {
		b, err := ctx.Ubyte()
		if err != nil {
			return nil, err
		}
		h.standardOpcodeLengths = append(h.standardOpcodeLengths, b)
	}

	for {
		s, err := ctx.Str()
		if err != nil {
			return nil, err
		}
		if s == "" {
			break
		}
		h.includeDirs = append(h.includeDirs, s)
	}

	for {
		name, err := ctx.Str()
		if err != nil {
			return nil, err
		}
		if name == "" {
			break
		}
		if _, _, err := ctx.Uleb128(); err != nil {
			return nil, err
		}
		if _, _, err := ctx.Uleb128(); err != nil {
			return nil, err
		}
		if _, _, err := ctx.Uleb128(); err != nil {
			return nil, err
		}
		h.fileNames = append(h.fileNames, name)
	}

	return h, nil
}

// CheckLine validates every unit in .debug_line: header consistency and
// the structural shape of the standard/extended/special opcode stream.
func CheckLine(ctx *rdr.Ctx, addr64 bool, sink *diag.Sink) {
	for !ctx.Eof() {
		unitOff := ctx.GetOffset()
		w := plainWhere(".debug_line", addrPtr(unitOff))

		length, dwarf64, ok := readInitialLength(ctx)
		if !ok {
			sink.ReportExplicitError(category.Line|category.Header, w, "failed to read unit length")
			return
		}
		end := ctx.Position() + int(length)
		sub, err := rdr.InitSub(ctx, ctx.Position(), end)
		if err != nil {
			sink.ReportExplicitError(category.Line|category.Header, w, "unit length runs past end of section")
			return
		}

		h, err := readLineHeader(sub, dwarf64)
		if err != nil {
			sink.ReportExplicitError(category.Line|category.Header, w, "malformed line program header: %v", err)
			advanceTo(ctx, end)
			continue
		}
		if h.version != 2 && h.version != 3 {
			sink.Report(category.Line|category.Header|category.Error, w, "unsupported line program version %d", h.version)
		}
		if h.opcodeBase == 0 {
			sink.Report(category.Line|category.Header|category.Error, w, "opcode_base is zero")
			advanceTo(ctx, end)
			continue
		}
		if h.lineRange == 0 {
			sink.Report(category.Line|category.Header|category.Error, w, "line_range is zero")
			advanceTo(ctx, end)
			continue
		}

		if sub.Position() < h.programStart {
			_ = sub.Skip(h.programStart - sub.Position())
		} else if sub.Position() > h.programStart {
			sink.Report(category.Line|category.Header|category.Error, w, "header_length places the program before the header's own end")
		}

		walkLineProgram(sub, h, addr64, sink, w)
		advanceTo(ctx, end)
	}
}

func walkLineProgram(ctx *rdr.Ctx, h *lineProgramHeader, addr64 bool, sink *diag.Sink, w where.Where) {
	sawOpcode := false
	endedWithSequence := false

	for !ctx.Eof() {
		op, err := ctx.Ubyte()
		if err != nil {
			return
		}
		sawOpcode = true
		endedWithSequence = false

		switch {
		case op == 0:
			n, _, err := ctx.Uleb128()
			if err != nil {
				sink.Report(category.Line|category.Error, w, "%v", err)
				return
			}
			sub, err := rdr.InitSub(ctx, ctx.Position(), ctx.Position()+int(n))
			if err != nil {
				sink.Report(category.Line|category.Error, w, "extended opcode length runs past end of program")
				return
			}
			subOp, err := sub.Ubyte()
			if err != nil {
				sink.Report(category.Line|category.Error, w, "%v", err)
				return
			}
			switch dwconst.Op(subOp) {
			case dwconst.LNEEndSequence:
				endedWithSequence = true
			case dwconst.LNESetAddress:
				width := 4
				if addr64 {
					width = 8
				}
				if _, err := sub.Var(width); err != nil {
					sink.Report(category.Line|category.Error, w, "%v", err)
					return
				}
			case dwconst.LNEDefineFile:
				if _, err := sub.Str(); err != nil {
					sink.Report(category.Line|category.Error, w, "%v", err)
					return
				}
				for i := 0; i < 3; i++ {
					if _, _, err := sub.Uleb128(); err != nil {
						sink.Report(category.Line|category.Error, w, "%v", err)
						return
					}
				}
			default:
				// Vendor-defined extended opcode: skip the declared length
				// without interpreting its payload.
			}
			if err := ctx.Skip(int(n)); err != nil {
				sink.Report(category.Line|category.Error, w, "%v", err)
				return
			}

		case int(op) < int(h.opcodeBase):
			operandCount := 0
			if int(op)-1 < len(h.standardOpcodeLengths) {
				operandCount = int(h.standardOpcodeLengths[op-1])
			}
			switch dwconst.Op(op) {
			case dwconst.LNSFixedAdvancePC:
				if _, err := ctx.Ubyte2(); err != nil {
					sink.Report(category.Line|category.Error, w, "%v", err)
					return
				}
			default:
				for i := 0; i < operandCount; i++ {
					if _, _, err := ctx.Uleb128(); err != nil {
						sink.Report(category.Line|category.Error, w, "%v", err)
						return
					}
				}
			}

		default:
			// Special opcode: encodes address/line advance in the opcode
			// byte itself via line_base/line_range, no operands to read.
		}
	}

	if sawOpcode && !endedWithSequence {
		sink.Report(category.Line|category.Error, w, "not terminated with DW_LNE_end_sequence")
	}
}
