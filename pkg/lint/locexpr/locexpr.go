// Package locexpr implements the location expression validator: a
// subparser over a bounded buffer (a block attribute's content, or one
// .debug_loc entry's expression) that walks DWARF stack-machine opcodes and
// validates branch targets and operand ranges.
package locexpr

import (
	"github.com/dwarflint/dwarflint/pkg/lint/category"
	"github.com/dwarflint/dwarflint/pkg/lint/diag"
	"github.com/dwarflint/dwarflint/pkg/lint/dwconst"
	"github.com/dwarflint/dwarflint/pkg/lint/formval"
	"github.com/dwarflint/dwarflint/pkg/lint/rdr"
	"github.com/dwarflint/dwarflint/pkg/lint/where"
	"github.com/dwarflint/dwarflint/pkg/utils"
)

// Validate walks a location expression occupying the whole of ctx (callers
// pass a subcontext already bounded to the expression's length). w
// identifies where diagnostics attribute to (".debug_loc" entries vs an
// inline block attribute, which reports against the enclosing DIE).
func Validate(ctx *rdr.Ctx, addr64 bool, sink *diag.Sink, w where.Where, cat category.Category) {
	type opStart struct {
		offset int
		op     dwconst.Op
	}
	var starts []opStart
	var branchTargets []int

	for !ctx.Eof() {
		opOffset := ctx.Position()
		opByte, err := ctx.Ubyte()
		if err != nil {
			sink.Report(cat|category.Error, w, "%v", err)
			return
		}
		op := dwconst.Op(opByte)
		starts = append(starts, opStart{offset: opOffset, op: op})

		switch op {
		case dwconst.OpBra, dwconst.OpSkip:
			raw, err := ctx.Var(2)
			if err != nil {
				sink.Report(cat|category.Error, w, "%v", err)
				return
			}
			skip := int16(raw)
			if skip == 0 {
				sink.Report(cat|category.Loc|category.Bloat|category.Impact3, w, "DW_OP_%s with a zero offset", opName(op))
			}
			target := ctx.Position() + int(skip)
			if target < 0 || target > ctx.Len() {
				sink.Report(cat|category.Error, w, "DW_OP_%s target 0x%x falls outside the expression", opName(op), target)
			} else {
				branchTargets = append(branchTargets, target)
			}
			continue
		}

		if op == dwconst.OpConst8u || op == dwconst.OpConst8s {
			if !addr64 {
				sink.Report(cat|category.Error, w, "DW_OP_%s on a 32-bit address architecture", opName(op))
			}
		}

		forms := dwconst.OperandForms(op)
		var lastVal formval.Value
		for _, kind := range forms {
			v, err := formval.ReadOperand(ctx, addr64, kind)
			if err != nil {
				sink.Report(cat|category.Error, w, "%v", err)
				return
			}
			lastVal = v
		}

		if !addr64 && (op == dwconst.OpConstu || op == dwconst.OpConsts ||
			op == dwconst.OpDerefSize || op == dwconst.OpPlusUconst) {
			val := lastVal.Uint
			if op == dwconst.OpConsts {
				val = uint64(lastVal.Int)
			}
			if val > 0xffffffff {
				sink.Report(cat|category.Bloat|category.Impact3, w, "DW_OP_%s operand value exceeds 32 bits on a 32-bit address architecture", opName(op))
			}
		}
	}

	// Every recorded branch target must land exactly on an opcode start.
	startSet := utils.GenMap(starts, func(s opStart) int { return s.offset })
	for _, t := range branchTargets {
		if _, ok := startSet[t]; !ok && t != ctx.Len() {
			sink.Report(cat|category.Error, w, "branch target offset %d does not land on an opcode", t)
		}
	}
}

func opName(op dwconst.Op) string {
	switch op {
	case dwconst.OpBra:
		return "bra"
	case dwconst.OpSkip:
		return "skip"
	case dwconst.OpConst8u:
		return "const8u"
	case dwconst.OpConst8s:
		return "const8s"
	case dwconst.OpConstu:
		return "constu"
	case dwconst.OpConsts:
		return "consts"
	case dwconst.OpDerefSize:
		return "deref_size"
	case dwconst.OpPlusUconst:
		return "plus_uconst"
	default:
		return "op"
	}
}
