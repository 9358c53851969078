// Package formval decodes one attribute or location-expression operand
// value for a given DWARF form/operand kind. It knows nothing about
// relocation or diagnostics — callers in info/loc layer that on top, since
// only they know whether a given value is expected to carry a relocation.
package formval

import (
	"fmt"

	"github.com/dwarflint/dwarflint/pkg/lint/dwconst"
	"github.com/dwarflint/dwarflint/pkg/lint/rdr"
)

// Value is a decoded attribute value. Exactly one field is meaningful,
// selected by Kind.
type Value struct {
	Kind    dwconst.Form
	Uint    uint64
	Int     int64
	Str     string
	Block   []byte
	LebBloat bool
}

// ReadForm decodes one attribute value. addr64 selects whether
// DW_FORM_addr/ref_addr words are 8 or 4 bytes wide; dwarf64 selects
// whether DW_FORM_strp offsets are 8 or 4 bytes wide.
func ReadForm(ctx *rdr.Ctx, addr64, dwarf64 bool, form dwconst.Form) (Value, error) {
	switch form {
	case dwconst.FormAddr:
		w := 4
		if addr64 {
			w = 8
		}
		v, err := ctx.Var(w)
		return Value{Kind: form, Uint: v}, err

	case dwconst.FormRefAddr:
		w := 4
		if addr64 {
			w = 8
		}
		v, err := ctx.Var(w)
		return Value{Kind: form, Uint: v}, err

	case dwconst.FormStrp:
		v, err := ctx.Offset(dwarf64)
		return Value{Kind: form, Uint: v}, err

	case dwconst.FormString:
		s, err := ctx.Str()
		return Value{Kind: form, Str: s}, err

	case dwconst.FormUdata, dwconst.FormRefUdata:
		v, status, err := ctx.Uleb128()
		return Value{Kind: form, Uint: v, LebBloat: status == rdr.LebBloated}, err

	case dwconst.FormSdata:
		v, status, err := ctx.Sleb128()
		return Value{Kind: form, Int: v, LebBloat: status == rdr.LebBloated}, err

	case dwconst.FormFlag, dwconst.FormData1, dwconst.FormRef1:
		v, err := ctx.Var(1)
		return Value{Kind: form, Uint: v}, err

	case dwconst.FormData2, dwconst.FormRef2:
		v, err := ctx.Var(2)
		return Value{Kind: form, Uint: v}, err

	case dwconst.FormData4, dwconst.FormRef4:
		v, err := ctx.Var(4)
		return Value{Kind: form, Uint: v}, err

	case dwconst.FormData8, dwconst.FormRef8:
		v, err := ctx.Var(8)
		return Value{Kind: form, Uint: v}, err

	case dwconst.FormBlock1:
		n, err := ctx.Ubyte()
		if err != nil {
			return Value{}, err
		}
		b, err := ctx.Bytes(int(n))
		return Value{Kind: form, Block: b}, err

	case dwconst.FormBlock2:
		n, err := ctx.Ubyte2()
		if err != nil {
			return Value{}, err
		}
		b, err := ctx.Bytes(int(n))
		return Value{Kind: form, Block: b}, err

	case dwconst.FormBlock4:
		n, err := ctx.Ubyte4()
		if err != nil {
			return Value{}, err
		}
		b, err := ctx.Bytes(int(n))
		return Value{Kind: form, Block: b}, err

	case dwconst.FormBlock:
		n, _, err := ctx.Uleb128()
		if err != nil {
			return Value{}, err
		}
		b, err := ctx.Bytes(int(n))
		return Value{Kind: form, Block: b}, err

	default:
		return Value{}, fmt.Errorf("unsupported form 0x%x", form)
	}
}

// ReadOperand decodes one location-expression operand per the OperandKind
// table in dwconst.
func ReadOperand(ctx *rdr.Ctx, addr64 bool, kind dwconst.OperandKind) (Value, error) {
	switch kind {
	case dwconst.OperandNone:
		return Value{}, nil
	case dwconst.OperandAddr:
		w := 4
		if addr64 {
			w = 8
		}
		v, err := ctx.Var(w)
		return Value{Uint: v}, err
	case dwconst.OperandU1, dwconst.OperandS1:
		v, err := ctx.Var(1)
		return Value{Uint: v}, err
	case dwconst.OperandU2:
		v, err := ctx.Var(2)
		return Value{Uint: v}, err
	case dwconst.OperandU4:
		v, err := ctx.Var(4)
		return Value{Uint: v}, err
	case dwconst.OperandU8:
		v, err := ctx.Var(8)
		return Value{Uint: v}, err
	case dwconst.OperandULEB:
		v, status, err := ctx.Uleb128()
		return Value{Uint: v, LebBloat: status == rdr.LebBloated}, err
	case dwconst.OperandSLEB:
		v, status, err := ctx.Sleb128()
		return Value{Int: v, LebBloat: status == rdr.LebBloated}, err
	case dwconst.OperandBlockULEB:
		n, _, err := ctx.Uleb128()
		if err != nil {
			return Value{}, err
		}
		b, err := ctx.Bytes(int(n))
		return Value{Block: b}, err
	default:
		return Value{}, fmt.Errorf("unsupported operand kind %d", kind)
	}
}
