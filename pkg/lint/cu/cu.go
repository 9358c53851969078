// Package cu holds the compile-unit record that the DIE chain walker
// produces and that the loc/range/aranges/pub/line checkers consume. It is
// factored out of the walker package so those checkers don't need to
// import the walker itself.
package cu

import (
	"github.com/dwarflint/dwarflint/pkg/lint/addrset"
	"github.com/dwarflint/dwarflint/pkg/lint/coverage"
	"github.com/dwarflint/dwarflint/pkg/lint/where"
)

// CU is one compile unit's parsed state.
type CU struct {
	Offset      uint64
	CUDieOffset uint64
	Length      uint64
	Version     uint16
	Dwarf64     bool
	AddressSize int // 4 or 8

	LowPC    uint64
	HasLowPC bool

	DieAddrs  addrset.Set
	DieRefs   addrset.RefList // global (ref_addr) references originating in this CU
	LocalRefs addrset.RefList // CU-local (refN/ref_udata) references
	LocRefs   addrset.RefList
	RangeRefs addrset.RefList
	LineRefs  addrset.RefList

	Where where.Where

	HasArange    bool
	HasPubnames  bool
	HasPubtypes  bool
}

// Coverage accumulates low/high-PC address ranges: a coverage set plus the
// NeedRanges flag, which starts false and flips true the first time a
// DW_AT_ranges reference is recorded, flipping back to false once
// .debug_ranges data has actually been folded into Cov.
type Coverage struct {
	Cov        coverage.Set
	NeedRanges bool
}

// Chain is every CU parsed from .debug_info, in file order.
type Chain struct {
	Units []*CU
}

// ByOffset finds the CU owning a global .debug_info offset, or nil.
func (c *Chain) ByOffset(off uint64) *CU {
	for _, u := range c.Units {
		if off >= u.Offset && off < u.Offset+u.Length {
			return u
		}
	}
	return nil
}

// FindByCUOffset finds the CU whose header starts at off exactly, used by
// the aranges/pub/line checkers to resolve a cu_offset field.
func (c *Chain) FindByCUOffset(off uint64) *CU {
	for _, u := range c.Units {
		if u.Offset == off {
			return u
		}
	}
	return nil
}
