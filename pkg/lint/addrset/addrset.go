// Package addrset holds the two small record types the DIE walker and the
// loc/range/aranges/pub/line checkers thread through CU parsing: a sorted
// address set (DIE starting offsets) and an insertion-ordered reference
// list awaiting later resolution.
package addrset

import "sort"

// Set is a sorted, de-duplicated set of section offsets, used as the set of
// DIE starting offsets within a CU.
type Set struct {
	offsets []uint64
}

// Add inserts addr if not already present, keeping the set sorted.
func (s *Set) Add(addr uint64) {
	i := sort.Search(len(s.offsets), func(i int) bool { return s.offsets[i] >= addr })
	if i < len(s.offsets) && s.offsets[i] == addr {
		return
	}
	s.offsets = append(s.offsets, 0)
	copy(s.offsets[i+1:], s.offsets[i:])
	s.offsets[i] = addr
}

// Has reports whether addr is a member of the set.
func (s *Set) Has(addr uint64) bool {
	i := sort.Search(len(s.offsets), func(i int) bool { return s.offsets[i] >= addr })
	return i < len(s.offsets) && s.offsets[i] == addr
}

// Len returns the number of members.
func (s *Set) Len() int { return len(s.offsets) }

// All returns the members in ascending order. Callers must not mutate it.
func (s *Set) All() []uint64 { return s.offsets }

// Ref is one reference: an address referenced from elsewhere, plus the
// breadcrumb describing where the reference was found (used to report
// "unresolved reference" with a cause chain).
type Ref struct {
	Addr   uint64
	Origin any // *where.Where, kept untyped here to avoid an import cycle
}

// RefList is an insertion-ordered list of references awaiting resolution
// once the referent section has been fully scanned.
type RefList struct {
	refs []Ref
}

// Add appends a reference.
func (r *RefList) Add(addr uint64, origin any) {
	r.refs = append(r.refs, Ref{Addr: addr, Origin: origin})
}

// All returns the references in insertion order.
func (r *RefList) All() []Ref { return r.refs }

// Len returns the number of references recorded.
func (r *RefList) Len() int { return len(r.refs) }

// SortedByAddr returns a copy of the references sorted by address, stable
// with respect to insertion order among equal addresses. Used by the
// loc/range checker to visit each CU's list references in offset order.
func SortedByAddr(refs []Ref) []Ref {
	out := make([]Ref, len(refs))
	copy(out, refs)
	sortStable(out)
	return out
}

func sortStable(refs []Ref) {
	// insertion sort is adequate: reference lists per CU are small, and
	// stability keeps origin reporting deterministic across ties.
	for i := 1; i < len(refs); i++ {
		j := i
		for j > 0 && refs[j-1].Addr > refs[j].Addr {
			refs[j-1], refs[j] = refs[j], refs[j-1]
			j--
		}
	}
}
