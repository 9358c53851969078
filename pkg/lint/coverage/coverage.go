// Package coverage implements the interval-set bookkeeping used to compare
// address ranges derived from three independent DWARF sources (DIE low/high
// PC, .debug_ranges, .debug_aranges).
package coverage

import "sort"

// Interval is a disjoint half-open address range [Start, End).
type Interval struct {
	Start uint64
	End   uint64
}

// Len returns the interval's width.
func (i Interval) Len() uint64 { return i.End - i.Start }

// Set is a disjoint, sorted-by-start collection of half-open intervals.
// Adding overlapping or touching intervals merges them.
type Set struct {
	ivs []Interval
}

// Clone returns an independent copy of the set.
func (s *Set) Clone() *Set {
	c := &Set{ivs: make([]Interval, len(s.ivs))}
	copy(c.ivs, s.ivs)
	return c
}

// Add inserts [addr, addr+length) into the set, merging with any interval
// it touches or overlaps.
func (s *Set) Add(addr, length uint64) {
	if length == 0 {
		return
	}
	newIv := Interval{Start: addr, End: addr + length}

	i := sort.Search(len(s.ivs), func(i int) bool { return s.ivs[i].Start >= newIv.Start })

	// merge with predecessor if it touches/overlaps
	if i > 0 && s.ivs[i-1].End >= newIv.Start {
		i--
		if s.ivs[i].Start < newIv.Start {
			newIv.Start = s.ivs[i].Start
		}
		if s.ivs[i].End > newIv.End {
			newIv.End = s.ivs[i].End
		}
		s.ivs = append(s.ivs[:i], s.ivs[i+1:]...)
	}

	// absorb any following intervals that now touch/overlap
	for i < len(s.ivs) && s.ivs[i].Start <= newIv.End {
		if s.ivs[i].End > newIv.End {
			newIv.End = s.ivs[i].End
		}
		s.ivs = append(s.ivs[:i], s.ivs[i+1:]...)
	}

	s.ivs = append(s.ivs, Interval{})
	copy(s.ivs[i+1:], s.ivs[i:])
	s.ivs[i] = newIv
}

// IsCovered reports whether [addr, addr+length) lies entirely within a
// single stored interval.
func (s *Set) IsCovered(addr, length uint64) bool {
	end := addr + length
	i := sort.Search(len(s.ivs), func(i int) bool { return s.ivs[i].End > addr })
	if i >= len(s.ivs) {
		return false
	}
	return s.ivs[i].Start <= addr && s.ivs[i].End >= end
}

// IsOverlap reports whether [addr, addr+length) intersects any stored
// interval at all: IsOverlap holds iff some stored [b,e) satisfies
// b < addr+length && e > addr.
func (s *Set) IsOverlap(addr, length uint64) bool {
	end := addr + length
	i := sort.Search(len(s.ivs), func(i int) bool { return s.ivs[i].End > addr })
	return i < len(s.ivs) && s.ivs[i].Start < end
}

// FindHoles calls cb for every gap within [begin,end) not covered by the
// set, in ascending order.
func (s *Set) FindHoles(begin, end uint64, cb func(start, length uint64)) {
	cursor := begin
	for _, iv := range s.ivs {
		if iv.End <= begin {
			continue
		}
		if iv.Start >= end {
			break
		}
		ivStart := iv.Start
		if ivStart < begin {
			ivStart = begin
		}
		if ivStart > cursor {
			cb(cursor, ivStart-cursor)
		}
		if iv.End > cursor {
			cursor = iv.End
		}
	}
	if cursor < end {
		cb(cursor, end-cursor)
	}
}

// FindRanges calls cb for every stored interval, in ascending order.
func (s *Set) FindRanges(cb func(iv Interval)) {
	for _, iv := range s.ivs {
		cb(iv)
	}
}

// RemoveAll subtracts every interval of other from this set.
func (s *Set) RemoveAll(other *Set) {
	if len(other.ivs) == 0 {
		return
	}
	var out []Interval
	for _, iv := range s.ivs {
		cur := iv
		for _, rm := range other.ivs {
			if rm.End <= cur.Start || rm.Start >= cur.End {
				continue
			}
			if rm.Start > cur.Start {
				out = append(out, Interval{Start: cur.Start, End: rm.Start})
			}
			if rm.End > cur.Start {
				cur.Start = rm.End
			}
			if cur.Start >= cur.End {
				break
			}
		}
		if cur.Start < cur.End {
			out = append(out, cur)
		}
	}
	s.ivs = out
}

// Empty reports whether the set holds no intervals.
func (s *Set) Empty() bool { return len(s.ivs) == 0 }
