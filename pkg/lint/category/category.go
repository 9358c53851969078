// Package category implements the diagnostic category bitmask and the DNF
// criteria algebra used to classify every finding as suppressed, warned, or
// promoted to error. This is the single most re-used and error-prone piece
// of the validator, per the project's own design notes, and is tested as a
// standalone value type independent of any parsing code.
package category

// Category is a bitset over named predicates. Categories combine with OR.
type Category uint64

// Section axis.
const (
	Info Category = 1 << iota
	Abbrevs
	Aranges
	Line
	Loc
	Ranges
	Strings
	Pubtables
	Pubnames
	Pubtypes
	Elf
	Reloc

	// Aspect axis.
	Header
	DieRel
	DieOther

	// Accuracy axis.
	Bloat
	Suboptimal

	// Severity/impact axis.
	Impact1
	Impact2
	Impact3
	Impact4
	Error

	// Subtype axis.
	Leb128
)

var names = map[Category]string{
	Info: "info", Abbrevs: "abbrevs", Aranges: "aranges", Line: "line",
	Loc: "loc", Ranges: "ranges", Strings: "strings", Pubtables: "pubtables",
	Pubnames: "pubnames", Pubtypes: "pubtypes", Elf: "elf", Reloc: "reloc",
	Header: "header", DieRel: "die_rel", DieOther: "die_other",
	Bloat: "bloat", Suboptimal: "suboptimal",
	Impact1: "impact_1", Impact2: "impact_2", Impact3: "impact_3", Impact4: "impact_4",
	Error: "error", Leb128: "leb128",
}

// bitOrder lists every named bit from least to most significant, for
// deterministic String() output.
var bitOrder = []Category{
	Info, Abbrevs, Aranges, Line, Loc, Ranges, Strings, Pubtables, Pubnames,
	Pubtypes, Elf, Reloc, Header, DieRel, DieOther, Bloat, Suboptimal,
	Impact1, Impact2, Impact3, Impact4, Error, Leb128,
}

// String renders a category as its OR'd component names, e.g. "info|bloat|impact_3".
func (c Category) String() string {
	if c == 0 {
		return "none"
	}
	s := ""
	for _, b := range bitOrder {
		if c&b != 0 {
			if s != "" {
				s += "|"
			}
			s += names[b]
		}
	}
	return s
}

// Has reports whether all bits in want are set in c.
func (c Category) Has(want Category) bool { return c&want == want }

// Term is one conjunctive clause of a DNF criterion: accept iff
// (positive & c) == positive && (negative & c) == 0.
type Term struct {
	Positive Category
	Negative Category
}

// valid reports the criterion invariant: a term's positive and negative
// masks must never overlap (they would be unsatisfiable).
func (t Term) valid() bool { return t.Positive&t.Negative == 0 }

// Criterion is a disjunction of Terms: a category is accepted if any term
// accepts it.
type Criterion struct {
	terms []Term
}

// Accepts reports whether c satisfies the criterion.
func (crit Criterion) Accepts(c Category) bool {
	for _, t := range crit.terms {
		if (t.Positive&c) == t.Positive && (t.Negative&c) == 0 {
			return true
		}
	}
	return false
}

// Terms returns the criterion's terms. Callers must not mutate the slice.
func (crit Criterion) Terms() []Term { return crit.terms }

// Empty returns the criterion that accepts nothing.
func Empty() Criterion { return Criterion{} }

// All returns the criterion that accepts everything (a single term with no
// positive or negative requirement).
func All() Criterion { return Criterion{terms: []Term{{}}} }

// Single returns the criterion accepting exactly categories satisfying a
// single positive mask with no exclusions.
func Single(positive Category) Criterion {
	return Criterion{terms: []Term{{Positive: positive}}}
}

// Or appends a term to the criterion (logical OR: accept what either already
// accepted, or what the new term accepts).
func (crit Criterion) Or(t Term) Criterion {
	if !t.valid() {
		return crit
	}
	out := Criterion{terms: append(append([]Term{}, crit.terms...), t)}
	return out
}

// And distributes a (positive, negative) pair over every term via pointwise
// OR, dropping any resulting term whose positive and negative masks
// intersect (a logical contradiction, hence unsatisfiable).
func (crit Criterion) And(positive, negative Category) Criterion {
	var out []Term
	for _, t := range crit.terms {
		nt := Term{Positive: t.Positive | positive, Negative: t.Negative | negative}
		if nt.valid() {
			out = append(out, nt)
		}
	}
	return Criterion{terms: out}
}

// Not negates a single term a&b&...&¬c into a sum of singleton
// negations/positives: ¬(p1&p2&...&¬n1&¬n2&...) = ¬p1 ∨ ¬p2 ∨ ... ∨ n1 ∨ n2 ∨ ...
// Applied per-bit of the term's masks, since each named bit is itself a
// one-predicate conjunct.
func notTerm(t Term) Criterion {
	var out []Term
	for _, b := range bitOrder {
		if t.Positive&b != 0 {
			out = append(out, Term{Negative: b})
		}
		if t.Negative&b != 0 {
			out = append(out, Term{Positive: b})
		}
	}
	if len(out) == 0 {
		// Not() of the empty term (accepts everything) is the criterion
		// that accepts nothing.
		return Empty()
	}
	return Criterion{terms: out}
}

// Not negates the whole criterion. For a disjunction of terms,
// ¬(t1 ∨ t2 ∨ ...) = ¬t1 ∧ ¬t2 ∧ ... , computed via repeated Multiply.
func (crit Criterion) Not() Criterion {
	result := All()
	for _, t := range crit.terms {
		result = result.Multiply(notTerm(t))
	}
	return result
}

// Multiply computes the Cartesian product of two criteria's terms,
// pointwise OR-ing positive/negative masks and dropping contradictions.
// This implements logical AND between two full criteria.
func (crit Criterion) Multiply(other Criterion) Criterion {
	var out []Term
	for _, a := range crit.terms {
		for _, b := range other.terms {
			nt := Term{Positive: a.Positive | b.Positive, Negative: a.Negative | b.Negative}
			if nt.valid() {
				out = append(out, nt)
			}
		}
	}
	return Criterion{terms: out}
}

// AndNot computes crit AND NOT(other), composing Multiply with Not.
func (crit Criterion) AndNot(other Criterion) Criterion {
	return crit.Multiply(other.Not())
}

// DefaultWarnCriterion accepts every category: by default, warnings accept
// everything.
func DefaultWarnCriterion() Criterion { return All() }

// DefaultErrorCriterion accepts impact_4 or explicit error categories.
func DefaultErrorCriterion() Criterion {
	return Single(Impact4).Or(Term{Positive: Error})
}
