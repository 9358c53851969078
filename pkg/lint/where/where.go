// Package where implements the diagnostic location ("where") breadcrumb
// arena and its text formatting; the sink that classifies diagnostics
// lives in package diag. Breadcrumbs are stored in an arena indexed by Ref, not
// as raw pointers, so that reference chains can never form a cycle (the
// redesign called for in the project's own design notes).
package where

import "fmt"

// Kind selects how a Where is formatted.
type Kind int

const (
	// Plain formats as "<section>: <coord-name> <value>..." with coord
	// names fixed per section.
	Plain Kind = iota
	// CUDie formats as ".debug_info: CU <addr1>: DIE 0x<addr2>: ...".
	CUDie
)

// Where is a diagnostic location breadcrumb: a section, up to three numeric
// coordinates whose meaning depends on the section, an optional inner
// "reference" breadcrumb (the place something was referenced from), and a
// Next link chaining further causes (for --ref reporting).
type Where struct {
	Section string
	Addr1   *uint64
	Addr2   *uint64
	Addr3   *uint64
	Kind    Kind

	ref  Ref // zero Ref means "no inner reference"
	next Ref // zero Ref means "no further chain"
}

// Ref indexes a Where stored in an Arena. The zero Ref is never a valid
// index (Arena reserves slot 0); use it as a "no reference" sentinel.
type Ref uint32

// Arena owns Where values and hands out stable Refs instead of pointers.
type Arena struct {
	nodes []Where
}

// NewArena creates an arena with its zero sentinel slot reserved.
func NewArena() *Arena {
	return &Arena{nodes: make([]Where, 1)}
}

// New stores w and returns its Ref.
func (a *Arena) New(w Where) Ref {
	a.nodes = append(a.nodes, w)
	return Ref(len(a.nodes) - 1)
}

// Get returns the Where stored at ref. The zero Ref names the arena's
// reserved slot, so Get(0) returns an empty Where rather than panicking;
// callers check ref != 0 to tell "no reference" apart.
func (a *Arena) Get(ref Ref) Where {
	return a.nodes[ref]
}

// WithRef returns a copy of w with its inner reference breadcrumb set.
func (w Where) WithRef(r Ref) Where {
	w.ref = r
	return w
}

// WithNext returns a copy of w with its chain-next breadcrumb set.
func (w Where) WithNext(n Ref) Where {
	w.next = n
	return w
}

// RefOf returns w's inner reference breadcrumb ref, or 0 if none.
func (w Where) RefOf() Ref { return w.ref }

// NextOf returns w's chain-next breadcrumb ref, or 0 if none.
func (w Where) NextOf() Ref { return w.next }

func fmtCoord(name string, v *uint64, hex bool) string {
	if v == nil {
		return ""
	}
	if hex {
		return fmt.Sprintf(" %s 0x%x", name, *v)
	}
	return fmt.Sprintf(" %s %d", name, *v)
}

// coordNames gives the fixed coordinate names per section
// (e.g. ".debug_info: CU 3: DIE 0x1a: ...").
var coordNames = map[string][3]string{
	".debug_info":     {"CU", "DIE", ""},
	".debug_abbrev":   {"table", "entry", ""},
	".debug_aranges":  {"table", "", ""},
	".debug_pubnames": {"table", "", ""},
	".debug_pubtypes": {"table", "", ""},
	".debug_line":     {"table", "", ""},
	".debug_loc":      {"list", "", ""},
	".debug_ranges":   {"list", "", ""},
	".debug_str":      {"", "", ""},
}

// Format renders the breadcrumb's section and coordinates, not including
// the trailing message or severity prefix.
func (a *Arena) Format(w Where) string {
	names, ok := coordNames[w.Section]
	if !ok {
		names = [3]string{"", "", ""}
	}

	s := w.Section

	switch w.Kind {
	case CUDie:
		if w.Addr1 != nil {
			s += fmt.Sprintf(": CU %d", *w.Addr1)
		}
		if w.Addr2 != nil {
			s += fmt.Sprintf(": DIE 0x%x", *w.Addr2)
		}
	default:
		s += fmtCoordNamed(names[0], w.Addr1, true)
		s += fmtCoordNamed(names[1], w.Addr2, true)
		s += fmtCoordNamed(names[2], w.Addr3, true)
	}

	if w.ref != 0 {
		s += fmt.Sprintf(" (%s)", a.Format(a.Get(w.ref)))
	}

	return s
}

func fmtCoordNamed(name string, v *uint64, hex bool) string {
	if v == nil || name == "" {
		return ""
	}
	if hex {
		return fmt.Sprintf(": %s 0x%x", name, *v)
	}
	return fmt.Sprintf(": %s %d", name, *v)
}

// FormatChain renders the full reference chain (every Next link), used by
// --ref. Each link is printed on its own indented line.
func (a *Arena) FormatChain(w Where) string {
	s := a.Format(w)
	cur := w
	for cur.next != 0 {
		cur = a.Get(cur.next)
		s += "\n    referenced from " + a.Format(cur)
	}
	return s
}
