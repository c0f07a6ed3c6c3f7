package world

import (
	"github.com/wippyai/lv2-runtime/errors"
	"github.com/wippyai/lv2-runtime/triple"
)

// Term is one position of a query pattern: a variable or a constant.
type Term struct {
	name  string
	value Value
}

// Var returns a variable term. Variables with the same name must bind the
// same node in every pattern.
func Var(name string) Term { return Term{name: name} }

// URITerm returns a constant URI term.
func URITerm(uri string) Term { return Term{value: NewURI(uri)} }

// ValueTerm returns a constant term. Literal constants match by value, so
// "1.0"^^xsd:decimal matches 1.
func ValueTerm(v Value) Term { return Term{value: v} }

func (t Term) isVar() bool { return t.name != "" }

type pattern [3]Term

// Query is a basic graph pattern: every pattern must match for a solution.
type Query struct {
	vars     []string
	patterns []pattern
}

// NewQuery starts a query selecting vars. With no vars every variable is
// selected in order of first use.
func NewQuery(vars ...string) *Query {
	return &Query{vars: vars}
}

// Where adds a pattern.
func (q *Query) Where(s, p, o Term) *Query {
	q.patterns = append(q.patterns, pattern{s, p, o})
	return q
}

func (q *Query) variables() []string {
	var out []string
	seen := map[string]bool{}
	for _, pt := range q.patterns {
		for _, t := range pt {
			if t.isVar() && !seen[t.name] {
				seen[t.name] = true
				out = append(out, t.name)
			}
		}
	}
	return out
}

// ResultSet is a forward-only cursor over query solutions.
type ResultSet struct {
	err   error
	names []string
	rows  [][]Value
	pos   int
}

// Next advances to the next solution.
func (r *ResultSet) Next() bool {
	if r.err != nil || r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

// Names returns the selected variable names.
func (r *ResultSet) Names() []string { return append([]string(nil), r.names...) }

// At returns the i-th selected value of the current solution.
func (r *ResultSet) At(i int) (Value, bool) {
	if r.pos == 0 || r.pos > len(r.rows) || i < 0 || i >= len(r.names) {
		return Value{}, false
	}
	return r.rows[r.pos-1][i], true
}

// Get returns the value bound to name in the current solution.
func (r *ResultSet) Get(name string) (Value, bool) {
	for i, n := range r.names {
		if n == name {
			return r.At(i)
		}
	}
	return Value{}, false
}

// Len returns the number of solutions.
func (r *ResultSet) Len() int { return len(r.rows) }

// Err returns the error that ended iteration, if any.
func (r *ResultSet) Err() error { return r.err }

// Close releases the solutions.
func (r *ResultSet) Close() error {
	r.rows = nil
	r.pos = 0
	return nil
}

// Query evaluates q against every loaded statement. Solutions are computed
// up front, so the cursor never holds the World lock.
func (w *World) Query(q *Query) (*ResultSet, error) {
	if q == nil || len(q.patterns) == 0 {
		return nil, errors.InvalidInput(errors.PhaseQuery, "query has no patterns")
	}
	all := q.variables()
	names := q.vars
	if len(names) == 0 {
		names = all
	}
	known := make(map[string]bool, len(all))
	for _, n := range all {
		known[n] = true
	}
	for _, n := range names {
		if !known[n] {
			return nil, errors.NotFound(errors.PhaseQuery, "variable", n)
		}
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	rs := &ResultSet{names: append([]string(nil), names...)}
	seen := make(map[string]bool)
	w.solve(q.patterns, map[string]nodeID{}, func(b map[string]nodeID) {
		row := make([]Value, len(names))
		key := make([]byte, 0, 4*len(names))
		for i, n := range names {
			id := b[n]
			row[i] = valueOf(w.idx.term(id))
			key = append(key, byte(id), byte(id>>8), byte(id>>16), byte(id>>24))
		}
		if !seen[string(key)] {
			seen[string(key)] = true
			rs.rows = append(rs.rows, row)
		}
	})
	return rs, nil
}

// constraint is a resolved pattern position: a node id to match, or a
// literal value to compare after matching any node.
type constraint struct {
	literal *Value
	id      nodeID
	name    string
	missing bool
}

func (w *World) resolve(t Term, b map[string]nodeID) constraint {
	if t.isVar() {
		id, bound := b[t.name]
		if !bound {
			return constraint{name: t.name}
		}
		if tm := w.idx.term(id); tm.Kind == triple.KindLiteral {
			v := valueOf(tm)
			return constraint{literal: &v}
		}
		return constraint{id: id}
	}
	switch t.value.Kind() {
	case KindURI, KindBlank:
		id := w.idx.lookup(t.value.term())
		return constraint{id: id, missing: id == 0}
	case 0:
		return constraint{missing: true}
	default:
		v := t.value
		return constraint{literal: &v}
	}
}

func (c constraint) accepts(w *World, id nodeID) bool {
	if c.literal == nil {
		return true
	}
	tm := w.idx.term(id)
	if tm.Kind != triple.KindLiteral {
		return false
	}
	v := valueOf(tm)
	if v.IsNumber() && c.literal.IsNumber() {
		return v.AsFloat() == c.literal.AsFloat()
	}
	return v.Equal(*c.literal)
}

func (w *World) solve(patterns []pattern, b map[string]nodeID, emit func(map[string]nodeID)) {
	if len(patterns) == 0 {
		emit(b)
		return
	}
	pt := patterns[0]
	cs := [3]constraint{w.resolve(pt[0], b), w.resolve(pt[1], b), w.resolve(pt[2], b)}
	for _, c := range cs {
		if c.missing {
			return
		}
	}

	var matched []stmt
	w.idx.match(cs[0].id, cs[1].id, cs[2].id, 0, func(st stmt) bool {
		matched = append(matched, st)
		return true
	})

	for _, st := range matched {
		ids := [3]nodeID{st.s, st.p, st.o}
		next := b
		ok := true
		for i, c := range cs {
			if !c.accepts(w, ids[i]) {
				ok = false
				break
			}
			if c.name == "" {
				continue
			}
			if prev, bound := next[c.name]; bound {
				// Same variable twice in one pattern.
				if prev != ids[i] {
					ok = false
					break
				}
				continue
			}
			if len(next) == len(b) {
				next = make(map[string]nodeID, len(b)+1)
				for k, v := range b {
					next[k] = v
				}
			}
			next[c.name] = ids[i]
		}
		if ok {
			w.solve(patterns[1:], next, emit)
		}
	}
}

// FindValues returns the values at the single wildcard position of the
// pattern (s, p, o). Exactly one of the three must be the zero Value;
// otherwise nothing is returned.
func (w *World) FindValues(s, p, o Value) []Value {
	wild := 0
	for _, v := range []Value{s, p, o} {
		if v.IsZero() {
			wild++
		}
	}
	if wild != 1 {
		return nil
	}

	term := func(v Value, name string) Term {
		if v.IsZero() {
			return Var(name)
		}
		return ValueTerm(v)
	}
	q := NewQuery("x").Where(term(s, "x"), term(p, "x"), term(o, "x"))
	rs, err := w.Query(q)
	if err != nil {
		return nil
	}
	defer rs.Close()

	var out []Value
	for rs.Next() {
		v, _ := rs.At(0)
		out = append(out, v)
	}
	return out
}

// Statements returns the statements about subject s as parsed, with their
// original datatypes. A statement present in several bundles is returned
// once.
func (w *World) Statements(s Value) []triple.Triple {
	w.mu.RLock()
	defer w.mu.RUnlock()

	id := w.idx.lookup(s.term())
	if id == 0 {
		return nil
	}
	var out []triple.Triple
	seen := make(map[[2]nodeID]bool)
	w.idx.match(id, 0, 0, 0, func(st stmt) bool {
		k := [2]nodeID{st.p, st.o}
		if !seen[k] {
			seen[k] = true
			out = append(out, triple.Triple{S: w.idx.term(st.s), P: w.idx.term(st.p), O: w.idx.term(st.o)})
		}
		return true
	})
	return out
}
