package world

import (
	"github.com/wippyai/lv2-runtime/triple"
)

// nodeID addresses an interned term. Zero means "none" or "any".
type nodeID uint32

type stmt struct {
	s, p, o, g nodeID
}

type quadKey [4]nodeID

// index is the arena behind a World: interned terms plus statements indexed
// by subject, predicate and predicate+object. Every statement carries the
// graph (bundle) it was loaded from.
type index struct {
	ids       map[triple.Term]nodeID
	seen      map[quadKey]struct{}
	bySubj    map[nodeID][]int
	byPred    map[nodeID][]int
	byPredObj map[[2]nodeID][]int
	terms     []triple.Term
	stmts     []stmt
}

func newIndex() *index {
	return &index{
		ids:       make(map[triple.Term]nodeID),
		seen:      make(map[quadKey]struct{}),
		bySubj:    make(map[nodeID][]int),
		byPred:    make(map[nodeID][]int),
		byPredObj: make(map[[2]nodeID][]int),
	}
}

// intern returns the id of t, adding it if needed.
func (x *index) intern(t triple.Term) nodeID {
	if id, ok := x.ids[t]; ok {
		return id
	}
	x.terms = append(x.terms, t)
	id := nodeID(len(x.terms))
	x.ids[t] = id
	return id
}

// lookup returns the id of t without adding it.
func (x *index) lookup(t triple.Term) nodeID {
	return x.ids[t]
}

func (x *index) uri(s string) nodeID {
	return x.lookup(triple.IRI(s))
}

func (x *index) term(id nodeID) triple.Term {
	if id == 0 || int(id) > len(x.terms) {
		return triple.Term{}
	}
	return x.terms[id-1]
}

// add inserts a statement unless the same statement already exists in g.
func (x *index) add(t triple.Triple, g nodeID) bool {
	st := stmt{s: x.intern(t.S), p: x.intern(t.P), o: x.intern(t.O), g: g}
	key := quadKey{st.s, st.p, st.o, st.g}
	if _, dup := x.seen[key]; dup {
		return false
	}
	x.seen[key] = struct{}{}

	i := len(x.stmts)
	x.stmts = append(x.stmts, st)
	x.bySubj[st.s] = append(x.bySubj[st.s], i)
	x.byPred[st.p] = append(x.byPred[st.p], i)
	po := [2]nodeID{st.p, st.o}
	x.byPredObj[po] = append(x.byPredObj[po], i)
	return true
}

// match calls fn for every statement matching the pattern. Zero components
// are wildcards. Iteration stops when fn returns false.
func (x *index) match(s, p, o, g nodeID, fn func(stmt) bool) {
	var candidates []int
	switch {
	case s != 0:
		candidates = x.bySubj[s]
	case p != 0 && o != 0:
		candidates = x.byPredObj[[2]nodeID{p, o}]
	case p != 0:
		candidates = x.byPred[p]
	default:
		for _, st := range x.stmts {
			if matches(st, s, p, o, g) && !fn(st) {
				return
			}
		}
		return
	}
	for _, i := range candidates {
		st := x.stmts[i]
		if matches(st, s, p, o, g) && !fn(st) {
			return
		}
	}
}

func matches(st stmt, s, p, o, g nodeID) bool {
	return (s == 0 || st.s == s) &&
		(p == 0 || st.p == p) &&
		(o == 0 || st.o == o) &&
		(g == 0 || st.g == g)
}

// has reports whether any statement matches.
func (x *index) has(s, p, o, g nodeID) bool {
	found := false
	x.match(s, p, o, g, func(stmt) bool {
		found = true
		return false
	})
	return found
}

// removeGraph drops every statement of graph g and rebuilds the lookup maps.
// Interned terms are kept so existing ids stay stable.
func (x *index) removeGraph(g nodeID) int {
	kept := x.stmts[:0:0]
	removed := 0
	for _, st := range x.stmts {
		if st.g == g {
			removed++
			continue
		}
		kept = append(kept, st)
	}
	if removed == 0 {
		return 0
	}

	x.stmts = nil
	x.seen = make(map[quadKey]struct{}, len(kept))
	x.bySubj = make(map[nodeID][]int)
	x.byPred = make(map[nodeID][]int)
	x.byPredObj = make(map[[2]nodeID][]int)
	for _, st := range kept {
		i := len(x.stmts)
		x.stmts = append(x.stmts, st)
		x.seen[quadKey{st.s, st.p, st.o, st.g}] = struct{}{}
		x.bySubj[st.s] = append(x.bySubj[st.s], i)
		x.byPred[st.p] = append(x.byPred[st.p], i)
		po := [2]nodeID{st.p, st.o}
		x.byPredObj[po] = append(x.byPredObj[po], i)
	}
	return removed
}

func (x *index) len() int { return len(x.stmts) }
