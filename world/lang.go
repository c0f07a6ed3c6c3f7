package world

import "strings"

// pick chooses one value for a single-valued accessor. Without language
// filtering the first value wins. With it, an exact language match beats a
// match on the primary subtag, which beats an untagged literal.
func (w *World) pick(vals []Value) (Value, bool) {
	if len(vals) == 0 {
		return Value{}, false
	}
	if !w.filterLang || w.lang == "" {
		return vals[0], true
	}

	primary := w.lang
	if i := strings.IndexByte(primary, '-'); i >= 0 {
		primary = primary[:i]
	}

	var partial, untagged *Value
	for i := range vals {
		v := &vals[i]
		switch {
		case !v.IsString():
			continue
		case v.lang == w.lang:
			return *v, true
		case v.lang == "":
			if untagged == nil {
				untagged = v
			}
		case partial == nil && (v.lang == primary || strings.HasPrefix(v.lang, primary+"-")):
			partial = v
		}
	}
	switch {
	case partial != nil:
		return *partial, true
	case untagged != nil:
		return *untagged, true
	default:
		return vals[0], true
	}
}
