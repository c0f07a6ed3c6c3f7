package world

import (
	"sort"

	"github.com/wippyai/lv2-runtime/lv2"
	"github.com/wippyai/lv2-runtime/triple"
)

// PluginClass is a node of the plugin class taxonomy rooted at lv2:Plugin.
type PluginClass struct {
	w      *World
	uri    string
	parent string
	label  Value
}

// URI returns the class URI.
func (c *PluginClass) URI() string { return c.uri }

// ParentURI returns the rdfs:subClassOf parent. The root has none.
func (c *PluginClass) ParentURI() (string, bool) {
	return c.parent, c.parent != ""
}

// Label returns the rdfs:label of the class.
func (c *PluginClass) Label() Value { return c.label }

func (c *PluginClass) String() string { return c.uri }

// Children returns the classes whose parent is c.
func (c *PluginClass) Children() []*PluginClass {
	var out []*PluginClass
	for _, k := range c.w.PluginClasses() {
		if k.parent == c.uri {
			out = append(out, k)
		}
	}
	return out
}

// Ancestors returns the parent chain of c, nearest first. A cycle in the
// taxonomy ends the walk.
func (c *PluginClass) Ancestors() []*PluginClass {
	byURI := c.w.classIndex()
	visited := map[string]bool{c.uri: true}
	var out []*PluginClass
	for cur := c; cur.parent != "" && !visited[cur.parent]; {
		next, ok := byURI[cur.parent]
		if !ok {
			break
		}
		visited[next.uri] = true
		out = append(out, next)
		cur = next
	}
	return out
}

// Descendants returns every class below c, breadth first.
func (c *PluginClass) Descendants() []*PluginClass {
	classes := c.w.PluginClasses()
	children := make(map[string][]*PluginClass)
	for _, k := range classes {
		if k.parent != "" {
			children[k.parent] = append(children[k.parent], k)
		}
	}

	visited := map[string]bool{c.uri: true}
	queue := []string{c.uri}
	var out []*PluginClass
	for len(queue) > 0 {
		uri := queue[0]
		queue = queue[1:]
		for _, k := range children[uri] {
			if visited[k.uri] {
				continue
			}
			visited[k.uri] = true
			out = append(out, k)
			queue = append(queue, k.uri)
		}
	}
	return out
}

// PluginClass returns the root class lv2:Plugin.
func (w *World) PluginClass() *PluginClass {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.classList()[0]
}

// PluginClasses returns every known class, the root first and the rest
// sorted by URI.
func (w *World) PluginClasses() []*PluginClass {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]*PluginClass(nil), w.classList()...)
}

// ClassByURI returns the class with the given URI.
func (w *World) ClassByURI(uri string) (*PluginClass, bool) {
	c, ok := w.classIndex()[uri]
	return c, ok
}

func (w *World) classIndex() map[string]*PluginClass {
	classes := w.PluginClasses()
	out := make(map[string]*PluginClass, len(classes))
	for _, c := range classes {
		out[c.uri] = c
	}
	return out
}

// invalidateClasses drops the class cache. Callers hold the write lock.
func (w *World) invalidateClasses() {
	w.classMu.Lock()
	w.classes = nil
	w.classesOK = false
	w.classMu.Unlock()
}

// classList returns the cached taxonomy, building it on first use. The read
// lock must be held.
func (w *World) classList() []*PluginClass {
	w.classMu.Lock()
	defer w.classMu.Unlock()
	if !w.classesOK {
		w.classes = w.buildClasses()
		w.classesOK = true
	}
	return w.classes
}

func (w *World) buildClasses() []*PluginClass {
	root := &PluginClass{w: w, uri: lv2.Plugin, label: NewString("Plugin")}
	x := w.idx
	typeID, classID := x.uri(lv2.RDFType), x.uri(lv2.RDFSClass)
	subID, labelID := x.uri(lv2.RDFSSubClassOf), x.uri(lv2.RDFSLabel)
	if typeID == 0 || classID == 0 || subID == 0 {
		return []*PluginClass{root}
	}

	seen := map[nodeID]bool{}
	var classes []*PluginClass
	x.match(0, typeID, classID, 0, func(st stmt) bool {
		if seen[st.s] {
			return true
		}
		seen[st.s] = true
		t := x.term(st.s)
		if t.Kind != triple.KindIRI {
			return true
		}

		var parent string
		x.match(st.s, subID, 0, 0, func(ps stmt) bool {
			if pt := x.term(ps.o); pt.Kind == triple.KindIRI {
				parent = pt.Value
				return false
			}
			return true
		})
		if parent == "" {
			return true
		}

		var labels []Value
		if labelID != 0 {
			x.match(st.s, labelID, 0, 0, func(ls stmt) bool {
				labels = append(labels, valueOf(x.term(ls.o)))
				return true
			})
		}
		label, ok := w.pick(labels)
		if !ok {
			return true
		}

		if t.Value == lv2.Plugin {
			root.label = label
			return true
		}
		classes = append(classes, &PluginClass{w: w, uri: t.Value, parent: parent, label: label})
		return true
	})

	sort.Slice(classes, func(i, j int) bool { return classes[i].uri < classes[j].uri })
	return append([]*PluginClass{root}, classes...)
}
