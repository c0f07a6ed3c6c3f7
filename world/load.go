package world

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	ignore "github.com/sabhiram/go-gitignore"
	"go.uber.org/zap"

	"github.com/wippyai/lv2-runtime/errors"
	"github.com/wippyai/lv2-runtime/lv2"
	"github.com/wippyai/lv2-runtime/triple"
)

// IgnoreFile is read from each search directory. Bundle directory names
// matching its gitignore-style patterns are skipped.
const IgnoreFile = ".lv2ignore"

// LoadAll loads every bundle found on the search path: the WithSearchPath
// directories if set, otherwise LV2_PATH or the platform default.
func (w *World) LoadAll() {
	dirs := w.searchPath
	if dirs == nil {
		dirs = SearchPath()
	}
	w.LoadPath(dirs)
}

// LoadPath loads the bundles directly under each directory, in order.
// Missing directories are skipped silently and broken bundles are logged
// and skipped.
func (w *World) LoadPath(dirs []string) {
	for _, dir := range dirs {
		w.loadDirectory(ExpandPath(dir))
	}
}

func (w *World) loadDirectory(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		w.logger.Debug("skipping search directory", zap.String("dir", dir), zap.Error(err))
		return
	}

	var ign *ignore.GitIgnore
	if gi, err := ignore.CompileIgnoreFile(filepath.Join(dir, IgnoreFile)); err == nil {
		ign = gi
	}

	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if ign != nil && ign.MatchesPath(name) {
			w.logger.Debug("bundle ignored", zap.String("dir", dir), zap.String("bundle", name))
			continue
		}

		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(path, manifestName)); err != nil {
			w.logger.Debug("directory has no manifest", zap.String("path", path))
			continue
		}

		// Failures are logged by LoadBundle; discovery carries on.
		_ = w.LoadBundle(triple.FileURI(path + "/"))
	}
}

// LoadBundle loads the bundle at bundleURI, a file:// URI or a directory
// path. Loading the same directory twice is a no-op. The returned error is
// a discovery error when the manifest cannot be read or parsed; broken data
// documents are only logged.
func (w *World) LoadBundle(bundleURI string) error {
	dir, ok := triple.FilePath(bundleURI)
	if !ok {
		dir = bundleURI
	}
	canon, err := canonicalDir(dir)
	if err != nil {
		derr := errors.Discovery(dir, err)
		w.logger.Warn("cannot resolve bundle", zap.String("bundle", bundleURI), zap.Error(err))
		w.metrics.DocumentFailed()
		return derr
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.bundles[canon]; ok {
		w.logger.Debug("bundle already loaded", zap.String("dir", canon))
		return nil
	}

	uri := triple.FileURI(canon + "/")
	manifestURI := uri + manifestName
	manifestPath := filepath.Join(canon, manifestName)
	ts, err := w.parseDocument(manifestPath, manifestURI)
	if err != nil {
		w.logger.Warn("cannot load bundle manifest", zap.String("path", manifestPath), zap.Error(err))
		w.metrics.DocumentFailed()
		return errors.Discovery(manifestPath, err)
	}

	b := &bundle{uri: uri, dir: canon, graph: w.idx.intern(triple.IRI(uri))}
	w.bundles[canon] = b
	w.bundleOrder = append(w.bundleOrder, canon)
	w.addDocument(b, manifestURI, ts)

	typeID := w.idx.uri(lv2.RDFType)
	plugins := w.subjectsOfType(typeID, lv2.Plugin, b.graph)
	resources := append([]nodeID(nil), plugins...)
	resources = append(resources, w.subjectsOfType(typeID, lv2.Specification, b.graph)...)
	resources = append(resources, w.subjectsOfType(typeID, lv2.PresetPreset, b.graph)...)

	seeAlso := w.idx.uri(lv2.RDFSSeeAlso)
	dataDocs := make(map[nodeID][]string)
	for _, s := range resources {
		w.idx.match(s, seeAlso, 0, b.graph, func(st stmt) bool {
			t := w.idx.term(st.o)
			if t.Kind == triple.KindIRI {
				dataDocs[s] = append(dataDocs[s], t.Value)
				w.loadDocument(b, t.Value)
			}
			return true
		})
	}

	for _, s := range plugins {
		w.registerPlugin(b, s, append([]string{manifestURI}, dataDocs[s]...))
	}

	w.invalidateClasses()
	w.metrics.BundleLoaded()
	w.metrics.SetPlugins(len(w.plugins))
	w.logger.Info("bundle loaded",
		zap.String("bundle", uri),
		zap.Int("plugins", len(plugins)),
		zap.Int("documents", len(b.docs)))
	return nil
}

// UnloadBundle removes every statement and plugin contributed by a bundle.
// Views of its plugins become invalid.
func (w *World) UnloadBundle(bundleURI string) error {
	dir, ok := triple.FilePath(bundleURI)
	if !ok {
		dir = bundleURI
	}
	canon, err := canonicalDir(dir)
	if err != nil {
		canon = filepath.Clean(dir)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	b, ok := w.bundles[canon]
	if !ok {
		return errors.NotFound(errors.PhaseDiscover, "bundle", bundleURI)
	}

	removed := w.idx.removeGraph(b.graph)
	for _, doc := range b.docs {
		delete(w.docs, doc)
	}

	order := w.pluginOrder[:0]
	for _, uri := range w.pluginOrder {
		p := w.plugins[uri]
		if p.graph == b.graph {
			p.removed = true
			delete(w.plugins, uri)
			continue
		}
		delete(p.shadow, b.graph)
		order = append(order, uri)
	}
	w.pluginOrder = order

	delete(w.bundles, canon)
	for i, d := range w.bundleOrder {
		if d == canon {
			w.bundleOrder = append(w.bundleOrder[:i], w.bundleOrder[i+1:]...)
			break
		}
	}

	w.invalidateClasses()
	w.gen.Add(1)
	w.metrics.SetPlugins(len(w.plugins))
	w.logger.Info("bundle unloaded", zap.String("bundle", b.uri), zap.Int("statements", removed))
	return nil
}

func canonicalDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", errors.InvalidInput(errors.PhaseDiscover, resolved+" is not a directory")
	}
	return resolved, nil
}

func (w *World) parseDocument(path, base string) ([]triple.Triple, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ts, err := w.parser.Parse(f, base)
	if err != nil {
		return nil, errors.ParseFailed(base, err)
	}
	return ts, nil
}

// loadDocument parses a data document into the bundle graph. Each document
// is loaded at most once per World.
func (w *World) loadDocument(b *bundle, docURI string) {
	if _, ok := w.docs[docURI]; ok {
		return
	}
	path, ok := triple.FilePath(docURI)
	if !ok {
		w.logger.Warn("ignoring non-file document", zap.String("document", docURI))
		return
	}
	ts, err := w.parseDocument(path, docURI)
	if err != nil {
		w.logger.Warn("skipping unreadable document",
			zap.String("bundle", b.uri),
			zap.String("document", docURI),
			zap.Error(err))
		w.metrics.DocumentFailed()
		return
	}
	w.addDocument(b, docURI, ts)
}

// addDocument indexes ts under the bundle graph. Blank node labels are
// scoped to the document so they never collide across documents.
func (w *World) addDocument(b *bundle, docURI string, ts []triple.Triple) {
	w.docSeq++
	scope := "d" + strconv.Itoa(w.docSeq) + "_"
	for _, t := range ts {
		if t.S.Kind == triple.KindBlank {
			t.S.Value = scope + t.S.Value
		}
		if t.O.Kind == triple.KindBlank {
			t.O.Value = scope + t.O.Value
		}
		w.idx.add(t, b.graph)
	}
	w.docs[docURI] = b.graph
	b.docs = append(b.docs, docURI)
}

func (w *World) subjectsOfType(typeID nodeID, class string, graph nodeID) []nodeID {
	classID := w.idx.uri(class)
	if typeID == 0 || classID == 0 {
		return nil
	}
	var out []nodeID
	seen := make(map[nodeID]bool)
	w.idx.match(0, typeID, classID, graph, func(st stmt) bool {
		if !seen[st.s] && w.idx.term(st.s).Kind == triple.KindIRI {
			seen[st.s] = true
			out = append(out, st.s)
		}
		return true
	})
	return out
}

// registerPlugin adds the plugin declared by subject s in bundle b. When the
// URI is already registered the first registration wins, unless newer
// versions may replace older ones and b declares a strictly higher version.
// The losing bundle's statements are hidden from that plugin's views.
func (w *World) registerPlugin(b *bundle, s nodeID, dataURIs []string) {
	uri := w.idx.term(s).Value
	existing, ok := w.plugins[uri]
	if !ok {
		w.plugins[uri] = newPlugin(w, uri, s, b, dataURIs)
		w.pluginOrder = append(w.pluginOrder, uri)
		return
	}
	if existing.graph == b.graph {
		return
	}

	w.metrics.DuplicatePlugin()
	if w.replaceNewer {
		candidate := w.versionIn(s, b.graph)
		current := w.versionIn(s, existing.graph)
		if candidate != nil && (current == nil || candidate.GreaterThan(current)) {
			w.logger.Info("replacing plugin with newer version",
				zap.String("plugin", uri),
				zap.String("old_bundle", existing.bundleURI),
				zap.String("new_bundle", b.uri),
				zap.Stringer("version", candidate))
			existing.shadow[existing.graph] = true
			delete(existing.shadow, b.graph)
			existing.graph = b.graph
			existing.bundleURI = b.uri
			existing.dataURIs = dataURIs
			existing.resetPorts()
			return
		}
	}

	w.logger.Error("duplicate plugin ignored",
		zap.String("plugin", uri),
		zap.String("kept_bundle", existing.bundleURI),
		zap.String("ignored_bundle", b.uri))
	existing.shadow[b.graph] = true
}

// versionIn reads lv2:minorVersion and lv2:microVersion of s from one graph
// as the semantic version 0.minor.micro.
func (w *World) versionIn(s, graph nodeID) *semver.Version {
	minor, okMinor := w.intIn(s, lv2.MinorVersion, graph)
	micro, okMicro := w.intIn(s, lv2.MicroVersion, graph)
	if !okMinor && !okMicro {
		return nil
	}
	if minor < 0 || micro < 0 {
		return nil
	}
	return semver.New(0, uint64(minor), uint64(micro), "", "")
}

func (w *World) intIn(s nodeID, pred string, graph nodeID) (int64, bool) {
	p := w.idx.uri(pred)
	if p == 0 {
		return 0, false
	}
	var out int64
	found := false
	w.idx.match(s, p, 0, graph, func(st stmt) bool {
		v := valueOf(w.idx.term(st.o))
		if v.IsInt() {
			out, found = v.AsInt(), true
			return false
		}
		return true
	})
	return out, found
}
