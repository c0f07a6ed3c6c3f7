package state

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wippyai/lv2-runtime/lv2"
)

// pathMap translates between absolute file paths and the abstract paths a
// plugin stores. Abstract paths are slash separated and relative to the
// state directory.
type pathMap struct {
	abs2rel     map[string]string
	rel2abs     map[string]string
	made        map[string]bool
	dir         string
	scratchBase string
	scratch     string
}

func newPathMap() *pathMap {
	return &pathMap{
		abs2rel: make(map[string]string),
		rel2abs: make(map[string]string),
		made:    make(map[string]bool),
	}
}

// features returns base with the path features of s in front. The URID
// features of the state's map are added when base lacks them, since keys
// and types handed to the plugin are URIDs of that map.
func (s *State) features(base lv2.Features) lv2.Features {
	fs := []lv2.Feature{
		{URI: lv2.StateMapPath, Data: &lv2.MapPath{AbstractPath: s.AbstractPath, AbsolutePath: s.AbsolutePath}},
		{URI: lv2.StateFreePath, Data: &lv2.FreePath{Free: s.FreePath}},
	}
	if s.paths.scratchBase != "" {
		fs = append(fs, lv2.Feature{URI: lv2.StateMakePath, Data: &lv2.MakePath{Path: s.MakePath}})
	}
	if s.mapper != nil {
		if !base.Contains(lv2.URIDMap) {
			fs = append(fs, lv2.Feature{URI: lv2.URIDMap, Data: lv2.Mapper(s.mapper)})
		}
		if !base.Contains(lv2.URIDUnmap) {
			fs = append(fs, lv2.Feature{URI: lv2.URIDUnmap, Data: lv2.Unmapper(s.mapper)})
		}
	}
	return base.With(fs...)
}

// MakePath returns an absolute path for a file named name in the state's
// scratch directory, creating parent directories. The same name yields the
// same path for the lifetime of the state.
func (s *State) MakePath(name string) string {
	s.pathMu.Lock()
	defer s.pathMu.Unlock()

	pm := s.paths
	if pm.scratch == "" {
		base := pm.scratchBase
		if base == "" {
			base = os.TempDir()
		}
		pm.scratch = filepath.Join(base, uuid.NewString())
	}
	p := filepath.Join(pm.scratch, filepath.FromSlash(name))
	if !isChild(p, pm.scratch) {
		p = filepath.Join(pm.scratch, filepath.Base(name))
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		s.logger.Warn("cannot create scratch directory", zap.String("path", p), zap.Error(err))
	}
	pm.made[p] = true
	return p
}

// AbstractPath maps an absolute path to the abstract path stored in the
// state. Mapping the same file twice yields the same abstract path. Files
// in the scratch or state directory keep their relative location; other
// files get a free name at the top of the state directory.
func (s *State) AbstractPath(absolute string) string {
	if absolute == "" {
		return ""
	}
	resolved := realPath(absolute)

	s.pathMu.Lock()
	defer s.pathMu.Unlock()

	pm := s.paths
	if rel, ok := pm.abs2rel[resolved]; ok {
		return rel
	}

	var rel string
	switch {
	case pm.scratch != "" && isChild(resolved, realPath(pm.scratch)):
		rel = relTo(realPath(pm.scratch), resolved)
	case pm.dir != "" && isChild(resolved, pm.dir):
		rel = relTo(pm.dir, resolved)
	default:
		rel = pm.freeName(filepath.Base(resolved))
	}
	pm.abs2rel[resolved] = rel
	pm.rel2abs[rel] = resolved
	return rel
}

// AbsolutePath maps an abstract path back to an absolute path. Abstract
// paths resolve against the current state directory, so a state moved
// with its files keeps working.
func (s *State) AbsolutePath(abstract string) string {
	if abstract == "" || filepath.IsAbs(abstract) {
		return abstract
	}

	s.pathMu.Lock()
	defer s.pathMu.Unlock()

	pm := s.paths
	if pm.dir != "" {
		p := filepath.Join(pm.dir, filepath.FromSlash(abstract))
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if abs, ok := pm.rel2abs[abstract]; ok {
		return abs
	}
	switch {
	case pm.dir != "":
		return filepath.Join(pm.dir, filepath.FromSlash(abstract))
	case pm.scratch != "":
		return filepath.Join(pm.scratch, filepath.FromSlash(abstract))
	default:
		return abstract
	}
}

// FreePath releases a path returned by MakePath or AbstractPath.
func (s *State) FreePath(path string) {
	s.pathMu.Lock()
	delete(s.paths.made, path)
	s.pathMu.Unlock()
}

// freeName returns name, or name with a counter before its extension, so
// that it is unused as an abstract path.
func (pm *pathMap) freeName(name string) string {
	if _, used := pm.rel2abs[name]; !used {
		return name
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 2; ; i++ {
		candidate := stem + "." + strconv.Itoa(i) + ext
		if _, used := pm.rel2abs[candidate]; !used {
			return candidate
		}
	}
}

// files returns the abstract to absolute mapping of every mapped file.
func (pm *pathMap) files() map[string]string {
	out := make(map[string]string, len(pm.rel2abs))
	for rel, abs := range pm.rel2abs {
		out[rel] = abs
	}
	return out
}

func realPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

func isChild(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func relTo(dir, path string) string {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return filepath.Base(path)
	}
	return filepath.ToSlash(rel)
}

// samePath reports whether a and b name the same file or files with equal
// content.
func samePath(a, b string) bool {
	if realPath(a) == realPath(b) {
		return true
	}
	da, err := os.ReadFile(a)
	if err != nil {
		return false
	}
	db, err := os.ReadFile(b)
	if err != nil {
		return false
	}
	return bytes.Equal(da, db)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
