package state

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/lv2-runtime/errors"
	"github.com/wippyai/lv2-runtime/lv2"
	"github.com/wippyai/lv2-runtime/triple"
	"github.com/wippyai/lv2-runtime/world"
)

const (
	manifestName = "manifest.ttl"
	// BundleEnv overrides DefaultDir.
	BundleEnv     = "LV2_STATE_BUNDLE"
	defaultBundle = "~/.lv2/presets.lv2"
)

// DefaultDir returns the state bundle used when Save is given no directory.
func DefaultDir() string {
	if dir := os.Getenv(BundleEnv); dir != "" {
		return world.ExpandPath(dir)
	}
	return world.ExpandPath(defaultBundle)
}

// Save writes the state to dir/filename as Turtle and registers it in the
// bundle manifest. An empty dir means DefaultDir; an empty filename is
// derived from the label. Files referenced by path properties are copied
// into dir. uri, when set, replaces the file URI as the state's URI.
func (s *State) Save(dir, filename, uri string) error {
	if dir == "" {
		dir = DefaultDir()
	}
	if filename == "" {
		if s.label == "" {
			return errors.InvalidInput(errors.PhaseState, "state has neither a file name nor a label")
		}
		filename = pathify(s.label)
	}
	if !strings.HasSuffix(filename, ".ttl") {
		filename += ".ttl"
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.metrics.StateOperation("write", "error")
		return errors.IO(errors.PhaseState, dir, err)
	}
	dir = realPath(dir)
	path := filepath.Join(dir, filename)

	files := s.mappedFiles()
	s.pathMu.Lock()
	s.paths.dir = dir
	s.pathMu.Unlock()
	s.copyFiles(dir, files)

	if err := s.writeFile(path, filename); err != nil {
		s.metrics.StateOperation("write", "error")
		return err
	}
	if err := s.addToManifest(dir, filename); err != nil {
		s.metrics.StateOperation("write", "error")
		return err
	}

	s.uri = triple.FileURI(path)
	if uri != "" {
		s.uri = uri
	}
	s.metrics.StateOperation("write", "ok")
	s.logger.Info("state saved", zap.String("path", path), zap.Int("properties", len(s.props)))
	return nil
}

// mappedFiles returns the files the state refers to, keyed by abstract
// path, resolved against the state's current directory.
func (s *State) mappedFiles() map[string]string {
	s.pathMu.Lock()
	files := s.paths.files()
	s.pathMu.Unlock()

	for _, p := range s.props {
		if p.Type != s.statePath {
			continue
		}
		token := cstring(p.Value)
		if _, ok := files[token]; ok || token == "" || filepath.IsAbs(token) {
			continue
		}
		if abs := s.AbsolutePath(token); fileExists(abs) {
			files[token] = realPath(abs)
		}
	}
	return files
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}

// copyFiles copies mapped files that live outside dir into it.
func (s *State) copyFiles(dir string, files map[string]string) {
	for rel, abs := range files {
		dst := filepath.Join(dir, filepath.FromSlash(rel))
		if realPath(dst) == abs {
			continue
		}
		if err := copyFile(abs, dst); err != nil {
			s.logger.Warn("cannot copy state file", zap.String("from", abs), zap.String("to", dst), zap.Error(err))
		}
	}
}

// relIRI returns name as an IRI relative to the document it appears in.
func relIRI(name string) triple.Term {
	u := url.URL{Path: filepath.ToSlash(name)}
	return triple.IRI(u.String())
}

func (s *State) writeFile(path, filename string) error {
	subject := relIRI(filename)
	ts := []triple.Triple{
		{S: subject, P: triple.IRI(lv2.RDFType), O: triple.IRI(lv2.PresetPreset)},
		{S: subject, P: triple.IRI(lv2.AppliesTo), O: triple.IRI(s.pluginURI)},
	}
	if s.label != "" {
		ts = append(ts, triple.Triple{S: subject, P: triple.IRI(lv2.RDFSLabel), O: triple.Literal(s.label, "")})
	}

	for i, v := range s.values {
		port := triple.Blank("port" + strconv.Itoa(i))
		ts = append(ts,
			triple.Triple{S: subject, P: triple.IRI(lv2.Port), O: port},
			triple.Triple{S: port, P: triple.IRI(lv2.Symbol), O: triple.Literal(v.Symbol, "")},
			triple.Triple{S: port, P: triple.IRI(lv2.PresetValue), O: v.Value.Term()},
		)
	}

	if len(s.props) > 0 {
		body := triple.Blank("state")
		ts = append(ts, triple.Triple{S: subject, P: triple.IRI(lv2.StateState), O: body})
		var blobs []triple.Triple
		for i, p := range s.props {
			key, ok := s.mapper.Unmap(p.Key)
			if !ok {
				s.logger.Warn("skipping property with unmapped key", zap.Uint32("key", uint32(p.Key)))
				continue
			}
			o, ok := s.literal(p)
			if !ok {
				typ, known := s.mapper.Unmap(p.Type)
				if !known {
					s.logger.Warn("skipping property with unmapped type", zap.String("key", key))
					continue
				}
				o = triple.Blank("value" + strconv.Itoa(i))
				blobs = append(blobs,
					triple.Triple{S: o, P: triple.IRI(lv2.RDFType), O: triple.IRI(typ)},
					triple.Triple{S: o, P: triple.IRI(lv2.RDFValue), O: triple.Literal(base64.StdEncoding.EncodeToString(p.Value), lv2.XSDBase64Binary)},
				)
			}
			ts = append(ts, triple.Triple{S: body, P: triple.IRI(key), O: o})
		}
		ts = append(ts, blobs...)
	}

	var buf bytes.Buffer
	w := triple.NewWriter(&buf)
	if err := w.WriteAll(ts); err != nil {
		return errors.Wrap(errors.PhaseState, errors.KindInvalidData, err, "encode state")
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(errors.PhaseState, errors.KindInvalidData, err, "encode state")
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errors.IO(errors.PhaseState, path, err)
	}
	return nil
}

// literal encodes a property with a well-known type as a plain RDF term.
func (s *State) literal(p Property) (triple.Term, bool) {
	typ, ok := s.mapper.Unmap(p.Type)
	if !ok {
		return triple.Term{}, false
	}
	v := p.Value
	le := binary.LittleEndian
	switch {
	case typ == lv2.AtomInt && len(v) == 4:
		return triple.Literal(strconv.FormatInt(int64(int32(le.Uint32(v))), 10), lv2.XSDInt), true
	case typ == lv2.AtomLong && len(v) == 8:
		return triple.Literal(strconv.FormatInt(int64(le.Uint64(v)), 10), lv2.XSDLong), true
	case typ == lv2.AtomFloat && len(v) == 4:
		return triple.Literal(strconv.FormatFloat(float64(math.Float32frombits(le.Uint32(v))), 'g', -1, 32), lv2.XSDFloat), true
	case typ == lv2.AtomDouble && len(v) == 8:
		return triple.Literal(strconv.FormatFloat(math.Float64frombits(le.Uint64(v)), 'g', -1, 64), lv2.XSDDouble), true
	case typ == lv2.AtomBool && len(v) == 4:
		return triple.Literal(strconv.FormatBool(le.Uint32(v) != 0), lv2.XSDBoolean), true
	case typ == lv2.AtomString && terminated(v):
		return triple.Literal(cstring(v), ""), true
	case typ == lv2.AtomURID && len(v) == 4:
		uri, ok := s.mapper.Unmap(lv2.URID(le.Uint32(v)))
		if !ok {
			return triple.Term{}, false
		}
		return triple.IRI(uri), true
	case typ == lv2.StatePath && terminated(v):
		return triple.Literal(cstring(v), lv2.StatePath), true
	}
	return triple.Term{}, false
}

// addToManifest declares the state file in dir's manifest unless it is
// already there.
func (s *State) addToManifest(dir, filename string) error {
	path := filepath.Join(dir, manifestName)
	fileURI := triple.FileURI(filepath.Join(dir, filename))

	if existing, err := triple.ParseFile(triple.TurtleParser{}, path); err == nil {
		for _, t := range existing {
			if t.S.Value == fileURI && t.P.Value == lv2.RDFSSeeAlso {
				return nil
			}
		}
	}

	subject := relIRI(filename)
	var buf bytes.Buffer
	w := triple.NewWriter(&buf)
	err := w.WriteAll([]triple.Triple{
		{S: subject, P: triple.IRI(lv2.RDFType), O: triple.IRI(lv2.PresetPreset)},
		{S: subject, P: triple.IRI(lv2.RDFSSeeAlso), O: subject},
		{S: subject, P: triple.IRI(lv2.AppliesTo), O: triple.IRI(s.pluginURI)},
	})
	if err == nil {
		err = w.Close()
	}
	if err != nil {
		return errors.Wrap(errors.PhaseState, errors.KindInvalidData, err, "encode manifest")
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.IO(errors.PhaseState, path, err)
	}
	if _, err := f.Write(append([]byte("\n"), buf.Bytes()...)); err != nil {
		f.Close()
		return errors.IO(errors.PhaseState, path, err)
	}
	if err := f.Close(); err != nil {
		return errors.IO(errors.PhaseState, path, err)
	}
	return nil
}

// pathify turns a label into a file name stem.
func pathify(label string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(label) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// NewFromFile loads the state saved at path. Its subject is the file
// itself, or the only resource in the file that applies to a plugin.
func NewFromFile(path string, m URIDMap) (*State, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.IO(errors.PhaseState, path, err)
	}
	ts, err := triple.ParseFile(triple.TurtleParser{}, abs)
	if err != nil {
		if _, statErr := os.Stat(abs); statErr != nil {
			return nil, errors.IO(errors.PhaseState, abs, statErr)
		}
		return nil, errors.ParseFailed(abs, err)
	}

	bySubject := make(map[triple.Term][]triple.Triple)
	var candidates []triple.Term
	for _, t := range ts {
		bySubject[t.S] = append(bySubject[t.S], t)
		if t.P.Value == lv2.AppliesTo {
			candidates = append(candidates, t.S)
		}
	}

	subject := triple.IRI(triple.FileURI(abs))
	if _, ok := bySubject[subject]; !ok && len(candidates) == 1 {
		subject = candidates[0]
	}

	describe := func(t triple.Term) []triple.Triple { return bySubject[t] }
	s, err := newFromModel(describe, subject, m, realPath(filepath.Dir(abs)))
	if err != nil {
		return nil, err
	}
	s.uri = triple.FileURI(abs)
	return s, nil
}

// NewFromWorld loads the state described by subject, typically a preset
// discovered in a loaded bundle. Path properties resolve against the
// directory of the state's file.
func NewFromWorld(w *world.World, m URIDMap, subject world.Value) (*State, error) {
	if !subject.IsURI() && !subject.IsBlank() {
		return nil, errors.InvalidInput(errors.PhaseState, "state subject "+subject.String()+" is not a URI or blank node")
	}
	describe := func(t triple.Term) []triple.Triple { return w.Statements(world.ValueOf(t)) }
	node := subject.Term()

	dir := ""
	if path, ok := triple.FilePath(subject.AsURI()); ok && subject.IsURI() {
		dir = realPath(filepath.Dir(path))
	} else {
		for _, t := range describe(node) {
			if t.P.Value != lv2.RDFSSeeAlso {
				continue
			}
			if path, ok := triple.FilePath(t.O.Value); ok {
				dir = realPath(filepath.Dir(path))
				break
			}
		}
	}

	s, err := newFromModel(describe, node, m, dir)
	if err != nil {
		return nil, err
	}
	if subject.IsURI() {
		s.uri = subject.AsURI()
	}
	return s, nil
}

func newFromModel(describe func(triple.Term) []triple.Triple, subject triple.Term, m URIDMap, dir string) (*State, error) {
	if m == nil {
		return nil, errors.InvalidInput(errors.PhaseState, "a URID map is required")
	}
	stmts := describe(subject)

	var pluginURI, label string
	var ports []triple.Term
	var body triple.Term
	for _, t := range stmts {
		switch t.P.Value {
		case lv2.AppliesTo:
			if t.O.Kind == triple.KindIRI && pluginURI == "" {
				pluginURI = t.O.Value
			}
		case lv2.RDFSLabel:
			if t.O.Kind == triple.KindLiteral && label == "" {
				label = t.O.Value
			}
		case lv2.Port:
			ports = append(ports, t.O)
		case lv2.StateState:
			body = t.O
		}
	}
	if pluginURI == "" {
		return nil, errors.New(errors.PhaseState, errors.KindInvalidData).
			Subject(subject.Value).
			Detail("state has no lv2:appliesTo").
			Build()
	}

	s := newState(pluginURI, m, nil, nil)
	s.label = label
	s.paths.dir = dir

	for _, port := range ports {
		var symbol string
		var value world.Value
		for _, t := range describe(port) {
			switch t.P.Value {
			case lv2.Symbol:
				symbol = t.O.Value
			case lv2.PresetValue:
				value = world.ValueOf(t.O)
			}
		}
		if symbol == "" || value.IsZero() {
			s.logger.Warn("skipping incomplete port value", zap.String("state", subject.Value), zap.String("symbol", symbol))
			continue
		}
		s.values = append(s.values, PortValue{Symbol: symbol, Value: value})
	}

	if !body.IsZero() {
		for _, t := range describe(body) {
			p, ok := s.propertyOf(describe, t)
			if !ok {
				s.logger.Warn("skipping unreadable property", zap.String("key", t.P.Value))
				continue
			}
			s.props = append(s.props, p)
		}
	}

	s.sort()
	return s, nil
}

// propertyOf decodes one state:state statement.
func (s *State) propertyOf(describe func(triple.Term) []triple.Triple, t triple.Triple) (Property, bool) {
	p := Property{Key: s.mapper.Map(t.P.Value), Flags: lv2.StateIsPOD | lv2.StateIsPortable}
	le := binary.LittleEndian
	o := t.O

	switch o.Kind {
	case triple.KindIRI:
		p.Type = s.mapper.Map(lv2.AtomURID)
		p.Value = le.AppendUint32(nil, uint32(s.mapper.Map(o.Value)))
		return p, true

	case triple.KindBlank:
		var typ, value string
		for _, bt := range describe(o) {
			switch bt.P.Value {
			case lv2.RDFType:
				typ = bt.O.Value
			case lv2.RDFValue:
				value = bt.O.Value
			}
		}
		if typ == "" {
			return p, false
		}
		data, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			return p, false
		}
		p.Type = s.mapper.Map(typ)
		p.Value = data
		return p, true

	case triple.KindLiteral:
		lex := strings.TrimSpace(o.Value)
		switch o.Datatype {
		case lv2.StatePath:
			p.Type = s.statePath
			p.Value = append([]byte(o.Value), 0)
		case lv2.XSDInt, lv2.XSDInteger:
			i, err := strconv.ParseInt(lex, 10, 64)
			if err != nil {
				return p, false
			}
			if i >= math.MinInt32 && i <= math.MaxInt32 {
				p.Type = s.mapper.Map(lv2.AtomInt)
				p.Value = le.AppendUint32(nil, uint32(int32(i)))
			} else {
				p.Type = s.mapper.Map(lv2.AtomLong)
				p.Value = le.AppendUint64(nil, uint64(i))
			}
		case lv2.XSDLong:
			i, err := strconv.ParseInt(lex, 10, 64)
			if err != nil {
				return p, false
			}
			p.Type = s.mapper.Map(lv2.AtomLong)
			p.Value = le.AppendUint64(nil, uint64(i))
		case lv2.XSDFloat:
			f, err := strconv.ParseFloat(lex, 32)
			if err != nil {
				return p, false
			}
			p.Type = s.mapper.Map(lv2.AtomFloat)
			p.Value = le.AppendUint32(nil, math.Float32bits(float32(f)))
		case lv2.XSDDouble, lv2.XSDDecimal:
			f, err := strconv.ParseFloat(lex, 64)
			if err != nil {
				return p, false
			}
			p.Type = s.mapper.Map(lv2.AtomDouble)
			p.Value = le.AppendUint64(nil, math.Float64bits(f))
		case lv2.XSDBoolean:
			b, err := strconv.ParseBool(lex)
			if err != nil {
				return p, false
			}
			var word uint32
			if b {
				word = 1
			}
			p.Type = s.mapper.Map(lv2.AtomBool)
			p.Value = le.AppendUint32(nil, word)
		default:
			p.Type = s.mapper.Map(lv2.AtomString)
			p.Value = append([]byte(o.Value), 0)
		}
		return p, true
	}
	return p, false
}
