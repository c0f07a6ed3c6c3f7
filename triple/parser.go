package triple

import (
	"bytes"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/knakk/rdf"
)

// Parser turns one document into statements. Relative IRIs resolve against
// base. A failure affects only that document.
type Parser interface {
	Parse(r io.Reader, base string) ([]Triple, error)
}

// TurtleParser parses Turtle documents.
type TurtleParser struct{}

// Parse decodes a whole Turtle document.
func (TurtleParser) Parse(r io.Reader, base string) ([]Triple, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	// The decoder joins relative IRIs to a base by concatenation, so it gets
	// none and references are resolved here.
	dec := rdf.NewTripleDecoder(bytes.NewReader(normalize(src)), rdf.Turtle)

	var out []Triple
	for {
		tr, err := dec.Decode()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, Triple{
			S: fromRDF(tr.Subj, baseURL),
			P: fromRDF(tr.Pred, baseURL),
			O: fromRDF(tr.Obj, baseURL),
		})
	}
}

// ParseFile parses the file at path with its file URI as base.
func ParseFile(p Parser, path string) ([]Triple, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return p.Parse(f, FileURI(abs))
}

func fromRDF(t rdf.Term, base *url.URL) Term {
	switch v := t.(type) {
	case rdf.IRI:
		return IRI(resolve(base, v.String()))
	case rdf.Blank:
		return Blank(v.String())
	case rdf.Literal:
		if lang := v.Lang(); lang != "" {
			return LangLiteral(v.String(), lang)
		}
		return Literal(v.String(), v.DataType.String())
	default:
		return Term{}
	}
}

// normalize rewrites layout the decoder rejects. Outside literals, IRIs
// and comments, tabs and carriage returns become spaces and every newline
// is preceded by a space, so a number may end a line.
func normalize(src []byte) []byte {
	out := make([]byte, 0, len(src)+len(src)/32+1)
	for i := 0; i < len(src); {
		switch c := src[i]; c {
		case '<':
			end := bytes.IndexByte(src[i:], '>')
			if end < 0 {
				return append(out, src[i:]...)
			}
			out = append(out, src[i:i+end+1]...)
			i += end + 1
		case '"', '\'':
			end := literalEnd(src, i)
			out = append(out, src[i:end]...)
			i = end
		case '#':
			end := bytes.IndexByte(src[i:], '\n')
			if end < 0 {
				return append(out, src[i:]...)
			}
			out = append(out, bytes.TrimRight(src[i:i+end], "\r")...)
			i += end
		case '\t', '\r':
			out = append(out, ' ')
			i++
		case '\n':
			out = append(out, ' ', '\n')
			i++
		default:
			out = append(out, c)
			i++
		}
	}
	return out
}

// literalEnd returns the offset just past the string literal starting at
// src[start]. An unterminated short literal ends at the newline, leaving
// the error to the decoder.
func literalEnd(src []byte, start int) int {
	q := src[start]
	long := start+2 < len(src) && src[start+1] == q && src[start+2] == q
	if !long && start+1 < len(src) && src[start+1] == q {
		return start + 2
	}
	i := start + 1
	if long {
		i = start + 3
	}
	for i < len(src) {
		switch c := src[i]; {
		case c == '\\':
			i += 2
		case long && c == q && i+2 < len(src) && src[i+1] == q && src[i+2] == q:
			for i+3 < len(src) && src[i+3] == q {
				i++
			}
			return i + 3
		case !long && c == q:
			return i + 1
		case !long && c == '\n':
			return i
		default:
			i++
		}
	}
	return len(src)
}

// resolve makes iri absolute against base when it has no scheme.
func resolve(base *url.URL, iri string) string {
	if base == nil || *base == (url.URL{}) {
		return iri
	}
	ref, err := url.Parse(iri)
	if err != nil || ref.IsAbs() {
		return iri
	}
	return base.ResolveReference(ref).String()
}

// FileURI returns the file:// URI for an absolute path. Directories should
// be passed with a trailing separator.
func FileURI(path string) string {
	slash := filepath.ToSlash(path)
	if !strings.HasPrefix(slash, "/") {
		slash = "/" + slash
	}
	u := url.URL{Scheme: "file", Path: slash}
	return u.String()
}

// FilePath returns the local path of a file:// URI.
func FilePath(uri string) (string, bool) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		return "", false
	}
	p := u.Path
	if len(p) >= 3 && p[0] == '/' && p[2] == ':' {
		p = p[1:]
	}
	return filepath.FromSlash(p), true
}
