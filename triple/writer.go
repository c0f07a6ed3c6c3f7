package triple

import (
	"io"

	"github.com/knakk/rdf"
)

// Writer encodes statements as Turtle.
type Writer struct {
	enc *rdf.TripleEncoder
}

// NewWriter returns a Writer emitting Turtle to w. Close must be called to
// flush the last statement group.
func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: rdf.NewTripleEncoder(w, rdf.Turtle)}
}

// Write encodes one statement.
func (w *Writer) Write(t Triple) error {
	s, err := subject(t.S)
	if err != nil {
		return err
	}
	p, err := rdf.NewIRI(t.P.Value)
	if err != nil {
		return err
	}
	o, err := object(t.O)
	if err != nil {
		return err
	}
	return w.enc.Encode(rdf.Triple{Subj: s, Pred: p, Obj: o})
}

// WriteAll encodes statements in order.
func (w *Writer) WriteAll(ts []Triple) error {
	for _, t := range ts {
		if err := w.Write(t); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes buffered output.
func (w *Writer) Close() error {
	return w.enc.Close()
}

func subject(t Term) (rdf.Subject, error) {
	if t.Kind == KindBlank {
		return rdf.NewBlank(t.Value)
	}
	return rdf.NewIRI(t.Value)
}

func object(t Term) (rdf.Object, error) {
	switch t.Kind {
	case KindBlank:
		return rdf.NewBlank(t.Value)
	case KindLiteral:
		if t.Lang != "" {
			return rdf.NewLangLiteral(t.Value, t.Lang)
		}
		dt := t.Datatype
		if dt == "" {
			dt = xsdString
		}
		iri, err := rdf.NewIRI(dt)
		if err != nil {
			return nil, err
		}
		return rdf.NewTypedLiteral(t.Value, iri), nil
	default:
		return rdf.NewIRI(t.Value)
	}
}

const xsdString = "http://www.w3.org/2001/XMLSchema#string"
