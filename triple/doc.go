// Package triple is the boundary to the statement parser. It defines a small
// term model, a Parser interface with a Turtle implementation, and a Turtle
// Writer used for state files.
//
// Blank node labels are returned as written in the document; callers that
// merge several documents must scope them per document.
package triple
