// Package location defines source positions used throughout the ARO
// toolchain: tokens, AST nodes, and diagnostics all carry a *Location
// so that errors can be reported in terms the program author wrote,
// not in terms of an internal representation.
package location

import "fmt"

// Location records a position in ARO source code.
type Location struct {
	Text []byte `json:"-"`    // the source text surrounding the location, for error context
	File string `json:"file"` // the file the location is found in
	Row  int    `json:"row"`  // the line number, 1-indexed
	Col  int    `json:"col"`  // the column number, 1-indexed
}

// NewLocation returns a new Location object.
func NewLocation(text []byte, file string, row, col int) *Location {
	return &Location{Text: text, File: file, Row: row, Col: col}
}

// String returns a human-readable representation of the location,
// preferring "file:row" when a filename is known and falling back to
// "row:col" for anonymous/in-memory sources.
func (loc *Location) String() string {
	if loc == nil {
		return ""
	}
	if loc.File != "" {
		return fmt.Sprintf("%s:%d", loc.File, loc.Row)
	}
	return fmt.Sprintf("%d:%d", loc.Row, loc.Col)
}

// Equal returns true if this location has the same file/row/col as other.
func (loc *Location) Equal(other *Location) bool {
	if loc == nil || other == nil {
		return loc == other
	}
	return loc.File == other.File && loc.Row == other.Row && loc.Col == other.Col
}
