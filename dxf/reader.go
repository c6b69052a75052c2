// Package dxf reads ASCII DXF drawings. Only the ENTITIES section and the
// entity types relevant for floor plans (LINE, LWPOLYLINE, POLYLINE, ARC,
// CIRCLE) are decoded, everything else is skipped.
package dxf

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Tag is a single DXF group code / value pair.
type Tag struct {
	Code  int
	Value string
	Line  int // line number of the group code, 1-based
}

// Float parses the tag value as a float64.
func (t Tag) Float() (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(t.Value), 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: group %d: invalid float %q", t.Line, t.Code, t.Value)
	}
	return v, nil
}

// Int parses the tag value as an int.
func (t Tag) Int() (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(t.Value))
	if err != nil {
		return 0, fmt.Errorf("line %d: group %d: invalid integer %q", t.Line, t.Code, t.Value)
	}
	return v, nil
}

// TagReader reads group code / value pairs from an ASCII DXF stream.
type TagReader struct {
	scanner *bufio.Scanner
	line    int
	pushed  *Tag
}

// NewTagReader creates a TagReader over r.
func NewTagReader(r io.Reader) *TagReader {
	return &TagReader{scanner: bufio.NewScanner(r)}
}

// Next returns the next tag. io.EOF is returned at a clean end of input,
// any other error means the file is malformed.
func (r *TagReader) Next() (Tag, error) {
	if r.pushed != nil {
		tag := *r.pushed
		r.pushed = nil
		return tag, nil
	}

	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return Tag{}, fmt.Errorf("line %d: %w", r.line, err)
		}
		return Tag{}, io.EOF
	}
	r.line++
	codeLine := strings.TrimSpace(r.scanner.Text())
	codeLineNo := r.line

	code, err := strconv.Atoi(codeLine)
	if err != nil {
		return Tag{}, fmt.Errorf("line %d: invalid group code %q", codeLineNo, codeLine)
	}

	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return Tag{}, fmt.Errorf("line %d: %w", r.line, err)
		}
		return Tag{}, fmt.Errorf("line %d: group code %d has no value, truncated file", codeLineNo, code)
	}
	r.line++

	return Tag{Code: code, Value: strings.TrimSpace(r.scanner.Text()), Line: codeLineNo}, nil
}

// Unread pushes the tag back so the next call to Next returns it again.
// Only a single tag can be pushed back.
func (r *TagReader) Unread(tag Tag) {
	r.pushed = &tag
}
