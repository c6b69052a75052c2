package dxf

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// ErrNoEntities is returned when a file contains no ENTITIES section.
var ErrNoEntities = errors.New("dxf: no ENTITIES section")

// Point is a 2-D drawing coordinate. Z coordinates are dropped, floor
// plans are flat.
type Point struct {
	X float64
	Y float64
}

// Entity is a decoded drawing entity. Flatten converts it into one or more
// polylines; stepAngle (degrees) controls how finely arcs are sampled.
type Entity interface {
	Flatten(stepAngle float64) [][]Point
}

// Line is a straight segment.
type Line struct {
	Start Point
	End   Point
}

// Flatten returns the segment as a two-point polyline.
func (l Line) Flatten(stepAngle float64) [][]Point {
	return [][]Point{{l.Start, l.End}}
}

// Polyline is an open or closed chain of vertices. Both LWPOLYLINE and the
// legacy POLYLINE/VERTEX/SEQEND form decode into it.
type Polyline struct {
	Vertices []Point
	Closed   bool
}

// Flatten returns the vertex chain, with the first vertex repeated at the
// end when the polyline is closed.
func (p Polyline) Flatten(stepAngle float64) [][]Point {
	if len(p.Vertices) < 2 {
		return nil
	}
	points := append([]Point(nil), p.Vertices...)
	if p.Closed {
		points = append(points, p.Vertices[0])
	}
	return [][]Point{points}
}

// Arc is a circular arc, angles in degrees counter-clockwise from east.
type Arc struct {
	Center     Point
	Radius     float64
	StartAngle float64
	EndAngle   float64
}

// Flatten samples the arc every stepAngle degrees, always including both
// endpoints.
func (a Arc) Flatten(stepAngle float64) [][]Point {
	if stepAngle <= 0 {
		stepAngle = 15
	}
	sweep := a.EndAngle - a.StartAngle
	for sweep <= 0 {
		sweep += 360
	}
	steps := int(math.Ceil(sweep / stepAngle))
	if steps < 1 {
		steps = 1
	}

	points := make([]Point, 0, steps+1)
	for i := 0; i <= steps; i++ {
		angle := (a.StartAngle + sweep*float64(i)/float64(steps)) * math.Pi / 180
		points = append(points, Point{
			X: a.Center.X + a.Radius*math.Cos(angle),
			Y: a.Center.Y + a.Radius*math.Sin(angle),
		})
	}
	return [][]Point{points}
}

// Circle is a full circle.
type Circle struct {
	Center Point
	Radius float64
}

// Flatten samples the circle as a closed polyline.
func (c Circle) Flatten(stepAngle float64) [][]Point {
	arc := Arc{Center: c.Center, Radius: c.Radius, StartAngle: 0, EndAngle: 360}
	return arc.Flatten(stepAngle)
}

// ParseFile parses the ENTITIES section of the named ASCII DXF file.
func ParseFile(path string) ([]Entity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dxf: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse parses the ENTITIES section of an ASCII DXF stream.
func Parse(r io.Reader) ([]Entity, error) {
	reader := NewTagReader(r)

	if err := skipToEntities(reader); err != nil {
		return nil, err
	}

	var entities []Entity
	for {
		tag, err := reader.Next()
		if err == io.EOF {
			// Missing ENDSEC/EOF trailer, accept what we have.
			return entities, nil
		}
		if err != nil {
			return nil, err
		}
		if tag.Code != 0 {
			// Stray tag between entities, ignore.
			continue
		}

		switch tag.Value {
		case "ENDSEC", "EOF":
			return entities, nil
		case "LINE":
			entity, err := decodeLine(reader)
			if err != nil {
				return nil, err
			}
			entities = append(entities, entity)
		case "LWPOLYLINE":
			entity, err := decodeLWPolyline(reader)
			if err != nil {
				return nil, err
			}
			entities = append(entities, entity)
		case "POLYLINE":
			entity, err := decodePolyline(reader)
			if err != nil {
				return nil, err
			}
			entities = append(entities, entity)
		case "ARC":
			entity, err := decodeArc(reader)
			if err != nil {
				return nil, err
			}
			entities = append(entities, entity)
		case "CIRCLE":
			entity, err := decodeCircle(reader)
			if err != nil {
				return nil, err
			}
			entities = append(entities, entity)
		default:
			// Unknown entity type, skip its tags.
			if err := skipEntity(reader); err != nil {
				return nil, err
			}
		}
	}
}

// skipToEntities advances the reader past "0/SECTION 2/ENTITIES".
func skipToEntities(reader *TagReader) error {
	for {
		tag, err := reader.Next()
		if err == io.EOF {
			return ErrNoEntities
		}
		if err != nil {
			return err
		}
		if tag.Code != 0 || tag.Value != "SECTION" {
			continue
		}

		name, err := reader.Next()
		if err == io.EOF {
			return ErrNoEntities
		}
		if err != nil {
			return err
		}
		if name.Code == 2 && name.Value == "ENTITIES" {
			return nil
		}
		reader.Unread(name)
	}
}

// skipEntity consumes tags until the next code-0 tag, which is pushed back.
func skipEntity(reader *TagReader) error {
	for {
		tag, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if tag.Code == 0 {
			reader.Unread(tag)
			return nil
		}
	}
}

// decodeTags collects all tags of the current entity up to the next
// code-0 tag, which is pushed back.
func decodeTags(reader *TagReader) ([]Tag, error) {
	var tags []Tag
	for {
		tag, err := reader.Next()
		if err == io.EOF {
			return tags, nil
		}
		if err != nil {
			return nil, err
		}
		if tag.Code == 0 {
			reader.Unread(tag)
			return tags, nil
		}
		tags = append(tags, tag)
	}
}

func decodeLine(reader *TagReader) (Line, error) {
	tags, err := decodeTags(reader)
	if err != nil {
		return Line{}, err
	}

	var line Line
	for _, tag := range tags {
		var v float64
		switch tag.Code {
		case 10, 20, 11, 21:
			if v, err = tag.Float(); err != nil {
				return Line{}, err
			}
		default:
			continue
		}
		switch tag.Code {
		case 10:
			line.Start.X = v
		case 20:
			line.Start.Y = v
		case 11:
			line.End.X = v
		case 21:
			line.End.Y = v
		}
	}
	return line, nil
}

func decodeLWPolyline(reader *TagReader) (Polyline, error) {
	tags, err := decodeTags(reader)
	if err != nil {
		return Polyline{}, err
	}

	var poly Polyline
	for _, tag := range tags {
		switch tag.Code {
		case 10:
			v, err := tag.Float()
			if err != nil {
				return Polyline{}, err
			}
			poly.Vertices = append(poly.Vertices, Point{X: v})
		case 20:
			v, err := tag.Float()
			if err != nil {
				return Polyline{}, err
			}
			if len(poly.Vertices) == 0 {
				return Polyline{}, fmt.Errorf("line %d: LWPOLYLINE y coordinate before x", tag.Line)
			}
			poly.Vertices[len(poly.Vertices)-1].Y = v
		case 70:
			flags, err := tag.Int()
			if err != nil {
				return Polyline{}, err
			}
			poly.Closed = flags&1 != 0
		}
	}
	if len(poly.Vertices) < 2 {
		return Polyline{}, fmt.Errorf("LWPOLYLINE with %d vertices", len(poly.Vertices))
	}
	return poly, nil
}

// decodePolyline decodes the legacy POLYLINE/VERTEX/SEQEND form.
func decodePolyline(reader *TagReader) (Polyline, error) {
	// Header tags of the POLYLINE itself.
	tags, err := decodeTags(reader)
	if err != nil {
		return Polyline{}, err
	}

	var poly Polyline
	for _, tag := range tags {
		if tag.Code == 70 {
			flags, err := tag.Int()
			if err != nil {
				return Polyline{}, err
			}
			poly.Closed = flags&1 != 0
		}
	}

	for {
		tag, err := reader.Next()
		if err == io.EOF {
			return Polyline{}, fmt.Errorf("POLYLINE without SEQEND, truncated file")
		}
		if err != nil {
			return Polyline{}, err
		}
		if tag.Code != 0 {
			continue
		}
		if tag.Value == "SEQEND" {
			if err := skipEntity(reader); err != nil {
				return Polyline{}, err
			}
			break
		}
		if tag.Value != "VERTEX" {
			return Polyline{}, fmt.Errorf("line %d: unexpected %s inside POLYLINE", tag.Line, tag.Value)
		}

		vertexTags, err := decodeTags(reader)
		if err != nil {
			return Polyline{}, err
		}
		var p Point
		for _, vt := range vertexTags {
			switch vt.Code {
			case 10:
				if p.X, err = vt.Float(); err != nil {
					return Polyline{}, err
				}
			case 20:
				if p.Y, err = vt.Float(); err != nil {
					return Polyline{}, err
				}
			}
		}
		poly.Vertices = append(poly.Vertices, p)
	}

	if len(poly.Vertices) < 2 {
		return Polyline{}, fmt.Errorf("POLYLINE with %d vertices", len(poly.Vertices))
	}
	return poly, nil
}

func decodeArc(reader *TagReader) (Arc, error) {
	tags, err := decodeTags(reader)
	if err != nil {
		return Arc{}, err
	}

	var arc Arc
	for _, tag := range tags {
		var v float64
		switch tag.Code {
		case 10, 20, 40, 50, 51:
			if v, err = tag.Float(); err != nil {
				return Arc{}, err
			}
		default:
			continue
		}
		switch tag.Code {
		case 10:
			arc.Center.X = v
		case 20:
			arc.Center.Y = v
		case 40:
			arc.Radius = v
		case 50:
			arc.StartAngle = v
		case 51:
			arc.EndAngle = v
		}
	}
	if arc.Radius <= 0 {
		return Arc{}, fmt.Errorf("ARC with radius %v", arc.Radius)
	}
	return arc, nil
}

func decodeCircle(reader *TagReader) (Circle, error) {
	tags, err := decodeTags(reader)
	if err != nil {
		return Circle{}, err
	}

	var circle Circle
	for _, tag := range tags {
		var v float64
		switch tag.Code {
		case 10, 20, 40:
			if v, err = tag.Float(); err != nil {
				return Circle{}, err
			}
		default:
			continue
		}
		switch tag.Code {
		case 10:
			circle.Center.X = v
		case 20:
			circle.Center.Y = v
		case 40:
			circle.Radius = v
		}
	}
	if circle.Radius <= 0 {
		return Circle{}, fmt.Errorf("CIRCLE with radius %v", circle.Radius)
	}
	return circle, nil
}
