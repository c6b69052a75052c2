package model

import "fmt"

// Annotation is a labeled rectangle in drawing coordinates. Every node
// whose position falls inside the rectangle receives the annotation's label.
type Annotation struct {
	Name  string  `json:"name" yaml:"name"`
	MinX  float64 `json:"min_x" yaml:"min_x"`
	MinY  float64 `json:"min_y" yaml:"min_y"`
	MaxX  float64 `json:"max_x" yaml:"max_x"`
	MaxY  float64 `json:"max_y" yaml:"max_y"`
	Label int     `json:"label" yaml:"label"`
}

// Contains reports whether the point lies inside the rectangle (inclusive).
func (a Annotation) Contains(x, y float64) bool {
	return x >= a.MinX && x <= a.MaxX && y >= a.MinY && y <= a.MaxY
}

// Validate checks rectangle orientation and label range.
func (a Annotation) Validate() error {
	if a.MinX > a.MaxX || a.MinY > a.MaxY {
		return fmt.Errorf("annotation %q: min corner must not exceed max corner", a.Name)
	}
	if a.Label < 0 || a.Label >= NumClasses {
		return fmt.Errorf("annotation %q: label %d out of range [0, %d)", a.Name, a.Label, NumClasses)
	}
	return nil
}

// ApplyAnnotations labels every node of the graph: nodes inside at least one
// rectangle get that rectangle's label (later rectangles win), all remaining
// nodes get ClassOther. Returns the number of nodes per class.
func ApplyAnnotations(g *Graph, annotations []Annotation) (map[int]int, error) {
	for _, a := range annotations {
		if err := a.Validate(); err != nil {
			return nil, err
		}
	}

	counts := map[int]int{}
	for i := range g.Nodes {
		label := ClassOther
		for _, a := range annotations {
			if a.Contains(g.Nodes[i].X, g.Nodes[i].Y) {
				label = a.Label
			}
		}
		g.Nodes[i].Label = label
		counts[label]++
	}
	return counts, nil
}

// LabelCounts returns the number of nodes per label, including unlabeled.
func LabelCounts(g *Graph) map[int]int {
	counts := map[int]int{}
	for _, n := range g.Nodes {
		counts[n.Label]++
	}
	return counts
}
