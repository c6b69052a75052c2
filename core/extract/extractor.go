// Package extract converts decoded DXF entities into spatial graphs ready
// for annotation, embedding and training.
package extract

import (
	"errors"
	"fmt"
	"math"

	"github.com/floorgraph/floorgraph/dxf"
	"github.com/floorgraph/floorgraph/model"
)

// ErrEmptyDrawing is returned when a drawing contains no usable strokes.
var ErrEmptyDrawing = errors.New("extract: drawing contains no strokes")

// Extractor converts drawing entities into a graph. Strokes are resampled
// so consecutive nodes are at most MaxSegment apart and endpoints within
// MergeRadius collapse into a single node.
type Extractor struct {
	config model.ExtractConfig
}

// New creates an Extractor. Zero config fields fall back to defaults.
func New(config model.ExtractConfig) *Extractor {
	defaults := model.DefaultExtractConfig()
	if config.MaxSegment <= 0 {
		config.MaxSegment = defaults.MaxSegment
	}
	if config.MergeRadius <= 0 {
		config.MergeRadius = defaults.MergeRadius
	}
	if config.ArcStepAngle <= 0 {
		config.ArcStepAngle = defaults.ArcStepAngle
	}
	return &Extractor{config: config}
}

// Extract builds the graph for one drawing. Node ordering is deterministic:
// entities in file order, vertices in stroke order.
func (e *Extractor) Extract(name string, entities []dxf.Entity) (*model.Graph, error) {
	if len(entities) == 0 {
		return nil, ErrEmptyDrawing
	}

	g := model.NewGraph(name)
	merger := newNodeMerger(g, e.config.MergeRadius)

	for _, entity := range entities {
		for _, polyline := range entity.Flatten(e.config.ArcStepAngle) {
			if err := e.addPolyline(g, merger, polyline); err != nil {
				return nil, err
			}
		}
	}

	if len(g.Nodes) == 0 {
		return nil, ErrEmptyDrawing
	}

	ComputeFeatures(g)
	return g, nil
}

// addPolyline densifies each segment and chains the resulting nodes.
func (e *Extractor) addPolyline(g *model.Graph, merger *nodeMerger, polyline []dxf.Point) error {
	if len(polyline) < 2 {
		return nil
	}

	previous := merger.node(polyline[0].X, polyline[0].Y)
	for i := 1; i < len(polyline); i++ {
		a, b := polyline[i-1], polyline[i]
		length := math.Hypot(b.X-a.X, b.Y-a.Y)
		if length == 0 {
			continue
		}

		segments := int(math.Ceil(length / e.config.MaxSegment))
		for s := 1; s <= segments; s++ {
			f := float64(s) / float64(segments)
			current := merger.node(a.X+(b.X-a.X)*f, a.Y+(b.Y-a.Y)*f)
			if current == previous {
				continue
			}
			if err := g.AddEdge(previous, current); err != nil {
				return fmt.Errorf("connect stroke nodes: %w", err)
			}
			previous = current
		}
	}
	return nil
}

// nodeMerger deduplicates node positions on a quantized grid so stroke
// endpoints that coincide within the merge radius share one node.
type nodeMerger struct {
	graph  *model.Graph
	radius float64
	cells  map[[2]int64][]int
}

func newNodeMerger(g *model.Graph, radius float64) *nodeMerger {
	return &nodeMerger{graph: g, radius: radius, cells: make(map[[2]int64][]int)}
}

// node returns the ID of an existing node within the merge radius of
// (x, y), creating a new node when there is none.
func (m *nodeMerger) node(x, y float64) int {
	cx := int64(math.Floor(x / m.radius))
	cy := int64(math.Floor(y / m.radius))

	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for _, id := range m.cells[[2]int64{cx + dx, cy + dy}] {
				n := m.graph.Nodes[id]
				if math.Hypot(n.X-x, n.Y-y) <= m.radius {
					return id
				}
			}
		}
	}

	id := m.graph.AddNode(x, y)
	key := [2]int64{cx, cy}
	m.cells[key] = append(m.cells[key], id)
	return id
}
