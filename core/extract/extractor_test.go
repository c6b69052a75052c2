package extract

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floorgraph/floorgraph/dxf"
	"github.com/floorgraph/floorgraph/model"
)

func TestExtract(t *testing.T) {
	t.Run("Long line is densified", func(t *testing.T) {
		extractor := New(model.ExtractConfig{MaxSegment: 100})
		entities := []dxf.Entity{
			dxf.Line{Start: dxf.Point{X: 0, Y: 0}, End: dxf.Point{X: 350, Y: 0}},
		}

		g, err := extractor.Extract("plan", entities)
		require.NoError(t, err)

		// 350 units at <=100 per segment: endpoints plus 3 interior nodes.
		assert.Len(t, g.Nodes, 5)
		assert.Len(t, g.Edges, 4)
		for _, e := range g.Edges {
			assert.LessOrEqual(t, e.Length, 100.0+1e-9)
		}
	})

	t.Run("Short line keeps only its endpoints", func(t *testing.T) {
		extractor := New(model.ExtractConfig{MaxSegment: 100})
		entities := []dxf.Entity{
			dxf.Line{Start: dxf.Point{X: 0, Y: 0}, End: dxf.Point{X: 10, Y: 0}},
		}

		g, err := extractor.Extract("plan", entities)
		require.NoError(t, err)
		assert.Len(t, g.Nodes, 2)
		assert.Len(t, g.Edges, 1)
	})

	t.Run("Coincident endpoints merge into one node", func(t *testing.T) {
		extractor := New(model.ExtractConfig{MaxSegment: 100, MergeRadius: 1e-3})
		entities := []dxf.Entity{
			dxf.Line{Start: dxf.Point{X: 0, Y: 0}, End: dxf.Point{X: 50, Y: 0}},
			dxf.Line{Start: dxf.Point{X: 50, Y: 0}, End: dxf.Point{X: 50, Y: 50}},
		}

		g, err := extractor.Extract("plan", entities)
		require.NoError(t, err)

		assert.Len(t, g.Nodes, 3)
		assert.Len(t, g.Edges, 2)

		corner := -1
		for _, n := range g.Nodes {
			if n.X == 50 && n.Y == 0 {
				corner = n.ID
			}
		}
		require.GreaterOrEqual(t, corner, 0)
		assert.Equal(t, 2, g.Degree(corner))
	})

	t.Run("Closed polyline forms a cycle", func(t *testing.T) {
		extractor := New(model.ExtractConfig{MaxSegment: 100})
		poly := dxf.Polyline{
			Vertices: []dxf.Point{{X: 0, Y: 0}, {X: 50, Y: 0}, {X: 50, Y: 50}, {X: 0, Y: 50}},
			Closed:   true,
		}

		g, err := extractor.Extract("plan", []dxf.Entity{poly})
		require.NoError(t, err)

		assert.Len(t, g.Nodes, 4)
		assert.Len(t, g.Edges, 4)
		for _, n := range g.Nodes {
			assert.Equal(t, 2, g.Degree(n.ID))
		}
	})

	t.Run("Extraction is deterministic", func(t *testing.T) {
		extractor := New(model.ExtractConfig{})
		entities := []dxf.Entity{
			dxf.Line{Start: dxf.Point{X: 0, Y: 0}, End: dxf.Point{X: 350, Y: 120}},
			dxf.Circle{Center: dxf.Point{X: 10, Y: 10}, Radius: 40},
		}

		first, err := extractor.Extract("plan", entities)
		require.NoError(t, err)
		second, err := extractor.Extract("plan", entities)
		require.NoError(t, err)

		assert.Equal(t, first.Nodes, second.Nodes)
		assert.Equal(t, first.Edges, second.Edges)
	})

	t.Run("Empty drawing", func(t *testing.T) {
		extractor := New(model.ExtractConfig{})
		_, err := extractor.Extract("plan", nil)
		assert.ErrorIs(t, err, ErrEmptyDrawing)
	})
}

func TestComputeFeatures(t *testing.T) {
	t.Run("Every node gets a standardized feature vector", func(t *testing.T) {
		extractor := New(model.ExtractConfig{MaxSegment: 100})
		entities := []dxf.Entity{
			dxf.Line{Start: dxf.Point{X: 0, Y: 0}, End: dxf.Point{X: 300, Y: 0}},
			dxf.Line{Start: dxf.Point{X: 300, Y: 0}, End: dxf.Point{X: 300, Y: 200}},
		}

		g, err := extractor.Extract("plan", entities)
		require.NoError(t, err)

		for _, n := range g.Nodes {
			require.Len(t, n.Features, NumFeatures)
		}

		// Standardized columns sum to ~0.
		for c := 0; c < NumFeatures; c++ {
			var sum float64
			for _, n := range g.Nodes {
				sum += n.Features[c]
			}
			assert.InDelta(t, 0, sum, 1e-9)
		}
	})

	t.Run("Largest angular gap distinguishes corners from straights", func(t *testing.T) {
		g := model.NewGraph("corner")
		g.AddNode(0, 0)
		g.AddNode(1, 0)
		g.AddNode(1, 1)
		require.NoError(t, g.AddEdge(0, 1))
		require.NoError(t, g.AddEdge(1, 2))

		// Corner node 1: neighbors west and north, gap 3*pi/2.
		gap := largestAngularGap(g, 1, g.Neighbors(1))
		assert.InDelta(t, 3*math.Pi/2, gap, 1e-9)

		// Leaf node 0: full circle.
		assert.InDelta(t, 2*math.Pi, largestAngularGap(g, 0, g.Neighbors(0)), 1e-9)
	})
}
