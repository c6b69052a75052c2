package model

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
)

// Class labels for nodes. Unlabeled nodes carry ClassUnlabeled until an
// annotation or a prediction assigns them a class.
const (
	ClassUnlabeled = -1
	ClassOther     = 0
	ClassDoor      = 1
)

// NumClasses is the number of node classes the models distinguish.
const NumClasses = 2

// NoInstance marks nodes that belong to no door instance.
const NoInstance = -1

// Node is a single graph node extracted from a drawing stroke.
type Node struct {
	ID       int       `json:"id"`
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
	Features []float64 `json:"features,omitempty"`
	Label    int       `json:"label"`
	Instance int       `json:"instance"`
}

// Edge connects two nodes along a drawing stroke. Edges are undirected;
// Source < Target is maintained as a normal form.
type Edge struct {
	Source int     `json:"source"`
	Target int     `json:"target"`
	Length float64 `json:"length"`
}

// Graph is an undirected spatial graph extracted from one DXF drawing.
// Node IDs are dense, 0..len(Nodes)-1, and index into Nodes directly.
type Graph struct {
	Name  string `json:"name"`
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`

	adjacency [][]int
}

// NewGraph creates an empty graph with the given name.
func NewGraph(name string) *Graph {
	return &Graph{Name: name}
}

// AddNode appends a node and returns its ID.
func (g *Graph) AddNode(x, y float64) int {
	id := len(g.Nodes)
	g.Nodes = append(g.Nodes, Node{ID: id, X: x, Y: y, Label: ClassUnlabeled, Instance: NoInstance})
	g.adjacency = nil
	return id
}

// AddEdge connects two existing nodes. Self loops and unknown IDs are
// rejected, duplicate edges are ignored.
func (g *Graph) AddEdge(source, target int) error {
	if source == target {
		return fmt.Errorf("self loop on node %d", source)
	}
	if source < 0 || source >= len(g.Nodes) || target < 0 || target >= len(g.Nodes) {
		return fmt.Errorf("edge %d-%d references unknown node", source, target)
	}
	if source > target {
		source, target = target, source
	}
	for _, e := range g.Edges {
		if e.Source == source && e.Target == target {
			return nil
		}
	}
	a, b := g.Nodes[source], g.Nodes[target]
	g.Edges = append(g.Edges, Edge{
		Source: source,
		Target: target,
		Length: math.Hypot(a.X-b.X, a.Y-b.Y),
	})
	g.adjacency = nil
	return nil
}

// Neighbors returns the IDs of all nodes adjacent to id.
func (g *Graph) Neighbors(id int) []int {
	return g.Adjacency()[id]
}

// Adjacency returns the adjacency list of the graph, built lazily and
// cached until the graph is mutated.
func (g *Graph) Adjacency() [][]int {
	if g.adjacency == nil {
		adj := make([][]int, len(g.Nodes))
		for _, e := range g.Edges {
			adj[e.Source] = append(adj[e.Source], e.Target)
			adj[e.Target] = append(adj[e.Target], e.Source)
		}
		for _, n := range adj {
			sort.Ints(n)
		}
		g.adjacency = adj
	}
	return g.adjacency
}

// Degree returns the number of edges incident to id.
func (g *Graph) Degree(id int) int {
	return len(g.Adjacency()[id])
}

// Labels returns the label of every node in ID order.
func (g *Graph) Labels() []int {
	labels := make([]int, len(g.Nodes))
	for i, n := range g.Nodes {
		labels[i] = n.Label
	}
	return labels
}

// Positions returns the node positions as [x, y] pairs in ID order.
func (g *Graph) Positions() [][2]float64 {
	positions := make([][2]float64, len(g.Nodes))
	for i, n := range g.Nodes {
		positions[i] = [2]float64{n.X, n.Y}
	}
	return positions
}

// Centroid returns the mean node position.
func (g *Graph) Centroid() (x, y float64) {
	if len(g.Nodes) == 0 {
		return 0, 0
	}
	for _, n := range g.Nodes {
		x += n.X
		y += n.Y
	}
	return x / float64(len(g.Nodes)), y / float64(len(g.Nodes))
}

// BoundingBox returns the min and max corners of the node positions.
func (g *Graph) BoundingBox() (minX, minY, maxX, maxY float64) {
	if len(g.Nodes) == 0 {
		return 0, 0, 0, 0
	}
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, n := range g.Nodes {
		minX = math.Min(minX, n.X)
		minY = math.Min(minY, n.Y)
		maxX = math.Max(maxX, n.X)
		maxY = math.Max(maxY, n.Y)
	}
	return minX, minY, maxX, maxY
}

// ConnectedComponents returns the node IDs of every connected component,
// ordered by the smallest node ID in each component.
func (g *Graph) ConnectedComponents() [][]int {
	adj := g.Adjacency()
	visited := make([]bool, len(g.Nodes))
	var components [][]int

	for start := range g.Nodes {
		if visited[start] {
			continue
		}
		var component []int
		queue := []int{start}
		visited[start] = true
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			component = append(component, current)
			for _, next := range adj[current] {
				if !visited[next] {
					visited[next] = true
					queue = append(queue, next)
				}
			}
		}
		sort.Ints(component)
		components = append(components, component)
	}
	return components
}

// Subgraph returns the subgraph induced by the given node IDs. Node IDs in
// the result are renumbered densely; Mapping maps new IDs back to the IDs
// in the parent graph.
type SubgraphResult struct {
	Graph   *Graph
	Mapping []int
}

// InducedSubgraph builds the subgraph induced by keep.
func (g *Graph) InducedSubgraph(keep []int) *SubgraphResult {
	sorted := append([]int(nil), keep...)
	sort.Ints(sorted)

	oldToNew := make(map[int]int, len(sorted))
	sub := NewGraph(g.Name)
	for _, oldID := range sorted {
		newID := sub.AddNode(g.Nodes[oldID].X, g.Nodes[oldID].Y)
		sub.Nodes[newID].Features = g.Nodes[oldID].Features
		sub.Nodes[newID].Label = g.Nodes[oldID].Label
		sub.Nodes[newID].Instance = g.Nodes[oldID].Instance
		oldToNew[oldID] = newID
	}
	for _, e := range g.Edges {
		s, okS := oldToNew[e.Source]
		t, okT := oldToNew[e.Target]
		if okS && okT {
			// Ignore error: both endpoints exist and s != t.
			_ = sub.AddEdge(s, t)
		}
	}
	return &SubgraphResult{Graph: sub, Mapping: sorted}
}

// WriteFile serializes the graph as indented JSON.
func (g *Graph) WriteFile(path string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal graph %s: %w", g.Name, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write graph %s: %w", g.Name, err)
	}
	return nil
}

// ReadGraphFile deserializes a graph written by WriteFile.
func ReadGraphFile(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph: %w", err)
	}
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parse graph %s: %w", path, err)
	}
	for i, n := range g.Nodes {
		if n.ID != i {
			return nil, fmt.Errorf("graph %s: node at index %d has ID %d, IDs must be dense", path, i, n.ID)
		}
	}
	for _, e := range g.Edges {
		if e.Source < 0 || e.Source >= len(g.Nodes) || e.Target < 0 || e.Target >= len(g.Nodes) {
			return nil, fmt.Errorf("graph %s: edge %d-%d references unknown node", path, e.Source, e.Target)
		}
	}
	return &g, nil
}
