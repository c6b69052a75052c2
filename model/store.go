package model

import (
	"time"

	"github.com/google/uuid"
)

// GraphRecord is the database row of a stored graph.
type GraphRecord struct {
	RID       uuid.UUID `json:"rid"`
	Name      string    `json:"name"`
	NodeCount int       `json:"node_count"`
	EdgeCount int       `json:"edge_count"`
	Metadata  Metadata  `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NodeRecord is the database row of a stored node. Embedding is nil when
// no embedding has been computed for the node.
type NodeRecord struct {
	GraphRID  uuid.UUID `json:"graph_rid"`
	NodeID    int       `json:"node_id"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Label     int       `json:"label"`
	Instance  int       `json:"instance"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// EdgeRecord is the database row of a stored edge.
type EdgeRecord struct {
	GraphRID uuid.UUID `json:"graph_rid"`
	Source   int       `json:"source"`
	Target   int       `json:"target"`
	Length   float64   `json:"length"`
}

// NodeSimilarity pairs a node with its embedding distance to a query
// vector.
type NodeSimilarity struct {
	Node     *NodeRecord `json:"node"`
	Distance float64     `json:"distance"`
}

// NewGraphRecord builds the graph row for an in-memory graph.
func NewGraphRecord(g *Graph) *GraphRecord {
	return &GraphRecord{
		Name:      g.Name,
		NodeCount: len(g.Nodes),
		EdgeCount: len(g.Edges),
		Metadata:  Metadata{},
	}
}

// NodeRecords builds the node rows of a graph. embeddings may be nil, or
// hold one vector per node ID.
func NodeRecords(g *Graph, graphRID uuid.UUID, embeddings [][]float64) []*NodeRecord {
	records := make([]*NodeRecord, len(g.Nodes))
	for i, node := range g.Nodes {
		record := &NodeRecord{
			GraphRID: graphRID,
			NodeID:   node.ID,
			X:        node.X,
			Y:        node.Y,
			Label:    node.Label,
			Instance: node.Instance,
		}
		if embeddings != nil {
			record.Embedding = make([]float32, len(embeddings[i]))
			for j, v := range embeddings[i] {
				record.Embedding[j] = float32(v)
			}
		}
		records[i] = record
	}
	return records
}

// EdgeRecords builds the edge rows of a graph.
func EdgeRecords(g *Graph, graphRID uuid.UUID) []*EdgeRecord {
	records := make([]*EdgeRecord, len(g.Edges))
	for i, edge := range g.Edges {
		records[i] = &EdgeRecord{
			GraphRID: graphRID,
			Source:   edge.Source,
			Target:   edge.Target,
			Length:   edge.Length,
		}
	}
	return records
}

// BuildGraph reassembles an in-memory graph from its stored rows. Node
// rows must be dense in NodeID.
func BuildGraph(record *GraphRecord, nodes []*NodeRecord, edges []*EdgeRecord) (*Graph, error) {
	g := NewGraph(record.Name)
	for _, node := range nodes {
		id := g.AddNode(node.X, node.Y)
		g.Nodes[id].Label = node.Label
		g.Nodes[id].Instance = node.Instance
	}
	for _, edge := range edges {
		if err := g.AddEdge(edge.Source, edge.Target); err != nil {
			return nil, err
		}
	}
	return g, nil
}
