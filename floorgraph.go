// Package floorgraph extracts spatial graphs from floor plan drawings and
// classifies their nodes. This file provides the optional postgres-backed
// graph store wiring all database handlers together.
package floorgraph

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/floorgraph/floorgraph/database"
	"github.com/floorgraph/floorgraph/helper"
	"github.com/floorgraph/floorgraph/model"
	loadSql "github.com/floorgraph/floorgraph/sql"
)

// FloorGraph provides a unified interface to all database handlers
type FloorGraph struct {
	DB     *helper.Database
	Graphs *database.GraphsDBHandler
	Nodes  *database.NodesDBHandler
	Edges  *database.EdgesDBHandler
	// Logging
	log *slog.Logger
}

// NewFloorGraph creates a new FloorGraph instance with all handlers
// initialized. embeddingDim fixes the pgvector column dimension of node
// embeddings.
func NewFloorGraph(config *helper.DatabaseConfiguration, embeddingDim int) (*FloorGraph, error) {
	// Logger
	opts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: slog.LevelInfo,
		},
	}
	logger := slog.New(helper.NewPrettyHandler(os.Stdout, opts))

	// Initialize database
	db := helper.NewDatabase("floorgraph", config, logger)
	err := loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	// Create all handlers in the correct order (graphs first, nodes and
	// edges reference them). force=false to not reload if functions
	// already exist.
	graphs, err := database.NewGraphsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create graphs handler", err)
	}

	nodes, err := database.NewNodesDBHandler(db, embeddingDim, false)
	if err != nil {
		return nil, helper.NewError("create nodes handler", err)
	}

	edges, err := database.NewEdgesDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create edges handler", err)
	}

	return &FloorGraph{
		DB:     db,
		Graphs: graphs,
		Nodes:  nodes,
		Edges:  edges,
		log:    logger,
	}, nil
}

// Close closes the database connection
func (f *FloorGraph) Close() error {
	if f.DB != nil && f.DB.Instance != nil {
		return f.DB.Instance.Close()
	}
	return nil
}

// SaveGraph stores a graph with its nodes and edges. An existing graph
// with the same name is replaced. embeddings may be nil, or hold one
// vector per node ID.
func (f *FloorGraph) SaveGraph(g *model.Graph, embeddings [][]float64) (*model.GraphRecord, error) {
	if g.Name == "" {
		return nil, helper.NewError("save graph", fmt.Errorf("graph has no name"))
	}
	if embeddings != nil && len(embeddings) != len(g.Nodes) {
		return nil, helper.NewError("save graph", fmt.Errorf("graph has %d nodes but %d embeddings", len(g.Nodes), len(embeddings)))
	}

	if existing, err := f.Graphs.SelectGraphByName(g.Name); err == nil {
		if err := f.Graphs.DeleteGraph(existing.RID); err != nil {
			return nil, helper.NewError("replace graph", err)
		}
		f.log.Info("Replaced stored graph", slog.String("name", g.Name))
	}

	record := model.NewGraphRecord(g)
	if err := f.Graphs.InsertGraph(record); err != nil {
		return nil, helper.NewError("insert graph", err)
	}

	for _, node := range model.NodeRecords(g, record.RID, embeddings) {
		if err := f.Nodes.InsertNode(node); err != nil {
			return nil, helper.NewError(fmt.Sprintf("insert node %d", node.NodeID), err)
		}
	}
	for _, edge := range model.EdgeRecords(g, record.RID) {
		if err := f.Edges.InsertEdge(edge); err != nil {
			return nil, helper.NewError(fmt.Sprintf("insert edge %d-%d", edge.Source, edge.Target), err)
		}
	}

	f.log.Info(
		"Saved graph",
		slog.String("name", g.Name),
		slog.Int("nodes", len(g.Nodes)),
		slog.Int("edges", len(g.Edges)),
	)
	return record, nil
}

// LoadGraph reassembles a stored graph by name.
func (f *FloorGraph) LoadGraph(name string) (*model.Graph, error) {
	record, err := f.Graphs.SelectGraphByName(name)
	if err != nil {
		return nil, helper.NewError("select graph", err)
	}

	nodes, err := f.Nodes.SelectNodesByGraph(record.RID)
	if err != nil {
		return nil, helper.NewError("select nodes", err)
	}
	edges, err := f.Edges.SelectEdgesByGraph(record.RID)
	if err != nil {
		return nil, helper.NewError("select edges", err)
	}

	g, err := model.BuildGraph(record, nodes, edges)
	if err != nil {
		return nil, helper.NewError("assemble graph", err)
	}
	return g, nil
}

// SaveEmbeddings replaces the stored embeddings of a graph's nodes.
func (f *FloorGraph) SaveEmbeddings(graphName string, embeddings [][]float64) error {
	record, err := f.Graphs.SelectGraphByName(graphName)
	if err != nil {
		return helper.NewError("select graph", err)
	}
	if len(embeddings) != record.NodeCount {
		return helper.NewError("save embeddings", fmt.Errorf("graph has %d nodes but %d embeddings", record.NodeCount, len(embeddings)))
	}

	for nodeID, embedding := range embeddings {
		vector := make([]float32, len(embedding))
		for i, v := range embedding {
			vector[i] = float32(v)
		}
		if err := f.Nodes.UpdateNodeEmbedding(record.RID, nodeID, vector); err != nil {
			return helper.NewError(fmt.Sprintf("update node %d", nodeID), err)
		}
	}
	return nil
}

// SaveNodeClasses writes the labels and instance IDs of a graph back to
// its stored nodes, typically after prediction.
func (f *FloorGraph) SaveNodeClasses(g *model.Graph) error {
	record, err := f.Graphs.SelectGraphByName(g.Name)
	if err != nil {
		return helper.NewError("select graph", err)
	}

	for _, node := range g.Nodes {
		if err := f.Nodes.UpdateNodeClass(record.RID, node.ID, node.Label, node.Instance); err != nil {
			return helper.NewError(fmt.Sprintf("update node %d", node.ID), err)
		}
	}
	return nil
}

// NearestNodes finds the stored nodes closest to an embedding. With an
// empty graph name the search spans all graphs.
func (f *FloorGraph) NearestNodes(graphName string, embedding []float64, limit int) ([]*model.NodeSimilarity, error) {
	var graphRID *uuid.UUID
	if graphName != "" {
		record, err := f.Graphs.SelectGraphByName(graphName)
		if err != nil {
			return nil, helper.NewError("select graph", err)
		}
		graphRID = &record.RID
	}

	query := make([]float32, len(embedding))
	for i, v := range embedding {
		query[i] = float32(v)
	}
	return f.Nodes.SelectNodesBySimilarity(graphRID, query, limit)
}
