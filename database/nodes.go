package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/floorgraph/floorgraph/helper"
	"github.com/floorgraph/floorgraph/model"
	loadSql "github.com/floorgraph/floorgraph/sql"
)

// NodesDBHandlerFunctions defines the interface for Nodes database operations.
type NodesDBHandlerFunctions interface {
	InsertNode(node *model.NodeRecord) error
	SelectNode(graphRID uuid.UUID, nodeID int) (*model.NodeRecord, error)
	SelectNodesByGraph(graphRID uuid.UUID) ([]*model.NodeRecord, error)
	SelectNodesByLabel(graphRID uuid.UUID, label int) ([]*model.NodeRecord, error)
	UpdateNodeEmbedding(graphRID uuid.UUID, nodeID int, embedding []float32) error
	UpdateNodeClass(graphRID uuid.UUID, nodeID int, label, instance int) error
	SelectNodesBySimilarity(graphRID *uuid.UUID, embedding []float32, limit int) ([]*model.NodeSimilarity, error)
	DeleteNodesByGraph(graphRID uuid.UUID) error
}

// NodesDBHandler handles node-related database operations
type NodesDBHandler struct {
	db *helper.Database
}

// NewNodesDBHandler creates a new nodes database handler. embeddingDim
// fixes the dimension of the pgvector column the first time the table is
// created. If force is true, it will reload the SQL functions even if
// they already exist.
func NewNodesDBHandler(db *helper.Database, embeddingDim int, force bool) (*NodesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}
	if embeddingDim <= 0 {
		return nil, helper.NewError("embedding dimension validation", fmt.Errorf("embedding dimension must be positive, got %v", embeddingDim))
	}

	nodesDbHandler := &NodesDBHandler{
		db: db,
	}

	err := loadSql.LoadNodesSql(nodesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load nodes sql", err)
	}

	err = nodesDbHandler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized NodesDBHandler")

	return nodesDbHandler, nil
}

// CreateTable creates the 'nodes' table in the database.
// If the table already exists, it does not create it again.
// It also creates the label and HNSW embedding indexes.
func (h *NodesDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_nodes($1);`, embeddingDim)
	if err != nil {
		log.Panicf("error initializing nodes table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table nodes")

	return nil
}

// nullVector scans a nullable pgvector column.
type nullVector struct {
	Vector pgvector.Vector
	Valid  bool
}

func (v *nullVector) Scan(src any) error {
	if src == nil {
		v.Valid = false
		return nil
	}
	v.Valid = true
	return v.Vector.Scan(src)
}

// embeddingValue converts an optional embedding to its database value.
func embeddingValue(embedding []float32) any {
	if embedding == nil {
		return nil
	}
	return pgvector.NewVector(embedding)
}

// scanNode reads one node row into a record.
func scanNode(row interface{ Scan(...any) error }) (*model.NodeRecord, error) {
	node := &model.NodeRecord{}
	var embedding nullVector

	err := row.Scan(
		&node.GraphRID,
		&node.NodeID,
		&node.X,
		&node.Y,
		&node.Label,
		&node.Instance,
		&embedding,
	)
	if err != nil {
		return nil, err
	}

	if embedding.Valid {
		node.Embedding = embedding.Vector.Slice()
	}
	return node, nil
}

// InsertNode inserts a new node
func (h *NodesDBHandler) InsertNode(node *model.NodeRecord) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_node($1, $2, $3, $4, $5, $6, $7)`,
		node.GraphRID,
		node.NodeID,
		node.X,
		node.Y,
		node.Label,
		node.Instance,
		embeddingValue(node.Embedding),
	)

	inserted, err := scanNode(row)
	if err != nil {
		return helper.NewError("scan", err)
	}

	*node = *inserted
	return nil
}

// SelectNode retrieves a node by graph and node ID
func (h *NodesDBHandler) SelectNode(graphRID uuid.UUID, nodeID int) (*model.NodeRecord, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_node($1, $2)`,
		graphRID,
		nodeID,
	)

	node, err := scanNode(row)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return node, nil
}

// SelectNodesByGraph retrieves all nodes of a graph ordered by node ID
func (h *NodesDBHandler) SelectNodesByGraph(graphRID uuid.UUID) ([]*model.NodeRecord, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_nodes_by_graph($1)`,
		graphRID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var nodes []*model.NodeRecord
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		nodes = append(nodes, node)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return nodes, nil
}

// SelectNodesByLabel retrieves the nodes of a graph carrying a label
func (h *NodesDBHandler) SelectNodesByLabel(graphRID uuid.UUID, label int) ([]*model.NodeRecord, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_nodes_by_label($1, $2)`,
		graphRID,
		label,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var nodes []*model.NodeRecord
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		nodes = append(nodes, node)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return nodes, nil
}

// UpdateNodeEmbedding replaces the embedding of a node
func (h *NodesDBHandler) UpdateNodeEmbedding(graphRID uuid.UUID, nodeID int, embedding []float32) error {
	_, err := h.db.Instance.Exec(
		`SELECT * FROM update_node_embedding($1, $2, $3)`,
		graphRID,
		nodeID,
		embeddingValue(embedding),
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// UpdateNodeClass updates the label and instance of a node
func (h *NodesDBHandler) UpdateNodeClass(graphRID uuid.UUID, nodeID int, label, instance int) error {
	_, err := h.db.Instance.Exec(
		`SELECT * FROM update_node_class($1, $2, $3, $4)`,
		graphRID,
		nodeID,
		label,
		instance,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// SelectNodesBySimilarity retrieves the nodes closest to an embedding by
// L2 distance. With a nil graphRID the search spans all graphs.
func (h *NodesDBHandler) SelectNodesBySimilarity(graphRID *uuid.UUID, embedding []float32, limit int) ([]*model.NodeSimilarity, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_nodes_by_similarity($1, $2, $3)`,
		graphRID,
		pgvector.NewVector(embedding),
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var results []*model.NodeSimilarity
	for rows.Next() {
		node := &model.NodeRecord{}
		var nodeEmbedding nullVector
		var distance float64

		err := rows.Scan(
			&node.GraphRID,
			&node.NodeID,
			&node.X,
			&node.Y,
			&node.Label,
			&node.Instance,
			&nodeEmbedding,
			&distance,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		if nodeEmbedding.Valid {
			node.Embedding = nodeEmbedding.Vector.Slice()
		}
		results = append(results, &model.NodeSimilarity{Node: node, Distance: distance})
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return results, nil
}

// DeleteNodesByGraph deletes all nodes of a graph
func (h *NodesDBHandler) DeleteNodesByGraph(graphRID uuid.UUID) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_nodes_by_graph($1)`,
		graphRID,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}
