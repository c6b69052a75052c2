package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/floorgraph/floorgraph/helper"
	"github.com/floorgraph/floorgraph/model"
	loadSql "github.com/floorgraph/floorgraph/sql"
)

// EdgesDBHandlerFunctions defines the interface for Edges database operations.
type EdgesDBHandlerFunctions interface {
	InsertEdge(edge *model.EdgeRecord) error
	SelectEdgesByGraph(graphRID uuid.UUID) ([]*model.EdgeRecord, error)
	DeleteEdgesByGraph(graphRID uuid.UUID) error
}

// EdgesDBHandler handles edge-related database operations
type EdgesDBHandler struct {
	db *helper.Database
}

// NewEdgesDBHandler creates a new edges database handler.
// It initializes the database connection and loads edge-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEdgesDBHandler(db *helper.Database, force bool) (*EdgesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	edgesDbHandler := &EdgesDBHandler{
		db: db,
	}

	err := loadSql.LoadEdgesSql(edgesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load edges sql", err)
	}

	err = edgesDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EdgesDBHandler")

	return edgesDbHandler, nil
}

// CreateTable creates the 'edges' table in the database.
// If the table already exists, it does not create it again.
func (h *EdgesDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_edges();`)
	if err != nil {
		log.Panicf("error initializing edges table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table edges")

	return nil
}

// InsertEdge inserts a new edge
func (h *EdgesDBHandler) InsertEdge(edge *model.EdgeRecord) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_edge($1, $2, $3, $4)`,
		edge.GraphRID,
		edge.Source,
		edge.Target,
		edge.Length,
	)

	err := row.Scan(
		&edge.GraphRID,
		&edge.Source,
		&edge.Target,
		&edge.Length,
	)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectEdgesByGraph retrieves all edges of a graph ordered by endpoints
func (h *EdgesDBHandler) SelectEdgesByGraph(graphRID uuid.UUID) ([]*model.EdgeRecord, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_edges_by_graph($1)`,
		graphRID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var edges []*model.EdgeRecord
	for rows.Next() {
		edge := &model.EdgeRecord{}
		err := rows.Scan(
			&edge.GraphRID,
			&edge.Source,
			&edge.Target,
			&edge.Length,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		edges = append(edges, edge)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return edges, nil
}

// DeleteEdgesByGraph deletes all edges of a graph
func (h *EdgesDBHandler) DeleteEdgesByGraph(graphRID uuid.UUID) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_edges_by_graph($1)`,
		graphRID,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}
