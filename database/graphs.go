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

// GraphsDBHandlerFunctions defines the interface for Graphs database operations.
type GraphsDBHandlerFunctions interface {
	InsertGraph(graph *model.GraphRecord) error
	SelectGraph(rid uuid.UUID) (*model.GraphRecord, error)
	SelectGraphByName(name string) (*model.GraphRecord, error)
	SelectAllGraphs() ([]*model.GraphRecord, error)
	UpdateGraphCounts(rid uuid.UUID, nodeCount, edgeCount int) error
	DeleteGraph(rid uuid.UUID) error
}

// GraphsDBHandler handles graph-related database operations
type GraphsDBHandler struct {
	db *helper.Database
}

// NewGraphsDBHandler creates a new graphs database handler.
// It initializes the database connection and loads graph-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewGraphsDBHandler(db *helper.Database, force bool) (*GraphsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	graphsDbHandler := &GraphsDBHandler{
		db: db,
	}

	err := loadSql.LoadGraphsSql(graphsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load graphs sql", err)
	}

	err = graphsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized GraphsDBHandler")

	return graphsDbHandler, nil
}

// CreateTable creates the 'graphs' table in the database.
// If the table already exists, it does not create it again.
func (h *GraphsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_graphs();`)
	if err != nil {
		log.Panicf("error initializing graphs table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table graphs")

	return nil
}

// InsertGraph inserts a new graph row and fills in the generated fields.
func (h *GraphsDBHandler) InsertGraph(graph *model.GraphRecord) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_graph($1, $2, $3, $4)`,
		graph.Name,
		graph.NodeCount,
		graph.EdgeCount,
		graph.Metadata,
	)

	err := row.Scan(
		&graph.RID,
		&graph.Name,
		&graph.NodeCount,
		&graph.EdgeCount,
		&graph.Metadata,
		&graph.CreatedAt,
	)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectGraph retrieves a graph by RID
func (h *GraphsDBHandler) SelectGraph(rid uuid.UUID) (*model.GraphRecord, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_graph($1)`,
		rid,
	)

	graph := &model.GraphRecord{}

	err := row.Scan(
		&graph.RID,
		&graph.Name,
		&graph.NodeCount,
		&graph.EdgeCount,
		&graph.Metadata,
		&graph.CreatedAt,
	)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return graph, nil
}

// SelectGraphByName retrieves a graph by its unique name
func (h *GraphsDBHandler) SelectGraphByName(name string) (*model.GraphRecord, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_graph_by_name($1)`,
		name,
	)

	graph := &model.GraphRecord{}

	err := row.Scan(
		&graph.RID,
		&graph.Name,
		&graph.NodeCount,
		&graph.EdgeCount,
		&graph.Metadata,
		&graph.CreatedAt,
	)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return graph, nil
}

// SelectAllGraphs retrieves all stored graphs
func (h *GraphsDBHandler) SelectAllGraphs() ([]*model.GraphRecord, error) {
	rows, err := h.db.Instance.Query(`SELECT * FROM select_all_graphs()`)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var graphs []*model.GraphRecord
	for rows.Next() {
		graph := &model.GraphRecord{}
		err := rows.Scan(
			&graph.RID,
			&graph.Name,
			&graph.NodeCount,
			&graph.EdgeCount,
			&graph.Metadata,
			&graph.CreatedAt,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		graphs = append(graphs, graph)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return graphs, nil
}

// UpdateGraphCounts updates the node and edge counts of a graph
func (h *GraphsDBHandler) UpdateGraphCounts(rid uuid.UUID, nodeCount, edgeCount int) error {
	_, err := h.db.Instance.Exec(
		`SELECT * FROM update_graph_counts($1, $2, $3)`,
		rid,
		nodeCount,
		edgeCount,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// DeleteGraph deletes a graph by RID. Nodes and edges cascade.
func (h *GraphsDBHandler) DeleteGraph(rid uuid.UUID) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_graph($1)`,
		rid,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}
