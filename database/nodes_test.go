package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floorgraph/floorgraph/model"
)

func testEmbedding(first float32) []float32 {
	embedding := make([]float32, testEmbeddingDim)
	embedding[0] = first
	return embedding
}

func TestNodesNewNodesDBHandler(t *testing.T) {
	database := initDB(t)
	_, err := NewGraphsDBHandler(database, true)
	require.NoError(t, err)

	t.Run("Valid call NewNodesDBHandler", func(t *testing.T) {
		nodesDbHandler, err := NewNodesDBHandler(database, testEmbeddingDim, true)
		assert.NoError(t, err, "Expected NewNodesDBHandler to not return an error")
		require.NotNil(t, nodesDbHandler, "Expected NewNodesDBHandler to return a non-nil instance")
		require.NotNil(t, nodesDbHandler.db, "Expected NewNodesDBHandler to have a non-nil database instance")
	})

	t.Run("Invalid call NewNodesDBHandler with nil database", func(t *testing.T) {
		_, err := NewNodesDBHandler(nil, testEmbeddingDim, false)
		assert.Error(t, err, "Expected error when creating NodesDBHandler with nil database")
		assert.Contains(t, err.Error(), "database connection is nil", "Expected specific error message for nil database connection")
	})

	t.Run("Invalid call NewNodesDBHandler with zero dimension", func(t *testing.T) {
		_, err := NewNodesDBHandler(database, 0, false)
		assert.Error(t, err, "Expected error when creating NodesDBHandler with zero embedding dimension")
		assert.Contains(t, err.Error(), "embedding dimension", "Expected specific error message for invalid dimension")
	})
}

func TestNodesInsert(t *testing.T) {
	database := initDB(t)
	graphsDbHandler, nodesDbHandler, _ := initHandlers(t, database)

	graph := &model.GraphRecord{Name: "plan_nodes_insert"}
	require.NoError(t, graphsDbHandler.InsertGraph(graph))
	defer graphsDbHandler.DeleteGraph(graph.RID)

	t.Run("Insert node with embedding", func(t *testing.T) {
		node := &model.NodeRecord{
			GraphRID:  graph.RID,
			NodeID:    0,
			X:         100.5,
			Y:         -20.25,
			Label:     model.ClassDoor,
			Instance:  2,
			Embedding: testEmbedding(1),
		}

		err := nodesDbHandler.InsertNode(node)
		assert.NoError(t, err, "Expected Insert to not return an error")
		assert.Equal(t, graph.RID, node.GraphRID, "Expected graph RID to match")
		assert.Len(t, node.Embedding, testEmbeddingDim, "Expected embedding to round trip")
	})

	t.Run("Insert node without embedding", func(t *testing.T) {
		node := &model.NodeRecord{
			GraphRID: graph.RID,
			NodeID:   1,
			X:        0,
			Y:        0,
			Label:    model.ClassUnlabeled,
			Instance: model.NoInstance,
		}

		err := nodesDbHandler.InsertNode(node)
		assert.NoError(t, err, "Expected Insert to not return an error")
		assert.Nil(t, node.Embedding, "Expected embedding to stay empty")
	})

	t.Run("Insert node for unknown graph is an error", func(t *testing.T) {
		node := &model.NodeRecord{NodeID: 0}
		err := nodesDbHandler.InsertNode(node)
		assert.Error(t, err, "Expected foreign key violation for unknown graph")
	})
}

func TestNodesGet(t *testing.T) {
	database := initDB(t)
	graphsDbHandler, nodesDbHandler, _ := initHandlers(t, database)

	graph := &model.GraphRecord{Name: "plan_nodes_get"}
	require.NoError(t, graphsDbHandler.InsertGraph(graph))
	defer graphsDbHandler.DeleteGraph(graph.RID)

	for i := 0; i < 3; i++ {
		node := &model.NodeRecord{
			GraphRID: graph.RID,
			NodeID:   i,
			X:        float64(i) * 10,
			Y:        0,
			Label:    model.ClassOther,
			Instance: model.NoInstance,
		}
		require.NoError(t, nodesDbHandler.InsertNode(node))
	}

	node, err := nodesDbHandler.SelectNode(graph.RID, 1)
	assert.NoError(t, err)
	assert.Equal(t, 1, node.NodeID)
	assert.Equal(t, 10.0, node.X)

	nodes, err := nodesDbHandler.SelectNodesByGraph(graph.RID)
	assert.NoError(t, err)
	require.Len(t, nodes, 3)
	assert.Equal(t, 0, nodes[0].NodeID, "Expected nodes ordered by node ID")
	assert.Equal(t, 2, nodes[2].NodeID, "Expected nodes ordered by node ID")
}

func TestNodesUpdate(t *testing.T) {
	database := initDB(t)
	graphsDbHandler, nodesDbHandler, _ := initHandlers(t, database)

	graph := &model.GraphRecord{Name: "plan_nodes_update"}
	require.NoError(t, graphsDbHandler.InsertGraph(graph))
	defer graphsDbHandler.DeleteGraph(graph.RID)

	node := &model.NodeRecord{GraphRID: graph.RID, NodeID: 0}
	require.NoError(t, nodesDbHandler.InsertNode(node))

	t.Run("Update embedding", func(t *testing.T) {
		err := nodesDbHandler.UpdateNodeEmbedding(graph.RID, 0, testEmbedding(3))
		assert.NoError(t, err)

		updated, err := nodesDbHandler.SelectNode(graph.RID, 0)
		require.NoError(t, err)
		require.Len(t, updated.Embedding, testEmbeddingDim)
		assert.Equal(t, float32(3), updated.Embedding[0])
	})

	t.Run("Update class", func(t *testing.T) {
		err := nodesDbHandler.UpdateNodeClass(graph.RID, 0, model.ClassDoor, 4)
		assert.NoError(t, err)

		updated, err := nodesDbHandler.SelectNode(graph.RID, 0)
		require.NoError(t, err)
		assert.Equal(t, model.ClassDoor, updated.Label)
		assert.Equal(t, 4, updated.Instance)
	})
}

func TestNodesSelectByLabel(t *testing.T) {
	database := initDB(t)
	graphsDbHandler, nodesDbHandler, _ := initHandlers(t, database)

	graph := &model.GraphRecord{Name: "plan_nodes_label"}
	require.NoError(t, graphsDbHandler.InsertGraph(graph))
	defer graphsDbHandler.DeleteGraph(graph.RID)

	labels := []int{model.ClassOther, model.ClassDoor, model.ClassDoor}
	for i, label := range labels {
		node := &model.NodeRecord{GraphRID: graph.RID, NodeID: i, Label: label, Instance: model.NoInstance}
		require.NoError(t, nodesDbHandler.InsertNode(node))
	}

	doors, err := nodesDbHandler.SelectNodesByLabel(graph.RID, model.ClassDoor)
	assert.NoError(t, err)
	assert.Len(t, doors, 2)
}

func TestNodesSelectBySimilarity(t *testing.T) {
	database := initDB(t)
	graphsDbHandler, nodesDbHandler, _ := initHandlers(t, database)

	graph := &model.GraphRecord{Name: "plan_nodes_similarity"}
	require.NoError(t, graphsDbHandler.InsertGraph(graph))
	defer graphsDbHandler.DeleteGraph(graph.RID)

	for i := 0; i < 4; i++ {
		node := &model.NodeRecord{
			GraphRID:  graph.RID,
			NodeID:    i,
			Label:     model.ClassOther,
			Instance:  model.NoInstance,
			Embedding: testEmbedding(float32(i)),
		}
		require.NoError(t, nodesDbHandler.InsertNode(node))
	}

	t.Run("Nearest nodes come back in distance order", func(t *testing.T) {
		results, err := nodesDbHandler.SelectNodesBySimilarity(&graph.RID, testEmbedding(2.1), 2)
		assert.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, 2, results[0].Node.NodeID, "Expected the closest node first")
		assert.LessOrEqual(t, results[0].Distance, results[1].Distance, "Expected ascending distances")
	})

	t.Run("Nil graph RID searches all graphs", func(t *testing.T) {
		results, err := nodesDbHandler.SelectNodesBySimilarity(nil, testEmbedding(0), 10)
		assert.NoError(t, err)
		assert.GreaterOrEqual(t, len(results), 4)
	})
}
