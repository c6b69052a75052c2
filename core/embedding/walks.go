// Package embedding trains DeepWalk node embeddings: uniform random walks
// over the graph feed a skip-gram model with negative sampling, treating
// each walk as a sentence of node IDs.
package embedding

import (
	"math/rand/v2"

	"github.com/floorgraph/floorgraph/model"
)

// RandomWalks generates walksPerNode uniform random walks of up to
// walkLength nodes from every node. Walks end early at nodes without
// neighbors. Node visit order is shuffled per round so walk batches do not
// follow node ID order.
func RandomWalks(g *model.Graph, walksPerNode, walkLength int, rng *rand.Rand) [][]int {
	adj := g.Adjacency()
	order := make([]int, len(g.Nodes))
	for i := range order {
		order[i] = i
	}

	walks := make([][]int, 0, len(g.Nodes)*walksPerNode)
	for round := 0; round < walksPerNode; round++ {
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
		for _, start := range order {
			walks = append(walks, randomWalk(adj, start, walkLength, rng))
		}
	}
	return walks
}

// randomWalk performs one uniform random walk from start.
func randomWalk(adj [][]int, start, length int, rng *rand.Rand) []int {
	walk := make([]int, 1, length)
	walk[0] = start

	current := start
	for len(walk) < length {
		neighbors := adj[current]
		if len(neighbors) == 0 {
			break
		}
		current = neighbors[rng.IntN(len(neighbors))]
		walk = append(walk, current)
	}
	return walk
}
