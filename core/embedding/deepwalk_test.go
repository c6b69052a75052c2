package embedding

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floorgraph/floorgraph/model"
)

// buildBarbell builds two 5-cliques joined by a single edge.
func buildBarbell(t *testing.T) *model.Graph {
	t.Helper()
	g := model.NewGraph("barbell")
	for i := 0; i < 10; i++ {
		g.AddNode(float64(i), 0)
	}
	for a := 0; a < 5; a++ {
		for b := a + 1; b < 5; b++ {
			require.NoError(t, g.AddEdge(a, b))
			require.NoError(t, g.AddEdge(a+5, b+5))
		}
	}
	require.NoError(t, g.AddEdge(4, 5))
	return g
}

func cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestRandomWalks(t *testing.T) {
	t.Run("Walk count and length", func(t *testing.T) {
		g := buildBarbell(t)
		rng := rand.New(rand.NewPCG(1, 1))

		walks := RandomWalks(g, 3, 10, rng)
		assert.Len(t, walks, 30)
		for _, walk := range walks {
			assert.Len(t, walk, 10)
		}
	})

	t.Run("Walks follow edges", func(t *testing.T) {
		g := buildBarbell(t)
		rng := rand.New(rand.NewPCG(1, 1))

		adjacent := map[[2]int]bool{}
		for _, e := range g.Edges {
			adjacent[[2]int{e.Source, e.Target}] = true
			adjacent[[2]int{e.Target, e.Source}] = true
		}

		for _, walk := range RandomWalks(g, 2, 15, rng) {
			for i := 1; i < len(walk); i++ {
				assert.True(t, adjacent[[2]int{walk[i-1], walk[i]}],
					"walk step %d-%d is not an edge", walk[i-1], walk[i])
			}
		}
	})

	t.Run("Walk from isolated node stops immediately", func(t *testing.T) {
		g := model.NewGraph("isolated")
		g.AddNode(0, 0)
		rng := rand.New(rand.NewPCG(1, 1))

		walks := RandomWalks(g, 1, 10, rng)
		require.Len(t, walks, 1)
		assert.Equal(t, []int{0}, walks[0])
	})
}

func TestDeepWalkEmbed(t *testing.T) {
	t.Run("Shape and determinism", func(t *testing.T) {
		g := buildBarbell(t)
		dw := NewDeepWalk(model.WalkConfig{Dimensions: 16, Epochs: 3, Seed: 7})

		first, err := dw.Embed(g)
		require.NoError(t, err)
		require.Len(t, first, 10)
		for _, vec := range first {
			assert.Len(t, vec, 16)
		}

		second, err := NewDeepWalk(model.WalkConfig{Dimensions: 16, Epochs: 3, Seed: 7}).Embed(g)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("Different seeds give different embeddings", func(t *testing.T) {
		g := buildBarbell(t)

		first, err := NewDeepWalk(model.WalkConfig{Dimensions: 16, Epochs: 2, Seed: 1}).Embed(g)
		require.NoError(t, err)
		second, err := NewDeepWalk(model.WalkConfig{Dimensions: 16, Epochs: 2, Seed: 2}).Embed(g)
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("Clique members are closer than nodes across the bridge", func(t *testing.T) {
		g := buildBarbell(t)
		dw := NewDeepWalk(model.WalkConfig{
			Dimensions:   16,
			WalksPerNode: 20,
			WalkLength:   20,
			Epochs:       10,
			Seed:         3,
		})

		embeddings, err := dw.Embed(g)
		require.NoError(t, err)

		var within, across float64
		var nWithin, nAcross int
		for a := 0; a < 5; a++ {
			for b := a + 1; b < 5; b++ {
				within += cosine(embeddings[a], embeddings[b])
				nWithin++
			}
			for b := 5; b < 10; b++ {
				across += cosine(embeddings[a], embeddings[b])
				nAcross++
			}
		}
		assert.Greater(t, within/float64(nWithin), across/float64(nAcross))
	})

	t.Run("Isolated node gets a zero vector", func(t *testing.T) {
		g := model.NewGraph("mixed")
		g.AddNode(0, 0)
		g.AddNode(1, 0)
		g.AddNode(2, 0)
		require.NoError(t, g.AddEdge(0, 1))

		embeddings, err := NewDeepWalk(model.WalkConfig{Dimensions: 8, Epochs: 1}).Embed(g)
		require.NoError(t, err)
		assert.Equal(t, make([]float64, 8), embeddings[2])
	})

	t.Run("Empty graph", func(t *testing.T) {
		_, err := NewDeepWalk(model.WalkConfig{}).Embed(model.NewGraph("empty"))
		assert.ErrorIs(t, err, ErrEmptyGraph)
	})
}
