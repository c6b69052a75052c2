package embedding

import (
	"errors"
	"math/rand/v2"

	"github.com/floorgraph/floorgraph/model"
)

// ErrEmptyGraph is returned when a graph has no nodes to embed.
var ErrEmptyGraph = errors.New("embedding: graph has no nodes")

// DeepWalk computes node embeddings for a graph. Runs are deterministic
// for a fixed config seed.
type DeepWalk struct {
	config model.WalkConfig
}

// NewDeepWalk creates a DeepWalk embedder. Zero config fields fall back to
// defaults.
func NewDeepWalk(config model.WalkConfig) *DeepWalk {
	defaults := model.DefaultWalkConfig()
	if config.WalksPerNode <= 0 {
		config.WalksPerNode = defaults.WalksPerNode
	}
	if config.WalkLength <= 0 {
		config.WalkLength = defaults.WalkLength
	}
	if config.Window <= 0 {
		config.Window = defaults.Window
	}
	if config.Dimensions <= 0 {
		config.Dimensions = defaults.Dimensions
	}
	if config.Negatives <= 0 {
		config.Negatives = defaults.Negatives
	}
	if config.Epochs <= 0 {
		config.Epochs = defaults.Epochs
	}
	if config.LearningRate <= 0 {
		config.LearningRate = defaults.LearningRate
	}
	if config.Seed == 0 {
		config.Seed = defaults.Seed
	}
	return &DeepWalk{config: config}
}

// Config returns the effective configuration after defaulting.
func (d *DeepWalk) Config() model.WalkConfig {
	return d.config
}

// Embed trains and returns one embedding vector per node, indexed by node
// ID. Isolated nodes get zero vectors.
func (d *DeepWalk) Embed(g *model.Graph) ([][]float64, error) {
	if len(g.Nodes) == 0 {
		return nil, ErrEmptyGraph
	}

	rng := rand.New(rand.NewPCG(d.config.Seed, d.config.Seed))
	walks := RandomWalks(g, d.config.WalksPerNode, d.config.WalkLength, rng)

	sg := newSkipGram(len(g.Nodes), d.config.Dimensions, rng)
	sg.buildNegativeTable(walks)
	sg.train(walks, d.config.Window, d.config.Negatives, d.config.Epochs, d.config.LearningRate)

	embeddings := make([][]float64, len(g.Nodes))
	for i := range g.Nodes {
		if g.Degree(i) == 0 {
			embeddings[i] = make([]float64, d.config.Dimensions)
			continue
		}
		embeddings[i] = sg.in[i]
	}
	return embeddings, nil
}
