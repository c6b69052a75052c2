package train

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/floorgraph/floorgraph/core/nn"
	"github.com/floorgraph/floorgraph/helper"
	"github.com/floorgraph/floorgraph/model"
)

// EmbeddingFunc supplies the node embedding matrix of a graph, indexed by
// node ID. It is nil-able: a GCN configured without embeddings never calls
// it.
type EmbeddingFunc func(g *model.Graph) ([][]float64, error)

// GCNModel classifies nodes with two graph convolutions over the
// normalized adjacency. Inputs are the geometric node features, optionally
// concatenated with DeepWalk embeddings.
type GCNModel struct {
	config    model.GCNConfig
	numInputs int

	first  *nn.GCNLayer
	relu   *nn.ReLU
	second *nn.GCNLayer
}

// NewGCNModel creates an untrained model. numInputs is the full input
// width per node, features plus embedding dimensions when embeddings are
// enabled.
func NewGCNModel(numInputs int, config model.GCNConfig) *GCNModel {
	rng := rand.New(rand.NewPCG(config.Seed, config.Seed))
	return &GCNModel{
		config:    config,
		numInputs: numInputs,
		first:     nn.NewGCNLayer(numInputs, config.HiddenSize, rng),
		relu:      &nn.ReLU{},
		second:    nn.NewGCNLayer(config.HiddenSize, model.NumClasses, rng),
	}
}

// Config returns the effective configuration.
func (m *GCNModel) Config() model.GCNConfig {
	return m.config
}

func (m *GCNModel) forward(ahat mat.Matrix, x *mat.Dense) *mat.Dense {
	hidden := m.relu.Forward(m.first.Forward(ahat, x))
	return m.second.Forward(ahat, hidden)
}

func (m *GCNModel) backward(dout *mat.Dense) {
	m.first.Backward(m.relu.Backward(m.second.Backward(dout)))
}

func (m *GCNModel) params() []*nn.Param {
	return append(m.first.Params(), m.second.Params()...)
}

// inputs stacks the input rows of a graph, validating widths against the
// model.
func (m *GCNModel) inputs(g *model.Graph, embed EmbeddingFunc) (*mat.Dense, error) {
	n := len(g.Nodes)
	if n == 0 {
		return nil, fmt.Errorf("graph %s has no nodes", g.Name)
	}

	var embeddings [][]float64
	if m.config.UseEmbeddings {
		if embed == nil {
			return nil, fmt.Errorf("model requires embeddings but none were supplied")
		}
		var err error
		embeddings, err = embed(g)
		if err != nil {
			return nil, fmt.Errorf("embeddings for %s: %w", g.Name, err)
		}
		if len(embeddings) != n {
			return nil, fmt.Errorf("graph %s has %d nodes but %d embeddings", g.Name, n, len(embeddings))
		}
	}

	x := mat.NewDense(n, m.numInputs, nil)
	for id := 0; id < n; id++ {
		row := g.Nodes[id].Features
		if m.config.UseEmbeddings {
			row = append(append([]float64(nil), row...), embeddings[id]...)
		}
		if len(row) != m.numInputs {
			return nil, fmt.Errorf("graph %s yields %d inputs per node, model expects %d", g.Name, len(row), m.numInputs)
		}
		x.SetRow(id, row)
	}
	return x, nil
}

// Train fits the model full-batch per graph group: every epoch the graphs
// are shuffled and convolved in block-diagonal batches of BatchGraphs,
// with class weights derived per batch.
func (m *GCNModel) Train(graphs []*model.Graph, embed EmbeddingFunc, logger *slog.Logger) error {
	if len(graphs) == 0 {
		return helper.NewError("gcn training", fmt.Errorf("no graphs to train on"))
	}

	var nodes int
	for _, g := range graphs {
		nodes += len(g.Nodes)
	}
	logger.Info(
		"training gcn model",
		slog.Int("nodes", nodes),
		slog.Int("graphs", len(graphs)),
		slog.Bool("embeddings", m.config.UseEmbeddings),
	)

	adam := nn.NewAdam(m.config.LearningRate, m.config.WeightDecay)
	rng := rand.New(rand.NewPCG(m.config.Seed, m.config.Seed+1))
	order := make([]int, len(graphs))
	for i := range order {
		order[i] = i
	}

	batchGraphs := m.config.BatchGraphs
	if batchGraphs <= 0 {
		batchGraphs = len(graphs)
	}

	for epoch := 1; epoch <= m.config.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})

		var epochLoss float64
		var batches int
		for start := 0; start < len(order); start += batchGraphs {
			end := min(start+batchGraphs, len(order))

			batch := make([]*model.Graph, 0, end-start)
			for _, index := range order[start:end] {
				batch = append(batch, graphs[index])
			}

			x, labels, err := m.stackBatch(batch, embed)
			if err != nil {
				return helper.NewError("gcn training", err)
			}

			ahat := nn.BlockDiagonalAdjacency(batch)
			logits := m.forward(ahat, x)
			loss, dLogits := nn.SoftmaxCrossEntropy(logits, labels, nn.ClassWeights(labels))
			m.backward(dLogits)
			adam.Step(m.params())

			epochLoss += loss
			batches++
		}

		if epoch%20 == 0 || epoch == m.config.Epochs {
			logger.Info(
				"gcn epoch",
				slog.Int("epoch", epoch),
				slog.Float64("loss", epochLoss/float64(batches)),
			)
		}
	}
	return nil
}

// stackBatch concatenates the inputs and labels of a graph batch in
// block-diagonal order.
func (m *GCNModel) stackBatch(batch []*model.Graph, embed EmbeddingFunc) (*mat.Dense, []int, error) {
	var total int
	for _, g := range batch {
		total += len(g.Nodes)
	}

	x := mat.NewDense(total, m.numInputs, nil)
	labels := make([]int, 0, total)
	offset := 0
	for _, g := range batch {
		inputs, err := m.inputs(g, embed)
		if err != nil {
			return nil, nil, err
		}
		for i := 0; i < len(g.Nodes); i++ {
			x.SetRow(offset+i, inputs.RawRowView(i))
		}
		labels = append(labels, g.Labels()...)
		offset += len(g.Nodes)
	}
	return x, labels, nil
}

// Evaluate runs the model over graphs and accumulates a confusion matrix
// against their labels.
func (m *GCNModel) Evaluate(graphs []*model.Graph, embed EmbeddingFunc) (*nn.Metrics, error) {
	metrics := &nn.Metrics{}
	for _, g := range graphs {
		predictions, err := m.Predict(g, embed)
		if err != nil {
			return nil, err
		}
		metrics.Add(g.Labels(), predictions)
	}
	return metrics, nil
}

// Predict classifies every node of a graph.
func (m *GCNModel) Predict(g *model.Graph, embed EmbeddingFunc) ([]int, error) {
	x, err := m.inputs(g, embed)
	if err != nil {
		return nil, err
	}
	logits := m.forward(nn.NormalizedAdjacency(g), x)
	return nn.Predictions(logits), nil
}

// Checkpoint serializes the model.
func (m *GCNModel) Checkpoint() (*Checkpoint, error) {
	config, err := json.Marshal(m.config)
	if err != nil {
		return nil, fmt.Errorf("marshal gcn config: %w", err)
	}
	return &Checkpoint{
		Info: ModelInfo{
			Kind:        KindGCN,
			NumFeatures: m.numInputs,
			NumClasses:  model.NumClasses,
		},
		Config: config,
		Layers: []LayerWeights{
			denseWeights(m.first.DenseLayer()),
			denseWeights(m.second.DenseLayer()),
		},
	}, nil
}

// Save writes the model to path.
func (m *GCNModel) Save(path string) error {
	checkpoint, err := m.Checkpoint()
	if err != nil {
		return err
	}
	return WriteCheckpoint(path, checkpoint)
}

// GCNModelFromCheckpoint restores a trained GCN model.
func GCNModelFromCheckpoint(checkpoint *Checkpoint) (*GCNModel, error) {
	if checkpoint.Info.Kind != KindGCN {
		return nil, fmt.Errorf("checkpoint holds a %q model, not %q", checkpoint.Info.Kind, KindGCN)
	}
	if len(checkpoint.Layers) != 2 {
		return nil, fmt.Errorf("gcn checkpoint has %d layers, expected 2", len(checkpoint.Layers))
	}

	var config model.GCNConfig
	if err := json.Unmarshal(checkpoint.Config, &config); err != nil {
		return nil, fmt.Errorf("parse gcn config: %w", err)
	}

	first, err := loadDense(checkpoint.Layers[0])
	if err != nil {
		return nil, fmt.Errorf("gcn layer 0: %w", err)
	}
	second, err := loadDense(checkpoint.Layers[1])
	if err != nil {
		return nil, fmt.Errorf("gcn layer 1: %w", err)
	}

	return &GCNModel{
		config:    config,
		numInputs: checkpoint.Info.NumFeatures,
		first:     nn.NewGCNLayerFromDense(first),
		relu:      &nn.ReLU{},
		second:    nn.NewGCNLayerFromDense(second),
	}, nil
}

// LoadGCNModel reads a GCN model checkpoint from path.
func LoadGCNModel(path string) (*GCNModel, error) {
	checkpoint, err := ReadCheckpoint(path)
	if err != nil {
		return nil, err
	}
	return GCNModelFromCheckpoint(checkpoint)
}
