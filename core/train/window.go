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

// WindowFeatures builds the input row of every node: its own feature
// vector concatenated with the mean feature vector of up to windowSize
// neighborhood nodes collected breadth first. Nodes without neighbors get
// a zero context half.
func WindowFeatures(g *model.Graph, windowSize int) *mat.Dense {
	n := len(g.Nodes)
	if n == 0 {
		return mat.NewDense(0, 0, nil)
	}
	numFeatures := len(g.Nodes[0].Features)

	rows := mat.NewDense(n, 2*numFeatures, nil)
	for id := 0; id < n; id++ {
		for j, v := range g.Nodes[id].Features {
			rows.Set(id, j, v)
		}

		window := bfsWindow(g, id, windowSize)
		if len(window) == 0 {
			continue
		}
		for _, neighbor := range window {
			for j, v := range g.Nodes[neighbor].Features {
				rows.Set(id, numFeatures+j, rows.At(id, numFeatures+j)+v)
			}
		}
		scale := 1 / float64(len(window))
		for j := numFeatures; j < 2*numFeatures; j++ {
			rows.Set(id, j, rows.At(id, j)*scale)
		}
	}
	return rows
}

// bfsWindow collects up to limit nodes around start in breadth-first
// order, excluding start itself.
func bfsWindow(g *model.Graph, start, limit int) []int {
	visited := map[int]bool{start: true}
	queue := []int{start}
	window := make([]int, 0, limit)

	for len(queue) > 0 && len(window) < limit {
		current := queue[0]
		queue = queue[1:]
		for _, neighbor := range g.Neighbors(current) {
			if visited[neighbor] {
				continue
			}
			visited[neighbor] = true
			window = append(window, neighbor)
			queue = append(queue, neighbor)
			if len(window) == limit {
				break
			}
		}
	}
	return window
}

// WindowModel classifies nodes from their own features and a breadth
// first window of neighborhood features, through a small fully connected
// network.
type WindowModel struct {
	config      model.WindowConfig
	numFeatures int

	layers      []*nn.Dense
	activations []*nn.ReLU
}

// NewWindowModel creates an untrained model. numFeatures is the per-node
// feature width; the network input is twice that.
func NewWindowModel(numFeatures int, config model.WindowConfig) *WindowModel {
	if len(config.HiddenSizes) == 0 {
		config.HiddenSizes = model.DefaultWindowConfig().HiddenSizes
	}
	rng := rand.New(rand.NewPCG(config.Seed, config.Seed))

	m := &WindowModel{config: config, numFeatures: numFeatures}
	in := 2 * numFeatures
	for _, hidden := range config.HiddenSizes {
		m.layers = append(m.layers, nn.NewDense(in, hidden, rng))
		m.activations = append(m.activations, &nn.ReLU{})
		in = hidden
	}
	m.layers = append(m.layers, nn.NewDense(in, model.NumClasses, rng))
	return m
}

// Config returns the effective configuration.
func (m *WindowModel) Config() model.WindowConfig {
	return m.config
}

func (m *WindowModel) forward(x *mat.Dense) *mat.Dense {
	out := x
	for i, layer := range m.layers {
		out = layer.Forward(out)
		if i < len(m.activations) {
			out = m.activations[i].Forward(out)
		}
	}
	return out
}

func (m *WindowModel) backward(dout *mat.Dense) {
	grad := dout
	for i := len(m.layers) - 1; i >= 0; i-- {
		if i < len(m.activations) {
			grad = m.activations[i].Backward(grad)
		}
		grad = m.layers[i].Backward(grad)
	}
}

func (m *WindowModel) params() []*nn.Param {
	var params []*nn.Param
	for _, layer := range m.layers {
		params = append(params, layer.Params()...)
	}
	return params
}

// Train fits the model on labeled graphs with class-weighted cross
// entropy over shuffled minibatches.
func (m *WindowModel) Train(graphs []*model.Graph, logger *slog.Logger) error {
	features, labels, err := m.stack(graphs)
	if err != nil {
		return helper.NewError("window training", err)
	}

	classWeights := nn.ClassWeights(labels)
	logger.Info(
		"training window model",
		slog.Int("nodes", len(labels)),
		slog.Int("graphs", len(graphs)),
		slog.Float64("door_weight", classWeights[model.ClassDoor]),
	)

	adam := nn.NewAdam(m.config.LearningRate, m.config.WeightDecay)
	rng := rand.New(rand.NewPCG(m.config.Seed, m.config.Seed+1))
	order := make([]int, len(labels))
	for i := range order {
		order[i] = i
	}

	batchSize := m.config.BatchSize
	if batchSize <= 0 {
		batchSize = len(labels)
	}

	for epoch := 1; epoch <= m.config.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})

		var epochLoss float64
		var batches int
		for start := 0; start < len(order); start += batchSize {
			end := min(start+batchSize, len(order))
			batchX, batchLabels := gather(features, labels, order[start:end])

			logits := m.forward(batchX)
			loss, dLogits := nn.SoftmaxCrossEntropy(logits, batchLabels, classWeights)
			m.backward(dLogits)
			adam.Step(m.params())

			epochLoss += loss
			batches++
		}

		if epoch%10 == 0 || epoch == m.config.Epochs {
			logger.Info(
				"window epoch",
				slog.Int("epoch", epoch),
				slog.Float64("loss", epochLoss/float64(batches)),
			)
		}
	}
	return nil
}

// Evaluate runs the model over graphs and accumulates a confusion matrix
// against their labels.
func (m *WindowModel) Evaluate(graphs []*model.Graph) (*nn.Metrics, error) {
	metrics := &nn.Metrics{}
	for _, g := range graphs {
		predictions, err := m.Predict(g)
		if err != nil {
			return nil, err
		}
		metrics.Add(g.Labels(), predictions)
	}
	return metrics, nil
}

// Predict classifies every node of a graph.
func (m *WindowModel) Predict(g *model.Graph) ([]int, error) {
	if len(g.Nodes) == 0 {
		return nil, nil
	}
	if got := len(g.Nodes[0].Features); got != m.numFeatures {
		return nil, fmt.Errorf("graph %s has %d features per node, model expects %d", g.Name, got, m.numFeatures)
	}
	logits := m.forward(WindowFeatures(g, m.config.WindowSize))
	return nn.Predictions(logits), nil
}

// stack concatenates window features and labels of all graphs into one
// training set.
func (m *WindowModel) stack(graphs []*model.Graph) (*mat.Dense, []int, error) {
	var rows [][]float64
	var labels []int
	for _, g := range graphs {
		if len(g.Nodes) == 0 {
			continue
		}
		if got := len(g.Nodes[0].Features); got != m.numFeatures {
			return nil, nil, fmt.Errorf("graph %s has %d features per node, model expects %d", g.Name, got, m.numFeatures)
		}
		features := WindowFeatures(g, m.config.WindowSize)
		for i := 0; i < len(g.Nodes); i++ {
			rows = append(rows, features.RawRowView(i))
			labels = append(labels, g.Nodes[i].Label)
		}
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("no nodes to train on")
	}

	stacked := mat.NewDense(len(rows), len(rows[0]), nil)
	for i, row := range rows {
		stacked.SetRow(i, row)
	}
	return stacked, labels, nil
}

// gather copies the selected rows and labels into a minibatch.
func gather(features *mat.Dense, labels []int, indices []int) (*mat.Dense, []int) {
	_, cols := features.Dims()
	batchX := mat.NewDense(len(indices), cols, nil)
	batchLabels := make([]int, len(indices))
	for i, index := range indices {
		batchX.SetRow(i, features.RawRowView(index))
		batchLabels[i] = labels[index]
	}
	return batchX, batchLabels
}

// Checkpoint serializes the model.
func (m *WindowModel) Checkpoint() (*Checkpoint, error) {
	config, err := json.Marshal(m.config)
	if err != nil {
		return nil, fmt.Errorf("marshal window config: %w", err)
	}

	checkpoint := &Checkpoint{
		Info: ModelInfo{
			Kind:        KindWindow,
			NumFeatures: m.numFeatures,
			NumClasses:  model.NumClasses,
		},
		Config: config,
	}
	for _, layer := range m.layers {
		checkpoint.Layers = append(checkpoint.Layers, denseWeights(layer))
	}
	return checkpoint, nil
}

// Save writes the model to path.
func (m *WindowModel) Save(path string) error {
	checkpoint, err := m.Checkpoint()
	if err != nil {
		return err
	}
	return WriteCheckpoint(path, checkpoint)
}

// WindowModelFromCheckpoint restores a trained window model.
func WindowModelFromCheckpoint(checkpoint *Checkpoint) (*WindowModel, error) {
	if checkpoint.Info.Kind != KindWindow {
		return nil, fmt.Errorf("checkpoint holds a %q model, not %q", checkpoint.Info.Kind, KindWindow)
	}

	var config model.WindowConfig
	if err := json.Unmarshal(checkpoint.Config, &config); err != nil {
		return nil, fmt.Errorf("parse window config: %w", err)
	}

	m := &WindowModel{config: config, numFeatures: checkpoint.Info.NumFeatures}
	for i, lw := range checkpoint.Layers {
		layer, err := loadDense(lw)
		if err != nil {
			return nil, fmt.Errorf("window layer %d: %w", i, err)
		}
		m.layers = append(m.layers, layer)
		if i < len(checkpoint.Layers)-1 {
			m.activations = append(m.activations, &nn.ReLU{})
		}
	}
	if len(m.layers) == 0 {
		return nil, fmt.Errorf("checkpoint has no layers")
	}
	return m, nil
}

// LoadWindowModel reads a window model checkpoint from path.
func LoadWindowModel(path string) (*WindowModel, error) {
	checkpoint, err := ReadCheckpoint(path)
	if err != nil {
		return nil, err
	}
	return WindowModelFromCheckpoint(checkpoint)
}
