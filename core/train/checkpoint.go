package train

import (
	"encoding/json"
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"

	"github.com/floorgraph/floorgraph/core/nn"
)

// Model kinds stored in checkpoints.
const (
	KindWindow = "window"
	KindGCN    = "gcn"
)

// ModelInfo describes a trained model independent of its weights.
type ModelInfo struct {
	Kind        string `json:"kind"`
	NumFeatures int    `json:"n_features"`
	NumClasses  int    `json:"n_classes"`
}

// LayerWeights is the serialized form of one dense or graph-convolution
// layer.
type LayerWeights struct {
	In      int       `json:"in"`
	Out     int       `json:"out"`
	Weights []float64 `json:"weights"` // row major, In x Out
	Bias    []float64 `json:"bias"`
}

// Checkpoint is the on-disk form of a trained model.
type Checkpoint struct {
	Info   ModelInfo       `json:"model_info"`
	Config json.RawMessage `json:"config"`
	Layers []LayerWeights  `json:"layers"`
}

// WriteCheckpoint serializes a checkpoint as indented JSON.
func WriteCheckpoint(path string, checkpoint *Checkpoint) error {
	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

// ReadCheckpoint loads a checkpoint written by WriteCheckpoint.
func ReadCheckpoint(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	var checkpoint Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, fmt.Errorf("parse checkpoint %s: %w", path, err)
	}
	if checkpoint.Info.Kind != KindWindow && checkpoint.Info.Kind != KindGCN {
		return nil, fmt.Errorf("checkpoint %s: unknown model kind %q", path, checkpoint.Info.Kind)
	}
	return &checkpoint, nil
}

// denseWeights extracts a layer's weights for serialization.
func denseWeights(layer *nn.Dense) LayerWeights {
	in, out := layer.W.Value.Dims()
	weights := make([]float64, 0, in*out)
	for i := 0; i < in; i++ {
		weights = append(weights, layer.W.Value.RawRowView(i)...)
	}
	bias := append([]float64(nil), layer.B.Value.RawRowView(0)...)
	return LayerWeights{In: in, Out: out, Weights: weights, Bias: bias}
}

// loadDense restores a dense layer from serialized weights.
func loadDense(lw LayerWeights) (*nn.Dense, error) {
	if len(lw.Weights) != lw.In*lw.Out {
		return nil, fmt.Errorf("layer %dx%d has %d weights", lw.In, lw.Out, len(lw.Weights))
	}
	if len(lw.Bias) != lw.Out {
		return nil, fmt.Errorf("layer %dx%d has %d bias values", lw.In, lw.Out, len(lw.Bias))
	}
	layer := &nn.Dense{W: nn.NewParam(lw.In, lw.Out), B: nn.NewParam(1, lw.Out)}
	layer.W.Value = mat.NewDense(lw.In, lw.Out, append([]float64(nil), lw.Weights...))
	layer.B.Value = mat.NewDense(1, lw.Out, append([]float64(nil), lw.Bias...))
	return layer, nil
}
